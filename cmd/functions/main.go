package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libreeze/internal/book"
	"libreeze/internal/config"
	"libreeze/internal/functions"
	"libreeze/internal/httpx"
	"libreeze/internal/lending"
	"libreeze/internal/library"
	"libreeze/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("load config", zap.Error(err))
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateFunctions(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("functions service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	pool, err := openDB(ctx, cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	books := book.NewPostgresRepo(pool, cfg.Database.QueryTimeout)
	lend := lending.NewPostgresRepo(pool, cfg.Database.QueryTimeout)
	libraries := library.NewPostgresRepo(pool, cfg.Database.QueryTimeout)

	handler := functions.NewHandler(books, lend, libraries, log)
	limiter := httpx.NewRateLimitMiddleware(ctx, cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)

	router := http.NewServeMux()
	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			httpx.Error(w, http.StatusServiceUnavailable, "db not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	router.Handle("/", httpx.Chain(handler.Routes(),
		limiter.Middleware,
		httpx.AuthMiddleware(cfg.Platform.JWTSecret),
	))

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpx.Chain(router,
			httpx.RequestIDMiddleware,
			httpx.AccessLogMiddleware(log),
			httpx.RecoveryMiddleware(log),
			httpx.SecurityHeadersMiddleware,
			httpx.CORSMiddleware(cfg.HTTP.CORSOrigins),
			httpx.RequestSizeLimitMiddleware(cfg.HTTP.MaxBodyBytes),
		),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting functions service", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		functions.NewSweeper(lend, cfg.Functions.OverdueInterval, log.Named("sweeper")).Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openDB(ctx context.Context, dsn string, log *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("database connection OK", zap.String("dsn", config.RedactDSN(dsn)))
	return pool, nil
}
