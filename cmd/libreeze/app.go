package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"libreeze/internal/auth"
	"libreeze/internal/backend"
	"libreeze/internal/book"
	"libreeze/internal/clientstate"
	"libreeze/internal/config"
	"libreeze/internal/guard"
	"libreeze/internal/lending"
	"libreeze/internal/library"
	"libreeze/internal/platform/functions"
	"libreeze/internal/platform/objectstore"
	"libreeze/internal/session"
	"libreeze/internal/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// app is everything a command needs, wired once per invocation.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	pool   *pgxpool.Pool
	store  *session.Store
	svc    *backend.Service
	guards *guard.Guards
	nav    *printNavigator
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) (*app, error) {
	state, err := clientstate.Open(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("open state dir: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database (%s): %w", config.RedactDSN(cfg.Database.DSN), err)
	}

	objects, err := objectstore.NewS3(ctx, cfg.Storage, objectstore.WithLogger(log.Named("storage")))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("object storage: %w", err)
	}

	timeout := cfg.Database.QueryTimeout
	libraries := library.NewPostgresRepo(pool, timeout)
	authClient := auth.NewClient(cfg.Platform.URL, cfg.Platform.AnonKey, state.Sessions(), log.Named("auth"))
	store := session.New(ctx, authClient, libraries, log.Named("session"))

	nav := &printNavigator{out: out}
	return &app{
		cfg:   cfg,
		log:   log,
		pool:  pool,
		store: store,
		svc: backend.New(backend.Deps{
			Auth:      authClient,
			Tokens:    store,
			Functions: functions.NewClient(cfg.Functions.BaseURL, cfg.Platform.AnonKey, cfg.HTTP.RateLimitRPS),
			Objects:   objects,
			Books:     book.NewPostgresRepo(pool, timeout),
			Users:     user.NewPostgresRepo(pool, timeout),
			Libraries: libraries,
			Lending:   lending.NewPostgresRepo(pool, timeout),
			SiteURL:   cfg.App.SiteURL,
			Logger:    log.Named("backend"),
		}),
		guards: &guard.Guards{Sessions: store, Navigator: nav, Redirects: state.Redirects()},
		nav:    nav,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.pool.Close()
}

// currentUser is the signed-in identity. Commands call it after their
// authenticated guard passed.
func (a *app) currentUser() (*auth.Identity, error) {
	id := a.store.Identity()
	if id == nil {
		return nil, backend.ErrNotAuthenticated
	}
	return id, nil
}
