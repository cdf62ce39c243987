package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"libreeze/internal/config"
	"libreeze/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	dir := migrationsDir()
	if *command == "create" {
		if *name == "" {
			log.Fatal("name is required for 'create' command")
		}
		if err := goose.Create(nil, dir.path, *name, "sql"); err != nil {
			log.Fatal("create migration", zap.Error(err))
		}
		log.Info("migration created", zap.String("name", *name), zap.String("dir", dir.path))
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatal("connect to database", zap.String("dsn", config.RedactDSN(cfg.Database.DSN)), zap.Error(err))
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(dir.fs)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("set dialect", zap.Error(err))
	}

	switch *command {
	case "up":
		if err := goose.Up(sqlDB, dir.path); err != nil {
			log.Fatal("apply migrations", zap.Error(err))
		}
		log.Info("migrations applied")
	case "down":
		if err := goose.Down(sqlDB, dir.path); err != nil {
			log.Fatal("roll back migration", zap.Error(err))
		}
		log.Info("migration rolled back")
	case "status":
		if err := goose.Status(sqlDB, dir.path); err != nil {
			log.Fatal("migration status", zap.Error(err))
		}
	default:
		log.Fatal("unknown command, use: up, down, status, create", zap.String("command", *command))
	}
}
