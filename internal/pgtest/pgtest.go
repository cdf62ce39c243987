// Package pgtest opens a migrated Postgres pool for repository tests.
// Tests are skipped unless LIBREEZE_TEST_DSN points at a disposable database.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"libreeze/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const envDSN = "LIBREEZE_TEST_DSN"

// Pool returns a pool on a freshly migrated schema. Every table is truncated
// when the test ends.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("skipping: %s not set", envDSN)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skipping: cannot connect to test database: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		t.Skipf("skipping: cannot ping test database: %v", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("goose dialect: %v", err)
	}
	if err := goose.Up(sqlDB, db.MigrationsDir); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	_ = sqlDB.Close()

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `
			TRUNCATE lending_transactions, library_books, book_authors, books,
			         authors, publishers, library_users, libraries, users CASCADE`)
		pool.Close()
	})
	return pool
}
