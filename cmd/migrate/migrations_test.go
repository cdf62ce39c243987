package main

import (
	"io/fs"
	"strings"
	"testing"

	"libreeze/db"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectMigrations_ParsesEmbeddedMigrations(t *testing.T) {
	goose.SetBaseFS(db.Migrations)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	ms, err := goose.CollectMigrations(db.MigrationsDir, 0, goose.MaxVersion)
	require.NoError(t, err)
	assert.NotEmpty(t, ms)
}

func TestSQLMigrations_HaveGooseDirectives(t *testing.T) {
	entries, err := fs.ReadDir(db.Migrations, db.MigrationsDir)
	require.NoError(t, err)

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(db.Migrations, db.MigrationsDir+"/"+e.Name())
		require.NoError(t, err)
		s := string(b)
		assert.Contains(t, s, "-- +goose Up", e.Name())
		assert.Contains(t, s, "-- +goose Down", e.Name())
	}
}
