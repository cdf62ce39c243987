package main

import (
	"io/fs"
	"os"

	"libreeze/db"
)

type source struct {
	fs   fs.FS // nil means the local filesystem
	path string
}

// migrationsDir prefers MIGRATIONS_DIR on disk and falls back to the
// migrations embedded in the binary. create always writes to disk.
func migrationsDir() source {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return source{path: v}
	}
	return source{fs: db.Migrations, path: db.MigrationsDir}
}
