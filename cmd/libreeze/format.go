package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"libreeze/internal/backend"
)

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// openUpload opens a local file for upload. The caller closes it.
func openUpload(path string) (backend.File, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return backend.File{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	name := filepath.Base(path)
	return backend.File{
		Name:        name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Body:        f,
	}, f.Close, nil
}
