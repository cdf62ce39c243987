// Package clientstate persists the client's small pieces of state (the auth
// session and the post-login redirect target) as JSON files in one directory.
package clientstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"libreeze/internal/auth"
)

const (
	sessionFile  = "session.json"
	redirectFile = "redirect.json"
)

type Dir struct {
	path string
}

func Open(path string) (*Dir, error) {
	if path == "" {
		return nil, errors.New("clientstate: empty state directory")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("clientstate: %w", err)
	}
	return &Dir{path: path}, nil
}

// Sessions returns the auth.Persister backed by this directory.
func (d *Dir) Sessions() *SessionFile {
	return &SessionFile{path: filepath.Join(d.path, sessionFile)}
}

// Redirects returns the redirect-target store backed by this directory.
func (d *Dir) Redirects() *RedirectFile {
	return &RedirectFile{path: filepath.Join(d.path, redirectFile)}
}

type SessionFile struct {
	path string
}

// Load returns nil, nil when no session was saved.
func (f *SessionFile) Load() (*auth.Session, error) {
	var s auth.Session
	ok, err := readJSON(f.path, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (f *SessionFile) Save(s *auth.Session) error {
	if s == nil {
		return f.Clear()
	}
	return writeJSON(f.path, s)
}

func (f *SessionFile) Clear() error {
	return remove(f.path)
}

type RedirectFile struct {
	path string
}

type redirectRecord struct {
	RedirectURL string `json:"redirectUrl"`
}

func (f *RedirectFile) Set(path string) error {
	return writeJSON(f.path, redirectRecord{RedirectURL: path})
}

// Get returns the stored target, or "" when none is stored.
func (f *RedirectFile) Get() (string, error) {
	var r redirectRecord
	if _, err := readJSON(f.path, &r); err != nil {
		return "", err
	}
	return r.RedirectURL, nil
}

func (f *RedirectFile) Clear() error {
	return remove(f.path)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("clientstate: %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// writeJSON replaces path atomically so a crash never leaves half a file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
