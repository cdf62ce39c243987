package session

import (
	"context"

	"libreeze/internal/auth"
)

// Source is the auth platform as the store sees it.
type Source interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	OnAuthStateChange(fn func(auth.Event)) func()
}

// AdminLookup answers whether a user administers any library.
type AdminLookup interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}
