// Package auth talks to the hosted auth platform: password sign-up and
// sign-in, session refresh, sign-out and auth-state change notifications.
package auth

import (
	"fmt"
	"time"
)

// Identity is the authenticated principal as issued by the platform.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Session is a signed-in identity with its tokens.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"identity"`
}

// Expired reports whether the access token is past expiry, with a small margin.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.Add(expiryMargin).After(s.ExpiresAt)
}

const expiryMargin = 10 * time.Second

type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is an auth-state change. Session is nil for EventSignedOut.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Persister keeps the current session between runs.
type Persister interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// APIError is a non-2xx reply from the auth platform.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("auth: %s (%d)", e.Message, e.Status)
}
