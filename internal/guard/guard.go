// Package guard decides whether a navigation to a route may proceed, and
// where to send the user instead.
package guard

import (
	"context"
	"fmt"

	"libreeze/internal/auth"
)

const (
	LoginPath     = "/auth/login"
	DashboardPath = "/dashboard"
)

// Sessions is the slice of the session store the guards consult.
type Sessions interface {
	SessionUser(ctx context.Context) (*auth.Identity, error)
	AwaitAdmin(ctx context.Context) (bool, error)
}

// Navigator performs the redirect side effect of a denied navigation.
type Navigator interface {
	Navigate(path string)
}

// RedirectStore keeps the path a user wanted before being sent to log in.
type RedirectStore interface {
	Set(path string) error
	Get() (string, error)
	Clear() error
}

// Func is a guard: it returns false, after navigating elsewhere, to deny.
type Func func(ctx context.Context, path string) (bool, error)

type Guards struct {
	Sessions  Sessions
	Navigator Navigator
	Redirects RedirectStore
}

// Authenticated admits signed-in users. Anyone else has path remembered and
// is sent to the login page.
func (g *Guards) Authenticated(ctx context.Context, path string) (bool, error) {
	id, err := g.Sessions.SessionUser(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve session: %w", err)
	}
	if id != nil {
		return true, nil
	}
	if err := g.Redirects.Set(path); err != nil {
		return false, fmt.Errorf("remember redirect: %w", err)
	}
	g.Navigator.Navigate(LoginPath)
	return false, nil
}

// Admin admits users whose admin flag is set once any pending
// recomputation has resolved; everyone else goes to the dashboard.
func (g *Guards) Admin(ctx context.Context, path string) (bool, error) {
	isAdmin, err := g.Sessions.AwaitAdmin(ctx)
	if err != nil {
		return false, err
	}
	if !isAdmin {
		g.Navigator.Navigate(DashboardPath)
		return false, nil
	}
	return true, nil
}

// PublicOnly admits anonymous users and sends signed-in ones to the dashboard.
func (g *Guards) PublicOnly(ctx context.Context, path string) (bool, error) {
	id, err := g.Sessions.SessionUser(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve session: %w", err)
	}
	if id != nil {
		g.Navigator.Navigate(DashboardPath)
		return false, nil
	}
	return true, nil
}

// ConsumeRedirect returns the remembered path, or the dashboard when none
// was remembered, and forgets it.
func (g *Guards) ConsumeRedirect() (string, error) {
	path, err := g.Redirects.Get()
	if err != nil {
		return "", err
	}
	if err := g.Redirects.Clear(); err != nil {
		return "", err
	}
	if path == "" {
		return DashboardPath, nil
	}
	return path, nil
}

// Run applies guards in order and stops at the first denial or error.
func Run(ctx context.Context, path string, guards ...Func) (bool, error) {
	for _, g := range guards {
		ok, err := g(ctx, path)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
