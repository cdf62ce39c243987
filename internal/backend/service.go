// Package backend is the client's data access façade: one method per
// platform operation, each issuing a single table query, auth call, storage
// upload or remote-function call and returning typed results or typed errors.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"libreeze/internal/auth"
	"libreeze/internal/book"
	"libreeze/internal/lending"
	"libreeze/internal/library"
	"libreeze/internal/platform/functions"
	"libreeze/internal/user"
	"libreeze/internal/validation"

	"go.uber.org/zap"
)

// AuthPlatform is the auth half of the platform.
type AuthPlatform interface {
	SignUp(ctx context.Context, email, password, fullName, redirectTo string) (*auth.Identity, *auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context) error
}

// TokenSource yields the current access token, "" when signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type FunctionInvoker interface {
	Invoke(ctx context.Context, name, token string, in, out any) error
}

type ObjectUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Auth      AuthPlatform
	Tokens    TokenSource
	Functions FunctionInvoker
	Objects   ObjectUploader
	Books     book.Repository
	Users     user.Repository
	Libraries library.Repository
	Lending   lending.Repository
	// SiteURL is the origin sign-up confirmation links point back to.
	SiteURL string
	Logger  *zap.Logger
}

type Service struct {
	auth      AuthPlatform
	tokens    TokenSource
	functions FunctionInvoker
	objects   ObjectUploader
	books     book.Repository
	users     user.Repository
	libraries library.Repository
	lending   lending.Repository
	siteURL   string
	logger    *zap.Logger
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		auth:      d.Auth,
		tokens:    d.Tokens,
		functions: d.Functions,
		objects:   d.Objects,
		books:     d.Books,
		users:     d.Users,
		libraries: d.Libraries,
		lending:   d.Lending,
		siteURL:   strings.TrimRight(d.SiteURL, "/"),
		logger:    logger,
	}
}

func invalid(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
}

func backendErr(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

// lookupErr maps a repository miss to ErrNotFound and anything else to a
// BackendError.
func lookupErr(op string, err, notFound error) error {
	if errors.Is(err, notFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return backendErr(op, err)
}

// checkID rejects an id that cannot name a row, as if the lookup missed.
func checkID(op, id string) error {
	if !validation.IsUUID(id) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// invoke calls a remote function with the caller's token. A missing token
// fails with ErrNotAuthenticated before anything is sent.
func (s *Service) invoke(ctx context.Context, name string, in, out any) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return &AuthError{Op: name, Err: err}
	}
	if token == "" {
		return fmt.Errorf("%s: %w", name, ErrNotAuthenticated)
	}

	err = s.functions.Invoke(ctx, name, token, in, out)
	if err == nil {
		return nil
	}
	var fe *functions.Error
	if errors.As(err, &fe) {
		return &NetworkError{Op: name, Status: fe.Status, Message: fe.Message, Err: err}
	}
	return &NetworkError{Op: name, Err: err}
}
