package backend

import (
	"context"

	"libreeze/internal/auth"
	"libreeze/internal/library"
	"libreeze/internal/user"
	"libreeze/internal/validation"
)

// LibraryOptionsPath is where sign-up confirmation links land.
const LibraryOptionsPath = "/auth/library-options"

type signUpInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	FullName string `validate:"required"`
}

// SignUp registers the identity and creates its profile row. The identity
// is returned even when the platform holds the session back until the email
// is confirmed.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*auth.Identity, error) {
	const op = "sign up"
	if err := validation.Struct(signUpInput{Email: email, Password: password, FullName: fullName}); err != nil {
		return nil, invalid(op, err)
	}

	id, _, err := s.auth.SignUp(ctx, email, password, fullName, s.siteURL+LibraryOptionsPath)
	if err != nil {
		return nil, &AuthError{Op: op, Err: err}
	}
	if id == nil {
		return nil, nil
	}

	if err := s.users.Create(ctx, &user.User{ID: id.ID, FullName: fullName, Email: email}); err != nil {
		return nil, backendErr("create profile", err)
	}
	return id, nil
}

type signInInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	const op = "sign in"
	if err := validation.Struct(signInInput{Email: email, Password: password}); err != nil {
		return nil, invalid(op, err)
	}
	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, &AuthError{Op: op, Err: err}
	}
	return sess, nil
}

func (s *Service) SignOut(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return &AuthError{Op: "sign out", Err: err}
	}
	return nil
}

// CreateLibrary creates a library and makes adminID its administrator.
func (s *Service) CreateLibrary(ctx context.Context, adminID, name, address, email, phone string) (library.Library, error) {
	const op = "create library"
	in := library.NewLibrary{Name: name, Address: address, ContactEmail: email, ContactPhone: phone}
	if err := validation.Struct(in); err != nil {
		return library.Library{}, invalid(op, err)
	}
	lib, err := s.libraries.Create(ctx, adminID, in)
	if err != nil {
		return library.Library{}, backendErr(op, err)
	}
	return lib, nil
}

func (s *Service) GetLibraryByID(ctx context.Context, id string) (library.Library, error) {
	if err := checkID("get library", id); err != nil {
		return library.Library{}, err
	}
	lib, err := s.libraries.GetByID(ctx, id)
	if err != nil {
		return library.Library{}, lookupErr("get library", err, library.ErrNotFound)
	}
	return lib, nil
}

func (s *Service) GetUserLibraries(ctx context.Context, userID string) ([]library.Membership, error) {
	ms, err := s.libraries.ListMemberships(ctx, userID)
	if err != nil {
		return nil, backendErr("get user libraries", err)
	}
	return ms, nil
}

// GetUserLibrarySummaries shapes the user's memberships into profile rows.
func (s *Service) GetUserLibrarySummaries(ctx context.Context, userID string) ([]library.UserLibrary, error) {
	const op = "get user library summaries"
	ms, err := s.libraries.ListMemberships(ctx, userID)
	if err != nil {
		return nil, backendErr(op, err)
	}
	if len(ms) == 0 {
		return []library.UserLibrary{}, nil
	}

	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.LibraryID
	}
	libs, err := s.libraries.ListByIDs(ctx, ids)
	if err != nil {
		return nil, backendErr(op, err)
	}
	names := make(map[string]string, len(libs))
	for _, l := range libs {
		names[l.ID] = l.Name
	}
	return library.Summarize(userID, ms, names), nil
}

func (s *Service) GetUsers(ctx context.Context, term string) ([]user.User, error) {
	us, err := s.users.List(ctx, term)
	if err != nil {
		return nil, backendErr("get users", err)
	}
	return us, nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if err := checkID("get user", id); err != nil {
		return user.User{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, lookupErr("get user", err, user.ErrNotFound)
	}
	return u, nil
}

func (s *Service) UpdateUserProfile(ctx context.Context, id string, update user.ProfileUpdate) (user.User, error) {
	const op = "update profile"
	if err := validation.Struct(update); err != nil {
		return user.User{}, invalid(op, err)
	}
	if err := checkID(op, id); err != nil {
		return user.User{}, err
	}
	u, err := s.users.UpdateProfile(ctx, id, update)
	if err != nil {
		return user.User{}, lookupErr(op, err, user.ErrNotFound)
	}
	return u, nil
}
