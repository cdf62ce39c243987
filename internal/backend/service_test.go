package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"libreeze/internal/auth"
	"libreeze/internal/book"
	"libreeze/internal/lending"
	"libreeze/internal/library"
	"libreeze/internal/platform/functions"
	"libreeze/internal/user"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	libraryID     = "5f1c9a52-8f7e-4c1e-9a57-2f6b3c1d0e11"
	libraryBookID = "0b7e4f52-2a6d-4d0f-8a3c-9d4e5f6a7b8c"
	memberID      = "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d"
	transactionID = "1d2c3b4a-5f6e-4d7c-8b9a-0f1e2d3c4b5a"
)

type staticTokens string

func (t staticTokens) Token(context.Context) (string, error) { return string(t), nil }

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) SignUp(ctx context.Context, email, password, fullName, redirectTo string) (*auth.Identity, *auth.Session, error) {
	args := m.Called(ctx, email, password, fullName, redirectTo)
	id, _ := args.Get(0).(*auth.Identity)
	s, _ := args.Get(1).(*auth.Session)
	return id, s, args.Error(2)
}

func (m *mockAuth) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *mockAuth) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingUploader struct {
	key         string
	contentType string
	body        string
	err         error
}

func (u *recordingUploader) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	b, _ := io.ReadAll(body)
	u.key, u.contentType, u.body = key, contentType, string(b)
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.example.com/libreeze/" + key, nil
}

// functionsServer answers remote-function calls with handler and counts them.
func functionsServer(t *testing.T, handler http.HandlerFunc) (*functions.Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return functions.NewClient(srv.URL, "anon", 0), &calls
}

func replyJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func validNewBook() book.NewBook {
	return book.NewBook{
		ISBN: "978-0-441-17271-9", Title: "Dune", Authors: []string{"Frank Herbert"},
		LibraryID: libraryID, Copies: 1,
	}
}

func TestPrivilegedCallsWithoutTokenSendNothing(t *testing.T) {
	fns, calls := functionsServer(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, http.StatusOK, map[string]string{})
	})
	svc := New(Deps{Tokens: staticTokens(""), Functions: fns})
	ctx := context.Background()

	_, err := svc.AddBook(ctx, validNewBook())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.LendBook(ctx, libraryBookID, memberID, time.Now().Add(14*24*time.Hour))
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.ReturnBook(ctx, transactionID)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestAddBook(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		fns, _ := functionsServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/add-book", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var in book.NewBook
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "9780441172719", in.ISBN)
			replyJSON(w, http.StatusOK, book.AddResult{BookID: "b-1", LibraryBookID: "lb-1"})
		})
		svc := New(Deps{Tokens: staticTokens("tok"), Functions: fns})

		res, err := svc.AddBook(ctx, validNewBook())
		require.NoError(t, err)
		assert.Equal(t, book.AddResult{BookID: "b-1", LibraryBookID: "lb-1"}, res)
	})

	t.Run("function error becomes NetworkError", func(t *testing.T) {
		fns, _ := functionsServer(t, func(w http.ResponseWriter, r *http.Request) {
			replyJSON(w, http.StatusForbidden, map[string]string{"error": "not an admin of this library"})
		})
		svc := New(Deps{Tokens: staticTokens("tok"), Functions: fns})

		_, err := svc.AddBook(ctx, validNewBook())
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, http.StatusForbidden, netErr.Status)
		assert.Equal(t, "not an admin of this library", netErr.Message)
	})

	t.Run("unexpected reply shape is rejected", func(t *testing.T) {
		fns, _ := functionsServer(t, func(w http.ResponseWriter, r *http.Request) {
			replyJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
		})
		svc := New(Deps{Tokens: staticTokens("tok"), Functions: fns})

		_, err := svc.AddBook(ctx, validNewBook())
		var beErr *BackendError
		assert.ErrorAs(t, err, &beErr)
	})

	t.Run("invalid input is caught before any call", func(t *testing.T) {
		fns, calls := functionsServer(t, func(w http.ResponseWriter, r *http.Request) {})
		svc := New(Deps{Tokens: staticTokens("tok"), Functions: fns})

		in := validNewBook()
		in.ISBN = "123"
		in.Authors = nil
		_, err := svc.AddBook(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Zero(t, atomic.LoadInt32(calls))
	})
}

func TestLendAndReturnBook(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	returned := due.Add(-24 * time.Hour)

	fns, _ := functionsServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lend-book":
			var in lending.LendRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, libraryBookID, in.BookID)
			assert.True(t, due.Equal(in.DueDate))
			replyJSON(w, http.StatusOK, lending.Transaction{
				ID: transactionID, LibraryBookID: libraryBookID, UserID: memberID,
				BorrowedDate: time.Now(), DueDate: &due, Status: lending.StatusBorrowed,
			})
		case "/return-book":
			replyJSON(w, http.StatusOK, lending.Transaction{
				ID: transactionID, LibraryBookID: libraryBookID, UserID: memberID,
				BorrowedDate: time.Now(), DueDate: &due, ReturnedDate: &returned, Status: lending.StatusReturned,
			})
		}
	})
	svc := New(Deps{Tokens: staticTokens("tok"), Functions: fns})

	tx, err := svc.LendBook(ctx, libraryBookID, memberID, due)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusBorrowed, tx.Status)

	tx, err = svc.ReturnBook(ctx, transactionID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusReturned, tx.Status)
	require.NotNil(t, tx.ReturnedDate)
}

func TestReturnBook_InconsistentReplyIsRejected(t *testing.T) {
	fns, _ := functionsServer(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, http.StatusOK, lending.Transaction{
			ID: transactionID, LibraryBookID: libraryBookID, UserID: memberID, Status: lending.StatusReturned,
		})
	})
	svc := New(Deps{Tokens: staticTokens("tok"), Functions: fns})

	_, err := svc.ReturnBook(context.Background(), transactionID)
	var beErr *BackendError
	assert.ErrorAs(t, err, &beErr)
}

func TestBookLookups(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	books := book.NewMockRepository(ctrl)
	svc := New(Deps{Books: books})
	ctx := context.Background()

	t.Run("unknown isbn is an empty result", func(t *testing.T) {
		books.EXPECT().GetByISBN(ctx, "9780000000000").Return(book.Book{}, book.ErrNotFound)

		b, found, err := svc.GetBookByISBN(ctx, "978-0-000-00000-0")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, book.Book{}, b)
	})

	t.Run("known isbn", func(t *testing.T) {
		books.EXPECT().GetByISBN(ctx, "9780441172719").Return(book.Book{ID: "b-1", Title: "Dune"}, nil)

		b, found, err := svc.GetBookByISBN(ctx, "9780441172719")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "Dune", b.Title)
	})

	t.Run("isbn lookup failure is a BackendError", func(t *testing.T) {
		books.EXPECT().GetByISBN(ctx, "9780441172719").Return(book.Book{}, errors.New("connection reset"))

		_, _, err := svc.GetBookByISBN(ctx, "9780441172719")
		var beErr *BackendError
		assert.ErrorAs(t, err, &beErr)
	})

	t.Run("unknown id is NotFound", func(t *testing.T) {
		books.EXPECT().GetByID(ctx, libraryBookID).Return(book.Book{}, book.ErrNotFound)

		_, err := svc.GetBookByID(ctx, libraryBookID)
		assert.ErrorIs(t, err, ErrNotFound)
		var beErr *BackendError
		assert.False(t, errors.As(err, &beErr))
	})

	t.Run("malformed id is NotFound without a query", func(t *testing.T) {
		for _, id := range []string{"missing", "", "42", "9780441172719"} {
			_, err := svc.GetBookByID(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound, id)
			var beErr *BackendError
			assert.False(t, errors.As(err, &beErr), id)
		}
	})

	t.Run("search passes the term through", func(t *testing.T) {
		books.EXPECT().List(ctx, "dune").Return([]book.Book{{Title: "Dune"}}, nil)

		bs, err := svc.GetBooks(ctx, "dune")
		require.NoError(t, err)
		assert.Len(t, bs, 1)
	})
}

func TestGetAllLendingHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := lending.NewMockRepository(ctrl)
	svc := New(Deps{Lending: repo})
	ctx := context.Background()

	t.Run("no transactions is an empty slice", func(t *testing.T) {
		repo.EXPECT().HistoryRows(ctx, "u-0").Return([]lending.HistoryRow{}, nil)

		got, err := svc.GetAllLendingHistory(ctx, "u-0")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("authors are comma-joined in row order", func(t *testing.T) {
		repo.EXPECT().HistoryRows(ctx, "u-1").Return([]lending.HistoryRow{{
			TransactionID: "tx-1", UserID: "u-1", Status: lending.StatusBorrowed,
			BookTitle: "Good Omens", Authors: []string{"Terry Pratchett", "Neil Gaiman"},
		}}, nil)

		got, err := svc.GetAllLendingHistory(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Terry Pratchett, Neil Gaiman", got[0].Authors)
	})

	t.Run("failure is a BackendError", func(t *testing.T) {
		repo.EXPECT().HistoryRows(ctx, "u-2").Return(nil, errors.New("timeout"))

		_, err := svc.GetAllLendingHistory(ctx, "u-2")
		var beErr *BackendError
		assert.ErrorAs(t, err, &beErr)
	})
}

func TestGetUserLibrarySummaries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	libs := library.NewMockRepository(ctrl)
	svc := New(Deps{Libraries: libs})
	ctx := context.Background()
	since := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	libs.EXPECT().ListMemberships(ctx, "u-1").Return([]library.Membership{
		{LibraryID: "l-1", UserID: "u-1", IsAdmin: true, MemberSince: since},
		{LibraryID: "l-2", UserID: "u-1", MemberSince: since},
	}, nil)
	libs.EXPECT().ListByIDs(ctx, []string{"l-1", "l-2"}).Return([]library.Library{
		{ID: "l-1", Name: "Central"}, {ID: "l-2", Name: "Branch"},
	}, nil)

	got, err := svc.GetUserLibrarySummaries(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, library.TypeAdministrator, got[0].MembershipType)
	assert.Equal(t, "Branch", got[1].LibraryName)
	assert.Equal(t, library.TypeReader, got[1].MembershipType)
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the profile row", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := user.NewMockRepository(ctrl)
		a := &mockAuth{}
		svc := New(Deps{Auth: a, Users: users, SiteURL: "https://app.example.com/"})

		a.On("SignUp", ctx, "a@b.com", "secret1", "A", "https://app.example.com/auth/library-options").
			Return(&auth.Identity{ID: "u-9", Email: "a@b.com"}, nil, nil)
		users.EXPECT().Create(ctx, &user.User{ID: "u-9", FullName: "A", Email: "a@b.com"}).Return(nil)

		id, err := svc.SignUp(ctx, "a@b.com", "secret1", "A")
		require.NoError(t, err)
		assert.Equal(t, "u-9", id.ID)
		a.AssertExpectations(t)
	})

	t.Run("registration conflict is an AuthError", func(t *testing.T) {
		a := &mockAuth{}
		svc := New(Deps{Auth: a})
		a.On("SignUp", ctx, "a@b.com", "secret1", "A", mock.Anything).
			Return(nil, nil, &auth.APIError{Status: 422, Message: "User already registered"})

		_, err := svc.SignUp(ctx, "a@b.com", "secret1", "A")
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, err.Error(), "User already registered")
	})

	t.Run("short password never reaches the platform", func(t *testing.T) {
		a := &mockAuth{}
		svc := New(Deps{Auth: a})

		_, err := svc.SignUp(ctx, "a@b.com", "123", "A")
		assert.ErrorIs(t, err, ErrInvalidInput)
		a.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSignInAndOut(t *testing.T) {
	ctx := context.Background()
	a := &mockAuth{}
	svc := New(Deps{Auth: a})

	a.On("SignInWithPassword", ctx, "a@b.com", "wrong").Return(nil, &auth.APIError{Status: 400, Message: "Invalid login credentials"})
	a.On("SignInWithPassword", ctx, "a@b.com", "secret1").Return(&auth.Session{Identity: auth.Identity{ID: "u-9"}}, nil)
	a.On("SignOut", ctx).Return(errors.New("network down"))

	_, err := svc.SignIn(ctx, "a@b.com", "wrong")
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)

	s, err := svc.SignIn(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u-9", s.Identity.ID)

	assert.ErrorAs(t, svc.SignOut(ctx), &authErr)
}

func TestUserLookups(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := user.NewMockRepository(ctrl)
	svc := New(Deps{Users: users})
	ctx := context.Background()

	users.EXPECT().GetByID(ctx, memberID).Return(user.User{}, user.ErrNotFound)
	_, err := svc.GetUserByID(ctx, memberID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	bad := "not-an-email"
	_, err = svc.UpdateUserProfile(ctx, memberID, user.ProfileUpdate{Email: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	name := "Ada"
	_, err = svc.UpdateUserProfile(ctx, "u-1", user.ProfileUpdate{FullName: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	users.EXPECT().UpdateProfile(ctx, memberID, user.ProfileUpdate{FullName: &name}).Return(user.User{ID: memberID, FullName: "Ada"}, nil)
	u, err := svc.UpdateUserProfile(ctx, memberID, user.ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FullName)
}

func TestGetLibraryByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	libraries := library.NewMockRepository(ctrl)
	svc := New(Deps{Libraries: libraries})
	ctx := context.Background()

	libraries.EXPECT().GetByID(ctx, libraryID).Return(library.Library{ID: libraryID, Name: "Central"}, nil)
	lib, err := svc.GetLibraryByID(ctx, libraryID)
	require.NoError(t, err)
	assert.Equal(t, "Central", lib.Name)

	_, err = svc.GetLibraryByID(ctx, "central")
	assert.ErrorIs(t, err, ErrNotFound)
	var beErr *BackendError
	assert.False(t, errors.As(err, &beErr))
}

func TestUploads(t *testing.T) {
	ctx := context.Background()

	t.Run("book cover keyed by isbn", func(t *testing.T) {
		up := &recordingUploader{}
		svc := New(Deps{Objects: up})

		u, err := svc.UploadBookCover(ctx, File{Name: "Cover.JPG", ContentType: "image/jpeg", Body: strings.NewReader("jpg")}, "9780441172719")
		require.NoError(t, err)
		assert.Equal(t, "book-covers/9780441172719.jpg", up.key)
		assert.Equal(t, "image/jpeg", up.contentType)
		assert.Equal(t, "jpg", up.body)
		assert.Equal(t, "https://cdn.example.com/libreeze/book-covers/9780441172719.jpg", u)
	})

	t.Run("profile photo keyed by user id", func(t *testing.T) {
		up := &recordingUploader{}
		svc := New(Deps{Objects: up})

		_, err := svc.UploadProfilePhoto(ctx, File{Name: "me.png", Body: strings.NewReader("png")}, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "profile-photos/u-1.png", up.key)
	})

	t.Run("storage failure is a BackendError", func(t *testing.T) {
		up := &recordingUploader{err: errors.New("AccessDenied")}
		svc := New(Deps{Objects: up})

		_, err := svc.UploadProfilePhoto(ctx, File{Name: "me.png", Body: strings.NewReader("png")}, "u-1")
		var beErr *BackendError
		assert.ErrorAs(t, err, &beErr)
	})
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		prefix, id, name, want string
	}{
		{"book-covers", "123", "front.png", "book-covers/123.png"},
		{"book-covers", "123", "archive.tar.GZ", "book-covers/123.gz"},
		{"profile-photos", "u-1", "avatar", "profile-photos/u-1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, storageKey(tt.prefix, tt.id, tt.name))
	}
}
