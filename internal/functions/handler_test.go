package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libreeze/internal/book"
	"libreeze/internal/httpx"
	"libreeze/internal/lending"
	"libreeze/internal/library"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	adminID   = "5b0c8e8e-0000-4000-8000-000000000001"
	memberID  = "5b0c8e8e-0000-4000-8000-000000000002"
	libraryID = "5b0c8e8e-0000-4000-8000-0000000000aa"
	holdingID = "5b0c8e8e-0000-4000-8000-0000000000bb"
	txID      = "5b0c8e8e-0000-4000-8000-0000000000cc"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	books     *book.MockRepository
	lending   *lending.MockRepository
	libraries *library.MockRepository
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		books:     book.NewMockRepository(ctrl),
		lending:   lending.NewMockRepository(ctrl),
		libraries: library.NewMockRepository(ctrl),
	}
	h := NewHandler(f.books, f.lending, f.libraries, zaptest.NewLogger(t))
	h.now = func() time.Time { return fixedNow }
	f.handler = h.Routes()
	return f
}

func (f *fixture) call(path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r = r.WithContext(httpx.ContextWithUser(r.Context(), adminID, "admin@example.com"))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

const addBody = `{"isbn":"978-0-06-085398-3","title":"Good Omens","authors":["Terry Pratchett","Neil Gaiman"],"library_id":"` + libraryID + `","copies":2}`

func TestHandler_AddBook(t *testing.T) {
	t.Run("admin adds with normalized isbn", func(t *testing.T) {
		f := newFixture(t)
		f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(true, nil)
		f.books.EXPECT().AddToLibrary(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in book.NewBook) (book.AddResult, error) {
				assert.Equal(t, "9780060853983", in.ISBN)
				assert.Equal(t, []string{"Terry Pratchett", "Neil Gaiman"}, in.Authors)
				return book.AddResult{BookID: "b1", LibraryBookID: "lb1"}, nil
			})

		w := f.call("/add-book", addBody)

		require.Equal(t, http.StatusOK, w.Code)
		var res book.AddResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.Equal(t, book.AddResult{BookID: "b1", LibraryBookID: "lb1"}, res)
	})

	t.Run("non admin is forbidden", func(t *testing.T) {
		f := newFixture(t)
		f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(false, nil)

		w := f.call("/add-book", addBody)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NotEmpty(t, errorOf(t, w))
	})

	t.Run("invalid payload", func(t *testing.T) {
		f := newFixture(t)

		w := f.call("/add-book", `{"isbn":"123","title":"","authors":[],"library_id":"x","copies":0}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, errorOf(t, w))
	})

	t.Run("malformed json", func(t *testing.T) {
		f := newFixture(t)

		w := f.call("/add-book", `{`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid JSON body", errorOf(t, w))
	})

	t.Run("repository failure", func(t *testing.T) {
		f := newFixture(t)
		f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(true, nil)
		f.books.EXPECT().AddToLibrary(gomock.Any(), gomock.Any()).Return(book.AddResult{}, errors.New("db down"))

		w := f.call("/add-book", addBody)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal error", errorOf(t, w))
	})
}

func lendBody(due time.Time) string {
	return `{"book_id":"` + holdingID + `","member_id":"` + memberID + `","due_date":"` + due.Format(time.RFC3339) + `"}`
}

func TestHandler_LendBook(t *testing.T) {
	due := fixedNow.Add(14 * 24 * time.Hour)
	holding := book.LibraryBook{ID: holdingID, LibraryID: libraryID, Copies: 1, Available: 1}

	tests := []struct {
		name     string
		lendErr  error
		wantCode int
		wantErr  string
	}{
		{"lent", nil, http.StatusOK, ""},
		{"no copy left", lending.ErrUnavailable, http.StatusConflict, "no copy available"},
		{"holding vanished", lending.ErrNotFound, http.StatusNotFound, "library book not found"},
		{"unknown member", lending.ErrMemberNotFound, http.StatusNotFound, "member not found"},
		{"db failure", errors.New("db down"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.books.EXPECT().GetLibraryBook(gomock.Any(), holdingID).Return(holding, nil)
			f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(true, nil)
			f.lending.EXPECT().Lend(gomock.Any(), lending.LendRequest{BookID: holdingID, MemberID: memberID, DueDate: due}).
				Return(lending.Transaction{ID: txID, LibraryBookID: holdingID, UserID: memberID, Status: lending.StatusBorrowed}, tt.lendErr)

			w := f.call("/lend-book", lendBody(due))

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				var tx lending.Transaction
				require.NoError(t, json.NewDecoder(w.Body).Decode(&tx))
				assert.Equal(t, txID, tx.ID)
				assert.Equal(t, lending.StatusBorrowed, tx.Status)
				return
			}
			assert.Equal(t, tt.wantErr, errorOf(t, w))
		})
	}

	t.Run("due date in the past", func(t *testing.T) {
		f := newFixture(t)

		w := f.call("/lend-book", lendBody(fixedNow.Add(-time.Hour)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown holding", func(t *testing.T) {
		f := newFixture(t)
		f.books.EXPECT().GetLibraryBook(gomock.Any(), holdingID).Return(book.LibraryBook{}, book.ErrNotFound)

		w := f.call("/lend-book", lendBody(due))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("admin of another library", func(t *testing.T) {
		f := newFixture(t)
		f.books.EXPECT().GetLibraryBook(gomock.Any(), holdingID).Return(holding, nil)
		f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(false, nil)

		w := f.call("/lend-book", lendBody(due))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandler_ReturnBook(t *testing.T) {
	body := `{"transaction_id":"` + txID + `"}`

	t.Run("returned", func(t *testing.T) {
		f := newFixture(t)
		f.lending.EXPECT().LibraryOf(gomock.Any(), txID).Return(libraryID, nil)
		f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(true, nil)
		f.lending.EXPECT().Return(gomock.Any(), txID, fixedNow).
			Return(lending.Transaction{ID: txID, Status: lending.StatusReturned, ReturnedDate: &fixedNow}, nil)

		w := f.call("/return-book", body)

		require.Equal(t, http.StatusOK, w.Code)
		var tx lending.Transaction
		require.NoError(t, json.NewDecoder(w.Body).Decode(&tx))
		assert.Equal(t, lending.StatusReturned, tx.Status)
		require.NotNil(t, tx.ReturnedDate)
		assert.True(t, fixedNow.Equal(*tx.ReturnedDate))
	})

	t.Run("already returned", func(t *testing.T) {
		f := newFixture(t)
		f.lending.EXPECT().LibraryOf(gomock.Any(), txID).Return(libraryID, nil)
		f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(true, nil)
		f.lending.EXPECT().Return(gomock.Any(), txID, fixedNow).Return(lending.Transaction{}, lending.ErrAlreadyReturned)

		w := f.call("/return-book", body)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "book already returned", errorOf(t, w))
	})

	t.Run("unknown transaction", func(t *testing.T) {
		f := newFixture(t)
		f.lending.EXPECT().LibraryOf(gomock.Any(), txID).Return("", lending.ErrNotFound)

		w := f.call("/return-book", body)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("admin lookup fails", func(t *testing.T) {
		f := newFixture(t)
		f.lending.EXPECT().LibraryOf(gomock.Any(), txID).Return(libraryID, nil)
		f.libraries.EXPECT().IsLibraryAdmin(gomock.Any(), adminID, libraryID).Return(false, errors.New("timeout"))

		w := f.call("/return-book", body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("bad transaction id", func(t *testing.T) {
		f := newFixture(t)

		w := f.call("/return-book", `{"transaction_id":"nope"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_RejectsGet(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/add-book", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
