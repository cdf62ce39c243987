// Package functions serves the remote procedures the client invokes:
// add-book, lend-book and return-book. Every procedure checks that the caller
// administers the library it touches.
package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"libreeze/internal/book"
	"libreeze/internal/httpx"
	"libreeze/internal/lending"
	"libreeze/internal/library"
	"libreeze/internal/validation"

	"go.uber.org/zap"
)

// AdminChecker reports whether a user administers a given library.
type AdminChecker interface {
	IsLibraryAdmin(ctx context.Context, userID, libraryID string) (bool, error)
}

type Handler struct {
	books     book.Repository
	lending   lending.Repository
	libraries AdminChecker
	logger    *zap.Logger
	now       func() time.Time
}

func NewHandler(books book.Repository, lend lending.Repository, libraries AdminChecker, logger *zap.Logger) *Handler {
	return &Handler{
		books:     books,
		lending:   lend,
		libraries: libraries,
		logger:    logger,
		now:       time.Now,
	}
}

// Routes registers the procedures on a mux. Callers wrap the result in the
// auth middleware.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /add-book", h.AddBook)
	mux.HandleFunc("POST /lend-book", h.LendBook)
	mux.HandleFunc("POST /return-book", h.ReturnBook)
	return mux
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validation.Struct(dst); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// requireAdmin writes the error reply itself and returns false when the
// caller may not touch libraryID.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, libraryID string) bool {
	userID := httpx.UserIDFrom(r)
	ok, err := h.libraries.IsLibraryAdmin(r.Context(), userID, libraryID)
	if err != nil {
		h.internal(w, r, "admin check failed", err)
		return false
	}
	if !ok {
		httpx.Error(w, http.StatusForbidden, "only library admins can do this")
		return false
	}
	return true
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		zap.String("request_id", httpx.RequestIDFrom(r)),
		zap.String("user_id", httpx.UserIDFrom(r)),
		zap.Error(err),
	)
	httpx.Error(w, http.StatusInternalServerError, "internal error")
}

// AddBook handles POST /add-book.
func (h *Handler) AddBook(w http.ResponseWriter, r *http.Request) {
	var in book.NewBook
	if !decode(w, r, &in) {
		return
	}
	if !h.requireAdmin(w, r, in.LibraryID) {
		return
	}

	in.ISBN = validation.NormalizeISBN(in.ISBN)
	res, err := h.books.AddToLibrary(r.Context(), in)
	if err != nil {
		h.internal(w, r, "add book failed", err)
		return
	}
	h.logger.Info("book added",
		zap.String("book_id", res.BookID),
		zap.String("library_id", in.LibraryID),
		zap.Int("copies", in.Copies),
	)
	httpx.JSON(w, http.StatusOK, res)
}

// LendBook handles POST /lend-book.
func (h *Handler) LendBook(w http.ResponseWriter, r *http.Request) {
	var in lending.LendRequest
	if !decode(w, r, &in) {
		return
	}
	if in.DueDate.Before(h.now()) {
		httpx.Error(w, http.StatusBadRequest, "due_date must be in the future")
		return
	}

	holding, err := h.books.GetLibraryBook(r.Context(), in.BookID)
	if errors.Is(err, book.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "library book not found")
		return
	}
	if err != nil {
		h.internal(w, r, "lookup library book failed", err)
		return
	}
	if !h.requireAdmin(w, r, holding.LibraryID) {
		return
	}

	tx, err := h.lending.Lend(r.Context(), in)
	switch {
	case errors.Is(err, lending.ErrUnavailable):
		httpx.Error(w, http.StatusConflict, "no copy available")
		return
	case errors.Is(err, lending.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "library book not found")
		return
	case errors.Is(err, lending.ErrMemberNotFound):
		httpx.Error(w, http.StatusNotFound, "member not found")
		return
	case err != nil:
		h.internal(w, r, "lend failed", err)
		return
	}
	h.logger.Info("book lent", zap.String("transaction_id", tx.ID), zap.String("member_id", in.MemberID))
	httpx.JSON(w, http.StatusOK, tx)
}

// ReturnBook handles POST /return-book.
func (h *Handler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	var in lending.ReturnRequest
	if !decode(w, r, &in) {
		return
	}

	libraryID, err := h.lending.LibraryOf(r.Context(), in.TransactionID)
	if errors.Is(err, lending.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		h.internal(w, r, "lookup transaction failed", err)
		return
	}
	if !h.requireAdmin(w, r, libraryID) {
		return
	}

	tx, err := h.lending.Return(r.Context(), in.TransactionID, h.now())
	switch {
	case errors.Is(err, lending.ErrAlreadyReturned):
		httpx.Error(w, http.StatusConflict, "book already returned")
		return
	case errors.Is(err, lending.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "transaction not found")
		return
	case err != nil:
		h.internal(w, r, "return failed", err)
		return
	}
	h.logger.Info("book returned", zap.String("transaction_id", tx.ID))
	httpx.JSON(w, http.StatusOK, tx)
}

var _ AdminChecker = (library.Repository)(nil)
