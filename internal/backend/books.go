package backend

import (
	"context"
	"errors"

	"libreeze/internal/book"
	"libreeze/internal/validation"
)

// GetBooks lists the catalog by title. A non-empty term keeps books whose
// title, author or ISBN contains it, ignoring case.
func (s *Service) GetBooks(ctx context.Context, term string) ([]book.Book, error) {
	bs, err := s.books.List(ctx, term)
	if err != nil {
		return nil, backendErr("get books", err)
	}
	return bs, nil
}

func (s *Service) GetBookByID(ctx context.Context, id string) (book.Book, error) {
	if err := checkID("get book", id); err != nil {
		return book.Book{}, err
	}
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return book.Book{}, lookupErr("get book", err, book.ErrNotFound)
	}
	return b, nil
}

// GetBookByISBN reports found=false, without error, for an unknown ISBN.
func (s *Service) GetBookByISBN(ctx context.Context, isbn string) (book.Book, bool, error) {
	b, err := s.books.GetByISBN(ctx, validation.NormalizeISBN(isbn))
	if errors.Is(err, book.ErrNotFound) {
		return book.Book{}, false, nil
	}
	if err != nil {
		return book.Book{}, false, backendErr("get book by isbn", err)
	}
	return b, true, nil
}

// AddBook asks the add-book function to catalog in and stock it in its library.
func (s *Service) AddBook(ctx context.Context, in book.NewBook) (book.AddResult, error) {
	const op = "add-book"
	in.ISBN = validation.NormalizeISBN(in.ISBN)
	if err := validation.Struct(in); err != nil {
		return book.AddResult{}, invalid(op, err)
	}

	var out book.AddResult
	if err := s.invoke(ctx, op, in, &out); err != nil {
		return book.AddResult{}, err
	}
	if err := validation.Struct(out); err != nil {
		return book.AddResult{}, backendErr(op+": unexpected reply", err)
	}
	return out, nil
}
