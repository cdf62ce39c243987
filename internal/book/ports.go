package book

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

// Repository defines the contract for catalog storage.
type Repository interface {
	List(ctx context.Context, term string) ([]Book, error)
	GetByID(ctx context.Context, id string) (Book, error)
	GetByISBN(ctx context.Context, isbn string) (Book, error)
	GetLibraryBook(ctx context.Context, id string) (LibraryBook, error)
	AddToLibrary(ctx context.Context, in NewBook) (AddResult, error)
}
