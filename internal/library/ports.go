package library

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=library

type Repository interface {
	Create(ctx context.Context, adminID string, in NewLibrary) (Library, error)
	GetByID(ctx context.Context, id string) (Library, error)
	ListByIDs(ctx context.Context, ids []string) ([]Library, error)
	ListMemberships(ctx context.Context, userID string) ([]Membership, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	IsLibraryAdmin(ctx context.Context, userID, libraryID string) (bool, error)
}
