package lending

import (
	"context"
	"time"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=lending

type Repository interface {
	// History returns transactions newest first; an empty memberID means every member.
	History(ctx context.Context, memberID string) ([]Record, error)
	// Current is History restricted to borrowed and overdue transactions.
	Current(ctx context.Context, memberID string) ([]Record, error)
	HistoryRows(ctx context.Context, userID string) ([]HistoryRow, error)
	LibraryOf(ctx context.Context, transactionID string) (string, error)
	Lend(ctx context.Context, req LendRequest) (Transaction, error)
	Return(ctx context.Context, transactionID string, at time.Time) (Transaction, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}
