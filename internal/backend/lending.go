package backend

import (
	"context"
	"time"

	"libreeze/internal/lending"
	"libreeze/internal/validation"
)

// GetLendingHistory lists transactions newest first with their book and
// member. An empty memberID lists every member's.
func (s *Service) GetLendingHistory(ctx context.Context, memberID string) ([]lending.Record, error) {
	rs, err := s.lending.History(ctx, memberID)
	if err != nil {
		return nil, backendErr("get lending history", err)
	}
	return rs, nil
}

// GetCurrentBorrowings is GetLendingHistory limited to borrowed and overdue loans.
func (s *Service) GetCurrentBorrowings(ctx context.Context, memberID string) ([]lending.Record, error) {
	rs, err := s.lending.Current(ctx, memberID)
	if err != nil {
		return nil, backendErr("get current borrowings", err)
	}
	return rs, nil
}

// GetAllLendingHistory returns every loan of userID flattened for display.
func (s *Service) GetAllLendingHistory(ctx context.Context, userID string) ([]lending.LendedBook, error) {
	rows, err := s.lending.HistoryRows(ctx, userID)
	if err != nil {
		return nil, backendErr("get all lending history", err)
	}
	return lending.Flatten(rows), nil
}

// LendBook lends one copy of the library holding libraryBookID to memberID.
func (s *Service) LendBook(ctx context.Context, libraryBookID, memberID string, due time.Time) (lending.Transaction, error) {
	const op = "lend-book"
	req := lending.LendRequest{BookID: libraryBookID, MemberID: memberID, DueDate: due}
	if err := validation.Struct(req); err != nil {
		return lending.Transaction{}, invalid(op, err)
	}
	return s.transaction(ctx, op, req)
}

func (s *Service) ReturnBook(ctx context.Context, transactionID string) (lending.Transaction, error) {
	const op = "return-book"
	req := lending.ReturnRequest{TransactionID: transactionID}
	if err := validation.Struct(req); err != nil {
		return lending.Transaction{}, invalid(op, err)
	}
	return s.transaction(ctx, op, req)
}

func (s *Service) transaction(ctx context.Context, op string, req any) (lending.Transaction, error) {
	var tx lending.Transaction
	if err := s.invoke(ctx, op, req, &tx); err != nil {
		return lending.Transaction{}, err
	}
	if err := validation.Struct(tx); err != nil {
		return lending.Transaction{}, backendErr(op+": unexpected reply", err)
	}
	if err := tx.Validate(); err != nil {
		return lending.Transaction{}, backendErr(op+": unexpected reply", err)
	}
	return tx, nil
}
