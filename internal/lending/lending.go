package lending

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("lending transaction not found")
	ErrAlreadyReturned = errors.New("book already returned")
	ErrUnavailable     = errors.New("no copy available to lend")
	ErrMemberNotFound  = errors.New("member not found")
)

type Status string

const (
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"
	StatusOverdue  Status = "overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBorrowed, StatusReturned, StatusOverdue:
		return true
	}
	return false
}

// Transaction is one loan of a library holding to a user.
type Transaction struct {
	ID            string     `json:"id" validate:"required"`
	LibraryBookID string     `json:"library_book_id" validate:"required"`
	UserID        string     `json:"user_id" validate:"required"`
	BorrowedDate  time.Time  `json:"borrowed_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ReturnedDate  *time.Time `json:"returned_date,omitempty"`
	Status        Status     `json:"status" validate:"required"`
}

// Validate checks the status and that a return date is present exactly when
// the transaction is returned.
func (t Transaction) Validate() error {
	if !t.Status.Valid() {
		return fmt.Errorf("unknown lending status %q", t.Status)
	}
	if (t.Status == StatusReturned) != (t.ReturnedDate != nil) {
		return fmt.Errorf("transaction %s: returned_date must be set exactly when status is returned", t.ID)
	}
	return nil
}

// BookRef and MemberRef are the joined columns of a Record.
type BookRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

type MemberRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Record is a transaction joined with its book and member, for admin views.
type Record struct {
	Transaction
	Book   BookRef   `json:"book"`
	Member MemberRef `json:"member"`
}

// HistoryRow is a transaction joined with library, book, publisher and the
// ordered author list, as read from the tables.
type HistoryRow struct {
	TransactionID string
	UserID        string
	Status        Status
	BorrowedDate  time.Time
	DueDate       *time.Time
	ReturnedDate  *time.Time
	LibraryBookID string
	LibraryID     string
	LibraryName   string
	BookID        string
	BookTitle     string
	Publisher     *string
	Authors       []string
}

// LendedBook is the flattened display form of a HistoryRow.
type LendedBook struct {
	UserID               string     `json:"user_id"`
	LibraryID            string     `json:"library_id"`
	LibraryName          string     `json:"library_name"`
	LibraryBookID        string     `json:"library_book_id"`
	BookID               string     `json:"book_id"`
	BookTitle            string     `json:"book_title"`
	Authors              string     `json:"authors"`
	Publisher            string     `json:"publisher"`
	LendingTransactionID string     `json:"lending_transaction_id"`
	Status               Status     `json:"status"`
	BorrowDate           time.Time  `json:"borrow_date"`
	DueDate              *time.Time `json:"due_date,omitempty"`
	ReturnedDate         *time.Time `json:"returned_date,omitempty"`
}

// Flatten turns joined rows into LendedBooks, keeping row order and joining
// author names in the order they were read. It never returns nil.
func Flatten(rows []HistoryRow) []LendedBook {
	out := make([]LendedBook, 0, len(rows))
	for _, r := range rows {
		lb := LendedBook{
			UserID:               r.UserID,
			LibraryID:            r.LibraryID,
			LibraryName:          r.LibraryName,
			LibraryBookID:        r.LibraryBookID,
			BookID:               r.BookID,
			BookTitle:            r.BookTitle,
			Authors:              strings.Join(r.Authors, ", "),
			LendingTransactionID: r.TransactionID,
			Status:               r.Status,
			BorrowDate:           r.BorrowedDate,
			DueDate:              r.DueDate,
			ReturnedDate:         r.ReturnedDate,
		}
		if r.Publisher != nil {
			lb.Publisher = *r.Publisher
		}
		out = append(out, lb)
	}
	return out
}

// FilterByStatus keeps the books whose status is one of statuses.
func FilterByStatus(books []LendedBook, statuses ...Status) []LendedBook {
	out := []LendedBook{}
	for _, b := range books {
		for _, s := range statuses {
			if b.Status == s {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// LendRequest is the lend-book payload. BookID names the library holding.
type LendRequest struct {
	BookID   string    `json:"book_id" validate:"required,uuid"`
	MemberID string    `json:"member_id" validate:"required,uuid"`
	DueDate  time.Time `json:"due_date" validate:"required"`
}

// ReturnRequest is the return-book payload.
type ReturnRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,uuid"`
}
