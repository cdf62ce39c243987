package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libreeze/internal/platform/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

const transactionColumns = `id, library_book_id, user_id, borrowed_date, due_date, returned_date, status`

func scanTransaction(row pgx.Row, t *Transaction) error {
	return row.Scan(&t.ID, &t.LibraryBookID, &t.UserID, &t.BorrowedDate, &t.DueDate, &t.ReturnedDate, &t.Status)
}

func (r *PostgresRepo) History(ctx context.Context, memberID string) ([]Record, error) {
	return r.records(ctx, memberID, false)
}

func (r *PostgresRepo) Current(ctx context.Context, memberID string) ([]Record, error) {
	return r.records(ctx, memberID, true)
}

func (r *PostgresRepo) records(ctx context.Context, memberID string, openOnly bool) ([]Record, error) {
	query := `
		SELECT t.id, t.library_book_id, t.user_id, t.borrowed_date, t.due_date, t.returned_date, t.status,
		       b.id, b.title, b.author, b.isbn,
		       u.id, u.full_name, u.email
		FROM lending_transactions t
		JOIN library_books lb ON lb.id = t.library_book_id
		JOIN books b ON b.id = lb.book_id
		JOIN users u ON u.id = t.user_id
		WHERE 1=1`
	args := []any{}
	if memberID != "" {
		args = append(args, memberID)
		query += fmt.Sprintf(" AND t.user_id = $%d", len(args))
	}
	if openOnly {
		query += " AND t.status IN ('borrowed', 'overdue')"
	}
	query += " ORDER BY t.borrowed_date DESC"

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.LibraryBookID, &rec.UserID, &rec.BorrowedDate, &rec.DueDate, &rec.ReturnedDate, &rec.Status,
			&rec.Book.ID, &rec.Book.Title, &rec.Book.Author, &rec.Book.ISBN,
			&rec.Member.ID, &rec.Member.FullName, &rec.Member.Email,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) HistoryRows(ctx context.Context, userID string) ([]HistoryRow, error) {
	const query = `
		SELECT t.id, t.user_id, t.status, t.borrowed_date, t.due_date, t.returned_date,
		       lb.id, l.id, l.name, b.id, b.title, p.name,
		       COALESCE(array_agg(a.name ORDER BY ba.position) FILTER (WHERE a.name IS NOT NULL), '{}')
		FROM lending_transactions t
		JOIN library_books lb ON lb.id = t.library_book_id
		JOIN libraries l ON l.id = lb.library_id
		JOIN books b ON b.id = lb.book_id
		LEFT JOIN publishers p ON p.id = b.publisher_id
		LEFT JOIN book_authors ba ON ba.book_id = b.id
		LEFT JOIN authors a ON a.id = ba.author_id
		WHERE t.user_id = $1
		GROUP BY t.id, lb.id, l.id, b.id, p.name
		ORDER BY t.borrowed_date DESC`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryRow{}
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(
			&h.TransactionID, &h.UserID, &h.Status, &h.BorrowedDate, &h.DueDate, &h.ReturnedDate,
			&h.LibraryBookID, &h.LibraryID, &h.LibraryName, &h.BookID, &h.BookTitle, &h.Publisher,
			&h.Authors,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LibraryOf returns the library owning the holding a transaction lent out.
func (r *PostgresRepo) LibraryOf(ctx context.Context, transactionID string) (string, error) {
	const query = `
		SELECT lb.library_id
		FROM lending_transactions t
		JOIN library_books lb ON lb.id = t.library_book_id
		WHERE t.id = $1`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var libraryID string
	if err := r.db.QueryRow(ctx, query, transactionID).Scan(&libraryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return libraryID, nil
}

// Lend takes one available copy of the holding and records a borrowed transaction.
func (r *PostgresRepo) Lend(ctx context.Context, req LendRequest) (Transaction, error) {
	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t Transaction
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE library_books SET available = available - 1
			WHERE id = $1 AND available > 0`, req.BookID)
		if err != nil {
			return fmt.Errorf("reserve copy: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM library_books WHERE id = $1)`, req.BookID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrUnavailable
		}

		due := req.DueDate
		err = scanTransaction(tx.QueryRow(ctx, `
			INSERT INTO lending_transactions (library_book_id, user_id, due_date, status)
			VALUES ($1, $2, $3, 'borrowed')
			RETURNING `+transactionColumns, req.BookID, req.MemberID, &due), &t)
		if pgutil.IsForeignKeyViolation(err) {
			return ErrMemberNotFound
		}
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Return closes an open transaction at the given time and puts the copy back.
func (r *PostgresRepo) Return(ctx context.Context, transactionID string, at time.Time) (Transaction, error) {
	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t Transaction
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := scanTransaction(tx.QueryRow(ctx, `
			UPDATE lending_transactions SET status = 'returned', returned_date = $2
			WHERE id = $1 AND status <> 'returned'
			RETURNING `+transactionColumns, transactionID, at), &t)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lending_transactions WHERE id = $1)`, transactionID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrAlreadyReturned
		}
		if err != nil {
			return fmt.Errorf("close transaction: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE library_books SET available = LEAST(available + 1, copies)
			WHERE id = $1`, t.LibraryBookID)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// MarkOverdue flags borrowed transactions whose due date has passed.
func (r *PostgresRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE lending_transactions SET status = 'overdue'
		WHERE status = 'borrowed' AND due_date IS NOT NULL AND due_date < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
