package book

import (
	"context"
	"fmt"
	"strings"
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

const selectBook = `
	SELECT b.id, b.isbn, b.title, b.author, p.name, b.published_year, b.cover_url,
	       b.created_at, b.updated_at
	FROM books b
	LEFT JOIN publishers p ON p.id = b.publisher_id`

func scanBook(row pgx.Row, b *Book) error {
	return row.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.PublishedYear, &b.CoverURL,
		&b.CreatedAt, &b.UpdatedAt)
}

// List returns books ordered by title. A non-empty term keeps rows whose
// title, author or ISBN contains it, ignoring case. The term is matched as
// given, so a blank term only matches titles containing that whitespace.
func (r *PostgresRepo) List(ctx context.Context, term string) ([]Book, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if term != "" {
		clauses = append(clauses, "(b.title ILIKE $1 OR b.author ILIKE $1 OR b.isbn ILIKE $1)")
		args = append(args, pgutil.ContainsPattern(term))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY b.title", selectBook, strings.Join(clauses, " AND "))

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		var b Book
		if err := scanBook(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Book, error) {
	return r.getOne(ctx, selectBook+" WHERE b.id = $1", id)
}

func (r *PostgresRepo) GetByISBN(ctx context.Context, isbn string) (Book, error) {
	return r.getOne(ctx, selectBook+" WHERE b.isbn = $1", isbn)
}

func (r *PostgresRepo) getOne(ctx context.Context, query string, arg string) (Book, error) {
	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var b Book
	if err := scanBook(r.db.QueryRow(ctx, query, arg), &b); err != nil {
		if pgutil.IsNoRows(err) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) GetLibraryBook(ctx context.Context, id string) (LibraryBook, error) {
	const query = `
		SELECT id, library_id, book_id, copies, available
		FROM library_books
		WHERE id = $1`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var lb LibraryBook
	err := r.db.QueryRow(ctx, query, id).Scan(&lb.ID, &lb.LibraryID, &lb.BookID, &lb.Copies, &lb.Available)
	if err != nil {
		if pgutil.IsNoRows(err) {
			return LibraryBook{}, ErrNotFound
		}
		return LibraryBook{}, err
	}
	return lb, nil
}

// AddToLibrary upserts the catalog entry, its publisher and authors, and adds
// in.Copies copies to the library's holding, all in one transaction.
func (r *PostgresRepo) AddToLibrary(ctx context.Context, in NewBook) (AddResult, error) {
	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var res AddResult
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var publisherID *string
		if name := strings.TrimSpace(in.Publisher); name != "" {
			var id string
			if err := tx.QueryRow(ctx, `
				INSERT INTO publishers (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`, name).Scan(&id); err != nil {
				return fmt.Errorf("upsert publisher: %w", err)
			}
			publisherID = &id
		}

		var coverURL *string
		if in.CoverURL != "" {
			coverURL = &in.CoverURL
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO books (isbn, title, author, publisher_id, published_year, cover_url)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (isbn) DO UPDATE SET
				title = EXCLUDED.title,
				author = EXCLUDED.author,
				publisher_id = COALESCE(EXCLUDED.publisher_id, books.publisher_id),
				published_year = COALESCE(EXCLUDED.published_year, books.published_year),
				cover_url = COALESCE(EXCLUDED.cover_url, books.cover_url),
				updated_at = NOW()
			RETURNING id`,
			in.ISBN, in.Title, AuthorLine(in.Authors), publisherID, in.PublishedYear, coverURL,
		).Scan(&res.BookID); err != nil {
			return fmt.Errorf("upsert book: %w", err)
		}

		position := 0
		for _, name := range in.Authors {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			var authorID string
			if err := tx.QueryRow(ctx, `
				INSERT INTO authors (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`, name).Scan(&authorID); err != nil {
				return fmt.Errorf("upsert author %q: %w", name, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO book_authors (book_id, author_id, position) VALUES ($1, $2, $3)
				ON CONFLICT (book_id, author_id) DO UPDATE SET position = EXCLUDED.position`,
				res.BookID, authorID, position); err != nil {
				return fmt.Errorf("link author %q: %w", name, err)
			}
			position++
		}

		copies := in.Copies
		if copies < 1 {
			copies = 1
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO library_books (library_id, book_id, copies, available)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (library_id, book_id) DO UPDATE SET
				copies = library_books.copies + EXCLUDED.copies,
				available = library_books.available + EXCLUDED.copies
			RETURNING id`, in.LibraryID, res.BookID, copies).Scan(&res.LibraryBookID); err != nil {
			return fmt.Errorf("upsert holding: %w", err)
		}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	return res, nil
}
