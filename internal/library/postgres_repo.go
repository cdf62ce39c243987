package library

import (
	"context"
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

// Create inserts the library and makes adminID its first administrator.
func (r *PostgresRepo) Create(ctx context.Context, adminID string, in NewLibrary) (Library, error) {
	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var phone *string
	if in.ContactPhone != "" {
		phone = &in.ContactPhone
	}

	var lib Library
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO libraries (name, address, contact_email, contact_phone)
			VALUES ($1, $2, $3, $4)
			RETURNING id, name, address, contact_email, contact_phone, created_at`,
			in.Name, in.Address, in.ContactEmail, phone,
		).Scan(&lib.ID, &lib.Name, &lib.Address, &lib.ContactEmail, &lib.ContactPhone, &lib.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert library: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO library_users (library_id, user_id, is_admin, member_since)
			VALUES ($1, $2, TRUE, NOW())`, lib.ID, adminID); err != nil {
			return fmt.Errorf("insert admin membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return Library{}, err
	}
	return lib, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Library, error) {
	const query = `
		SELECT id, name, address, contact_email, contact_phone, created_at
		FROM libraries WHERE id = $1`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var lib Library
	err := r.db.QueryRow(ctx, query, id).Scan(&lib.ID, &lib.Name, &lib.Address, &lib.ContactEmail, &lib.ContactPhone, &lib.CreatedAt)
	if err != nil {
		if pgutil.IsNoRows(err) {
			return Library{}, ErrNotFound
		}
		return Library{}, err
	}
	return lib, nil
}

func (r *PostgresRepo) ListByIDs(ctx context.Context, ids []string) ([]Library, error) {
	const query = `
		SELECT id, name, address, contact_email, contact_phone, created_at
		FROM libraries WHERE id = ANY($1) ORDER BY name`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Library{}
	for rows.Next() {
		var lib Library
		if err := rows.Scan(&lib.ID, &lib.Name, &lib.Address, &lib.ContactEmail, &lib.ContactPhone, &lib.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, lib)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	const query = `
		SELECT library_id, user_id, is_admin, member_since
		FROM library_users WHERE user_id = $1 ORDER BY member_since`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.LibraryID, &m.UserID, &m.IsAdmin, &m.MemberSince); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IsAdmin reports whether userID administers at least one library.
func (r *PostgresRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	const query = `
		SELECT COALESCE(bool_or(is_admin), FALSE)
		FROM library_users WHERE user_id = $1`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var admin bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&admin); err != nil {
		return false, err
	}
	return admin, nil
}

func (r *PostgresRepo) IsLibraryAdmin(ctx context.Context, userID, libraryID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM library_users
			WHERE user_id = $1 AND library_id = $2 AND is_admin
		)`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var admin bool
	if err := r.db.QueryRow(ctx, query, userID, libraryID).Scan(&admin); err != nil {
		return false, err
	}
	return admin, nil
}
