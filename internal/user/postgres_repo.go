package user

import (
	"context"
	"strconv"
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

const userColumns = `id, full_name, email, profile_photo_url, created_at, updated_at`

func scanUser(row pgx.Row, u *User) error {
	return row.Scan(&u.ID, &u.FullName, &u.Email, &u.ProfilePhotoURL, &u.CreatedAt, &u.UpdatedAt)
}

// Create inserts the profile row for a freshly registered identity.
func (r *PostgresRepo) Create(ctx context.Context, u *User) error {
	const query = `
	INSERT INTO users (id, full_name, email)
	VALUES ($1, $2, $3)
	RETURNING created_at, updated_at
	`
	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.QueryRow(ctx, query, u.ID, u.FullName, u.Email).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var u User
	if err := scanUser(r.db.QueryRow(ctx, query, id), &u); err != nil {
		if pgutil.IsNoRows(err) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// List returns users ordered by full name. A non-empty term keeps rows whose
// name or email contains it, ignoring case. The term is matched as given.
func (r *PostgresRepo) List(ctx context.Context, term string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if term != "" {
		query += ` WHERE full_name ILIKE $1 OR email ILIKE $1`
		args = append(args, pgutil.ContainsPattern(term))
	}
	query += ` ORDER BY full_name`

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile applies the non-nil fields of update and returns the stored row.
func (r *PostgresRepo) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	if update.Empty() {
		return r.GetByID(ctx, id)
	}

	fields := []string{}
	args := []any{}
	set := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		fields = append(fields, column+" = $"+strconv.Itoa(len(args)))
	}
	set("full_name", update.FullName)
	set("email", update.Email)
	set("profile_photo_url", update.ProfilePhotoURL)

	fields = append(fields, "updated_at = NOW()")
	args = append(args, id)
	query := "UPDATE users SET " + strings.Join(fields, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) + " RETURNING " + userColumns

	ctx, cancel := pgutil.WithTimeout(ctx, r.timeout)
	defer cancel()

	var u User
	if err := scanUser(r.db.QueryRow(ctx, query, args...), &u); err != nil {
		if pgutil.IsNoRows(err) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
