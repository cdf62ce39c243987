// Package pgutil holds small helpers shared by the Postgres repositories.
package pgutil

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	codeInvalidText         = "22P02"
	codeForeignKeyViolation = "23503"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns a free-text term into an ILIKE pattern matching the
// term anywhere in the column. Wildcards typed by the user match literally.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// WithTimeout bounds a query when d is positive.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// IsNoRows reports whether err means the lookup matched nothing. A malformed
// id (invalid_text_representation) cannot match a row either.
func IsNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	return hasCode(err, codeInvalidText)
}

// IsForeignKeyViolation reports whether err is a 23503 from Postgres.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
