// Package store holds the PostgreSQL repositories.
package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpesa-console/internal/models"
)

const (
	uniqueViolation = "23505"

	// applicationNameKey is the case-insensitive unique index on
	// applications.name.
	applicationNameKey = "applications_name_lower_key"
)

// Store runs queries against the connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on top of pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// isUniqueViolation reports whether err violates the named unique
// constraint or index.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// notFound maps pgx.ErrNoRows to models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
