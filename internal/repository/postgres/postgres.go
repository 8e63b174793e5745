// Package postgres implements the persistence ports backed by PostgreSQL.
// Statements are built with squirrel using dollar placeholders; uniqueness is
// enforced by storage constraints and surfaced through the repository
// sentinel errors.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgExecutor abstracts the subset of pgx used by repositories so they run
// against a pool, a transaction, or a mock.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txBeginner is satisfied by pool-like executors that can open transactions.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories groups the concrete PostgreSQL repository implementations.
type Repositories struct {
	Users    *UserRepository
	Sessions *SessionRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(pool),
		Sessions: NewSessionRepository(pool),
	}
}

// uniqueViolation reports whether err is a 23505 unique constraint violation
// and, when it is, which constraint fired.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// identityConstraint reports whether the constraint belongs to the external
// identities table.
func identityConstraint(constraint string) bool {
	return strings.Contains(constraint, "external_identities")
}

// isForeignKeyViolation reports whether err is a 23503 foreign key violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func optionalString(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}

func optionalTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return *value
}
