package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/repository"
)

var sessionColumns = []string{
	"id",
	"token_hash",
	"user_id",
	"rolling",
	"ttl_seconds",
	"created_at",
	"last_seen",
	"expires_at",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionStore backed by PostgreSQL. Expired
// rows stay readable until the periodic reclaimer purges those past the
// retention window.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Save persists a new session row.
func (r *SessionRepository) Save(ctx context.Context, session domain.Session) error {
	stmt, args, err := r.builder.Insert("auth.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.TokenHash,
			session.UserID,
			session.Rolling,
			int64(session.TTL/time.Second),
			session.CreatedAt,
			session.LastSeen,
			session.ExpiresAt,
			optionalTime(session.RevokedAt),
			optionalString(session.RevokeReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByTokenHash loads a session row by token hash, expired rows included.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session      domain.Session
		ttlSeconds   int64
		revokedAt    *time.Time
		revokeReason *string
	)
	if err := row.Scan(
		&session.ID,
		&session.TokenHash,
		&session.UserID,
		&session.Rolling,
		&ttlSeconds,
		&session.CreatedAt,
		&session.LastSeen,
		&session.ExpiresAt,
		&revokedAt,
		&revokeReason,
	); err != nil {
		return nil, err
	}
	session.TTL = time.Duration(ttlSeconds) * time.Second
	session.RevokedAt = revokedAt
	session.RevokeReason = revokeReason
	return &session, nil
}

// Extend moves the expiry forward for a rolling session. Revoked rows are
// left untouched.
func (r *SessionRepository) Extend(ctx context.Context, tokenHash string, expiresAt, lastSeen time.Time) error {
	stmt, args, err := r.builder.Update("auth.sessions").
		Set("expires_at", expiresAt).
		Set("last_seen", lastSeen).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build extend session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Revoke marks the session revoked. Already revoked rows are not rewritten.
func (r *SessionRepository) Revoke(ctx context.Context, tokenHash, reason string, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RevokeAllForUser revokes every live session of the user in one statement.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": at}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke all sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListActiveByUser returns the user's live sessions, newest first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": at}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// PurgeExpired deletes rows whose expiry predates the cutoff, plus revoked
// rows. Validation never depends on the purge having run.
func (r *SessionRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("auth.sessions").
		Where(squirrel.Or{
			squirrel.Lt{"expires_at": cutoff},
			squirrel.NotEq{"revoked_at": nil},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ port.SessionStore = (*SessionRepository)(nil)
