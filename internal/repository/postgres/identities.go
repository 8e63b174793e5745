package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/repository"
)

var identityColumns = []string{
	"id",
	"user_id",
	"provider",
	"external_id",
	"access_token_hash",
	"token_expires_at",
	"created_at",
}

// CreateWithExternalIdentity inserts the user and the identity link in one
// transaction so a crash or a lost insert race never leaves a half-created
// account.
func (r *UserRepository) CreateWithExternalIdentity(ctx context.Context, user domain.User, identity domain.ExternalIdentity) error {
	beginner, ok := r.exec.(txBeginner)
	if !ok {
		// Executor cannot open transactions (already inside one, or a plain
		// mock). Run the inserts sequentially on it.
		if err := r.Create(ctx, user); err != nil {
			return err
		}
		return r.LinkExternalIdentity(ctx, identity)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	scoped := r.WithTx(tx)
	if err := scoped.Create(ctx, user); err != nil {
		return err
	}
	if err := scoped.LinkExternalIdentity(ctx, identity); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByExternalIdentity resolves the user owning a (provider, external id) link.
func (r *UserRepository) GetByExternalIdentity(ctx context.Context, provider, externalID string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(
			"u.id",
			"u.username",
			"u.email",
			"u.display_name",
			"u.password_hash",
			"u.password_algo",
			"u.digest_ha1",
			"u.status",
			"u.registered_at",
			"u.last_login",
			"u.last_password_change",
		).
		From("auth.users u").
		Join("auth.external_identities ei ON ei.user_id = u.id").
		Where(squirrel.Eq{"ei.provider": provider, "ei.external_id": externalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select by identity sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select user by identity: %w", err)
	}
	return user, nil
}

// LinkExternalIdentity attaches an external identity to a user. A duplicate
// (provider, external_id) pair maps to ErrAlreadyLinked.
func (r *UserRepository) LinkExternalIdentity(ctx context.Context, identity domain.ExternalIdentity) error {
	stmt, args, err := r.builder.Insert("auth.external_identities").
		Columns(identityColumns...).
		Values(
			identity.ID,
			identity.UserID,
			identity.Provider,
			identity.ExternalID,
			optionalString(identity.AccessTokenHash),
			optionalTime(identity.TokenExpiresAt),
			identity.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if identityConstraint(constraint) {
				return repository.ErrAlreadyLinked
			}
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// ListExternalIdentities returns the user's identity links, newest first.
func (r *UserRepository) ListExternalIdentities(ctx context.Context, userID string) ([]domain.ExternalIdentity, error) {
	stmt, args, err := r.builder.
		Select(identityColumns...).
		From("auth.external_identities").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list identities sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.ExternalIdentity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

func scanIdentity(row pgx.Row) (domain.ExternalIdentity, error) {
	var identity domain.ExternalIdentity
	if err := row.Scan(
		&identity.ID,
		&identity.UserID,
		&identity.Provider,
		&identity.ExternalID,
		&identity.AccessTokenHash,
		&identity.TokenExpiresAt,
		&identity.CreatedAt,
	); err != nil {
		return domain.ExternalIdentity{}, err
	}
	return identity, nil
}
