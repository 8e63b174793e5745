package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/auth-gateway/internal/repository"
)

// RolesOf returns the role names assigned to the user.
func (r *UserRepository) RolesOf(ctx context.Context, userID string) ([]string, error) {
	stmt, args, err := r.builder.
		Select("ro.name").
		From("auth.roles ro").
		Join("auth.user_roles ur ON ur.role_id = ro.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("ro.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// AssignRole attaches the named role to the user, creating the role row on
// first use. Re-assigning an existing role is a no-op.
func (r *UserRepository) AssignRole(ctx context.Context, userID, roleName string) error {
	roleID, err := r.ensureRole(ctx, roleName)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert("auth.user_roles").
		Columns("user_id", "role_id", "assigned_at").
		Values(userID, roleID, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (user_id, role_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// ensureRole resolves the role id, inserting the role when it does not exist.
func (r *UserRepository) ensureRole(ctx context.Context, roleName string) (string, error) {
	stmt, args, err := r.builder.Insert("auth.roles").
		Columns("id", "name").
		Values(squirrel.Expr("gen_random_uuid()"), roleName).
		Suffix("ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build ensure role sql: %w", err)
	}

	var roleID string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&roleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("ensure role: %w", err)
	}
	return roleID, nil
}
