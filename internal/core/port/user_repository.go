package port

import (
	"context"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
)

// UserRepository exposes persistence behavior for users, their external
// identity links, and role membership. Uniqueness of usernames and of
// (provider, external_id) pairs is enforced by storage constraints so the
// guarantees hold across processes.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	// CreateWithExternalIdentity inserts the user and the identity link in a
	// single transaction: either both become visible or neither does.
	CreateWithExternalIdentity(ctx context.Context, user domain.User, identity domain.ExternalIdentity) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByExternalIdentity(ctx context.Context, provider, externalID string) (*domain.User, error)
	LinkExternalIdentity(ctx context.Context, identity domain.ExternalIdentity) error
	ListExternalIdentities(ctx context.Context, userID string) ([]domain.ExternalIdentity, error)
	RolesOf(ctx context.Context, userID string) ([]string, error)
	AssignRole(ctx context.Context, userID, roleName string) error
	UpdatePassword(ctx context.Context, id, passwordHash, passwordAlgo string, digestHA1 *string, changedAt time.Time) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
