package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/repository"
)

// Profile bundles an account with its role names and external identity links.
type Profile struct {
	User       domain.User
	Roles      []string
	Identities []domain.ExternalIdentity
}

// UserService covers account management beyond sign-in: profile reads,
// password change, role assignment, and deletion.
type UserService struct {
	users       port.UserRepository
	sessions    *SessionService
	hasher      port.PasswordHasher
	validator   *security.PasswordValidator
	digestRealm string
	logger      *zap.Logger

	now func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(
	users port.UserRepository,
	sessions *SessionService,
	hasher port.PasswordHasher,
	validator *security.PasswordValidator,
	digestRealm string,
	logger *zap.Logger,
) *UserService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       users,
		sessions:    sessions,
		hasher:      hasher,
		validator:   validator,
		digestRealm: digestRealm,
		logger:      logger,
		now:         time.Now,
	}
}

// GetProfile loads the account, its roles, and its linked identities.
func (s *UserService) GetProfile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("load user: %w", err)
	}

	roles, err := s.users.RolesOf(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("load roles: %w", err)
	}
	identities, err := s.users.ListExternalIdentities(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("load identities: %w", err)
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	sanitized.DigestHA1 = nil
	return Profile{User: sanitized, Roles: roles, Identities: identities}, nil
}

// ChangePassword verifies the current password, stores the new secret, and
// rotates the user's sessions: every existing session is revoked and a fresh
// one is issued so only the caller stays signed in.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) (domain.Session, string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, "", ErrUserNotFound
		}
		return domain.Session{}, "", fmt.Errorf("load user: %w", err)
	}

	if !user.HasLocalCredential() {
		return domain.Session{}, "", ErrInvalidCredential
	}
	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.Session{}, "", ErrInvalidCredential
	}

	validator := security.NewPasswordValidator(
		security.RequireDifferentFrom(current),
	)
	if err := validator.Validate(next); err != nil {
		return domain.Session{}, "", err
	}
	if err := s.validator.Validate(next); err != nil {
		return domain.Session{}, "", err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("hash password: %w", err)
	}
	var digestHA1 *string
	if s.digestRealm != "" {
		ha1 := security.ComputeHA1(user.Username, s.digestRealm, next)
		digestHA1 = &ha1
	}

	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, userID, hash, security.PasswordAlgo, digestHA1, now); err != nil {
		return domain.Session{}, "", fmt.Errorf("update password: %w", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, userID, RevokeReasonPasswordChange); err != nil {
		s.logger.Error("failed to revoke sessions after password change",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return s.sessions.Issue(ctx, userID, IssueOptions{})
}

// AssignRole attaches a role to the account.
func (s *UserService) AssignRole(ctx context.Context, userID, roleName string) error {
	if roleName == "" {
		return fmt.Errorf("role name is required")
	}
	if err := s.users.AssignRole(ctx, userID, roleName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// DeleteAccount revokes every session and removes the account. Sessions go
// first so a crash between the two steps cannot leave live sessions pointing
// at a deleted user.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := s.sessions.RevokeAll(ctx, userID, RevokeReasonAccountDeleted); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
