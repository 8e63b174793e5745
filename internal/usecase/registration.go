package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
	applog "github.com/arklim/auth-gateway/internal/infra/logger"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/repository"
)

// RegisterInput carries a local signup request.
type RegisterInput struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
}

// RegistrationService creates local accounts: password policy, Argon2id
// hashing, and the digest HA1 secret when a digest realm is configured.
type RegistrationService struct {
	users       port.UserRepository
	hasher      port.PasswordHasher
	validator   *security.PasswordValidator
	events      port.EventPublisher
	digestRealm string
	logger      *zap.Logger

	now func() time.Time
}

// NewRegistrationService constructs a RegistrationService. An empty
// digestRealm disables HA1 computation and with it the digest scheme for
// accounts created here.
func NewRegistrationService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	digestRealm string,
	logger *zap.Logger,
) *RegistrationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		users:       users,
		hasher:      hasher,
		validator:   validator,
		events:      events,
		digestRealm: digestRealm,
		logger:      logger,
		now:         time.Now,
	}
}

// Register creates the account. Policy violations come back as
// *security.PasswordValidationError; a taken username as ErrDuplicateUsername.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	username := strings.TrimSpace(strings.ToLower(input.Username))
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required")
	}
	if input.Password == "" {
		return domain.User{}, fmt.Errorf("password is required")
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:                 uuid.NewString(),
		Username:           username,
		Email:              strings.TrimSpace(input.Email),
		DisplayName:        strings.TrimSpace(input.DisplayName),
		PasswordHash:       hash,
		PasswordAlgo:       security.PasswordAlgo,
		Status:             domain.UserStatusActive,
		RegisteredAt:       now,
		LastPasswordChange: now,
	}
	if s.digestRealm != "" {
		ha1 := security.ComputeHA1(username, s.digestRealm, input.Password)
		user.DigestHA1 = &ha1
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return domain.User{}, ErrDuplicateUsername
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return domain.User{}, ErrAuthInternal
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", applog.MaskEmail(user.Email)),
	)

	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			UserID:       user.ID,
			Username:     user.Username,
			Provider:     SchemeCredentials,
			RegisteredAt: now,
		}); err != nil {
			s.logger.Warn("failed to publish registration event", zap.Error(err))
		}
	}

	user.PasswordHash = ""
	user.DigestHA1 = nil
	return user, nil
}
