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
	"github.com/arklim/auth-gateway/internal/identity"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/repository"
)

// AuthRequest carries one authentication attempt. Provider selects the flow:
// a credential scheme (credentials, basic, digest) or a registered external
// provider name.
type AuthRequest struct {
	Provider string

	// Local schemes.
	Username string
	Password string
	Digest   *security.DigestProof

	// External providers.
	Callback port.CallbackPayload
}

// AuthResult is the outcome of a successful authentication. Token is the raw
// session token, returned exactly once.
type AuthResult struct {
	Session domain.Session
	Token   string
	User    domain.User
	Roles   []string
}

// AuthService orchestrates authentication: it dispatches to the credential
// verifier or an external identity adapter, resolves the account, and issues
// the session.
type AuthService struct {
	users     port.UserRepository
	verifier  *CredentialVerifier
	sessions  *SessionService
	providers *identity.Registry
	events    port.EventPublisher
	logger    *zap.Logger

	now func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	verifier *CredentialVerifier,
	sessions *SessionService,
	providers *identity.Registry,
	events port.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		verifier:  verifier,
		sessions:  sessions,
		providers: providers,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// Providers returns the names of the registered external providers.
func (s *AuthService) Providers() []string {
	return s.providers.Names()
}

// Authenticate runs one sign-in attempt end to end. Taxonomy errors pass
// through unchanged; anything else is logged and surfaces as ErrAuthInternal.
func (s *AuthService) Authenticate(ctx context.Context, req AuthRequest) (AuthResult, error) {
	result, err := s.authenticate(ctx, req)
	if err != nil {
		return AuthResult{}, s.mapInternal(err, req.Provider)
	}
	return result, nil
}

func (s *AuthService) authenticate(ctx context.Context, req AuthRequest) (AuthResult, error) {
	var (
		user *domain.User
		err  error
	)

	switch req.Provider {
	case SchemeCredentials, SchemeBasic:
		user, err = s.verifier.VerifyPassword(ctx, req.Username, req.Password)
	case SchemeDigest:
		if req.Digest == nil {
			return AuthResult{}, ErrInvalidCredential
		}
		user, err = s.verifier.VerifyDigestProof(ctx, *req.Digest)
	default:
		user, err = s.authenticateExternal(ctx, req)
	}
	if err != nil {
		return AuthResult{}, err
	}

	if !user.CanAuthenticate() {
		return AuthResult{}, ErrInactiveAccount
	}

	roles, err := s.users.RolesOf(ctx, user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("load roles: %w", err)
	}

	session, token, err := s.sessions.Issue(ctx, user.ID, IssueOptions{})
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record login time", zap.Error(err))
	}
	s.publishLoggedIn(ctx, domain.UserLoggedInEvent{
		UserID:    user.ID,
		Provider:  req.Provider,
		SessionID: session.ID,
		At:        now,
	})

	sanitized := *user
	sanitized.PasswordHash = ""
	sanitized.DigestHA1 = nil
	return AuthResult{Session: session, Token: token, User: sanitized, Roles: roles}, nil
}

// authenticateExternal exchanges the provider callback and resolves the
// account, creating and linking one on first login.
func (s *AuthService) authenticateExternal(ctx context.Context, req AuthRequest) (*domain.User, error) {
	provider, ok := s.providers.Lookup(req.Provider)
	if !ok {
		return nil, identity.ErrUnknownProvider
	}

	claim, err := provider.Exchange(ctx, req.Callback)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByExternalIdentity(ctx, claim.Provider, claim.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup external identity: %w", err)
	}

	return s.registerExternal(ctx, claim)
}

// registerExternal creates the account and the identity link in one
// transaction. A concurrent first login for the same identity loses the
// insert race and falls back to reading the winner's account.
func (s *AuthService) registerExternal(ctx context.Context, claim domain.IdentityClaim) (*domain.User, error) {
	now := s.now().UTC()
	user := domain.User{
		ID:                 uuid.NewString(),
		Username:           externalUsername(claim),
		Email:              claim.Claims.Get(domain.ClaimEmail),
		DisplayName:        claim.Claims.Get(domain.ClaimDisplayName),
		Status:             domain.UserStatusActive,
		RegisteredAt:       now,
		LastPasswordChange: now,
	}
	link := domain.ExternalIdentity{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		Provider:        claim.Provider,
		ExternalID:      claim.ExternalID,
		AccessTokenHash: accessTokenHash(claim.AccessToken),
		TokenExpiresAt:  claim.TokenExpiresAt,
		CreatedAt:       now,
	}

	err := s.users.CreateWithExternalIdentity(ctx, user, link)
	if err == nil {
		s.publishRegistered(ctx, domain.UserRegisteredEvent{
			UserID:       user.ID,
			Username:     user.Username,
			Provider:     claim.Provider,
			RegisteredAt: now,
		})
		return &user, nil
	}

	if errors.Is(err, repository.ErrAlreadyLinked) {
		existing, lookupErr := s.users.GetByExternalIdentity(ctx, claim.Provider, claim.ExternalID)
		if lookupErr != nil {
			return nil, fmt.Errorf("resolve race winner: %w", lookupErr)
		}
		return existing, nil
	}

	if errors.Is(err, repository.ErrDuplicateKey) {
		// Preferred username taken by an unrelated account. Retry once with a
		// provider-qualified name, which is unique per identity.
		user.Username = fallbackUsername(claim)
		if err := s.users.CreateWithExternalIdentity(ctx, user, link); err != nil {
			return nil, fmt.Errorf("create external user: %w", err)
		}
		s.publishRegistered(ctx, domain.UserRegisteredEvent{
			UserID:       user.ID,
			Username:     user.Username,
			Provider:     claim.Provider,
			RegisteredAt: now,
		})
		return &user, nil
	}

	return nil, fmt.Errorf("create external user: %w", err)
}

// LinkIdentity attaches an additional external identity to an existing
// account after completing the provider exchange.
func (s *AuthService) LinkIdentity(ctx context.Context, userID, providerName string, payload port.CallbackPayload) error {
	provider, ok := s.providers.Lookup(providerName)
	if !ok {
		return identity.ErrUnknownProvider
	}

	claim, err := provider.Exchange(ctx, payload)
	if err != nil {
		return err
	}

	link := domain.ExternalIdentity{
		ID:              uuid.NewString(),
		UserID:          userID,
		Provider:        claim.Provider,
		ExternalID:      claim.ExternalID,
		AccessTokenHash: accessTokenHash(claim.AccessToken),
		TokenExpiresAt:  claim.TokenExpiresAt,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.users.LinkExternalIdentity(ctx, link); err != nil {
		if errors.Is(err, repository.ErrAlreadyLinked) || errors.Is(err, repository.ErrDuplicateKey) {
			return ErrIdentityAlreadyLinked
		}
		return s.mapInternal(fmt.Errorf("link identity: %w", err), providerName)
	}
	return nil
}

// mapInternal keeps taxonomy errors intact and collapses everything else
// into ErrAuthInternal with the cause logged.
func (s *AuthService) mapInternal(err error, provider string) error {
	for _, sentinel := range []error{
		ErrInvalidCredential,
		ErrAccountLocked,
		ErrInactiveAccount,
		ErrIdentityAlreadyLinked,
		ErrSessionExpired,
		ErrSessionNotFound,
		identity.ErrProviderUnreachable,
		identity.ErrProviderRejected,
		identity.ErrUnknownProvider,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	s.logger.Error("authentication backend failure",
		zap.String("provider", provider),
		zap.Error(err),
	)
	return ErrAuthInternal
}

func (s *AuthService) publishLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishUserLoggedIn(ctx, event); err != nil {
		s.logger.Warn("failed to publish login event", zap.Error(err))
	}
}

func (s *AuthService) publishRegistered(ctx context.Context, event domain.UserRegisteredEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("failed to publish registration event", zap.Error(err))
	}
}

// externalUsername derives a username from the provider claims, falling back
// to a provider-qualified identifier when the profile offers nothing usable.
func externalUsername(claim domain.IdentityClaim) string {
	if username := sanitizeUsername(claim.Claims.Get(domain.ClaimUsername)); username != "" {
		return username
	}
	if email := claim.Claims.Get(domain.ClaimEmail); email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			if username := sanitizeUsername(email[:at]); username != "" {
				return username
			}
		}
	}
	return fallbackUsername(claim)
}

func fallbackUsername(claim domain.IdentityClaim) string {
	return claim.Provider + "_" + claim.ExternalID
}

// accessTokenHash stores provider access tokens hash-only, like session tokens.
func accessTokenHash(token string) *string {
	if token == "" {
		return nil
	}
	hashed := security.HashToken(token)
	return &hashed
}

func sanitizeUsername(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}
