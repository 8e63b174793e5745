package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/repository"
)

// Revocation reasons recorded on sessions.
const (
	RevokeReasonLogout         = "logout"
	RevokeReasonLogoutAll      = "logout_all"
	RevokeReasonPasswordChange = "password_change"
	RevokeReasonAccountDeleted = "account_deleted"
)

// SessionConfig carries the issue-time defaults and the retention window for
// expired records.
type SessionConfig struct {
	DefaultTTL time.Duration
	Rolling    bool
	Retention  time.Duration
}

// IssueOptions overrides the configured defaults for a single session.
type IssueOptions struct {
	TTL     time.Duration
	Rolling *bool
}

// SessionService owns the session lifecycle: issue, validate, refresh,
// revoke. Tokens are opaque; the store only ever sees their SHA-256 hash.
type SessionService struct {
	store  port.SessionStore
	events port.EventPublisher
	cfg    SessionConfig
	logger *zap.Logger

	now func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store port.SessionStore, events port.EventPublisher, cfg SessionConfig, logger *zap.Logger) *SessionService {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		store:  store,
		events: events,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Issue creates a session for the user and returns it together with the raw
// token. The raw token is never persisted and cannot be recovered later.
func (s *SessionService) Issue(ctx context.Context, userID string, opts IssueOptions) (domain.Session, string, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	rolling := s.cfg.Rolling
	if opts.Rolling != nil {
		rolling = *opts.Rolling
	}

	token, err := security.GenerateSecureToken(security.SessionTokenBytes)
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("generate session token: %w", err)
	}

	now := s.now().UTC()
	session := domain.Session{
		ID:        uuid.NewString(),
		TokenHash: security.HashToken(token),
		UserID:    userID,
		Rolling:   rolling,
		TTL:       ttl,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.store.Save(ctx, session); err != nil {
		return domain.Session{}, "", fmt.Errorf("save session: %w", err)
	}
	return session, token, nil
}

// Validate resolves a raw token to its session. Expiry is evaluated lazily
// against the current clock; a revoked or unknown token reports
// ErrSessionNotFound so callers cannot probe for revoked sessions.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	switch session.State(s.now().UTC()) {
	case domain.SessionStateRevoked:
		return nil, ErrSessionNotFound
	case domain.SessionStateExpired:
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Refresh extends a rolling session by its issue TTL. Fixed-lifetime sessions
// validate but keep their expiry.
func (s *SessionService) Refresh(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if !session.Extend(s.now().UTC()) {
		return session, nil
	}
	if err := s.store.Extend(ctx, session.TokenHash, session.ExpiresAt, session.LastSeen); err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}
	return session, nil
}

// Revoke terminates the session behind the token. Revocation is terminal;
// revoking twice reports ErrSessionNotFound like any other dead token.
func (s *SessionService) Revoke(ctx context.Context, token, reason string) error {
	session, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}
	if session.RevokedAt != nil {
		return ErrSessionNotFound
	}

	now := s.now().UTC()
	if err := s.store.Revoke(ctx, session.TokenHash, reason, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	s.publishRevoked(ctx, domain.SessionRevokedEvent{
		SessionID:       session.ID,
		UserID:          session.UserID,
		Reason:          reason,
		RevokedAt:       now,
		SessionsRevoked: 1,
	})
	return nil
}

// RevokeByID terminates one of the user's sessions by session id. Used by the
// session management endpoints, which never see raw tokens.
func (s *SessionService) RevokeByID(ctx context.Context, userID, sessionID, reason string) error {
	now := s.now().UTC()
	sessions, err := s.store.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		if session.ID != sessionID {
			continue
		}
		if err := s.store.Revoke(ctx, session.TokenHash, reason, now); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
		s.publishRevoked(ctx, domain.SessionRevokedEvent{
			SessionID:       session.ID,
			UserID:          session.UserID,
			Reason:          reason,
			RevokedAt:       now,
			SessionsRevoked: 1,
		})
		return nil
	}
	return ErrSessionNotFound
}

// RevokeAll terminates every live session of the user and reports how many
// were affected.
func (s *SessionService) RevokeAll(ctx context.Context, userID, reason string) (int, error) {
	now := s.now().UTC()
	revoked, err := s.store.RevokeAllForUser(ctx, userID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	if revoked > 0 {
		s.publishRevoked(ctx, domain.SessionRevokedEvent{
			UserID:          userID,
			Reason:          reason,
			RevokedAt:       now,
			SessionsRevoked: revoked,
		})
	}
	return revoked, nil
}

// ListActive returns the user's live sessions.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.store.ListActiveByUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// PurgeExpired reclaims records whose retention window has passed. Validation
// never depends on the purge having run.
func (s *SessionService) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.Retention)
	purged, err := s.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return purged, nil
}

func (s *SessionService) lookup(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.store.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (s *SessionService) publishRevoked(ctx context.Context, event domain.SessionRevokedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("failed to publish session revoked event", zap.Error(err))
	}
}
