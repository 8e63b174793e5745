// Package redis implements the session store, failed-attempt counters, and
// sliding-window rate limiting backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/repository"
)

const (
	defaultSessionPrefix = "session"
	defaultUserPrefix    = "user_sessions"
)

// SessionStoreConfig tunes key naming and expired-record retention.
type SessionStoreConfig struct {
	KeyPrefix string
	// Retention keeps expired records readable after their expiry so
	// validation can tell an expired session from an unknown one.
	Retention time.Duration
}

// sessionRecord is the JSON shape stored under the token hash key.
type sessionRecord struct {
	ID           string     `json:"id"`
	TokenHash    string     `json:"token_hash"`
	UserID       string     `json:"user_id"`
	Rolling      bool       `json:"rolling"`
	TTLSeconds   int64      `json:"ttl_seconds"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSeen     time.Time  `json:"last_seen"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `json:"revoke_reason,omitempty"`
}

// SessionStore implements port.SessionStore on Redis. Records live under
// their token hash with a TTL of session lifetime plus retention; a per-user
// set indexes the token hashes for bulk operations.
type SessionStore struct {
	client *red.Client
	cfg    SessionStoreConfig

	now func() time.Time
}

// NewSessionStore constructs a Redis-backed session store.
func NewSessionStore(client *red.Client, cfg SessionStoreConfig) *SessionStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultSessionPrefix
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &SessionStore{client: client, cfg: cfg, now: time.Now}
}

func (s *SessionStore) key(tokenHash string) string {
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, tokenHash)
}

func (s *SessionStore) userKey(userID string) string {
	return fmt.Sprintf("%s:%s:%s", s.cfg.KeyPrefix, defaultUserPrefix, userID)
}

// Save stores the session record and indexes it under the owner.
func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	record := sessionRecord{
		ID:           session.ID,
		TokenHash:    session.TokenHash,
		UserID:       session.UserID,
		Rolling:      session.Rolling,
		TTLSeconds:   int64(session.TTL / time.Second),
		CreatedAt:    session.CreatedAt,
		LastSeen:     session.LastSeen,
		ExpiresAt:    session.ExpiresAt,
		RevokedAt:    session.RevokedAt,
		RevokeReason: session.RevokeReason,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt) + s.cfg.Retention
	if ttl <= 0 {
		ttl = s.cfg.Retention
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(session.TokenHash), payload, ttl)
	pipe.SAdd(ctx, s.userKey(session.UserID), session.TokenHash)
	pipe.Expire(ctx, s.userKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// GetByTokenHash loads a session record, expired records included for as long
// as the retention window keeps them around.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	payload, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session := record.toDomain()
	return &session, nil
}

func (r sessionRecord) toDomain() domain.Session {
	return domain.Session{
		ID:           r.ID,
		TokenHash:    r.TokenHash,
		UserID:       r.UserID,
		Rolling:      r.Rolling,
		TTL:          time.Duration(r.TTLSeconds) * time.Second,
		CreatedAt:    r.CreatedAt,
		LastSeen:     r.LastSeen,
		ExpiresAt:    r.ExpiresAt,
		RevokedAt:    r.RevokedAt,
		RevokeReason: r.RevokeReason,
	}
}

// Extend rewrites the record with the new expiry and stretches the key TTL.
func (s *SessionStore) Extend(ctx context.Context, tokenHash string, expiresAt, lastSeen time.Time) error {
	return s.update(ctx, tokenHash, func(record *sessionRecord) error {
		if record.RevokedAt != nil {
			return repository.ErrNotFound
		}
		record.ExpiresAt = expiresAt
		record.LastSeen = lastSeen
		return nil
	})
}

// Revoke deletes the record immediately. Revoked sessions validate as not
// found, so there is nothing worth retaining.
func (s *SessionStore) Revoke(ctx context.Context, tokenHash, reason string, at time.Time) error {
	record, err := s.load(ctx, tokenHash)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(tokenHash))
	pipe.SRem(ctx, s.userKey(record.UserID), tokenHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis revoke session: %w", err)
	}
	return nil
}

// RevokeAllForUser deletes every live record indexed under the user.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int, error) {
	hashes, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list user sessions: %w", err)
	}

	revoked := 0
	for _, hash := range hashes {
		record, err := s.load(ctx, hash)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return revoked, err
		}
		if record.RevokedAt == nil && record.ExpiresAt.After(at) {
			revoked++
		}
		if err := s.client.Del(ctx, s.key(hash)).Err(); err != nil {
			return revoked, fmt.Errorf("redis delete session: %w", err)
		}
	}

	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return revoked, fmt.Errorf("redis delete user index: %w", err)
	}
	return revoked, nil
}

// ListActiveByUser returns the user's live sessions.
func (s *SessionStore) ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.Session, error) {
	hashes, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list user sessions: %w", err)
	}

	var sessions []domain.Session
	for _, hash := range hashes {
		record, err := s.load(ctx, hash)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Key expired out from under the index; drop the stale member.
				_ = s.client.SRem(ctx, s.userKey(userID), hash).Err()
				continue
			}
			return nil, err
		}
		session := record.toDomain()
		if session.IsActive(at) {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// PurgeExpired is a no-op for Redis: key TTLs already cover reclamation.
func (s *SessionStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (s *SessionStore) load(ctx context.Context, tokenHash string) (*sessionRecord, error) {
	payload, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &record, nil
}

func (s *SessionStore) update(ctx context.Context, tokenHash string, mutate func(*sessionRecord) error) error {
	record, err := s.load(ctx, tokenHash)
	if err != nil {
		return err
	}
	if err := mutate(record); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(record.ExpiresAt) + s.cfg.Retention
	if ttl <= 0 {
		ttl = s.cfg.Retention
	}
	if err := s.client.Set(ctx, s.key(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis update session: %w", err)
	}
	return nil
}

var _ port.SessionStore = (*SessionStore)(nil)
