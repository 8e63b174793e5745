package domain

import "time"

// SessionState describes where a session sits in its lifecycle.
// Expired and Revoked are terminal; a session never returns to Active.
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
	SessionStateRevoked SessionState = "revoked"
)

// Session is a time-bounded proof of prior authentication. The opaque token
// handed to the caller is never stored; only its SHA-256 hash is.
type Session struct {
	ID           string
	TokenHash    string
	UserID       string
	Rolling      bool
	TTL          time.Duration
	CreatedAt    time.Time
	LastSeen     time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	RevokeReason *string
}

// State evaluates the lifecycle state lazily at the supplied moment.
// Revocation wins over expiry when both apply.
func (s Session) State(at time.Time) SessionState {
	if s.RevokedAt != nil {
		return SessionStateRevoked
	}
	if !s.ExpiresAt.After(at) {
		return SessionStateExpired
	}
	return SessionStateActive
}

// IsActive reports whether the session is neither revoked nor expired at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	return s.State(at) == SessionStateActive
}

// Extend pushes the expiry forward by the issue TTL when the session was
// issued rolling. Returns true when the expiry changed.
func (s *Session) Extend(at time.Time) bool {
	if !s.Rolling || s.TTL <= 0 {
		return false
	}
	s.LastSeen = at
	s.ExpiresAt = at.Add(s.TTL)
	return true
}

// Revoke marks the session as revoked. Returns true when the session changed state.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokeReason = &reason
	return true
}
