package domain

import "time"

// UserRegisteredEvent is emitted after a new account is created, whether by
// local registration or a first external-provider login.
type UserRegisteredEvent struct {
	UserID       string
	Username     string
	Provider     string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// UserLoggedInEvent is emitted after a successful authentication.
type UserLoggedInEvent struct {
	UserID    string
	Provider  string
	SessionID string
	At        time.Time
	Metadata  map[string]any
}

// SessionRevokedEvent is emitted when one or more sessions are revoked.
type SessionRevokedEvent struct {
	SessionID       string
	UserID          string
	Reason          string
	RevokedAt       time.Time
	SessionsRevoked int
	Metadata        map[string]any
}
