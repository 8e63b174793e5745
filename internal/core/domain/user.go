package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusLocked   UserStatus = "locked"
	UserStatusDisabled UserStatus = "disabled"
)

// User mirrors the persisted representation in the users table.
// PasswordHash is empty for accounts created through an external
// identity provider that never set a local credential.
type User struct {
	ID                 string
	Username           string
	Email              string
	DisplayName        string
	PasswordHash       string
	PasswordAlgo       string
	DigestHA1          *string
	Status             UserStatus
	RegisteredAt       time.Time
	LastLogin          *time.Time
	LastPasswordChange time.Time
}

// HasLocalCredential reports whether the account can authenticate with a password.
func (u User) HasLocalCredential() bool {
	return u.PasswordHash != ""
}

// CanAuthenticate reports whether the account state permits sign-in.
func (u User) CanAuthenticate() bool {
	return u.Status == UserStatusActive
}

// Role grants a named permission set.
type Role struct {
	ID          string
	Name        string
	Description *string
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}
