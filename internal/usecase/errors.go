// Package usecase implements the authentication flows on top of the core
// ports: credential verification, external identity sign-in, session
// lifecycle, registration, and account management.
package usecase

import "errors"

var (
	// ErrInvalidCredential indicates the supplied username or secret is wrong.
	// Unknown usernames return the same value as mismatched secrets.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrAccountLocked indicates too many consecutive failures within the
	// lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrInactiveAccount indicates the account is disabled or administratively locked.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrIdentityAlreadyLinked indicates the (provider, external id) pair is
	// already attached to an account.
	ErrIdentityAlreadyLinked = errors.New("external identity already linked")
	// ErrSessionExpired indicates the session passed its expiry before validation.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionNotFound indicates the token matches no live session. Revoked
	// sessions are reported as not found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound indicates no account exists under the identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrAuthInternal masks storage and infrastructure faults. The cause is
	// logged, never returned to callers.
	ErrAuthInternal = errors.New("authentication backend failure")
)
