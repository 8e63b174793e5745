package domain

import "time"

// ProfileClaims carries the attributes an external identity provider asserted
// about a user. Providers differ in what they return, so claims are a free-form
// key/value set; required-claim enforcement happens in the orchestrator.
type ProfileClaims map[string]string

// Common claim keys populated by the bundled adapters.
const (
	ClaimEmail       = "email"
	ClaimDisplayName = "display_name"
	ClaimUsername    = "username"
	ClaimAvatarURL   = "avatar_url"
)

// Get returns the claim value or the empty string when absent.
func (c ProfileClaims) Get(key string) string {
	if c == nil {
		return ""
	}
	return c[key]
}

// IdentityClaim is the normalized outcome of an external provider exchange:
// who the provider says the user is, plus whatever profile data it returned.
type IdentityClaim struct {
	Provider       string
	ExternalID     string
	Claims         ProfileClaims
	AccessToken    string
	TokenExpiresAt *time.Time
}

// ExternalIdentity links a user to one external provider account.
// A given (provider, external_id) pair maps to at most one user.
type ExternalIdentity struct {
	ID              string
	UserID          string
	Provider        string
	ExternalID      string
	AccessTokenHash *string
	TokenExpiresAt  *time.Time
	CreatedAt       time.Time
}
