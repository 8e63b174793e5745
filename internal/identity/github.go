package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
)

// GitHubProvider signs users in with GitHub OAuth.
type GitHubProvider struct {
	client *oauthClient
	now    func() time.Time
}

// NewGitHubProvider constructs the GitHub adapter. A nil httpClient selects a
// default client with the configured timeout.
func NewGitHubProvider(cfg ProviderConfig, httpClient *http.Client) *GitHubProvider {
	return &GitHubProvider{
		client: newOAuthClient(ProviderGitHub, cfg, httpClient),
		now:    time.Now,
	}
}

// Name implements port.IdentityProvider.
func (p *GitHubProvider) Name() string { return ProviderGitHub }

// Exchange implements port.IdentityProvider.
func (p *GitHubProvider) Exchange(ctx context.Context, payload port.CallbackPayload) (domain.IdentityClaim, error) {
	token, err := p.client.exchangeCode(ctx, payload.Code, payload.RedirectURI)
	if err != nil {
		return domain.IdentityClaim{}, err
	}

	var profile struct {
		ID        json.Number `json:"id"`
		Login     string      `json:"login"`
		Name      string      `json:"name"`
		Email     string      `json:"email"`
		AvatarURL string      `json:"avatar_url"`
	}
	if err := p.client.fetchProfile(ctx, token.AccessToken, &profile); err != nil {
		return domain.IdentityClaim{}, err
	}

	externalID := profile.ID.String()
	if externalID == "" {
		return domain.IdentityClaim{}, fmt.Errorf("%w: github profile missing id", ErrProviderRejected)
	}

	claims := domain.ProfileClaims{}
	if profile.Login != "" {
		claims[domain.ClaimUsername] = profile.Login
	}
	if name := firstNonEmpty(profile.Name, profile.Login); name != "" {
		claims[domain.ClaimDisplayName] = name
	}
	if profile.Email != "" {
		claims[domain.ClaimEmail] = profile.Email
	}
	if profile.AvatarURL != "" {
		claims[domain.ClaimAvatarURL] = profile.AvatarURL
	}

	return domain.IdentityClaim{
		Provider:       ProviderGitHub,
		ExternalID:     externalID,
		Claims:         claims,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: expiryFromSeconds(p.now(), token.ExpiresIn),
	}, nil
}

var _ port.IdentityProvider = (*GitHubProvider)(nil)
