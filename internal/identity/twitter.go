package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
)

// TwitterProvider signs users in with the Twitter v2 OAuth flow. The profile
// endpoint wraps the user object in a data envelope.
type TwitterProvider struct {
	client *oauthClient
	now    func() time.Time
}

// NewTwitterProvider constructs the Twitter adapter.
func NewTwitterProvider(cfg ProviderConfig, httpClient *http.Client) *TwitterProvider {
	return &TwitterProvider{
		client: newOAuthClient(ProviderTwitter, cfg, httpClient),
		now:    time.Now,
	}
}

// Name implements port.IdentityProvider.
func (p *TwitterProvider) Name() string { return ProviderTwitter }

// Exchange implements port.IdentityProvider.
func (p *TwitterProvider) Exchange(ctx context.Context, payload port.CallbackPayload) (domain.IdentityClaim, error) {
	token, err := p.client.exchangeCode(ctx, payload.Code, payload.RedirectURI)
	if err != nil {
		return domain.IdentityClaim{}, err
	}

	var profile struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := p.client.fetchProfile(ctx, token.AccessToken, &profile); err != nil {
		return domain.IdentityClaim{}, err
	}

	if profile.Data.ID == "" {
		return domain.IdentityClaim{}, ErrProviderRejected
	}

	claims := domain.ProfileClaims{}
	if profile.Data.Username != "" {
		claims[domain.ClaimUsername] = profile.Data.Username
	}
	if name := firstNonEmpty(profile.Data.Name, profile.Data.Username); name != "" {
		claims[domain.ClaimDisplayName] = name
	}

	return domain.IdentityClaim{
		Provider:       ProviderTwitter,
		ExternalID:     profile.Data.ID,
		Claims:         claims,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: expiryFromSeconds(p.now(), token.ExpiresIn),
	}, nil
}

var _ port.IdentityProvider = (*TwitterProvider)(nil)
