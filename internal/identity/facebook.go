package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
)

// FacebookProvider signs users in with Facebook Login via the Graph API.
type FacebookProvider struct {
	client *oauthClient
	now    func() time.Time
}

// NewFacebookProvider constructs the Facebook adapter.
func NewFacebookProvider(cfg ProviderConfig, httpClient *http.Client) *FacebookProvider {
	return &FacebookProvider{
		client: newOAuthClient(ProviderFacebook, cfg, httpClient),
		now:    time.Now,
	}
}

// Name implements port.IdentityProvider.
func (p *FacebookProvider) Name() string { return ProviderFacebook }

// Exchange implements port.IdentityProvider.
func (p *FacebookProvider) Exchange(ctx context.Context, payload port.CallbackPayload) (domain.IdentityClaim, error) {
	token, err := p.client.exchangeCode(ctx, payload.Code, payload.RedirectURI)
	if err != nil {
		return domain.IdentityClaim{}, err
	}

	var profile struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := p.client.fetchProfile(ctx, token.AccessToken, &profile); err != nil {
		return domain.IdentityClaim{}, err
	}

	if profile.ID == "" {
		return domain.IdentityClaim{}, ErrProviderRejected
	}

	claims := domain.ProfileClaims{}
	if profile.Name != "" {
		claims[domain.ClaimDisplayName] = profile.Name
	}
	if profile.Email != "" {
		claims[domain.ClaimEmail] = profile.Email
	}

	return domain.IdentityClaim{
		Provider:       ProviderFacebook,
		ExternalID:     profile.ID,
		Claims:         claims,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: expiryFromSeconds(p.now(), token.ExpiresIn),
	}, nil
}

var _ port.IdentityProvider = (*FacebookProvider)(nil)
