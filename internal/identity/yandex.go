package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
)

// YandexProvider signs users in with Yandex OAuth. Yandex expects the
// `OAuth` authorization scheme rather than `Bearer`.
type YandexProvider struct {
	client *oauthClient
	now    func() time.Time
}

// NewYandexProvider constructs the Yandex adapter.
func NewYandexProvider(cfg ProviderConfig, httpClient *http.Client) *YandexProvider {
	return &YandexProvider{
		client: newOAuthClient(ProviderYandex, cfg, httpClient),
		now:    time.Now,
	}
}

// Name implements port.IdentityProvider.
func (p *YandexProvider) Name() string { return ProviderYandex }

// Exchange implements port.IdentityProvider.
func (p *YandexProvider) Exchange(ctx context.Context, payload port.CallbackPayload) (domain.IdentityClaim, error) {
	token, err := p.client.exchangeCode(ctx, payload.Code, payload.RedirectURI)
	if err != nil {
		return domain.IdentityClaim{}, err
	}

	var profile struct {
		ID           string `json:"id"`
		Login        string `json:"login"`
		RealName     string `json:"real_name"`
		DefaultEmail string `json:"default_email"`
	}
	if err := p.client.fetchProfileWithScheme(ctx, "OAuth", token.AccessToken, &profile); err != nil {
		return domain.IdentityClaim{}, err
	}

	if profile.ID == "" {
		return domain.IdentityClaim{}, ErrProviderRejected
	}

	claims := domain.ProfileClaims{}
	if profile.Login != "" {
		claims[domain.ClaimUsername] = profile.Login
	}
	if name := firstNonEmpty(profile.RealName, profile.Login); name != "" {
		claims[domain.ClaimDisplayName] = name
	}
	if profile.DefaultEmail != "" {
		claims[domain.ClaimEmail] = profile.DefaultEmail
	}

	return domain.IdentityClaim{
		Provider:       ProviderYandex,
		ExternalID:     profile.ID,
		Claims:         claims,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: expiryFromSeconds(p.now(), token.ExpiresIn),
	}, nil
}

var _ port.IdentityProvider = (*YandexProvider)(nil)
