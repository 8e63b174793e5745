package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
	"github.com/arklim/auth-gateway/internal/core/port"
)

// VKProvider signs users in with VK.com OAuth. VK reports the user id and
// email directly in the token response; the profile call only enriches the
// claim set.
type VKProvider struct {
	client *oauthClient
	now    func() time.Time
}

// NewVKProvider constructs the VK adapter.
func NewVKProvider(cfg ProviderConfig, httpClient *http.Client) *VKProvider {
	return &VKProvider{
		client: newOAuthClient(ProviderVK, cfg, httpClient),
		now:    time.Now,
	}
}

// Name implements port.IdentityProvider.
func (p *VKProvider) Name() string { return ProviderVK }

// Exchange implements port.IdentityProvider.
func (p *VKProvider) Exchange(ctx context.Context, payload port.CallbackPayload) (domain.IdentityClaim, error) {
	token, err := p.client.exchangeCode(ctx, payload.Code, payload.RedirectURI)
	if err != nil {
		return domain.IdentityClaim{}, err
	}

	externalID := token.UserID.String()
	if externalID == "" {
		return domain.IdentityClaim{}, ErrProviderRejected
	}

	claims := domain.ProfileClaims{}
	if token.Email != "" {
		claims[domain.ClaimEmail] = token.Email
	}

	var profile struct {
		Response []struct {
			ID         json.Number `json:"id"`
			FirstName  string      `json:"first_name"`
			LastName   string      `json:"last_name"`
			ScreenName string      `json:"screen_name"`
		} `json:"response"`
	}
	if err := p.client.fetchProfile(ctx, token.AccessToken, &profile); err != nil {
		return domain.IdentityClaim{}, err
	}

	if len(profile.Response) > 0 {
		entry := profile.Response[0]
		if entry.ScreenName != "" {
			claims[domain.ClaimUsername] = entry.ScreenName
		}
		if name := strings.TrimSpace(entry.FirstName + " " + entry.LastName); name != "" {
			claims[domain.ClaimDisplayName] = name
		}
	}

	return domain.IdentityClaim{
		Provider:       ProviderVK,
		ExternalID:     externalID,
		Claims:         claims,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: expiryFromSeconds(p.now(), token.ExpiresIn),
	}, nil
}

var _ port.IdentityProvider = (*VKProvider)(nil)
