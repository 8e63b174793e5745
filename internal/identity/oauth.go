package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProviderConfig carries the per-provider OAuth settings. Endpoint URLs are
// configurable so tests and self-hosted deployments can point elsewhere.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	ProfileURL   string
	RedirectURI  string
	Timeout      time.Duration
}

const defaultExchangeTimeout = 10 * time.Second

// oauthClient holds the code-exchange and profile-fetch plumbing shared by
// every OAuth2-style adapter.
type oauthClient struct {
	name string
	cfg  ProviderConfig
	http *http.Client
}

func newOAuthClient(name string, cfg ProviderConfig, httpClient *http.Client) *oauthClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExchangeTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &oauthClient{name: name, cfg: cfg, http: httpClient}
}

// tokenResponse is the union of the token endpoint fields the bundled
// providers return. Unknown fields are ignored.
type tokenResponse struct {
	AccessToken      string      `json:"access_token"`
	TokenType        string      `json:"token_type"`
	ExpiresIn        int64       `json:"expires_in"`
	IDToken          string      `json:"id_token"`
	UserID           json.Number `json:"user_id"`
	Email            string      `json:"email"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

// exchangeCode swaps an authorization code for an access token. The in-flight
// request is abandoned when the caller context expires; no retry is performed.
func (c *oauthClient) exchangeCode(ctx context.Context, code, redirectURI string) (tokenResponse, error) {
	if redirectURI == "" {
		redirectURI = c.cfg.RedirectURI
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {redirectURI},
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("%w: build token request: %v", ErrProviderUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("%w: %s token endpoint: %v", ErrProviderUnreachable, c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("%w: read %s token response: %v", ErrProviderUnreachable, c.name, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return tokenResponse{}, fmt.Errorf("%w: %s token endpoint returned %d", ErrProviderUnreachable, c.name, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil && resp.StatusCode == http.StatusOK {
		return tokenResponse{}, fmt.Errorf("%w: %s token response unparseable", ErrProviderRejected, c.name)
	}

	if resp.StatusCode != http.StatusOK || token.Error != "" || token.AccessToken == "" {
		return tokenResponse{}, fmt.Errorf("%w: %s reported %q", ErrProviderRejected, c.name, firstNonEmpty(token.Error, "invalid_grant"))
	}

	return token, nil
}

// fetchProfile performs an authenticated GET against the profile endpoint and
// decodes the JSON body into out. A body that fails to decode is not an
// error: the claim set simply stays partial.
func (c *oauthClient) fetchProfile(ctx context.Context, accessToken string, out any) error {
	return c.fetchProfileWithScheme(ctx, "Bearer", accessToken, out)
}

func (c *oauthClient) fetchProfileWithScheme(ctx context.Context, scheme, accessToken string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProfileURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build profile request: %v", ErrProviderUnreachable, err)
	}
	if scheme != "" {
		req.Header.Set("Authorization", scheme+" "+accessToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s profile endpoint: %v", ErrProviderUnreachable, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s profile endpoint returned %d", ErrProviderUnreachable, c.name, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s profile endpoint returned %d", ErrProviderRejected, c.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s profile response: %v", ErrProviderUnreachable, c.name, err)
	}

	_ = json.Unmarshal(body, out)
	return nil
}

func expiryFromSeconds(now time.Time, seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	at := now.Add(time.Duration(seconds) * time.Second).UTC()
	return &at
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
