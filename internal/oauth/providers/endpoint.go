package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kindredhq/kindred/internal/config"
	"github.com/kindredhq/kindred/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// EndpointProvider implements Provider against the plain OAuth2 endpoints of
// a catalog entry, for providers without a dedicated implementation.
type EndpointProvider struct {
	oauth2Config *oauth2.Config
	entry        *CatalogEntry
}

func NewEndpointProvider(cfg *config.MailConfig, entry *CatalogEntry) *EndpointProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = entry.Scopes
	}

	return &EndpointProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  entry.AuthURL,
				TokenURL: entry.TokenURL,
			},
			Scopes: scopes,
		},
		entry: entry,
	}
}

func (p *EndpointProvider) AuthCodeURL(state string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	for k, v := range p.entry.ExtraParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

func (p *EndpointProvider) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return grantFromToken(token), nil
}

func (p *EndpointProvider) Identity(ctx context.Context, grant *Grant) (*Identity, error) {
	scopes := strings.Fields(grant.Scope)
	if len(scopes) == 0 {
		scopes = p.oauth2Config.Scopes
	}

	if p.entry.UserinfoURL == "" {
		return nil, fmt.Errorf("provider has no userinfo endpoint configured")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.entry.UserinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+grant.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	// Field names differ across providers: OIDC userinfo uses "email",
	// Microsoft Graph uses "mail" with "userPrincipalName" as fallback.
	var userInfo struct {
		Email             string `json:"email"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	email := userInfo.Email
	if email == "" {
		email = userInfo.Mail
	}
	if email == "" {
		email = userInfo.UserPrincipalName
	}
	if email == "" {
		return nil, fmt.Errorf("no account email in userinfo response")
	}

	return &Identity{AccountEmail: email, GrantedScopes: scopes}, nil
}

func (p *EndpointProvider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := p.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	grant := grantFromToken(token)
	if grant.RefreshToken == refreshToken {
		grant.RefreshToken = ""
	}
	return grant, nil
}

func (p *EndpointProvider) Revoke(ctx context.Context, accessToken string) error {
	if p.entry.RevokeURL == "" {
		return fmt.Errorf("provider does not support token revocation")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.entry.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke request failed with status %d", resp.StatusCode)
	}
	return nil
}
