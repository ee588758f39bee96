package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/kindredhq/kindred/internal/config"
	"github.com/kindredhq/kindred/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer    = "https://accounts.google.com"
	googleRevokeURL = "https://oauth2.googleapis.com/revoke"
	googleUserinfo  = "https://openidconnect.googleapis.com/v1/userinfo"

	// requestTimeout bounds every provider network call so callback and
	// refresh paths cannot hang indefinitely.
	requestTimeout = 8 * time.Second
)

// defaultGoogleScopes is the minimum grant for sending mail on the user's
// behalf plus read-only access, and identity claims for the linked address.
var defaultGoogleScopes = []string{
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.readonly",
	oidc.ScopeOpenID,
	"email",
}

type GoogleProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

func NewGoogleProvider(cfg *config.MailConfig) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(context.Background(), googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultGoogleScopes
	}

	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}

	return &GoogleProvider{
		oauth2Config: oauth2Cfg,
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthCodeURL requests offline access and forces the consent screen so
// Google returns a refresh token even for a user re-authorizing.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return grantFromToken(token), nil
}

func (p *GoogleProvider) Identity(ctx context.Context, grant *Grant) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	scopes := strings.Fields(grant.Scope)
	if len(scopes) == 0 {
		scopes = p.oauth2Config.Scopes
	}

	if grant.IDToken != "" {
		idToken, err := p.verifier.Verify(ctx, grant.IDToken)
		if err != nil {
			return nil, fmt.Errorf("failed to verify ID token: %w", err)
		}

		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to parse claims: %w", err)
		}
		if claims.Email == "" {
			return nil, fmt.Errorf("no email claim in ID token")
		}

		return &Identity{AccountEmail: claims.Email, GrantedScopes: scopes}, nil
	}

	// No id_token in the grant; fall back to the userinfo endpoint.
	email, err := p.fetchUserinfoEmail(ctx, grant.AccessToken)
	if err != nil {
		return nil, err
	}
	return &Identity{AccountEmail: email, GrantedScopes: scopes}, nil
}

func (p *GoogleProvider) fetchUserinfoEmail(ctx context.Context, accessToken string) (string, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfo, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var userInfo struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return "", fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if userInfo.Email == "" {
		return "", fmt.Errorf("no email in userinfo response")
	}
	return userInfo.Email, nil
}

func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := p.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	grant := grantFromToken(token)
	// TokenSource echoes the input refresh token back; only report it as
	// rotated when Google actually returned a different one.
	if grant.RefreshToken == refreshToken {
		grant.RefreshToken = ""
	}
	return grant, nil
}

func (p *GoogleProvider) Revoke(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleRevokeURL, strings.NewReader(form.Encode()))
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

// grantFromToken maps an oauth2 token response onto a Grant.
func grantFromToken(token *oauth2.Token) *Grant {
	grant := &Grant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		grant.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		grant.Scope = scope
	}
	return grant
}
