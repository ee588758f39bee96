package providers

import (
	"context"
	"time"
)

// Grant is the result of an authorization-code exchange or a refresh.
type Grant struct {
	// AccessToken is the short-lived bearer token.
	AccessToken string

	// RefreshToken is the long-lived token used to mint new access tokens.
	// Empty on refresh grants unless the provider rotated it.
	RefreshToken string

	// ExpiresAt is the absolute expiry of the access token.
	ExpiresAt time.Time

	// IDToken is the raw OIDC id_token when the provider returns one.
	IDToken string

	// Scope is the space-separated granted scopes when the provider reports
	// them in the token response.
	Scope string
}

// Identity describes the linked provider account.
type Identity struct {
	AccountEmail  string
	GrantedScopes []string
}

// Provider defines the interface the lifecycle service depends on. All
// implementations are network-backed and bound by short request timeouts;
// failures surface as errors, retry policy belongs to the caller.
type Provider interface {
	// AuthCodeURL returns the provider authorization URL carrying the state
	// nonce, with offline access and forced re-consent requested so a
	// refresh token is granted even on re-authorization.
	AuthCodeURL(state string) string

	// ExchangeCode exchanges an authorization code for a grant.
	ExchangeCode(ctx context.Context, code string) (*Grant, error)

	// Identity resolves the linked account's email and granted scopes.
	Identity(ctx context.Context, grant *Grant) (*Identity, error)

	// Refresh mints a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)

	// Revoke invalidates an access token with the provider.
	Revoke(ctx context.Context, accessToken string) error
}
