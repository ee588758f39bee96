package oauth

import "errors"

var (
	// ErrStateNotFound indicates an unknown or already-consumed state nonce.
	ErrStateNotFound = errors.New("authorization state not found")

	// ErrStateExpired indicates a state nonce past its validity window.
	ErrStateExpired = errors.New("authorization state expired")

	// ErrAuthorizationFailed indicates a callback that cannot be accepted;
	// the user must restart the flow.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// ErrCodeExchangeFailed indicates the provider rejected the
	// authorization code or the identity lookup. The provider's message is
	// preserved; codes and tokens never are.
	ErrCodeExchangeFailed = errors.New("authorization code exchange failed")

	// ErrIncompleteGrant indicates the provider omitted the access or
	// refresh token from an otherwise successful exchange.
	ErrIncompleteGrant = errors.New("provider grant is missing required tokens")

	// ErrNotConnected indicates the user has no linked mail account. Callers
	// usually treat this as a normal state rather than a failure.
	ErrNotConnected = errors.New("no mail account connected")

	// ErrRefreshFailed indicates the refresh token was rejected, typically
	// because the user revoked consent with the provider. The stored
	// credential is left intact so the UI can prompt reconnection.
	ErrRefreshFailed = errors.New("access token refresh failed")
)
