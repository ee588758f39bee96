// Package oauth owns the credential lifecycle for linked mail accounts:
// the CSRF-protected authorization handshake, encrypted token persistence,
// expiry-aware refresh, and disconnect.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kindredhq/kindred/internal/crypto"
	"github.com/kindredhq/kindred/internal/logger"
	"github.com/kindredhq/kindred/internal/oauth/providers"
	"github.com/kindredhq/kindred/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// refreshWindow is the safety buffer before expiry within which the stored
// access token is treated as stale and refreshed.
const refreshWindow = 5 * time.Minute

// Service is the single entry point for managing and using a user's linked
// mail credential.
type Service struct {
	provider providers.Provider
	states   *StateRegistry
	store    store.CredentialStore
	cipher   *crypto.TokenCipher

	// refreshGroup collapses concurrent refreshes for the same user into
	// one provider call, keeping the stored record self-consistent.
	refreshGroup singleflight.Group

	now func() time.Time
}

// Status is the read-only connection projection. It never carries token
// material.
type Status struct {
	Connected    bool       `json:"connected"`
	AccountEmail string     `json:"account_email,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// NewService creates a new mail credential lifecycle service.
func NewService(provider providers.Provider, states *StateRegistry, credStore store.CredentialStore, cipher *crypto.TokenCipher) *Service {
	return &Service{
		provider: provider,
		states:   states,
		store:    credStore,
		cipher:   cipher,
		now:      time.Now,
	}
}

// BeginAuthorization issues a state nonce for userID and returns the
// provider authorization URL carrying it. The only side effect is the
// registry entry, which expires on its own if the user never comes back.
func (s *Service) BeginAuthorization(_ context.Context, userID string) (string, error) {
	nonce, err := s.states.Issue(userID)
	if err != nil {
		return "", err
	}

	logger.Info("Started mail authorization", zap.String("user_id", userID))
	return s.provider.AuthCodeURL(nonce), nil
}

// CompleteCallback consumes the state nonce, exchanges the authorization
// code, and stores the encrypted credential. Re-linking an already
// connected user updates the record in place.
func (s *Service) CompleteCallback(ctx context.Context, nonce, code string) (*store.Credential, error) {
	userID, err := s.states.Consume(nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	grant, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeExchangeFailed, err)
	}
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		return nil, ErrIncompleteGrant
	}

	identity, err := s.provider.Identity(ctx, grant)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeExchangeFailed, err)
	}

	encAccess, err := s.cipher.Encrypt(grant.AccessToken)
	if err != nil {
		return nil, err
	}
	encRefresh, err := s.cipher.Encrypt(grant.RefreshToken)
	if err != nil {
		return nil, err
	}

	cred := &store.Credential{
		UserID:                userID,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		ExpiresAt:             grant.ExpiresAt,
		AccountEmail:          identity.AccountEmail,
		Scopes:                identity.GrantedScopes,
	}
	if err := s.store.Upsert(ctx, cred); err != nil {
		return nil, err
	}

	logger.Info("Linked mail account",
		zap.String("user_id", userID),
		zap.String("account_email", identity.AccountEmail),
	)
	return cred, nil
}

// GetValidAccessToken returns a plaintext access token that is valid for at
// least the refresh window. A fresh stored token is returned without any
// network call; a stale one is refreshed, persisted, and returned.
func (s *Service) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return "", ErrNotConnected
		}
		return "", err
	}

	if s.fresh(cred) {
		return s.cipher.Decrypt(cred.EncryptedAccessToken)
	}

	token, err, _ := s.refreshGroup.Do(userID, func() (interface{}, error) {
		return s.refresh(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (s *Service) fresh(cred *store.Credential) bool {
	return s.now().Add(refreshWindow).Before(cred.ExpiresAt)
}

func (s *Service) refresh(ctx context.Context, userID string) (string, error) {
	// Reload under the flight: a racer that lost the singleflight slot may
	// arrive after the winner already persisted a fresh token.
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return "", ErrNotConnected
		}
		return "", err
	}
	if s.fresh(cred) {
		return s.cipher.Decrypt(cred.EncryptedAccessToken)
	}

	refreshToken, err := s.cipher.Decrypt(cred.EncryptedRefreshToken)
	if err != nil {
		return "", err
	}

	grant, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		// The credential stays; the caller decides whether to prompt for
		// reconnection.
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	encAccess, err := s.cipher.Encrypt(grant.AccessToken)
	if err != nil {
		return "", err
	}
	cred.EncryptedAccessToken = encAccess
	cred.ExpiresAt = grant.ExpiresAt

	// Most providers keep the refresh token stable; persist it only when it
	// was rotated.
	if grant.RefreshToken != "" {
		encRefresh, err := s.cipher.Encrypt(grant.RefreshToken)
		if err != nil {
			return "", err
		}
		cred.EncryptedRefreshToken = encRefresh
	}

	if err := s.store.Upsert(ctx, cred); err != nil {
		return "", err
	}

	logger.Debug("Refreshed mail access token",
		zap.String("user_id", userID),
		zap.Time("expires_at", grant.ExpiresAt),
	)
	return grant.AccessToken, nil
}

// Disconnect revokes the access token with the provider on a best-effort
// basis and always deletes the local credential. Revocation failures are
// logged and swallowed; local disconnection succeeds whenever a record
// existed.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return ErrNotConnected
		}
		return err
	}

	if accessToken, err := s.cipher.Decrypt(cred.EncryptedAccessToken); err != nil {
		logger.Warn("Skipping token revocation, stored token unreadable",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else if err := s.provider.Revoke(ctx, accessToken); err != nil {
		logger.Warn("Token revocation failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}

	logger.Info("Disconnected mail account", zap.String("user_id", userID))
	return nil
}

// ConnectionStatus reports whether a mail account is linked. Absence of a
// credential is the normal "not connected" projection, not an error.
func (s *Service) ConnectionStatus(ctx context.Context, userID string) (*Status, error) {
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return &Status{Connected: false}, nil
		}
		return nil, err
	}

	return &Status{
		Connected:    true,
		AccountEmail: cred.AccountEmail,
		Scopes:       cred.Scopes,
		ExpiresAt:    &cred.ExpiresAt,
	}, nil
}
