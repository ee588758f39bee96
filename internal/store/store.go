// Package store persists one encrypted mail credential per user.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrCredentialNotFound is returned when a user has no stored credential.
var ErrCredentialNotFound = errors.New("credential not found")

// Credential is the persisted record for a user's linked mail account.
// Token fields hold ciphertext only; plaintext tokens never reach the store.
type Credential struct {
	UserID               string    `json:"user_id" firestore:"user_id"`
	EncryptedAccessToken string    `json:"encrypted_access_token" firestore:"encrypted_access_token"`
	EncryptedRefreshToken string   `json:"encrypted_refresh_token" firestore:"encrypted_refresh_token"`
	ExpiresAt            time.Time `json:"expires_at" firestore:"expires_at"`
	AccountEmail         string    `json:"account_email" firestore:"account_email"`
	Scopes               []string  `json:"scopes" firestore:"scopes"`
	CreatedAt            time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" firestore:"updated_at"`
}

// CredentialStore is the persistence boundary for mail credentials.
// At most one credential exists per user; writes are upserts keyed by UserID.
type CredentialStore interface {
	// Get returns the credential for userID, or ErrCredentialNotFound.
	Get(ctx context.Context, userID string) (*Credential, error)

	// Upsert creates or replaces the credential for cred.UserID in place.
	// CreatedAt is preserved across updates; UpdatedAt is set by the store.
	Upsert(ctx context.Context, cred *Credential) error

	// Delete removes the credential for userID. Deleting a missing record
	// is not an error.
	Delete(ctx context.Context, userID string) error
}
