package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/kindredhq/kindred/internal/config"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ensure FirestoreStore implements the store interface
var _ CredentialStore = (*FirestoreStore)(nil)

// FirestoreStore keeps one credential document per user in a single
// collection, for deployments where the service runs behind multiple
// instances and a process-local map would not do.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a Firestore-backed credential store.
func NewFirestoreStore(ctx context.Context, cfg *config.FirestoreConfig) (*FirestoreStore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if cfg.Database != "" && cfg.Database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.Database, opts...)
	} else {
		client, err = firestore.NewClient(ctx, cfg.ProjectID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStore{
		client:     client,
		collection: cfg.Collection,
	}, nil
}

func (s *FirestoreStore) Get(ctx context.Context, userID string) (*Credential, error) {
	doc, err := s.client.Collection(s.collection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential from Firestore: %w", err)
	}

	var cred Credential
	if err := doc.DataTo(&cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

func (s *FirestoreStore) Upsert(ctx context.Context, cred *Credential) error {
	ref := s.client.Collection(s.collection).Doc(cred.UserID)

	// The whole document is written transactionally so a reader never sees a
	// stale access token paired with a rotated refresh token.
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		copied := *cred
		copied.UpdatedAt = time.Now().UTC()

		existing, err := tx.Get(ref)
		switch {
		case err == nil:
			var prev Credential
			if err := existing.DataTo(&prev); err == nil {
				copied.CreatedAt = prev.CreatedAt
			}
		case status.Code(err) == codes.NotFound:
			if copied.CreatedAt.IsZero() {
				copied.CreatedAt = copied.UpdatedAt
			}
		default:
			return err
		}

		return tx.Set(ref, &copied)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert credential in Firestore: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.client.Collection(s.collection).Doc(userID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete credential from Firestore: %w", err)
	}
	return nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
