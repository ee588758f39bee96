package store

import (
	"context"
	"fmt"

	"github.com/kindredhq/kindred/internal/config"
	"go.uber.org/fx"
)

// NewCredentialStore selects the store implementation from configuration.
func NewCredentialStore(lc fx.Lifecycle, cfg *config.Config) (CredentialStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory, "":
		return NewMemoryStore(), nil

	case config.StorageDriverFirestore:
		fs, err := NewFirestoreStore(context.Background(), &cfg.Storage.Firestore)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return fs.Close()
			},
		})
		return fs, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

// Module provides the credential store dependencies
var Module = fx.Module("store",
	fx.Provide(
		NewCredentialStore,
	),
)
