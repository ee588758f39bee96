package crypto

import (
	"github.com/kindredhq/kindred/internal/config"
	"go.uber.org/fx"
)

// NewTokenCipherFromConfig builds the cipher from the configured hex key.
func NewTokenCipherFromConfig(cfg *config.Config) (*TokenCipher, error) {
	key, err := cfg.Mail.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	return NewTokenCipher(key)
}

// Module provides the token cipher dependencies
var Module = fx.Module("crypto",
	fx.Provide(
		NewTokenCipherFromConfig,
	),
)
