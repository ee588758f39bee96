package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMailConfig() MailConfig {
	return MailConfig{
		Provider:      "google",
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		RedirectURI:   "https://crm.example.com/mail/oauth/callback",
		EncryptionKey: strings.Repeat("ab", 32),
	}
}

func TestEncryptionKeyBytes(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{
			name: "valid 64 hex chars",
			key:  strings.Repeat("0f", 32),
		},
		{
			name:    "not hex",
			key:     strings.Repeat("zz", 32),
			wantErr: "not valid hex",
		},
		{
			name:    "too short",
			key:     strings.Repeat("ab", 16),
			wantErr: "must decode to 32 bytes",
		},
		{
			name:    "too long",
			key:     strings.Repeat("ab", 48),
			wantErr: "must decode to 32 bytes",
		},
		{
			name:    "empty",
			key:     "",
			wantErr: "must decode to 32 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MailConfig{EncryptionKey: tt.key}
			key, err := cfg.EncryptionKeyBytes()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, key, 32)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config defaults storage driver", func(t *testing.T) {
		cfg := &Config{Mail: validMailConfig()}
		require.NoError(t, validate(cfg))
		assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	})

	t.Run("missing client id", func(t *testing.T) {
		mail := validMailConfig()
		mail.ClientID = ""
		err := validate(&Config{Mail: mail})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mail.client_id")
	})

	t.Run("missing redirect uri", func(t *testing.T) {
		mail := validMailConfig()
		mail.RedirectURI = ""
		err := validate(&Config{Mail: mail})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mail.redirect_uri")
	})

	t.Run("malformed encryption key fails startup", func(t *testing.T) {
		mail := validMailConfig()
		mail.EncryptionKey = "deadbeef"
		err := validate(&Config{Mail: mail})
		require.Error(t, err)
	})

	t.Run("firestore driver requires project id", func(t *testing.T) {
		cfg := &Config{
			Mail:    validMailConfig(),
			Storage: StorageConfig{Driver: StorageDriverFirestore},
		}
		err := validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.firestore.project_id")
	})

	t.Run("firestore collection defaults", func(t *testing.T) {
		cfg := &Config{
			Mail: validMailConfig(),
			Storage: StorageConfig{
				Driver:    StorageDriverFirestore,
				Firestore: FirestoreConfig{ProjectID: "kindred-prod"},
			},
		}
		require.NoError(t, validate(cfg))
		assert.Equal(t, "mail_credentials", cfg.Storage.Firestore.Collection)
	})
}
