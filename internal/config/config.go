package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("kindred version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Mail    MailConfig    `mapstructure:"mail"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// MailConfig configures the third-party email provider link.
type MailConfig struct {
	Provider      string   `mapstructure:"provider"` // google, microsoft, or a catalog entry name
	ClientID      string   `mapstructure:"client_id"`
	ClientSecret  string   `mapstructure:"client_secret"`
	RedirectURI   string   `mapstructure:"redirect_uri"`
	Scopes        []string `mapstructure:"scopes"`         // empty means provider defaults
	EncryptionKey string   `mapstructure:"encryption_key"` // 64 hex chars (32 bytes)
	CatalogFile   string   `mapstructure:"catalog_file"`   // optional provider catalog overrides
	SuccessURL    string   `mapstructure:"success_url"`
	ErrorURL      string   `mapstructure:"error_url"`
}

// EncryptionKeyBytes decodes the configured hex key. The key must decode to
// exactly 32 bytes; anything else is a configuration error.
func (m *MailConfig) EncryptionKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(m.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("mail.encryption_key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("mail.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

type StorageDriver string

const (
	StorageDriverMemory    StorageDriver = "memory"
	StorageDriverFirestore StorageDriver = "firestore"
)

type StorageConfig struct {
	Driver    StorageDriver   `mapstructure:"driver"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
}

type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Database        string `mapstructure:"database"`
	Collection      string `mapstructure:"collection"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("storage-driver", string(StorageDriverMemory), "Credential storage driver (memory|firestore)")
	pflag.String("catalog-file", "", "Path to the provider catalog overrides file")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("KINDRED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	// Load ./config.yaml first
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AddConfigPath("/etc/kindred")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	// Loading additional config files
	if _, err := os.Stat("/config/config.yaml"); err == nil {
		viper.SetConfigFile("/config/config.yaml")
		// Merge /config/config.yaml (overrides overlapping keys)
		if err := viper.MergeInConfig(); err != nil {
			// It's OK if this file doesn't exist, only error if it's another problem
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if driver := viper.GetString("storage-driver"); driver != "" {
		switch StorageDriver(driver) {
		case StorageDriverMemory, StorageDriverFirestore:
			config.Storage.Driver = StorageDriver(driver)
		}
	}

	if catalogFile := viper.GetString("catalog-file"); catalogFile != "" {
		config.Mail.CatalogFile = catalogFile
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate rejects configurations that must never reach request handling.
// Missing or malformed values fail startup rather than individual requests.
func validate(config *Config) error {
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}

	if config.Mail.Provider == "" {
		return fmt.Errorf("mail.provider is required, please adjust the config or set KINDRED_MAIL_PROVIDER")
	}
	if config.Mail.ClientID == "" {
		return fmt.Errorf("mail.client_id is required, please adjust the config or set KINDRED_MAIL_CLIENT_ID")
	}
	if config.Mail.ClientSecret == "" {
		return fmt.Errorf("mail.client_secret is required, please adjust the config or set KINDRED_MAIL_CLIENT_SECRET")
	}
	if config.Mail.RedirectURI == "" {
		return fmt.Errorf("mail.redirect_uri is required, please adjust the config or set KINDRED_MAIL_REDIRECT_URI")
	}
	if _, err := config.Mail.EncryptionKeyBytes(); err != nil {
		return err
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = StorageDriverMemory
	}
	if config.Storage.Driver == StorageDriverFirestore {
		if config.Storage.Firestore.ProjectID == "" {
			return fmt.Errorf("storage.firestore.project_id is required when the firestore driver is selected")
		}
		if config.Storage.Firestore.Collection == "" {
			config.Storage.Firestore.Collection = "mail_credentials"
		}
	}

	return nil
}
