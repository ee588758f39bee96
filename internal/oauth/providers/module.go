package providers

import (
	"github.com/kindredhq/kindred/internal/config"
	"go.uber.org/fx"
)

// NewProvider selects the provider implementation for the configured name.
// Google gets the OIDC-verifying implementation; everything else is served
// from the endpoint catalog.
func NewProvider(cfg *config.Config) (Provider, error) {
	if cfg.Mail.Provider == "google" {
		return NewGoogleProvider(&cfg.Mail)
	}

	catalog, err := LoadCatalog(cfg.Mail.CatalogFile)
	if err != nil {
		return nil, err
	}
	entry, err := catalog.Lookup(cfg.Mail.Provider)
	if err != nil {
		return nil, err
	}
	return NewEndpointProvider(&cfg.Mail, entry), nil
}

// Module provides the mail provider dependencies
var Module = fx.Module("providers",
	fx.Provide(
		NewProvider,
	),
)
