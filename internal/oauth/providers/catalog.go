package providers

import (
	"fmt"
	"os"

	"golang.org/x/oauth2/microsoft"
	"gopkg.in/yaml.v3"
)

// CatalogEntry describes the OAuth2 endpoints of one mail provider.
type CatalogEntry struct {
	AuthURL     string            `yaml:"auth_url"`
	TokenURL    string            `yaml:"token_url"`
	RevokeURL   string            `yaml:"revoke_url,omitempty"`
	UserinfoURL string            `yaml:"userinfo_url,omitempty"`
	Scopes      []string          `yaml:"scopes,omitempty"`
	ExtraParams map[string]string `yaml:"extra_params,omitempty"`
}

// Catalog maps provider names to their endpoint definitions.
type Catalog map[string]CatalogEntry

// builtinCatalog ships the providers Kindred supports out of the box.
// Google is handled by the dedicated OIDC-verifying provider and is not
// listed here. Microsoft has no token revocation endpoint; disconnect for
// Outlook accounts is local-only.
func builtinCatalog() Catalog {
	azure := microsoft.AzureADEndpoint("common")
	return Catalog{
		"microsoft": {
			AuthURL:     azure.AuthURL,
			TokenURL:    azure.TokenURL,
			UserinfoURL: "https://graph.microsoft.com/v1.0/me",
			Scopes: []string{
				"offline_access",
				"https://graph.microsoft.com/Mail.Send",
				"https://graph.microsoft.com/Mail.Read",
				"https://graph.microsoft.com/User.Read",
			},
			ExtraParams: map[string]string{"prompt": "consent"},
		},
	}
}

// LoadCatalog returns the built-in catalog, merged with operator overrides
// from an optional YAML file. Override fields replace built-in fields
// per entry; unknown entries define new providers.
func LoadCatalog(path string) (Catalog, error) {
	catalog := builtinCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider catalog %s: %w", path, err)
	}

	var overrides Catalog
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog %s: %w", path, err)
	}

	for name, override := range overrides {
		entry := catalog[name]
		if override.AuthURL != "" {
			entry.AuthURL = override.AuthURL
		}
		if override.TokenURL != "" {
			entry.TokenURL = override.TokenURL
		}
		if override.RevokeURL != "" {
			entry.RevokeURL = override.RevokeURL
		}
		if override.UserinfoURL != "" {
			entry.UserinfoURL = override.UserinfoURL
		}
		if len(override.Scopes) > 0 {
			entry.Scopes = override.Scopes
		}
		if len(override.ExtraParams) > 0 {
			if entry.ExtraParams == nil {
				entry.ExtraParams = make(map[string]string)
			}
			for k, v := range override.ExtraParams {
				entry.ExtraParams[k] = v
			}
		}
		catalog[name] = entry
	}

	return catalog, nil
}

// Lookup returns the entry for name, validating that it is usable.
func (c Catalog) Lookup(name string) (*CatalogEntry, error) {
	entry, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown mail provider %q: not built in and not in the catalog file", name)
	}
	if entry.AuthURL == "" {
		return nil, fmt.Errorf("mail provider %q: auth_url is required", name)
	}
	if entry.TokenURL == "" {
		return nil, fmt.Errorf("mail provider %q: token_url is required", name)
	}
	return &entry, nil
}
