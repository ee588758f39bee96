package oauth

import (
	"context"

	"go.uber.org/fx"
)

// NewStateRegistryWithLifecycle ties the registry sweep to the app lifecycle.
func NewStateRegistryWithLifecycle(lc fx.Lifecycle) *StateRegistry {
	registry := NewStateRegistry()
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			registry.Stop()
			return nil
		},
	})
	return registry
}

// Module provides the credential lifecycle dependencies
var Module = fx.Module("oauth",
	fx.Provide(
		NewStateRegistryWithLifecycle,
		NewService,
	),
)
