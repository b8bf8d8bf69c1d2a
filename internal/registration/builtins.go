// Package registration wires the builtin destinations into a registry.
// Destinations register explicitly here rather than through package
// init side effects so callers control exactly what is available.
package registration

import (
	"github.com/relayforge/destinations/internal/config"
	"github.com/relayforge/destinations/internal/destination"
	"github.com/relayforge/destinations/internal/destinations/webhook"
)

// RegisterBuiltins builds every enabled builtin destination into the
// registry.
func RegisterBuiltins(registry *destination.Registry, cfg config.DestinationsConfig, opts destination.BuildOptions) error {
	if cfg.Webhook.Enabled {
		if err := webhook.Register(registry, opts); err != nil {
			return err
		}
	}
	return nil
}
