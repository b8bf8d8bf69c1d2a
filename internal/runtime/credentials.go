package runtime

import (
	"context"
	"log/slog"

	"github.com/relayforge/destinations/internal/destination"
	"github.com/relayforge/destinations/internal/domain"
)

// TestCredentials runs the reduced credential-testing pipeline:
// settings validation followed by the destination's credential probe
// through the request extension chain. Every failure is normalized to
// the single generic credentials error; the real cause goes to the log
// only, never to the caller.
func (e *Engine) TestCredentials(ctx context.Context, dest *destination.Destination, settings domain.Settings) error {
	// Credential calls may or may not carry subscriptions; either way
	// actions only ever see destination-level settings.
	probeSettings := make(domain.Settings, len(settings))
	for k, v := range settings {
		if k == "subscriptions" {
			continue
		}
		probeSettings[k] = v
	}

	if err := dest.ValidateSettings(probeSettings); err != nil {
		e.logger.Info("credential test failed settings validation",
			slog.String("destination", dest.Slug()),
			slog.String("error", err.Error()),
		)
		return domain.ErrCredentials()
	}

	in := &domain.ExecuteInput{
		Payload:  map[string]any{},
		Settings: probeSettings,
	}
	declared, err := dest.Probe(ctx, in)
	if err != nil {
		e.logger.Info("credential probe failed",
			slog.String("destination", dest.Slug()),
			slog.String("error", err.Error()),
		)
		return domain.ErrCredentials()
	}
	if !declared {
		e.logger.Debug("destination declares no credential probe, validation only",
			slog.String("destination", dest.Slug()))
	}
	return nil
}
