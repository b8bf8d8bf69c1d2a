// Package destination turns declarative partner definitions into
// executable destinations and holds the registry the engine resolves
// them from. Definitions register once at startup; everything built
// from them is immutable afterwards.
package destination

import (
	"context"
	"time"

	"github.com/relayforge/destinations/internal/action"
	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/fieldschema"
	"github.com/relayforge/destinations/internal/reqconf"
)

// Definition is the declarative contract a partner integration
// supplies.
type Definition struct {
	Slug        string
	Title       string
	Description string

	// SettingsFields declare destination-level settings. Password-typed
	// fields are redacted from instrumentation.
	SettingsFields []fieldschema.Field

	// Extensions decorate every outgoing request for this destination
	// (auth headers, base URLs). Each action's extension list is seeded
	// from these at build time and never changes per call.
	Extensions []reqconf.Extension

	// Actions maps action slugs to their definitions.
	Actions map[string]ActionDefinition

	// TestAuthentication is the optional credential probe used by the
	// credential-testing endpoint. It runs through the same extension
	// chain as action requests.
	TestAuthentication action.PerformFunc
}

// ActionDefinition declares one partner action.
type ActionDefinition struct {
	Title       string
	Description string

	// DefaultSubscription is the shorthand predicate suggested to
	// callers configuring this action.
	DefaultSubscription string

	// Fields declare the action payload; they compile to the JSON-Schema
	// the payload validation step enforces.
	Fields []fieldschema.Field

	// Cached lookups run before Perform, in declaration order.
	Cached []CachedLookup

	// Perform executes the partner request.
	Perform action.PerformFunc

	// Autocomplete supplies lookup functions for dynamic fields, keyed
	// by field key. Invoked by the metadata API, not by the event
	// pipeline.
	Autocomplete map[string]AutocompleteFunc
}

// CachedLookup declares a cached lookup step.
type CachedLookup struct {
	Name        string
	TTL         time.Duration
	Key         action.KeyFunc
	Value       action.PerformFunc
	ResultField string
}

// AutocompleteItem is one suggestion for a dynamic field.
type AutocompleteItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// AutocompleteFunc produces suggestions for a dynamic field.
type AutocompleteFunc func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) ([]AutocompleteItem, error)
