package destination

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relayforge/destinations/internal/action"
	"github.com/relayforge/destinations/internal/cache"
	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/fieldschema"
	"github.com/relayforge/destinations/internal/reqconf"
)

// Destination is a compiled, immutable partner integration.
type Destination struct {
	slug        string
	title       string
	description string

	settingsSchema    map[string]any
	settingsValidator *gojsonschema.Schema
	privateKeys       []string

	extensions []reqconf.Extension
	httpClient *http.Client
	testAuth   action.PerformFunc

	actions       map[string]*action.Action
	actionDefs    map[string]ActionDefinition
	actionSchemas map[string]map[string]any
}

// BuildOptions supply shared infrastructure to compiled destinations.
type BuildOptions struct {
	// Cache backs cached lookup steps. Required when any action
	// declares one.
	Cache *cache.Cache

	// HTTPClient overrides the outbound client, primarily for tests.
	HTTPClient *http.Client
}

// Build compiles a definition. Field declarations become JSON-Schema
// documents, perform functions become request steps, and every action
// pipeline is assembled in step order: validate settings, validate
// payload, cached lookups, perform.
func Build(def Definition, opts BuildOptions) (*Destination, error) {
	if def.Slug == "" {
		return nil, fmt.Errorf("destination definition requires a slug")
	}
	if len(def.Actions) == 0 {
		return nil, fmt.Errorf("destination %s: no actions declared", def.Slug)
	}

	settingsSchema, err := fieldschema.FieldsToSchema(def.SettingsFields)
	if err != nil {
		return nil, fmt.Errorf("destination %s: settings schema: %w", def.Slug, err)
	}
	settingsValidator, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(settingsSchema))
	if err != nil {
		return nil, fmt.Errorf("destination %s: compile settings schema: %w", def.Slug, err)
	}

	d := &Destination{
		slug:              def.Slug,
		title:             def.Title,
		description:       def.Description,
		settingsSchema:    settingsSchema,
		settingsValidator: settingsValidator,
		privateKeys:       fieldschema.PrivateKeys(def.SettingsFields),
		extensions:        append([]reqconf.Extension(nil), def.Extensions...),
		httpClient:        opts.HTTPClient,
		testAuth:          def.TestAuthentication,
		actions:           make(map[string]*action.Action, len(def.Actions)),
		actionDefs:        make(map[string]ActionDefinition, len(def.Actions)),
		actionSchemas:     make(map[string]map[string]any, len(def.Actions)),
	}

	for slug, actDef := range def.Actions {
		payloadSchema, err := fieldschema.FieldsToSchema(actDef.Fields)
		if err != nil {
			return nil, fmt.Errorf("destination %s: action %s: %w", def.Slug, slug, err)
		}

		builder := action.NewBuilder(slug).
			Extensions(d.extensions...).
			HTTPClient(opts.HTTPClient).
			ValidateSettings(settingsSchema).
			ValidatePayload(payloadSchema)

		for _, lookup := range actDef.Cached {
			if opts.Cache == nil {
				return nil, fmt.Errorf("destination %s: action %s declares cached lookups but no cache was supplied", def.Slug, slug)
			}
			builder.CachedLookup(lookup.Name, opts.Cache, lookup.TTL, lookup.Key, lookup.Value, lookup.ResultField)
		}

		if actDef.Perform == nil {
			return nil, fmt.Errorf("destination %s: action %s: missing perform function", def.Slug, slug)
		}
		compiled, err := builder.Perform(actDef.Perform).Build()
		if err != nil {
			return nil, err
		}

		d.actions[slug] = compiled
		d.actionDefs[slug] = actDef
		d.actionSchemas[slug] = payloadSchema
	}

	return d, nil
}

// Slug returns the destination slug.
func (d *Destination) Slug() string { return d.slug }

// Title returns the human-readable title.
func (d *Destination) Title() string { return d.title }

// Description returns the destination description.
func (d *Destination) Description() string { return d.description }

// PrivateKeys lists the settings keys that must be redacted before any
// instrumentation record is persisted.
func (d *Destination) PrivateKeys() []string { return d.privateKeys }

// SettingsSchema returns the JSON-Schema for destination settings.
func (d *Destination) SettingsSchema() map[string]any { return d.settingsSchema }

// Action resolves a compiled action by slug.
func (d *Destination) Action(slug string) (*action.Action, bool) {
	a, ok := d.actions[slug]
	return a, ok
}

// ActionSchema returns the payload JSON-Schema for an action.
func (d *Destination) ActionSchema(slug string) (map[string]any, bool) {
	s, ok := d.actionSchemas[slug]
	return s, ok
}

// ActionSlugs lists registered action slugs in sorted order.
func (d *Destination) ActionSlugs() []string {
	slugs := make([]string, 0, len(d.actions))
	for slug := range d.actions {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// ActionDefinition returns the declarative definition for an action.
func (d *Destination) ActionDefinition(slug string) (ActionDefinition, bool) {
	def, ok := d.actionDefs[slug]
	return def, ok
}

// ValidateSettings checks settings against the destination schema,
// returning the full violation list on failure.
func (d *Destination) ValidateSettings(settings domain.Settings) error {
	result, err := d.settingsValidator.Validate(gojsonschema.NewGoLoader(map[string]any(settings)))
	if err != nil {
		return domain.NewError(domain.ErrorKindValidation, "validate settings").WithCause(err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			violations = append(violations, violation.String())
		}
		return domain.ErrValidation("settings", violations)
	}
	return nil
}

// Probe runs the destination's credential probe through the extension
// chain. It reports whether a probe is declared at all.
func (d *Destination) Probe(ctx context.Context, in *domain.ExecuteInput) (bool, error) {
	if d.testAuth == nil {
		return false, nil
	}
	cfg := reqconf.Compose(d.extensions, in)
	req := reqconf.New(cfg, d.httpClient)
	_, err := d.testAuth(ctx, req, in)
	return true, err
}

// Autocomplete invokes the lookup function for a dynamic field. It is
// called by the metadata API, never by the event pipeline.
func (d *Destination) Autocomplete(ctx context.Context, actionSlug, fieldKey string, in *domain.ExecuteInput) ([]AutocompleteItem, error) {
	def, ok := d.actionDefs[actionSlug]
	if !ok {
		return nil, domain.ErrUnknownAction(actionSlug)
	}
	fn, ok := def.Autocomplete[fieldKey]
	if !ok {
		return nil, fmt.Errorf("action %s: field %q has no autocomplete", actionSlug, fieldKey)
	}
	cfg := reqconf.Compose(d.extensions, in)
	req := reqconf.New(cfg, d.httpClient)
	return fn(ctx, req, in)
}
