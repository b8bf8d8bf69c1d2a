package action

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relayforge/destinations/internal/cache"
	"github.com/relayforge/destinations/internal/reqconf"
)

// Builder assembles an Action. Steps execute in the order they were
// added. Build returns an immutable value; the builder is not reused
// across actions.
type Builder struct {
	name       string
	steps      []Step
	extensions []reqconf.Extension
	httpClient *http.Client
	err        error
}

// NewBuilder starts an action with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Extensions seeds the destination-level request extensions. They are
// fixed at build time; nothing is added per call.
func (b *Builder) Extensions(exts ...reqconf.Extension) *Builder {
	b.extensions = append(b.extensions, exts...)
	return b
}

// HTTPClient overrides the outbound client, primarily for tests.
func (b *Builder) HTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// ValidateSettings adds a settings validation step for schema.
func (b *Builder) ValidateSettings(schema map[string]any) *Builder {
	return b.validate("validate settings", schema, TargetSettings)
}

// ValidatePayload adds a payload validation step for schema.
func (b *Builder) ValidatePayload(schema map[string]any) *Builder {
	return b.validate("validate payload", schema, TargetPayload)
}

func (b *Builder) validate(name string, schema map[string]any, target ValidationTarget) *Builder {
	if b.err != nil {
		return b
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		b.err = fmt.Errorf("action %s: compile %s schema: %w", b.name, target, err)
		return b
	}
	b.steps = append(b.steps, &validateStep{name: name, schema: compiled, target: target})
	return b
}

// CachedLookup adds a cached lookup step. The resolved value is stored
// on the execute input under resultField for later steps.
func (b *Builder) CachedLookup(name string, c *cache.Cache, ttl time.Duration, key KeyFunc, value PerformFunc, resultField string) *Builder {
	if b.err != nil {
		return b
	}
	if c == nil || key == nil || value == nil || resultField == "" {
		b.err = fmt.Errorf("action %s: cached lookup %s requires a cache, key, value and result field", b.name, name)
		return b
	}
	b.steps = append(b.steps, &cachedStep{
		name:  name,
		ttl:   ttl,
		key:   key,
		value: value,
		field: resultField,
		cache: c,
	})
	return b
}

// Perform adds the partner request step.
func (b *Builder) Perform(fn PerformFunc) *Builder {
	if b.err != nil {
		return b
	}
	if fn == nil {
		b.err = fmt.Errorf("action %s: nil perform function", b.name)
		return b
	}
	b.steps = append(b.steps, &requestStep{name: "perform", fn: fn})
	return b
}

// Build finalizes the action.
func (b *Builder) Build() (*Action, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("action %s: no steps", b.name)
	}
	return &Action{
		name:       b.name,
		steps:      append([]Step(nil), b.steps...),
		extensions: append([]reqconf.Extension(nil), b.extensions...),
		httpClient: b.httpClient,
	}, nil
}
