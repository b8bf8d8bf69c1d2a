package action

import (
	"context"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relayforge/destinations/internal/cache"
	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/reqconf"
)

// PerformFunc is the partner-supplied request function compiled into a
// request step. Its return value becomes the step's result output.
type PerformFunc func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error)

// KeyFunc derives a cache key from the invocation input.
type KeyFunc func(in *domain.ExecuteInput) string

// ValidationTarget selects what a validate step checks.
type ValidationTarget string

const (
	TargetSettings ValidationTarget = "settings"
	TargetPayload  ValidationTarget = "payload"
)

// validateStep applies a compiled JSON-Schema to the settings or the
// payload. Failures carry every violation, not just the first.
type validateStep struct {
	name   string
	schema *gojsonschema.Schema
	target ValidationTarget
}

func (s *validateStep) Name() string { return s.name }

func (s *validateStep) Execute(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
	var doc any
	switch s.target {
	case TargetSettings:
		doc = map[string]any(in.Settings)
	case TargetPayload:
		doc = in.Payload
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindValidation, "validate "+string(s.target)).WithCause(err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			violations = append(violations, violation.String())
		}
		return nil, domain.ErrValidation(string(s.target), violations)
	}
	return "validated " + string(s.target), nil
}

// requestStep invokes the partner perform function against the
// composed, extension-decorated request.
type requestStep struct {
	name string
	fn   PerformFunc
}

func (s *requestStep) Name() string { return s.name }

func (s *requestStep) Execute(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
	return s.fn(ctx, req, in)
}

// cachedStep memoizes a lookup through the shared cache and writes the
// resolved value into the execute input under its result field. It
// never touches the payload.
type cachedStep struct {
	name  string
	ttl   time.Duration
	key   KeyFunc
	value PerformFunc
	field string
	cache *cache.Cache
}

func (s *cachedStep) Name() string { return s.name }

func (s *cachedStep) Execute(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
	key := s.name + ":" + s.key(in)
	v, err := s.cache.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) (any, error) {
		return s.value(ctx, req, in)
	})
	if err != nil {
		return nil, err
	}
	in.Resolve(s.field, v)
	return v, nil
}
