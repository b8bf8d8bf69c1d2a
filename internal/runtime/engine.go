// Package runtime orchestrates event delivery: it resolves a
// destination's subscriptions, evaluates each predicate against the
// event, fans matched subscriptions out to their action pipelines, and
// aggregates the results.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relayforge/destinations/internal/destination"
	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/instrument"
	"github.com/relayforge/destinations/internal/mapping"
	"github.com/relayforge/destinations/internal/predicate"
)

// Engine runs events against compiled destinations. It holds no
// per-request state; one Engine serves all requests.
type Engine struct {
	registry *destination.Registry
	logger   *slog.Logger
}

// New creates an engine over a registry built at startup.
func New(registry *destination.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Registry exposes the destination registry for metadata handlers.
func (e *Engine) Registry() *destination.Registry { return e.registry }

// Run delivers one event to one destination. Subscriptions run
// concurrently and independently: a failure inside one subscription's
// pipeline never prevents the others from completing or being
// recorded. The returned results flatten every subscription's step
// results in subscription declaration order, regardless of completion
// order. Only subscription parsing fails the call as a whole, since
// without it no valid action set exists.
func (e *Engine) Run(ctx context.Context, dest *destination.Destination, event domain.Event, settings domain.Settings, ictx *instrument.Context) ([]domain.StepResult, error) {
	subs, destSettings, err := domain.ParseSubscriptions(settings)
	if err != nil {
		return nil, err
	}

	redacted := instrument.RedactSettings(destSettings, dest.PrivateKeys())

	perSub := make([][]domain.StepResult, len(subs))
	var wg sync.WaitGroup
	wg.Add(len(subs))
	for i, sub := range subs {
		go func(i int, sub domain.Subscription) {
			defer wg.Done()

			start := time.Now()
			results, err := e.runSubscription(ctx, dest, sub, event, destSettings)
			duration := time.Since(start)

			rec := instrument.Record{
				Destination: dest.Slug(),
				Action:      sub.Action,
				Duration:    duration,
				Input: map[string]any{
					"event":    map[string]any(event),
					"settings": redacted,
				},
				Output: results,
			}
			if err != nil {
				rec.Error = err.Error()
				e.logger.Warn("subscription failed",
					slog.String("destination", dest.Slug()),
					slog.String("action", sub.Action),
					slog.String("error", err.Error()),
				)
			}
			ictx.Append(rec)

			perSub[i] = results
		}(i, sub)
	}
	wg.Wait()

	var flattened []domain.StepResult
	for _, results := range perSub {
		flattened = append(flattened, results...)
	}
	return flattened, nil
}

// runSubscription handles one subscription end to end. Failures before
// the pipeline starts (predicate evaluation, mapping, unknown action)
// surface as a single error-tagged step result, matching how a failed
// pipeline step reports.
func (e *Engine) runSubscription(ctx context.Context, dest *destination.Destination, sub domain.Subscription, event domain.Event, destSettings domain.Settings) ([]domain.StepResult, error) {
	matched, err := predicate.Matches(sub.Predicate, event)
	if err != nil {
		wrapped := domain.NewError(domain.ErrorKindPredicateEval, "evaluate subscription predicate").WithCause(err)
		return []domain.StepResult{domain.ErrorStepResult(wrapped)}, wrapped
	}
	if !matched {
		return []domain.StepResult{{Output: domain.NotSubscribed}}, nil
	}

	payload, err := e.buildPayload(sub, event)
	if err != nil {
		return []domain.StepResult{domain.ErrorStepResult(err)}, err
	}

	act, ok := dest.Action(sub.Action)
	if !ok {
		err := domain.ErrUnknownAction(sub.Action)
		return []domain.StepResult{domain.ErrorStepResult(err)}, err
	}

	in := &domain.ExecuteInput{
		Payload:  payload,
		Mapping:  sub.Mapping,
		Settings: destSettings,
	}
	return act.Execute(ctx, in)
}

// buildPayload maps the event through the subscription's template, or
// passes the event through unchanged when no mapping is declared.
func (e *Engine) buildPayload(sub domain.Subscription, event domain.Event) (map[string]any, error) {
	if sub.Mapping == nil {
		payload := make(map[string]any, len(event))
		for k, v := range event {
			payload[k] = v
		}
		return payload, nil
	}

	out, err := mapping.Transform(sub.Mapping, event)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindTransform, "apply mapping template").WithCause(err)
	}
	payload, ok := out.(map[string]any)
	if !ok {
		if out == nil {
			return map[string]any{}, nil
		}
		return nil, domain.NewError(domain.ErrorKindTransform, "mapping template must produce an object payload")
	}
	return payload, nil
}
