// Package action implements the ordered step pipeline behind every
// registered partner action. An Action is assembled once at
// registration time and is immutable afterwards; each invocation
// receives its own ExecuteInput and composed request object.
package action

import (
	"context"
	"net/http"

	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/reqconf"
)

// Step is one unit of work in an action's pipeline. Execute returns the
// step's result output. Steps run strictly in declaration order; the
// pipeline halts on the first error.
type Step interface {
	Name() string
	Execute(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error)
}

// Action is a named, immutable ordered list of steps plus the request
// extensions seeded from its destination at build time.
type Action struct {
	name       string
	steps      []Step
	extensions []reqconf.Extension
	httpClient *http.Client
}

// Name returns the action's slug-local name.
func (a *Action) Name() string { return a.name }

// Execute runs the pipeline for one invocation. One StepResult is
// produced per executed step; a failing step contributes a result
// tagged with its error and stops the pipeline. The returned error is
// the failing step's error, unmodified.
func (a *Action) Execute(ctx context.Context, in *domain.ExecuteInput) ([]domain.StepResult, error) {
	cfg := reqconf.Compose(a.extensions, in)
	req := reqconf.New(cfg, a.httpClient)

	results := make([]domain.StepResult, 0, len(a.steps))
	for _, step := range a.steps {
		out, err := step.Execute(ctx, req, in)
		if err != nil {
			results = append(results, domain.ErrorStepResult(err))
			return results, err
		}
		results = append(results, domain.StepResult{Output: out})
	}
	return results, nil
}
