package domain

// Event is one analytics occurrence (a page view, a track call, ...)
// as received from the caller. It is never mutated by the engine.
type Event map[string]any

// Settings holds destination-level configuration supplied per request.
// The engine strips the subscriptions key before handing settings to
// actions; nothing else is modified.
type Settings map[string]any

// NotSubscribed is the step result output emitted when a subscription's
// predicate did not match the event. No steps run in that case.
const NotSubscribed = "not subscribed"

// StepResult is the output of one executed pipeline step, or the
// NotSubscribed marker for a subscription that did not match.
type StepResult struct {
	Output any `json:"output"`
}

// ExecuteInput carries everything one action invocation needs. A fresh
// value is built per subscription match. Payload starts as the mapped
// event and is seen by each step as the previous step left it.
type ExecuteInput struct {
	Payload  map[string]any
	Mapping  map[string]any
	Settings Settings

	// Resolved holds values produced by cached lookup steps, keyed by
	// the step's result field. Lookup steps write here, never into
	// Payload.
	Resolved map[string]any
}

// Resolve stores a lookup result under field.
func (in *ExecuteInput) Resolve(field string, value any) {
	if in.Resolved == nil {
		in.Resolved = make(map[string]any)
	}
	in.Resolved[field] = value
}

// Lookup returns a previously resolved lookup value.
func (in *ExecuteInput) Lookup(field string) (any, bool) {
	v, ok := in.Resolved[field]
	return v, ok
}
