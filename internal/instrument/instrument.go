// Package instrument provides the per-request execution context: an
// append-only log of subscription attempts plus the logging and metrics
// surface the engine reports through. The backing stores for logs and
// metrics are external collaborators; this package only defines the
// contract and the concurrent-safe record buffer.
package instrument

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relayforge/destinations/internal/domain"
)

// RedactedPlaceholder replaces private setting values in
// instrumentation records.
const RedactedPlaceholder = "*********"

// Record is one subscription attempt. Records are self-describing, so
// they may append in completion order rather than declaration order.
type Record struct {
	Destination string              `json:"destination"`
	Action      string              `json:"action"`
	Duration    time.Duration       `json:"duration"`
	Input       map[string]any      `json:"input"`
	Output      []domain.StepResult `json:"output"`
	Error       string              `json:"error,omitempty"`
}

// Sink receives the request's records when metrics are flushed. The
// sqlite delivery store is one implementation; metrics aggregators are
// another.
type Sink interface {
	Record(ctx context.Context, records []Record) error
}

// Context is one external request's instrumentation state. It is owned
// by the caller, passed by reference into the engine, and never
// retained past the request. Append is safe under concurrent writers;
// no other synchronization is needed since each subscription task owns
// its own input.
type Context struct {
	RequestID  string
	ReceivedAt time.Time

	logger *slog.Logger
	sink   Sink

	mu      sync.Mutex
	records []Record
}

// NewContext creates a request context. A nil logger selects
// slog.Default; a nil sink makes SendMetrics a no-op.
func NewContext(requestID string, logger *slog.Logger, sink Sink) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		RequestID:  requestID,
		ReceivedAt: time.Now(),
		logger:     logger,
		sink:       sink,
	}
}

// Append adds one subscription attempt record.
func (c *Context) Append(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

// Records returns a copy of the appended records.
func (c *Context) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

// Log emits a structured log line tagged with the request ID.
func (c *Context) Log(level slog.Level, msg string, data map[string]any) {
	attrs := make([]any, 0, 2+2*len(data))
	attrs = append(attrs, slog.String("request_id", c.RequestID))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}
	c.logger.Log(context.Background(), level, msg, attrs...)
}

// SendMetrics flushes the accumulated records to the sink.
func (c *Context) SendMetrics(ctx context.Context) error {
	if c.sink == nil {
		return nil
	}
	return c.sink.Record(ctx, c.Records())
}

// RedactSettings returns a copy of settings with every private key
// replaced by the placeholder. Keys absent from settings are ignored.
func RedactSettings(settings domain.Settings, privateKeys []string) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	for _, key := range privateKeys {
		if _, ok := out[key]; ok {
			out[key] = RedactedPlaceholder
		}
	}
	return out
}
