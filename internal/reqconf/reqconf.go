// Package reqconf builds outgoing request configuration for action
// steps. Destinations contribute extension functions (auth headers,
// base URLs, timeouts) that are composed into one configuration per
// invocation, so individual actions never re-implement cross-cutting
// request decoration.
package reqconf

import (
	"net/http"
	"time"

	"github.com/relayforge/destinations/internal/domain"
)

// Config is a partial outgoing request configuration. Zero fields mean
// "no opinion" and leave earlier extensions' values in place.
type Config struct {
	BaseURL string
	Headers http.Header
	Timeout time.Duration
}

// Extension contributes request configuration for one invocation. It
// reads the execute input and must not mutate shared state.
type Extension func(in *domain.ExecuteInput) Config

// Compose folds extensions left to right into one configuration. Later
// extensions override BaseURL and Timeout, and override header keys
// individually.
func Compose(exts []Extension, in *domain.ExecuteInput) Config {
	out := Config{Headers: make(http.Header)}
	for _, ext := range exts {
		partial := ext(in)
		if partial.BaseURL != "" {
			out.BaseURL = partial.BaseURL
		}
		if partial.Timeout != 0 {
			out.Timeout = partial.Timeout
		}
		for key, values := range partial.Headers {
			out.Headers[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
		}
	}
	return out
}
