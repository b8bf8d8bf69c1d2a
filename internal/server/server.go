// Package server exposes the destination engine over HTTP: event
// delivery, credential testing, destination metadata, dynamic field
// autocomplete, and recent deliveries.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/relayforge/destinations/internal/instrument"
	"github.com/relayforge/destinations/internal/runtime"
	"github.com/relayforge/destinations/internal/storage/sqlite"
)

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

// Options configures the HTTP surface.
type Options struct {
	Port           int
	RequestTimeout time.Duration

	// Sink receives the per-request instrumentation records. Optional.
	Sink instrument.Sink

	// Store serves the recent-deliveries endpoint. Optional.
	Store *sqlite.Store
}

func New(engine *runtime.Engine, logger *slog.Logger, opts Options) *Server {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "relayforge-destinations")
	})

	h := &handler{engine: engine, logger: logger, sink: opts.Sink, store: opts.Store}

	r.Get("/healthz", h.health)
	r.Route("/v1/destinations", func(r chi.Router) {
		r.Get("/", h.listDestinations)
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", h.destinationMetadata)
			r.Post("/events", h.handleEvent)
			r.Post("/credentials/test", h.testCredentials)
			r.Post("/actions/{action}/fields/{field}/autocomplete", h.autocomplete)
			r.Get("/deliveries", h.recentDeliveries)
		})
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
