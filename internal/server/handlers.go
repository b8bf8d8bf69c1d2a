package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/relayforge/destinations/internal/destination"
	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/instrument"
	"github.com/relayforge/destinations/internal/runtime"
	"github.com/relayforge/destinations/internal/storage/sqlite"
)

type handler struct {
	engine *runtime.Engine
	logger *slog.Logger
	sink   instrument.Sink
	store  *sqlite.Store
}

// eventRequest is the body of POST /v1/destinations/{slug}/events.
type eventRequest struct {
	Event    domain.Event    `json:"event"`
	Settings domain.Settings `json:"settings"`
}

type eventResponse struct {
	Results []domain.StepResult `json:"results"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	dest, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.NewError(domain.ErrorKindSubscriptionParse, "decode request body").WithCause(err))
		return
	}
	if req.Event == nil {
		writeError(w, r, domain.NewError(domain.ErrorKindSubscriptionParse, "request body requires an event object"))
		return
	}

	ictx := instrument.NewContext(RequestID(r.Context()), h.logger, h.sink)
	AddLogField(r.Context(), "destination", dest.Slug())

	results, err := h.engine.Run(r.Context(), dest, req.Event, req.Settings, ictx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := ictx.SendMetrics(r.Context()); err != nil {
		// Delivery already happened; a sink failure is logged, not
		// surfaced to the caller.
		h.logger.Error("flush instrumentation records",
			slog.String("request_id", ictx.RequestID),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, eventResponse{Results: results})
}

func (h *handler) testCredentials(w http.ResponseWriter, r *http.Request) {
	dest, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Settings domain.Settings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrCredentials())
		return
	}

	if err := h.engine.TestCredentials(r.Context(), dest, req.Settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listDestinations(w http.ResponseWriter, r *http.Request) {
	registry := h.engine.Registry()
	type entry struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
	}
	out := make([]entry, 0, len(registry.Slugs()))
	for _, slug := range registry.Slugs() {
		dest, _ := registry.Lookup(slug)
		out = append(out, entry{Slug: slug, Title: dest.Title()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"destinations": out})
}

func (h *handler) destinationMetadata(w http.ResponseWriter, r *http.Request) {
	dest, ok := h.lookup(w, r)
	if !ok {
		return
	}

	type actionMeta struct {
		Title               string         `json:"title"`
		Description         string         `json:"description,omitempty"`
		DefaultSubscription string         `json:"defaultSubscription,omitempty"`
		PayloadSchema       map[string]any `json:"payloadSchema"`
	}
	actions := make(map[string]actionMeta)
	for _, slug := range dest.ActionSlugs() {
		def, _ := dest.ActionDefinition(slug)
		schema, _ := dest.ActionSchema(slug)
		actions[slug] = actionMeta{
			Title:               def.Title,
			Description:         def.Description,
			DefaultSubscription: def.DefaultSubscription,
			PayloadSchema:       schema,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"slug":           dest.Slug(),
		"title":          dest.Title(),
		"description":    dest.Description(),
		"settingsSchema": dest.SettingsSchema(),
		"actions":        actions,
	})
}

func (h *handler) autocomplete(w http.ResponseWriter, r *http.Request) {
	dest, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Settings domain.Settings `json:"settings"`
		Payload  map[string]any  `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.NewError(domain.ErrorKindValidation, "decode request body").WithCause(err))
		return
	}

	in := &domain.ExecuteInput{Payload: req.Payload, Settings: req.Settings}
	items, err := dest.Autocomplete(r.Context(), chi.URLParam(r, "action"), chi.URLParam(r, "field"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]destination.AutocompleteItem{"items": items})
}

func (h *handler) recentDeliveries(w http.ResponseWriter, r *http.Request) {
	dest, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if h.store == nil {
		http.Error(w, "delivery storage not configured", http.StatusNotFound)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	deliveries, err := h.store.RecentDeliveries(r.Context(), dest.Slug(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}

// lookup resolves the destination slug from the URL, writing a 404 when
// unknown.
func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (*destination.Destination, bool) {
	slug := chi.URLParam(r, "slug")
	dest, ok := h.engine.Registry().Lookup(slug)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown destination " + slug,
		})
		return nil, false
	}
	return dest, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to their HTTP status and reports
// anything else as a server fault.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var e *domain.Error
	if errors.As(err, &e) {
		writeJSON(w, e.HTTPStatusCode(), e)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
