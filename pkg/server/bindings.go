package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/types"
	"github.com/raterudder/cezhdo/pkg/utility"
)

type bindingResponse struct {
	ID string `json:"id"`
	types.BindingConfig
	Source    utility.Source `json:"source"`
	Available bool           `json:"available"`
	FetchedAt *time.Time     `json:"fetchedAt,omitempty"`
	Current   *types.Price   `json:"current,omitempty"`
}

func (s *Server) describeBinding(b *utility.Binding, now time.Time) bindingResponse {
	resp := bindingResponse{
		ID:            b.ID(),
		BindingConfig: b.Config(),
		Source:        b.Source(),
		Available:     b.Available(),
	}
	if _, fetchedAt, err := b.Schedule(); err == nil && !fetchedAt.IsZero() {
		resp.FetchedAt = &fetchedAt
	}
	if p, err := b.Price(now); err == nil {
		resp.Current = &p
	}
	return resp
}

func (s *Server) handleListBindings(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	bindings := s.bindings.List()
	resp := make([]bindingResponse, 0, len(bindings))
	for _, b := range bindings {
		resp = append(resp, s.describeBinding(b, now))
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetBinding(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bindings.Get(r.PathValue("id"))
	if !ok {
		writeJSONError(w, "binding not found", http.StatusNotFound)
		return
	}
	writeJSON(w, s.describeBinding(b, s.now()))
}

func (s *Server) handleCreateBinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Limit body size to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	var cfg types.BindingConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode binding", slog.Any("error", err))
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}

	b, err := s.bindings.Add(ctx, cfg)
	if err != nil {
		if errors.Is(err, utility.ErrInvalidSchedule) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to add binding", slog.Any("error", err))
		writeJSONError(w, "failed to add binding", http.StatusInternalServerError)
		return
	}
	now := s.now()
	s.publishBinding(ctx, b, now)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(s.describeBinding(b, now)); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleDeleteBinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := s.bindings.Remove(ctx, id); err != nil {
		if errors.Is(err, storage.ErrBindingNotFound) {
			writeJSONError(w, "binding not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to remove binding", slog.String("binding", id), slog.Any("error", err))
		writeJSONError(w, "failed to remove binding", http.StatusInternalServerError)
		return
	}
	if s.metrics != nil {
		s.metrics.Forget(id)
	}
	if s.publisher != nil {
		if err := s.publisher.Remove(ctx, id); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to remove mqtt discovery", slog.String("binding", id), slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bindings.Get(r.PathValue("id"))
	if !ok {
		writeJSONError(w, "binding not found", http.StatusNotFound)
		return
	}
	forecast, err := b.Forecast(s.now())
	if err != nil {
		writeJSONError(w, "schedule unavailable", http.StatusServiceUnavailable)
		return
	}

	switch r.URL.Query().Get("value") {
	case "", "state":
		writeJSON(w, forecast.States())
	case "price":
		writeJSON(w, forecast.Prices())
	default:
		writeJSONError(w, "value must be state or price", http.StatusBadRequest)
	}
}
