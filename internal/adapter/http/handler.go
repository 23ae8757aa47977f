package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mta-engine/internal/core/port"
)

// Handler is the inbound HTTP adapter. The engine itself is storage-shaped;
// these routes only trigger its operations and read its reports.
type Handler struct {
	svc    port.ConversionUseCase
	logger *slog.Logger
	router chi.Router
}

// NewHandler creates a handler with all routes configured. It accepts a
// usecase implementation and a logger. The returned Handler registers
// handlers for each endpoint on a new chi.Router.
func NewHandler(svc port.ConversionUseCase, logger *slog.Logger) *Handler {
	h := &Handler{svc: svc, logger: logger}
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/conversions/deal", h.handleRecordDeal)
		r.Post("/conversions/form", h.handleRecordForm)
		r.Post("/conversions/{id}/process", h.handleProcessConversion)
		r.Post("/attribution/run", h.handleProcessUnprocessed)
		r.Post("/attribution/recalculate", h.handleRecalculate)
		r.Get("/reports/channel-roi", h.handleChannelROI)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}
