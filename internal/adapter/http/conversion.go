package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mta-engine/internal/core/domain"
)

type recordDealRequest struct {
	ContactID string    `json:"contact_id"`
	Value     float64   `json:"value"`
	ClosedAt  time.Time `json:"closed_at"`
}

type recordFormRequest struct {
	ContactID   string    `json:"contact_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type attributionRow struct {
	Model           string  `json:"model"`
	TouchpointID    string  `json:"touchpoint_id"`
	Channel         string  `json:"channel"`
	Source          string  `json:"source,omitempty"`
	Medium          string  `json:"medium,omitempty"`
	Campaign        string  `json:"campaign,omitempty"`
	Credit          float64 `json:"credit"`
	AttributedValue float64 `json:"attributed_value"`
}

type conversionResponse struct {
	ID                  string           `json:"id"`
	ContactID           string           `json:"contact_id"`
	Type                string           `json:"type"`
	Value               float64          `json:"value"`
	ConvertedAt         time.Time        `json:"converted_at"`
	IsProcessed         bool             `json:"is_processed"`
	TouchpointCount     int              `json:"touchpoint_count"`
	JourneyDurationDays int              `json:"journey_duration_days"`
	FirstTouchpointID   string           `json:"first_touchpoint_id,omitempty"`
	LastTouchpointID    string           `json:"last_touchpoint_id,omitempty"`
	Attribution         []attributionRow `json:"attribution"`
}

func toConversionResponse(c *domain.Conversion) conversionResponse {
	rows := make([]attributionRow, 0, len(c.Attribution))
	for _, ar := range c.Attribution {
		rows = append(rows, attributionRow{
			Model:           string(ar.Model),
			TouchpointID:    ar.TouchpointID,
			Channel:         string(ar.Channel),
			Source:          ar.Source,
			Medium:          ar.Medium,
			Campaign:        ar.Campaign,
			Credit:          ar.Credit,
			AttributedValue: ar.AttributedValue,
		})
	}
	return conversionResponse{
		ID:                  c.ID,
		ContactID:           c.ContactID,
		Type:                string(c.Type),
		Value:               c.Value,
		ConvertedAt:         c.ConvertedAt,
		IsProcessed:         c.IsProcessed,
		TouchpointCount:     c.TouchpointCount,
		JourneyDurationDays: c.JourneyDurationDays,
		FirstTouchpointID:   c.FirstTouchpointID,
		LastTouchpointID:    c.LastTouchpointID,
		Attribution:         rows,
	}
}

// handleRecordDeal records a won deal as a conversion and processes it
// synchronously; the response always carries a processed conversion.
func (h *Handler) handleRecordDeal(w http.ResponseWriter, r *http.Request) {
	var req recordDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ContactID == "" || req.ClosedAt.IsZero() {
		http.Error(w, "contact_id and closed_at are required", http.StatusBadRequest)
		return
	}
	conv, err := h.svc.RecordDealWon(r.Context(), req.ContactID, req.Value, req.ClosedAt)
	if err != nil {
		h.logger.Error("record deal error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, toConversionResponse(conv))
}

// handleRecordForm records a zero-value form submission conversion.
func (h *Handler) handleRecordForm(w http.ResponseWriter, r *http.Request) {
	var req recordFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ContactID == "" || req.SubmittedAt.IsZero() {
		http.Error(w, "contact_id and submitted_at are required", http.StatusBadRequest)
		return
	}
	conv, err := h.svc.RecordFormSubmission(r.Context(), req.ContactID, req.SubmittedAt)
	if err != nil {
		h.logger.Error("record form error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, toConversionResponse(conv))
}

// handleProcessConversion processes one conversion by ID. An unknown ID is
// a 404, matching the engine's benign not-found semantics.
func (h *Handler) handleProcessConversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing conversion id", http.StatusBadRequest)
		return
	}
	conv, err := h.svc.ProcessConversion(r.Context(), id)
	if err != nil {
		h.logger.Error("process conversion error",
			slog.String("conversion_id", id), slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if conv == nil {
		http.NotFound(w, r)
		return
	}
	h.writeJSON(w, toConversionResponse(conv))
}
