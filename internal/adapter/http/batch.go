package httpadapter

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type batchResponse struct {
	Processed int `json:"processed"`
}

// handleProcessUnprocessed runs one batch pass over unprocessed
// conversions. The optional `limit` query parameter caps the pass; the
// usecase applies its default otherwise.
func (h *Handler) handleProcessUnprocessed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}
	n, err := h.svc.ProcessUnprocessed(r.Context(), limit)
	if err != nil {
		h.logger.Error("batch run error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, batchResponse{Processed: n})
}

// handleRecalculate resets and reprocesses every conversion converted in
// [from, to]. Both query parameters are required RFC3339 timestamps.
func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		http.Error(w, "invalid 'from' timestamp", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		http.Error(w, "invalid 'to' timestamp", http.StatusBadRequest)
		return
	}
	n, err := h.svc.RecalculateRange(r.Context(), from, to)
	if err != nil {
		h.logger.Error("recalculate error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, batchResponse{Processed: n})
}
