package httpadapter

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mta-engine/internal/core/domain"
)

type channelROIRow struct {
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	ROI     float64 `json:"roi"`
}

// handleChannelROI returns per-channel ROI for one model over a period.
// Channel costs come from the caller as repeated `cost=channel:amount`
// query parameters; campaign spend syncing is outside this engine. `from`
// and `to` default to the trailing 30 days, `model` to linear.
func (h *Handler) handleChannelROI(w http.ResponseWriter, r *http.Request) {
	var (
		q   = r.URL.Query()
		req struct {
			from, to time.Time
			model    domain.Model
		}
		err error
	)

	if s := q.Get("from"); s != "" {
		if req.from, err = time.Parse(time.RFC3339, s); err != nil {
			http.Error(w, "invalid 'from' timestamp", http.StatusBadRequest)
			return
		}
	} else {
		req.from = time.Now().AddDate(0, 0, -30)
	}
	if s := q.Get("to"); s != "" {
		if req.to, err = time.Parse(time.RFC3339, s); err != nil {
			http.Error(w, "invalid 'to' timestamp", http.StatusBadRequest)
			return
		}
	} else {
		req.to = time.Now()
	}
	if s := q.Get("model"); s != "" {
		if req.model = domain.ParseModel(s); req.model == "" {
			http.Error(w, "unknown model", http.StatusBadRequest)
			return
		}
	}

	costs := make(map[domain.Channel]float64)
	for _, pair := range q["cost"] {
		channel, amount, ok := strings.Cut(pair, ":")
		if !ok {
			http.Error(w, "cost must be channel:amount", http.StatusBadRequest)
			return
		}
		v, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			http.Error(w, "invalid cost amount", http.StatusBadRequest)
			return
		}
		costs[domain.ParseChannel(channel)] = v
	}

	report, err := h.svc.ChannelROI(r.Context(), req.from, req.to, costs, req.model)
	if err != nil {
		h.logger.Error("channel roi error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make(map[string]channelROIRow, len(report))
	for ch, row := range report {
		out[string(ch)] = channelROIRow{Revenue: row.Revenue, Cost: row.Cost, ROI: row.ROI}
	}
	h.writeJSON(w, out)
}
