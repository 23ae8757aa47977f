package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"mta-engine/internal/core/attribution"
	"mta-engine/internal/core/domain"
	"mta-engine/internal/core/port"
	"mta-engine/internal/metrics"
)

// DefaultBatchLimit caps one ProcessUnprocessed pass when the caller does
// not supply a limit.
const DefaultBatchLimit = 100

// ConversionUseCase orchestrates attribution: it loads conversions and
// their touchpoints, runs the calculator and persists the results. It
// implements port.ConversionUseCase.
type ConversionUseCase struct {
	conversions port.ConversionRepository
	touchpoints port.TouchpointRepository
	calc        *attribution.Calculator
	cfg         attribution.Config
	batchLimit  int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewConversionUseCase creates the usecase. cfg selects the models computed
// on every processing pass; changing it takes effect on the next
// (re)processing, which is what RecalculateRange is for. batchLimit caps
// one unprocessed pass when the caller does not supply a limit; values
// <= 0 fall back to DefaultBatchLimit.
func NewConversionUseCase(
	conversions port.ConversionRepository,
	touchpoints port.TouchpointRepository,
	cfg attribution.Config,
	batchLimit int,
	logger *slog.Logger,
	m *metrics.Metrics,
) *ConversionUseCase {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	return &ConversionUseCase{
		conversions: conversions,
		touchpoints: touchpoints,
		calc:        attribution.NewCalculator(),
		cfg:         cfg,
		batchLimit:  batchLimit,
		logger:      logger,
		metrics:     m,
	}
}

// ProcessConversion computes and persists attribution for one conversion.
// A missing ID returns (nil, nil). An already-processed conversion is
// returned unmodified; reprocessing goes through RecalculateRange.
func (u *ConversionUseCase) ProcessConversion(ctx context.Context, id string) (*domain.Conversion, error) {
	conv, err := u.conversions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}
	if conv.IsProcessed {
		return conv, nil
	}

	tps, err := u.touchpoints.FindForContact(ctx, conv.ContactID, conv.ConvertedAt)
	if err != nil {
		return nil, err
	}

	// IsProcessed is only flipped in memory here; it reaches storage as
	// part of the same Save as the attribution rows, so a persist failure
	// leaves the stored conversion unprocessed and safe to retry.
	if len(tps) == 0 {
		conv.IsProcessed = true
		conv.TouchpointCount = 0
		conv.TouchpointIDs = nil
		conv.Attribution = nil
		if err = u.conversions.Save(ctx, conv); err != nil {
			return nil, err
		}
		u.metrics.ConversionsProcessed.Inc()
		return conv, nil
	}

	results := u.calc.Calculate(tps, conv.Value, conv.ConvertedAt, u.cfg)

	ids := make([]string, len(tps))
	for i, tp := range tps {
		ids[i] = tp.ID
	}
	conv.TouchpointIDs = ids
	conv.FirstTouchpointID = tps[0].ID
	conv.LastTouchpointID = tps[len(tps)-1].ID
	conv.Attribution = results
	conv.TouchpointCount = len(tps)
	conv.JourneyDurationDays = journeyDays(tps[0].OccurredAt, conv.ConvertedAt)
	conv.IsProcessed = true

	if err = u.conversions.Save(ctx, conv); err != nil {
		return nil, err
	}
	u.metrics.ConversionsProcessed.Inc()
	u.metrics.ResultsWritten.Add(float64(len(results)))
	return conv, nil
}

// RecordDealWon creates a deal-won conversion and processes it before
// returning, so the caller always receives a processed conversion.
func (u *ConversionUseCase) RecordDealWon(ctx context.Context, contactID string, value float64, closedAt time.Time) (*domain.Conversion, error) {
	return u.record(ctx, contactID, domain.ConversionDealWon, value, closedAt)
}

// RecordFormSubmission creates a zero-value form-submit conversion and
// processes it before returning.
func (u *ConversionUseCase) RecordFormSubmission(ctx context.Context, contactID string, submittedAt time.Time) (*domain.Conversion, error) {
	return u.record(ctx, contactID, domain.ConversionFormSubmit, 0, submittedAt)
}

func (u *ConversionUseCase) record(ctx context.Context, contactID string, typ domain.ConversionType, value float64, at time.Time) (*domain.Conversion, error) {
	conv := &domain.Conversion{
		ID:          uuid.NewString(),
		ContactID:   contactID,
		Type:        typ,
		Value:       value,
		ConvertedAt: at,
	}
	if err := u.conversions.Create(ctx, conv); err != nil {
		return nil, err
	}
	return u.ProcessConversion(ctx, conv.ID)
}

// ProcessUnprocessed drives one sequential batch pass over unprocessed
// conversions. Item failures are logged and counted but do not abort the
// pass; the returned count covers only conversions that completed.
func (u *ConversionUseCase) ProcessUnprocessed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = u.batchLimit
	}
	ids, err := u.conversions.FindUnprocessed(ctx, limit)
	if err != nil {
		return 0, err
	}
	return u.processAll(ctx, ids), nil
}

// RecalculateRange invalidates every conversion converted in [start, end]
// and reprocesses them under the current config. This is the designed way
// to apply a changed model set or half-life retroactively.
func (u *ConversionUseCase) RecalculateRange(ctx context.Context, start, end time.Time) (int, error) {
	if err := u.conversions.ResetForRange(ctx, start, end); err != nil {
		return 0, err
	}
	ids, err := u.conversions.FindInRange(ctx, start, end)
	if err != nil {
		return 0, err
	}
	return u.processAll(ctx, ids), nil
}

func (u *ConversionUseCase) processAll(ctx context.Context, ids []string) int {
	count := 0
	for _, id := range ids {
		conv, err := u.ProcessConversion(ctx, id)
		if err != nil {
			u.metrics.ConversionFailures.Inc()
			u.logger.Error("conversion processing failed",
				slog.String("conversion_id", id), slog.Any("error", err))
			continue
		}
		if conv != nil {
			count++
		}
	}
	return count
}

// ChannelROI combines persisted attributed revenue per channel with the
// supplied cost map. Channels that carry cost but earned no attributed
// revenue surface with ROI -100; channels with revenue but no configured
// cost report ROI 0.
func (u *ConversionUseCase) ChannelROI(ctx context.Context, start, end time.Time, costs map[domain.Channel]float64, model domain.Model) (map[domain.Channel]port.ChannelROI, error) {
	if model == "" {
		model = domain.ModelLinear
	}
	rows, err := u.conversions.ChannelRevenue(ctx, start, end, model)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Channel]port.ChannelROI, len(rows))
	for _, r := range rows {
		cost := costs[r.Channel]
		roi := 0.0
		if cost > 0 {
			roi = (r.Revenue - cost) / cost * 100
		}
		out[r.Channel] = port.ChannelROI{Revenue: r.Revenue, Cost: cost, ROI: roi}
	}
	for ch, cost := range costs {
		if cost <= 0 {
			continue
		}
		if _, ok := out[ch]; !ok {
			out[ch] = port.ChannelROI{Cost: cost, ROI: -100}
		}
	}
	return out, nil
}

// journeyDays is the whole-day ceiling between the first touch and the
// conversion. Touchpoints after the conversion are excluded upstream, so
// the span is never negative.
func journeyDays(first, convertedAt time.Time) int {
	d := convertedAt.Sub(first)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
