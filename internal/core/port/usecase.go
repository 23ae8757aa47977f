package port

import (
	"context"
	"time"

	"mta-engine/internal/core/domain"
)

// ChannelROI is the per-channel entry of an ROI report. ROI is
// (revenue-cost)/cost*100; a channel with revenue but no configured cost
// reports ROI 0 rather than infinity.
type ChannelROI struct {
	Revenue float64
	Cost    float64
	ROI     float64
}

// ConversionUseCase is the primary inbound port of the attribution engine.
type ConversionUseCase interface {
	// ProcessConversion computes and persists attribution for one
	// conversion. It returns (nil, nil) when the conversion does not exist
	// and is an idempotent no-op on an already-processed conversion.
	ProcessConversion(ctx context.Context, id string) (*domain.Conversion, error)

	// RecordDealWon creates a deal-won conversion and processes it
	// synchronously; the returned conversion is already processed.
	RecordDealWon(ctx context.Context, contactID string, value float64, closedAt time.Time) (*domain.Conversion, error)

	// RecordFormSubmission creates a zero-value form-submit conversion and
	// processes it synchronously.
	RecordFormSubmission(ctx context.Context, contactID string, submittedAt time.Time) (*domain.Conversion, error)

	// ProcessUnprocessed processes up to limit unprocessed conversions
	// sequentially, continuing past per-item failures, and returns the
	// number processed successfully. limit <= 0 applies the default of 100.
	ProcessUnprocessed(ctx context.Context, limit int) (int, error)

	// RecalculateRange resets every conversion converted in [start, end]
	// and reprocesses them under the current configuration, returning the
	// number processed successfully.
	RecalculateRange(ctx context.Context, start, end time.Time) (int, error)

	// ChannelROI combines attributed revenue per channel (for one model,
	// over [start, end]) with externally supplied channel costs. An empty
	// model defaults to linear.
	ChannelROI(ctx context.Context, start, end time.Time, costs map[domain.Channel]float64, model domain.Model) (map[domain.Channel]ChannelROI, error)
}
