package port

import (
	"context"
	"time"

	"mta-engine/internal/core/domain"
)

// TouchpointRepository is the read-only outbound port onto the touchpoint
// store. The engine never writes touchpoints; they belong to the ingestion
// pipeline.
type TouchpointRepository interface {
	// FindForContact returns every touchpoint of the contact with
	// OccurredAt <= upTo, sorted ascending by OccurredAt with insertion
	// order breaking ties.
	FindForContact(ctx context.Context, contactID string, upTo time.Time) ([]domain.Touchpoint, error)
}

// ChannelRevenue is one aggregation row: total attributed value for one
// channel under one model. Produced by the storage layer so the ROI
// aggregator stays decoupled from query composition.
type ChannelRevenue struct {
	Channel domain.Channel
	Revenue float64
}

// ConversionRepository is the outbound port for conversion persistence.
// Implementations must make Save atomic: the conversion row update and the
// full replacement of its attribution rows either both happen or neither
// does.
type ConversionRepository interface {
	// FindByID returns the conversion with its attribution rows, or
	// (nil, nil) when no such conversion exists.
	FindByID(ctx context.Context, id string) (*domain.Conversion, error)

	// Create inserts a new, not yet processed conversion.
	Create(ctx context.Context, conv *domain.Conversion) error

	// Save persists the processed state of a conversion, replacing (not
	// appending) its attribution rows in the same transaction.
	Save(ctx context.Context, conv *domain.Conversion) error

	// FindUnprocessed returns up to limit IDs of conversions with
	// IsProcessed = false, oldest first.
	FindUnprocessed(ctx context.Context, limit int) ([]string, error)

	// FindInRange returns IDs of conversions with ConvertedAt in
	// [start, end].
	FindInRange(ctx context.Context, start, end time.Time) ([]string, error)

	// ResetForRange marks every conversion in [start, end] unprocessed and
	// clears its attribution rows. This is the only sanctioned path to
	// reprocessing an already-processed conversion.
	ResetForRange(ctx context.Context, start, end time.Time) error

	// ChannelRevenue sums persisted attributed value per channel for one
	// model over conversions converted in [start, end]. Channels with no
	// attributed revenue are absent from the result.
	ChannelRevenue(ctx context.Context, start, end time.Time, model domain.Model) ([]ChannelRevenue, error)
}
