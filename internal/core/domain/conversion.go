package domain

import "time"

// ConversionType is the kind of business outcome a conversion records.
type ConversionType string

const (
	ConversionDealWon    ConversionType = "deal_won"
	ConversionFormSubmit ConversionType = "form_submit"
	ConversionPurchase   ConversionType = "purchase"
)

// Conversion is a business event that attribution credit is assigned to.
// Value may be zero for non-monetary conversions such as form submits.
// Only touchpoints with OccurredAt <= ConvertedAt are eligible for credit.
//
// A conversion with zero eligible touchpoints is a valid terminal state:
// IsProcessed becomes true and Attribution stays empty.
type Conversion struct {
	ID          string
	ContactID   string
	Type        ConversionType
	Value       float64
	ConvertedAt time.Time

	// IsProcessed is false until attribution has been computed at least
	// once. Reprocessing requires an explicit reset.
	IsProcessed bool

	// TouchpointIDs is the snapshot of eligible touchpoint IDs taken at
	// processing time, in chronological order.
	TouchpointIDs      []string
	FirstTouchpointID  string
	LastTouchpointID   string
	Attribution        []AttributionResult

	// JourneyDurationDays is the whole-day (ceiling) span between the first
	// eligible touchpoint and the conversion.
	JourneyDurationDays int
	TouchpointCount     int

	CreatedAt time.Time
	UpdatedAt time.Time
}
