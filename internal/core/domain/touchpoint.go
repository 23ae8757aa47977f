package domain

import "time"

// TouchpointType is the kind of interaction a touchpoint records. It is
// carried through to attribution output for reporting and plays no part in
// credit calculation.
type TouchpointType string

const (
	TouchImpression TouchpointType = "impression"
	TouchClick      TouchpointType = "click"
	TouchFormView   TouchpointType = "form_view"
	TouchChat       TouchpointType = "chat"
	TouchOther      TouchpointType = "other"
)

// Touchpoint is an immutable record of a single marketing interaction tied
// to a contact. Touchpoints are written by the ingestion pipeline and are
// read-only to the attribution engine. For one contact they are totally
// ordered by OccurredAt, with Seq (insertion order) breaking ties.
type Touchpoint struct {
	ID         string
	ContactID  string
	Channel    Channel
	Source     string
	Medium     string
	Campaign   string
	Type       TouchpointType
	OccurredAt time.Time
	Seq        int64
	CreatedAt  time.Time
}
