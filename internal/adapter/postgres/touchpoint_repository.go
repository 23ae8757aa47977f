package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mta-engine/internal/core/domain"
)

// TouchpointRepository implements port.TouchpointRepository over PostgreSQL.
// The engine only ever reads touchpoints; writes belong to the ingestion
// pipeline (the seeder inserts demo rows directly).
type TouchpointRepository struct {
	pool *pgxpool.Pool
}

// NewTouchpointRepository returns a new repository instance.
func NewTouchpointRepository(pool *pgxpool.Pool) *TouchpointRepository {
	return &TouchpointRepository{pool: pool}
}

// FindForContact returns the contact's touchpoints up to and including the
// cutoff, oldest first. seq is a monotonic insert counter, so ordering by
// (occurred_at, seq) gives the stable tie-break the calculator relies on.
func (r *TouchpointRepository) FindForContact(ctx context.Context, contactID string, upTo time.Time) ([]domain.Touchpoint, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, contact_id, channel, source, medium, campaign, type, occurred_at, seq, created_at
        FROM touchpoints
        WHERE contact_id = $1 AND occurred_at <= $2
        ORDER BY occurred_at ASC, seq ASC`, contactID, upTo)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Touchpoint, error) {
		var tp domain.Touchpoint
		err := row.Scan(
			&tp.ID,
			&tp.ContactID,
			&tp.Channel,
			&tp.Source,
			&tp.Medium,
			&tp.Campaign,
			&tp.Type,
			&tp.OccurredAt,
			&tp.Seq,
			&tp.CreatedAt,
		)
		return tp, err
	})
}
