package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mta-engine/internal/core/domain"
	"mta-engine/internal/core/port"
)

// ConversionRepository implements port.ConversionRepository using pgxpool.
// Save runs the conversion update and the attribution-row replacement in a
// single Serializable transaction, so a processed flag never reaches
// storage without its attribution rows.
type ConversionRepository struct {
	pool *pgxpool.Pool
}

// NewConversionRepository returns a new repository instance.
func NewConversionRepository(pool *pgxpool.Pool) *ConversionRepository {
	return &ConversionRepository{pool: pool}
}

// FindByID loads a conversion and its attribution rows. Returns (nil, nil)
// when the conversion does not exist.
func (r *ConversionRepository) FindByID(ctx context.Context, id string) (*domain.Conversion, error) {
	var c domain.Conversion
	err := r.pool.QueryRow(ctx, `
        SELECT id, contact_id, type, value, converted_at, is_processed,
               touchpoint_ids, first_touchpoint_id, last_touchpoint_id,
               journey_duration_days, touchpoint_count, created_at, updated_at
        FROM conversions WHERE id = $1`, id).
		Scan(&c.ID, &c.ContactID, &c.Type, &c.Value, &c.ConvertedAt, &c.IsProcessed,
			&c.TouchpointIDs, &c.FirstTouchpointID, &c.LastTouchpointID,
			&c.JourneyDurationDays, &c.TouchpointCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
        SELECT model, touchpoint_id, channel, source, medium, campaign, credit, attributed_value
        FROM attribution_results WHERE conversion_id = $1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	c.Attribution, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AttributionResult, error) {
		var ar domain.AttributionResult
		err := row.Scan(&ar.Model, &ar.TouchpointID, &ar.Channel, &ar.Source,
			&ar.Medium, &ar.Campaign, &ar.Credit, &ar.AttributedValue)
		return ar, err
	})
	if err != nil {
		return nil, err
	}
	if len(c.Attribution) == 0 {
		c.Attribution = nil
	}
	return &c, nil
}

// Create inserts a new, not yet processed conversion.
func (r *ConversionRepository) Create(ctx context.Context, conv *domain.Conversion) error {
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
        INSERT INTO conversions (id, contact_id, type, value, converted_at, is_processed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, false, $6, $7)`,
		conv.ID, conv.ContactID, conv.Type, conv.Value, conv.ConvertedAt, conv.CreatedAt, conv.UpdatedAt)
	return err
}

// Save persists the processed state of a conversion and fully replaces its
// attribution rows. All-or-nothing: on error the stored conversion keeps
// its previous state, including is_processed.
func (r *ConversionRepository) Save(ctx context.Context, conv *domain.Conversion) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	conv.UpdatedAt = time.Now().UTC()
	ids := conv.TouchpointIDs
	if ids == nil {
		ids = []string{}
	}
	_, err = tx.Exec(ctx, `
        UPDATE conversions SET
            is_processed = $2,
            touchpoint_ids = $3,
            first_touchpoint_id = $4,
            last_touchpoint_id = $5,
            journey_duration_days = $6,
            touchpoint_count = $7,
            updated_at = $8
        WHERE id = $1`,
		conv.ID, conv.IsProcessed, ids, conv.FirstTouchpointID, conv.LastTouchpointID,
		conv.JourneyDurationDays, conv.TouchpointCount, conv.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM attribution_results WHERE conversion_id = $1`, conv.ID)
	if err != nil {
		return err
	}
	for _, ar := range conv.Attribution {
		_, err = tx.Exec(ctx, `
            INSERT INTO attribution_results
                (conversion_id, model, touchpoint_id, channel, source, medium, campaign, credit, attributed_value)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			conv.ID, ar.Model, ar.TouchpointID, ar.Channel, ar.Source, ar.Medium,
			ar.Campaign, ar.Credit, ar.AttributedValue)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindUnprocessed returns up to limit IDs of unprocessed conversions,
// oldest conversion first.
func (r *ConversionRepository) FindUnprocessed(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id FROM conversions
        WHERE is_processed = false
        ORDER BY converted_at ASC, id ASC
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
}

// FindInRange returns IDs of conversions converted in [start, end].
func (r *ConversionRepository) FindInRange(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id FROM conversions
        WHERE converted_at >= $1 AND converted_at <= $2
        ORDER BY converted_at ASC, id ASC`, start, end)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
}

// ResetForRange marks every conversion in [start, end] unprocessed and
// deletes its attribution rows, both in one transaction.
func (r *ConversionRepository) ResetForRange(ctx context.Context, start, end time.Time) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
        DELETE FROM attribution_results WHERE conversion_id IN (
            SELECT id FROM conversions WHERE converted_at >= $1 AND converted_at <= $2
        )`, start, end)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
        UPDATE conversions SET is_processed = false, updated_at = now()
        WHERE converted_at >= $1 AND converted_at <= $2`, start, end)
	return err
}

// ChannelRevenue sums persisted attributed value per channel for one model
// over conversions converted in [start, end]. Channels without attributed
// revenue simply do not appear.
func (r *ConversionRepository) ChannelRevenue(ctx context.Context, start, end time.Time, model domain.Model) ([]port.ChannelRevenue, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT ar.channel, COALESCE(sum(ar.attributed_value), 0)
        FROM attribution_results ar
        JOIN conversions c ON c.id = ar.conversion_id
        WHERE ar.model = $1 AND c.converted_at >= $2 AND c.converted_at <= $3
        GROUP BY ar.channel
        ORDER BY ar.channel`, model, start, end)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (port.ChannelRevenue, error) {
		var cr port.ChannelRevenue
		err := row.Scan(&cr.Channel, &cr.Revenue)
		return cr, err
	})
}
