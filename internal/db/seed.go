package db

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mta-engine/internal/core/domain"
)

// Seed inserts demo contacts with touchpoint journeys and unprocessed
// conversions, so a batch run has something to chew on.
func Seed(ctx context.Context, db *pgxpool.Pool) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	channels := []domain.Channel{
		domain.ChannelPaidSocial,
		domain.ChannelPaidSearch,
		domain.ChannelEmail,
		domain.ChannelOrganic,
		domain.ChannelReferral,
		domain.ChannelDirect,
	}
	types := []domain.TouchpointType{
		domain.TouchImpression,
		domain.TouchClick,
		domain.TouchFormView,
	}
	sources := []string{"facebook", "google", "newsletter", "blog", ""}
	campaigns := []string{"spring_launch", "retargeting_q3", "brand_awareness", ""}

	for i := 1; i <= 20; i++ {
		contactID := fmt.Sprintf("contact-%d", i)
		journeyLen := 1 + r.Intn(7)
		start := time.Now().AddDate(0, 0, -(10 + r.Intn(30)))

		// touchpoints spread over the days before the conversion
		at := start
		for j := 0; j < journeyLen; j++ {
			ch := channels[r.Intn(len(channels))]
			_, err := db.Exec(ctx, `INSERT INTO touchpoints
    (id, contact_id, channel, source, medium, campaign, type, occurred_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now()) ON CONFLICT DO NOTHING`,
				uuid.NewString(), contactID, ch,
				sources[r.Intn(len(sources))], "cpc", campaigns[r.Intn(len(campaigns))],
				types[r.Intn(len(types))], at)
			if err != nil {
				return err
			}
			at = at.Add(time.Duration(1+r.Intn(72)) * time.Hour)
		}

		// every third contact converts; half of those are won deals
		if i%3 != 0 {
			continue
		}
		typ := domain.ConversionFormSubmit
		value := 0.0
		if i%2 == 0 {
			typ = domain.ConversionDealWon
			value = float64(500 + r.Intn(10000))
		}
		_, err := db.Exec(ctx, `INSERT INTO conversions
    (id, contact_id, type, value, converted_at, is_processed, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,false,now(),now()) ON CONFLICT DO NOTHING`,
			uuid.NewString(), contactID, typ, value, at)
		if err != nil {
			return err
		}
	}
	return nil
}
