package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mta-engine/internal/core/attribution"
	"mta-engine/internal/core/domain"
	"mta-engine/internal/core/port"
	"mta-engine/internal/metrics"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// fakeTouchpointRepo serves pre-sorted journeys from memory.
type fakeTouchpointRepo struct {
	byContact map[string][]domain.Touchpoint
	err       error
}

func (f *fakeTouchpointRepo) FindForContact(_ context.Context, contactID string, upTo time.Time) ([]domain.Touchpoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Touchpoint
	for _, tp := range f.byContact[contactID] {
		if !tp.OccurredAt.After(upTo) {
			out = append(out, tp)
		}
	}
	return out, nil
}

// fakeConversionRepo stores conversions in memory. FindByID hands out
// copies so in-flight mutations only become visible through Save, matching
// the all-or-nothing persist contract.
type fakeConversionRepo struct {
	convs      map[string]*domain.Conversion
	saveCalls  int
	failSaveID string
}

func newFakeConversionRepo() *fakeConversionRepo {
	return &fakeConversionRepo{convs: make(map[string]*domain.Conversion)}
}

func clone(c *domain.Conversion) *domain.Conversion {
	cp := *c
	cp.TouchpointIDs = append([]string(nil), c.TouchpointIDs...)
	cp.Attribution = append([]domain.AttributionResult(nil), c.Attribution...)
	return &cp
}

func (f *fakeConversionRepo) FindByID(_ context.Context, id string) (*domain.Conversion, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (f *fakeConversionRepo) Create(_ context.Context, conv *domain.Conversion) error {
	f.convs[conv.ID] = clone(conv)
	return nil
}

func (f *fakeConversionRepo) Save(_ context.Context, conv *domain.Conversion) error {
	f.saveCalls++
	if conv.ID == f.failSaveID {
		return errors.New("storage unavailable")
	}
	f.convs[conv.ID] = clone(conv)
	return nil
}

func (f *fakeConversionRepo) FindUnprocessed(_ context.Context, limit int) ([]string, error) {
	var ids []string
	for id, c := range f.convs {
		if !c.IsProcessed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeConversionRepo) FindInRange(_ context.Context, start, end time.Time) ([]string, error) {
	var ids []string
	for id, c := range f.convs {
		if !c.ConvertedAt.Before(start) && !c.ConvertedAt.After(end) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeConversionRepo) ResetForRange(_ context.Context, start, end time.Time) error {
	for _, c := range f.convs {
		if !c.ConvertedAt.Before(start) && !c.ConvertedAt.After(end) {
			c.IsProcessed = false
			c.Attribution = nil
		}
	}
	return nil
}

func (f *fakeConversionRepo) ChannelRevenue(_ context.Context, start, end time.Time, model domain.Model) ([]port.ChannelRevenue, error) {
	byChannel := make(map[domain.Channel]float64)
	for _, c := range f.convs {
		if c.ConvertedAt.Before(start) || c.ConvertedAt.After(end) {
			continue
		}
		for _, ar := range c.Attribution {
			if ar.Model == model {
				byChannel[ar.Channel] += ar.AttributedValue
			}
		}
	}
	out := make([]port.ChannelRevenue, 0, len(byChannel))
	for ch, rev := range byChannel {
		out = append(out, port.ChannelRevenue{Channel: ch, Revenue: rev})
	}
	return out, nil
}

func newService(convs *fakeConversionRepo, tps *fakeTouchpointRepo, cfg attribution.Config) *ConversionUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConversionUseCase(convs, tps, cfg, 0, logger, metrics.New(prometheus.NewRegistry()))
}

func defaultConfig() attribution.Config {
	return attribution.Config{Models: []domain.Model{
		domain.ModelFirstTouch, domain.ModelLastTouch, domain.ModelLinear,
	}}
}

// threeTouchJourney is the canonical scenario: paid social at t0, email two
// days later, organic at day five.
func threeTouchJourney(contactID string) []domain.Touchpoint {
	return []domain.Touchpoint{
		{ID: "tp-1", ContactID: contactID, Channel: domain.ChannelPaidSocial, OccurredAt: t0},
		{ID: "tp-2", ContactID: contactID, Channel: domain.ChannelEmail, OccurredAt: t0.AddDate(0, 0, 2)},
		{ID: "tp-3", ContactID: contactID, Channel: domain.ChannelOrganic, OccurredAt: t0.AddDate(0, 0, 5)},
	}
}

func TestProcessConversionEndToEnd(t *testing.T) {
	convs := newFakeConversionRepo()
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	convs.convs["conv-1"] = &domain.Conversion{
		ID: "conv-1", ContactID: "c1", Type: domain.ConversionDealWon,
		Value: 1000, ConvertedAt: t0.AddDate(0, 0, 5),
	}
	svc := newService(convs, tps, defaultConfig())

	conv, err := svc.ProcessConversion(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, conv)

	assert.True(t, conv.IsProcessed)
	assert.Equal(t, 3, conv.TouchpointCount)
	assert.Equal(t, 5, conv.JourneyDurationDays)
	assert.Equal(t, []string{"tp-1", "tp-2", "tp-3"}, conv.TouchpointIDs)
	assert.Equal(t, "tp-1", conv.FirstTouchpointID)
	assert.Equal(t, "tp-3", conv.LastTouchpointID)

	require.Len(t, conv.Attribution, 5)
	first := conv.Attribution[0]
	assert.Equal(t, domain.ModelFirstTouch, first.Model)
	assert.Equal(t, domain.ChannelPaidSocial, first.Channel)
	assert.Equal(t, 100.0, first.Credit)
	assert.Equal(t, 1000.0, first.AttributedValue)

	last := conv.Attribution[1]
	assert.Equal(t, domain.ModelLastTouch, last.Model)
	assert.Equal(t, domain.ChannelOrganic, last.Channel)
	assert.Equal(t, 100.0, last.Credit)
	assert.Equal(t, 1000.0, last.AttributedValue)

	for _, r := range conv.Attribution[2:] {
		assert.Equal(t, domain.ModelLinear, r.Model)
		assert.InDelta(t, 33.333, r.Credit, 1e-3)
		assert.InDelta(t, 333.33, r.AttributedValue, 1e-2)
	}

	// the processed state reached storage
	stored, err := convs.FindByID(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
	assert.Len(t, stored.Attribution, 5)
}

func TestProcessConversionMissingReturnsNil(t *testing.T) {
	svc := newService(newFakeConversionRepo(), &fakeTouchpointRepo{}, defaultConfig())
	conv, err := svc.ProcessConversion(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestProcessConversionIdempotentWithoutReset(t *testing.T) {
	convs := newFakeConversionRepo()
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	convs.convs["conv-1"] = &domain.Conversion{
		ID: "conv-1", ContactID: "c1", Value: 1000, ConvertedAt: t0.AddDate(0, 0, 5),
	}
	svc := newService(convs, tps, defaultConfig())

	first, err := svc.ProcessConversion(context.Background(), "conv-1")
	require.NoError(t, err)
	savesAfterFirst := convs.saveCalls

	second, err := svc.ProcessConversion(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, savesAfterFirst, convs.saveCalls, "second pass must not persist")
	assert.Equal(t, first.Attribution, second.Attribution)
	assert.Equal(t, first.TouchpointCount, second.TouchpointCount)
	assert.Equal(t, first.JourneyDurationDays, second.JourneyDurationDays)
}

func TestProcessConversionEmptyJourney(t *testing.T) {
	convs := newFakeConversionRepo()
	convs.convs["conv-1"] = &domain.Conversion{
		ID: "conv-1", ContactID: "ghost", Value: 500, ConvertedAt: t0,
	}
	svc := newService(convs, &fakeTouchpointRepo{}, defaultConfig())

	conv, err := svc.ProcessConversion(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.True(t, conv.IsProcessed)
	assert.Empty(t, conv.Attribution)
	assert.Equal(t, 0, conv.TouchpointCount)
}

func TestPersistFailureLeavesConversionUnprocessed(t *testing.T) {
	convs := newFakeConversionRepo()
	convs.failSaveID = "conv-1"
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	convs.convs["conv-1"] = &domain.Conversion{
		ID: "conv-1", ContactID: "c1", Value: 1000, ConvertedAt: t0.AddDate(0, 0, 5),
	}
	svc := newService(convs, tps, defaultConfig())

	_, err := svc.ProcessConversion(context.Background(), "conv-1")
	require.Error(t, err)

	stored, err := convs.FindByID(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, stored.IsProcessed, "failed persist must not mark processed")
	assert.Empty(t, stored.Attribution)
}

func TestRecordDealWonReturnsProcessedConversion(t *testing.T) {
	convs := newFakeConversionRepo()
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	svc := newService(convs, tps, defaultConfig())

	conv, err := svc.RecordDealWon(context.Background(), "c1", 2500, t0.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, domain.ConversionDealWon, conv.Type)
	assert.Equal(t, 2500.0, conv.Value)
	assert.True(t, conv.IsProcessed)
	assert.Equal(t, 3, conv.TouchpointCount)
	assert.NotEmpty(t, conv.Attribution)
}

func TestRecordFormSubmissionIsZeroValue(t *testing.T) {
	convs := newFakeConversionRepo()
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	svc := newService(convs, tps, defaultConfig())

	conv, err := svc.RecordFormSubmission(context.Background(), "c1", t0.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, domain.ConversionFormSubmit, conv.Type)
	assert.Equal(t, 0.0, conv.Value)
	assert.True(t, conv.IsProcessed)
	// only the first two touchpoints precede the submission
	assert.Equal(t, 2, conv.TouchpointCount)
	for _, r := range conv.Attribution {
		assert.Equal(t, 0.0, r.AttributedValue)
	}
}

func TestProcessUnprocessedContinuesOnError(t *testing.T) {
	convs := newFakeConversionRepo()
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	for _, id := range []string{"conv-a", "conv-b", "conv-c"} {
		convs.convs[id] = &domain.Conversion{
			ID: id, ContactID: "c1", Value: 100, ConvertedAt: t0.AddDate(0, 0, 5),
		}
	}
	convs.failSaveID = "conv-b"
	svc := newService(convs, tps, defaultConfig())

	n, err := svc.ProcessUnprocessed(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, _ := convs.FindByID(context.Background(), "conv-a")
	b, _ := convs.FindByID(context.Background(), "conv-b")
	c, _ := convs.FindByID(context.Background(), "conv-c")
	assert.True(t, a.IsProcessed)
	assert.False(t, b.IsProcessed)
	assert.True(t, c.IsProcessed)
}

func TestProcessUnprocessedHonoursLimit(t *testing.T) {
	convs := newFakeConversionRepo()
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	for _, id := range []string{"conv-a", "conv-b", "conv-c"} {
		convs.convs[id] = &domain.Conversion{
			ID: id, ContactID: "c1", Value: 100, ConvertedAt: t0.AddDate(0, 0, 5),
		}
	}
	svc := newService(convs, tps, defaultConfig())

	n, err := svc.ProcessUnprocessed(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.ProcessUnprocessed(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecalculateRangeAppliesNewConfig(t *testing.T) {
	convs := newFakeConversionRepo()
	tps := &fakeTouchpointRepo{byContact: map[string][]domain.Touchpoint{
		"c1": threeTouchJourney("c1"),
	}}
	convs.convs["conv-1"] = &domain.Conversion{
		ID: "conv-1", ContactID: "c1", Value: 1000, ConvertedAt: t0.AddDate(0, 0, 5),
	}

	svc := newService(convs, tps, defaultConfig())
	_, err := svc.ProcessConversion(context.Background(), "conv-1")
	require.NoError(t, err)

	// a new deployment adds U-shaped; the explicit range reset is the
	// sanctioned path to apply it retroactively
	wider := attribution.Config{Models: []domain.Model{
		domain.ModelFirstTouch, domain.ModelLastTouch, domain.ModelLinear, domain.ModelUShaped,
	}}
	svc2 := newService(convs, tps, wider)

	n, err := svc2.RecalculateRange(context.Background(), t0, t0.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := convs.FindByID(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
	// rows were replaced, not appended: 1 + 1 + 3 + 3
	assert.Len(t, stored.Attribution, 8)
}

func TestChannelROI(t *testing.T) {
	convs := newFakeConversionRepo()
	convs.convs["conv-1"] = &domain.Conversion{
		ID: "conv-1", ContactID: "c1", ConvertedAt: t0, IsProcessed: true,
		Attribution: []domain.AttributionResult{
			{Model: domain.ModelLinear, Channel: domain.ChannelPaidSocial, Credit: 50, AttributedValue: 1000},
			{Model: domain.ModelLinear, Channel: domain.ChannelEmail, Credit: 50, AttributedValue: 500},
			{Model: domain.ModelFirstTouch, Channel: domain.ChannelEmail, Credit: 100, AttributedValue: 9999},
		},
	}
	svc := newService(convs, &fakeTouchpointRepo{}, defaultConfig())

	costs := map[domain.Channel]float64{
		domain.ChannelPaidSocial: 500,
		domain.ChannelDisplay:    200,
	}
	report, err := svc.ChannelROI(context.Background(), t0.AddDate(0, 0, -1), t0.AddDate(0, 0, 1), costs, "")
	require.NoError(t, err)

	// revenue 1000 on cost 500 doubles the spend
	require.Contains(t, report, domain.ChannelPaidSocial)
	assert.Equal(t, 1000.0, report[domain.ChannelPaidSocial].Revenue)
	assert.Equal(t, 100.0, report[domain.ChannelPaidSocial].ROI)

	// revenue with no configured cost reports ROI 0, not infinity
	require.Contains(t, report, domain.ChannelEmail)
	assert.Equal(t, 500.0, report[domain.ChannelEmail].Revenue)
	assert.Equal(t, 0.0, report[domain.ChannelEmail].ROI)

	// spend with no attributed revenue is a total loss
	require.Contains(t, report, domain.ChannelDisplay)
	assert.Equal(t, 0.0, report[domain.ChannelDisplay].Revenue)
	assert.Equal(t, -100.0, report[domain.ChannelDisplay].ROI)

	// first_touch rows must not leak into the linear report
	assert.Len(t, report, 3)
}

func TestChannelROIOutsideRangeExcluded(t *testing.T) {
	convs := newFakeConversionRepo()
	convs.convs["conv-old"] = &domain.Conversion{
		ID: "conv-old", ContactID: "c1", ConvertedAt: t0.AddDate(0, -6, 0), IsProcessed: true,
		Attribution: []domain.AttributionResult{
			{Model: domain.ModelLinear, Channel: domain.ChannelOrganic, Credit: 100, AttributedValue: 800},
		},
	}
	svc := newService(convs, &fakeTouchpointRepo{}, defaultConfig())

	report, err := svc.ChannelROI(context.Background(), t0.AddDate(0, 0, -1), t0, nil, domain.ModelLinear)
	require.NoError(t, err)
	assert.Empty(t, report)
}
