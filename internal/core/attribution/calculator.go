// Package attribution implements the closed-form multi-touch attribution
// models. The calculator is a pure function library: it performs no I/O,
// holds no mutable state after construction and is deterministic for a
// given input list.
package attribution

import (
	"math"
	"time"

	"mta-engine/internal/core/domain"
)

// DefaultHalfLifeDays is the time-decay half-life applied when the config
// does not override it.
const DefaultHalfLifeDays = 7

const msPerDay = 86_400_000

// Config carries the per-call model selection and model parameters.
// Touchpoint lists passed to Calculate must already be sorted ascending by
// occurrence time; the calculator does not sort.
type Config struct {
	// Models is the set of models to compute. Results for different models
	// are concatenated, never merged or cross-normalised.
	Models []domain.Model

	// TimeDecayHalfLifeDays is the half-life for the time-decay model in
	// days. Values <= 0 fall back to DefaultHalfLifeDays.
	TimeDecayHalfLifeDays float64

	// CustomWeights maps channels to raw weights for the custom model.
	// Channels absent from the map weigh 1.
	CustomWeights map[domain.Channel]float64

	// WShapedMidIndex designates the qualifying touchpoint for the W-shaped
	// model. When nil, or outside the interior of the list, floor(N/2) is
	// used.
	WShapedMidIndex *int
}

// HalfLifeDays returns the effective time-decay half-life.
func (c Config) HalfLifeDays() float64 {
	if c.TimeDecayHalfLifeDays > 0 {
		return c.TimeDecayHalfLifeDays
	}
	return DefaultHalfLifeDays
}

type strategy func(tps []domain.Touchpoint, value float64, convertedAt time.Time, cfg Config) []domain.AttributionResult

// Calculator dispatches to one strategy per model. The strategy map is
// built once at construction; every known model has an entry, so a model
// that produces no rows (data-driven) does so explicitly rather than by
// falling through a switch.
type Calculator struct {
	strategies map[domain.Model]strategy
}

// NewCalculator builds a calculator with all supported models registered.
func NewCalculator() *Calculator {
	return &Calculator{strategies: map[domain.Model]strategy{
		domain.ModelFirstTouch: firstTouch,
		domain.ModelLastTouch:  lastTouch,
		domain.ModelLinear:     linear,
		domain.ModelTimeDecay:  timeDecay,
		domain.ModelUShaped:    uShaped,
		domain.ModelWShaped:    wShaped,
		domain.ModelCustom:     customWeighted,
		domain.ModelDataDriven: dataDriven,
	}}
}

// Calculate runs every requested model against the touchpoint list and
// concatenates the rows. An empty touchpoint list yields no rows regardless
// of the requested models. Unknown model names are skipped.
func (c *Calculator) Calculate(tps []domain.Touchpoint, value float64, convertedAt time.Time, cfg Config) []domain.AttributionResult {
	if len(tps) == 0 {
		return nil
	}
	var out []domain.AttributionResult
	for _, m := range cfg.Models {
		fn, ok := c.strategies[m]
		if !ok {
			continue
		}
		out = append(out, fn(tps, value, convertedAt, cfg)...)
	}
	return out
}

// row builds one result row, copying the reporting labels from the
// touchpoint and deriving the attributed value from the credit percentage.
func row(m domain.Model, tp domain.Touchpoint, value, credit float64) domain.AttributionResult {
	return domain.AttributionResult{
		Model:           m,
		TouchpointID:    tp.ID,
		Channel:         tp.Channel,
		Source:          tp.Source,
		Medium:          tp.Medium,
		Campaign:        tp.Campaign,
		Credit:          credit,
		AttributedValue: value * credit / 100,
	}
}

func firstTouch(tps []domain.Touchpoint, value float64, _ time.Time, _ Config) []domain.AttributionResult {
	return []domain.AttributionResult{row(domain.ModelFirstTouch, tps[0], value, 100)}
}

func lastTouch(tps []domain.Touchpoint, value float64, _ time.Time, _ Config) []domain.AttributionResult {
	return []domain.AttributionResult{row(domain.ModelLastTouch, tps[len(tps)-1], value, 100)}
}

// linear gives every touchpoint 100/N credit. The raw division is kept as
// is: the per-row credits may not sum to exactly 100 in floating point and
// no remainder is redistributed.
func linear(tps []domain.Touchpoint, value float64, _ time.Time, _ Config) []domain.AttributionResult {
	return linearAs(domain.ModelLinear, tps, value)
}

func linearAs(m domain.Model, tps []domain.Touchpoint, value float64) []domain.AttributionResult {
	credit := 100 / float64(len(tps))
	out := make([]domain.AttributionResult, 0, len(tps))
	for _, tp := range tps {
		out = append(out, row(m, tp, value, credit))
	}
	return out
}

// timeDecay weighs each touchpoint by 0.5^(age/halfLife) and normalises the
// raw weights to 100 credit points, so more recent touchpoints earn
// exponentially more credit.
func timeDecay(tps []domain.Touchpoint, value float64, convertedAt time.Time, cfg Config) []domain.AttributionResult {
	halfLifeMs := cfg.HalfLifeDays() * msPerDay
	weights := make([]float64, len(tps))
	total := 0.0
	for i, tp := range tps {
		ageMs := float64(convertedAt.Sub(tp.OccurredAt).Milliseconds())
		weights[i] = math.Pow(0.5, ageMs/halfLifeMs)
		total += weights[i]
	}
	if total <= 0 {
		// All weights underflowed (journeys decades older than the
		// half-life). Equal weights are the correct normalisation then.
		return linearAs(domain.ModelTimeDecay, tps, value)
	}
	return normalized(domain.ModelTimeDecay, tps, value, weights, total)
}

// uShaped is the positional model: 40/20/40 with the interior evenly
// splitting the middle 20. One touchpoint degenerates to first-touch
// behaviour, two to a 50/50 split.
func uShaped(tps []domain.Touchpoint, value float64, _ time.Time, _ Config) []domain.AttributionResult {
	n := len(tps)
	switch n {
	case 1:
		return []domain.AttributionResult{row(domain.ModelUShaped, tps[0], value, 100)}
	case 2:
		return []domain.AttributionResult{
			row(domain.ModelUShaped, tps[0], value, 50),
			row(domain.ModelUShaped, tps[1], value, 50),
		}
	}
	interior := 20 / float64(n-2)
	out := make([]domain.AttributionResult, 0, n)
	for i, tp := range tps {
		credit := interior
		if i == 0 || i == n-1 {
			credit = 40
		}
		out = append(out, row(domain.ModelUShaped, tp, value, credit))
	}
	return out
}

// wShaped gives 30% each to the first, qualifying and last touchpoints and
// splits the remaining 10% across the rest. Below four touchpoints there is
// no distinct qualifying touch, so the rows fall back to an even split,
// still labelled w_shaped.
func wShaped(tps []domain.Touchpoint, value float64, _ time.Time, cfg Config) []domain.AttributionResult {
	n := len(tps)
	if n <= 3 {
		return linearAs(domain.ModelWShaped, tps, value)
	}
	mid := n / 2
	if cfg.WShapedMidIndex != nil {
		if i := *cfg.WShapedMidIndex; i > 0 && i < n-1 {
			mid = i
		}
	}
	rest := 10 / float64(n-3)
	out := make([]domain.AttributionResult, 0, n)
	for i, tp := range tps {
		credit := rest
		if i == 0 || i == mid || i == n-1 {
			credit = 30
		}
		out = append(out, row(domain.ModelWShaped, tp, value, credit))
	}
	return out
}

// customWeighted weighs each touchpoint by its channel's configured weight
// (1 when the channel is absent from the map) and normalises like
// time-decay. A non-positive weight total cannot be normalised and yields
// no rows.
func customWeighted(tps []domain.Touchpoint, value float64, _ time.Time, cfg Config) []domain.AttributionResult {
	weights := make([]float64, len(tps))
	total := 0.0
	for i, tp := range tps {
		w, ok := cfg.CustomWeights[tp.Channel]
		if !ok {
			w = 1
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return nil
	}
	return normalized(domain.ModelCustom, tps, value, weights, total)
}

// dataDriven is a documented no-op: there is no closed-form data-driven
// model, and requesting it must not fall back to another model.
func dataDriven([]domain.Touchpoint, float64, time.Time, Config) []domain.AttributionResult {
	return nil
}

func normalized(m domain.Model, tps []domain.Touchpoint, value float64, weights []float64, total float64) []domain.AttributionResult {
	out := make([]domain.AttributionResult, 0, len(tps))
	for i, tp := range tps {
		out = append(out, row(m, tp, value, weights[i]/total*100))
	}
	return out
}
