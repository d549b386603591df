package snapshot

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

var (
	minFactor = decimal.RequireFromString("0.9")
	maxFactor = decimal.RequireFromString("1.1")
)

type SimulateResult struct {
	BaseDate  time.Time
	NewDate   time.Time
	Rows      int
	Unchanged int
}

// Simulate fabricates a batch dated one day before the only stored batch,
// with each price scaled by a random factor in [0.9, 1.1]. It exists so a
// single real capture can be diffed in test mode.
func Simulate(ctx context.Context, store *Store, rng *rand.Rand) (SimulateResult, error) {
	dates, err := store.DistinctDates(ctx, 2, Descending)
	if err != nil {
		return SimulateResult{}, err
	}
	if len(dates) != 1 {
		return SimulateResult{}, fmt.Errorf("%w: found %d", ErrSimulationNotNeeded, len(dates))
	}
	base := dates[0]
	newDate := base.Add(-24 * time.Hour)

	rows, err := store.RowsForDate(ctx, base)
	if err != nil {
		return SimulateResult{}, err
	}
	if len(rows) == 0 {
		return SimulateResult{}, fmt.Errorf("simulate: no rows stored for %s", FormatDate(base))
	}
	res := SimulateResult{BaseDate: base, NewDate: newDate, Rows: len(rows)}
	out := make([]Snapshot, 0, len(rows))
	for _, r := range rows {
		r.ScrapeDate = newDate
		u := rng.Float64()
		if p, ok := ParsePrice(r.Price); ok {
			if v, ok := perturb(p, u); ok {
				r.Price = FormatPrice(v)
			} else {
				res.Unchanged++
			}
		} else {
			res.Unchanged++
		}
		out = append(out, r)
	}
	if _, err := store.AppendBatch(ctx, out, newDate); err != nil {
		return SimulateResult{}, fmt.Errorf("append simulated batch: %w", err)
	}
	return res, nil
}

// perturb scales p by 0.9+0.2u, rounds to cents and clamps the result to
// the cent grid inside [0.9p, 1.1p]. It reports false when that range holds
// no cent value, as for sub-cent prices.
func perturb(p decimal.Decimal, u float64) (decimal.Decimal, bool) {
	lo, hi := p.Mul(minFactor), p.Mul(maxFactor)
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	loCent, hiCent := lo.RoundCeil(2), hi.RoundFloor(2)
	if loCent.GreaterThan(hiCent) {
		return p, false
	}

	factor := minFactor.Add(decimal.NewFromFloat(u).Mul(maxFactor.Sub(minFactor)))
	v := p.Mul(factor).Round(2)
	if v.LessThan(loCent) {
		v = loCent
	}
	if v.GreaterThan(hiCent) {
		v = hiCent
	}
	return v, true
}
