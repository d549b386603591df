// Package compare joins the two newest snapshot batches by product id and
// computes price deltas between them.
package compare

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pricetrack/internal/snapshot"
)

// ErrNotEnoughData means fewer than two batches exist. It is an expected
// state on the first day, not a failure.
var ErrNotEnoughData = errors.New("not enough data to perform a comparison")

// Source is the read side of the snapshot store.
type Source interface {
	DistinctDates(ctx context.Context, limit int, order snapshot.Order) ([]time.Time, error)
	RowsForDate(ctx context.Context, date time.Time) ([]snapshot.Snapshot, error)
}

// Row is one product present in both batches. Descriptive fields come from
// the latest batch.
type Row struct {
	ID       string
	Title    string
	Category string
	Owned    *bool
	Image    string

	RawPriceLatest   string
	RawPricePrevious string
	PriceLatest      decimal.NullDecimal
	PricePrevious    decimal.NullDecimal
	PriceChange      decimal.NullDecimal

	DateLatest   time.Time
	DatePrevious time.Time
}

// Direction reports the sign of the price change, 0 when unknown.
func (r Row) Direction() int {
	if !r.PriceChange.Valid {
		return 0
	}
	return r.PriceChange.Decimal.Sign()
}

type Result struct {
	Latest   time.Time
	Previous time.Time
	Rows     []Row

	// Ids seen in only one of the two batches. They are not part of Rows.
	OnlyLatest   int
	OnlyPrevious int
}

func Compare(ctx context.Context, src Source) (Result, error) {
	dates, err := src.DistinctDates(ctx, 2, snapshot.Descending)
	if err != nil {
		return Result{}, fmt.Errorf("list scrape dates: %w", err)
	}
	if len(dates) < 2 {
		return Result{}, ErrNotEnoughData
	}
	latest, previous := dates[0], dates[1]

	latestRows, err := src.RowsForDate(ctx, latest)
	if err != nil {
		return Result{}, fmt.Errorf("load latest batch: %w", err)
	}
	previousRows, err := src.RowsForDate(ctx, previous)
	if err != nil {
		return Result{}, fmt.Errorf("load previous batch: %w", err)
	}

	return Join(latestRows, previousRows, latest, previous), nil
}

// Join pairs rows by id. Ids missing from either side are dropped.
func Join(latestRows, previousRows []snapshot.Snapshot, latest, previous time.Time) Result {
	prevByID := make(map[string]snapshot.Snapshot, len(previousRows))
	for _, r := range previousRows {
		prevByID[r.ID] = r
	}

	res := Result{Latest: latest, Previous: previous, Rows: make([]Row, 0, len(latestRows))}
	matched := 0
	for _, cur := range latestRows {
		prev, ok := prevByID[cur.ID]
		if !ok {
			res.OnlyLatest++
			continue
		}
		matched++
		row := Row{
			ID:               cur.ID,
			Title:            cur.Title,
			Category:         cur.Category,
			Owned:            cur.Owned,
			Image:            cur.Image,
			RawPriceLatest:   cur.Price,
			RawPricePrevious: prev.Price,
			PriceLatest:      nullPrice(cur.Price),
			PricePrevious:    nullPrice(prev.Price),
			DateLatest:       latest,
			DatePrevious:     previous,
		}
		if row.PriceLatest.Valid && row.PricePrevious.Valid {
			row.PriceChange = decimal.NewNullDecimal(row.PriceLatest.Decimal.Sub(row.PricePrevious.Decimal))
		}
		res.Rows = append(res.Rows, row)
	}
	res.OnlyPrevious = len(prevByID) - matched
	return res
}

func nullPrice(s string) decimal.NullDecimal {
	d, ok := snapshot.ParsePrice(s)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
