package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"pricetrack/internal/compare"
	"pricetrack/internal/config"
	reportpkg "pricetrack/internal/report"
	"pricetrack/internal/snapshot"
)

type rowPayload struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Category      string              `json:"category"`
	PriceLatest   decimal.NullDecimal `json:"price_latest"`
	PricePrevious decimal.NullDecimal `json:"price_previous"`
	PriceChange   decimal.NullDecimal `json:"price_change"`
	Direction     string              `json:"direction"`
}

type reportPayload struct {
	Status       string       `json:"status"`
	DateLatest   string       `json:"date_latest,omitempty"`
	DatePrevious string       `json:"date_previous,omitempty"`
	MatchedRows  int          `json:"matched_rows"`
	OnlyLatest   int          `json:"only_latest"`
	OnlyPrevious int          `json:"only_previous"`
	Rising       int          `json:"rising"`
	Falling      int          `json:"falling"`
	Unchanged    int          `json:"unchanged"`
	Unparsed     int          `json:"unparsed"`
	Rows         []rowPayload `json:"rows"`
}

func main() {
	cfg, err := config.Load("compare-snapshots", os.Args[1:], "")
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fatalf("config: %v", err)
	}

	report, err := compareStore(context.Background(), cfg.StorePath())
	if err != nil {
		fatalf("compare error: %v", err)
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fatalf("json encode error: %v", err)
	}

	if cfg.OutputPath != "" {
		err := reportpkg.WriteFileAtomic(cfg.OutputPath, func(w io.Writer) error {
			_, err := w.Write(append(payload, '\n'))
			return err
		})
		if err != nil {
			fatalf("write report error: %v", err)
		}
		fmt.Printf("Wrote JSON report: %s\n", cfg.OutputPath)
		fmt.Printf("Status: %s\n", report.Status)
		fmt.Printf("Dates (latest/previous): %s / %s\n", report.DateLatest, report.DatePrevious)
		fmt.Printf("Matched rows: %d\n", report.MatchedRows)
		fmt.Printf("Rising/falling/unchanged/unparsed: %d / %d / %d / %d\n", report.Rising, report.Falling, report.Unchanged, report.Unparsed)
		return
	}
	fmt.Println(string(payload))
}

// compareStore only reads: a missing database is an error and is never
// created.
func compareStore(ctx context.Context, path string) (reportPayload, error) {
	if _, err := os.Stat(path); err != nil {
		return reportPayload{}, fmt.Errorf("store unavailable: %w", err)
	}
	store, err := snapshot.Open(path)
	if err != nil {
		return reportPayload{}, err
	}
	defer store.Close()
	notEnough := reportPayload{Status: "not_enough_data", Rows: []rowPayload{}}
	ok, err := store.HasSchema(ctx)
	if err != nil {
		return reportPayload{}, err
	}
	if !ok {
		return notEnough, nil
	}

	cmp, err := compare.Compare(ctx, store)
	if errors.Is(err, compare.ErrNotEnoughData) {
		return notEnough, nil
	}
	if err != nil {
		return reportPayload{}, err
	}
	return buildPayload(cmp), nil
}

func buildPayload(cmp compare.Result) reportPayload {
	out := reportPayload{
		Status:       "ok",
		DateLatest:   snapshot.FormatDate(cmp.Latest),
		DatePrevious: snapshot.FormatDate(cmp.Previous),
		MatchedRows:  len(cmp.Rows),
		OnlyLatest:   cmp.OnlyLatest,
		OnlyPrevious: cmp.OnlyPrevious,
		Rows:         make([]rowPayload, 0, len(cmp.Rows)),
	}
	for _, r := range cmp.Rows {
		dir := "unparsed"
		switch {
		case !r.PriceChange.Valid:
			out.Unparsed++
		case r.Direction() > 0:
			dir = "up"
			out.Rising++
		case r.Direction() < 0:
			dir = "down"
			out.Falling++
		default:
			dir = "same"
			out.Unchanged++
		}
		out.Rows = append(out.Rows, rowPayload{
			ID:            r.ID,
			Title:         r.Title,
			Category:      r.Category,
			PriceLatest:   r.PriceLatest,
			PricePrevious: r.PricePrevious,
			PriceChange:   r.PriceChange,
			Direction:     dir,
		})
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].ID < out.Rows[j].ID })
	return out
}

func fatalf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}
