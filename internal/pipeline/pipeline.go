// Package pipeline runs one daily comparison: seed, optionally simulate,
// compare and render.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"pricetrack/internal/compare"
	"pricetrack/internal/config"
	"pricetrack/internal/logger"
	"pricetrack/internal/report"
	"pricetrack/internal/snapshot"
)

type Outcome int

const (
	OutcomeReported Outcome = iota
	OutcomeNotEnoughData
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReported:
		return "reported"
	case OutcomeNotEnoughData:
		return "not_enough_data"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	Outcome      Outcome
	Bootstrapped *snapshot.BootstrapResult
	Simulated    *snapshot.SimulateResult
	Comparison   compare.Result
	Report       report.Stats
	ReportPath   string
}

// Deps are the collaborators a run needs besides its config.
type Deps struct {
	Store  *snapshot.Store
	Logger *logger.Logger
	Now    func() time.Time
	Rand   *rand.Rand
}

// Run executes one pass. Not having two batches yet is reported through
// OutcomeNotEnoughData, not an error.
func Run(ctx context.Context, cfg config.Config, deps Deps) (Result, error) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	store := deps.Store
	res := Result{}

	if err := store.EnsureSchema(ctx); err != nil {
		return res, err
	}

	count, err := store.Count(ctx)
	if err != nil {
		return res, err
	}
	if count == 0 {
		log.Info("database is empty, loading feed", "feed", cfg.FeedPath)
		boot, err := snapshot.Bootstrap(ctx, store, cfg.FeedPath, now())
		if err != nil {
			return res, fmt.Errorf("bootstrap from %s: %w", cfg.FeedPath, err)
		}
		log.Info("feed loaded",
			"rows", boot.Rows,
			"batches", len(boot.Batches),
			"invalid_rows", boot.Stats.InvalidRows,
			"missing_ids", boot.Stats.MissingIDs,
			"duplicate_ids", boot.Stats.DuplicateIDs,
		)
		res.Bootstrapped = &boot
	}

	dates, err := store.DistinctDates(ctx, 0, snapshot.Descending)
	if err != nil {
		return res, err
	}
	log.Debug("scrape dates in database", "count", len(dates))

	if cfg.TestMode && len(dates) < 2 {
		rng := deps.Rand
		if rng == nil {
			rng = newRand(cfg.Seed)
		}
		sim, err := snapshot.Simulate(ctx, store, rng)
		if err != nil {
			return res, err
		}
		log.Info("test mode: simulated a second scrape date",
			"base_date", snapshot.FormatDate(sim.BaseDate),
			"new_date", snapshot.FormatDate(sim.NewDate),
			"rows", sim.Rows,
			"unparsed_prices", sim.Unchanged,
		)
		res.Simulated = &sim
	}

	cmp, err := compare.Compare(ctx, store)
	if errors.Is(err, compare.ErrNotEnoughData) {
		log.Info("not enough data to perform a comparison")
		res.Outcome = OutcomeNotEnoughData
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Comparison = cmp
	log.Info("comparing dates",
		"latest", snapshot.FormatDate(cmp.Latest),
		"previous", snapshot.FormatDate(cmp.Previous),
		"matched", len(cmp.Rows),
		"only_latest", cmp.OnlyLatest,
		"only_previous", cmp.OnlyPrevious,
	)

	history, err := store.AllRows(ctx)
	if err != nil {
		return res, err
	}
	stats, err := report.Render(cfg.OutputPath, history, cmp, report.Options{ImageDir: cfg.ImageDir, Logger: log})
	if err != nil {
		return res, fmt.Errorf("render report: %w", err)
	}
	log.Info("report written",
		"path", cfg.OutputPath,
		"rising", stats.Rising,
		"falling", stats.Falling,
		"thumbnails", stats.Thumbnails,
	)
	res.Outcome = OutcomeReported
	res.Report = stats
	res.ReportPath = cfg.OutputPath
	return res, nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
