package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"pricetrack/internal/config"
	"pricetrack/internal/logger"
	"pricetrack/internal/pipeline"
	"pricetrack/internal/snapshot"
)

func main() {
	cfg, err := config.Load("daily-comparison", os.Args[1:], config.DefaultOutputPath)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fatalf("config: %v", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer log.Sync()

	if _, err := run(context.Background(), cfg, log.With("run_id", uuid.NewString()), os.Stdout); err != nil {
		log.Error("daily comparison failed", "error", err)
		log.Sync()
		fatalf("daily comparison: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger, out io.Writer) (pipeline.Result, error) {
	store, err := snapshot.Open(cfg.StorePath())
	if err != nil {
		return pipeline.Result{}, err
	}
	defer store.Close()

	if cfg.TestMode {
		fmt.Fprintf(out, "Test mode: using %s\n", cfg.StorePath())
	}
	res, err := pipeline.Run(ctx, cfg, pipeline.Deps{Store: store, Logger: log})
	if err != nil {
		return res, err
	}

	if res.Bootstrapped != nil {
		fmt.Fprintf(out, "Database was empty: loaded %d products from %s\n", res.Bootstrapped.Rows, cfg.FeedPath)
	}
	if res.Simulated != nil {
		fmt.Fprintf(out, "Simulated scrape date %s from %s\n",
			snapshot.FormatDate(res.Simulated.NewDate), snapshot.FormatDate(res.Simulated.BaseDate))
	}
	if res.Outcome == pipeline.OutcomeNotEnoughData {
		fmt.Fprintln(out, "Not enough data to perform a comparison.")
		return res, nil
	}

	cmp := res.Comparison
	fmt.Fprintf(out, "Comparing dates: %s (latest) and %s (previous)\n",
		snapshot.FormatDate(cmp.Latest), snapshot.FormatDate(cmp.Previous))
	fmt.Fprintf(out, "Matched products: %d\n", len(cmp.Rows))
	fmt.Fprintf(out, "Price up / down:  %d / %d\n", res.Report.Rising, res.Report.Falling)
	fmt.Fprintf(out, "Comparison complete. Results saved to %s\n", res.ReportPath)
	return res, nil
}

func fatalf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}
