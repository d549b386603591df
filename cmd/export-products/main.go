package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"pricetrack/internal/config"
	"pricetrack/internal/logger"
	"pricetrack/internal/report"
	"pricetrack/internal/snapshot"
)

const defaultOutput = "data/products.xlsx"

func main() {
	cfg, err := config.Load("export-products", os.Args[1:], defaultOutput)
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

	stats, err := exportFeed(cfg, log)
	if err != nil {
		log.Sync()
		fatalf("export: %v", err)
	}
	fmt.Printf("Products: %d\n", stats.HistoryRows)
	fmt.Printf("Thumbnails: %d (missing %d)\n", stats.Thumbnails, stats.MissingImages)
	fmt.Printf("Products successfully exported to %s\n", cfg.OutputPath)
}

func exportFeed(cfg config.Config, log *logger.Logger) (report.Stats, error) {
	records, feedStats, err := snapshot.LoadFeed(cfg.FeedPath)
	if err != nil {
		return report.Stats{}, err
	}
	if feedStats.InvalidRows > 0 || feedStats.MissingIDs > 0 {
		log.Warn("skipped feed rows", "invalid_rows", feedStats.InvalidRows, "missing_ids", feedStats.MissingIDs)
	}
	rows := make([]snapshot.Snapshot, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Snapshot())
	}
	return report.Export(cfg.OutputPath, rows, report.Options{ImageDir: cfg.ImageDir, Logger: log})
}

func fatalf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}
