package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pricetrack/internal/snapshot"
)

func seedStore(t *testing.T, path string, batches map[time.Time][]snapshot.Snapshot) {
	t.Helper()
	store, err := snapshot.Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}
	for d, rows := range batches {
		if _, err := store.AppendBatch(ctx, rows, d); err != nil {
			t.Fatalf("AppendBatch error: %v", err)
		}
	}
}

func TestCompareStoreCountsDirections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	day1 := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	seedStore(t, path, map[time.Time][]snapshot.Snapshot{
		day1: {
			{ID: "a", Price: "$10.00"}, {ID: "b", Price: "$10.00"},
			{ID: "c", Price: "$10.00"}, {ID: "d", Price: "$10.00"}, {ID: "gone", Price: "$1.00"},
		},
		day2: {
			{ID: "a", Price: "$12.00"}, {ID: "b", Price: "$9.00"},
			{ID: "c", Price: "$10.00"}, {ID: "d", Price: "sold out"}, {ID: "new", Price: "$3.00"},
		},
	})

	report, err := compareStore(context.Background(), path)
	if err != nil {
		t.Fatalf("compareStore error: %v", err)
	}
	if report.Status != "ok" || report.MatchedRows != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Rising != 1 || report.Falling != 1 || report.Unchanged != 1 || report.Unparsed != 1 {
		t.Fatalf("unexpected direction counts: %+v", report)
	}
	if report.OnlyLatest != 1 || report.OnlyPrevious != 1 {
		t.Fatalf("unexpected unmatched counts: %d/%d", report.OnlyLatest, report.OnlyPrevious)
	}

	payload, err := json.Marshal(report.Rows[3])
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(payload), `"price_change":null`) {
		t.Fatalf("expected null price_change for unparsed row, got %s", payload)
	}
}

func TestCompareStoreNotEnoughData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	seedStore(t, path, map[time.Time][]snapshot.Snapshot{
		time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC): {{ID: "a", Price: "$1.00"}},
	})
	report, err := compareStore(context.Background(), path)
	if err != nil {
		t.Fatalf("compareStore error: %v", err)
	}
	if report.Status != "not_enough_data" {
		t.Fatalf("expected not_enough_data, got %q", report.Status)
	}
}

func TestCompareStoreDoesNotCreateDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "products.db")
	if _, err := compareStore(context.Background(), path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no database directory to be created, got %v", err)
	}
}
