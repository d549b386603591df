// Package snapshot holds the append-only history of scraped product rows,
// the feed loader that seeds it and the simulator used in test mode.
package snapshot

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the on-disk format of scrape_date. It is fixed width, so
// lexical order of stored values is time order.
const DateLayout = "2006-01-02 15:04:05"

var (
	ErrMissingID           = errors.New("snapshot row has empty id")
	ErrDuplicateID         = errors.New("duplicate id within batch")
	ErrBatchExists         = errors.New("batch with this scrape_date already stored")
	ErrStoreNotEmpty       = errors.New("store already holds snapshots")
	ErrSimulationNotNeeded = errors.New("simulation needs exactly one stored batch")
)

// Snapshot is one product as seen by one capture.
type Snapshot struct {
	ID         string
	Title      string
	Category   string
	Price      string
	ScrapeDate time.Time
	Owned      *bool
	Image      string
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scrape_date %q: %w", s, err)
	}
	return t, nil
}
