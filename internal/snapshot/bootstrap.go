package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"
)

type BootstrapResult struct {
	Stats   FeedStats
	Rows    int
	Batches []time.Time
}

// Bootstrap seeds an empty store from the feed at feedPath. Records without
// their own scrape_date are all dated now. A repeated id within one date
// keeps its first record.
func Bootstrap(ctx context.Context, store *Store, feedPath string, now time.Time) (BootstrapResult, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return BootstrapResult{}, err
	}
	if n > 0 {
		return BootstrapResult{}, ErrStoreNotEmpty
	}

	records, stats, err := LoadFeed(feedPath)
	if err != nil {
		return BootstrapResult{}, err
	}
	if len(records) == 0 {
		return BootstrapResult{}, fmt.Errorf("feed %s holds no usable products", feedPath)
	}

	now = now.UTC().Truncate(time.Second)
	batches := map[time.Time][]Snapshot{}
	seen := map[time.Time]map[string]struct{}{}
	for _, rec := range records {
		date := rec.ScrapeDate
		if date.IsZero() {
			date = now
		}
		if seen[date] == nil {
			seen[date] = map[string]struct{}{}
		}
		if _, dup := seen[date][rec.ID]; dup {
			stats.DuplicateIDs++
			continue
		}
		seen[date][rec.ID] = struct{}{}
		batches[date] = append(batches[date], rec.Snapshot())
	}
	dates := make([]time.Time, 0, len(batches))
	for d := range batches {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	res := BootstrapResult{Stats: stats}
	for _, d := range dates {
		if _, err := store.AppendBatch(ctx, batches[d], d); err != nil {
			return res, fmt.Errorf("bootstrap batch %s: %w", FormatDate(d), err)
		}
		res.Rows += len(batches[d])
		res.Batches = append(res.Batches, d)
	}
	return res, nil
}
