package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FeedRecord is one product from the scraper's export.
type FeedRecord struct {
	ID         string
	Title      string
	Category   string
	Price      string
	Owned      *bool
	Image      string
	ScrapeDate time.Time
	Extra      map[string]any
}

type FeedStats struct {
	SourceRows  int
	InvalidRows int
	MissingIDs  int
	// DuplicateIDs counts records dropped because an earlier record had
	// the same id and scrape date.
	DuplicateIDs int
}

var knownFeedKeys = map[string]bool{
	"id": true, "title": true, "category": true, "price": true,
	"owned": true, "image": true, "scrape_date": true,
}

// LoadFeed reads a JSON array or JSON Lines feed. Malformed lines and
// records without an id are skipped and counted in the stats.
func LoadFeed(path string) ([]FeedRecord, FeedStats, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, FeedStats{}, fmt.Errorf("read feed: %w", err)
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})

	var raws []map[string]any
	stats := FeedStats{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, FeedStats{}, fmt.Errorf("decode feed %s: %w", path, err)
		}
		stats.SourceRows = len(raws)
	} else {
		sc := bufio.NewScanner(bytes.NewReader(b))
		buf := make([]byte, 0, 1024*1024)
		sc.Buffer(buf, 20*1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			stats.SourceRows++
			var raw map[string]any
			if err := json.Unmarshal([]byte(line), &raw); err != nil {
				stats.InvalidRows++
				continue
			}
			raws = append(raws, raw)
		}
		if err := sc.Err(); err != nil {
			return nil, FeedStats{}, fmt.Errorf("scan feed %s: %w", path, err)
		}
	}

	records := make([]FeedRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := parseFeedRecord(raw)
		if err != nil {
			return nil, FeedStats{}, err
		}
		if rec.ID == "" {
			stats.MissingIDs++
			continue
		}
		records = append(records, rec)
	}
	return records, stats, nil
}

func parseFeedRecord(raw map[string]any) (FeedRecord, error) {
	rec := FeedRecord{
		ID:       textOf(raw["id"]),
		Title:    textOf(raw["title"]),
		Category: textOf(raw["category"]),
		Price:    priceText(raw["price"]),
		Owned:    boolOrNil(raw["owned"]),
		Image:    textOf(raw["image"]),
	}
	if s := textOf(raw["scrape_date"]); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			return FeedRecord{}, fmt.Errorf("feed record %s: %w", rec.ID, err)
		}
		rec.ScrapeDate = t
	}
	for k, v := range raw {
		if knownFeedKeys[k] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = map[string]any{}
		}
		rec.Extra[k] = v
	}
	return rec, nil
}

func (r FeedRecord) Snapshot() Snapshot {
	return Snapshot{
		ID:         r.ID,
		Title:      r.Title,
		Category:   r.Category,
		Price:      r.Price,
		ScrapeDate: r.ScrapeDate,
		Owned:      r.Owned,
		Image:      r.Image,
	}
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// priceText keeps scraped text as is and renders bare numbers as dollars.
func priceText(v any) string {
	if f, ok := v.(float64); ok {
		return FormatPrice(decimal.NewFromFloat(f))
	}
	return textOf(v)
}

func boolOrNil(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case float64:
		b = t != 0
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		b = p
	default:
		return nil
	}
	return &b
}
