package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Order int

const (
	Descending Order = iota
	Ascending
)

const schema = `CREATE TABLE IF NOT EXISTS products (
	id TEXT NOT NULL,
	title TEXT,
	category TEXT,
	price TEXT,
	scrape_date DATETIME DEFAULT CURRENT_TIMESTAMP,
	owned INTEGER,
	image TEXT
)`

// scrape_date is read back as its stored text so values outside DateLayout
// fail to parse instead of being reinterpreted by the driver.
const selectColumns = `SELECT id, title, category, price, CAST(scrape_date AS TEXT), owned, image FROM products`

// Store is the sqlite-backed products table. Rows are only ever inserted.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the sqlite file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store unavailable: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store unavailable: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store unavailable: ping %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SetClock replaces the clock used to date batches appended without a date.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create products table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_products_scrape_date ON products(scrape_date)`); err != nil {
		return fmt.Errorf("create scrape_date index: %w", err)
	}
	return nil
}

// HasSchema reports whether the products table exists.
func (s *Store) HasSchema(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'products'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect schema: %w", err)
	}
	return n > 0, nil
}

// AppendBatch inserts rows as one capture dated date, or now when date is
// zero. The insert is a single transaction. It returns the date used.
func (s *Store) AppendBatch(ctx context.Context, rows []Snapshot, date time.Time) (time.Time, error) {
	if date.IsZero() {
		date = s.now().UTC()
	}
	date = date.Truncate(time.Second)
	stamp := FormatDate(date)

	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.ID) == "" {
			return time.Time{}, ErrMissingID
		}
		if _, dup := seen[r.ID]; dup {
			return time.Time{}, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE scrape_date = ?`, stamp).Scan(&exists)
	if err != nil {
		return time.Time{}, fmt.Errorf("check batch %s: %w", stamp, err)
	}
	if exists > 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrBatchExists, stamp)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO products (id, title, category, price, scrape_date, owned, image) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return time.Time{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Title, r.Category, r.Price, stamp, ownedValue(r.Owned), nullString(r.Image)); err != nil {
			return time.Time{}, fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit batch %s: %w", stamp, err)
	}
	return date, nil
}

// AllRows returns every stored row. Order is not defined.
func (s *Store) AllRows(ctx context.Context) ([]Snapshot, error) {
	return s.query(ctx, selectColumns)
}

func (s *Store) RowsForDate(ctx context.Context, date time.Time) ([]Snapshot, error) {
	return s.query(ctx, selectColumns+` WHERE scrape_date = ?`, FormatDate(date))
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// DistinctDates returns at most limit distinct scrape dates in the given order.
func (s *Store) DistinctDates(ctx context.Context, limit int, order Order) ([]time.Time, error) {
	dir := "DESC"
	if order == Ascending {
		dir = "ASC"
	}
	q := `SELECT DISTINCT CAST(scrape_date AS TEXT) AS d FROM products ORDER BY d ` + dir
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query distinct dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := decodeDate(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			r                      Snapshot
			title, category, price sql.NullString
			image                  sql.NullString
			owned                  sql.NullInt64
			rawDate                sql.NullString
		)
		if err := rows.Scan(&r.ID, &title, &category, &price, &rawDate, &owned, &image); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		date, err := decodeDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", r.ID, err)
		}
		r.Title, r.Category, r.Price, r.Image = title.String, category.String, price.String, image.String
		r.ScrapeDate = date
		if owned.Valid {
			b := owned.Int64 != 0
			r.Owned = &b
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeDate(v sql.NullString) (time.Time, error) {
	if !v.Valid {
		return time.Time{}, fmt.Errorf("scrape_date is null")
	}
	return ParseDate(v.String)
}

func ownedValue(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
