// Package report renders snapshot history and the latest comparison into
// an xlsx workbook.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pricetrack/internal/compare"
	"pricetrack/internal/logger"
	"pricetrack/internal/snapshot"
)

const (
	SheetAllItems     = "All Items"
	SheetPriceChanges = "Price Changes"
	SheetProducts     = "Products"

	imageNotFound = "Image not found"
)

var (
	allItemsHeaders     = []string{"id", "title", "category", "price", "scrape_date", "owned", "image"}
	priceChangesHeaders = []string{
		"id", "title", "category", "owned",
		"price_latest", "scrape_date_latest", "image",
		"price_previous", "scrape_date_previous", "price_change",
	}
	priceChangeNumberCols = []int{4, 7, 9}
)

// Zero-based image column of each sheet.
const (
	allItemsImageCol     = 6
	priceChangesImageCol = 6
	productsImageCol     = 4
)

// Fill colours follow the spreadsheet "Bad" and "Good" cell presets. A
// rising price is the bad case for a buyer.
const (
	risingFill  = "FFC7CE"
	risingFont  = "9C0006"
	fallingFill = "C6EFCE"
	fallingFont = "006100"
)

type Options struct {
	ImageDir string
	Logger   *logger.Logger
}

type Stats struct {
	HistoryRows   int
	ChangeRows    int
	Rising        int
	Falling       int
	Thumbnails    int
	MissingImages int
}

type styles struct {
	number  int
	rising  int
	falling int
}

// Render writes the two-sheet report to path. The file appears only once
// it is complete.
func Render(path string, history []snapshot.Snapshot, cmp compare.Result, opts Options) (Stats, error) {
	f, _, stats, err := buildWorkbook(history, cmp, opts)
	if err != nil {
		return stats, err
	}
	defer f.Close()
	if err := writeAtomic(f, path); err != nil {
		return stats, err
	}
	return stats, nil
}

func buildWorkbook(history []snapshot.Snapshot, cmp compare.Result, opts Options) (*excelize.File, styles, Stats, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	f := excelize.NewFile()
	fail := func(err error) (*excelize.File, styles, Stats, error) {
		f.Close()
		return nil, styles{}, Stats{}, err
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetAllItems); err != nil {
		return fail(err)
	}
	if _, err := f.NewSheet(SheetPriceChanges); err != nil {
		return fail(err)
	}
	st, err := newStyles(f)
	if err != nil {
		return fail(err)
	}

	thumbs := newThumbnails(opts.ImageDir)
	stats := Stats{}
	if err := writeAllItems(f, thumbs, history, &stats, log); err != nil {
		return fail(fmt.Errorf("write %s: %w", SheetAllItems, err))
	}
	if err := writePriceChanges(f, thumbs, st, cmp.Rows, &stats, log); err != nil {
		return fail(fmt.Errorf("write %s: %w", SheetPriceChanges, err))
	}
	f.SetActiveSheet(0)
	return f, st, stats, nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.number, err = f.NewStyle(&excelize.Style{NumFmt: 2}); err != nil {
		return st, err
	}
	if st.rising, err = f.NewStyle(highlight(risingFill, risingFont)); err != nil {
		return st, err
	}
	if st.falling, err = f.NewStyle(highlight(fallingFill, fallingFont)); err != nil {
		return st, err
	}
	return st, nil
}

func highlight(fill, font string) *excelize.Style {
	return &excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fill}},
		Font:   &excelize.Font{Color: font},
		NumFmt: 2,
	}
}

func writeAllItems(f *excelize.File, thumbs *thumbnails, history []snapshot.Snapshot, stats *Stats, log *logger.Logger) error {
	rows := append([]snapshot.Snapshot(nil), history...)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].ScrapeDate.Equal(rows[j].ScrapeDate) {
			return rows[i].ScrapeDate.After(rows[j].ScrapeDate)
		}
		return rows[i].ID < rows[j].ID
	})

	headers, imgCol := allItemsHeaders, allItemsImageCol
	if err := f.SetSheetRow(SheetAllItems, "A1", &headers); err != nil {
		return err
	}
	layout := newSheetLayout(headers)
	for i, r := range rows {
		rowNum := i + 2
		values := []any{r.ID, r.Title, r.Category, r.Price, snapshot.FormatDate(r.ScrapeDate), ownedCell(r.Owned), r.Image}
		if err := setRow(f, SheetAllItems, rowNum, values); err != nil {
			return err
		}
		layout.observe(values)
		embedThumb(f, thumbs, SheetAllItems, imgCol, rowNum, r.ID, r.Image, stats, log)
	}
	stats.HistoryRows = len(rows)
	return layout.apply(f, SheetAllItems, len(rows), imgCol)
}

func writePriceChanges(f *excelize.File, thumbs *thumbnails, st styles, cmpRows []compare.Row, stats *Stats, log *logger.Logger) error {
	rows := append([]compare.Row(nil), cmpRows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	headers, imgCol := priceChangesHeaders, priceChangesImageCol
	if err := f.SetSheetRow(SheetPriceChanges, "A1", &headers); err != nil {
		return err
	}
	layout := newSheetLayout(headers)
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	for i, r := range rows {
		rowNum := i + 2
		values := []any{
			r.ID, r.Title, r.Category, ownedCell(r.Owned),
			priceCell(r.PriceLatest), snapshot.FormatDate(r.DateLatest), r.Image,
			priceCell(r.PricePrevious), snapshot.FormatDate(r.DatePrevious), priceCell(r.PriceChange),
		}
		if err := setRow(f, SheetPriceChanges, rowNum, values); err != nil {
			return err
		}
		layout.observe(values)

		for _, c := range priceChangeNumberCols {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			if err := f.SetCellStyle(SheetPriceChanges, cell, cell, st.number); err != nil {
				return err
			}
		}
		style := 0
		switch r.Direction() {
		case 1:
			style = st.rising
			stats.Rising++
		case -1:
			style = st.falling
			stats.Falling++
		}
		if style != 0 {
			if err := f.SetCellStyle(SheetPriceChanges, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("%s%d", lastCol, rowNum), style); err != nil {
				return err
			}
		}
		embedThumb(f, thumbs, SheetPriceChanges, imgCol, rowNum, r.ID, r.Image, stats, log)
	}
	stats.ChangeRows = len(rows)
	return layout.apply(f, SheetPriceChanges, len(rows), imgCol)
}

// embedThumb places a thumbnail in the image column. A missing or broken
// image only costs the thumbnail.
func embedThumb(f *excelize.File, thumbs *thumbnails, sheet string, col, row int, id, image string, stats *Stats, log *logger.Logger) bool {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return false
	}
	if err := thumbs.embed(f, sheet, cell, id, image); err != nil {
		if !errors.Is(err, errNoImage) {
			log.Warn("thumbnail skipped", "sheet", sheet, "id", id, "error", err)
		}
		stats.MissingImages++
		return false
	}
	stats.Thumbnails++
	return true
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func priceCell(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

func ownedCell(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func writeAtomic(f *excelize.File, path string) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

// WriteFileAtomic writes through a temp file in the target directory and
// renames it into place, so path is either absent or complete. The result
// is world readable.
func WriteFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = write(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move %s into place: %w", path, err)
	}
	return nil
}
