package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"pricetrack/internal/logger"
	"pricetrack/internal/snapshot"
)

var productsHeaders = []string{"ID", "Title", "Category", "Price", "Image"}

// Export writes one batch of products to a single "Products" sheet. Rows
// without an image file get an "Image not found" marker.
func Export(path string, rows []snapshot.Snapshot, opts Options) (Stats, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetProducts); err != nil {
		return Stats{}, err
	}
	headers, imgCol := productsHeaders, productsImageCol
	if err := f.SetSheetRow(SheetProducts, "A1", &headers); err != nil {
		return Stats{}, err
	}

	thumbs := newThumbnails(opts.ImageDir)
	layout := newSheetLayout(headers)
	stats := Stats{}
	for i, r := range rows {
		rowNum := i + 2
		values := []any{r.ID, r.Title, r.Category, r.Price, ""}
		if err := setRow(f, SheetProducts, rowNum, values); err != nil {
			return stats, fmt.Errorf("write product %s: %w", r.ID, err)
		}
		if !embedThumb(f, thumbs, SheetProducts, imgCol, rowNum, r.ID, r.Image, &stats, log) {
			cell, _ := excelize.CoordinatesToCellName(imgCol+1, rowNum)
			if err := f.SetCellStr(SheetProducts, cell, imageNotFound); err != nil {
				return stats, err
			}
			values[imgCol] = imageNotFound
		}
		layout.observe(values)
	}
	stats.HistoryRows = len(rows)
	if err := layout.apply(f, SheetProducts, len(rows), imgCol); err != nil {
		return stats, err
	}
	if err := writeAtomic(f, path); err != nil {
		return stats, err
	}
	return stats, nil
}
