package report

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"pricetrack/internal/compare"
	"pricetrack/internal/snapshot"
)

var (
	day1 = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
}

func fixture(t *testing.T) ([]snapshot.Snapshot, compare.Result, string) {
	t.Helper()
	imgDir := t.TempDir()
	writePNG(t, filepath.Join(imgDir, "up.png"), 300, 200)

	history := []snapshot.Snapshot{
		{ID: "up", Title: "Tote", Category: "handbags", Price: "$8.00", ScrapeDate: day1, Image: "up.png"},
		{ID: "down", Title: "Wallet", Category: "wallets", Price: "$20.00", ScrapeDate: day1},
		{ID: "bad", Title: "Ring", Category: "jewelry", Price: "$5.00", ScrapeDate: day1},
		{ID: "flat", Title: "Belt", Category: "accessories", Price: "$30.00", ScrapeDate: day1},
		{ID: "up", Title: "Tote", Category: "handbags", Price: "$10.00", ScrapeDate: day2, Image: "up.png"},
		{ID: "down", Title: "Wallet", Category: "wallets", Price: "$15.00", ScrapeDate: day2, Image: "missing.jpg"},
		{ID: "bad", Title: "Ring", Category: "jewelry", Price: "N/A", ScrapeDate: day2},
		{ID: "flat", Title: "Belt", Category: "accessories", Price: "$30.00", ScrapeDate: day2},
	}
	var latest, previous []snapshot.Snapshot
	for _, r := range history {
		if r.ScrapeDate.Equal(day2) {
			latest = append(latest, r)
		} else {
			previous = append(previous, r)
		}
	}
	return history, compare.Join(latest, previous, day2, day1), imgDir
}

func rowOf(t *testing.T, f *excelize.File, sheet, id string) int {
	t.Helper()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows error: %v", err)
	}
	for i, r := range rows {
		if len(r) > 0 && r[0] == id {
			return i + 1
		}
	}
	t.Fatalf("id %s not found in %s", id, sheet)
	return 0
}

func TestRenderWritesBothSheets(t *testing.T) {
	history, cmp, imgDir := fixture(t)
	out := filepath.Join(t.TempDir(), "reports", "daily_price_comparison.xlsx")

	stats, err := Render(out, history, cmp, Options{ImageDir: imgDir})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if stats.HistoryRows != 8 || stats.ChangeRows != 4 || stats.Rising != 1 || stats.Falling != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	defer f.Close()

	if got := strings.Join(f.GetSheetList(), ","); got != SheetAllItems+","+SheetPriceChanges {
		t.Fatalf("unexpected sheets: %s", got)
	}
	all, err := f.GetRows(SheetAllItems)
	if err != nil {
		t.Fatalf("GetRows error: %v", err)
	}
	if len(all) != 9 {
		t.Fatalf("expected header + 8 rows on %s, got %d", SheetAllItems, len(all))
	}
	changes, err := f.GetRows(SheetPriceChanges)
	if err != nil {
		t.Fatalf("GetRows error: %v", err)
	}
	if len(changes) != 5 {
		t.Fatalf("expected header + 4 rows on %s, got %d", SheetPriceChanges, len(changes))
	}
	if strings.Join(changes[0], ",") != strings.Join(priceChangesHeaders, ",") {
		t.Fatalf("unexpected header: %v", changes[0])
	}

	upRow := rowOf(t, f, SheetPriceChanges, "up")
	raw, err := f.GetCellValue(SheetPriceChanges, "J"+strconv.Itoa(upRow), excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue error: %v", err)
	}
	if v, err := strconv.ParseFloat(raw, 64); err != nil || v != 2 {
		t.Fatalf("expected price_change 2, got %q", raw)
	}
	badRow := rowOf(t, f, SheetPriceChanges, "bad")
	if v, _ := f.GetCellValue(SheetPriceChanges, "J"+strconv.Itoa(badRow)); v != "" {
		t.Fatalf("expected empty price_change for unparseable price, got %q", v)
	}

	pics, err := f.GetPictures(SheetPriceChanges, "G"+strconv.Itoa(upRow))
	if err != nil {
		t.Fatalf("GetPictures error: %v", err)
	}
	if len(pics) != 1 {
		t.Fatalf("expected one thumbnail for up, got %d", len(pics))
	}
	downRow := rowOf(t, f, SheetPriceChanges, "down")
	if pics, _ := f.GetPictures(SheetPriceChanges, "G"+strconv.Itoa(downRow)); len(pics) != 0 {
		t.Fatalf("expected no thumbnail for missing image, got %d", len(pics))
	}

	if h, _ := f.GetRowHeight(SheetPriceChanges, 1); h != headerHeight {
		t.Fatalf("expected header height %d, got %v", headerHeight, h)
	}
	if h, _ := f.GetRowHeight(SheetPriceChanges, 2); h != rowHeight {
		t.Fatalf("expected row height %d, got %v", rowHeight, h)
	}
}

func TestPriceChangeHighlighting(t *testing.T) {
	history, cmp, imgDir := fixture(t)
	f, st, _, err := buildWorkbook(history, cmp, Options{ImageDir: imgDir})
	if err != nil {
		t.Fatalf("buildWorkbook error: %v", err)
	}
	defer f.Close()

	cases := map[string]int{"up": st.rising, "down": st.falling}
	for id, want := range cases {
		row := strconv.Itoa(rowOf(t, f, SheetPriceChanges, id))
		for _, col := range []string{"A", "E", "J"} {
			got, err := f.GetCellStyle(SheetPriceChanges, col+row)
			if err != nil {
				t.Fatalf("GetCellStyle error: %v", err)
			}
			if got != want {
				t.Fatalf("%s%s for %s: style %d, want %d", col, row, id, got, want)
			}
		}
	}
	for _, id := range []string{"bad", "flat"} {
		row := strconv.Itoa(rowOf(t, f, SheetPriceChanges, id))
		for _, col := range []string{"A", "E", "J"} {
			got, _ := f.GetCellStyle(SheetPriceChanges, col+row)
			if got == st.rising || got == st.falling {
				t.Fatalf("%s must not be highlighted, %s%s has style %d", id, col, row, got)
			}
		}
	}
	raw, err := f.GetCellValue(SheetPriceChanges, "J"+strconv.Itoa(rowOf(t, f, SheetPriceChanges, "flat")), excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue error: %v", err)
	}
	if v, err := strconv.ParseFloat(raw, 64); err != nil || v != 0 {
		t.Fatalf("expected price_change 0 for flat, got %q", raw)
	}
}

func TestImageColumnsMatchHeaders(t *testing.T) {
	cases := []struct {
		sheet   string
		headers []string
		col     int
	}{
		{SheetAllItems, allItemsHeaders, allItemsImageCol},
		{SheetPriceChanges, priceChangesHeaders, priceChangesImageCol},
		{SheetProducts, productsHeaders, productsImageCol},
	}
	for _, c := range cases {
		if !strings.EqualFold(c.headers[c.col], "image") {
			t.Fatalf("%s: column %d is %q, want image", c.sheet, c.col, c.headers[c.col])
		}
	}
}

func TestRenderOutputIsWorldReadable(t *testing.T) {
	history, cmp, imgDir := fixture(t)
	out := filepath.Join(t.TempDir(), "report.xlsx")
	if _, err := Render(out, history, cmp, Options{ImageDir: imgDir}); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("expected mode 0644, got %v", perm)
	}
}

func TestRenderLeavesNoPartialFile(t *testing.T) {
	history, cmp, imgDir := fixture(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "report.xlsx")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := Render(target, history, cmp, Options{ImageDir: imgDir}); err == nil {
		t.Fatalf("expected error when target is a directory")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only the blocking directory, found %v", names)
	}
}

func TestExportMarksMissingImages(t *testing.T) {
	imgDir := t.TempDir()
	writePNG(t, filepath.Join(imgDir, "A.png"), 64, 64)
	out := filepath.Join(t.TempDir(), "products.xlsx")
	rows := []snapshot.Snapshot{
		{ID: "A", Title: "Widget", Category: "Tools", Price: "$10.00"},
		{ID: "B", Title: "Gadget", Category: "Tools", Price: "$5.00"},
	}

	stats, err := Export(out, rows, Options{ImageDir: imgDir})
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if stats.Thumbnails != 1 || stats.MissingImages != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 1 || got[0] != SheetProducts {
		t.Fatalf("unexpected sheets: %v", got)
	}
	if v, _ := f.GetCellValue(SheetProducts, "E3"); v != imageNotFound {
		t.Fatalf("expected %q for B, got %q", imageNotFound, v)
	}
	if pics, _ := f.GetPictures(SheetProducts, "E2"); len(pics) != 1 {
		t.Fatalf("expected thumbnail for A, got %d", len(pics))
	}
}

func TestThumbnailIsFixedSize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "big.png"), 640, 480)
	b, err := newThumbnails(dir).png("x", "big.png")
	if err != nil {
		t.Fatalf("png error: %v", err)
	}
	cfg, err := png.DecodeConfig(strings.NewReader(string(b)))
	if err != nil {
		t.Fatalf("DecodeConfig error: %v", err)
	}
	if cfg.Width != ThumbSize || cfg.Height != ThumbSize {
		t.Fatalf("expected %dx%d thumbnail, got %dx%d", ThumbSize, ThumbSize, cfg.Width, cfg.Height)
	}
}
