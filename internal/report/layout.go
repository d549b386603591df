package report

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	headerHeight  = 20
	rowHeight     = 80
	widthMargin   = 2
	maxColWidth   = 80
	thumbColWidth = 15
)

// sheetLayout tracks the longest value per column while rows are written.
type sheetLayout struct {
	widths []int
}

func newSheetLayout(headers []string) *sheetLayout {
	l := &sheetLayout{widths: make([]int, len(headers))}
	l.observe(stringsToAny(headers))
	return l
}

func (l *sheetLayout) observe(values []any) {
	for i, v := range values {
		if i >= len(l.widths) {
			l.widths = append(l.widths, 0)
		}
		if n := utf8.RuneCountInString(cellText(v)); n > l.widths[i] {
			l.widths[i] = n
		}
	}
}

// apply sets row heights for rows 1..rows+1 and column widths.
func (l *sheetLayout) apply(f *excelize.File, sheet string, rows int, thumbCol int) error {
	if err := f.SetRowHeight(sheet, 1, headerHeight); err != nil {
		return err
	}
	for r := 2; r <= rows+1; r++ {
		if err := f.SetRowHeight(sheet, r, rowHeight); err != nil {
			return err
		}
	}
	for i, w := range l.widths {
		width := w + widthMargin
		if width > maxColWidth {
			width = maxColWidth
		}
		if i == thumbCol && width < thumbColWidth {
			width = thumbColWidth
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(width)); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.2f", t)
	default:
		return fmt.Sprint(t)
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
