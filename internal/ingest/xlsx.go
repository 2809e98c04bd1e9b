package ingest

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/integridade/internal/model"
)

// LoadXLSX reads the first sheet of a workbook. The first non-empty row is
// the header; fully empty rows are skipped. Cells are read raw so numbers
// keep full precision, and date-formatted serials become ISO dates.
func LoadXLSX(path string) (*File, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	sheet := sheets[0]

	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer func() { _ = rows.Close() }()

	dates := newDateCells(wb, sheet)
	tbl := model.Table{Name: filepath.Base(path)}
	for rowNum := 1; rows.Next(); rowNum++ {
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if tbl.Columns != nil {
			dates.convert(rowNum, cols)
		}
		if blank(cols) {
			continue
		}
		if tbl.Columns == nil {
			tbl.Columns = cols
			continue
		}
		tbl.Rows = append(tbl.Rows, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(tbl.Columns) <= minColumns {
		return nil, fmt.Errorf("%s: %w", path, ErrUnreadable)
	}

	return &File{Table: tbl, Format: "xlsx", Sheet: sheet}, nil
}

func blank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// dateCells turns date-formatted serial numbers back into dates. Excel
// stores dates as day counts; only the cell style says which numbers are dates.
type dateCells struct {
	wb       *excelize.File
	sheet    string
	date1904 bool
	byStyle  map[int]bool
}

func newDateCells(wb *excelize.File, sheet string) *dateCells {
	d := &dateCells{wb: wb, sheet: sheet, byStyle: make(map[int]bool)}
	if props, err := wb.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateCells) convert(rowNum int, cols []string) {
	for i, v := range cols {
		serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || serial <= 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil || !d.isDate(cell) {
			continue
		}
		t, err := excelize.ExcelDateToTime(serial, d.date1904)
		if err != nil {
			continue
		}
		cols[i] = formatDate(t)
	}
}

func (d *dateCells) isDate(cell string) bool {
	style, err := d.wb.GetCellStyle(d.sheet, cell)
	if err != nil || style == 0 {
		return false
	}
	if v, ok := d.byStyle[style]; ok {
		return v
	}
	v := false
	if st, err := d.wb.GetStyle(style); err == nil {
		v = isDateFormat(st.NumFmt, st.CustomNumFmt)
	}
	d.byStyle[style] = v
	return v
}

// isDateFormat recognizes the built-in date formats and custom formats
// that carry a day or year token outside quoted and bracketed sections
func isDateFormat(id int, custom *string) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	if custom == nil {
		return false
	}

	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(*custom) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "dy")
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
