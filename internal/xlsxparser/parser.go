// =============================================================================
// Statement Normalizer - XLSX Reader
// =============================================================================
//
// This module reads one worksheet of an XLSX export into a raw table. Nothing
// is interpreted beyond the cell types the workbook itself records:
//
//   - shared / inline strings, booleans, errors  -> Text cells
//   - numbers with a date number format         -> Date cells
//   - other numbers                             -> Number cells (exact literal)
//   - ISO date cells (t="d")                    -> Date cells
//
// Number cells keep the literal as stored in the XML, so amounts are never
// routed through a float before they reach the decimal parser.
//
// CUSTOMIZATION:
//   - Add built-in format IDs to dateFormatIDs if a bank uses an exotic one
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

var (
	// ErrNoSheets is returned for a workbook without worksheets.
	ErrNoSheets = errors.New("workbook has no sheets")

	// ErrSheetNotFound is returned when the requested sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
)

// dateFormatIDs are the built-in number formats that render dates.
var dateFormatIDs = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// =============================================================================
// READING
// =============================================================================

// Read reads a worksheet from an XLSX file. An empty sheet name selects the
// first sheet.
func Read(path, sheet string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readFile(f, path, sheet)
}

// ReadReader reads a worksheet from an XLSX stream. source names the table.
func ReadReader(r io.Reader, source, sheet string) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readFile(f, source, sheet)
}

func readFile(f *excelize.File, source, sheet string) (*table.Table, error) {
	sheet, err := resolveSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	r := &cellReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	cells := make([][]table.Cell, len(rows))
	for i, row := range rows {
		out := make([]table.Cell, len(row))
		for j, raw := range row {
			out[j], err = r.cell(j+1, i+1, raw)
			if err != nil {
				return nil, err
			}
		}
		cells[i] = out
	}

	t := table.New(source, cells)
	t.Sheet = sheet
	return t, nil
}

func resolveSheet(f *excelize.File, sheet string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", ErrNoSheets
	}
	if sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if strings.EqualFold(s, sheet) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q (have %s)", ErrSheetNotFound, sheet, strings.Join(sheets, ", "))
}

// cellReader types raw cell values using the workbook's cell types and
// styles. Date decisions are cached per style index.
type cellReader struct {
	f          *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func (r *cellReader) cell(col, row int, raw string) (table.Cell, error) {
	if strings.TrimSpace(raw) == "" {
		return table.Cell{}, nil
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return table.Cell{}, err
	}
	typ, err := r.f.GetCellType(r.sheet, name)
	if err != nil {
		return table.Cell{}, fmt.Errorf("cell %s: %w", name, err)
	}

	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return table.DateCell(t), nil
		}
		return table.TextCell(raw), nil
	default:
		return table.TextCell(raw), nil
	}

	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return table.TextCell(raw), nil
	}
	isDate, err := r.isDateStyled(name)
	if err != nil {
		return table.Cell{}, err
	}
	if isDate {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return table.DateCell(t), nil
		}
	}
	// Spreadsheet writers often store the 17-digit round-trip literal
	// ("1.1000000000000001"); keep the shortest form that reads back the same.
	return table.NumberCell(strconv.FormatFloat(serial, 'f', -1, 64)), nil
}

func (r *cellReader) isDateStyled(cell string) (bool, error) {
	idx, err := r.f.GetCellStyle(r.sheet, cell)
	if err != nil {
		return false, fmt.Errorf("cell %s style: %w", cell, err)
	}
	if v, ok := r.dateStyles[idx]; ok {
		return v, nil
	}
	v := false
	if idx != 0 {
		style, err := r.f.GetStyle(idx)
		if err != nil {
			return false, fmt.Errorf("style %d: %w", idx, err)
		}
		v = dateFormatIDs[style.NumFmt] || (style.CustomNumFmt != nil && IsDateFormat(*style.CustomNumFmt))
	}
	r.dateStyles[idx] = v
	return v, nil
}

// IsDateFormat reports whether a custom number format renders a date: it
// contains a day or year token outside quoted text and bracketed sections.
func IsDateFormat(format string) bool {
	inQuote, inBracket := false, false
	for _, c := range strings.ToLower(format) {
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		case c == 'd' || c == 'y':
			return true
		}
	}
	return false
}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// =============================================================================
// WORKBOOK INFO
// =============================================================================

// FileInfo summarises a workbook for previews.
type FileInfo struct {
	Name    string
	Path    string
	Sheets  []string
	Sheet   string
	Rows    int
	Columns int
}

// SheetNames lists the worksheets of an XLSX file in workbook order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Info reads the first (or named) sheet and reports its dimensions.
func Info(path, sheet string) (FileInfo, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	t, err := readFile(f, path, sheet)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name:    filepath.Base(path),
		Path:    path,
		Sheets:  f.GetSheetList(),
		Sheet:   t.Sheet,
		Rows:    t.Len(),
		Columns: t.Width(),
	}, nil
}
