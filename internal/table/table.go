// =============================================================================
// Statement Normalizer - Raw Table Model
// =============================================================================
//
// This package contains the raw tabular model shared by the readers, the
// cleaning stage and the adapters. A Table is what a spreadsheet looks like
// before anything has been interpreted: rows of typed cells, an optional
// header row, and the name of the file it came from.
//
// CELL KINDS:
//   - Empty : nothing in the cell (or only whitespace)
//   - Text  : free-form text
//   - Number: a numeric cell; Text holds the exact literal, never a float
//   - Date  : a native date/timestamp value (for example a date-styled XLSX cell)
//
// Tables are treated as values. Nothing in this module mutates a table that
// was handed to it; every operation returns a new Table.
//
// =============================================================================

package table

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CELLS
// =============================================================================

// Kind identifies the type of value held by a Cell.
type Kind int

const (
	Empty Kind = iota
	Text
	Number
	Date
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Number:
		return "number"
	case Date:
		return "date"
	default:
		return "empty"
	}
}

// Cell is a single spreadsheet value.
type Cell struct {
	// Kind is the type of the value.
	Kind Kind

	// Text is the raw textual form. For Number cells this is the exact
	// literal as stored in the file.
	Text string

	// Time is set for Date cells only.
	Time time.Time
}

// TextCell builds a cell from raw text. Whitespace-only text is Empty.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: Empty, Text: s}
	}
	return Cell{Kind: Text, Text: s}
}

// NumberCell builds a numeric cell from its literal.
func NumberCell(literal string) Cell {
	if strings.TrimSpace(literal) == "" {
		return Cell{Kind: Empty}
	}
	return Cell{Kind: Number, Text: literal}
}

// DateCell builds a native date cell.
func DateCell(t time.Time) Cell {
	return Cell{Kind: Date, Text: t.Format("2006-01-02"), Time: t}
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == Empty || (c.Kind != Date && strings.TrimSpace(c.Text) == "")
}

// String returns the cell's text. Date cells render as ISO dates.
func (c Cell) String() string {
	return c.Text
}

// Value returns the value in the form the field parsers accept: a time.Time
// for native dates, the raw text otherwise.
func (c Cell) Value() any {
	if c.Kind == Date {
		return c.Time
	}
	return c.Text
}

// =============================================================================
// ROWS
// =============================================================================

// Row is one line of a table.
type Row struct {
	// Number is the 1-based row number in the source sheet. It survives
	// cleaning so messages can point at the original line.
	Number int

	// Cells holds the row's values in column order.
	Cells []Cell

	header *Header
}

// Len returns the number of cells in the row.
func (r Row) Len() int {
	return len(r.Cells)
}

// At returns the cell at a zero-based column index. Out of range yields an
// Empty cell.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[i]
}

// Lookup returns the cell for a column reference. A reference made only of
// digits is a zero-based position; anything else is a header label.
func (r Row) Lookup(column string) (Cell, bool) {
	idx, ok := r.header.Resolve(column)
	if !ok {
		return Cell{}, false
	}
	return r.At(idx), true
}

// IsBlank reports whether every cell in the row is empty.
func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// =============================================================================
// HEADER
// =============================================================================

// Header maps column labels to positions.
type Header struct {
	labels []string
	index  map[string]int
}

// NewHeader builds a header from labels. Labels are matched after trimming
// surrounding whitespace; the first occurrence of a duplicate label wins.
func NewHeader(labels ...string) *Header {
	h := &Header{
		labels: make([]string, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		l = strings.TrimSpace(l)
		h.labels[i] = l
		if _, dup := h.index[l]; !dup && l != "" {
			h.index[l] = i
		}
	}
	return h
}

// Labels returns a copy of the header labels.
func (h *Header) Labels() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.labels))
	copy(out, h.labels)
	return out
}

// Resolve turns a column reference into a zero-based index. Positional
// references work without a header.
func (h *Header) Resolve(column string) (int, bool) {
	column = strings.TrimSpace(column)
	if IsPositional(column) {
		n, err := strconv.Atoi(column)
		return n, err == nil
	}
	if h == nil {
		return 0, false
	}
	i, ok := h.index[column]
	return i, ok
}

// IsPositional reports whether a column reference is a zero-based index.
func IsPositional(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// TABLE
// =============================================================================

// Table is an ordered set of rows read from one sheet.
type Table struct {
	// Source is the file the table was read from.
	Source string

	// Sheet is the worksheet name, empty for CSV input.
	Sheet string

	// Encoding is the character encoding the file was decoded with.
	Encoding string

	header *Header
	rows   []Row
}

// New builds a table from raw cell rows. Row numbers start at 1.
func New(source string, cells [][]Cell) *Table {
	t := &Table{Source: source, Encoding: "utf-8"}
	t.rows = make([]Row, len(cells))
	for i, c := range cells {
		t.rows[i] = Row{Number: i + 1, Cells: c}
	}
	return t
}

// FromStrings builds a text table, mostly useful for fixtures.
func FromStrings(source string, records [][]string) *Table {
	cells := make([][]Cell, len(records))
	for i, rec := range records {
		row := make([]Cell, len(rec))
		for j, v := range rec {
			row[j] = TextCell(v)
		}
		cells[i] = row
	}
	return New(source, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns the rows bound to the table's header. The slice is a copy.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		r.header = t.header
		out[i] = r
	}
	return out
}

// Row returns the i-th row (zero-based).
func (t *Table) Row(i int) (Row, bool) {
	if t == nil || i < 0 || i >= len(t.rows) {
		return Row{}, false
	}
	r := t.rows[i]
	r.header = t.header
	return r, true
}

// Header returns the table header, nil when columns are positional only.
func (t *Table) Header() *Header {
	return t.header
}

// Width returns the widest row length.
func (t *Table) Width() int {
	w := 0
	for _, r := range t.rows {
		if len(r.Cells) > w {
			w = len(r.Cells)
		}
	}
	if t.header != nil && len(t.header.labels) > w {
		w = len(t.header.labels)
	}
	return w
}

// HasColumn reports whether a column reference resolves in this table.
func (t *Table) HasColumn(column string) bool {
	idx, ok := t.header.Resolve(column)
	if !ok {
		return false
	}
	return idx < t.Width()
}

// WithRows returns a copy of the table holding the given rows.
func (t *Table) WithRows(rows []Row) *Table {
	out := &Table{
		Source:   t.Source,
		Sheet:    t.Sheet,
		Encoding: t.Encoding,
		header:   t.header,
		rows:     make([]Row, len(rows)),
	}
	for i, r := range rows {
		r.header = nil
		out.rows[i] = r
	}
	return out
}

// WithHeader promotes the row at index i to the header. Rows above it are
// preamble and are dropped; the header row itself is removed from the data.
// An out of range index returns the table unchanged.
func (t *Table) WithHeader(i int) *Table {
	if i < 0 || i >= len(t.rows) {
		return t
	}
	src := t.rows[i]
	labels := make([]string, len(src.Cells))
	for j, c := range src.Cells {
		labels[j] = c.String()
	}
	out := t.WithRows(t.rows[i+1:])
	out.header = NewHeader(labels...)
	return out
}

// Preamble returns the text of every non-empty cell in the first n rows,
// one string per row. Adapters use it to pick up account details printed
// above the data.
func (t *Table) Preamble(n int) []string {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	lines := make([]string, 0, n)
	for _, r := range t.rows[:n] {
		var parts []string
		for _, c := range r.Cells {
			if !c.IsEmpty() {
				parts = append(parts, strings.TrimSpace(c.String()))
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return lines
}
