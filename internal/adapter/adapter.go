// =============================================================================
// Statement Normalizer - Adapter Contract
// =============================================================================
//
// An adapter turns one institution's raw export table into a validated
// ledger. Every institution has a fixed contract: a column mapping from
// canonical fields to native columns, a date format and cleaning rules.
// There is no generic layout inference; an adapter only understands the
// layout it was configured for.
//
// CANONICAL FIELDS:
//   date, description, amount    - required in every mapping
//   balance, reference, category - optional
//   account                      - optional
//
// ERRORS:
//   *RowError        - one row could not be parsed; it is skipped with a
//                      warning and the import continues.
//   *StructuralError - the table or configuration does not fit the adapter;
//                      the import fails without a ledger.
//
// =============================================================================

package adapter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

// Canonical field names.
const (
	FieldDate        = "date"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldBalance     = "balance"
	FieldReference   = "reference"
	FieldCategory    = "category"
	FieldAccount     = "account"
)

// Adapter is the per-institution normalization contract.
type Adapter interface {
	// Name returns the institution name.
	Name() string

	// ColumnMapping returns the canonical field to native column mapping.
	ColumnMapping() ColumnMapping

	// ExtractField returns the cell for a canonical field, with the
	// institution's transformations applied. It fails with ErrMissingColumn
	// when the field is unmapped or its column is absent from the row.
	ExtractField(row table.Row, field string) (table.Cell, error)

	// ParseRow builds one transaction. Row-local problems are *RowError.
	ParseRow(row table.Row) (ledger.Transaction, error)

	// Transform runs the full pipeline over a raw table.
	Transform(t *table.Table) *ledger.Outcome
}

// Sniffer is implemented by adapters that can score how well a table fits
// their layout, from 0 (not at all) to 1.
type Sniffer interface {
	Sniff(t *table.Table) float64
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingColumn is returned when a mapped column cannot be found.
var ErrMissingColumn = errors.New("missing column")

// StructuralError reports a problem with the table as a whole or with the
// adapter's configuration. It aborts the import.
type StructuralError struct {
	Bank   string
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	msg := e.Reason
	if e.Bank != "" {
		msg = e.Bank + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StructuralError) Unwrap() error { return e.Err }

// RowError reports a single row that could not be parsed.
type RowError struct {
	// Row is the 1-based row number in the source sheet.
	Row   int
	Field string
	Value string
	Err   error
}

func (e *RowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "row %d", e.Row)
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %s", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " (value %q)", e.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RowError) Unwrap() error { return e.Err }

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// ColumnMapping maps canonical fields to native columns. It is read-only
// once built.
type ColumnMapping struct {
	cols map[string]string
}

// NewColumnMapping copies m and checks the required fields are present.
func NewColumnMapping(m map[string]string) (ColumnMapping, error) {
	cols := make(map[string]string, len(m))
	for k, v := range m {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		cols[k] = v
	}
	for _, f := range config.RequiredFields {
		if _, ok := cols[f]; !ok {
			return ColumnMapping{}, fmt.Errorf("%w: %s", config.ErrMissingMapping, f)
		}
	}
	return ColumnMapping{cols: cols}, nil
}

// Column returns the native column for a field.
func (m ColumnMapping) Column(field string) (string, bool) {
	c, ok := m.cols[field]
	return c, ok
}

// Fields returns the mapped canonical fields, sorted.
func (m ColumnMapping) Fields() []string {
	out := make([]string, 0, len(m.cols))
	for f := range m.cols {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Labels returns the mapped columns that are header labels rather than
// positions, sorted.
func (m ColumnMapping) Labels() []string {
	var out []string
	for _, c := range m.cols {
		if !table.IsPositional(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the mapping.
func (m ColumnMapping) Map() map[string]string {
	out := make(map[string]string, len(m.cols))
	for k, v := range m.cols {
		out[k] = v
	}
	return out
}
