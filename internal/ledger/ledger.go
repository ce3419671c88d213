// =============================================================================
// Statement Normalizer - Ledger Aggregate
// =============================================================================
//
// A Ledger is the ordered list of transactions produced by one import, plus
// metadata describing where they came from. Once built it is never mutated:
// filters return new slices and aggregates are recomputed from the
// transactions on every call.
//
// =============================================================================

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidDateRange is returned when a range starts after it ends.
var ErrInvalidDateRange = errors.New("date range start is after end")

// =============================================================================
// DATE RANGE
// =============================================================================

// DateRange is an inclusive span of calendar dates. The zero value is an
// unset range.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// IsSet reports whether both ends of the range are present.
func (r DateRange) IsSet() bool {
	return r.Start.IsValid() && r.End.IsValid()
}

// Contains reports whether d falls inside the range, ends included.
func (r DateRange) Contains(d civil.Date) bool {
	return r.IsSet() && !d.Before(r.Start) && !d.After(r.End)
}

// Validate checks start <= end when both are set.
func (r DateRange) Validate() error {
	if r.IsSet() && r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, r.Start, r.End)
	}
	return nil
}

// String renders the range as "start..end", or "-" when unset.
func (r DateRange) String() string {
	if !r.IsSet() {
		return "-"
	}
	return r.Start.String() + ".." + r.End.String()
}

// MarshalJSON writes {"start": ..., "end": ...} with nulls for an unset range.
func (r DateRange) MarshalJSON() ([]byte, error) {
	out := struct {
		Start *civil.Date `json:"start"`
		End   *civil.Date `json:"end"`
	}{}
	if r.IsSet() {
		out.Start, out.End = &r.Start, &r.End
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var in struct {
		Start *civil.Date `json:"start"`
		End   *civil.Date `json:"end"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = DateRange{}
	if in.Start != nil && in.End != nil {
		r.Start, r.End = *in.Start, *in.End
	}
	return r.Validate()
}

// =============================================================================
// METADATA
// =============================================================================

// Metadata describes one import.
type Metadata struct {
	SourceFile        string    `json:"source_file"`
	ImportID          string    `json:"import_id"`
	ImportedAt        time.Time `json:"imported_at"`
	TotalTransactions int       `json:"total_transactions"`
	DateRange         DateRange `json:"date_range"`
	Bank              string    `json:"bank"`
	Account           string    `json:"account,omitempty"`
	Encoding          string    `json:"encoding,omitempty"`
	Currency          string    `json:"currency,omitempty"`
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is an ordered, immutable set of transactions.
type Ledger struct {
	txs  []Transaction
	meta Metadata
}

// New builds a ledger. The transactions are copied. TotalTransactions and
// DateRange are derived from the transactions; an empty ImportID or
// ImportedAt is filled in.
func New(txs []Transaction, meta Metadata) (*Ledger, error) {
	l := &Ledger{txs: make([]Transaction, len(txs))}
	copy(l.txs, txs)

	meta.TotalTransactions = len(l.txs)
	meta.DateRange = l.DateRange()
	if meta.ImportID == "" {
		meta.ImportID = uuid.NewString()
	}
	if meta.ImportedAt.IsZero() {
		meta.ImportedAt = time.Now().UTC()
	}
	if err := meta.DateRange.Validate(); err != nil {
		return nil, err
	}
	l.meta = meta
	return l, nil
}

// Metadata returns the import metadata.
func (l *Ledger) Metadata() Metadata {
	return l.meta
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	return len(l.txs)
}

// Transactions returns a copy of the transactions in import order.
func (l *Ledger) Transactions() []Transaction {
	out := make([]Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}

// DateRange returns the earliest and latest transaction dates. An empty
// ledger has an unset range.
func (l *Ledger) DateRange() DateRange {
	var r DateRange
	for i, t := range l.txs {
		d := t.Date()
		if i == 0 || d.Before(r.Start) {
			r.Start = d
		}
		if i == 0 || d.After(r.End) {
			r.End = d
		}
	}
	return r
}

// TotalAmount returns the exact sum of all amounts.
func (l *Ledger) TotalAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range l.txs {
		sum = sum.Add(t.Amount())
	}
	return sum
}

// Credits returns the sum of positive amounts.
func (l *Ledger) Credits() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range l.txs {
		if t.Amount().IsPositive() {
			sum = sum.Add(t.Amount())
		}
	}
	return sum
}

// Debits returns the sum of negative amounts (a negative number).
func (l *Ledger) Debits() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range l.txs {
		if t.Amount().IsNegative() {
			sum = sum.Add(t.Amount())
		}
	}
	return sum
}

// CategoryTotal is the exact sum of one category.
type CategoryTotal struct {
	Category string
	Count    int
	Total    decimal.Decimal
}

// Categories sums amounts per category, sorted by category name.
// Uncategorized transactions are grouped under "".
func (l *Ledger) Categories() []CategoryTotal {
	byName := make(map[string]*CategoryTotal)
	for _, t := range l.txs {
		ct, ok := byName[t.Category()]
		if !ok {
			ct = &CategoryTotal{Category: t.Category(), Total: decimal.Zero}
			byName[t.Category()] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(t.Amount())
	}
	out := make([]CategoryTotal, 0, len(byName))
	for _, ct := range byName {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// FilterByCategory returns the transactions whose category is exactly
// category, in import order. "" selects the uncategorized ones.
func (l *Ledger) FilterByCategory(category string) []Transaction {
	var out []Transaction
	for _, t := range l.txs {
		if t.Category() == category {
			out = append(out, t)
		}
	}
	return out
}

// FilterByDateRange returns the transactions dated within [start, end],
// in import order.
func (l *Ledger) FilterByDateRange(start, end civil.Date) []Transaction {
	var out []Transaction
	for _, t := range l.txs {
		d := t.Date()
		if !d.Before(start) && !d.After(end) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByAmountRange returns the transactions whose amount lies within the
// given bounds, ends included. An invalid (null) bound is open.
func (l *Ledger) FilterByAmountRange(min, max decimal.NullDecimal) []Transaction {
	var out []Transaction
	for _, t := range l.txs {
		a := t.Amount()
		if min.Valid && a.LessThan(min.Decimal) {
			continue
		}
		if max.Valid && a.GreaterThan(max.Decimal) {
			continue
		}
		out = append(out, t)
	}
	return out
}
