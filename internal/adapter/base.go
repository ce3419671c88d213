package adapter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/cleaning"
	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/fields"
	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
	"github.com/ginjaninja78/statement-normalizer/internal/logging"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
	"github.com/ginjaninja78/statement-normalizer/internal/transform"
)

// sniffRows is how many data rows Sniff inspects.
const sniffRows = 30

// Base implements the configuration-driven parts of every adapter: field
// extraction, the common field parsing and the Transform pipeline. Concrete
// adapters embed it and override ParseRow where their layout needs more.
type Base struct {
	cfg     *config.Institution
	mapping ColumnMapping
	shape   *regexp.Regexp
	stage   *cleaning.Stage
	rules   fieldRules
	log     *zap.Logger
}

// fieldRules rewrites a field's text before it is parsed.
type fieldRules interface {
	Has(field string) bool
	Apply(field, value string, row map[string]string) (string, error)
}

// NewBase validates an institution config and builds the shared machinery.
// cfg must already have its variant defaults overlaid.
func NewBase(cfg *config.Institution, log *zap.Logger) (*Base, error) {
	cfg = cfg.Clone()
	cfg.ApplyDefaults()

	fail := func(reason string, err error) (*Base, error) {
		return nil, &StructuralError{Bank: cfg.Name, Reason: reason, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return fail("invalid configuration", err)
	}
	mapping, err := NewColumnMapping(cfg.ColumnMappings)
	if err != nil {
		return fail("invalid column mapping", err)
	}

	pattern := cfg.DatePattern
	if pattern == "" {
		pattern = fields.ShapePattern(cfg.DateFormat)
	}
	shape, err := regexp.Compile(pattern)
	if err != nil {
		return fail("invalid date pattern", err)
	}

	rules, err := transform.New(cfg.Transformations)
	if err != nil {
		return fail("invalid transformations", err)
	}

	anchor, _ := mapping.Column(cfg.AnchorField)
	stage := cleaning.New(cleaning.Options{
		SkipRows:       cfg.Skip(),
		AnchorColumn:   anchor,
		AnchorShape:    shape,
		FooterKeywords: cfg.FooterKeywords,
	})

	return &Base{
		cfg:     cfg,
		mapping: mapping,
		shape:   shape,
		stage:   stage,
		rules:   rules,
		log:     logging.OrNop(log).With(zap.String("bank", cfg.Name)),
	}, nil
}

// Name returns the institution name.
func (b *Base) Name() string { return b.cfg.Name }

// ColumnMapping returns the column mapping.
func (b *Base) ColumnMapping() ColumnMapping { return b.mapping }

// Config returns a copy of the effective institution configuration.
func (b *Base) Config() *config.Institution { return b.cfg.Clone() }

// ExtractField returns the cell for a canonical field with transformations
// applied. Transformed values come back as text cells.
func (b *Base) ExtractField(row table.Row, field string) (table.Cell, error) {
	col, ok := b.mapping.Column(field)
	if !ok {
		return table.Cell{}, fmt.Errorf("%w: %s is not mapped", ErrMissingColumn, field)
	}
	cell, ok := row.Lookup(col)
	if !ok {
		return table.Cell{}, fmt.Errorf("%w: %s (%s)", ErrMissingColumn, col, field)
	}
	if !b.rules.Has(field) {
		return cell, nil
	}
	v, err := b.rules.Apply(field, cell.String(), b.rawFields(row))
	if err != nil {
		return table.Cell{}, &RowError{Row: row.Number, Field: field, Value: cell.String(), Err: err}
	}
	return table.TextCell(v), nil
}

// rawFields returns the untransformed text of every mapped field.
func (b *Base) rawFields(row table.Row) map[string]string {
	out := make(map[string]string, len(b.mapping.cols))
	for f, col := range b.mapping.cols {
		if c, ok := row.Lookup(col); ok {
			out[f] = c.String()
		}
	}
	return out
}

// optionalText returns a mapped field's text, or "" when unmapped or empty.
func (b *Base) optionalText(row table.Row, field string) (string, error) {
	if _, ok := b.mapping.Column(field); !ok {
		return "", nil
	}
	c, err := b.ExtractField(row, field)
	if err != nil {
		if errors.Is(err, ErrMissingColumn) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(c.String()), nil
}

// ParseEntry parses the canonical fields of a row into an entry. Adapters
// adjust the entry before turning it into a transaction.
func (b *Base) ParseEntry(row table.Row) (ledger.Entry, error) {
	e := ledger.Entry{Bank: b.cfg.Name}

	// date
	c, err := b.ExtractField(row, FieldDate)
	if err != nil {
		return e, rowErr(row, FieldDate, c, err)
	}
	e.Date, err = fields.ParseDate(c.Value(), b.cfg.DateFormat)
	if err != nil {
		return e, rowErr(row, FieldDate, c, err)
	}

	// description
	c, err = b.ExtractField(row, FieldDescription)
	if err != nil {
		return e, rowErr(row, FieldDescription, c, err)
	}
	e.Description = fields.CleanDescription(c.String())

	// amount
	e.Amount, err = b.parseAmount(row)
	if err != nil {
		return e, err
	}

	// balance: an unreadable balance is treated as absent
	if text, err := b.optionalText(row, FieldBalance); err == nil && text != "" {
		if bal, err := fields.ParseAmount(text); err == nil {
			e.Balance = decimal.NewNullDecimal(bal)
		} else {
			b.log.Debug("ignoring unreadable balance", zap.Int("row", row.Number), zap.String("value", text))
		}
	}

	for _, f := range []struct {
		field string
		dst   *string
	}{
		{FieldReference, &e.Reference},
		{FieldCategory, &e.Category},
		{FieldAccount, &e.Account},
	} {
		text, err := b.optionalText(row, f.field)
		if err != nil {
			return e, err
		}
		*f.dst = text
	}
	return e, nil
}

// parseAmount reads the amount column, falling back to credit minus debit
// when the amount cell is empty and split columns are configured.
func (b *Base) parseAmount(row table.Row) (decimal.Decimal, error) {
	c, err := b.ExtractField(row, FieldAmount)
	if err != nil {
		return decimal.Decimal{}, rowErr(row, FieldAmount, c, err)
	}
	if !c.IsEmpty() || b.cfg.AmountColumns == nil {
		amount, err := fields.ParseAmount(c.String())
		if err != nil {
			return decimal.Decimal{}, rowErr(row, FieldAmount, c, err)
		}
		return amount, nil
	}

	side := func(col string) (decimal.Decimal, bool, error) {
		if col == "" {
			return decimal.Zero, false, nil
		}
		cell, ok := row.Lookup(col)
		if !ok || cell.IsEmpty() {
			return decimal.Zero, false, nil
		}
		d, err := fields.ParseAmount(cell.String())
		if err != nil {
			return decimal.Decimal{}, false, rowErr(row, FieldAmount, cell, err)
		}
		return d.Abs(), true, nil
	}
	debit, hasDebit, err := side(b.cfg.AmountColumns.Debit)
	if err != nil {
		return decimal.Decimal{}, err
	}
	credit, hasCredit, err := side(b.cfg.AmountColumns.Credit)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !hasDebit && !hasCredit {
		return decimal.Decimal{}, &RowError{Row: row.Number, Field: FieldAmount, Err: fields.ErrEmpty}
	}
	return credit.Sub(debit), nil
}

// ParseRow parses a row with the common field rules.
func (b *Base) ParseRow(row table.Row) (ledger.Transaction, error) {
	e, err := b.ParseEntry(row)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return newTransaction(row, e)
}

func newTransaction(row table.Row, e ledger.Entry) (ledger.Transaction, error) {
	tx, err := ledger.NewTransaction(e)
	if err != nil {
		return ledger.Transaction{}, &RowError{Row: row.Number, Err: err}
	}
	return tx, nil
}

func rowErr(row table.Row, field string, c table.Cell, err error) error {
	var re *RowError
	if errors.As(err, &re) {
		return err
	}
	return &RowError{Row: row.Number, Field: field, Value: c.String(), Err: err}
}

// Transform runs the pipeline with the common row rules.
func (b *Base) Transform(t *table.Table) *ledger.Outcome {
	return b.Run(b, t)
}

// =============================================================================
// PIPELINE
// =============================================================================

// prepare promotes the header row: the configured one, or for label
// mappings without one, the leading row that holds the most required
// labels.
func (b *Base) prepare(t *table.Table) *table.Table {
	if b.cfg.HeaderRow != nil {
		return t.WithHeader(*b.cfg.HeaderRow)
	}
	if i, ok := b.findHeader(t); ok {
		return t.WithHeader(i)
	}
	return t
}

func (b *Base) findHeader(t *table.Table) (int, bool) {
	var want []string
	for _, f := range config.RequiredFields {
		if col, _ := b.mapping.Column(f); !table.IsPositional(col) {
			want = append(want, col)
		}
	}
	if len(want) == 0 {
		return 0, false
	}
	best, bestHits := 0, 0
	for i := 0; i < headerScanRows; i++ {
		r, ok := t.Row(i)
		if !ok {
			break
		}
		labels := make([]string, len(r.Cells))
		for j, c := range r.Cells {
			labels[j] = c.String()
		}
		hdr := table.NewHeader(labels...)
		hits := 0
		for _, col := range want {
			if _, ok := hdr.Resolve(col); ok {
				hits++
			}
		}
		if hits == len(want) {
			return i, true
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}
	return best, bestHits > 0
}

// checkColumns verifies that every required field's column exists.
func (b *Base) checkColumns(t *table.Table) error {
	for _, f := range config.RequiredFields {
		col, _ := b.mapping.Column(f)
		if !t.HasColumn(col) {
			return &StructuralError{
				Bank:   b.cfg.Name,
				Reason: fmt.Sprintf("required column %q for %s not found", col, f),
				Err:    ErrMissingColumn,
			}
		}
	}
	return nil
}

// Run is the Transform pipeline. a supplies ParseRow so concrete adapters
// can specialise row parsing while sharing the rest:
//
//	raw table -> header -> column check -> cleaning -> ParseRow per row -> ledger
//
// Row errors become warnings; a structural error fails the outcome.
func (b *Base) Run(a Adapter, t *table.Table) *ledger.Outcome {
	start := time.Now()
	out := ledger.NewOutcome()
	defer out.Finish(start)

	source := ""
	if t != nil {
		source = t.Source
	}
	log := b.log.With(zap.String("source", source))

	meta := ledger.Metadata{
		SourceFile: source,
		Bank:       b.cfg.Name,
		Currency:   b.cfg.Currency,
		Encoding:   b.cfg.Encoding,
	}
	if t != nil && t.Encoding != "" {
		meta.Encoding = t.Encoding
	}

	if t.Len() == 0 {
		l, err := ledger.New(nil, meta)
		if err != nil {
			out.AddError(err.Error())
			return out
		}
		out.Succeed(l)
		return out
	}

	if ax, ok := a.(accountExtractor); ok {
		meta.Account = ax.AccountInfo(t).String()
	}

	prepared := b.prepare(t)
	if err := b.checkColumns(prepared); err != nil {
		log.Warn("structural check failed", zap.Error(err))
		out.AddError(err.Error())
		return out
	}

	cleaned := b.stage.Apply(prepared)
	log.Debug("cleaned table", zap.Int("raw_rows", t.Len()), zap.Int("data_rows", cleaned.Len()))

	txs := make([]ledger.Transaction, 0, cleaned.Len())
	skipped := 0
	for _, row := range cleaned.Rows() {
		tx, err := a.ParseRow(row)
		if err != nil {
			var se *StructuralError
			if errors.As(err, &se) {
				out.AddError(err.Error())
				return out
			}
			skipped++
			out.AddWarning(err.Error())
			log.Debug("skipped row", zap.Int("row", row.Number), zap.Error(err))
			continue
		}
		if meta.Account != "" && tx.Account() == "" {
			e := tx.Entry()
			e.Account = meta.Account
			tx, _ = ledger.NewTransaction(e)
		}
		txs = append(txs, tx)
	}

	if cleaned.Len() == 0 {
		out.Warnf("no transaction rows found among %d rows", t.Len())
	}

	l, err := ledger.New(txs, meta)
	if err != nil {
		out.AddError(err.Error())
		return out
	}
	out.Succeed(l)
	log.Info("transformed table",
		zap.Int("transactions", l.Len()),
		zap.Int("skipped", skipped),
		zap.String("date_range", l.DateRange().String()),
	)
	return out
}

// Sniff scores how well the table fits this configuration: the required
// columns must resolve and the anchor column must hold date-shaped values.
func (b *Base) Sniff(t *table.Table) float64 {
	if t.Len() == 0 {
		return 0
	}
	prepared := b.prepare(t)
	if b.checkColumns(prepared) != nil {
		return 0
	}
	anchor, _ := b.mapping.Column(b.cfg.AnchorField)
	rows := cleaning.SkipRows(b.cfg.Skip())(prepared).Rows()
	if len(rows) > sniffRows {
		rows = rows[:sniffRows]
	}
	hits := 0
	for _, r := range rows {
		if c, ok := r.Lookup(anchor); ok && anchorIsDate(c, b.shape) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	if hits > 3 {
		hits = 3
	}
	return 0.5 + 0.5*float64(hits)/3
}

func anchorIsDate(c table.Cell, shape *regexp.Regexp) bool {
	if c.Kind == table.Date {
		return true
	}
	return !c.IsEmpty() && shape.MatchString(strings.TrimSpace(c.String()))
}

// =============================================================================
// ACCOUNT DETAILS
// =============================================================================

// AccountInfo holds account details printed above the data.
type AccountInfo struct {
	Number string
	Branch string
}

// String renders "branch-number", or whichever part is known.
func (a AccountInfo) String() string {
	switch {
	case a.Number != "" && a.Branch != "":
		return a.Branch + "-" + a.Number
	default:
		return a.Number + a.Branch
	}
}

type accountExtractor interface {
	AccountInfo(t *table.Table) AccountInfo
}
