// =============================================================================
// Statement Normalizer - Cleaning Stage
// =============================================================================
//
// Bank exports wrap the actual transactions in banners, headers, blank
// spacer rows, subtotals and footers. The cleaning stage isolates the real
// transaction rows so the adapters only ever see data.
//
// STEPS (always in this order):
//   1. SkipRows         - drop the first N rows (fixed preamble)
//   2. DropBlankRows    - drop rows where every cell is empty
//      DropFooterRows   - optional: drop trailing summary rows by keyword
//   3. RequireAnchor    - drop rows whose anchor cell is empty
//   4. MatchAnchorShape - drop rows whose anchor does not look like a date
//
// Each step is a pure function over a table and returns a new table; the
// input is never modified. Row numbers from the source sheet are kept on
// every surviving row.
//
// =============================================================================

package cleaning

import (
	"regexp"
	"strings"

	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

// Step is one cleaning operation.
type Step func(t *table.Table) *table.Table

// filter keeps the rows for which keep returns true.
func filter(t *table.Table, keep func(table.Row) bool) *table.Table {
	rows := t.Rows()
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return t.WithRows(out)
}

// SkipRows drops the first n rows. n <= 0 is a no-op.
func SkipRows(n int) Step {
	return func(t *table.Table) *table.Table {
		rows := t.Rows()
		if n <= 0 {
			return t.WithRows(rows)
		}
		if n > len(rows) {
			n = len(rows)
		}
		return t.WithRows(rows[n:])
	}
}

// DropBlankRows drops rows in which every cell is empty.
func DropBlankRows() Step {
	return func(t *table.Table) *table.Table {
		return filter(t, func(r table.Row) bool { return !r.IsBlank() })
	}
}

// RequireAnchor drops rows whose anchor cell is missing or empty.
func RequireAnchor(column string) Step {
	return func(t *table.Table) *table.Table {
		return filter(t, func(r table.Row) bool {
			c, ok := r.Lookup(column)
			return ok && !c.IsEmpty()
		})
	}
}

// MatchAnchorShape keeps rows whose anchor is a native date, or whose text
// matches the shape pattern.
func MatchAnchorShape(column string, shape *regexp.Regexp) Step {
	return func(t *table.Table) *table.Table {
		return filter(t, func(r table.Row) bool {
			c, ok := r.Lookup(column)
			return ok && anchorLooksValid(c, shape)
		})
	}
}

// DropFooterRows walks up from the last row and drops rows that contain one
// of the keywords in any cell, stopping at the first row whose anchor looks
// like a transaction date. Keyword rows in the middle of the data are left
// for the anchor steps to handle.
func DropFooterRows(keywords []string, column string, shape *regexp.Regexp) Step {
	return func(t *table.Table) *table.Table {
		rows := t.Rows()
		if len(keywords) == 0 {
			return t.WithRows(rows)
		}
		end := len(rows)
		for end > 0 {
			r := rows[end-1]
			if c, ok := r.Lookup(column); ok && anchorLooksValid(c, shape) {
				break
			}
			if !containsKeyword(r, keywords) {
				break
			}
			end--
		}
		return t.WithRows(rows[:end])
	}
}

func anchorLooksValid(c table.Cell, shape *regexp.Regexp) bool {
	if c.Kind == table.Date {
		return true
	}
	if c.IsEmpty() {
		return false
	}
	if shape == nil {
		return true
	}
	return shape.MatchString(strings.TrimSpace(c.String()))
}

func containsKeyword(r table.Row, keywords []string) bool {
	for _, c := range r.Cells {
		text := c.String()
		for _, k := range keywords {
			if k != "" && strings.Contains(text, k) {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// STAGE
// =============================================================================

// Options configures a Stage.
type Options struct {
	// SkipRows is the number of leading rows to drop.
	SkipRows int

	// AnchorColumn is the column reference (label or position) whose value
	// marks a real transaction row, usually the date column.
	AnchorColumn string

	// AnchorShape is matched against the anchor's text. Nil accepts any
	// non-empty anchor.
	AnchorShape *regexp.Regexp

	// FooterKeywords enables DropFooterRows when non-empty.
	FooterKeywords []string
}

// Stage is the ordered cleaning pipeline.
type Stage struct {
	steps []Step
}

// New builds the stage for the given options.
func New(opts Options) *Stage {
	steps := []Step{
		SkipRows(opts.SkipRows),
		DropBlankRows(),
	}
	if len(opts.FooterKeywords) > 0 {
		steps = append(steps, DropFooterRows(opts.FooterKeywords, opts.AnchorColumn, opts.AnchorShape))
	}
	steps = append(steps,
		RequireAnchor(opts.AnchorColumn),
		MatchAnchorShape(opts.AnchorColumn, opts.AnchorShape),
	)
	return &Stage{steps: steps}
}

// Apply runs every step in order and returns the cleaned table.
func (s *Stage) Apply(t *table.Table) *table.Table {
	out := t
	for _, step := range s.steps {
		out = step(out)
	}
	return out
}
