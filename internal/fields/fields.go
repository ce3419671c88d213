// Package fields converts free-form spreadsheet cells into typed values.
//
// Every function here is pure. Amounts are exact decimals and never pass
// through float64; dates are calendar dates without a time zone.
package fields

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmpty is returned when a value is blank.
	ErrEmpty = errors.New("empty value")

	// ErrInvalidNumeric is returned when an amount cannot be read.
	ErrInvalidNumeric = errors.New("invalid numeric value")

	// ErrInvalidDate is returned when a date cannot be read.
	ErrInvalidDate = errors.New("invalid date value")
)

// DefaultDateFormat is the day-first format used by Israeli bank exports.
const DefaultDateFormat = "DD/MM/YYYY"

// =============================================================================
// AMOUNTS
// =============================================================================

// amountNoise is removed from amount text before parsing: thousands
// separators, currency symbols and the space characters spreadsheets emit.
var amountNoise = strings.NewReplacer(
	",", "",
	" ", "",
	"\u00a0", "", // no-break space
	"\u2009", "", // thin space
	"\u202f", "", // narrow no-break space
	"\u200e", "", // left-to-right mark
	"\u200f", "", // right-to-left mark
	"₪", "",
	"$", "",
	"€", "",
	"£", "",
)

var numericLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseAmount reads a monetary amount.
//
// Accepted forms include "1,234.56", "₪ 99.90", "-12", "12-" and the
// accounting form "(12.50)", which is negative.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, ErrEmpty
	}

	s = amountNoise.Replace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") && len(s) > 1 && !strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[:len(s)-1]
	}

	if !numericLiteral.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidNumeric, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidNumeric, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// =============================================================================
// DATES
// =============================================================================

// fallbackLayouts are tried after the configured format. Month-first
// layouts are never tried.
var fallbackLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/1/2",
	"2.1.2006",
	"2-1-2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate reads a calendar date. Native time.Time and civil.Date values
// are accepted as they are; text is tried against format first and then
// against a fixed list of unambiguous layouts.
func ParseDate(v any, format string) (civil.Date, error) {
	switch val := v.(type) {
	case civil.Date:
		if !val.IsValid() {
			return civil.Date{}, ErrInvalidDate
		}
		return val, nil
	case time.Time:
		if val.IsZero() {
			return civil.Date{}, ErrInvalidDate
		}
		return civil.DateOf(val), nil
	case string:
		return parseDateString(val, format)
	case fmt.Stringer:
		return parseDateString(val.String(), format)
	default:
		return civil.Date{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, v)
	}
}

func parseDateString(raw, format string) (civil.Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return civil.Date{}, ErrEmpty
	}

	if format != "" {
		if t, err := time.Parse(Layout(format), s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("%w: %q does not match %s", ErrInvalidDate, raw, format)
}

// Layout converts a configured date format into a Go time layout.
//
// Three notations are understood:
//   - token style:    DD/MM/YYYY, D.M.YY, YYYY-MM-DD, DD-MMM-YYYY
//   - strftime style: %d/%m/%Y, %d-%b-%Y
//   - Go layouts:     anything containing 2006 or Jan is used as is
//
// Day and month tokens accept one or two digits when parsing.
func Layout(format string) string {
	if strings.Contains(format, "%") {
		return strftime.Replace(format)
	}
	if strings.Contains(format, "2006") || strings.Contains(format, "Jan") {
		return format
	}
	return tokens.Replace(strings.ToUpper(format))
}

var strftime = strings.NewReplacer(
	"%d", "2",
	"%m", "1",
	"%Y", "2006",
	"%y", "06",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%b", "Jan",
	"%B", "January",
)

var tokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"DD", "2",
	"MM", "1",
	"D", "2",
	"M", "1",
)

// ShapePattern derives the regular expression that recognises a date token
// written in format. It is used to tell transaction rows apart from headers
// and summaries: "DD/MM/YYYY" becomes `^\d{1,2}/\d{1,2}/\d{4}`.
//
// The shape is read off the Go layout, so every notation Layout accepts
// yields a pattern that matches the dates it parses.
func ShapePattern(format string) string {
	if format == "" {
		format = DefaultDateFormat
	}
	layout := Layout(format)

	var b strings.Builder
	b.WriteString("^")
next:
	for i := 0; i < len(layout); {
		for _, el := range layoutElements {
			if strings.HasPrefix(layout[i:], el.token) {
				b.WriteString(el.shape)
				i += len(el.token)
				continue next
			}
		}
		b.WriteString(regexp.QuoteMeta(layout[i : i+1]))
		i++
	}
	return b.String()
}

// layoutElements maps Go layout elements to the text they match, longest
// element first so that 2006 wins over 2 and January over Jan.
var layoutElements = []struct {
	token, shape string
}{
	{"January", `\pL+`},
	{"Monday", `\pL+`},
	{"2006", `\d{4}`},
	{"Jan", `\pL{3}`},
	{"Mon", `\pL{3}`},
	{"002", `\d{3}`},
	{"_2", ` ?\d{1,2}`},
	{"01", `\d{1,2}`},
	{"02", `\d{1,2}`},
	{"03", `\d{1,2}`},
	{"04", `\d{2}`},
	{"05", `\d{2}`},
	{"06", `\d{2}`},
	{"15", `\d{1,2}`},
	{"PM", `[AaPp][Mm]`},
	{"pm", `[AaPp][Mm]`},
	{"1", `\d{1,2}`},
	{"2", `\d{1,2}`},
	{"3", `\d{1,2}`},
	{"4", `\d{1,2}`},
	{"5", `\d{1,2}`},
}

// =============================================================================
// TEXT
// =============================================================================

// CleanDescription trims the text and collapses internal whitespace. Non
// ASCII text (Hebrew in particular) is kept exactly as written.
func CleanDescription(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
