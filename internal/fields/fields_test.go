package fields

import (
	"regexp"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"100.10", "100.1"},
		{"1,234.56", "1234.56"},
		{"₪ 99.90", "99.9"},
		{"$1,000", "1000"},
		{"€ 5", "5"},
		{"(12.50)", "-12.5"},
		{"-50.05", "-50.05"},
		{"+7", "7"},
		{"12-", "-12"},
		{" 1 000.01 ", "1000.01"},
		{"0.1", "0.1"},
		{"1e3", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, raw := range []string{"abc", "12abc", "1.2.3", "-", "()", "N/A"} {
		_, err := ParseAmount(raw)
		assert.ErrorIs(t, err, ErrInvalidNumeric, raw)
	}

	_, err := ParseAmount("   ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseAmountRoundTrip(t *testing.T) {
	for _, raw := range []string{"0.1", "100.10", "-50.05", "123456789.123456789", "0.0001"} {
		d, err := ParseAmount(raw)
		require.NoError(t, err)
		again, err := ParseAmount(d.String())
		require.NoError(t, err)
		assert.True(t, d.Equal(again), raw)
	}
}

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2024, Month: time.March, Day: 5}

	tests := []struct {
		name   string
		value  any
		format string
	}{
		{"token format", "05/03/2024", "DD/MM/YYYY"},
		{"single digits", "5/3/2024", "DD/MM/YYYY"},
		{"strftime", "05/03/2024", "%d/%m/%Y"},
		{"go layout", "2024.03.05", "2006.01.02"},
		{"iso fallback", "2024-03-05", "DD/MM/YYYY"},
		{"dotted fallback", "5.3.2024", ""},
		{"native time", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "DD/MM/YYYY"},
		{"native civil", want, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.value, tt.format)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseDateRejects(t *testing.T) {
	_, err := ParseDate("31/02/2024", "DD/MM/YYYY")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("not a date", "DD/MM/YYYY")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate(42, "DD/MM/YYYY")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("", "DD/MM/YYYY")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseDateNeverGuessesMonthFirst(t *testing.T) {
	// 13/01 is only valid day-first; 01/13 must fail rather than be swapped.
	got, err := ParseDate("13/01/2024", "DD/MM/YYYY")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 13}, got)

	_, err = ParseDate("01/13/2024", "DD/MM/YYYY")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestLayout(t *testing.T) {
	assert.Equal(t, "2/1/2006", Layout("DD/MM/YYYY"))
	assert.Equal(t, "2006-1-2", Layout("YYYY-MM-DD"))
	assert.Equal(t, "2.1.06", Layout("DD.MM.YY"))
	assert.Equal(t, "2/1/2006", Layout("%d/%m/%Y"))
	assert.Equal(t, "02-01-2006", Layout("02-01-2006"))
}

func TestShapePattern(t *testing.T) {
	assert.Equal(t, `^\d{1,2}/\d{1,2}/\d{4}`, ShapePattern("DD/MM/YYYY"))
	assert.Equal(t, `^\d{1,2}/\d{1,2}/\d{4}`, ShapePattern(""))
	assert.Equal(t, `^\d{4}-\d{1,2}-\d{1,2}`, ShapePattern("YYYY-MM-DD"))

	re := regexp.MustCompile(ShapePattern("DD.MM.YY"))
	assert.True(t, re.MatchString("05.03.24"))
	assert.False(t, re.MatchString("05-03-24"))
}

func TestShapePatternMatchesEveryNotation(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		pattern string
		date    string
		other   string
	}{
		{"token", "DD/MM/YYYY", `^\d{1,2}/\d{1,2}/\d{4}`, "05/03/2024", "Date"},
		{"token month name", "DD-MMM-YYYY", `^\d{1,2}-\pL{3}-\d{4}`, "05-Mar-2024", "05-03-2024"},
		{"strftime", "%d/%m/%Y", `^\d{1,2}/\d{1,2}/\d{4}`, "5/3/2024", "2024/03/05"},
		{"strftime month name", "%d-%b-%Y", `^\d{1,2}-\pL{3}-\d{4}`, "05-Mar-2024", "05-%b-2024"},
		{"go iso", "2006-01-02", `^\d{4}-\d{1,2}-\d{1,2}`, "2024-03-05", "2024/03/05"},
		{"go dotted", "02.01.2006", `^\d{1,2}\.\d{1,2}\.\d{4}`, "05.03.2024", "05/03/2024"},
		{"go month name", "2 Jan 2006", `^\d{1,2} \pL{3} \d{4}`, "5 Mar 2024", "Total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern := ShapePattern(tt.format)
			assert.Equal(t, tt.pattern, pattern)

			re := regexp.MustCompile(pattern)
			assert.True(t, re.MatchString(tt.date), "%q should look like a date", tt.date)
			assert.False(t, re.MatchString(tt.other), "%q should not look like a date", tt.other)

			_, err := ParseDate(tt.date, tt.format)
			assert.NoError(t, err)
		})
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "hello world", CleanDescription("  hello \t world \n"))
	assert.Equal(t, "העברה מחשבון 123", CleanDescription(" העברה   מחשבון 123 "))
	assert.Equal(t, "", CleanDescription("   "))
}
