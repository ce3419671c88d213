package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowLookup(t *testing.T) {
	tbl := FromStrings("x.csv", [][]string{
		{"תאריך", "תיאור", "סכום"},
		{"01/01/2024", "משכורת", "100.10"},
	}).WithHeader(0)

	require.Equal(t, 1, tbl.Len())
	row, ok := tbl.Row(0)
	require.True(t, ok)
	assert.Equal(t, 2, row.Number)

	c, ok := row.Lookup("סכום")
	require.True(t, ok)
	assert.Equal(t, "100.10", c.String())

	c, ok = row.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "משכורת", c.String())

	_, ok = row.Lookup("missing")
	assert.False(t, ok)
}

func TestPositionalWithoutHeader(t *testing.T) {
	tbl := FromStrings("x.csv", [][]string{{"a", "b", "c"}})
	assert.True(t, tbl.HasColumn("2"))
	assert.False(t, tbl.HasColumn("3"))
	assert.False(t, tbl.HasColumn("label"))

	row, _ := tbl.Row(0)
	c, ok := row.Lookup("5")
	assert.True(t, ok)
	assert.True(t, c.IsEmpty())
}

func TestCells(t *testing.T) {
	assert.Equal(t, Empty, TextCell("   ").Kind)
	assert.Equal(t, Text, TextCell(" x ").Kind)
	assert.Equal(t, Empty, NumberCell("").Kind)

	d := DateCell(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	assert.False(t, d.IsEmpty())
	assert.Equal(t, "2024-03-05", d.String())
	assert.IsType(t, time.Time{}, d.Value())
}

func TestWithRowsDoesNotMutate(t *testing.T) {
	tbl := FromStrings("x.csv", [][]string{{"a"}, {"b"}, {"c"}})
	rows := tbl.Rows()
	sub := tbl.WithRows(rows[1:])

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, 2, sub.Len())
	first, _ := sub.Row(0)
	assert.Equal(t, 2, first.Number)
}

func TestPreamble(t *testing.T) {
	tbl := FromStrings("x.csv", [][]string{
		{"", "מספר חשבון:", "123456"},
		{"", "", ""},
		{"סניף", "045"},
	})
	assert.Equal(t, []string{"מספר חשבון: 123456", "סניף 045"}, tbl.Preamble(10))
}
