package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestParseDelimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		input     string
	}{
		{"default comma", "", "a,b\n1,2\n"},
		{"semicolon", ";", "a;b\n1;2\n"},
		{"semicolon alias", "semicolon", "a;b\n1;2\n"},
		{"tab", "tab", "a\tb\n1\t2\n"},
		{"escaped tab", "\\t", "a\tb\n1\t2\n"},
		{"pipe", "|", "a|b\n1|2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse(strings.NewReader(tt.input), "in.csv", Settings{Delimiter: tt.delimiter})
			require.NoError(t, err)
			require.Equal(t, 2, tbl.Len())
			r, _ := tbl.Row(1)
			assert.Equal(t, "1", r.At(0).String())
			assert.Equal(t, "2", r.At(1).String())
		})
	}
}

func TestParseRaggedAndQuoted(t *testing.T) {
	input := "Statement for account 123\n" +
		"Date,Details,Amount\n" +
		"01/03/2024,\"Coffee, \"\"best\"\" shop\",-12.50\n" +
		",,\n"
	tbl, err := Parse(strings.NewReader(input), "in.csv", Settings{})
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Len())

	r, _ := tbl.Row(0)
	assert.Equal(t, 1, r.Len())

	r, _ = tbl.Row(2)
	assert.Equal(t, 3, r.Number)
	assert.Equal(t, `Coffee, "best" shop`, r.At(1).String())

	r, _ = tbl.Row(3)
	assert.True(t, r.IsBlank())
}

func TestParseStripsBOM(t *testing.T) {
	tbl, err := Parse(strings.NewReader("\ufeffDate,Amount\n"), "in.csv", Settings{})
	require.NoError(t, err)
	r, _ := tbl.Row(0)
	assert.Equal(t, "Date", r.At(0).String())
	assert.Equal(t, "utf-8", tbl.Encoding)
}

func TestReadWindows1255(t *testing.T) {
	encoded, err := charmap.Windows1255.NewEncoder().String("תאריך,סכום\n01/03/2024,100\n")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ibi.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))

	for _, enc := range []string{"windows-1255", "cp1255", "auto"} {
		t.Run(enc, func(t *testing.T) {
			tbl, err := Read(path, Settings{Encoding: enc})
			require.NoError(t, err)
			assert.Equal(t, "windows-1255", tbl.Encoding)
			assert.Equal(t, path, tbl.Source)
			r, _ := tbl.Row(0)
			assert.Equal(t, "תאריך", r.At(0).String())
		})
	}
}

func TestUnknownEncoding(t *testing.T) {
	_, err := Parse(strings.NewReader("a"), "in.csv", Settings{Encoding: "klingon"})
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestDetectEncoding(t *testing.T) {
	assert.Equal(t, "utf-8", DetectEncoding([]byte("שלום")))
	assert.Equal(t, "windows-1255", DetectEncoding([]byte{0xf9, 0xec, 0xe5, 0xed}))
}
