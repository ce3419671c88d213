// =============================================================================
// Statement Normalizer - CSV Reader
// =============================================================================
//
// This module reads delimited text exports into a raw table. Every field
// becomes a Text cell; interpreting dates and amounts is left to the
// adapters, the same as for XLSX input.
//
// ENCODINGS:
//   Any WHATWG encoding label is accepted ("utf-8", "windows-1255",
//   "iso-8859-8", ...). "auto" keeps UTF-8 when the bytes are valid UTF-8
//   and falls back to windows-1255, the usual encoding of Israeli bank
//   exports. A leading UTF-8 byte order mark is always removed.
//
// CUSTOMIZATION:
//   - Add delimiter aliases in delimiterRune
//   - Change AutoFallbackEncoding for exports from other regions
//
// =============================================================================

package csvparser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

// AutoFallbackEncoding is used by "auto" when the input is not valid UTF-8.
const AutoFallbackEncoding = "windows-1255"

// ErrUnknownEncoding is returned for an encoding label that is not recognised.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Settings controls how a CSV file is read.
type Settings struct {
	// Delimiter is the field separator. Accepts a single character or one of
	// the aliases "tab", "pipe", "semicolon". Default: ",".
	Delimiter string

	// Encoding is a WHATWG encoding label or "auto". Default: "utf-8".
	Encoding string
}

// =============================================================================
// READING
// =============================================================================

// Read reads a CSV file into a table.
func Read(path string, settings Settings) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return Parse(bytes.NewReader(data), path, settings)
}

// Parse reads CSV data from r. source names the resulting table.
func Parse(r io.Reader, source string, settings Settings) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	name := settings.Encoding
	if strings.EqualFold(strings.TrimSpace(name), "auto") {
		name = DetectEncoding(data)
	}
	dec, canonical, err := decoder(name)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(transform.NewReader(bytes.NewReader(data), dec))
	configureReader(reader, settings)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	cells := make([][]table.Cell, len(records))
	for i, rec := range records {
		row := make([]table.Cell, len(rec))
		for j, v := range rec {
			row[j] = table.TextCell(strings.TrimSpace(v))
		}
		cells[i] = row
	}

	t := table.New(source, cells)
	t.Encoding = canonical
	return t, nil
}

// DetectEncoding returns "utf-8" for valid UTF-8 input and
// AutoFallbackEncoding otherwise.
func DetectEncoding(data []byte) string {
	if utf8.Valid(data) {
		return "utf-8"
	}
	return AutoFallbackEncoding
}

// decoder returns a BOM-stripping decoder for an encoding label along with
// the label's canonical name.
func decoder(label string) (transform.Transformer, string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(label)
	}
	return unicode.BOMOverride(enc.NewDecoder()), name, nil
}

// configureReader applies the delimiter and the lenient parsing options.
func configureReader(reader *csv.Reader, settings Settings) {
	reader.Comma = delimiterRune(settings.Delimiter)

	// Exports are often ragged: preamble lines have one field, data rows many.
	reader.FieldsPerRecord = -1

	// Bank exports are not strict about quoting inside descriptions.
	reader.LazyQuotes = true

	reader.TrimLeadingSpace = true
}

func delimiterRune(d string) rune {
	switch strings.ToLower(d) {
	case "\\t", "\t", "tab":
		return '\t'
	case "|", "pipe":
		return '|'
	case ";", "semicolon":
		return ';'
	case "", ",", "comma":
		return ','
	default:
		r, _ := utf8.DecodeRuneInString(d)
		return r
	}
}
