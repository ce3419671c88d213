package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RequiredFields are the canonical fields every column mapping must name.
var RequiredFields = []string{"date", "description", "amount"}

// ErrMissingMapping is returned when a required canonical field has no
// column mapping.
var ErrMissingMapping = errors.New("missing required column mapping")

// =============================================================================
// INSTITUTION CONFIGURATION STRUCTURE
// =============================================================================

// Institution describes one bank or broker export format.
//
// Example (YAML):
//
//	bank_name: IBI
//	adapter: ibi
//	file_matching_patterns: ["*IBI*.xlsx", "תנועות*.xlsx"]
//	column_mappings:
//	  date: "0"
//	  description: "1"
//	  amount: "4"
//	skip_rows: 1
type Institution struct {
	// Name is the institution name written on every transaction.
	Name string `yaml:"bank_name" toml:"bank_name"`

	// Adapter selects the built-in adapter variant ("ibi", "ibi-securities")
	// whose defaults this file overrides. Empty means "generic".
	Adapter string `yaml:"adapter" toml:"adapter"`

	// ColumnMappings maps canonical fields (date, description, amount,
	// balance, reference, category, account) to native columns. A column is
	// a header label or a zero-based position written as digits.
	ColumnMappings map[string]string `yaml:"column_mappings" toml:"column_mappings"`

	// AmountColumns is used when debits and credits sit in separate
	// columns. The amount is credit minus debit.
	AmountColumns *AmountColumns `yaml:"amount_columns,omitempty" toml:"amount_columns,omitempty"`

	// DateFormat is the expected date format. Token style (DD/MM/YYYY),
	// strftime style (%d/%m/%Y) and Go layouts are accepted.
	// Default: "DD/MM/YYYY"
	DateFormat string `yaml:"date_format" toml:"date_format"`

	// DatePattern is the regular expression a transaction row's anchor must
	// match. Default: derived from DateFormat.
	DatePattern string `yaml:"date_pattern" toml:"date_pattern"`

	// AnchorField is the canonical field whose column marks a transaction row.
	// Default: "date"
	AnchorField string `yaml:"anchor_field" toml:"anchor_field"`

	// SkipRows is the number of leading rows dropped before cleaning. Unset
	// means none, or the variant's default when overlaid.
	SkipRows *int `yaml:"skip_rows,omitempty" toml:"skip_rows,omitempty"`

	// HeaderRow is the zero-based row holding column labels. Unset means the
	// mappings are positional.
	HeaderRow *int `yaml:"header_row,omitempty" toml:"header_row,omitempty"`

	// Encoding is the character encoding of CSV input.
	// Default: "utf-8"
	Encoding string `yaml:"encoding" toml:"encoding"`

	// Delimiter is the CSV field delimiter. Default: ","
	Delimiter string `yaml:"delimiter" toml:"delimiter"`

	// Sheet is the worksheet to read. Default: the first sheet.
	Sheet string `yaml:"sheet" toml:"sheet"`

	// Currency is the ISO currency code of the account.
	Currency string `yaml:"currency" toml:"currency"`

	// FooterKeywords mark trailing summary rows to drop.
	FooterKeywords []string `yaml:"footer_keywords" toml:"footer_keywords"`

	// FileMatchingPatterns are glob patterns matched against input file names.
	FileMatchingPatterns []string `yaml:"file_matching_patterns" toml:"file_matching_patterns"`

	// Transformations are applied to raw cell text before parsing.
	Transformations []TransformationRule `yaml:"transformations" toml:"transformations"`

	// Path is the file the configuration was loaded from.
	Path string `yaml:"-" toml:"-"`
}

// AmountColumns names the debit and credit columns.
type AmountColumns struct {
	Debit  string `yaml:"debit" toml:"debit"`
	Credit string `yaml:"credit" toml:"credit"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule lists the actions applied to one canonical field.
type TransformationRule struct {
	// Field is the canonical field name (date, description, amount, ...).
	Field string `yaml:"field" toml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions" toml:"actions"`
}

// TransformationAction is a single transformation step.
type TransformationAction struct {
	// Type is the action name, for example "trim", "replace", "lookup".
	Type string `yaml:"type" toml:"type"`

	// Value is the action parameter (string to add, target length, default).
	Value string `yaml:"value" toml:"value"`

	// Find is the substring or pattern for "replace" and "regex_replace".
	Find string `yaml:"find,omitempty" toml:"find,omitempty"`

	// LookupTable maps input values to output values for "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty" toml:"lookup_table,omitempty"`
}

// =============================================================================
// DEFAULTS, OVERLAY AND VALIDATION
// =============================================================================

// ApplyDefaults fills unset options.
func (c *Institution) ApplyDefaults() {
	if c.DateFormat == "" {
		c.DateFormat = "DD/MM/YYYY"
	}
	if c.AnchorField == "" {
		c.AnchorField = "date"
	}
	if c.Encoding == "" {
		c.Encoding = "utf-8"
	}
	if c.Delimiter == "" {
		c.Delimiter = ","
	}
	if c.Adapter == "" {
		c.Adapter = "generic"
	}
}

// Overlay returns a copy of base with every option set in c taking
// precedence. Column mappings are merged key by key. An explicit
// skip_rows, zero included, replaces the base value.
func (c *Institution) Overlay(base *Institution) *Institution {
	out := base.Clone()
	if c == nil {
		return out
	}
	if c.Name != "" {
		out.Name = c.Name
	}
	if c.Adapter != "" {
		out.Adapter = c.Adapter
	}
	for k, v := range c.ColumnMappings {
		if out.ColumnMappings == nil {
			out.ColumnMappings = make(map[string]string)
		}
		out.ColumnMappings[k] = v
	}
	if c.AmountColumns != nil {
		ac := *c.AmountColumns
		out.AmountColumns = &ac
	}
	overlayString(&out.DateFormat, c.DateFormat)
	overlayString(&out.DatePattern, c.DatePattern)
	overlayString(&out.AnchorField, c.AnchorField)
	overlayString(&out.Encoding, c.Encoding)
	overlayString(&out.Delimiter, c.Delimiter)
	overlayString(&out.Sheet, c.Sheet)
	overlayString(&out.Currency, c.Currency)
	if c.SkipRows != nil {
		n := *c.SkipRows
		out.SkipRows = &n
	}
	if c.HeaderRow != nil {
		h := *c.HeaderRow
		out.HeaderRow = &h
	}
	if len(c.FooterKeywords) > 0 {
		out.FooterKeywords = append([]string(nil), c.FooterKeywords...)
	}
	if len(c.FileMatchingPatterns) > 0 {
		out.FileMatchingPatterns = append([]string(nil), c.FileMatchingPatterns...)
	}
	if len(c.Transformations) > 0 {
		out.Transformations = append([]TransformationRule(nil), c.Transformations...)
	}
	if c.Path != "" {
		out.Path = c.Path
	}
	return out
}

// Skip returns the number of leading rows to drop.
func (c *Institution) Skip() int {
	if c.SkipRows == nil {
		return 0
	}
	return *c.SkipRows
}

// Rows returns a pointer to n, for the optional row settings.
func Rows(n int) *int { return &n }

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Clone returns a deep copy.
func (c *Institution) Clone() *Institution {
	if c == nil {
		return &Institution{}
	}
	out := *c
	if c.ColumnMappings != nil {
		out.ColumnMappings = make(map[string]string, len(c.ColumnMappings))
		for k, v := range c.ColumnMappings {
			out.ColumnMappings[k] = v
		}
	}
	if c.AmountColumns != nil {
		ac := *c.AmountColumns
		out.AmountColumns = &ac
	}
	if c.SkipRows != nil {
		n := *c.SkipRows
		out.SkipRows = &n
	}
	if c.HeaderRow != nil {
		h := *c.HeaderRow
		out.HeaderRow = &h
	}
	out.FooterKeywords = append([]string(nil), c.FooterKeywords...)
	out.FileMatchingPatterns = append([]string(nil), c.FileMatchingPatterns...)
	out.Transformations = append([]TransformationRule(nil), c.Transformations...)
	return &out
}

// Validate checks the institution once, at construction time.
func (c *Institution) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("bank_name is required")
	}
	for _, f := range RequiredFields {
		if strings.TrimSpace(c.ColumnMappings[f]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingMapping, f)
		}
	}
	if c.SkipRows != nil && *c.SkipRows < 0 {
		return fmt.Errorf("skip_rows must not be negative, got %d", *c.SkipRows)
	}
	if c.HeaderRow != nil && *c.HeaderRow < 0 {
		return fmt.Errorf("header_row must not be negative, got %d", *c.HeaderRow)
	}
	if c.DatePattern != "" {
		if _, err := regexp.Compile(c.DatePattern); err != nil {
			return fmt.Errorf("invalid date_pattern: %w", err)
		}
	}
	if c.AmountColumns != nil && c.AmountColumns.Debit == "" && c.AmountColumns.Credit == "" {
		return errors.New("amount_columns needs a debit or credit column")
	}
	if c.AnchorField != "" {
		if _, ok := c.ColumnMappings[c.AnchorField]; !ok {
			return fmt.Errorf("anchor_field %q has no column mapping", c.AnchorField)
		}
	}
	for _, p := range c.FileMatchingPatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid file pattern %q: %w", p, err)
		}
	}
	return nil
}

// Key returns the registry key for the institution: the lowercased name.
func (c *Institution) Key() string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// MatchesFile reports whether a file name matches one of the patterns.
// Matching is case-insensitive.
func (c *Institution) MatchesFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, p := range c.FileMatchingPatterns {
		if ok, _ := filepath.Match(strings.ToLower(p), name); ok {
			return true
		}
	}
	return false
}

// =============================================================================
// LOADING
// =============================================================================

// LoadInstitution reads one institution file. The format follows the
// extension: .yaml/.yml or .toml.
func LoadInstitution(path string) (*Institution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var inst Institution
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &inst); err != nil {
			return nil, fmt.Errorf("failed to parse file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &inst); err != nil {
			return nil, fmt.Errorf("failed to parse file: %w", err)
		}
	}
	inst.Path = path
	return &inst, nil
}

// LoadInstitutions loads every institution file in a directory, sorted by
// file name. A missing directory yields no institutions.
func LoadInstitutions(dir string) ([]*Institution, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".toml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	out := make([]*Institution, 0, len(files))
	seen := make(map[string]string)
	for _, f := range files {
		inst, err := LoadInstitution(f)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
		if inst.Name == "" {
			inst.Name = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		}
		if prev, dup := seen[inst.Key()]; dup {
			return nil, fmt.Errorf("institution %q defined in both %s and %s", inst.Name, prev, f)
		}
		seen[inst.Key()] = f
		out = append(out, inst)
	}
	return out, nil
}
