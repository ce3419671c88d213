// =============================================================================
// Statement Normalizer - Transformation Engine
// =============================================================================
//
// Institutions sometimes need a little help before their cells can be
// parsed: a reference number with a prefix to strip, a description column
// full of double spaces, an amount with an odd currency marker. Each
// institution config may carry a list of transformation rules, one per
// canonical field, applied to the raw cell text before field parsing.
//
// TRANSFORMATION TYPES:
//   - String manipulations: prepend_string, append_string, trim, trim_left,
//     trim_right, uppercase, lowercase, replace, regex_replace, remove_chars,
//     substring, normalize_whitespace, extract_digits
//   - Numeric text: pad_zeros_to_length, remove_leading_zeros, negate
//   - Dates: format_date ("input layout|output layout")
//   - Lookups: lookup, lookup_with_default
//   - Fallbacks: if_empty_use_default, if_empty_use_field
//
// Rules are checked when the Transformer is built, so a typo in a config
// file fails at load time instead of on the first row.
//
// =============================================================================

package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
)

var digits = regexp.MustCompile(`\d+`)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies the configured rules to field values.
type Transformer struct {
	rules map[string][]step
}

type step struct {
	action config.TransformationAction
	re     *regexp.Regexp
}

// New compiles the rules. Unknown action types and invalid regular
// expressions are reported here.
func New(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{rules: make(map[string][]step)}
	for _, rule := range rules {
		if rule.Field == "" {
			return nil, fmt.Errorf("transformation rule without field")
		}
		for _, a := range rule.Actions {
			if !known[a.Type] {
				return nil, fmt.Errorf("field %s: unknown transformation type: %s", rule.Field, a.Type)
			}
			s := step{action: a}
			if a.Type == "regex_replace" && a.Find != "" {
				re, err := regexp.Compile(a.Find)
				if err != nil {
					return nil, fmt.Errorf("field %s: invalid regex pattern: %w", rule.Field, err)
				}
				s.re = re
			}
			t.rules[rule.Field] = append(t.rules[rule.Field], s)
		}
	}
	return t, nil
}

// Has reports whether any rule targets the field.
func (t *Transformer) Has(field string) bool {
	return t != nil && len(t.rules[field]) > 0
}

// Apply runs the field's actions over value. row supplies the raw values of
// the other fields, for if_empty_use_field.
func (t *Transformer) Apply(field, value string, row map[string]string) (string, error) {
	if t == nil {
		return value, nil
	}
	out := value
	for _, s := range t.rules[field] {
		var err error
		out, err = apply(out, s, row)
		if err != nil {
			return "", fmt.Errorf("transformation '%s' failed: %w", s.action.Type, err)
		}
	}
	return out, nil
}

var known = map[string]bool{
	"prepend_string":       true,
	"append_string":        true,
	"trim":                 true,
	"trim_left":            true,
	"trim_right":           true,
	"uppercase":            true,
	"lowercase":            true,
	"replace":              true,
	"regex_replace":        true,
	"remove_chars":         true,
	"substring":            true,
	"normalize_whitespace": true,
	"extract_digits":       true,
	"pad_zeros_to_length":  true,
	"remove_leading_zeros": true,
	"negate":               true,
	"format_date":          true,
	"lookup":               true,
	"lookup_with_default":  true,
	"if_empty_use_default": true,
	"if_empty_use_field":   true,
}

func apply(value string, s step, row map[string]string) (string, error) {
	action := s.action
	switch action.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "trim_left":
		if action.Value != "" {
			return strings.TrimLeft(value, action.Value), nil
		}
		return strings.TrimLeft(value, " \t\n\r"), nil

	case "trim_right":
		if action.Value != "" {
			return strings.TrimRight(value, action.Value), nil
		}
		return strings.TrimRight(value, " \t\n\r"), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "replace":
		// "hello-world" with find "-" and value "_" becomes "hello_world"
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		if s.re == nil {
			return value, nil
		}
		return s.re.ReplaceAllString(value, action.Value), nil

	case "remove_chars":
		// Every character listed in Value is dropped: "1,234 NIS" with
		// value ", NIS" becomes "1234".
		return strings.Map(func(r rune) rune {
			if strings.ContainsRune(action.Value, r) {
				return -1
			}
			return r
		}, value), nil

	case "substring":
		// VALUE FORMAT: "start,end" in characters, end exclusive.
		parts := strings.Split(action.Value, ",")
		if len(parts) != 2 {
			return value, nil
		}
		start, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
		runes := []rune(value)
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start >= end {
			return "", nil
		}
		return string(runes[start:end]), nil

	case "normalize_whitespace":
		return strings.Join(strings.Fields(value), " "), nil

	case "extract_digits":
		// "ABC-123-DEF-456" becomes "123456"
		return strings.Join(digits.FindAllString(value, -1), ""), nil

	// =========================================================================
	// NUMERIC TEXT
	// =========================================================================

	case "pad_zeros_to_length":
		n, err := strconv.Atoi(action.Value)
		if err != nil || n <= 0 {
			return value, nil
		}
		return PadLeft(value, n, '0'), nil

	case "remove_leading_zeros":
		result := strings.TrimLeft(value, "0")
		if result == "" {
			return "0", nil
		}
		return result, nil

	case "negate":
		// For exports that print debits as positive numbers.
		v := strings.TrimSpace(value)
		switch {
		case v == "":
			return value, nil
		case strings.HasPrefix(v, "-"):
			return v[1:], nil
		case strings.HasPrefix(v, "+"):
			return "-" + v[1:], nil
		default:
			return "-" + v, nil
		}

	// =========================================================================
	// DATES
	// =========================================================================

	case "format_date":
		// VALUE FORMAT: "input_layout|output_layout" using Go layouts,
		// e.g. "20060102|02/01/2006".
		parts := strings.Split(action.Value, "|")
		if len(parts) != 2 {
			return value, nil
		}
		t, err := time.Parse(strings.TrimSpace(parts[0]), strings.TrimSpace(value))
		if err != nil {
			return value, nil
		}
		return t.Format(strings.TrimSpace(parts[1])), nil

	// =========================================================================
	// LOOKUP TABLE REPLACEMENTS
	// =========================================================================

	case "lookup":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return value, nil

	case "lookup_with_default":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return action.Value, nil

	// =========================================================================
	// FALLBACKS
	// =========================================================================

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	case "if_empty_use_field":
		if strings.TrimSpace(value) == "" {
			if other, ok := row[action.Value]; ok {
				return other, nil
			}
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// PadLeft pads s on the left with padChar up to length characters.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
