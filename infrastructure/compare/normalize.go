// Package compare implements the comparison strategies used by the
// evaluator: value normalization, fuzzy similarity, bipartite list matching,
// the method dispatcher and the model-backed semantic judge.
package compare

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/docgavel/internal/domain"
)

// Stringify renders a scalar the way it is compared. Nil becomes the empty
// string, floats use the shortest exact form and nested maps or slices are
// rendered as JSON with sorted keys.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// NormalizeText canonicalizes a value for text comparison: NFKC, Unicode
// case folding, punctuation replaced by spaces and whitespace collapsed.
// It is idempotent.
func NormalizeText(v any) string {
	s := norm.NFKC.String(Stringify(v))
	// A Caser carries state, so each call gets its own.
	s = cases.Fold().String(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeNumeric parses a value as a float. Numbers are converted
// directly; strings have currency symbols, thousands separators, spaces and
// parentheses removed first. Failures are reported as NormalizationError.
func NormalizeNumeric(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		return NormalizeNumeric(t.String())
	case string:
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case unicode.Is(unicode.Sc, r), unicode.IsSpace(r):
				return -1
			case r == ',', r == '(', r == ')':
				return -1
			}
			return r
		}, t)
		if cleaned == "" {
			return 0, domain.NewNormalizationError(v, domain.MethodNumericExact, domain.ErrNotNumeric)
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, domain.NewNormalizationError(v, domain.MethodNumericExact,
				fmt.Errorf("%w: %v", domain.ErrNotNumeric, err))
		}
		f = parsed
	default:
		return 0, domain.NewNormalizationError(v, domain.MethodNumericExact, domain.ErrNotNumeric)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, domain.NewNormalizationError(v, domain.MethodNumericExact, domain.ErrNotNumeric)
	}
	return f, nil
}

// ToList coerces a value to a list of strings. Absent values give an empty
// list, sequences are stringified element-wise and a string that looks like
// a list literal ("[...]") is parsed as one. Anything else becomes a
// single-element list.
func ToList(v any) []string {
	if !domain.IsPresent(v) {
		return []string{}
	}

	switch t := v.(type) {
	case string:
		return parseListLiteral(strings.TrimSpace(t))
	case []byte:
		return parseListLiteral(strings.TrimSpace(string(t)))
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = Stringify(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]string, rv.Len())
		for i := range out {
			out[i] = Stringify(rv.Index(i).Interface())
		}
		return out
	default:
		return []string{Stringify(v)}
	}
}

func parseListLiteral(s string) []string {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return []string{s}
	}

	if items, ok := decodeJSONList(s); ok {
		return items
	}
	// Single-quoted literals such as ['a', 'b'].
	if items, ok := decodeJSONList(strings.ReplaceAll(s, "'", `"`)); ok {
		return items
	}

	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []string{}
	}
	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		out = append(out, p)
	}
	return out
}

func decodeJSONList(s string) ([]string, bool) {
	var raw []any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	out := make([]string, len(raw))
	for i, item := range raw {
		out[i] = Stringify(item)
	}
	return out, true
}
