// Package coerce converts raw textual payload values into typed values for
// use inside rule expressions. Precedence is fixed: integer, real, boolean,
// structured literal, then the original string. A failed parse at any step
// falls through to the next; no errors escape.
package coerce

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value returns the typed representation of a raw value. Non-string inputs
// are passed through unchanged when they already match a supported type.
func Value(raw any) any {
	switch v := raw.(type) {
	case string:
		return fromString(v)
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64, float64, bool, map[string]any, []any:
		return v
	case float32:
		return float64(v)
	default:
		return v
	}
}

func fromString(s string) any {
	// Devices pad payloads with whitespace; " 5" still coerces to an
	// integer. The original string is returned untouched on fall-through.
	t := strings.TrimSpace(s)
	if n, ok := parseInt(t); ok {
		return n
	}
	if f, ok := parseFloat(t); ok {
		return f
	}
	if b, ok := parseBool(t); ok {
		return b
	}
	if v, ok := parseStructured(t); ok {
		return v
	}
	return s
}

// parseInt accepts strings that fully parse as a base-10 integer and carry
// no '.' or exponent marker, so "5" is an integer but "5.0" and "5e3" are not.
func parseInt(s string) (int64, bool) {
	if s == "" || strings.ContainsAny(s, ".eE") {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseFloat accepts strings that fully parse as a floating value and contain
// a '.' or exponent marker. Plain integers never reach here as reals.
func parseFloat(s string) (float64, bool) {
	if s == "" || !strings.ContainsAny(s, ".eE") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	default:
		return false, false
	}
}

// parseStructured parses map and sequence literals. YAML flow syntax covers
// both JSON payloads ({"a": 1}) and single-quoted device payloads ({'a': 1}).
// Scalar parses are rejected so literal text like "hello" stays a string.
func parseStructured(s string) (any, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, false
	}
	// Cheap shape check before handing the value to the parser; arbitrary
	// prose would otherwise round-trip through YAML for nothing.
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, false
	}

	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}

	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}
