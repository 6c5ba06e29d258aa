package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Safe accessors over the dynamic values produced by YAML rule parsing and
// record decoding. Rule files and records are arbitrary nested maps; these
// helpers centralize the type switches so callers never panic on shape
// mismatches.

// AsString converts a decoded scalar to its string form.
// Returns false for nil and non-scalar values.
func AsString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		// YAML integers surface as float64 after a JSON round trip.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// ToString is AsString with a fmt fallback for non-scalar values, for call
// sites that always need some string form.
func ToString(v any) string {
	if s, ok := AsString(v); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// AsInt converts a decoded scalar to int64. String values are parsed.
func AsInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		return int64(t), true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsFloat converts a decoded scalar to float64 for numeric comparisons.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsMap returns v as a string-keyed map. yaml.v3 decodes mapping nodes to
// map[string]any directly, so no key conversion pass is needed.
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// AsList returns v as a slice.
func AsList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// MapString fetches a string value from a decoded map, "" if absent.
func MapString(m map[string]any, key string) string {
	s, _ := AsString(m[key])
	return s
}

// FormatValue renders a resolved value for detection output. Quoting added
// by JSON serialization is stripped so field values embed cleanly in the
// details message.
func FormatValue(v any) string {
	if s, ok := AsString(v); ok {
		return strings.ReplaceAll(s, `"`, "")
	}
	return strings.ReplaceAll(fmt.Sprintf("%v", v), `"`, "")
}
