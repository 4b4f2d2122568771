// Package util provides shared utilities: lenient value parsing for decoded
// JSON payloads, display formatting and error aggregation.
package util

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ─── Value Parsing ────────────────────────────────────────────────────────────

// ParseValue converts a decoded JSON value into a finite float64.
// Accepts json.Number, float64/float32, the integer kinds and numeric
// strings. Returns ok=false for nil, booleans, empty or non-numeric strings
// and NaN/Inf.
func ParseValue(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		p, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ─── Formatting ───────────────────────────────────────────────────────────────

// FormatValue formats a float64 for machine-readable output with no
// unnecessary digits (12.5, not 12.500000).
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatReading formats a raw payload value for a status card: one decimal
// place, or "--" when the value is missing or not numeric.
func FormatReading(v any) string {
	f, ok := ParseValue(v)
	if !ok {
		return "--"
	}
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is / errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
