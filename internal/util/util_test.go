package util_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ugagro/greenwatch/internal/util"
)

// ─── ParseValue ───────────────────────────────────────────────────────────────

func TestParseValueAccepted(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{json.Number("21.5"), 21.5},
		{float64(-3), -3},
		{float32(2.5), 2.5},
		{int(7), 7},
		{int64(42), 42},
		{"  12.25 ", 12.25},
		{"0", 0},
	}
	for _, c := range cases {
		got, ok := util.ParseValue(c.in)
		if !ok {
			t.Errorf("ParseValue(%#v): expected ok", c.in)
			continue
		}
		if got != c.want {
			t.Errorf("ParseValue(%#v): expected %g, got %g", c.in, c.want, got)
		}
	}
}

func TestParseValueRejected(t *testing.T) {
	rejected := []any{
		nil,
		"",
		"   ",
		"abc",
		"12abc",
		true,
		json.Number("x"),
		math.NaN(),
		math.Inf(1),
		"NaN",
		"Inf",
		[]any{1.0},
		map[string]any{},
	}
	for _, in := range rejected {
		if v, ok := util.ParseValue(in); ok {
			t.Errorf("ParseValue(%#v): expected rejection, got %g", in, v)
		}
	}
}

func TestParseValueZeroIsNotMissing(t *testing.T) {
	v, ok := util.ParseValue(json.Number("0"))
	if !ok || v != 0 {
		t.Errorf("zero must parse as a present value, got (%g, %v)", v, ok)
	}
}

// ─── Formatting ───────────────────────────────────────────────────────────────

func TestFormatReading(t *testing.T) {
	cases := map[any]string{
		json.Number("21.46"): "21.5",
		"7":                  "7.0",
		nil:                  "--",
		"":                   "--",
		"n/a":                "--",
	}
	for in, want := range cases {
		if got := util.FormatReading(in); got != want {
			t.Errorf("FormatReading(%#v): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatValue(t *testing.T) {
	if got := util.FormatValue(12.5); got != "12.5" {
		t.Errorf("expected 12.5, got %q", got)
	}
	if got := util.FormatValue(3); got != "3" {
		t.Errorf("expected 3, got %q", got)
	}
	if got := util.FormatValue(math.NaN()); got != "." {
		t.Errorf("expected '.', got %q", got)
	}
}

// ─── MultiError ───────────────────────────────────────────────────────────────

func TestMultiErrorEmpty(t *testing.T) {
	var m util.MultiError
	m.Add(nil)
	if m.Err() != nil {
		t.Errorf("empty MultiError should yield nil, got %v", m.Err())
	}
}

func TestMultiErrorJoinsAndUnwraps(t *testing.T) {
	sentinel := errors.New("wind: field missing")
	var m util.MultiError
	m.Add(errors.New("first"))
	m.Add(sentinel)
	err := m.Err()
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	if err.Error() != "first; wind: field missing" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the collected sentinel")
	}
}
