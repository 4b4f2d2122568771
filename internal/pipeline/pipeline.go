// Package pipeline reads and writes sample streams as JSONL, the format
// used by `store dump`, `store load` and `--format jsonl`. One record per
// line:
//
//	{"metric":"temperature","timestamp":"2024-06-01T08:00:00Z","value":21.5}
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ugagro/greenwatch/internal/model"
)

// Record is one JSONL line.
type Record struct {
	Metric    model.MetricID `json:"metric"`
	Timestamp time.Time      `json:"timestamp"`
	Value     float64        `json:"value"`
}

// ReadRecords reads JSONL records from r and groups them by metric in
// input order. Blank lines and lines starting with "//" are skipped.
// Unknown metrics, missing timestamps and non-finite values are errors
// carrying the line number.
func ReadRecords(r io.Reader) (map[model.MetricID][]model.Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	type row struct {
		Metric    string          `json:"metric"`
		Timestamp json.RawMessage `json:"timestamp"`
		Value     *float64        `json:"value"`
	}

	out := make(map[model.MetricID][]model.Sample)
	lineNum, n := 0, 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec row
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		id, err := model.ParseMetricID(rec.Metric)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		ts, err := parseTimestamp(rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if rec.Value == nil {
			return nil, fmt.Errorf("line %d: missing value", lineNum)
		}
		if math.IsNaN(*rec.Value) || math.IsInf(*rec.Value, 0) {
			return nil, fmt.Errorf("line %d: value not finite", lineNum)
		}
		out[id] = append(out[id], model.Sample{Timestamp: ts, Value: *rec.Value})
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("no records read from input (is stdin empty?)")
	}
	return out, nil
}

// parseTimestamp accepts an RFC 3339 string or Unix milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
		}
		return t, nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// WriteJSONL writes samples for id as JSONL to w.
func WriteJSONL(w io.Writer, id model.MetricID, samples []model.Sample) error {
	enc := json.NewEncoder(w)
	for _, s := range samples {
		if err := enc.Encode(Record{Metric: id, Timestamp: s.Timestamp, Value: s.Value}); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
