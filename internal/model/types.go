// Package model defines the canonical data types used throughout greenwatch.
// These types are shared by the store, the poller, the renderers and the
// command tree; none of them carry behaviour beyond small helpers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ─── Metrics ──────────────────────────────────────────────────────────────────

// MetricID identifies one monitored physical quantity.
type MetricID string

const (
	Temperature MetricID = "temperature"
	Humidity    MetricID = "humidity"
	OutdoorTemp MetricID = "outdoor"
	Solar       MetricID = "solar"
	MatTemp     MetricID = "mat-temp"
	MatEC       MetricID = "mat-ec"
	WaterLevel  MetricID = "water"
	WindSpeed   MetricID = "wind"
)

// AllMetrics lists every metric in display order.
var AllMetrics = []MetricID{
	Temperature,
	Humidity,
	OutdoorTemp,
	Solar,
	MatTemp,
	MatEC,
	WaterLevel,
	WindSpeed,
}

// metricAliases maps payload field names and loose spellings to metric IDs.
var metricAliases = map[string]MetricID{
	"temp":                Temperature,
	"hum":                 Humidity,
	"outdoor_temp":        OutdoorTemp,
	"outdoor-temp":        OutdoorTemp,
	"outdoor_temperature": OutdoorTemp,
	"solar_radiation":     Solar,
	"mat_temp":            MatTemp,
	"mat_temperature":     MatTemp,
	"mat_ec":              MatEC,
	"water_level":         WaterLevel,
	"wind_speed":          WindSpeed,
}

// ParseMetricID resolves s to a MetricID, accepting the canonical IDs
// (case-insensitive) and the aliases above.
func ParseMetricID(s string) (MetricID, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, id := range AllMetrics {
		if string(id) == key {
			return id, nil
		}
	}
	if id, ok := metricAliases[key]; ok {
		return id, nil
	}
	return "", fmt.Errorf("unknown metric %q (valid: %s)", s, strings.Join(MetricNames(), ", "))
}

// MetricNames returns the canonical IDs as strings.
func MetricNames() []string {
	out := make([]string, len(AllMetrics))
	for i, id := range AllMetrics {
		out[i] = string(id)
	}
	return out
}

// ─── Samples ──────────────────────────────────────────────────────────────────

// Sample is one stored (timestamp, value) pair for a single metric.
// Value is always finite; non-finite readings never reach storage.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SeriesView is a filtered, chart-ready series for one metric.
type SeriesView struct {
	Metric  MetricID `json:"metric"`
	Label   string   `json:"label"`
	Unit    string   `json:"unit"`
	Hours   int      `json:"hours"`
	Month   int      `json:"month,omitempty"`
	Year    int      `json:"year,omitempty"`
	Samples []Sample `json:"samples"`
}

// ─── Readings ─────────────────────────────────────────────────────────────────

// Reading is one decoded payload from the remote source. Fields is the flat
// map of sensor and equipment values; History is only set when the source
// answered with the envelope shape and included chart data.
type Reading struct {
	Fields     map[string]any `json:"fields"`
	History    *ChartData     `json:"history,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Lookup returns the first present, non-null field among names.
func (r *Reading) Lookup(names ...string) (any, bool) {
	if r == nil {
		return nil, false
	}
	for _, n := range names {
		if v, ok := r.Fields[n]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ChartData is the server-side history block of the envelope response:
// a shared label axis plus one value array per metric key.
type ChartData struct {
	Labels []string         `json:"labels"`
	Series map[string][]any `json:"series"`
}

// ─── Status ───────────────────────────────────────────────────────────────────

// Status is the threshold classification of one metric value.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// CSSClass returns the card class name used by the dashboard sinks.
func (s Status) CSSClass() string {
	return "status-" + string(s)
}

// ConnStatus is the connection indicator exposed by the poller.
type ConnStatus string

const (
	ConnConnected    ConnStatus = "connected"
	ConnDisconnected ConnStatus = "disconnected"
	ConnError        ConnStatus = "error"
)

// ─── Dashboard payloads ───────────────────────────────────────────────────────

// Card is one metric status card.
type Card struct {
	Metric MetricID `json:"metric"`
	Label  string   `json:"label"`
	Unit   string   `json:"unit"`
	Value  string   `json:"value"`
	Status Status   `json:"status"`
}

// Equipment is the on/off state and control mode of one actuator.
type Equipment struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	State      string `json:"state"`
	StateClass string `json:"state_class"`
	Mode       string `json:"mode"`
	ModeClass  string `json:"mode_class"`
}

// Extra is an auxiliary reading shown without classification.
type Extra struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Dashboard is everything a card/badge sink needs for one refresh.
type Dashboard struct {
	Status     ConnStatus  `json:"status"`
	LastUpdate time.Time   `json:"last_update,omitempty"`
	Cards      []Card      `json:"cards"`
	Equipment  []Equipment `json:"equipment,omitempty"`
	Extras     []Extra     `json:"extras,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindSeries     = "series"
	KindDashboard  = "dashboard"
	KindStoreStats = "store_stats"
	KindSummary    = "summary"
	KindTable      = "table"
)

// StoreStat is one row of `store stats`: a metric series and its size.
type StoreStat struct {
	Metric MetricID  `json:"metric"`
	Key    string    `json:"key"`
	Count  int       `json:"count"`
	Bytes  int64     `json:"bytes"`
	Oldest time.Time `json:"oldest,omitempty"`
	Newest time.Time `json:"newest,omitempty"`
}
