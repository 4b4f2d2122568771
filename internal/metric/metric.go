// Package metric holds the static metric definition table: display label,
// colour, unit, storage key, payload field names, normal range and
// threshold class for every MetricID. The table is immutable and total
// over model.AllMetrics.
package metric

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/util"
)

// Class selects which side of the normal range matters for a metric.
type Class int

const (
	// ClassRange metrics warn when outside [Min, Max] in either direction.
	ClassRange Class = iota
	// ClassFloor metrics only care about falling below Min (water level).
	ClassFloor
	// ClassCeiling metrics only care about rising above Max (wind speed).
	ClassCeiling
)

func (c Class) String() string {
	switch c {
	case ClassFloor:
		return "floor"
	case ClassCeiling:
		return "ceiling"
	default:
		return "range"
	}
}

// Extraction errors. Wrapped with the metric ID by Extract.
var (
	ErrFieldMissing = errors.New("field missing")
	ErrNotNumeric   = errors.New("value not numeric")
	ErrNotFinite    = errors.New("value not finite")
)

// Definition is the static configuration of one metric.
type Definition struct {
	ID         model.MetricID
	Label      string
	Color      string // "rgb(r, g, b)"
	Unit       string
	StorageKey string
	// Fields are payload field names tried in order; the first present wins.
	// The HTTP webhook and the controller's MQTT payload name some fields
	// differently.
	Fields []string
	// Divisor scales the raw value before storage and classification.
	// Zero means 1.
	Divisor float64
	Min     float64
	Max     float64
	Class   Class
}

var definitions = map[model.MetricID]Definition{
	model.Temperature: {
		ID:         model.Temperature,
		Label:      "Температура (°C)",
		Color:      "rgb(255, 99, 132)",
		Unit:       "°C",
		StorageKey: "ugagro_temp_data",
		Fields:     []string{"temperature"},
		Min:        10,
		Max:        40,
	},
	model.Humidity: {
		ID:         model.Humidity,
		Label:      "Влажность (%)",
		Color:      "rgb(54, 162, 235)",
		Unit:       "%",
		StorageKey: "ugagro_hum_data",
		Fields:     []string{"humidity"},
		Min:        20,
		Max:        85,
	},
	model.OutdoorTemp: {
		ID:         model.OutdoorTemp,
		Label:      "Температура улицы (°C)",
		Color:      "rgb(75, 192, 192)",
		Unit:       "°C",
		StorageKey: "ugagro_outdoor_data",
		Fields:     []string{"outdoor_temp", "outdoor_temperature"},
		Min:        -30,
		Max:        50,
	},
	model.Solar: {
		ID:         model.Solar,
		Label:      "Солнечная радиация (Вт/м²)",
		Color:      "rgb(255, 206, 86)",
		Unit:       "Вт/м²",
		StorageKey: "ugagro_solar_data",
		Fields:     []string{"solar_radiation"},
		Divisor:    10,
		Min:        0,
		Max:        1000,
	},
	model.MatTemp: {
		ID:         model.MatTemp,
		Label:      "Температура мата (°C)",
		Color:      "rgb(153, 102, 255)",
		Unit:       "°C",
		StorageKey: "ugagro_mat_temp_data",
		Fields:     []string{"mat_temp", "mat_temperature"},
		Min:        5,
		Max:        35,
	},
	model.MatEC: {
		ID:         model.MatEC,
		Label:      "EC мата (мС/см)",
		Color:      "rgb(255, 159, 64)",
		Unit:       "мС/см",
		StorageKey: "ugagro_mat_ec_data",
		Fields:     []string{"mat_ec"},
		Min:        0,
		Max:        10,
	},
	model.WaterLevel: {
		ID:         model.WaterLevel,
		Label:      "Уровень воды (%)",
		Color:      "rgb(0, 123, 255)",
		Unit:       "%",
		StorageKey: "ugagro_water_data",
		Fields:     []string{"water_level"},
		Min:        5,
		Max:        100,
		Class:      ClassFloor,
	},
	model.WindSpeed: {
		ID:         model.WindSpeed,
		Label:      "Скорость ветра (м/с)",
		Color:      "rgb(108, 117, 125)",
		Unit:       "м/с",
		StorageKey: "ugagro_wind_data",
		Fields:     []string{"wind_speed"},
		Min:        0,
		Max:        11,
		Class:      ClassCeiling,
	},
}

// Get returns the definition for id.
func Get(id model.MetricID) (Definition, bool) {
	d, ok := definitions[id]
	return d, ok
}

// MustGet returns the definition for id and panics on an unknown ID.
// Only use with IDs that came from model.AllMetrics or ParseMetricID.
func MustGet(id model.MetricID) Definition {
	d, ok := definitions[id]
	if !ok {
		panic(fmt.Sprintf("metric: no definition for %q", id))
	}
	return d
}

// All returns every definition in model.AllMetrics order.
func All() []Definition {
	out := make([]Definition, 0, len(model.AllMetrics))
	for _, id := range model.AllMetrics {
		out = append(out, definitions[id])
	}
	return out
}

// Raw returns the unscaled payload value for this metric.
func (d Definition) Raw(r *model.Reading) (any, bool) {
	return r.Lookup(d.Fields...)
}

// Scale applies the definition's divisor to a parsed raw value.
func (d Definition) Scale(v float64) float64 {
	if d.Divisor == 0 || d.Divisor == 1 {
		return v
	}
	return v / d.Divisor
}

// Extract pulls this metric's value out of a reading.
// The error wraps ErrFieldMissing, ErrNotNumeric or ErrNotFinite; a zero value with a nil
// error is a genuine zero reading.
func (d Definition) Extract(r *model.Reading) (float64, error) {
	raw, ok := d.Raw(r)
	if !ok {
		return 0, fmt.Errorf("%s: %w (%s)", d.ID, ErrFieldMissing, strings.Join(d.Fields, "|"))
	}
	v, ok := util.ParseValue(raw)
	if !ok {
		if nonFinite(raw) {
			return 0, fmt.Errorf("%s: %w: %v", d.ID, ErrNotFinite, raw)
		}
		return 0, fmt.Errorf("%s: %w: %v", d.ID, ErrNotNumeric, raw)
	}
	return d.Scale(v), nil
}

// History converts the server-side chart block into samples for this
// metric, oldest first as sent. The value array is looked up under the
// payload field names, then the metric ID. Points whose label is not a
// timestamp or whose value is not a finite number are skipped.
func (d Definition) History(cd *model.ChartData) []model.Sample {
	if cd == nil {
		return nil
	}
	var values []any
	for _, k := range append(append([]string(nil), d.Fields...), string(d.ID)) {
		if v, ok := cd.Series[k]; ok {
			values = v
			break
		}
	}
	n := min(len(values), len(cd.Labels))
	out := make([]model.Sample, 0, n)
	for i := 0; i < n; i++ {
		ts, ok := parseChartLabel(cd.Labels[i])
		if !ok {
			continue
		}
		v, ok := util.ParseValue(values[i])
		if !ok {
			continue
		}
		out = append(out, model.Sample{Timestamp: ts, Value: d.Scale(v)})
	}
	return out
}

var chartLabelLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// parseChartLabel accepts RFC 3339, "YYYY-MM-DD HH:MM:SS" (UTC) and unix
// milliseconds.
func parseChartLabel(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range chartLabelLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// nonFinite reports whether raw parses as a float but is NaN or ±Inf.
func nonFinite(raw any) bool {
	var f float64
	switch x := raw.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return false
		}
		f = p
	case json.Number:
		p, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return false
		}
		f = p
	default:
		return false
	}
	return !util.IsFinite(f)
}

// FillColor returns the translucent fill variant of Color used under the
// chart line ("rgb(1, 2, 3)" → "rgba(1, 2, 3, 0.2)").
func (d Definition) FillColor() string {
	c := strings.Replace(d.Color, "rgb(", "rgba(", 1)
	return strings.TrimSuffix(c, ")") + ", 0.2)"
}

// RGB parses Color into its components. Malformed colours yield grey.
func (d Definition) RGB() (r, g, b uint8) {
	var ri, gi, bi int
	if _, err := fmt.Sscanf(d.Color, "rgb(%d, %d, %d)", &ri, &gi, &bi); err != nil {
		return 128, 128, 128
	}
	return uint8(ri), uint8(gi), uint8(bi)
}
