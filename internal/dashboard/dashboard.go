// Package dashboard turns one decoded reading into the display payload the
// sinks render: a status card per metric, an equipment badge per actuator
// and a handful of unclassified auxiliary readings.
package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/threshold"
	"github.com/ugagro/greenwatch/internal/util"
)

// Placeholder for a value that is missing or not numeric.
const Missing = "--"

// NotAvailable is the badge text for an unrecognised state or mode.
const NotAvailable = "Н/Д"

// Build assembles the full dashboard for one reading.
func Build(r *model.Reading, conn model.ConnStatus, lastUpdate time.Time, p threshold.Policy) model.Dashboard {
	return model.Dashboard{
		Status:     conn,
		LastUpdate: lastUpdate,
		Cards:      Cards(r, p),
		Equipment:  Equipment(r),
		Extras:     Extras(r),
	}
}

// ─── Cards ────────────────────────────────────────────────────────────────────

// Cards returns one card per metric in display order. A metric that is
// missing from the reading gets the "--" value and unknown status.
func Cards(r *model.Reading, p threshold.Policy) []model.Card {
	cards := make([]model.Card, 0, len(model.AllMetrics))
	for _, d := range metric.All() {
		raw, _ := d.Raw(r)
		cards = append(cards, model.Card{
			Metric: d.ID,
			Label:  d.Label,
			Unit:   d.Unit,
			Value:  formatScaled(d, raw),
			Status: threshold.Classify(d, raw, p),
		})
	}
	return cards
}

func formatScaled(d metric.Definition, raw any) string {
	v, ok := util.ParseValue(raw)
	if !ok {
		return Missing
	}
	return strconv.FormatFloat(d.Scale(v), 'f', 1, 64)
}

// ─── Equipment ────────────────────────────────────────────────────────────────

type actuator struct {
	name       string
	label      string
	stateField []string
	modeField  []string
}

// The HTTP webhook and the controller firmware name some fields
// differently; the first present field wins.
var actuators = []actuator{
	{"fan", "Вентиляция", []string{"fan_state"}, []string{"fan_mode"}},
	{"heat", "Отопление", []string{"heat_state", "heating_state"}, []string{"heat_mode", "heating_mode"}},
	{"pump", "Полив", []string{"pump_state", "watering_state"}, []string{"pump_mode", "watering_mode"}},
	{"fog", "Туманообразование", []string{"fog_state", "mist_state"}, []string{"fog_mode", "mist_mode"}},
	{"hydro_mix", "Гидросмешивание", []string{"hydro_mix", "hydro_mix_state"}, []string{"hydro_mix_mode"}},
}

// Equipment returns the badge for every actuator. Actuators absent from the
// reading render as "Н/Д".
func Equipment(r *model.Reading) []model.Equipment {
	out := make([]model.Equipment, 0, len(actuators))
	for _, a := range actuators {
		state, _ := r.Lookup(a.stateField...)
		mode, _ := r.Lookup(a.modeField...)
		st, stClass := StateText(state)
		md, mdClass := ModeText(mode)
		out = append(out, model.Equipment{
			Name:       a.name,
			Label:      a.label,
			State:      st,
			StateClass: stClass,
			Mode:       md,
			ModeClass:  mdClass,
		})
	}
	return out
}

// normalize renders a payload value the way the badge lookup expects:
// lower-case text, "1"/"0" for numeric one and zero, "true"/"false" for
// booleans.
func normalize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strings.ToLower(strings.TrimSpace(x))
	}
	if f, ok := util.ParseValue(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.ToLower(fmt.Sprint(v))
}

// StateText maps an on/off value to its badge text and class.
func StateText(v any) (text, class string) {
	switch normalize(v) {
	case "on", "1", "true":
		return "ВКЛ", "bg-success"
	case "off", "0", "false":
		return "ВЫКЛ", "bg-secondary"
	default:
		return NotAvailable, "bg-secondary"
	}
}

// ModeText maps a control mode to its badge text and class. The numeric
// watering mode 0/1/2 maps to auto/manual/forced.
func ModeText(v any) (text, class string) {
	switch normalize(v) {
	case "auto", "0":
		return "Авто", "bg-info"
	case "manual", "1":
		return "Ручной", "bg-warning"
	case "forced", "2":
		return "Принуд.", "bg-danger"
	default:
		return NotAvailable, "bg-secondary"
	}
}

// ─── Extras ───────────────────────────────────────────────────────────────────

var extras = []struct {
	name   string
	label  string
	fields []string
}{
	{"outdoor_hum", "Влажность улицы (%)", []string{"outdoor_hum", "outdoor_humidity"}},
	{"solution_temp", "Температура раствора (°C)", []string{"solution_temp", "solution_temperature"}},
	{"pyranometer", "Пиранометр", []string{"pyranometer", "pyrano"}},
	{"window_position", "Положение окна (%)", []string{"window_position"}},
}

// Extras returns the auxiliary readings, formatted with one decimal.
func Extras(r *model.Reading) []model.Extra {
	out := make([]model.Extra, 0, len(extras))
	for _, e := range extras {
		v, _ := r.Lookup(e.fields...)
		out = append(out, model.Extra{Name: e.name, Label: e.label, Value: util.FormatReading(v)})
	}
	return out
}

// ─── Connection ───────────────────────────────────────────────────────────────

// ConnText is the connection indicator text.
func ConnText(s model.ConnStatus) string {
	switch s {
	case model.ConnConnected:
		return "Подключено"
	case model.ConnError:
		return "Ошибка данных"
	default:
		return "Нет связи"
	}
}
