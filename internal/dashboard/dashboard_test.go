package dashboard_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ugagro/greenwatch/internal/dashboard"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/threshold"
)

func reading(fields map[string]any) *model.Reading {
	return &model.Reading{Fields: fields}
}

func card(cards []model.Card, id model.MetricID) model.Card {
	for _, c := range cards {
		if c.Metric == id {
			return c
		}
	}
	return model.Card{}
}

func equipment(eq []model.Equipment, name string) model.Equipment {
	for _, e := range eq {
		if e.Name == name {
			return e
		}
	}
	return model.Equipment{}
}

// ─── Cards ────────────────────────────────────────────────────────────────────

func TestCardsOnePerMetric(t *testing.T) {
	cards := dashboard.Cards(reading(nil), threshold.PolicyRange)
	if len(cards) != len(model.AllMetrics) {
		t.Fatalf("expected %d cards, got %d", len(model.AllMetrics), len(cards))
	}
	for i, c := range cards {
		if c.Metric != model.AllMetrics[i] {
			t.Errorf("card %d: expected %s, got %s", i, model.AllMetrics[i], c.Metric)
		}
		if c.Value != dashboard.Missing || c.Status != model.StatusUnknown {
			t.Errorf("%s: empty reading should give (--, unknown), got (%s, %s)", c.Metric, c.Value, c.Status)
		}
	}
}

func TestCardsValuesAndStatus(t *testing.T) {
	r := reading(map[string]any{
		"temperature":     json.Number("45.04"),
		"water_level":     json.Number("3"),
		"wind_speed":      json.Number("9"),
		"solar_radiation": json.Number("4567"),
	})
	cards := dashboard.Cards(r, threshold.PolicyRange)

	if c := card(cards, model.Temperature); c.Value != "45.0" || c.Status != model.StatusWarning {
		t.Errorf("temperature: got %+v", c)
	}
	if c := card(cards, model.WaterLevel); c.Status != model.StatusCritical {
		t.Errorf("water: got %+v", c)
	}
	if c := card(cards, model.WindSpeed); c.Status != model.StatusWarning {
		t.Errorf("wind: got %+v", c)
	}
	if c := card(cards, model.Solar); c.Value != "456.7" {
		t.Errorf("solar should be shown divided by 10, got %q", c.Value)
	}
	if c := card(cards, model.Humidity); c.Value != "--" {
		t.Errorf("missing humidity: got %q", c.Value)
	}
}

// ─── Equipment ────────────────────────────────────────────────────────────────

func TestStateText(t *testing.T) {
	cases := []struct {
		in    any
		text  string
		class string
	}{
		{"on", "ВКЛ", "bg-success"},
		{"ON", "ВКЛ", "bg-success"},
		{true, "ВКЛ", "bg-success"},
		{json.Number("1"), "ВКЛ", "bg-success"},
		{"off", "ВЫКЛ", "bg-secondary"},
		{false, "ВЫКЛ", "bg-secondary"},
		{json.Number("0"), "ВЫКЛ", "bg-secondary"},
		{nil, "Н/Д", "bg-secondary"},
		{"broken", "Н/Д", "bg-secondary"},
	}
	for _, c := range cases {
		text, class := dashboard.StateText(c.in)
		if text != c.text || class != c.class {
			t.Errorf("StateText(%#v): expected (%s, %s), got (%s, %s)", c.in, c.text, c.class, text, class)
		}
	}
}

func TestModeText(t *testing.T) {
	cases := []struct {
		in    any
		text  string
		class string
	}{
		{"auto", "Авто", "bg-info"},
		{"Manual", "Ручной", "bg-warning"},
		{"forced", "Принуд.", "bg-danger"},
		{json.Number("0"), "Авто", "bg-info"},
		{json.Number("1"), "Ручной", "bg-warning"},
		{json.Number("2"), "Принуд.", "bg-danger"},
		{"", "Н/Д", "bg-secondary"},
	}
	for _, c := range cases {
		text, class := dashboard.ModeText(c.in)
		if text != c.text || class != c.class {
			t.Errorf("ModeText(%#v): expected (%s, %s), got (%s, %s)", c.in, c.text, c.class, text, class)
		}
	}
}

func TestEquipmentAliases(t *testing.T) {
	r := reading(map[string]any{
		"fan_state":     "on",
		"fan_mode":      "auto",
		"heating_state": "off",
		"heating_mode":  "manual",
		"mist_state":    true,
		"watering_mode": json.Number("2"),
		"hydro_mix":     false,
	})
	eq := dashboard.Equipment(r)
	if len(eq) != 5 {
		t.Fatalf("expected 5 actuators, got %d", len(eq))
	}
	if e := equipment(eq, "fan"); e.State != "ВКЛ" || e.Mode != "Авто" {
		t.Errorf("fan: got %+v", e)
	}
	if e := equipment(eq, "heat"); e.State != "ВЫКЛ" || e.Mode != "Ручной" {
		t.Errorf("heat via heating_* aliases: got %+v", e)
	}
	if e := equipment(eq, "fog"); e.State != "ВКЛ" {
		t.Errorf("fog via mist_state: got %+v", e)
	}
	if e := equipment(eq, "pump"); e.State != "Н/Д" || e.Mode != "Принуд." {
		t.Errorf("pump: got %+v", e)
	}
	if e := equipment(eq, "hydro_mix"); e.State != "ВЫКЛ" {
		t.Errorf("hydro_mix: got %+v", e)
	}
}

func TestEquipmentPreferredFieldWins(t *testing.T) {
	r := reading(map[string]any{"heat_state": "on", "heating_state": "off"})
	if e := equipment(dashboard.Equipment(r), "heat"); e.State != "ВКЛ" {
		t.Errorf("heat_state should win over heating_state, got %+v", e)
	}
}

// ─── Extras / Build ───────────────────────────────────────────────────────────

func TestExtras(t *testing.T) {
	r := reading(map[string]any{
		"outdoor_humidity":     json.Number("71.25"),
		"solution_temperature": "19",
		"window_position":      nil,
	})
	ex := dashboard.Extras(r)
	want := map[string]string{
		"outdoor_hum":     "71.2",
		"solution_temp":   "19.0",
		"pyranometer":     "--",
		"window_position": "--",
	}
	for _, e := range ex {
		if want[e.Name] != e.Value {
			t.Errorf("%s: expected %q, got %q", e.Name, want[e.Name], e.Value)
		}
	}
}

func TestBuild(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d := dashboard.Build(reading(map[string]any{"temperature": 20.0}), model.ConnConnected, at, threshold.PolicyRange)
	if d.Status != model.ConnConnected || !d.LastUpdate.Equal(at) {
		t.Errorf("unexpected header %+v", d)
	}
	if len(d.Cards) != 8 || len(d.Equipment) != 5 || len(d.Extras) != 4 {
		t.Errorf("unexpected sizes: %d cards, %d equipment, %d extras", len(d.Cards), len(d.Equipment), len(d.Extras))
	}
}

func TestConnText(t *testing.T) {
	if dashboard.ConnText(model.ConnConnected) != "Подключено" {
		t.Error("connected text")
	}
	if dashboard.ConnText(model.ConnDisconnected) != "Нет связи" {
		t.Error("disconnected text")
	}
}
