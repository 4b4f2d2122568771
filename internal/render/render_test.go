package render_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ugagro/greenwatch/internal/analyze"
	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/render"
	"github.com/ugagro/greenwatch/internal/threshold"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func seriesResult() *model.Result {
	return &model.Result{
		Kind: model.KindSeries,
		Data: &model.SeriesView{
			Metric: model.Temperature,
			Label:  "Температура (°C)",
			Hours:  24,
			Samples: []model.Sample{
				{Timestamp: t0, Value: 21.5},
				{Timestamp: t0.Add(time.Minute), Value: 22},
			},
		},
	}
}

func TestRenderSeriesTable(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, seriesResult(), render.FormatTable); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Температура", "last 24h", "2 samples", "01.06.2024 08:00:00", "21.5", "22.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSeriesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, seriesResult(), render.FormatCSV); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[0] != "timestamp,value" {
		t.Errorf("unexpected csv:\n%s", buf.String())
	}
}

func TestRenderSeriesTSVAndMarkdown(t *testing.T) {
	var buf bytes.Buffer
	_ = render.Render(&buf, seriesResult(), render.FormatTSV)
	if !strings.HasPrefix(buf.String(), "timestamp\tvalue\n") {
		t.Errorf("unexpected tsv:\n%s", buf.String())
	}
	buf.Reset()
	_ = render.Render(&buf, seriesResult(), render.FormatMD)
	if !strings.HasPrefix(buf.String(), "| TIMESTAMP | VALUE |\n|---|---|\n") {
		t.Errorf("unexpected markdown:\n%s", buf.String())
	}
}

func TestRenderSeriesJSONL(t *testing.T) {
	var buf bytes.Buffer
	_ = render.Render(&buf, seriesResult(), render.FormatJSONL)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"metric":"temperature"`) {
		t.Errorf("unexpected jsonl:\n%s", buf.String())
	}
}

func TestRenderDashboardTable(t *testing.T) {
	d := &model.Dashboard{
		Status:     model.ConnConnected,
		LastUpdate: t0,
		Cards: []model.Card{
			{Metric: model.WaterLevel, Label: "Уровень воды (%)", Value: "3.0", Unit: "%", Status: model.StatusCritical},
		},
		Equipment: []model.Equipment{{Name: "fan", Label: "Вентилятор", State: "ВКЛ", Mode: "Авто"}},
		Extras:    []model.Extra{{Name: "pyranometer", Label: "Пиранометр", Value: "--"}},
	}
	var buf bytes.Buffer
	if err := render.Render(&buf, &model.Result{Kind: model.KindDashboard, Data: d}, render.FormatTable); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Подключено", "critical", "Вентилятор", "ВКЛ", "Пиранометр"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryJSONNullsNaN(t *testing.T) {
	sum := analyze.Summarize(metric.MustGet(model.Solar), nil, threshold.PolicyRange)
	res := &model.Result{Kind: model.KindSummary, Data: []analyze.Summary{sum}}
	var buf bytes.Buffer
	if err := render.Render(&buf, res, render.FormatJSON); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var decoded struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Data) != 1 || decoded.Data[0]["mean"] != nil {
		t.Errorf("NaN mean should encode as null: %+v", decoded.Data)
	}
}

func TestRenderTableKind(t *testing.T) {
	res := &model.Result{Kind: model.KindTable, Data: &render.Table{
		Header: []string{"KEY", "VALUE"},
		Rows:   [][]string{{"theme", "dark"}},
	}}
	var buf bytes.Buffer
	_ = render.Render(&buf, res, render.FormatCSV)
	if buf.String() != "key,value\ntheme,dark\n" {
		t.Errorf("unexpected csv: %q", buf.String())
	}
}

func TestPrintFooter(t *testing.T) {
	res := seriesResult()
	res.Warnings = []string{"2 samples dropped"}
	res.Stats.Items = 2
	var buf bytes.Buffer
	render.PrintFooter(&buf, res, true)
	out := buf.String()
	if !strings.Contains(out, "2 samples dropped") || !strings.Contains(out, "2 items") {
		t.Errorf("unexpected footer: %q", out)
	}
}
