// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/ugagro/greenwatch/internal/analyze"
	"github.com/ugagro/greenwatch/internal/dashboard"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/pipeline"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// TimeLayout is the display layout for timestamps in tables.
const TimeLayout = "02.01.2006 15:04:05"

// Table is free-form tabular data for KindTable results.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── Tabular projection ───────────────────────────────────────────────────────

// tabulate flattens a result into a header and rows shared by the table,
// delimited and markdown renderers. ok is false for payloads without a
// tabular shape.
func tabulate(result *model.Result) (header []string, rows [][]string, ok bool) {
	switch d := result.Data.(type) {
	case *model.SeriesView:
		header = []string{"TIMESTAMP", "VALUE"}
		for _, s := range d.Samples {
			rows = append(rows, []string{s.Timestamp.Format(TimeLayout), formatValue(s.Value)})
		}
		return header, rows, true

	case *model.Dashboard:
		header = []string{"METRIC", "VALUE", "UNIT", "STATUS"}
		for _, c := range d.Cards {
			rows = append(rows, []string{c.Label, c.Value, c.Unit, string(c.Status)})
		}
		return header, rows, true

	case []model.StoreStat:
		header = []string{"METRIC", "KEY", "COUNT", "BYTES", "OLDEST", "NEWEST"}
		for _, s := range d {
			rows = append(rows, []string{
				string(s.Metric), s.Key,
				strconv.Itoa(s.Count), strconv.FormatInt(s.Bytes, 10),
				formatTime(s.Oldest), formatTime(s.Newest),
			})
		}
		return header, rows, true

	case []analyze.Summary:
		header = []string{"METRIC", "COUNT", "MEAN", "STD", "MIN", "MEDIAN", "MAX", "LAST", "CHANGE", "WARN", "CRIT"}
		for _, s := range d {
			rows = append(rows, []string{
				string(s.Metric), strconv.Itoa(s.Count),
				formatValue(s.Mean), formatValue(s.Std),
				formatValue(s.Min), formatValue(s.Median), formatValue(s.Max),
				formatValue(s.Last), formatValue(s.Change),
				strconv.Itoa(s.Warning), strconv.Itoa(s.Critical),
			})
		}
		return header, rows, true

	case *Table:
		return d.Header, d.Rows, true
	}
	return nil, nil, false
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sanitize(result))
}

// sanitize swaps summary payloads for a form whose NaN statistics encode
// as null. encoding/json rejects NaN.
func sanitize(result *model.Result) *model.Result {
	sums, ok := result.Data.([]analyze.Summary)
	if !ok {
		return result
	}
	out := *result
	clean := make([]summaryJSON, len(sums))
	for i, s := range sums {
		clean[i] = toSummaryJSON(s)
	}
	out.Data = clean
	return &out
}

// summaryJSON mirrors analyze.Summary with nullable floats.
type summaryJSON struct {
	Metric    model.MetricID `json:"metric"`
	Label     string         `json:"label"`
	Unit      string         `json:"unit"`
	Count     int            `json:"count"`
	Mean      *float64       `json:"mean"`
	Std       *float64       `json:"std"`
	Min       *float64       `json:"min"`
	P25       *float64       `json:"p25"`
	Median    *float64       `json:"median"`
	P75       *float64       `json:"p75"`
	Max       *float64       `json:"max"`
	First     *float64       `json:"first"`
	Last      *float64       `json:"last"`
	Change    *float64       `json:"change"`
	ChangePct *float64       `json:"change_pct"`
	FirstAt   *time.Time     `json:"first_at,omitempty"`
	LastAt    *time.Time     `json:"last_at,omitempty"`
	Warning   int            `json:"warning"`
	Critical  int            `json:"critical"`
}

func toSummaryJSON(s analyze.Summary) summaryJSON {
	f := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	t := func(v time.Time) *time.Time {
		if v.IsZero() {
			return nil
		}
		return &v
	}
	return summaryJSON{
		Metric: s.Metric, Label: s.Label, Unit: s.Unit, Count: s.Count,
		Mean: f(s.Mean), Std: f(s.Std), Min: f(s.Min), P25: f(s.P25),
		Median: f(s.Median), P75: f(s.P75), Max: f(s.Max),
		First: f(s.First), Last: f(s.Last), Change: f(s.Change), ChangePct: f(s.ChangePct),
		FirstAt: t(s.FirstAt), LastAt: t(s.LastAt),
		Warning: s.Warning, Critical: s.Critical,
	}
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func renderJSONL(w io.Writer, result *model.Result) error {
	switch d := result.Data.(type) {
	case *model.SeriesView:
		return pipeline.WriteJSONL(w, d.Metric, d.Samples)
	case *model.Dashboard:
		enc := json.NewEncoder(w)
		for _, c := range d.Cards {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case []model.StoreStat:
		enc := json.NewEncoder(w)
		for _, s := range d {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	case []analyze.Summary:
		enc := json.NewEncoder(w)
		for _, s := range d {
			if err := enc.Encode(toSummaryJSON(s)); err != nil {
				return err
			}
		}
		return nil
	default:
		return json.NewEncoder(w).Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	if d, ok := result.Data.(*model.Dashboard); ok {
		return renderDashboardTable(w, d)
	}
	header, rows, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	if sv, ok := result.Data.(*model.SeriesView); ok {
		fmt.Fprintf(w, "%s  [%s]\n", sv.Label, seriesScope(sv))
	}
	writeTable(w, header, rows)
	return nil
}

func renderDashboardTable(w io.Writer, d *model.Dashboard) error {
	updated := dashboard.Missing
	if !d.LastUpdate.IsZero() {
		updated = d.LastUpdate.Format(TimeLayout)
	}
	fmt.Fprintf(w, "%s  •  %s\n", dashboard.ConnText(d.Status), updated)

	header, rows, _ := tabulate(&model.Result{Data: d})
	writeTable(w, header, rows)

	if len(d.Equipment) > 0 {
		fmt.Fprintln(w)
		rows = nil
		for _, e := range d.Equipment {
			rows = append(rows, []string{e.Label, e.State, e.Mode})
		}
		writeTable(w, []string{"EQUIPMENT", "STATE", "MODE"}, rows)
	}
	if len(d.Extras) > 0 {
		fmt.Fprintln(w)
		rows = nil
		for _, x := range d.Extras {
			rows = append(rows, []string{x.Label, x.Value})
		}
		writeTable(w, []string{"READING", "VALUE"}, rows)
	}
	return nil
}

func writeTable(w io.Writer, header []string, rows [][]string) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
}

func seriesScope(sv *model.SeriesView) string {
	var parts []string
	if sv.Hours > 0 {
		parts = append(parts, fmt.Sprintf("last %dh", sv.Hours))
	} else {
		parts = append(parts, "all")
	}
	if sv.Month > 0 && sv.Year > 0 {
		parts = append(parts, fmt.Sprintf("%02d.%d", sv.Month, sv.Year))
	}
	parts = append(parts, fmt.Sprintf("%d samples", len(sv.Samples)))
	return strings.Join(parts, " • ")
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	header, rows, ok := tabulate(result)
	if ok {
		lower := make([]string, len(header))
		for i, h := range header {
			lower[i] = strings.ToLower(h)
		}
		_ = cw.Write(lower)
		for _, r := range rows {
			_ = cw.Write(r)
		}
	} else {
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	header, rows, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(header, " | "))
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(sep, "|"))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatValue formats a sample value for display.
// Always shows at least one decimal place (e.g. 4.0, not 4).
// Trims unnecessary trailing zeros beyond the first (e.g. 3.400000 → 3.4).
// NaN renders as the dashboard placeholder.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return dashboard.Missing
	}
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
