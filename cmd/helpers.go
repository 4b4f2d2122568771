package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/app"
	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/query"
	"github.com/ugagro/greenwatch/internal/render"
	"github.com/ugagro/greenwatch/internal/state"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// validateFormat rejects --format values no renderer understands.
func validateFormat(format string) error {
	for _, f := range render.Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(render.Formats, ", "))
}

// outputWriter returns the --out file when set, otherwise def. The returned
// close function is always safe to call.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data any, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// emit renders result to --out or stdout and prints the footer.
func emit(cmd *cobra.Command, deps *app.Deps, result *model.Result) error {
	format := resolveFormat(deps.Config.Format)
	if err := validateFormat(format); err != nil {
		return err
	}
	if err := render.RenderTo(globalFlags.Out, result, format); err != nil {
		return err
	}
	if !deps.Config.Quiet {
		render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
	}
	return nil
}

// ─── View selection ───────────────────────────────────────────────────────────

// viewFlags are the window selectors shared by series, chart and export
// commands. Empty values fall back to the persisted preferences.
type viewFlags struct {
	Range string
	Month int
	Year  int
}

func (v *viewFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&v.Range, "range", "",
		"time window: 1h|12h|day|3days|week|all or hours (default: saved preference)")
	c.Flags().IntVar(&v.Month, "month", 0, "only samples from this calendar month (1-12, needs --year)")
	c.Flags().IntVar(&v.Year, "year", 0, "only samples from this calendar year (needs --month)")
}

// resolveSession opens the store and builds the active view from saved
// preferences, an optional metric argument and the window flags.
func resolveSession(deps *app.Deps, args []string, vf viewFlags) (*state.Session, error) {
	if err := deps.RequireStore(); err != nil {
		return nil, err
	}
	prefs, err := deps.Prefs.Load()
	if err != nil {
		return nil, err
	}
	sess := state.NewSession(prefs, deps.Config.Location)
	if len(args) > 0 {
		id, err := model.ParseMetricID(args[0])
		if err != nil {
			return nil, err
		}
		sess.Metric = id
	}
	if vf.Range != "" {
		h, err := query.ParseRange(vf.Range)
		if err != nil {
			return nil, err
		}
		sess.RangeHours = h
	}
	if err := sess.SetMonthYear(vf.Month, vf.Year); err != nil {
		return nil, err
	}
	return sess, nil
}

// loadView reads the session's metric history and filters it to the
// session window as of now. Timestamps are moved into the display zone.
func loadView(deps *app.Deps, sess *state.Session, now time.Time) (*model.SeriesView, error) {
	def, ok := metric.Get(sess.Metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", sess.Metric)
	}
	samples, err := deps.Series.Load(sess.Metric)
	if err != nil {
		return nil, err
	}
	filtered := sess.View(samples, now)
	for i := range filtered {
		filtered[i].Timestamp = filtered[i].Timestamp.In(sess.Location)
	}
	return &model.SeriesView{
		Metric:  def.ID,
		Label:   def.Label,
		Unit:    def.Unit,
		Hours:   sess.RangeHours,
		Month:   sess.Month,
		Year:    sess.Year,
		Samples: filtered,
	}, nil
}

// completeMetrics offers metric IDs for shell completion.
func completeMetrics(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return model.MetricNames(), cobra.ShellCompDirectiveNoFileComp
}
