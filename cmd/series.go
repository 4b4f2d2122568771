package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/analyze"
	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/render"
	"github.com/ugagro/greenwatch/internal/threshold"
)

// ─── status ───────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest stored sample of every metric with its status",
	Long: `Reads the most recent stored sample of every metric from the local
history and classifies it against the metric's normal range. Works offline;
run 'greenwatch fetch' to refresh.`,
	Example: `  greenwatch status
  greenwatch status --policy watermark
  greenwatch status --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		loc := deps.Config.Location
		tbl := &render.Table{Header: []string{"METRIC", "VALUE", "UNIT", "STATUS", "AT"}}
		var statuses []model.Status
		for _, def := range metric.All() {
			s, ok, err := deps.Series.Latest(def.ID)
			if err != nil {
				return err
			}
			if !ok {
				tbl.Rows = append(tbl.Rows, []string{def.Label, "--", def.Unit, string(model.StatusUnknown), ""})
				statuses = append(statuses, model.StatusUnknown)
				continue
			}
			st := threshold.ClassifyValue(def, s.Value, deps.Config.Policy)
			statuses = append(statuses, st)
			tbl.Rows = append(tbl.Rows, []string{
				def.Label,
				strconv.FormatFloat(s.Value, 'f', 1, 64),
				def.Unit,
				string(st),
				s.Timestamp.In(loc).Format(render.TimeLayout),
			})
		}
		result := newResult(model.KindTable, "status", tbl, len(tbl.Rows), start)
		if worst := threshold.Worst(statuses...); worst == model.StatusCritical || worst == model.StatusWarning {
			result.Warnings = append(result.Warnings, fmt.Sprintf("overall status: %s (policy %s)", worst, deps.Config.Policy))
		}
		return emit(cmd, deps, result)
	},
}

// ─── series ───────────────────────────────────────────────────────────────────

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Read the locally stored metric history",
	Long: `Commands for reading the capped per-metric history accumulated by
fetch and watch. The metric and window default to the saved view
preferences (see 'greenwatch view').`,
}

var seriesShowFlags viewFlags

var seriesShowCmd = &cobra.Command{
	Use:   "show [METRIC]",
	Short: "Print the samples of one metric within the selected window",
	Example: `  greenwatch series show
  greenwatch series show water --range day
  greenwatch series show temperature --month 6 --year 2024 --range all
  greenwatch series show humidity --format jsonl | greenwatch store load -`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		sess, err := resolveSession(deps, args, seriesShowFlags)
		if err != nil {
			return err
		}
		view, err := loadView(deps, sess, time.Now())
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindSeries, "series show "+string(view.Metric), view, len(view.Samples), start))
	},
}

var seriesStatsFlags viewFlags

var seriesStatsCmd = &cobra.Command{
	Use:   "stats [METRIC...]",
	Short: "Summary statistics of one or more metrics within the selected window",
	Long: `Computes count, mean, standard deviation, quartiles, min/max, first/last
and change over the selected window, and counts how many samples fell into
the warning and critical bands. Without arguments every metric is
summarised.`,
	Example: `  greenwatch series stats
  greenwatch series stats water wind --range week
  greenwatch series stats --format json`,
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		ids, err := parseMetricArgs(args)
		if err != nil {
			return err
		}

		sums := make([]analyze.Summary, 0, len(ids))
		for _, id := range ids {
			sess, err := resolveSession(deps, []string{string(id)}, seriesStatsFlags)
			if err != nil {
				return err
			}
			view, err := loadView(deps, sess, time.Now())
			if err != nil {
				return err
			}
			sums = append(sums, analyze.Summarize(metric.MustGet(id), view.Samples, deps.Config.Policy))
		}
		return emit(cmd, deps, newResult(model.KindSummary, "series stats", sums, len(sums), start))
	},
}

var (
	seriesTrendFlags  viewFlags
	seriesTrendMethod string
)

var seriesTrendCmd = &cobra.Command{
	Use:   "trend [METRIC]",
	Short: "Fit a trend line to one metric within the selected window",
	Long: `Fits a linear (least squares) or Theil-Sen trend to the selected window
and reports the slope per hour and per day, R² and the direction.`,
	Example: `  greenwatch series trend water --range 3days
  greenwatch series trend temperature --method theil-sen`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		sess, err := resolveSession(deps, args, seriesTrendFlags)
		if err != nil {
			return err
		}
		view, err := loadView(deps, sess, time.Now())
		if err != nil {
			return err
		}
		tr, err := analyze.Trend(view.Metric, view.Samples, analyze.TrendMethod(seriesTrendMethod))
		if err != nil {
			return err
		}
		f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
		tbl := &render.Table{
			Header: []string{"METRIC", "METHOD", "SLOPE/H", "SLOPE/DAY", "R2", "DIRECTION"},
			Rows: [][]string{{
				string(tr.Metric), string(tr.Method),
				f(tr.Slope), f(tr.SlopePerDay), f(tr.R2), tr.Direction,
			}},
		}
		return emit(cmd, deps, newResult(model.KindTable, "series trend", tbl, len(view.Samples), start))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.AddCommand(seriesShowCmd)
	seriesCmd.AddCommand(seriesStatsCmd)
	seriesCmd.AddCommand(seriesTrendCmd)

	seriesShowFlags.register(seriesShowCmd)
	seriesStatsFlags.register(seriesStatsCmd)
	seriesTrendFlags.register(seriesTrendCmd)
	seriesTrendCmd.Flags().StringVar(&seriesTrendMethod, "method", string(analyze.TrendLinear),
		"regression method: linear|theil-sen")
}
