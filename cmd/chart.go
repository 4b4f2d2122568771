package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/analyze"
	"github.com/ugagro/greenwatch/internal/chart"
	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/pipeline"
	"github.com/ugagro/greenwatch/internal/state"
)

// maxChartPoints bounds the terminal charts; longer windows are averaged down.
const maxChartPoints = 100

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Chart one metric's history in the terminal or as a PNG",
	Long: `Chart commands read the stored history of one metric within the selected
window. Without --stdin they use the saved view preferences; with --stdin
they read JSONL samples instead.

Pipeline examples:
  greenwatch series show water --range day --format jsonl | greenwatch chart plot --stdin
  greenwatch chart plot temperature --range week
  greenwatch chart png humidity --range 3days --theme dark`,
}

// chartSamples returns the samples a chart command works on: JSONL from
// stdin when requested, otherwise the session window from the store.
func chartSamples(args []string, vf viewFlags, fromStdin bool) (model.MetricID, []model.Sample, error) {
	if fromStdin {
		groups, err := pipeline.ReadRecords(os.Stdin)
		if err != nil {
			return "", nil, err
		}
		for _, id := range model.AllMetrics {
			if s, ok := groups[id]; ok {
				return id, s, nil
			}
		}
		return "", nil, fmt.Errorf("no samples on stdin")
	}
	deps, err := buildDeps()
	if err != nil {
		return "", nil, err
	}
	defer deps.Close()
	sess, err := resolveSession(deps, args, vf)
	if err != nil {
		return "", nil, err
	}
	view, err := loadView(deps, sess, time.Now())
	if err != nil {
		return "", nil, err
	}
	return view.Metric, view.Samples, nil
}

// ─── chart bar ───────────────────────────────────────────────────────────────

var (
	chartBarFlags   viewFlags
	chartBarStdin   bool
	chartBarWidth   int
	chartBarMaxBars int
)

var chartBarCmd = &cobra.Command{
	Use:   "bar [METRIC]",
	Short: "Horizontal bar chart, one bar per sample",
	Long: `Renders a horizontal bar chart with one labeled bar per sample.

Best suited for short windows. Longer windows are averaged down to at most
100 bars; use --max-bars to keep only the most recent ones.`,
	Example: `  greenwatch chart bar water --range 1h
  greenwatch chart bar wind --range day --max-bars 24`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, samples, err := chartSamples(args, chartBarFlags, chartBarStdin)
		if err != nil {
			return err
		}
		return chart.Bar(cmd.OutOrStdout(), metric.MustGet(id).Label, analyze.Downsample(samples, maxChartPoints), chart.BarOptions{
			Width:   chartBarWidth,
			MaxBars: chartBarMaxBars,
		})
	},
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var (
	chartPlotFlags  viewFlags
	chartPlotStdin  bool
	chartPlotWidth  int
	chartPlotHeight int
	chartPlotTitle  string
)

var chartPlotCmd = &cobra.Command{
	Use:   "plot [METRIC]",
	Short: "Multi-line ASCII chart with labeled axes",
	Long: `Renders a multi-line chart with Y-axis tick labels and time labels on the
X axis. Width auto-detects from $COLUMNS (falls back to 80). Override with
--width and --height.`,
	Example: `  greenwatch chart plot
  greenwatch chart plot temperature --range week --height 16
  greenwatch series show water --format jsonl | greenwatch chart plot --stdin`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, samples, err := chartSamples(args, chartPlotFlags, chartPlotStdin)
		if err != nil {
			return err
		}
		title := chartPlotTitle
		if title == "" {
			title = metric.MustGet(id).Label
		}
		return chart.Plot(cmd.OutOrStdout(), id, analyze.Downsample(samples, maxChartPoints), chart.PlotOptions{
			Width:  chartPlotWidth,
			Height: chartPlotHeight,
			Title:  title,
		})
	},
}

// ─── chart png ───────────────────────────────────────────────────────────────

var (
	chartPNGFlags  viewFlags
	chartPNGWidth  int
	chartPNGHeight int
	chartPNGTheme  string
)

var chartPNGCmd = &cobra.Command{
	Use:   "png [METRIC]",
	Short: "Render the selected window as a PNG line chart",
	Long: `Renders the selected window as a line chart image in the metric's colour
with a translucent fill and dashed guide lines at the normal range bounds.

The file is written to --out, or to ugagro_<metric>_<unix-millis>.png in the
current directory. The theme defaults to the saved preference.`,
	Example: `  greenwatch chart png
  greenwatch chart png water --range week --out water.png
  greenwatch chart png temperature --theme dark --width 1600 --height 600`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		sess, err := resolveSession(deps, args, chartPNGFlags)
		if err != nil {
			return err
		}
		theme := sess.Theme
		if chartPNGTheme != "" {
			if theme, err = state.ParseTheme(chartPNGTheme); err != nil {
				return err
			}
		}
		now := time.Now()
		view, err := loadView(deps, sess, now)
		if err != nil {
			return err
		}

		path := globalFlags.Out
		if path == "" {
			path = fmt.Sprintf("ugagro_%s_%d.png", view.Metric, now.UnixMilli())
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		err = chart.PNG(f, metric.MustGet(view.Metric), view.Samples, chart.PNGOptions{
			Width:  chartPNGWidth,
			Height: chartPNGHeight,
			Dark:   theme == state.ThemeDark,
		})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s (%d samples)\n", path, len(view.Samples))
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartBarCmd)
	chartCmd.AddCommand(chartPlotCmd)
	chartCmd.AddCommand(chartPNGCmd)

	// bar flags
	chartBarFlags.register(chartBarCmd)
	chartBarCmd.Flags().BoolVar(&chartBarStdin, "stdin", false, "read JSONL samples from stdin")
	chartBarCmd.Flags().IntVar(&chartBarWidth, "width", 0,
		"total chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartBarCmd.Flags().IntVar(&chartBarMaxBars, "max-bars", 0,
		"maximum bars to render, keeping the most recent (0 = no limit)")

	// plot flags
	chartPlotFlags.register(chartPlotCmd)
	chartPlotCmd.Flags().BoolVar(&chartPlotStdin, "stdin", false, "read JSONL samples from stdin")
	chartPlotCmd.Flags().IntVar(&chartPlotWidth, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartPlotCmd.Flags().IntVar(&chartPlotHeight, "height", 12,
		"chart height in rows (default 12)")
	chartPlotCmd.Flags().StringVar(&chartPlotTitle, "title", "",
		"chart title (default: metric label)")

	// png flags
	chartPNGFlags.register(chartPNGCmd)
	chartPNGCmd.Flags().IntVar(&chartPNGWidth, "width", 1024, "image width in pixels")
	chartPNGCmd.Flags().IntVar(&chartPNGHeight, "height", 480, "image height in pixels")
	chartPNGCmd.Flags().StringVar(&chartPNGTheme, "theme", "", "light|dark (default: saved preference)")
}
