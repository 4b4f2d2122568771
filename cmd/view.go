package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/app"
	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/query"
	"github.com/ugagro/greenwatch/internal/render"
	"github.com/ugagro/greenwatch/internal/state"
)

// openPrefs opens the store for a preferences command.
func openPrefs() (*app.Deps, error) {
	deps, err := buildDeps()
	if err != nil {
		return nil, err
	}
	if err := deps.RequireStore(); err != nil {
		return nil, err
	}
	return deps, nil
}

// ─── view ─────────────────────────────────────────────────────────────────────

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show or change the saved metric and time window",
	Long: `The selected metric and time window are saved in the local database and
used by series, chart and export when no metric or --range is given.`,
}

var viewShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved view preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openPrefs()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		p, err := deps.Prefs.Load()
		if err != nil {
			return err
		}
		label := string(p.Metric)
		if def, ok := metric.Get(p.Metric); ok {
			label = def.Label
		}
		tbl := &render.Table{
			Header: []string{"KEY", "VALUE"},
			Rows: [][]string{
				{"metric", string(p.Metric)},
				{"label", label},
				{"range", query.RangeLabel(p.RangeHours)},
				{"theme", string(p.Theme)},
			},
		}
		return emit(cmd, deps, newResult(model.KindTable, "view show", tbl, len(tbl.Rows), start))
	},
}

var viewMetricCmd = &cobra.Command{
	Use:               "metric <METRIC>",
	Short:             "Select the metric shown by default",
	Example:           "  greenwatch view metric water",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := model.ParseMetricID(args[0])
		if err != nil {
			return err
		}
		deps, err := openPrefs()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Prefs.SetMetric(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Metric set to %s\n", id)
		return nil
	},
}

var viewRangeCmd = &cobra.Command{
	Use:   "range <RANGE>",
	Short: "Select the time window shown by default",
	Example: `  greenwatch view range week
  greenwatch view range all
  greenwatch view range 6`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"1h", "12h", "day", "3days", "week", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := query.ParseRange(args[0])
		if err != nil {
			return err
		}
		deps, err := openPrefs()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Prefs.SetRange(h); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Range set to %s\n", query.RangeLabel(h))
		return nil
	},
}

// ─── theme ────────────────────────────────────────────────────────────────────

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show or change the saved display theme",
	Long:  `The theme selects the colour scheme of PNG charts.`,
}

var themeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openPrefs()
		if err != nil {
			return err
		}
		defer deps.Close()
		p, err := deps.Prefs.Load()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.Theme)
		return nil
	},
}

var themeSetCmd = &cobra.Command{
	Use:       "set <light|dark>",
	Short:     "Save the theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(state.ThemeLight), string(state.ThemeDark)},
	RunE: func(cmd *cobra.Command, args []string) error {
		th, err := state.ParseTheme(args[0])
		if err != nil {
			return err
		}
		deps, err := openPrefs()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Prefs.SetTheme(th); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Theme set to %s\n", th)
		return nil
	},
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Switch between light and dark",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openPrefs()
		if err != nil {
			return err
		}
		defer deps.Close()
		th, err := deps.Prefs.ToggleTheme()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Theme set to %s\n", th)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.AddCommand(viewShowCmd)
	viewCmd.AddCommand(viewMetricCmd)
	viewCmd.AddCommand(viewRangeCmd)

	rootCmd.AddCommand(themeCmd)
	themeCmd.AddCommand(themeShowCmd)
	themeCmd.AddCommand(themeSetCmd)
	themeCmd.AddCommand(themeToggleCmd)
}
