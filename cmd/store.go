package cmd

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/pipeline"
	"github.com/ugagro/greenwatch/internal/render"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the local history database",
	Long: `Commands for inspecting and maintaining the per-metric history kept in
the local database.

Use 'greenwatch fetch' or 'greenwatch watch' to accumulate data.`,
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sample counts, sizes and time spans per metric",
	Example: `  greenwatch store stats
  greenwatch store stats --format json`,
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
		keyStats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		sizes := make(map[string]int64, len(keyStats))
		for _, ks := range keyStats {
			sizes[ks.Key] = ks.Bytes
		}

		stats := make([]model.StoreStat, 0, len(model.AllMetrics))
		total := 0
		for _, def := range metric.All() {
			samples, err := deps.Series.Load(def.ID)
			if err != nil {
				return err
			}
			st := model.StoreStat{
				Metric: def.ID,
				Key:    def.StorageKey,
				Count:  len(samples),
				Bytes:  sizes[def.StorageKey],
			}
			if n := len(samples); n > 0 {
				st.Oldest = samples[0].Timestamp.In(deps.Config.Location)
				st.Newest = samples[n-1].Timestamp.In(deps.Config.Location)
			}
			total += st.Count
			stats = append(stats, st)
		}

		result := newResult(model.KindStoreStats, "store stats", stats, total, start)
		if err := emit(cmd, deps, result); err != nil {
			return err
		}
		if resolveFormat(deps.Config.Format) == render.FormatTable && !deps.Config.Quiet {
			version, created, _ := deps.Store.SchemaInfo()
			fmt.Fprintf(cmd.ErrOrStderr(), "\n%d samples  •  cap %d per metric  •  schema v%s (created %s)  •  %s\n",
				total, deps.Series.Cap(), version, created, deps.Store.Path())
		}
		return nil
	},
}

// ─── store dump ───────────────────────────────────────────────────────────────

var storeDumpCmd = &cobra.Command{
	Use:   "dump [METRIC...]",
	Short: "Write stored samples as JSONL",
	Long: `Writes every stored sample as one JSON object per line:
{"metric":"water","timestamp":"...","value":42.5}

The output can be loaded back with 'greenwatch store load'.`,
	Example: `  greenwatch store dump > backup.jsonl
  greenwatch store dump water wind --out wind-water.jsonl`,
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		ids, err := parseMetricArgs(args)
		if err != nil {
			return err
		}
		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		for _, id := range ids {
			samples, err := deps.Series.Load(id)
			if err != nil {
				return err
			}
			if err := pipeline.WriteJSONL(w, id, samples); err != nil {
				return err
			}
		}
		return nil
	},
}

// ─── store load ───────────────────────────────────────────────────────────────

var storeLoadAppend bool

var storeLoadCmd = &cobra.Command{
	Use:   "load [FILE|-]",
	Short: "Load JSONL samples into the local history",
	Long: `Reads JSONL samples (as written by 'store dump' or '--format jsonl') from a
file or stdin and stores them. By default each metric present in the input
replaces its stored history; with --append the input is added after it.
Metrics absent from the input are left alone. Histories are trimmed to the
configured cap, keeping the newest samples.`,
	Example: `  greenwatch store load backup.jsonl
  greenwatch series show water --format jsonl | greenwatch store load - --append`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		groups, err := pipeline.ReadRecords(r)
		if err != nil {
			return err
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		for _, id := range model.AllMetrics {
			samples, ok := groups[id]
			if !ok {
				continue
			}
			if storeLoadAppend {
				existing, err := deps.Series.Load(id)
				if err != nil {
					return err
				}
				samples = append(existing, samples...)
			}
			skipped, err := deps.Series.Replace(id, samples)
			if err != nil {
				return fmt.Errorf("storing %s: %w", id, err)
			}
			if !deps.Config.Quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ %s: %d samples loaded", id, len(groups[id])-skipped)
				if skipped > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), " (%d skipped)", skipped)
				}
				fmt.Fprintln(cmd.ErrOrStderr())
			}
		}
		return nil
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var storeClearAll bool

var storeClearCmd = &cobra.Command{
	Use:   "clear [METRIC]",
	Short: "Delete the stored history of one metric, or all with --all",
	Long:  `Deletes stored samples. View preferences are kept.`,
	Example: `  greenwatch store clear water
  greenwatch store clear --all`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		if storeClearAll == (len(args) == 1) {
			return fmt.Errorf("specify exactly one of METRIC or --all")
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if storeClearAll {
			if err := deps.Series.ClearAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all metric histories")
			return nil
		}
		id, err := model.ParseMetricID(args[0])
		if err != nil {
			return err
		}
		if err := deps.Series.Clear(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", id)
		return nil
	},
}

// ─── store compact ────────────────────────────────────────────────────────────

var storeCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim space",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		before, after, err := deps.Store.Compact()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Compacted %s: %d → %d bytes\n", deps.Store.Path(), before, after)
		return nil
	},
}

// ─── store simulate ───────────────────────────────────────────────────────────

var (
	simulateCount int
	simulateStep  time.Duration
)

var storeSimulateCmd = &cobra.Command{
	Use:   "simulate [METRIC...]",
	Short: "Append generated test samples ending now",
	Long: `Appends --count generated samples per metric, spaced --step apart and
ending at the current time. Values follow a random walk inside each metric's
normal range. Useful for trying charts and exports without a controller.`,
	Example: `  greenwatch store simulate
  greenwatch store simulate water --count 500 --step 5m`,
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCount <= 0 || simulateStep <= 0 {
			return fmt.Errorf("--count and --step must be positive")
		}
		ids, err := parseMetricArgs(args)
		if err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		now := time.Now()
		for _, id := range ids {
			for _, s := range simulateSamples(id, simulateCount, simulateStep, now) {
				if err := deps.Series.Append(id, s); err != nil {
					return err
				}
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Appended %d samples to %d metrics\n", simulateCount, len(ids))
		return nil
	},
}

// simulateSamples generates n samples for id ending at now, step apart.
// Values random-walk within the metric's normal range, rounded to 2 decimals.
func simulateSamples(id model.MetricID, n int, step time.Duration, now time.Time) []model.Sample {
	def := metric.MustGet(id)
	span := def.Max - def.Min
	v := def.Min + span/2
	out := make([]model.Sample, n)
	for i := range out {
		v += (rand.Float64() - 0.5) * span * 0.1
		v = math.Max(def.Min, math.Min(def.Max, v))
		out[i] = model.Sample{
			Timestamp: now.Add(-time.Duration(n-1-i) * step),
			Value:     math.Round(v*100) / 100,
		}
	}
	return out
}

// parseMetricArgs resolves metric arguments; none means every metric.
func parseMetricArgs(args []string) ([]model.MetricID, error) {
	if len(args) == 0 {
		return model.AllMetrics, nil
	}
	ids := make([]model.MetricID, 0, len(args))
	for _, a := range args {
		id, err := model.ParseMetricID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeDumpCmd)
	storeCmd.AddCommand(storeLoadCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeCompactCmd)
	storeCmd.AddCommand(storeSimulateCmd)

	storeLoadCmd.Flags().BoolVar(&storeLoadAppend, "append", false,
		"add to the stored history instead of replacing it")
	storeClearCmd.Flags().BoolVar(&storeClearAll, "all", false, "clear every metric")
	storeSimulateCmd.Flags().IntVar(&simulateCount, "count", 50, "samples per metric")
	storeSimulateCmd.Flags().DurationVar(&simulateStep, "step", time.Minute, "spacing between samples")
}
