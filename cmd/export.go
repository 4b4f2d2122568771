package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/export"
	"github.com/ugagro/greenwatch/internal/metric"
)

var (
	exportFlags  viewFlags
	exportStdout bool
)

var exportCmd = &cobra.Command{
	Use:   "export [METRIC]",
	Short: "Export the selected window of one metric as CSV",
	Long: `Writes the samples of the selected window as a spreadsheet-friendly CSV
file: UTF-8 with a byte-order mark, a "Дата и время" timestamp column in
dd.mm.yyyy HH:MM:SS and the metric label as the value column header.

The file is written to --out, or to ugagro_<metric>_<unix-millis>.csv in the
current directory. An empty window writes nothing.`,
	Example: `  greenwatch export
  greenwatch export water --range week
  greenwatch export temperature --month 6 --year 2024 --range all --out june.csv
  greenwatch export humidity --stdout | head`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeMetrics,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		sess, err := resolveSession(deps, args, exportFlags)
		if err != nil {
			return err
		}
		now := time.Now()
		view, err := loadView(deps, sess, now)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		err = export.CSV(&buf, view.Samples, metric.MustGet(view.Metric), sess.Location)
		if errors.Is(err, export.ErrEmpty) {
			fmt.Fprintln(cmd.ErrOrStderr(), export.ErrEmpty.Error())
			return nil
		}
		if err != nil {
			return err
		}

		if exportStdout {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		path := globalFlags.Out
		if path == "" {
			path = export.Filename(view.Metric, now)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d samples to %s\n", len(view.Samples), path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportFlags.register(exportCmd)
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "write the CSV to stdout instead of a file")
}
