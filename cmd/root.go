// Package cmd implements the greenwatch CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/app"
	"github.com/ugagro/greenwatch/internal/config"
	"github.com/ugagro/greenwatch/internal/threshold"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Endpoint string
	Format   string
	Out      string
	DBPath   string
	Policy   string
	Timeout  string
	Rate     float64
	Quiet    bool
	Verbose  bool
	Debug    bool
}

// rootCmd is the base command. Running `greenwatch` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "greenwatch",
	Short: "greenwatch: greenhouse climate monitoring from the terminal",
	Long: `greenwatch polls a greenhouse automation webhook (or subscribes to the
controller's MQTT topic), keeps a capped local history per sensor, classifies
every reading against its normal range and shows the live dashboard.

Quick start:
  greenwatch config init                 # create config.json with the webhook URL
  greenwatch fetch                       # one refresh, print the dashboard
  greenwatch watch                       # refresh every 30s until Ctrl-C
  greenwatch series show water --range day
  greenwatch export humidity --range week`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog handler on stderr.
// --debug lowers the level to debug, --quiet raises it to warn.
func setupLogging() {
	level := slog.LevelInfo
	switch {
	case globalFlags.Debug:
		level = slog.LevelDebug
	case globalFlags.Quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.Endpoint)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.DBPath != "" {
		cfg.DBPath = globalFlags.DBPath
	}
	if globalFlags.Policy != "" {
		p, err := threshold.ParsePolicy(globalFlags.Policy)
		if err != nil {
			return nil, err
		}
		cfg.Policy = p
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout %q: %w", globalFlags.Timeout, err)
		}
		cfg.Timeout = d
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}

	return app.New(cfg), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Endpoint, "endpoint", "",
		"webhook URL (overrides env GREENWATCH_ENDPOINT and config.json)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.DBPath, "db", "",
		"local database path (overrides env GREENWATCH_DB_PATH and config.json)")
	pf.StringVar(&globalFlags.Policy, "policy", "",
		"threshold policy: range|watermark (default: range)")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 10s, 1m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max webhook requests per second (default: 1.0)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests, responses and cycle events")
}
