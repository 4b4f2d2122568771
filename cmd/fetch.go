package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/app"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/poller"
	"github.com/ugagro/greenwatch/internal/render"
)

// ─── fetch ────────────────────────────────────────────────────────────────────

var fetchHours int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh cycle and print the dashboard",
	Long: `Fetches the latest reading from the webhook once, appends every metric
that parsed cleanly to the local history and prints the dashboard.

Metrics missing from the payload keep their history untouched; a failed
fetch changes nothing on disk.

With --hours the webhook is asked for chart history as well. Metrics that
have no stored samples yet are seeded from it; existing histories are left
alone.`,
	Example: `  greenwatch fetch
  greenwatch fetch --format json
  greenwatch fetch --hours 24
  greenwatch fetch --endpoint http://greenhouse.local:5678/webhook/greenhouse-data`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.Config.Validate(); err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		p := poller.New(deps.Client, deps.Ingestor(nil), poller.Options{Hours: fetchHours})
		u, err := p.Cycle(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch failed (%s): %w", u.Status, err)
		}
		result := newResult(model.KindDashboard, "fetch", u.Dashboard, len(u.Dashboard.Cards), start)
		for _, f := range u.Failures {
			result.Warnings = append(result.Warnings, f.Error())
		}
		if u.Seeded > 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("seeded %d history samples from the webhook's chart data", u.Seeded))
		}
		return emit(cmd, deps, result)
	},
}

// ─── watch ────────────────────────────────────────────────────────────────────

var (
	watchInterval time.Duration
	watchHours    int
	watchMQTT     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh continuously and print the dashboard after every cycle",
	Long: `Polls the webhook once immediately and then every refresh interval
(default 30s) until interrupted. A cycle that is still outstanding when the
next tick fires causes that tick to be skipped. Failed cycles print the
connection status and keep the stored history unchanged.

With --mqtt, readings are pushed by the controller over MQTT instead
(broker from mqtt_broker in config.json) and go through the same storage
path.`,
	Example: `  greenwatch watch
  greenwatch watch --interval 1m
  greenwatch watch --mqtt
  greenwatch watch --format jsonl >> cards.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if watchInterval > 0 {
			deps.Config.RefreshInterval = watchInterval
		}
		if !watchMQTT {
			if err := deps.Config.Validate(); err != nil {
				return err
			}
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		format := resolveFormat(deps.Config.Format)
		if err := validateFormat(format); err != nil {
			return err
		}
		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sink := &dashboardSink{w: w, format: format, quiet: deps.Config.Quiet}
		if watchMQTT {
			return watchPush(ctx, deps, sink)
		}
		return watchPoll(ctx, deps, sink)
	},
}

func watchPoll(ctx context.Context, deps *app.Deps, sink *dashboardSink) error {
	p := poller.New(deps.Client, deps.Ingestor(sink), poller.Options{
		Interval: deps.Config.RefreshInterval,
		Hours:    watchHours,
	})
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	<-p.Done()
	return nil
}

func watchPush(ctx context.Context, deps *app.Deps, sink *dashboardSink) error {
	sub, err := deps.Subscriber()
	if err != nil {
		return err
	}
	if err := sub.Start(ctx); err != nil {
		return err
	}
	deps.Ingestor(sink).Consume(ctx, sub.Readings())
	if n := sub.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "%d malformed MQTT messages dropped\n", n)
	}
	return nil
}

// dashboardSink renders every update as it arrives. Failed cycles print a
// one-line status instead of a dashboard.
type dashboardSink struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	quiet  bool
}

func (s *dashboardSink) Publish(u poller.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Dashboard == nil {
		if !s.quiet {
			fmt.Fprintf(os.Stderr, "%s  %s: %v\n", u.At.Format(render.TimeLayout), u.Status, u.Err)
		}
		return
	}
	result := newResult(model.KindDashboard, "watch", u.Dashboard, len(u.Dashboard.Cards), u.At)
	if err := render.Render(s.w, result, s.format); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
	}
	if s.format == render.FormatTable {
		fmt.Fprintln(s.w)
	}
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(watchCmd)

	fetchCmd.Flags().IntVar(&fetchHours, "hours", 0,
		"ask the webhook for this many hours of chart history to seed empty metrics (0 = none)")

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0,
		"refresh interval (default: refresh_interval from config, 30s)")
	watchCmd.Flags().IntVar(&watchHours, "hours", 0,
		"ask the webhook for this many hours of chart history to seed empty metrics (0 = none)")
	watchCmd.Flags().BoolVar(&watchMQTT, "mqtt", false,
		"subscribe to the controller's MQTT topic instead of polling")
}
