package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ugagro/greenwatch/internal/dashboard"
	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/threshold"
	"github.com/ugagro/greenwatch/internal/util"
)

// Appender is the write side of the series history.
type Appender interface {
	Append(id model.MetricID, s model.Sample) error
}

// Seeder is implemented by histories that can be seeded from the chart
// block of an envelope reply.
type Seeder interface {
	Load(id model.MetricID) ([]model.Sample, error)
	Replace(id model.MetricID, samples []model.Sample) (skipped int, err error)
}

// Sink receives one Update per completed cycle.
type Sink interface {
	Publish(Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

func (f SinkFunc) Publish(u Update) { f(u) }

// Update is the outcome of one fetch or push cycle.
type Update struct {
	CycleID   string
	At        time.Time
	Status    model.ConnStatus
	Dashboard *model.Dashboard // nil when the cycle failed
	Stored    int              // samples appended this cycle
	Seeded    int              // history samples seeded from chart data
	Failures  []error          // per-metric extraction or storage failures
	Err       error            // fetch or decode failure
}

// Ingestor is the single write path from a decoded reading into the
// history and out to the sink. Both the HTTP poller and the MQTT consumer
// go through it.
type Ingestor struct {
	history Appender
	sink    Sink
	policy  threshold.Policy
	now     func() time.Time
}

// NewIngestor returns an ingestor writing to history and publishing to
// sink. sink may be nil.
func NewIngestor(history Appender, sink Sink, p threshold.Policy) *Ingestor {
	return &Ingestor{history: history, sink: sink, policy: p, now: time.Now}
}

// SetClock overrides the time source.
func (in *Ingestor) SetClock(now func() time.Time) { in.now = now }

// Ingest stores and publishes one reading under a fresh cycle ID.
func (in *Ingestor) Ingest(r *model.Reading) Update {
	return in.ingest(uuid.NewString(), r, in.now())
}

// ingest extracts every metric, appends each one that extracted cleanly and
// publishes the resulting dashboard. A failing metric is logged and
// collected; it never stops the others.
func (in *Ingestor) ingest(cycleID string, r *model.Reading, at time.Time) Update {
	var failures util.MultiError
	seeded := in.seed(cycleID, r, at)
	stored := 0
	for _, d := range metric.All() {
		v, err := d.Extract(r)
		if err != nil {
			failures.Add(err)
			level := slog.LevelWarn
			if errors.Is(err, metric.ErrFieldMissing) {
				level = slog.LevelDebug
			}
			slog.Log(context.Background(), level, "extraction_failed", "cycle", cycleID, "metric", d.ID, "error", err)
			continue
		}
		if err := in.history.Append(d.ID, model.Sample{Timestamp: at, Value: v}); err != nil {
			failures.Add(err)
			slog.Error("append_failed", "cycle", cycleID, "metric", d.ID, "error", err)
			continue
		}
		stored++
	}

	dash := dashboard.Build(r, model.ConnConnected, at, in.policy)
	u := Update{
		CycleID:   cycleID,
		At:        at,
		Status:    model.ConnConnected,
		Dashboard: &dash,
		Stored:    stored,
		Seeded:    seeded,
		Failures:  failures.Errors,
	}
	slog.Debug("cycle_ingested", "cycle", cycleID, "stored", stored, "failures", len(failures.Errors))
	in.publish(u)
	return u
}

// seed fills metrics that have no stored samples from the reading's chart
// data. Points at or after at are dropped so the live sample stays last.
// Metrics that already have history are never touched.
func (in *Ingestor) seed(cycleID string, r *model.Reading, at time.Time) int {
	sd, ok := in.history.(Seeder)
	if !ok || r == nil || r.History == nil {
		return 0
	}
	total := 0
	for _, d := range metric.All() {
		existing, err := sd.Load(d.ID)
		if err != nil || len(existing) > 0 {
			continue
		}
		var samples []model.Sample
		for _, s := range d.History(r.History) {
			if s.Timestamp.Before(at) {
				samples = append(samples, s)
			}
		}
		if len(samples) == 0 {
			continue
		}
		skipped, err := sd.Replace(d.ID, samples)
		if err != nil {
			slog.Error("seed_failed", "cycle", cycleID, "metric", d.ID, "error", err)
			continue
		}
		total += len(samples) - skipped
	}
	if total > 0 {
		slog.Info("history_seeded", "cycle", cycleID, "samples", total)
	}
	return total
}

func (in *Ingestor) publish(u Update) {
	if in.sink != nil {
		in.sink.Publish(u)
	}
}

// Consume ingests every reading from ch until ctx is done or ch is closed.
func (in *Ingestor) Consume(ctx context.Context, ch <-chan *model.Reading) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-ch:
			if !ok {
				return
			}
			in.Ingest(r)
		}
	}
}
