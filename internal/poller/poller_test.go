package poller_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/poller"
	"github.com/ugagro/greenwatch/internal/series"
	"github.com/ugagro/greenwatch/internal/source"
	"github.com/ugagro/greenwatch/internal/store"
	"github.com/ugagro/greenwatch/internal/threshold"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func testSeries(t *testing.T) *series.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return series.New(s, 0)
}

// fullReading has a numeric value for every metric.
func fullReading() *model.Reading {
	return &model.Reading{Fields: map[string]any{
		"temperature":     22.0,
		"humidity":        55.0,
		"outdoor_temp":    10.0,
		"solar_radiation": 3000.0,
		"mat_temp":        18.0,
		"mat_ec":          2.1,
		"water_level":     60.0,
		"wind_speed":      3.0,
		"fan_state":       "on",
	}}
}

type recorder struct {
	mu      sync.Mutex
	updates []poller.Update
}

func (r *recorder) Publish(u poller.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []poller.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]poller.Update(nil), r.updates...)
}

// fakeFetcher returns queued results in order, then repeats the last one.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int32
	block   chan struct{} // when non-nil, Fetch waits on it
	started chan struct{} // when non-nil, receives once per Fetch call
}

type fetchResult struct {
	r   *model.Reading
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, hours int) (*model.Reading, error) {
	n := int(f.calls.Add(1))
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := n - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	res := f.results[idx]
	return res.r, res.err
}

func netErr() error { return fmt.Errorf("%w: connection refused", source.ErrNetwork) }

// ─── Ingestor ─────────────────────────────────────────────────────────────────

func TestIngestStoresAllMetrics(t *testing.T) {
	hist := testSeries(t)
	rec := &recorder{}
	in := poller.NewIngestor(hist, rec, threshold.PolicyRange)

	u := in.Ingest(fullReading())
	if u.Stored != 8 || len(u.Failures) != 0 {
		t.Fatalf("expected 8 stored, 0 failures; got %d, %v", u.Stored, u.Failures)
	}
	if u.CycleID == "" {
		t.Error("cycle ID should be set")
	}
	counts, _ := hist.Counts()
	for _, id := range model.AllMetrics {
		if counts[id] != 1 {
			t.Errorf("%s: expected 1 sample, got %d", id, counts[id])
		}
	}
	solar, _ := hist.Load(model.Solar)
	if solar[0].Value != 300 {
		t.Errorf("solar should be stored divided by 10, got %g", solar[0].Value)
	}
	if len(rec.all()) != 1 {
		t.Errorf("expected one published update, got %d", len(rec.all()))
	}
}

func TestIngestMissingFieldDoesNotBlockOthers(t *testing.T) {
	hist := testSeries(t)
	in := poller.NewIngestor(hist, nil, threshold.PolicyRange)

	r := fullReading()
	delete(r.Fields, "wind_speed")
	u := in.Ingest(r)

	if u.Stored != 7 {
		t.Errorf("expected 7 stored, got %d", u.Stored)
	}
	if len(u.Failures) != 1 || !errors.Is(u.Failures[0], metric.ErrFieldMissing) {
		t.Errorf("expected one ErrFieldMissing failure, got %v", u.Failures)
	}
	if wind, _ := hist.Load(model.WindSpeed); len(wind) != 0 {
		t.Error("wind should have no samples")
	}
}

func TestIngestSharedTimestamp(t *testing.T) {
	hist := testSeries(t)
	in := poller.NewIngestor(hist, nil, threshold.PolicyRange)
	at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	in.SetClock(func() time.Time { return at })
	in.Ingest(fullReading())

	for _, id := range model.AllMetrics {
		s, _ := hist.Load(id)
		if len(s) != 1 || !s[0].Timestamp.Equal(at) {
			t.Errorf("%s: expected one sample at %v, got %+v", id, at, s)
		}
	}
}

func TestConsume(t *testing.T) {
	hist := testSeries(t)
	in := poller.NewIngestor(hist, nil, threshold.PolicyRange)
	ch := make(chan *model.Reading, 3)
	ch <- fullReading()
	ch <- fullReading()
	close(ch)

	in.Consume(context.Background(), ch)
	temp, _ := hist.Load(model.Temperature)
	if len(temp) != 2 {
		t.Errorf("expected 2 samples from push path, got %d", len(temp))
	}
}

func TestIngestSeedsEmptyHistoryFromChartData(t *testing.T) {
	hist := testSeries(t)
	in := poller.NewIngestor(hist, nil, threshold.PolicyRange)
	at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	in.SetClock(func() time.Time { return at })

	r := fullReading()
	r.History = &model.ChartData{
		Labels: []string{
			at.Add(-2 * time.Minute).Format(time.RFC3339),
			at.Add(-time.Minute).Format(time.RFC3339),
			at.Format(time.RFC3339),
		},
		Series: map[string][]any{
			"temperature": {19.0, 20.0, 22.0},
			"humidity":    {50.0, 51.0, 55.0},
		},
	}
	if err := hist.Append(model.Humidity, model.Sample{Timestamp: at.Add(-time.Hour), Value: 40}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	u := in.Ingest(r)
	if u.Seeded != 2 {
		t.Errorf("expected 2 seeded samples, got %d", u.Seeded)
	}
	temp, _ := hist.Load(model.Temperature)
	if len(temp) != 3 || temp[0].Value != 19 || temp[1].Value != 20 || !temp[2].Timestamp.Equal(at) {
		t.Errorf("temperature should be seeded history then the live sample, got %+v", temp)
	}
	hum, _ := hist.Load(model.Humidity)
	if len(hum) != 2 || hum[0].Value != 40 {
		t.Errorf("existing humidity history must not be reseeded, got %+v", hum)
	}

	if u := in.Ingest(r); u.Seeded != 0 {
		t.Errorf("second ingest should not seed again, got %d", u.Seeded)
	}
}

// ─── Cycle ────────────────────────────────────────────────────────────────────

func TestCycleSuccess(t *testing.T) {
	rec := &recorder{}
	f := &fakeFetcher{results: []fetchResult{{r: fullReading()}}}
	p := poller.New(f, poller.NewIngestor(testSeries(t), rec, threshold.PolicyRange), poller.Options{})

	if p.Status() != model.ConnDisconnected {
		t.Errorf("initial status: got %s", p.Status())
	}
	u, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if p.Status() != model.ConnConnected || u.Status != model.ConnConnected {
		t.Errorf("status after success: poller %s, update %s", p.Status(), u.Status)
	}
	if p.LastUpdate().IsZero() {
		t.Error("last update should be recorded")
	}
	if u.Dashboard == nil || len(u.Dashboard.Cards) != 8 {
		t.Error("update should carry a dashboard")
	}
}

func TestCycleLastUpdateIsCompletionTime(t *testing.T) {
	base := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	var tick atomic.Int32
	in := poller.NewIngestor(testSeries(t), nil, threshold.PolicyRange)
	in.SetClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	})
	f := &fakeFetcher{results: []fetchResult{{r: fullReading()}}}
	p := poller.New(f, in, poller.Options{})

	u, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if !p.LastUpdate().After(u.At) {
		t.Errorf("last update %v should be taken after the reading was stored at %v", p.LastUpdate(), u.At)
	}
}

func TestCycleFailureLeavesDataUntouched(t *testing.T) {
	hist := testSeries(t)
	rec := &recorder{}
	f := &fakeFetcher{results: []fetchResult{
		{r: fullReading()},
		{err: netErr()},
		{err: fmt.Errorf("%w: bad json", source.ErrDecode)},
	}}
	p := poller.New(f, poller.NewIngestor(hist, rec, threshold.PolicyRange), poller.Options{})

	_, _ = p.Cycle(context.Background())
	last := p.LastUpdate()

	if _, err := p.Cycle(context.Background()); !errors.Is(err, source.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if p.Status() != model.ConnDisconnected {
		t.Errorf("network failure: expected disconnected, got %s", p.Status())
	}

	if _, err := p.Cycle(context.Background()); !errors.Is(err, source.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if p.Status() != model.ConnError {
		t.Errorf("decode failure: expected error, got %s", p.Status())
	}

	if !p.LastUpdate().Equal(last) {
		t.Error("failed cycles must not move last update")
	}
	counts, _ := hist.Counts()
	if counts[model.Temperature] != 1 {
		t.Errorf("failed cycles must not store anything, got %d samples", counts[model.Temperature])
	}
	ups := rec.all()
	if len(ups) != 3 || ups[1].Dashboard != nil || ups[2].Err == nil {
		t.Errorf("expected 3 published updates with failures marked, got %+v", ups)
	}
	if f.calls.Load() != 3 {
		t.Errorf("no retry expected: 3 calls, got %d", f.calls.Load())
	}
}

func TestCycleInFlightSkipped(t *testing.T) {
	f := &fakeFetcher{
		results: []fetchResult{{r: fullReading()}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p := poller.New(f, poller.NewIngestor(testSeries(t), nil, threshold.PolicyRange), poller.Options{})

	done := make(chan error, 1)
	go func() {
		_, err := p.Cycle(context.Background())
		done <- err
	}()
	<-f.started

	if _, err := p.Cycle(context.Background()); !errors.Is(err, poller.ErrCycleInFlight) {
		t.Errorf("expected ErrCycleInFlight, got %v", err)
	}
	close(f.block)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("skipped cycle must not fetch, got %d calls", f.calls.Load())
	}
}

// ─── Start / Stop ─────────────────────────────────────────────────────────────

func TestStartRunsImmediately(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{r: fullReading()}}}
	p := poller.New(f, poller.NewIngestor(testSeries(t), nil, threshold.PolicyRange), poller.Options{Interval: time.Hour})

	if !p.Start(context.Background()) {
		t.Fatal("first Start should return true")
	}
	defer p.Stop()
	if p.Start(context.Background()) {
		t.Error("second Start should be a no-op")
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.calls.Load() != 1 {
		t.Errorf("expected one immediate fetch, got %d", f.calls.Load())
	}
}

func TestTicks(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{r: fullReading()}}}
	p := poller.New(f, poller.NewIngestor(testSeries(t), nil, threshold.PolicyRange), poller.Options{Interval: 20 * time.Millisecond})
	p.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	<-p.Done()
	if f.calls.Load() < 3 {
		t.Errorf("expected at least 3 cycles, got %d", f.calls.Load())
	}

	after := f.calls.Load()
	time.Sleep(60 * time.Millisecond)
	if f.calls.Load() != after {
		t.Errorf("no cycles expected after Stop: %d → %d", after, f.calls.Load())
	}
}

func TestParentCancelDisarms(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{r: fullReading()}}}
	p := poller.New(f, poller.NewIngestor(testSeries(t), nil, threshold.PolicyRange), poller.Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	<-p.Done()

	if p.Running() {
		t.Error("poller should not report running after its context ended")
	}
	if !p.Start(context.Background()) {
		t.Fatal("Start after parent cancellation should arm the poller again")
	}
	p.Stop()
	<-p.Done()
}

func TestStopIdempotent(t *testing.T) {
	p := poller.New(&fakeFetcher{}, poller.NewIngestor(testSeries(t), nil, threshold.PolicyRange), poller.Options{})
	p.Stop()
	p.Stop()
	if p.Running() {
		t.Error("stopped poller should not be running")
	}
}

func TestStopDoesNotAbortInFlight(t *testing.T) {
	hist := testSeries(t)
	rec := &recorder{}
	f := &fakeFetcher{
		results: []fetchResult{{r: fullReading()}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p := poller.New(f, poller.NewIngestor(hist, rec, threshold.PolicyRange), poller.Options{Interval: time.Hour})
	p.Start(context.Background())
	<-f.started

	p.Stop()
	if p.Running() {
		t.Error("Running should be false right after Stop")
	}
	close(f.block)
	<-p.Done()

	if len(rec.all()) != 1 {
		t.Fatalf("in-flight cycle should still publish, got %d updates", len(rec.all()))
	}
	if p.Status() != model.ConnConnected {
		t.Errorf("in-flight cycle result should be applied, status %s", p.Status())
	}
	if temp, _ := hist.Load(model.Temperature); len(temp) != 1 {
		t.Errorf("in-flight cycle should store its samples, got %d", len(temp))
	}
}
