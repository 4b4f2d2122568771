// Package poller drives the periodic fetch cycle: one immediate fetch on
// start, then one per tick until stopped. Each cycle's reading is stored
// and published through an Ingestor.
//
// State machine:
//
//	Idle ──Start──▶ Polling ──tick──▶ Fetching ──done──▶ Polling
//	  ▲                │
//	  └──────Stop──────┘
//
// A cycle requested while another is still outstanding is skipped, not
// queued. Stop cancels future ticks only; an outstanding cycle completes
// and its results are applied.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/source"
)

// DefaultInterval is the refresh period.
const DefaultInterval = 30 * time.Second

// ErrCycleInFlight is returned by Cycle when a previous cycle has not
// finished yet.
var ErrCycleInFlight = errors.New("fetch cycle already in flight")

// Fetcher performs one remote read. hours > 0 asks the source for chart
// history covering that window.
type Fetcher interface {
	Fetch(ctx context.Context, hours int) (*model.Reading, error)
}

// Options tune a Poller.
type Options struct {
	Interval time.Duration
	Hours    int
}

// Poller owns the refresh timer and the connection status.
type Poller struct {
	fetcher  Fetcher
	ingest   *Ingestor
	interval time.Duration
	hours    int

	inFlight atomic.Bool

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	status     model.ConnStatus
	lastUpdate time.Time
}

// New returns an idle poller.
func New(f Fetcher, in *Ingestor, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Poller{
		fetcher:  f,
		ingest:   in,
		interval: opts.Interval,
		hours:    opts.Hours,
		status:   model.ConnDisconnected,
	}
}

// Start runs one cycle immediately and then one per interval. It returns
// false without doing anything if the poller is already running.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(loopCtx, context.WithoutCancel(ctx), p.done)
	slog.Info("poller_started", "interval", p.interval)
	return true
}

// Stop cancels future ticks. It is safe to call when not running. An
// in-flight cycle is not aborted.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	slog.Info("poller_stopped")
}

// Running reports whether the refresh timer is armed.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Done is closed when the tick loop of the most recent Start exits.
// It is nil before the first Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Status returns the connection status of the last completed cycle.
func (p *Poller) Status() model.ConnStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LastUpdate returns the completion time of the last successful cycle.
func (p *Poller) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdate
}

// run fires cycles until loopCtx is done. Cycles use cycleCtx, which
// ignores the loop's cancellation so Stop never cuts a fetch short. On exit
// the poller is disarmed, so a parent context cancelled without Stop still
// allows a later Start.
func (p *Poller) run(loopCtx, cycleCtx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.done == done && p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
	}()
	var wg sync.WaitGroup
	fire := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Cycle(cycleCtx); errors.Is(err, ErrCycleInFlight) {
				slog.Debug("cycle_skipped", "reason", "in_flight")
			}
		}()
	}

	fire()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-loopCtx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			fire()
		}
	}
}

// Cycle performs one fetch-store-publish round. It returns ErrCycleInFlight
// without fetching if another cycle is outstanding. A fetch failure leaves
// stored data untouched, sets the status and is published; there is no
// retry.
func (p *Poller) Cycle(ctx context.Context) (Update, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return Update{}, ErrCycleInFlight
	}
	defer p.inFlight.Store(false)

	id := uuid.NewString()
	start := time.Now()
	slog.Debug("cycle_started", "cycle", id)

	r, err := p.fetcher.Fetch(ctx, p.hours)
	if err != nil {
		status := model.ConnError
		if source.IsNetwork(err) || errors.Is(err, context.DeadlineExceeded) {
			status = model.ConnDisconnected
		}
		p.mu.Lock()
		p.status = status
		p.mu.Unlock()

		slog.Warn("cycle_failed", "cycle", id, "status", status, "error", err)
		u := Update{CycleID: id, At: p.ingest.now(), Status: status, Err: err}
		p.ingest.publish(u)
		return u, err
	}

	u := p.ingest.ingest(id, r, p.ingest.now())
	p.mu.Lock()
	p.status = model.ConnConnected
	p.lastUpdate = p.ingest.now()
	p.mu.Unlock()
	slog.Debug("cycle_completed", "cycle", id, "elapsed", time.Since(start))
	return u, nil
}
