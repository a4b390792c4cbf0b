// Package snapshot pulls point-in-time aggregates from the backend and
// commits them to the view state as one batch.
package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/token-monitor-tui/internal/aggregate"
	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/store"
)

// WindowDays is the length of the daily history fetched with each refresh.
const WindowDays = 7

// ErrClosed is returned by Refresh after Close.
var ErrClosed = errors.New("snapshot fetcher closed")

const refreshKey = "refresh"

// Sink receives the lifecycle of each batch. *store.Store satisfies it.
type Sink interface {
	BeginRefresh() error
	CommitRefresh(b store.RefreshBatch) error
	FailRefresh(msg string) error
}

var _ Sink = (*store.Store)(nil)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock replaces the clock used to compute the history window.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithWindowDays changes the number of trailing days fetched.
func WithWindowDays(days int) Option {
	return func(f *Fetcher) {
		if days > 0 {
			f.windowDays = days
		}
	}
}

// Fetcher runs refresh batches. Concurrent refreshes share one batch.
type Fetcher struct {
	backend backend.Backend
	sink    Sink

	group   singleflight.Group
	batches atomic.Uint64

	// commitMu orders the cleaned-up check against the final sink write.
	commitMu  sync.Mutex
	cleanedUp atomic.Bool

	mu      sync.Mutex
	running bool
	dirty   bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	now        func() time.Time
	windowDays int
}

// New creates a fetcher writing into sink.
func New(b backend.Backend, sink Sink, opts ...Option) *Fetcher {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Fetcher{
		backend:    b,
		sink:       sink,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
		windowDays: WindowDays,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Refresh fetches the current snapshot, today's provider stats and the daily
// history window, and commits them together. A call made while a batch is in
// flight waits for that batch instead of starting another one. Cancelling ctx
// stops the wait but not the shared batch.
func (f *Fetcher) Refresh(ctx context.Context) error {
	_, err := f.refresh(ctx)
	return err
}

// refresh reports whether the batch it waited on was started by this call.
func (f *Fetcher) refresh(ctx context.Context) (started bool, err error) {
	if f.cleanedUp.Load() {
		return false, ErrClosed
	}

	before := f.batches.Load()
	ch := f.group.DoChan(refreshKey, func() (any, error) {
		return nil, f.run()
	})

	select {
	case res := <-ch:
		return f.batches.Load() != before, res.Err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (f *Fetcher) run() error {
	f.batches.Add(1)

	if err := f.write(f.sink.BeginRefresh); err != nil {
		return err
	}

	start, end := aggregate.Window(f.now(), f.windowDays)
	var batch store.RefreshBatch

	g, ctx := errgroup.WithContext(f.ctx)
	g.Go(func() error {
		snap, err := f.backend.GetCurrentStats(ctx)
		if err != nil {
			return err
		}
		batch.Stats = *snap
		return nil
	})
	g.Go(func() error {
		stats, err := f.backend.GetTodayProviderStats(ctx)
		batch.ProviderStats = stats
		return err
	})
	g.Go(func() error {
		days, err := f.backend.GetDailyActivities(ctx, start, end)
		batch.DailyActivities = days
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Warn("refresh failed", "error", err)
		if werr := f.write(func() error { return f.sink.FailRefresh(backend.Message(err)) }); werr != nil {
			return werr
		}
		return err
	}

	return f.write(func() error { return f.sink.CommitRefresh(batch) })
}

// write runs fn unless the fetcher has been closed.
func (f *Fetcher) write(fn func() error) error {
	f.commitMu.Lock()
	defer f.commitMu.Unlock()

	if f.cleanedUp.Load() {
		return ErrClosed
	}
	return fn()
}

// Schedule requests a refresh without waiting for it. Requests made while a
// scheduled refresh is running collapse into a single follow-up run. When the
// scheduled run only joined a batch that was already in flight, it runs once
// more so changes made after that batch started are picked up.
func (f *Fetcher) Schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cleanedUp.Load() {
		return
	}
	if f.running {
		f.dirty = true
		return
	}
	f.running = true
	f.wg.Add(1)
	go f.loop()
}

func (f *Fetcher) loop() {
	defer f.wg.Done()

	for {
		started, err := f.refresh(f.ctx)
		if err == nil && !started && !f.cleanedUp.Load() {
			_, err = f.refresh(f.ctx)
		}
		if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
			logger.Debug("scheduled refresh failed", "error", err)
		}

		f.mu.Lock()
		if !f.dirty || f.cleanedUp.Load() {
			f.running = false
			f.mu.Unlock()
			return
		}
		f.dirty = false
		f.mu.Unlock()
	}
}

// DailyActivities fetches an arbitrary history range without touching the
// view state. The range is validated before the backend is called.
func (f *Fetcher) DailyActivities(ctx context.Context, startDate, endDate string) ([]models.DailyActivity, error) {
	if err := models.ValidateDateRange(startDate, endDate); err != nil {
		return nil, err
	}
	return f.backend.GetDailyActivities(ctx, startDate, endDate)
}

// Close discards in-flight results and stops scheduled refreshes. Nothing is
// written to the sink after Close returns.
func (f *Fetcher) Close() {
	f.commitMu.Lock()
	f.cleanedUp.Store(true)
	f.commitMu.Unlock()

	// Schedule checks the flag under mu; taking it here orders any pending
	// wg.Add before the Wait below.
	f.mu.Lock()
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()
}
