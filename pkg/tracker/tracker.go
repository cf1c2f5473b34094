// Package tracker runs the polling loop: fetch a snapshot, reconcile it
// against the previous tick, publish the result, repeat.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/provider"
	"github.com/unklstewy/flightwatch/pkg/reconcile"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 2 * time.Second

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("tracker already running")

// Sink receives every published snapshot on the loop goroutine.
// Sinks must return quickly and must not modify the snapshot.
type Sink func(flight.Snapshot)

// Config configures a Tracker.
type Config struct {
	// Fetcher supplies snapshots (required)
	Fetcher provider.Fetcher

	// Reconciler assigns rotation angles (default reconcile.New())
	Reconciler *reconcile.Reconciler

	// Airline is the initial filter, an ICAO code or "all"
	Airline string

	// Zone is the watched region (required)
	Zone string

	// Interval between cycles (default DefaultInterval)
	Interval time.Duration

	// FetchTimeout bounds one fetch (default Interval)
	FetchTimeout time.Duration

	// StatsInterval is how often to log running totals (0 disables)
	StatsInterval time.Duration

	// Logger receives loop diagnostics (default slog.Default())
	Logger *slog.Logger
}

// Stats is a point-in-time view of the loop's counters.
type Stats struct {
	Airline     string            `json:"airline"`
	Zone        string            `json:"zone"`
	Cycles      int               `json:"cycles"`
	Failures    int               `json:"failures"`
	LastRecords int               `json:"last_records"`
	LastSuccess time.Time         `json:"last_success"`
	LastError   string            `json:"last_error,omitempty"`
	LastSummary reconcile.Summary `json:"last_summary"`
}

// Tracker owns the previous-tick state and drives fetch and reconcile.
type Tracker struct {
	fetcher       provider.Fetcher
	reconciler    *reconcile.Reconciler
	zone          string
	interval      time.Duration
	fetchTimeout  time.Duration
	statsInterval time.Duration
	logger        *slog.Logger

	mailbox   *Mailbox
	airlineCh chan string
	running   atomic.Bool

	// Loop goroutine only.
	airline string
	prev    flight.Snapshot

	mu        sync.RWMutex
	stats     Stats
	sinks     []Sink
	requested string
}

// New validates cfg and creates a Tracker.
func New(cfg Config) (*Tracker, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("tracker: fetcher is required")
	}
	zone, err := provider.LookupZone(cfg.Zone)
	if err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	if cfg.Reconciler == nil {
		cfg.Reconciler = reconcile.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = cfg.Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	airline := provider.NormalizeAirline(cfg.Airline)

	return &Tracker{
		fetcher:       cfg.Fetcher,
		reconciler:    cfg.Reconciler,
		zone:          zone.Name,
		interval:      cfg.Interval,
		fetchTimeout:  cfg.FetchTimeout,
		statsInterval: cfg.StatsInterval,
		logger:        cfg.Logger.With(slog.String("zone", zone.Name)),
		mailbox:       NewMailbox(),
		airlineCh:     make(chan string, 1),
		airline:       airline,
		requested:     airline,
		stats: Stats{
			Airline: airline,
			Zone:    zone.Name,
		},
	}, nil
}

// Mailbox returns the latest-value-wins handoff the loop publishes to.
func (t *Tracker) Mailbox() *Mailbox {
	return t.mailbox
}

// Zone returns the watched zone.
func (t *Tracker) Zone() string {
	return t.zone
}

// Airline returns the most recently requested airline filter.
func (t *Tracker) Airline() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.requested
}

// SetAirline changes the airline filter. A running loop fetches with the new
// filter right away and restarts its interval from there.
// It never blocks; if several changes arrive before the loop sees them the
// last one wins.
func (t *Tracker) SetAirline(airline string) {
	airline = provider.NormalizeAirline(airline)

	t.mu.Lock()
	t.requested = airline
	t.mu.Unlock()

	for {
		select {
		case t.airlineCh <- airline:
			return
		default:
		}
		select {
		case <-t.airlineCh:
		default:
		}
	}
}

// Subscribe registers a sink for every published snapshot.
func (t *Tracker) Subscribe(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink)
}

// Stats returns a copy of the current counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Run polls until ctx is cancelled. The first cycle starts immediately, as
// does the first cycle after an airline change.
// Cycles never overlap: a tick that fires during a cycle is handled once
// the cycle completes.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if t.statsInterval > 0 {
		statsTicker := time.NewTicker(t.statsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	t.logger.Info("tracker started",
		slog.String("airline", airlineLabel(t.airline)),
		slog.Duration("interval", t.interval),
		slog.String("policy", t.reconciler.Policy().String()))

	t.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return nil
		case airline := <-t.airlineCh:
			if airline == t.airline {
				continue
			}
			t.logger.Info("airline filter changed",
				slog.String("from", airlineLabel(t.airline)),
				slog.String("to", airlineLabel(airline)))
			t.airline = airline
			t.cycle(ctx)
			ticker.Reset(t.interval)
		case <-ticker.C:
			t.cycle(ctx)
		case <-statsC:
			t.logStats()
		}
	}
}

// cycle runs one fetch and reconcile. A failed fetch leaves the previous
// state untouched and publishes nothing.
func (t *Tracker) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in tracker cycle, will retry next tick", slog.Any("panic", r))
			t.recordFailure(fmt.Errorf("panic: %v", r))
		}
	}()

	// Pick up a filter change that raced with the tick.
	select {
	case airline := <-t.airlineCh:
		t.airline = airline
	default:
	}

	fetchCtx, cancel := context.WithTimeout(ctx, t.fetchTimeout)
	snap, err := t.fetcher.Fetch(fetchCtx, t.airline, t.zone)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; the abandoned fetch is not a failure.
			return
		}
		t.logger.Warn("fetch failed, keeping previous state",
			slog.String("airline", airlineLabel(t.airline)),
			slog.Any("error", err))
		t.recordFailure(err)
		return
	}

	enriched, state, summary := t.reconciler.ReconcileSummary(snap, t.prev)
	t.prev = state

	t.mu.Lock()
	t.stats.Cycles++
	t.stats.Airline = t.airline
	t.stats.LastRecords = enriched.Len()
	t.stats.LastSuccess = enriched.FetchedAt
	if t.stats.LastSuccess.IsZero() {
		t.stats.LastSuccess = time.Now().UTC()
	}
	t.stats.LastError = ""
	t.stats.LastSummary = summary
	sinks := append([]Sink(nil), t.sinks...)
	t.mu.Unlock()

	t.logger.Debug("cycle complete",
		slog.Int("flights", enriched.Len()),
		slog.Int("matched", summary.Matched),
		slog.Int("first_seen", summary.FirstSeen),
		slog.Int("dropped", summary.Dropped))

	t.mailbox.Put(enriched)
	for _, sink := range sinks {
		sink(enriched)
	}
}

func (t *Tracker) recordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Failures++
	t.stats.LastError = err.Error()
}

func (t *Tracker) logStats() {
	s := t.Stats()
	t.logger.Info("tracker stats",
		slog.String("airline", airlineLabel(s.Airline)),
		slog.Int("cycles", s.Cycles),
		slog.Int("failures", s.Failures),
		slog.Int("flights", s.LastRecords),
		slog.Time("last_success", s.LastSuccess))
}

// airlineLabel renders the no-filter sentinel readably.
func airlineLabel(airline string) string {
	if airline == flight.AllAirlines {
		return "all"
	}
	return airline
}
