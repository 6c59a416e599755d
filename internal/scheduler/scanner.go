package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/cache"
	"github.com/hamed0406/netwatch/internal/domain"
	"github.com/hamed0406/netwatch/internal/history"
	"github.com/hamed0406/netwatch/internal/probe"
	"github.com/hamed0406/netwatch/internal/targets"
)

// eventBuffer bounds the transition fan-out channel. When nobody drains it
// fast enough, further events are dropped, never blocked on.
const eventBuffer = 256

// Stats are cumulative scan counters, snapshotted for the API.
type Stats struct {
	TotalCycles       int64
	SuccessfulProbes  int64
	FailedProbes      int64
	LastCycleTargets  int
	LastCycleDuration time.Duration
	LastCycleAt       time.Time
}

// Scanner drives the probe cycles. One goroutine runs the loop; probes fan
// out to a bounded pool; the cache and history are only touched after the
// whole cycle has gathered, so readers never see a half-applied pass.
type Scanner struct {
	Logger   *zap.Logger
	Provider targets.Provider
	Prober   probe.Prober
	Cache    *cache.Cache
	History  history.Store

	Interval        time.Duration
	RefreshInterval time.Duration
	Concurrency     int
	Policy          cache.Policy
	HistoryMaxAge   time.Duration // 0 keeps history forever

	events chan domain.TransitionEvent

	mu          sync.Mutex
	stats       Stats
	current     []domain.Target
	loaded      bool
	lastRefresh time.Time
}

func NewScanner(
	logger *zap.Logger,
	provider targets.Provider,
	prober probe.Prober,
	c *cache.Cache,
	store history.Store,
	interval, refreshInterval time.Duration,
	concurrency int,
	policy cache.Policy,
) *Scanner {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Minute
	}
	if policy != cache.PolicyRetain {
		policy = cache.PolicyPurge
	}
	return &Scanner{
		Logger:          logger,
		Provider:        provider,
		Prober:          prober,
		Cache:           c,
		History:         store,
		Interval:        interval,
		RefreshInterval: refreshInterval,
		Concurrency:     concurrency,
		Policy:          policy,
		events:          make(chan domain.TransitionEvent, eventBuffer),
	}
}

// Events exposes the transition stream fed after each durable append.
func (s *Scanner) Events() <-chan domain.TransitionEvent {
	return s.events
}

// Run starts the loop: an immediate pass, then one per tick. A cycle that
// overruns the interval rolls straight into the next tick; missed ticks are
// not backfilled. Stops when ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	var purge <-chan time.Time
	if s.HistoryMaxAge > 0 {
		pt := time.NewTicker(time.Hour)
		defer pt.Stop()
		purge = pt.C
	}

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scanner_stopped")
			return
		case <-t.C:
			s.runOnce(ctx)
		case <-purge:
			s.purgeOnce(ctx)
		}
	}
}

func (s *Scanner) runOnce(ctx context.Context) {
	start := time.Now()

	s.maybeRefresh(ctx)
	ts := s.currentSet()
	if len(ts) == 0 {
		s.Logger.Debug("scanner_idle_no_targets")
		return
	}

	// Fan out. Each slot is written by exactly one goroutine; the WaitGroup
	// is the barrier that makes the slice safe to read afterwards.
	results := make([]domain.ProbeResult, len(ts))
	sem := make(chan struct{}, s.Concurrency)
	var wg sync.WaitGroup

	for i, tgt := range ts {
		i, tgt := i, tgt
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = s.Prober.Probe(ctx, tgt.Addr)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		// Shutting down: in-flight probes finished their bounded timeout,
		// but nothing gets applied anymore.
		return
	}

	var reachable, unreachable int
	for _, res := range results {
		if res.Reachable {
			reachable++
		} else {
			unreachable++
		}

		ev, changed := s.Cache.Update(res)
		if !changed {
			continue
		}
		// Durable record first, then fan-out. A failed append degrades to
		// live-only status; the cache stays current either way.
		if err := s.History.Append(ctx, ev); err != nil {
			s.Logger.Error("history_append_error",
				zap.String("addr", ev.Addr),
				zap.Error(err),
			)
		}
		select {
		case s.events <- ev:
		default:
			s.Logger.Warn("transition_event_dropped", zap.String("addr", ev.Addr))
		}
		s.Logger.Info("target_transition",
			zap.String("name", ev.Name),
			zap.String("addr", ev.Addr),
			zap.String("from", string(ev.From)),
			zap.String("to", string(ev.To)),
		)
	}

	took := time.Since(start)
	s.mu.Lock()
	s.stats.TotalCycles++
	s.stats.SuccessfulProbes += int64(reachable)
	s.stats.FailedProbes += int64(unreachable)
	s.stats.LastCycleTargets = len(ts)
	s.stats.LastCycleDuration = took
	s.stats.LastCycleAt = start
	s.mu.Unlock()

	s.Logger.Debug("scanner_cycle_done",
		zap.Int("targets", len(ts)),
		zap.Int("reachable", reachable),
		zap.Int("unreachable", unreachable),
		zap.Duration("took", took),
	)
}

// maybeRefresh re-reads the target set on the refresh cadence. A failed load
// keeps the previous set; a failed first load retries every cycle.
func (s *Scanner) maybeRefresh(ctx context.Context) {
	s.mu.Lock()
	fresh := s.loaded && time.Since(s.lastRefresh) < s.RefreshInterval
	s.mu.Unlock()
	if fresh {
		return
	}

	ts, err := s.Provider.Load(ctx)
	if err != nil {
		s.Logger.Warn("targets_refresh_error", zap.Error(err))
		return
	}

	s.Cache.Reconcile(ts, s.Policy)

	s.mu.Lock()
	s.current = ts
	s.loaded = true
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	s.Logger.Info("targets_refreshed", zap.Int("count", len(ts)))
}

func (s *Scanner) currentSet() []domain.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scanner) purgeOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.HistoryMaxAge)
	n, err := s.History.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.Logger.Warn("history_purge_error", zap.Error(err))
		return
	}
	if n > 0 {
		s.Logger.Info("history_purged", zap.Int64("rows", n))
	}
}

// Stats returns a copy of the cumulative counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
