package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/domain"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

// Alerter turns transition events into notifications. DOWN repeats for the
// same target are rate-limited by the cooldown; recoveries bypass it.
type Alerter struct {
	logger   *zap.Logger
	events   <-chan domain.TransitionEvent
	notifier interface {
		Send(context.Context, string, string) error
	}
	cfg AlerterConfig

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewAlerter(
	logger *zap.Logger,
	events <-chan domain.TransitionEvent,
	notifier interface {
		Send(context.Context, string, string) error
	},
	cfg AlerterConfig,
) *Alerter {
	return &Alerter{
		logger:   logger,
		events:   events,
		notifier: notifier,
		cfg:      cfg,
		lastSent: make(map[string]time.Time),
	}
}

// Run consumes events until ctx is cancelled or the channel closes.
func (a *Alerter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("alerter_stopped")
			return
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			a.handle(ctx, ev)
		}
	}
}

func (a *Alerter) handle(ctx context.Context, ev domain.TransitionEvent) {
	switch ev.To {
	case domain.StateUnreachable:
		if !a.cooled(ev.Addr, ev.At) {
			a.logger.Debug("alert_suppressed_cooldown", zap.String("addr", ev.Addr))
			return
		}
		text := fmt.Sprintf("Name: %s\nAddr: %s\nDown since: %s",
			ev.Name, ev.Addr, ev.At.Format(time.RFC3339))
		a.send(ctx, ev, "🔴 Target DOWN", text)

	case domain.StateReachable:
		// unknown -> reachable is a fresh target coming online, not a recovery
		if ev.From != domain.StateUnreachable || !a.cfg.AlertOnRecovery {
			return
		}
		latencyTxt := "n/a"
		if ev.LatencyMS != nil {
			latencyTxt = fmt.Sprintf("%.0f ms", *ev.LatencyMS)
		}
		text := fmt.Sprintf("Name: %s\nAddr: %s\nLatency: %s\nRecovered: %s",
			ev.Name, ev.Addr, latencyTxt, ev.At.Format(time.RFC3339))
		a.send(ctx, ev, "🟢 Target RECOVERED", text)
	}
}

func (a *Alerter) send(ctx context.Context, ev domain.TransitionEvent, title, text string) {
	if err := a.notifier.Send(ctx, title, text); err != nil {
		a.logger.Warn("alert_send_error",
			zap.String("addr", ev.Addr),
			zap.Error(err),
		)
		return
	}
	a.mu.Lock()
	a.lastSent[ev.Addr] = ev.At
	a.mu.Unlock()
	a.logger.Info("alert_sent",
		zap.String("addr", ev.Addr),
		zap.String("title", title),
	)
}

func (a *Alerter) cooled(addr string, now time.Time) bool {
	if a.cfg.Cooldown <= 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.lastSent[addr]
	if !ok {
		return true
	}
	return now.Sub(last) >= a.cfg.Cooldown
}
