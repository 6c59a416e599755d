package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/domain"
)

type memNotifier struct {
	mu     sync.Mutex
	titles []string
	failN  int
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failN > 0 {
		m.failN--
		return errors.New("webhook 500")
	}
	m.titles = append(m.titles, title)
	return nil
}

func (m *memNotifier) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.titles))
	copy(out, m.titles)
	return out
}

var alertT0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func transition(addr string, from, to domain.ProbeState, at time.Time) domain.TransitionEvent {
	ev := domain.TransitionEvent{Name: "host", Addr: addr, From: from, To: to, At: at}
	if to == domain.StateReachable {
		ms := 3.0
		ev.LatencyMS = &ms
	}
	return ev
}

func TestAlerter_DownAlertAndCooldown(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nil, nt, AlerterConfig{Cooldown: time.Minute})

	// First outage alerts.
	al.handle(context.Background(), transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0))
	// Flap: back up (recovery disabled), down again inside the cooldown.
	al.handle(context.Background(), transition("10.0.0.1", domain.StateUnreachable, domain.StateReachable, alertT0.Add(10*time.Second)))
	al.handle(context.Background(), transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0.Add(20*time.Second)))

	got := nt.sent()
	if len(got) != 1 {
		t.Fatalf("expected 1 alert inside cooldown, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "DOWN") {
		t.Fatalf("expected DOWN title, got %q", got[0])
	}

	// Past the cooldown the next outage alerts again.
	al.handle(context.Background(), transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0.Add(2*time.Minute)))
	if got := nt.sent(); len(got) != 2 {
		t.Fatalf("expected second alert after cooldown, got %d", len(got))
	}
}

func TestAlerter_CooldownIsPerTarget(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nil, nt, AlerterConfig{Cooldown: time.Minute})

	al.handle(context.Background(), transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0))
	al.handle(context.Background(), transition("10.0.0.2", domain.StateReachable, domain.StateUnreachable, alertT0.Add(time.Second)))

	if got := nt.sent(); len(got) != 2 {
		t.Fatalf("different targets must not share a cooldown, got %d alerts", len(got))
	}
}

func TestAlerter_RecoveryAlert(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nil, nt, AlerterConfig{AlertOnRecovery: true, Cooldown: time.Minute})

	al.handle(context.Background(), transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0))
	al.handle(context.Background(), transition("10.0.0.1", domain.StateUnreachable, domain.StateReachable, alertT0.Add(10*time.Second)))

	got := nt.sent()
	if len(got) != 2 {
		t.Fatalf("expected down + recovery, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[1], "RECOVERED") {
		t.Fatalf("expected RECOVERED title, got %q", got[1])
	}
}

func TestAlerter_FreshTargetOnlineIsNotARecovery(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nil, nt, AlerterConfig{AlertOnRecovery: true})

	al.handle(context.Background(), transition("10.0.0.1", domain.StateUnknown, domain.StateReachable, alertT0))

	if got := nt.sent(); len(got) != 0 {
		t.Fatalf("unknown -> reachable must not alert, got %v", got)
	}
}

func TestAlerter_RecoveryDisabled(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nil, nt, AlerterConfig{AlertOnRecovery: false})

	al.handle(context.Background(), transition("10.0.0.1", domain.StateUnreachable, domain.StateReachable, alertT0))

	if got := nt.sent(); len(got) != 0 {
		t.Fatalf("recovery alerts are disabled, got %v", got)
	}
}

func TestAlerter_FailedSendDoesNotStartCooldown(t *testing.T) {
	nt := &memNotifier{failN: 1}
	al := NewAlerter(zap.NewNop(), nil, nt, AlerterConfig{Cooldown: time.Hour})

	al.handle(context.Background(), transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0))
	// Flap again shortly after; the failed send must not have armed the cooldown.
	al.handle(context.Background(), transition("10.0.0.1", domain.StateUnreachable, domain.StateReachable, alertT0.Add(time.Second)))
	al.handle(context.Background(), transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0.Add(2*time.Second)))

	if got := nt.sent(); len(got) != 1 {
		t.Fatalf("expected retry outage to alert after failed send, got %d", len(got))
	}
}

func TestAlerter_RunConsumesUntilCancel(t *testing.T) {
	events := make(chan domain.TransitionEvent, 4)
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), events, nt, AlerterConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		al.Run(ctx)
		close(done)
	}()

	events <- transition("10.0.0.1", domain.StateReachable, domain.StateUnreachable, alertT0)
	events <- transition("10.0.0.2", domain.StateReachable, domain.StateUnreachable, alertT0)

	deadline := time.Now().Add(time.Second)
	for len(nt.sent()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := nt.sent(); len(got) != 2 {
		t.Fatalf("expected 2 alerts from the stream, got %d", len(got))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}
