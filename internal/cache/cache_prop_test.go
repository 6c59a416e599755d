package cache

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/hamed0406/netwatch/internal/domain"
)

func applySequence(seq []bool) (*Cache, []domain.TransitionEvent) {
	c := New()
	c.Reconcile([]domain.Target{{Name: "t", Addr: "10.0.0.1"}}, PolicyPurge)

	var events []domain.TransitionEvent
	for i, reachable := range seq {
		at := t0.Add(time.Duration(i) * 10 * time.Second)
		if ev, changed := c.Update(result("10.0.0.1", reachable, at)); changed {
			events = append(events, ev)
		}
	}
	return c, events
}

func trailingFalseRun(seq []bool) int {
	n := 0
	for i := len(seq) - 1; i >= 0 && !seq[i]; i-- {
		n++
	}
	return n
}

func classBoundaries(seq []bool) int {
	n := 0
	for i, v := range seq {
		if i == 0 || v != seq[i-1] {
			n++
		}
	}
	return n
}

func TestCacheProperty_ConsecutiveFailsMatchTrailingRun(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("fail counter equals the trailing unreachable run", prop.ForAll(
		func(seq []bool) bool {
			c, _ := applySequence(seq)
			e, ok := c.Get("10.0.0.1")
			if !ok {
				return false
			}
			return e.ConsecutiveFails == trailingFalseRun(seq)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCacheProperty_OneEventPerBoundary(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a transition fires exactly at classification boundaries", prop.ForAll(
		func(seq []bool) bool {
			_, events := applySequence(seq)
			return len(events) == classBoundaries(seq)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCacheProperty_EventsChainFromUnknown(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("events form a path starting at unknown", prop.ForAll(
		func(seq []bool) bool {
			_, events := applySequence(seq)
			prev := domain.StateUnknown
			for _, ev := range events {
				if ev.From != prev || ev.To == ev.From {
					return false
				}
				if ev.To == domain.StateUnknown {
					return false // unknown never recurs
				}
				prev = ev.To
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCacheProperty_TimestampsNeverRegress(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("last change never passes last check", prop.ForAll(
		func(seq []bool) bool {
			c, _ := applySequence(seq)
			e, ok := c.Get("10.0.0.1")
			if !ok {
				return false
			}
			return !e.LastChangeAt.After(e.LastCheckedAt)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
