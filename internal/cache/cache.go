package cache

import (
	"sort"
	"sync"

	"github.com/hamed0406/netwatch/internal/domain"
)

// Policy controls what Reconcile does with entries whose target left the set.
type Policy string

const (
	// PolicyPurge drops entries for removed targets.
	PolicyPurge Policy = "purge"
	// PolicyRetain keeps removed targets frozen at their last observed state.
	PolicyRetain Policy = "retain"
)

// Cache is the shared live view of every tracked target. Reads take a
// snapshot copy; writes come from a single scheduler goroutine and hold the
// lock only for the one entry being touched, never across I/O.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*domain.StatusEntry
}

func New() *Cache {
	return &Cache{entries: make(map[string]*domain.StatusEntry)}
}

// Reconcile applies a freshly loaded target set. New addresses are seeded
// unknown, existing ones keep their state and pick up renamed labels, and
// removed ones are purged or retained per policy.
func (c *Cache) Reconcile(ts []domain.Target, policy Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		want[t.Addr] = struct{}{}
		if e, ok := c.entries[t.Addr]; ok {
			e.Name = t.Name
			continue
		}
		c.entries[t.Addr] = &domain.StatusEntry{
			Name:  t.Name,
			Addr:  t.Addr,
			State: domain.StateUnknown,
		}
	}

	if policy == PolicyRetain {
		return
	}
	for addr := range c.entries {
		if _, ok := want[addr]; !ok {
			delete(c.entries, addr)
		}
	}
}

// Update folds one probe result into the cache and reports the transition it
// caused, if any. The first result after seeding always transitions, since
// unknown never equals a probe outcome.
func (c *Cache) Update(res domain.ProbeResult) (domain.TransitionEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[res.Addr]
	if !ok {
		// Result for a target that left the set; nothing to record.
		return domain.TransitionEvent{}, false
	}

	next := res.State()
	prev := e.State

	e.LastCheckedAt = res.CheckedAt
	e.Method = res.Method
	e.LatencyMS = copyLatency(res.LatencyMS)

	if next == prev {
		if next == domain.StateUnreachable {
			e.ConsecutiveFails++
		}
		return domain.TransitionEvent{}, false
	}

	e.State = next
	e.LastChangeAt = res.CheckedAt
	if next == domain.StateUnreachable {
		e.ConsecutiveFails = 1
	} else {
		e.ConsecutiveFails = 0
	}

	return domain.TransitionEvent{
		Name:      e.Name,
		Addr:      e.Addr,
		From:      prev,
		To:        next,
		LatencyMS: copyLatency(res.LatencyMS),
		At:        res.CheckedAt,
	}, true
}

// Get returns a copy of one entry.
func (c *Cache) Get(addr string) (domain.StatusEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[addr]
	if !ok {
		return domain.StatusEntry{}, false
	}
	return copyEntry(e), true
}

// Snapshot returns a copy of every entry, reachable targets first, then by
// name and address.
func (c *Cache) Snapshot() []domain.StatusEntry {
	c.mu.RLock()
	out := make([]domain.StatusEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, copyEntry(e))
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].State == domain.StateReachable, out[j].State == domain.StateReachable
		if ri != rj {
			return ri
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Addr < out[j].Addr
	})
	return out
}

// Summary aggregates the current snapshot.
func (c *Cache) Summary() domain.Summary {
	return domain.Summarize(c.Snapshot())
}

// Len reports how many targets are tracked.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyEntry(e *domain.StatusEntry) domain.StatusEntry {
	out := *e
	out.LatencyMS = copyLatency(e.LatencyMS)
	return out
}

func copyLatency(v *float64) *float64 {
	if v == nil {
		return nil
	}
	ms := *v
	return &ms
}
