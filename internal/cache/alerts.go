package cache

import (
	"sort"
	"time"

	"github.com/hamed0406/netwatch/internal/domain"
)

// DefaultAlertThreshold is how long a target must stay unreachable before it
// shows up in the alert list.
const DefaultAlertThreshold = 5 * time.Minute

// Alerts derives the targets that have been unreachable for at least
// threshold as of now, longest-down first. The list is computed from the
// snapshot on every call; nothing is stored.
func (c *Cache) Alerts(threshold time.Duration, now time.Time) []domain.Alert {
	if threshold <= 0 {
		threshold = DefaultAlertThreshold
	}

	var out []domain.Alert
	for _, e := range c.Snapshot() {
		if e.State != domain.StateUnreachable || e.LastChangeAt.IsZero() {
			continue
		}
		down := now.Sub(e.LastChangeAt)
		if down < threshold {
			continue
		}
		out = append(out, domain.Alert{
			Name:  e.Name,
			Addr:  e.Addr,
			Since: e.LastChangeAt,
			Down:  down,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Down != out[j].Down {
			return out[i].Down > out[j].Down
		}
		return out[i].Name < out[j].Name
	})
	return out
}
