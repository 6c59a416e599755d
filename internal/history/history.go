package history

import (
	"context"
	"time"

	"github.com/hamed0406/netwatch/internal/domain"
)

// Recent read limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Store is the durable transition log. Append happens in the scheduler's
// cycle-completion step; reads serve the API. Implementations must be safe
// for concurrent use.
type Store interface {
	// Append records that a target entered a new state.
	Append(ctx context.Context, ev domain.TransitionEvent) error
	// Recent returns the newest transitions for one address, newest first.
	Recent(ctx context.Context, addr string, limit int) ([]domain.HistoryRecord, error)
	// PurgeOlderThan deletes records before cutoff and reports how many.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// ClampLimit normalizes a requested row count into [1, MaxLimit], applying
// the default when the caller passed nothing.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
