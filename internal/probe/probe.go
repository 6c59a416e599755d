package probe

import (
	"context"

	"github.com/hamed0406/netwatch/internal/domain"
)

// Prober performs a single reachability check against one address. Failures
// are data: a prober never returns an error, it returns an unreachable result.
type Prober interface {
	Probe(ctx context.Context, addr string) domain.ProbeResult
}
