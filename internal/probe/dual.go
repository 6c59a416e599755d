package probe

import (
	"context"
	"time"

	"github.com/hamed0406/netwatch/internal/domain"
)

// Dual is the production probe order: a few ICMP echoes first (cheap, exact),
// then a TCP connect sweep for hosts that drop ICMP or when raw sockets are
// not permitted. A host is unreachable only when both methods come up empty.
type Dual struct {
	ICMP     Prober
	TCP      Prober
	Attempts int
}

func NewDual(icmp, tcp Prober, attempts int) *Dual {
	return &Dual{ICMP: icmp, TCP: tcp, Attempts: attempts}
}

func (d *Dual) Probe(ctx context.Context, addr string) domain.ProbeResult {
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last domain.ProbeResult
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return domain.ProbeResult{Addr: addr, Method: domain.MethodICMP, CheckedAt: time.Now()}
		}
		last = d.ICMP.Probe(ctx, addr)
		if last.Reachable {
			return last
		}
	}

	if ctx.Err() != nil {
		return last
	}
	return d.TCP.Probe(ctx, addr)
}
