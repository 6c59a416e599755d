package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/hamed0406/netwatch/internal/domain"
)

// TCP probes by attempting a plain connect against an ordered port list.
// The first port that accepts proves the host is up; latency is the connect
// time of that port alone.
type TCP struct {
	Ports   []int
	Timeout time.Duration
}

func NewTCP(ports []int, timeout time.Duration) *TCP {
	return &TCP{Ports: ports, Timeout: timeout}
}

func (p *TCP) Probe(ctx context.Context, addr string) domain.ProbeResult {
	var dialer net.Dialer
	for _, port := range p.Ports {
		if ctx.Err() != nil {
			break
		}

		dialCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		start := time.Now()
		conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
		cancel()
		if err != nil {
			continue
		}
		conn.Close()

		ms := time.Since(start).Seconds() * 1000
		return domain.ProbeResult{
			Addr:      addr,
			Reachable: true,
			LatencyMS: &ms,
			Method:    domain.MethodTCP,
			CheckedAt: time.Now(),
		}
	}
	return domain.ProbeResult{Addr: addr, Method: domain.MethodTCP, CheckedAt: time.Now()}
}
