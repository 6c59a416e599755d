package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/hamed0406/netwatch/internal/domain"
)

const echoPayload = "netwatch"

// ICMP probes with an echo request over a raw socket. Raw sockets need
// CAP_NET_RAW (or root); without it every probe fails with a permission
// error and the caller is expected to fall back to TCP.
type ICMP struct {
	Timeout time.Duration

	id  int
	seq uint32
}

func NewICMP(timeout time.Duration) *ICMP {
	return &ICMP{Timeout: timeout, id: os.Getpid() & 0xffff}
}

// Available reports whether this process can open a raw ICMP socket.
func (p *ICMP) Available() error {
	conn, err := icmp.ListenPacket("ip4:icmp", "")
	if err != nil {
		return err
	}
	return conn.Close()
}

func (p *ICMP) Probe(ctx context.Context, addr string) domain.ProbeResult {
	fail := domain.ProbeResult{Addr: addr, Method: domain.MethodICMP, CheckedAt: time.Now()}
	if ctx.Err() != nil {
		return fail
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return fail
	}

	network, proto, reqType, replyType := icmpFamily(ip)
	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		return fail
	}
	defer conn.Close()

	seq := int(atomic.AddUint32(&p.seq, 1)) & 0xffff
	msg := icmp.Message{
		Type: reqType,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: []byte(echoPayload)},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return fail
	}

	if err := conn.SetDeadline(probeDeadline(ctx, p.Timeout)); err != nil {
		return fail
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, &net.IPAddr{IP: ip}); err != nil {
		fail.CheckedAt = time.Now()
		return fail
	}

	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			fail.CheckedAt = time.Now()
			return fail
		}

		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			fail.CheckedAt = time.Now()
			return fail
		}
		if peer == nil {
			continue
		}

		reply, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil || reply.Type != replyType {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.ID != p.id || echo.Seq != seq {
			continue
		}

		ms := time.Since(start).Seconds() * 1000
		return domain.ProbeResult{
			Addr:      addr,
			Reachable: true,
			LatencyMS: &ms,
			Method:    domain.MethodICMP,
			CheckedAt: time.Now(),
		}
	}
}

func icmpFamily(ip net.IP) (network string, proto int, reqType, replyType icmp.Type) {
	if ip.To4() != nil {
		return "ip4:icmp", ipv4.ICMPTypeEcho.Protocol(), ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	}
	return "ip6:ipv6-icmp", ipv6.ICMPTypeEchoRequest.Protocol(), ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
}

// probeDeadline is the per-attempt timeout, tightened to the context deadline
// when that comes first.
func probeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// IsPermissionError reports whether err looks like a raw-socket capability
// failure, the usual reason ICMP probing is unavailable.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "operation not permitted") || strings.Contains(msg, "permission denied")
}
