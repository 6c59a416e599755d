package targets

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/domain"
)

// maxExpand bounds how many addresses a single range line may produce, so a
// fat-fingered mask cannot turn the file into a /8 sweep.
const maxExpand = 1024

// Provider supplies the current target set. The scheduler re-reads it on a
// slower cadence than probing and tolerates the set changing between reads.
type Provider interface {
	Load(ctx context.Context) ([]domain.Target, error)
}

// File reads targets from a flat "name,address" file. The address column may
// be a single IP, a last-octet range ("192.168.0.10-50") or an IPv4 CIDR
// ("10.0.0.0/28"), both expanded into individual targets. Malformed lines are
// skipped and reported once per load; they never fail the load.
type File struct {
	path string
	log  *zap.Logger
}

func NewFile(path string, log *zap.Logger) *File {
	return &File{path: path, log: log}
}

func (f *File) Load(ctx context.Context) ([]domain.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer file.Close()

	var (
		out     []domain.Target
		seen    = make(map[string]struct{})
		badRows []string
		lineNo  int
	)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, addr, ok := splitLine(line)
		if !ok {
			if lineNo == 1 {
				continue // header row
			}
			badRows = append(badRows, fmt.Sprintf("line %d: %q", lineNo, line))
			continue
		}

		expanded, err := expand(name, addr)
		if err != nil {
			if lineNo == 1 {
				continue // header row with a non-address second column
			}
			badRows = append(badRows, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}

		for _, t := range expanded {
			if _, dup := seen[t.Addr]; dup {
				continue // address is the identity; first occurrence wins
			}
			seen[t.Addr] = struct{}{}
			out = append(out, t)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	if len(badRows) > 0 {
		f.log.Warn("targets_skipped_malformed",
			zap.String("file", f.path),
			zap.Int("count", len(badRows)),
			zap.Strings("rows", badRows),
		)
	}
	f.log.Debug("targets_loaded",
		zap.String("file", f.path),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func splitLine(line string) (name, addr string, ok bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return "", "", false
	}
	name = strings.TrimSpace(fields[0])
	addr = strings.TrimSpace(fields[1])
	if name == "" || addr == "" {
		return "", "", false
	}
	return name, addr, true
}

// expand turns one address column into concrete targets.
func expand(name, addr string) ([]domain.Target, error) {
	if ip := net.ParseIP(addr); ip != nil {
		return []domain.Target{{Name: name, Addr: ip.String()}}, nil
	}
	if strings.Contains(addr, "/") {
		return expandCIDR(name, addr)
	}
	if i := strings.LastIndex(addr, "-"); i > 0 {
		return expandOctetRange(name, addr[:i], addr[i+1:])
	}
	return nil, fmt.Errorf("not an address: %q", addr)
}

// expandOctetRange handles "a.b.c.d-N": addresses d..N in the base /24.
func expandOctetRange(name, base, endStr string) ([]domain.Target, error) {
	ip := net.ParseIP(base)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("bad range base: %q", base)
	}
	v4 := ip.To4()
	start := int(v4[3])
	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil || end < start || end > 255 {
		return nil, fmt.Errorf("bad range end: %q", endStr)
	}
	if end-start+1 > maxExpand {
		return nil, fmt.Errorf("range %s-%d too large", base, end)
	}
	out := make([]domain.Target, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, domain.Target{
			Name: fmt.Sprintf("%s-%d", name, i),
			Addr: fmt.Sprintf("%d.%d.%d.%d", v4[0], v4[1], v4[2], i),
		})
	}
	return out, nil
}

// expandCIDR enumerates the usable hosts of an IPv4 CIDR. Network and
// broadcast addresses are skipped for masks shorter than /31.
func expandCIDR(name, cidr string) ([]domain.Target, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("bad cidr %q: %w", cidr, err)
	}
	base := ipnet.IP.To4()
	if base == nil {
		return nil, fmt.Errorf("only IPv4 ranges expand: %q", cidr)
	}
	ones, bits := ipnet.Mask.Size()
	total := 1 << (bits - ones)
	skipEdges := ones < 31
	usable := total
	if skipEdges {
		usable = total - 2
	}
	if usable <= 0 {
		return nil, fmt.Errorf("cidr %q has no usable hosts", cidr)
	}
	if usable > maxExpand {
		return nil, fmt.Errorf("cidr %q too large (%d hosts)", cidr, usable)
	}

	cur := append(net.IP(nil), base...)
	out := make([]domain.Target, 0, usable)
	for i := 0; i < total; i++ {
		if !(skipEdges && (i == 0 || i == total-1)) {
			addr := cur.String()
			out = append(out, domain.Target{Name: name + "-" + addr, Addr: addr})
		}
		incIP(cur)
	}
	return out, nil
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

// Static is a fixed in-memory provider, mostly for tests and tooling.
type Static []domain.Target

func (s Static) Load(ctx context.Context) ([]domain.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Target, len(s))
	copy(out, s)
	return out, nil
}
