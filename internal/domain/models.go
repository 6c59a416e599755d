package domain

import "time"

// ProbeState classifies a target's reachability. Unknown is the seed state
// for targets that have never completed a probe; after the first cycle a
// target is always reachable or unreachable.
type ProbeState string

const (
	StateUnknown     ProbeState = "unknown"
	StateReachable   ProbeState = "reachable"
	StateUnreachable ProbeState = "unreachable"
)

// ProbeMethod records which check produced a reachable verdict.
type ProbeMethod string

const (
	MethodICMP ProbeMethod = "icmp"
	MethodTCP  ProbeMethod = "tcp"
)

// Target is a monitored endpoint. Addr is the identity; Name is only a
// display label and two targets may share one.
type Target struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// ProbeResult is the outcome of probing one target in one cycle.
// LatencyMS is set only when the target was reachable.
type ProbeResult struct {
	Addr      string      `json:"addr"`
	Reachable bool        `json:"reachable"`
	LatencyMS *float64    `json:"latency_ms,omitempty"`
	Method    ProbeMethod `json:"method,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

// State maps the boolean probe outcome onto the cache's state machine.
func (r ProbeResult) State() ProbeState {
	if r.Reachable {
		return StateReachable
	}
	return StateUnreachable
}
