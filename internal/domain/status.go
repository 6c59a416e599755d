package domain

import "time"

// StatusEntry is a read-side copy of one target's cache entry.
//
// LastChangeAt moves only on a state transition; LastCheckedAt moves on
// every completed cycle, so LastChangeAt <= LastCheckedAt always holds.
type StatusEntry struct {
	Name             string      `json:"name"`
	Addr             string      `json:"addr"`
	State            ProbeState  `json:"state"`
	LatencyMS        *float64    `json:"latency_ms"`
	Method           ProbeMethod `json:"method,omitempty"`
	LastChangeAt     time.Time   `json:"last_change_at"`
	LastCheckedAt    time.Time   `json:"last_checked_at"`
	ConsecutiveFails int         `json:"consecutive_fails"`
}

// TransitionEvent is emitted when a cycle's result differs from the cached
// state. It is the only thing the history recorder persists.
type TransitionEvent struct {
	Name      string     `json:"name"`
	Addr      string     `json:"addr"`
	From      ProbeState `json:"from"`
	To        ProbeState `json:"to"`
	LatencyMS *float64   `json:"latency_ms"`
	At        time.Time  `json:"at"`
}

// HistoryRecord is one durably stored transition.
type HistoryRecord struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Addr      string     `json:"addr"`
	State     ProbeState `json:"state"`
	LatencyMS *float64   `json:"latency_ms"`
	At        time.Time  `json:"at"`
}

// Alert is a derived view, never stored: a target that has been
// continuously unreachable for at least the caller's threshold.
type Alert struct {
	Name  string        `json:"name"`
	Addr  string        `json:"addr"`
	Since time.Time     `json:"since"`
	Down  time.Duration `json:"down_for"`
}

// Summary aggregates the snapshot for the stats/report consumers.
type Summary struct {
	Total           int     `json:"total"`
	Reachable       int     `json:"reachable"`
	Unreachable     int     `json:"unreachable"`
	Unknown         int     `json:"unknown"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
	AvailabilityPct float64 `json:"availability_pct"`
}

// Summarize computes the aggregate counters over a status snapshot.
// Average latency covers only reachable targets that carry a measurement.
func Summarize(entries []StatusEntry) Summary {
	s := Summary{Total: len(entries)}
	var latSum float64
	var latN int
	for _, e := range entries {
		switch e.State {
		case StateReachable:
			s.Reachable++
			if e.LatencyMS != nil {
				latSum += *e.LatencyMS
				latN++
			}
		case StateUnreachable:
			s.Unreachable++
		default:
			s.Unknown++
		}
	}
	if latN > 0 {
		s.AvgLatencyMS = latSum / float64(latN)
	}
	if s.Total > 0 {
		s.AvailabilityPct = float64(s.Reachable) / float64(s.Total) * 100
	}
	return s
}
