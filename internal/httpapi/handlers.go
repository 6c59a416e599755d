package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/domain"
	"github.com/hamed0406/netwatch/internal/history"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Cache.Snapshot())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	stateRaw := strings.TrimSpace(r.URL.Query().Get("state"))

	var state domain.ProbeState
	if stateRaw != "" {
		state = domain.ProbeState(stateRaw)
		switch state {
		case domain.StateReachable, domain.StateUnreachable, domain.StateUnknown:
		default:
			writeError(w, http.StatusBadRequest, "unknown state filter")
			return
		}
	}

	out := make([]domain.StatusEntry, 0)
	for _, e := range s.Cache.Snapshot() {
		if state != "" && e.State != state {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(e.Name), q) &&
			!strings.Contains(strings.ToLower(e.Addr), q) {
			continue
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	if net.ParseIP(addr) == nil {
		writeError(w, http.StatusBadRequest, "bad address")
		return
	}

	limit := history.DefaultLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = history.ClampLimit(n)
	}

	recs, err := s.History.Recent(r.Context(), addr, limit)
	if err != nil {
		s.Logger.Error("history_read_error",
			zap.String("addr", addr),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "history read failed")
		return
	}
	if recs == nil {
		recs = []domain.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"addr":    addr,
		"count":   len(recs),
		"history": recs,
	})
}

// alertRow reshapes an alert for the wire: the outage duration goes out as a
// human-readable string instead of nanoseconds.
type alertRow struct {
	Name    string    `json:"name"`
	Addr    string    `json:"addr"`
	Since   time.Time `json:"since"`
	DownFor string    `json:"down_for"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	threshold := s.Config.AlertThreshold
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "bad threshold")
			return
		}
		threshold = d
	}

	alerts := s.Cache.Alerts(threshold, time.Now())
	rows := make([]alertRow, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, alertRow{
			Name:    a.Name,
			Addr:    a.Addr,
			Since:   a.Since,
			DownFor: a.Down.Round(time.Second).String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold": threshold.String(),
		"count":     len(rows),
		"alerts":    rows,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.Stats.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": s.Cache.Summary(),
		"scanner": map[string]any{
			"total_cycles":       st.TotalCycles,
			"successful_probes":  st.SuccessfulProbes,
			"failed_probes":      st.FailedProbes,
			"last_cycle_targets": st.LastCycleTargets,
			"last_cycle_ms":      float64(st.LastCycleDuration) / float64(time.Millisecond),
			"last_cycle_at":      st.LastCycleAt,
		},
	})
}

type purgePayload struct {
	OlderThan string `json:"older_than"`
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var p purgePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.OlderThan == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	age, err := time.ParseDuration(p.OlderThan)
	if err != nil || age <= 0 {
		writeError(w, http.StatusBadRequest, "bad older_than duration")
		return
	}

	n, err := s.History.PurgeOlderThan(r.Context(), time.Now().Add(-age))
	if err != nil {
		s.Logger.Error("history_purge_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "purge failed")
		return
	}

	s.Logger.Info("history_purged",
		zap.String("older_than", age.String()),
		zap.Int64("rows", n),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"older_than": age.String(),
		"purged":     n,
	})
}
