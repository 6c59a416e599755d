package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hamed0406/netwatch/internal/domain"
)

const liveWriteTimeout = 5 * time.Second

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	},
}

// livePayload is one websocket frame: the full ordered snapshot plus its
// aggregate, same shape every push.
type livePayload struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Summary     domain.Summary       `json:"summary"`
	Targets     []domain.StatusEntry `json:"targets"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}
	s.serveLive(conn)
}

func (s *Server) serveLive(conn *websocket.Conn) {
	defer conn.Close()

	if err := s.pushLive(conn); err != nil {
		return
	}

	ticker := time.NewTicker(s.Config.LivePush)
	defer ticker.Stop()

	// The read pump only exists to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := s.pushLive(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) pushLive(conn *websocket.Conn) error {
	snap := s.Cache.Snapshot()
	payload := livePayload{
		GeneratedAt: time.Now().UTC(),
		Summary:     domain.Summarize(snap),
		Targets:     snap,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return conn.WriteJSON(payload)
}
