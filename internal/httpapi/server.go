package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/cache"
	"github.com/hamed0406/netwatch/internal/history"
	"github.com/hamed0406/netwatch/internal/httpapi/middleware"
	"github.com/hamed0406/netwatch/internal/scheduler"
)

// StatsSource reports the scan loop's cumulative counters.
// *scheduler.Scanner satisfies it.
type StatsSource interface {
	Stats() scheduler.Stats
}

// Config carries the API-surface knobs. Zero values fall back to the same
// defaults the rest of the service uses.
type Config struct {
	Keys           middleware.Keys
	AlertThreshold time.Duration
	LivePush       time.Duration
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
}

type Server struct {
	Logger  *zap.Logger
	Cache   *cache.Cache
	History history.Store
	Stats   StatsSource
	Config  Config
}

func NewServer(l *zap.Logger, c *cache.Cache, store history.Store, stats StatsSource, cfg Config) *Server {
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = cache.DefaultAlertThreshold
	}
	if cfg.LivePush <= 0 {
		cfg.LivePush = 10 * time.Second
	}
	return &Server{Logger: l, Cache: c, History: store, Stats: stats, Config: cfg}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Read side: any configured key works.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.Config.PublicRPM, s.Config.PublicBurst))
		r.Use(middleware.RequireAny(s.Config.Keys))

		r.Get("/api/status", s.handleStatus)
		r.Get("/api/status/search", s.handleSearch)
		r.Get("/api/targets/{addr}/history", s.handleHistory)
		r.Get("/api/alerts", s.handleAlerts)
		r.Get("/api/stats", s.handleStats)
		r.Get("/api/live", s.handleLive)
	})

	// Mutations need an admin key.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.Config.AdminRPM, s.Config.AdminBurst))
		r.Use(middleware.RequireAdmin(s.Config.Keys))

		r.Post("/api/history/purge", s.handlePurge)
	})

	return r
}
