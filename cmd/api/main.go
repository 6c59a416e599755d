package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/cache"
	"github.com/hamed0406/netwatch/internal/config"
	"github.com/hamed0406/netwatch/internal/history/sqlite"
	"github.com/hamed0406/netwatch/internal/httpapi"
	"github.com/hamed0406/netwatch/internal/httpapi/middleware"
	"github.com/hamed0406/netwatch/internal/logging"
	"github.com/hamed0406/netwatch/internal/notify"
	"github.com/hamed0406/netwatch/internal/probe"
	"github.com/hamed0406/netwatch/internal/scheduler"
	"github.com/hamed0406/netwatch/internal/targets"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.HistoryDB)
	if err != nil {
		logger.Fatal("history_open_error", zap.String("path", cfg.HistoryDB), zap.Error(err))
	}

	icmp := probe.NewICMP(cfg.ICMPTimeout)
	if err := icmp.Available(); err != nil {
		// Every echo attempt will fail and probing leans on the TCP fallback.
		logger.Warn("icmp_unavailable",
			zap.Bool("permission", probe.IsPermissionError(err)),
			zap.Error(err),
		)
	}
	prober := &probe.Dual{
		ICMP:     icmp,
		TCP:      &probe.TCP{Ports: cfg.TCPPorts, Timeout: cfg.TCPTimeout},
		Attempts: cfg.ICMPAttempts,
	}

	statusCache := cache.New()

	scanner := scheduler.NewScanner(
		logger,
		targets.NewFile(cfg.TargetsFile, logger),
		prober,
		statusCache,
		store,
		cfg.CheckInterval,
		cfg.TargetRefresh,
		cfg.Workers,
		cache.Policy(cfg.RemovedTargetPolicy),
	)
	scanner.HistoryMaxAge = cfg.HistoryMaxAge

	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}
	if w := notify.NewWebhook(cfg.AlertWebhook); w != nil {
		notifiers = append(notifiers, w)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner.Run(ctx)
	}()

	if len(notifiers) > 0 {
		alerter := scheduler.NewAlerter(logger, scanner.Events(), notifiers, scheduler.AlerterConfig{
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			alerter.Run(ctx)
		}()
	}

	api := httpapi.NewServer(logger, statusCache, store, scanner, httpapi.Config{
		Keys: middleware.Keys{
			Public: cfg.PublicAPIKeys,
			Admin:  cfg.AdminAPIKeys,
		},
		AlertThreshold: cfg.AlertThreshold,
		LivePush:       cfg.LivePush,
		PublicRPM:      cfg.PublicRPM,
		PublicBurst:    cfg.PublicBurst,
		AdminRPM:       cfg.AdminRPM,
		AdminBurst:     cfg.AdminBurst,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-serveErr:
		logger.Error("api_serve_error", zap.Error(err))
		stop()
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	// Stop taking requests, let the scan and alert loops drain, then release
	// the history store.
	teardown := srv.Shutdown(graceCtx)
	wg.Wait()
	teardown = multierr.Append(teardown, store.Close())
	if teardown != nil {
		logger.Error("shutdown_error", zap.Error(teardown))
		return
	}
	logger.Info("shutdown_complete")
}
