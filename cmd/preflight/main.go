package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netwatch/internal/config"
	"github.com/hamed0406/netwatch/internal/probe"
	"github.com/hamed0406/netwatch/internal/targets"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("config valid (interval %s, %d workers, tcp ports %v)",
		cfg.CheckInterval, cfg.Workers, cfg.TCPPorts))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ts, err := targets.NewFile(cfg.TargetsFile, zap.NewNop()).Load(ctx)
	if err != nil {
		fail(fmt.Sprintf("targets file %s: %v", cfg.TargetsFile, err))
	}
	if len(ts) == 0 {
		fail(fmt.Sprintf("targets file %s yields no targets", cfg.TargetsFile))
	}
	ok(fmt.Sprintf("targets file %s: %d targets", cfg.TargetsFile, len(ts)))

	if err := checkWritable(cfg.HistoryDB); err != nil {
		fail(fmt.Sprintf("history db %s: %v", cfg.HistoryDB, err))
	}
	ok("history db path writable: " + cfg.HistoryDB)

	if err := probe.NewICMP(cfg.ICMPTimeout).Available(); err != nil {
		if probe.IsPermissionError(err) {
			warn("raw ICMP needs CAP_NET_RAW or root; probing will lean on the TCP fallback")
		} else {
			warn(fmt.Sprintf("ICMP unavailable (%v); probing will lean on the TCP fallback", err))
		}
	} else {
		ok("ICMP socket available")
	}

	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("no API keys configured; all routes are open")
	} else {
		ok(fmt.Sprintf("API keys configured (%d public, %d admin)",
			len(cfg.PublicAPIKeys), len(cfg.AdminAPIKeys)))
	}

	ok("preflight passed")
}

// checkWritable proves the db file can be created or opened for writing. A
// file created just for the check is removed again.
func checkWritable(path string) error {
	if path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.Close()
	if os.IsNotExist(statErr) {
		os.Remove(path)
	}
	return nil
}
