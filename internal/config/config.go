package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Removed-target policies for the status cache when the target file shrinks.
const (
	PolicyPurge  = "purge"
	PolicyRetain = "retain"
)

type Config struct {
	Addr     string // API bind address, e.g. ":8080"
	LogDir   string // logs directory
	LogLevel string // zap level name: debug|info|warn|error

	TargetsFile string // flat name,address file, re-read on the refresh cadence
	HistoryDB   string // sqlite file holding transition history

	CheckInterval time.Duration // one scan cycle per interval
	Workers       int           // probe worker pool size
	TargetRefresh time.Duration // how often the targets file is re-read

	ICMPTimeout  time.Duration // per echo attempt
	ICMPAttempts int           // echo attempts before TCP fallback
	TCPTimeout   time.Duration // per port connect attempt
	TCPPorts     []int         // fallback ports, tried in order

	AlertThreshold  time.Duration // continuously-unreachable duration that makes an alert
	AlertCooldown   time.Duration // minimum gap between repeated DOWN notifications per target
	AlertOnRecovery bool
	SlackWebhook    string
	AlertWebhook    string // generic JSON webhook, optional

	HistoryMaxAge       time.Duration // 0 keeps history forever
	RemovedTargetPolicy string        // purge|retain

	PublicAPIKeys []string
	AdminAPIKeys  []string
	PublicRPM     int
	PublicBurst   int
	AdminRPM      int
	AdminBurst    int

	LivePush time.Duration // websocket snapshot push interval
}

// Default returns the built-in configuration. The probe timings mirror the
// values the service has always shipped with: 800ms echo attempts, two tries,
// then 300ms connects against 3389/445/80.
func Default() Config {
	return Config{
		Addr:                ":8080",
		LogDir:              "logs",
		LogLevel:            "info",
		TargetsFile:         "machines.csv",
		HistoryDB:           "netwatch.db",
		CheckInterval:       10 * time.Second,
		Workers:             32,
		TargetRefresh:       5 * time.Minute,
		ICMPTimeout:         800 * time.Millisecond,
		ICMPAttempts:        2,
		TCPTimeout:          300 * time.Millisecond,
		TCPPorts:            []int{3389, 445, 80},
		AlertThreshold:      5 * time.Minute,
		AlertCooldown:       15 * time.Minute,
		AlertOnRecovery:     true,
		RemovedTargetPolicy: PolicyPurge,
		PublicRPM:           120,
		PublicBurst:         60,
		AdminRPM:            60,
		AdminBurst:          30,
		LivePush:            10 * time.Second,
	}
}

// fileConfig is the YAML shape. Durations are milliseconds so the file reads
// like the env variables do.
type fileConfig struct {
	Addr     string `yaml:"addr"`
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	TargetsFile string `yaml:"targets_file"`
	HistoryDB   string `yaml:"history_db"`

	CheckIntervalMS int `yaml:"check_interval_ms"`
	Workers         int `yaml:"max_concurrent_checks"`
	TargetRefreshMS int `yaml:"target_refresh_ms"`

	ICMPTimeoutMS int    `yaml:"icmp_timeout_ms"`
	ICMPAttempts  int    `yaml:"icmp_attempts"`
	TCPTimeoutMS  int    `yaml:"tcp_timeout_ms"`
	TCPPorts      string `yaml:"tcp_ports"`

	AlertThresholdMS int    `yaml:"alert_threshold_ms"`
	AlertCooldownMS  int    `yaml:"alert_cooldown_ms"`
	AlertOnRecovery  *bool  `yaml:"alert_on_recovery"`
	SlackWebhook     string `yaml:"slack_webhook"`
	AlertWebhook     string `yaml:"alert_webhook"`

	HistoryMaxAgeMS     int    `yaml:"history_max_age_ms"`
	RemovedTargetPolicy string `yaml:"removed_target_policy"`

	PublicAPIKeys string `yaml:"public_api_keys"`
	AdminAPIKeys  string `yaml:"admin_api_keys"`
	PublicRPM     int    `yaml:"public_rpm"`
	PublicBurst   int    `yaml:"public_burst"`
	AdminRPM      int    `yaml:"admin_rpm"`
	AdminBurst    int    `yaml:"admin_burst"`

	LivePushMS int `yaml:"live_push_ms"`
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (a missing file is fine), then env overrides. The returned error is a
// startup-fatal configuration problem.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			var fc fileConfig
			if err := yaml.Unmarshal(content, &fc); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
			applyFile(&cfg, fc)
		}
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load without a file, for callers that configure purely by env.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func applyFile(cfg *Config, fc fileConfig) {
	setStr(&cfg.Addr, fc.Addr)
	setStr(&cfg.LogDir, fc.LogDir)
	setStr(&cfg.LogLevel, fc.LogLevel)
	setStr(&cfg.TargetsFile, fc.TargetsFile)
	setStr(&cfg.HistoryDB, fc.HistoryDB)
	setDurMS(&cfg.CheckInterval, fc.CheckIntervalMS)
	setInt(&cfg.Workers, fc.Workers)
	setDurMS(&cfg.TargetRefresh, fc.TargetRefreshMS)
	setDurMS(&cfg.ICMPTimeout, fc.ICMPTimeoutMS)
	setInt(&cfg.ICMPAttempts, fc.ICMPAttempts)
	setDurMS(&cfg.TCPTimeout, fc.TCPTimeoutMS)
	if fc.TCPPorts != "" {
		if ports, err := ParsePorts(fc.TCPPorts); err == nil {
			cfg.TCPPorts = ports
		}
	}
	setDurMS(&cfg.AlertThreshold, fc.AlertThresholdMS)
	setDurMS(&cfg.AlertCooldown, fc.AlertCooldownMS)
	if fc.AlertOnRecovery != nil {
		cfg.AlertOnRecovery = *fc.AlertOnRecovery
	}
	setStr(&cfg.SlackWebhook, fc.SlackWebhook)
	setStr(&cfg.AlertWebhook, fc.AlertWebhook)
	setDurMS(&cfg.HistoryMaxAge, fc.HistoryMaxAgeMS)
	setStr(&cfg.RemovedTargetPolicy, fc.RemovedTargetPolicy)
	if fc.PublicAPIKeys != "" {
		cfg.PublicAPIKeys = splitList(fc.PublicAPIKeys)
	}
	if fc.AdminAPIKeys != "" {
		cfg.AdminAPIKeys = splitList(fc.AdminAPIKeys)
	}
	setInt(&cfg.PublicRPM, fc.PublicRPM)
	setInt(&cfg.PublicBurst, fc.PublicBurst)
	setInt(&cfg.AdminRPM, fc.AdminRPM)
	setInt(&cfg.AdminBurst, fc.AdminBurst)
	setDurMS(&cfg.LivePush, fc.LivePushMS)
}

func applyEnv(cfg *Config) {
	envStr(&cfg.Addr, "ADDR")
	envStr(&cfg.LogDir, "LOG_DIR")
	envStr(&cfg.LogLevel, "LOG_LEVEL")
	envStr(&cfg.TargetsFile, "TARGETS_FILE")
	envStr(&cfg.HistoryDB, "HISTORY_DB")
	envDurMS(&cfg.CheckInterval, "CHECK_INTERVAL_MS")
	envInt(&cfg.Workers, "MAX_CONCURRENT_CHECKS")
	envDurMS(&cfg.TargetRefresh, "TARGET_REFRESH_MS")
	envDurMS(&cfg.ICMPTimeout, "ICMP_TIMEOUT_MS")
	envInt(&cfg.ICMPAttempts, "ICMP_ATTEMPTS")
	envDurMS(&cfg.TCPTimeout, "TCP_TIMEOUT_MS")
	if v := os.Getenv("TCP_PORTS"); v != "" {
		if ports, err := ParsePorts(v); err == nil {
			cfg.TCPPorts = ports
		}
	}
	envDurMS(&cfg.AlertThreshold, "ALERT_THRESHOLD_MS")
	envDurMS(&cfg.AlertCooldown, "ALERT_COOLDOWN_MS")
	if v := os.Getenv("ALERT_ON_RECOVERY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AlertOnRecovery = b
		}
	}
	envStr(&cfg.SlackWebhook, "SLACK_WEBHOOK")
	envStr(&cfg.AlertWebhook, "ALERT_WEBHOOK")
	envDurMS(&cfg.HistoryMaxAge, "HISTORY_MAX_AGE_MS")
	envStr(&cfg.RemovedTargetPolicy, "REMOVED_TARGET_POLICY")
	if v := os.Getenv("PUBLIC_API_KEYS"); v != "" {
		cfg.PublicAPIKeys = splitList(v)
	}
	if v := os.Getenv("ADMIN_API_KEYS"); v != "" {
		cfg.AdminAPIKeys = splitList(v)
	}
	envInt(&cfg.PublicRPM, "PUBLIC_RPM")
	envInt(&cfg.PublicBurst, "PUBLIC_BURST")
	envInt(&cfg.AdminRPM, "ADMIN_RPM")
	envInt(&cfg.AdminBurst, "ADMIN_BURST")
	envDurMS(&cfg.LivePush, "LIVE_PUSH_MS")
}

func validate(cfg *Config) error {
	d := Default()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = d.CheckInterval
	}
	if cfg.Workers < 1 {
		cfg.Workers = d.Workers
	}
	if cfg.TargetRefresh <= 0 {
		cfg.TargetRefresh = d.TargetRefresh
	}
	if cfg.ICMPTimeout <= 0 {
		cfg.ICMPTimeout = d.ICMPTimeout
	}
	if cfg.ICMPAttempts < 1 {
		cfg.ICMPAttempts = d.ICMPAttempts
	}
	if cfg.TCPTimeout <= 0 {
		cfg.TCPTimeout = d.TCPTimeout
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = d.AlertThreshold
	}
	if cfg.AlertCooldown < 0 {
		cfg.AlertCooldown = d.AlertCooldown
	}
	if cfg.HistoryMaxAge < 0 {
		cfg.HistoryMaxAge = 0
	}
	if cfg.LivePush <= 0 {
		cfg.LivePush = d.LivePush
	}
	if len(cfg.TCPPorts) == 0 {
		return errors.New("config: tcp port list is empty")
	}
	for _, p := range cfg.TCPPorts {
		if p < 1 || p > 65535 {
			return fmt.Errorf("config: invalid tcp port %d", p)
		}
	}
	switch cfg.RemovedTargetPolicy {
	case PolicyPurge, PolicyRetain:
	case "":
		cfg.RemovedTargetPolicy = d.RemovedTargetPolicy
	default:
		return fmt.Errorf("config: unknown removed_target_policy %q", cfg.RemovedTargetPolicy)
	}
	if cfg.TargetsFile == "" {
		return errors.New("config: targets_file is empty")
	}
	if cfg.HistoryDB == "" {
		return errors.New("config: history_db is empty")
	}
	return nil
}

// ParsePorts parses a comma-separated port list like "3389,445,80".
func ParsePorts(s string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad port %q: %w", part, err)
		}
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("port %d out of range", p)
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return nil, errors.New("empty port list")
	}
	return ports, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDurMS(dst *time.Duration, ms int) {
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func envDurMS(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
}
