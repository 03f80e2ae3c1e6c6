package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/cshoesmith/diskmonitor/internal/alerter"
	"github.com/cshoesmith/diskmonitor/internal/api"
	"github.com/cshoesmith/diskmonitor/internal/config"
	"github.com/cshoesmith/diskmonitor/internal/history"
	"github.com/cshoesmith/diskmonitor/internal/identity"
	"github.com/cshoesmith/diskmonitor/internal/notify"
	"github.com/cshoesmith/diskmonitor/internal/publish"
	"github.com/cshoesmith/diskmonitor/internal/scheduler"
	"github.com/cshoesmith/diskmonitor/internal/scoring"
	"github.com/cshoesmith/diskmonitor/internal/source"
	"github.com/cshoesmith/diskmonitor/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS details from the
// embedded Go build info. ldflags-injected values take priority; VCS info
// from debug.ReadBuildInfo fills in anything left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver = version
	sha = commit
	built = buildTime
	dirty = "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}

	return
}

// buildAlertConfig maps config file alert rules onto the runtime rules,
// starting each enabled rule from its stock settings. A rule absent from the
// config stays disabled.
func buildAlertConfig(cfg *config.Config) alerter.AlertConfig {
	def := alerter.DefaultAlertConfig()
	var out alerter.AlertConfig

	if r := cfg.Alerts.DriveRed; r != nil {
		rule := *def.DriveRed
		rule.Severity = r.Severity
		out.DriveRed = &rule
	}
	if r := cfg.Alerts.DriveDegrading; r != nil {
		rule := *def.DriveDegrading
		rule.Severity = r.Severity
		out.DriveDegrading = &rule
	}
	if r := cfg.Alerts.DriveStale; r != nil {
		rule := *def.DriveStale
		rule.Severity = r.Severity
		rule.MinCycles = cfg.StaleCycles
		out.DriveStale = &rule
	}
	if r := cfg.Alerts.TemperatureHigh; r != nil {
		rule := *def.TemperatureHigh
		rule.Threshold = r.Threshold
		rule.Duration = r.Duration.Duration
		rule.Severity = r.Severity
		out.TemperatureHigh = &rule
	}
	return out
}

func main() {
	configPath := flag.String("config", "", "path to diskmonitor.yml config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	ver, sha, built, dirty := buildInfo()

	if *showVersion {
		fmt.Printf("diskmonitor %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
			fmt.Fprintf(os.Stderr, "Copy the example config to get started:\n")
			fmt.Fprintf(os.Stderr, "  cp diskmonitor.example.yml %s\n\n", *configPath)
			fmt.Fprintf(os.Stderr, "Docs: https://github.com/cshoesmith/diskmonitor#configuration\n")
		} else {
			fmt.Fprintf(os.Stderr, "error: loading config (%s): %s\n", *configPath, err)
		}
		os.Exit(1)
	}

	// Configure logging
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting diskmonitor",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"listen", cfg.Listen,
	)

	// Initialize store
	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Choose the SMART source: explicit mock mode wins, otherwise probe for
	// smartctl and fall back to synthetic drives when it is missing.
	binary := cfg.SmartctlPath
	if binary == "" {
		binary = "smartctl"
	}
	var src source.Source
	if cfg.Mock {
		src = source.NewMock(cfg.MockSeed, cfg.MockDrives)
	} else if err := source.Probe(context.Background(), binary); err != nil {
		slog.Warn("smartctl unavailable, monitoring synthetic drives", "binary", binary, "error", err)
		src = source.NewMock(cfg.MockSeed, cfg.MockDrives)
	} else {
		src = source.NewSmartctl(binary)
	}

	pub := publish.New()
	resolver := identity.NewResolver()
	scorer := scoring.NewScorer(cfg.Scoring)
	hist := history.New(cfg.HistoryEntries, cfg.Trend.Window, cfg.Trend.NoiseThreshold)

	sched := scheduler.New(scheduler.Config{
		PollInterval:  cfg.PollInterval.Duration,
		DeviceTimeout: cfg.DeviceTimeout.Duration,
		CycleTimeout:  cfg.CycleTimeout.Duration,
		MaxConcurrent: cfg.MaxConcurrent,
	}, src, resolver, scorer, hist, pub, st)

	// Warm start: restore persisted drive states and their history windows so
	// trends and staleness survive a restart.
	restored := 0
	if states, err := st.LoadDrives(); err != nil {
		slog.Error("loading persisted drives", "error", err)
	} else if len(states) > 0 {
		for i := range states {
			key := states[i].Identity.Key
			entries, err := st.RecentHistory(key, cfg.HistoryEntries)
			if err != nil {
				slog.Error("loading drive history", "drive", key, "error", err)
				continue
			}
			hist.Load(key, entries)
		}
		sched.Seed(states)
		restored = len(states)
	}

	// Setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Start scheduler
	g.Go(func() error { return sched.Run(ctx) })

	// Start pruner
	retention := store.RetentionConfig{
		HealthHistory:  cfg.Retention.Duration,
		SmartSnapshots: cfg.Retention.Duration,
		AlertLog:       cfg.Retention.Duration,
	}
	pruner := store.NewPruner(st, retention)
	g.Go(func() error { return pruner.Run(ctx) })

	// Build notification providers
	var providers []notify.Provider
	for _, ncfg := range cfg.Notifications {
		switch ncfg.Type {
		case "ntfy":
			providers = append(providers, notify.NewNtfy(ncfg.URL, ncfg.Topic))
		case "webhook":
			method := ncfg.Method
			if method == "" {
				method = "POST"
			}
			providers = append(providers, notify.NewWebhook(ncfg.URL, method, ncfg.Headers))
		}
	}

	// Start alerter
	a := alerter.NewAlerter(pub, st, providers, buildAlertConfig(cfg))
	g.Go(func() error { return a.Run(ctx) })

	// Start HTTP server
	server := api.NewServer(cfg.Listen, pub, st, sched)
	g.Go(func() error { return server.Run(ctx) })

	slog.Info("all components started",
		"source", src.Kind(),
		"poll_interval", cfg.PollInterval.Duration,
		"restored_drives", restored,
		"notifications", len(providers),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
	}

	slog.Info("diskmonitor stopped gracefully")
}
