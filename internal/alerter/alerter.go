// Package alerter evaluates alert rules against published drive state.
package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cshoesmith/diskmonitor/internal/model"
	"github.com/cshoesmith/diskmonitor/internal/notify"
	"github.com/cshoesmith/diskmonitor/internal/publish"
	"github.com/cshoesmith/diskmonitor/internal/store"
)

// AlertConfig holds configuration for alert rules. A nil rule is disabled.
type AlertConfig struct {
	DriveRed        *SimpleAlert    `yaml:"drive_red"`
	DriveDegrading  *SimpleAlert    `yaml:"drive_degrading"`
	DriveStale      *StaleAlert     `yaml:"drive_stale"`
	TemperatureHigh *ThresholdAlert `yaml:"temperature_high"`
}

// ThresholdAlert triggers when a value stays above a threshold for a duration.
type ThresholdAlert struct {
	Threshold float64       `yaml:"threshold"`
	Duration  time.Duration `yaml:"duration"`
	Severity  string        `yaml:"severity"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// StaleAlert triggers after a run of consecutive query failures.
type StaleAlert struct {
	MinCycles int           `yaml:"min_cycles"`
	Severity  string        `yaml:"severity"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// SimpleAlert triggers on a boolean condition.
type SimpleAlert struct {
	Severity string        `yaml:"severity"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// DefaultAlertConfig returns sensible alert defaults.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		DriveRed: &SimpleAlert{
			Severity: "critical", Cooldown: 6 * time.Hour,
		},
		DriveDegrading: &SimpleAlert{
			Severity: "warning", Cooldown: 6 * time.Hour,
		},
		DriveStale: &StaleAlert{
			MinCycles: 3, Severity: "warning", Cooldown: 1 * time.Hour,
		},
		TemperatureHigh: &ThresholdAlert{
			Threshold: 55, Duration: 5 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
	}
}

// Alerter evaluates rules and sends notifications.
type Alerter struct {
	pub       *publish.Publisher
	store     *store.Store
	providers []notify.Provider
	config    AlertConfig
	interval  time.Duration

	// Deduplication: maps alert key → last fired time
	lastFired map[string]time.Time

	// Track sustained conditions: maps alert key → first observed time
	sustained map[string]time.Time
}

// NewAlerter creates a new alerter.
func NewAlerter(pub *publish.Publisher, s *store.Store, providers []notify.Provider, cfg AlertConfig) *Alerter {
	return &Alerter{
		pub:       pub,
		store:     s,
		providers: providers,
		config:    cfg,
		interval:  30 * time.Second,
		lastFired: make(map[string]time.Time),
		sustained: make(map[string]time.Time),
	}
}

// Run starts the alerter evaluation loop.
func (a *Alerter) Run(ctx context.Context) error {
	slog.Info("alerter started", "interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alerter stopped")
			return ctx.Err()
		case <-ticker.C:
			a.evaluate(ctx)
		}
	}
}

func (a *Alerter) cleanup(now time.Time) {
	const maxAge = 6 * time.Hour
	for key, t := range a.lastFired {
		if now.Sub(t) > maxAge {
			delete(a.lastFired, key)
		}
	}
	for key, t := range a.sustained {
		if now.Sub(t) > maxAge {
			delete(a.sustained, key)
		}
	}
}

func (a *Alerter) evaluate(ctx context.Context) {
	snap, ok := a.pub.Latest()
	if !ok {
		return // nothing published yet
	}
	now := time.Now()

	a.cleanup(now)

	for _, d := range snap.Drives {
		if !d.Present {
			continue
		}
		key := d.Identity.Key
		label := driveLabel(d)

		if cfg := a.config.DriveRed; cfg != nil && d.Health.Status == model.StatusRed {
			a.fire(ctx, now, "drive_red:"+key, cfg.Cooldown, model.Notification{
				AlertType: "drive_red",
				Severity:  cfg.Severity,
				Title:     fmt.Sprintf("Drive Health Red: %s", label),
				Message:   fmt.Sprintf("%s health score %d: %s", label, d.Health.Score, redReason(d)),
				DriveKey:  key,
				Subject:   devPath(d),
				Timestamp: now,
				Metadata: map[string]string{
					"score":  fmt.Sprintf("%d", d.Health.Score),
					"serial": d.Identity.Serial,
				},
			})
		}

		if cfg := a.config.DriveDegrading; cfg != nil &&
			d.Trend == model.TrendDegrading && d.Health.Status != model.StatusRed {
			a.fire(ctx, now, "drive_degrading:"+key, cfg.Cooldown, model.Notification{
				AlertType: "drive_degrading",
				Severity:  cfg.Severity,
				Title:     fmt.Sprintf("Drive Degrading: %s", label),
				Message:   fmt.Sprintf("%s critical counters are rising across recent cycles (score %d)", label, d.Health.Score),
				DriveKey:  key,
				Subject:   devPath(d),
				Timestamp: now,
				Metadata: map[string]string{
					"trend": string(d.Trend),
					"score": fmt.Sprintf("%d", d.Health.Score),
				},
			})
		}

		if cfg := a.config.DriveStale; cfg != nil &&
			d.Stale && d.ConsecutiveFailures >= cfg.MinCycles {
			a.fire(ctx, now, "drive_stale:"+key, cfg.Cooldown, model.Notification{
				AlertType: "drive_stale",
				Severity:  cfg.Severity,
				Title:     fmt.Sprintf("Drive Unreadable: %s", label),
				Message: fmt.Sprintf("%s has not answered for %d cycles: %s",
					label, d.ConsecutiveFailures, failureText(d.Failure)),
				DriveKey:  key,
				Subject:   devPath(d),
				Timestamp: now,
				Metadata: map[string]string{
					"failures": fmt.Sprintf("%d", d.ConsecutiveFailures),
					"kind":     string(d.Failure),
				},
			})
		}

		if cfg := a.config.TemperatureHigh; cfg != nil &&
			d.Snapshot != nil && d.Snapshot.Temperature != nil {
			temp := *d.Snapshot.Temperature
			a.checkSustainedThreshold(ctx, now,
				"temp_high:"+key,
				float64(temp),
				cfg,
				model.Notification{
					AlertType: "temperature_high",
					Severity:  cfg.Severity,
					Title:     fmt.Sprintf("Drive Temperature High: %s", label),
					Message:   fmt.Sprintf("%s at %d°C (limit %.0f°C) sustained", label, temp, cfg.Threshold),
					DriveKey:  key,
					Subject:   devPath(d),
					Timestamp: now,
					Metadata:  map[string]string{"temperature": fmt.Sprintf("%d", temp)},
				},
			)
		}
	}
}

func (a *Alerter) checkSustainedThreshold(ctx context.Context, now time.Time, key string, value float64, cfg *ThresholdAlert, notif model.Notification) {
	if value >= cfg.Threshold {
		if first, ok := a.sustained[key]; ok {
			if now.Sub(first) >= cfg.Duration {
				a.fire(ctx, now, key, cfg.Cooldown, notif)
			}
		} else {
			a.sustained[key] = now
		}
	} else {
		delete(a.sustained, key)
	}
}

func (a *Alerter) fire(ctx context.Context, now time.Time, key string, cooldown time.Duration, notif model.Notification) {
	if last, ok := a.lastFired[key]; ok && now.Sub(last) < cooldown {
		return // still in cooldown
	}
	a.lastFired[key] = now

	// Log to store
	if err := a.store.InsertAlert(now.Unix(), notif.AlertType, notif.DriveKey, notif.Subject, notif.Message, notif.Severity); err != nil {
		slog.Error("storing alert", "type", notif.AlertType, "error", err)
	}

	// Send to all providers
	for _, p := range a.providers {
		if err := p.Send(ctx, notif); err != nil {
			slog.Error("sending notification", "provider", p.Name(), "alert", notif.AlertType, "error", err)
		}
	}

	slog.Warn("alert fired",
		"type", notif.AlertType,
		"severity", notif.Severity,
		"drive", notif.DriveKey,
		"subject", notif.Subject,
		"title", notif.Title,
	)
}

// driveLabel names a drive for humans: model plus its device path.
func driveLabel(d model.DriveState) string {
	path := devPath(d)
	switch {
	case d.Identity.Model != "" && path != "":
		return fmt.Sprintf("%s (%s)", d.Identity.Model, path)
	case d.Identity.Model != "":
		return d.Identity.Model
	case path != "":
		return path
	default:
		return d.Identity.Key
	}
}

// devPath returns the drive's most recently observed device path.
func devPath(d model.DriveState) string {
	if n := len(d.Identity.Paths); n > 0 {
		return d.Identity.Paths[n-1]
	}
	return ""
}

// redReason explains the dominant cause of a Red verdict.
func redReason(d model.DriveState) string {
	if d.Snapshot != nil && d.Snapshot.HealthPassed != nil && !*d.Snapshot.HealthPassed {
		return "vendor self-assessment reports FAILED"
	}
	var worst *model.Contribution
	for i := range d.Health.Contributions {
		c := &d.Health.Contributions[i]
		if worst == nil || c.Penalty > worst.Penalty {
			worst = c
		}
	}
	if worst == nil {
		return "drive reports a failing attribute"
	}
	return fmt.Sprintf("worst signal %s (-%.0f)", worst.Name, worst.Penalty)
}

// failureText renders a failure kind as a human-readable cause, so a
// permissions problem reads differently from a dying drive.
func failureText(k model.FailureKind) string {
	switch k {
	case model.FailPermissionDenied:
		return "permission denied reading the device (monitor needs raw device access)"
	case model.FailTimeout:
		return "device did not answer within its timeout"
	case model.FailToolUnavailable:
		return "smartctl is not available"
	case model.FailParse:
		return "diagnostic output could not be parsed"
	default:
		return "query failed"
	}
}
