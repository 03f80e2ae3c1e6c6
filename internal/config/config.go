// Package config handles loading and validating diskmonitor configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cshoesmith/diskmonitor/internal/scoring"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level diskmonitor configuration.
type Config struct {
	Listen         string               `yaml:"listen"`
	DBPath         string               `yaml:"db_path"`
	LogLevel       string               `yaml:"log_level"`
	LogFormat      string               `yaml:"log_format"`
	PollInterval   Duration             `yaml:"poll_interval"`
	DeviceTimeout  Duration             `yaml:"device_timeout"`
	CycleTimeout   Duration             `yaml:"cycle_timeout"`
	MaxConcurrent  int                  `yaml:"max_concurrent"`
	StaleCycles    int                  `yaml:"stale_cycles"`
	HistoryEntries int                  `yaml:"history_entries"`
	Retention      Duration             `yaml:"retention"`
	SmartctlPath   string               `yaml:"smartctl_path"`
	Mock           bool                 `yaml:"mock"`
	MockSeed       int64                `yaml:"mock_seed"`
	MockDrives     int                  `yaml:"mock_drives"`
	Scoring        scoring.Policy       `yaml:"scoring"`
	Trend          TrendConfig          `yaml:"trend"`
	Notifications  []NotificationConfig `yaml:"notifications"`
	Alerts         AlertsConfig         `yaml:"alerts"`
}

// TrendConfig tunes the degradation-slope detector.
type TrendConfig struct {
	Window         int     `yaml:"window"`          // cycles considered
	NoiseThreshold float64 `yaml:"noise_threshold"` // slope below this is Stable
}

// NotificationConfig describes a notification target.
type NotificationConfig struct {
	Type    string            `yaml:"type"` // "ntfy" or "webhook"
	URL     string            `yaml:"url"`
	Topic   string            `yaml:"topic,omitempty"`   // ntfy only
	Method  string            `yaml:"method,omitempty"`  // webhook only
	Headers map[string]string `yaml:"headers,omitempty"` // webhook only
}

// AlertsConfig holds the per-rule alert settings. A nil rule is disabled.
type AlertsConfig struct {
	DriveRed        *AlertDriveRed        `yaml:"drive_red,omitempty"`
	DriveDegrading  *AlertDriveDegrading  `yaml:"drive_degrading,omitempty"`
	DriveStale      *AlertDriveStale      `yaml:"drive_stale,omitempty"`
	TemperatureHigh *AlertTemperatureHigh `yaml:"temperature_high,omitempty"`
}

type AlertDriveRed struct {
	Severity string `yaml:"severity"`
}

type AlertDriveDegrading struct {
	Severity string `yaml:"severity"`
}

type AlertDriveStale struct {
	Severity string `yaml:"severity"`
}

type AlertTemperatureHigh struct {
	Threshold float64  `yaml:"threshold"` // °C
	Duration  Duration `yaml:"duration"`  // how long it must hold
	Severity  string   `yaml:"severity"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. If no path is given, defaults
// plus environment variables apply; the zero config is runnable (the binary
// probes for smartctl and falls back to the synthetic source). If a path is
// given and the file does not exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.Scoring = mergeScoring(cfg.Scoring)
	normalizeAlerts(&cfg.Alerts)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if c.DeviceTimeout.Duration <= 0 {
		return fmt.Errorf("device_timeout must be > 0")
	}
	if c.CycleTimeout.Duration <= 0 {
		return fmt.Errorf("cycle_timeout must be > 0")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be >= 1")
	}
	if c.StaleCycles < 1 {
		return fmt.Errorf("stale_cycles must be >= 1")
	}
	if c.HistoryEntries < 2 {
		return fmt.Errorf("history_entries must be >= 2")
	}
	if c.Retention.Duration <= 0 {
		return fmt.Errorf("retention must be > 0")
	}
	if c.MockDrives < 1 {
		return fmt.Errorf("mock_drives must be >= 1")
	}

	if c.Scoring.TempCrit < c.Scoring.TempWarn {
		return fmt.Errorf("scoring: temp_crit must be >= temp_warn")
	}
	if c.Scoring.ServiceLifeHours <= 0 {
		return fmt.Errorf("scoring: service_life_hours must be > 0")
	}
	for i, a := range c.Scoring.Attributes {
		if a.ID <= 0 {
			return fmt.Errorf("scoring.attributes[%d]: id is required", i)
		}
		if a.Base < 0 || a.PerUnit < 0 || a.RawCap < 0 {
			return fmt.Errorf("scoring.attributes[%d]: weights must be >= 0", i)
		}
	}

	if c.Trend.Window < 2 {
		return fmt.Errorf("trend.window must be >= 2")
	}
	if c.Trend.NoiseThreshold < 0 {
		return fmt.Errorf("trend.noise_threshold must be >= 0")
	}

	for i, n := range c.Notifications {
		switch n.Type {
		case "ntfy":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for ntfy", i)
			}
			if n.Topic == "" {
				return fmt.Errorf("notifications[%d]: topic is required for ntfy", i)
			}
		case "webhook":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for webhook", i)
			}
		default:
			return fmt.Errorf("notifications[%d]: unknown type %q (expected ntfy or webhook)", i, n.Type)
		}
	}

	validSeverities := map[string]bool{"info": true, "warning": true, "critical": true}
	checkSeverity := func(rule, severity string) error {
		if !validSeverities[severity] {
			return fmt.Errorf("alerts.%s: severity must be one of: info, warning, critical", rule)
		}
		return nil
	}
	if a := c.Alerts.DriveRed; a != nil {
		if err := checkSeverity("drive_red", a.Severity); err != nil {
			return err
		}
	}
	if a := c.Alerts.DriveDegrading; a != nil {
		if err := checkSeverity("drive_degrading", a.Severity); err != nil {
			return err
		}
	}
	if a := c.Alerts.DriveStale; a != nil {
		if err := checkSeverity("drive_stale", a.Severity); err != nil {
			return err
		}
	}
	if a := c.Alerts.TemperatureHigh; a != nil {
		if err := checkSeverity("temperature_high", a.Severity); err != nil {
			return err
		}
		if a.Threshold <= 0 {
			return fmt.Errorf("alerts.temperature_high: threshold must be > 0")
		}
		if a.Duration.Duration <= 0 {
			return fmt.Errorf("alerts.temperature_high: duration must be > 0")
		}
	}

	return nil
}

func defaults() *Config {
	return &Config{
		Listen:         ":3900",
		DBPath:         "diskmonitor.db",
		LogLevel:       "info",
		LogFormat:      "text",
		PollInterval:   Duration{60 * time.Second},
		DeviceTimeout:  Duration{20 * time.Second},
		CycleTimeout:   Duration{45 * time.Second},
		MaxConcurrent:  4,
		StaleCycles:    3,
		HistoryEntries: 360,
		Retention:      Duration{720 * time.Hour},
		MockSeed:       1,
		MockDrives:     3,
		Scoring:        scoring.DefaultPolicy(),
		Trend:          TrendConfig{Window: 30, NoiseThreshold: 0.1},
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISKMON_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("DISKMON_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DISKMON_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DISKMON_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("DISKMON_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = Duration{d}
		}
	}
	if v := os.Getenv("DISKMON_SMARTCTL_PATH"); v != "" {
		cfg.SmartctlPath = v
	}
	if v := os.Getenv("DISKMON_MOCK"); v == "true" || v == "1" {
		cfg.Mock = true
	}
	if v := os.Getenv("DISKMON_MOCK_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MockSeed = n
		}
	}

	// Single ntfy target from env vars (only if no YAML notifications configured).
	if len(cfg.Notifications) == 0 {
		if ntfyURL := os.Getenv("DISKMON_NTFY_URL"); ntfyURL != "" {
			topic := os.Getenv("DISKMON_NTFY_TOPIC")
			if topic == "" {
				topic = "diskmonitor-alerts"
			}
			cfg.Notifications = append(cfg.Notifications, NotificationConfig{
				Type:  "ntfy",
				URL:   ntfyURL,
				Topic: topic,
			})
		}
	}
}

// mergeScoring folds user attribute rows over the stock policy table by ID.
// Scalar fields pass through as unmarshaled; a row for an ID the stock table
// knows replaces that row, any other ID is appended. Users tune or extend
// the table without restating it.
func mergeScoring(p scoring.Policy) scoring.Policy {
	def := scoring.DefaultPolicy()
	merged := slices.Clone(def.Attributes)

	byID := make(map[int]int, len(merged))
	for i, a := range merged {
		byID[a.ID] = i
	}
	for _, a := range p.Attributes {
		if i, ok := byID[a.ID]; ok {
			merged[i] = a
		} else {
			merged = append(merged, a)
		}
	}

	p.Attributes = merged
	return p
}

// normalizeAlerts fills per-rule defaults so enabling a rule takes one line.
func normalizeAlerts(a *AlertsConfig) {
	if r := a.DriveRed; r != nil && r.Severity == "" {
		r.Severity = "critical"
	}
	if r := a.DriveDegrading; r != nil && r.Severity == "" {
		r.Severity = "warning"
	}
	if r := a.DriveStale; r != nil && r.Severity == "" {
		r.Severity = "warning"
	}
	if r := a.TemperatureHigh; r != nil {
		if r.Severity == "" {
			r.Severity = "warning"
		}
		if r.Duration.Duration == 0 {
			r.Duration = Duration{5 * time.Minute}
		}
	}
}
