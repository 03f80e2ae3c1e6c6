package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshoesmith/diskmonitor/internal/scoring"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "diskmonitor.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISKMON_LISTEN", "DISKMON_DB_PATH", "DISKMON_LOG_LEVEL",
		"DISKMON_LOG_FORMAT", "DISKMON_POLL_INTERVAL", "DISKMON_MOCK",
		"DISKMON_MOCK_SEED", "DISKMON_SMARTCTL_PATH",
		"DISKMON_NTFY_URL", "DISKMON_NTFY_TOPIC",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

const fullYAML = `
listen: ":9090"
db_path: "/tmp/test.db"
log_level: "debug"
log_format: "json"
poll_interval: "30s"
device_timeout: "10s"
cycle_timeout: "25s"
max_concurrent: 8
stale_cycles: 5
history_entries: 120
retention: "168h"
smartctl_path: "/opt/smartmontools/sbin/smartctl"
mock: true
mock_seed: 42
mock_drives: 5

scoring:
  temp_warn: 45
  temp_crit: 55
  attributes:
    - id: 5
      base: 20
      per_unit: 2.0
      raw_cap: 50
    - id: 254
      base: 1
      per_unit: 0.5
      raw_cap: 5

trend:
  window: 12
  noise_threshold: 0.25

notifications:
  - type: ntfy
    url: "http://10.100.1.104:8080"
    topic: "disk-alerts"
  - type: webhook
    url: "https://hooks.example.com/disks"
    method: "POST"
    headers:
      Authorization: "Bearer xxx"

alerts:
  drive_red:
    severity: "critical"
  drive_degrading:
    severity: "info"
  drive_stale:
    severity: "warning"
  temperature_high:
    threshold: 55
    duration: "10m"
    severity: "warning"
`

func TestLoad_FromYAML(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, fullYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.PollInterval.Duration)
	assert.Equal(t, 10*time.Second, cfg.DeviceTimeout.Duration)
	assert.Equal(t, 25*time.Second, cfg.CycleTimeout.Duration)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, 5, cfg.StaleCycles)
	assert.Equal(t, 120, cfg.HistoryEntries)
	assert.Equal(t, 168*time.Hour, cfg.Retention.Duration)
	assert.Equal(t, "/opt/smartmontools/sbin/smartctl", cfg.SmartctlPath)
	assert.True(t, cfg.Mock)
	assert.Equal(t, int64(42), cfg.MockSeed)
	assert.Equal(t, 5, cfg.MockDrives)

	// Trend
	assert.Equal(t, 12, cfg.Trend.Window)
	assert.InDelta(t, 0.25, cfg.Trend.NoiseThreshold, 1e-9)

	// Notifications
	require.Len(t, cfg.Notifications, 2)
	assert.Equal(t, "ntfy", cfg.Notifications[0].Type)
	assert.Equal(t, "disk-alerts", cfg.Notifications[0].Topic)
	assert.Equal(t, "webhook", cfg.Notifications[1].Type)
	assert.Equal(t, "POST", cfg.Notifications[1].Method)
	assert.Equal(t, "Bearer xxx", cfg.Notifications[1].Headers["Authorization"])

	// Alerts
	require.NotNil(t, cfg.Alerts.DriveRed)
	assert.Equal(t, "critical", cfg.Alerts.DriveRed.Severity)
	require.NotNil(t, cfg.Alerts.DriveDegrading)
	assert.Equal(t, "info", cfg.Alerts.DriveDegrading.Severity)
	require.NotNil(t, cfg.Alerts.DriveStale)
	require.NotNil(t, cfg.Alerts.TemperatureHigh)
	assert.Equal(t, 55.0, cfg.Alerts.TemperatureHigh.Threshold)
	assert.Equal(t, 10*time.Minute, cfg.Alerts.TemperatureHigh.Duration.Duration)
}

func TestLoad_ScoringMerge(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, fullYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Scalars from YAML, untouched ones from the stock policy.
	assert.Equal(t, 45, cfg.Scoring.TempWarn)
	assert.Equal(t, 55, cfg.Scoring.TempCrit)
	def := scoring.DefaultPolicy()
	assert.Equal(t, def.ServiceLifeHours, cfg.Scoring.ServiceLifeHours)
	assert.Equal(t, def.WearMax, cfg.Scoring.WearMax)

	// Row for a known ID replaces the stock row; a new ID is appended;
	// everything else survives.
	assert.Len(t, cfg.Scoring.Attributes, len(def.Attributes)+1)
	byID := map[int]scoring.AttributePolicy{}
	for _, a := range cfg.Scoring.Attributes {
		byID[a.ID] = a
	}
	assert.Equal(t, 20.0, byID[5].Base)
	assert.Equal(t, 50.0, byID[5].RawCap)
	assert.Equal(t, 5.0, byID[197].Base, "untouched stock row must survive a partial override")
	assert.Equal(t, 0.5, byID[254].PerUnit)
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/path/diskmonitor.yml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_EnvVarSubstitution(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOOK_TOKEN", "s3cret-token")

	path := writeYAML(t, `
notifications:
  - type: webhook
    url: "https://hooks.example.com/disks"
    headers:
      Authorization: "Bearer ${HOOK_TOKEN}"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret-token", cfg.Notifications[0].Headers["Authorization"])
}

func TestLoad_EnvVarSubstitution_Unset(t *testing.T) {
	clearEnv(t)

	path := writeYAML(t, `
notifications:
  - type: ntfy
    url: "http://ntfy:8080"
    topic: "${DM_TOPIC}"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic is required")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3900", cfg.Listen)
	assert.Equal(t, "diskmonitor.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 60*time.Second, cfg.PollInterval.Duration)
	assert.Equal(t, 20*time.Second, cfg.DeviceTimeout.Duration)
	assert.Equal(t, 45*time.Second, cfg.CycleTimeout.Duration)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, 3, cfg.StaleCycles)
	assert.Equal(t, 360, cfg.HistoryEntries)
	assert.Equal(t, 720*time.Hour, cfg.Retention.Duration)
	assert.False(t, cfg.Mock)
	assert.Equal(t, int64(1), cfg.MockSeed)
	assert.Equal(t, 3, cfg.MockDrives)
	assert.Equal(t, 30, cfg.Trend.Window)
	assert.InDelta(t, 0.1, cfg.Trend.NoiseThreshold, 1e-9)
	assert.Equal(t, scoring.DefaultPolicy().Attributes, cfg.Scoring.Attributes)
	assert.Empty(t, cfg.Notifications)
	assert.Nil(t, cfg.Alerts.DriveRed)
}

func TestLoad_FromEnvVars(t *testing.T) {
	clearEnv(t)

	t.Setenv("DISKMON_LISTEN", ":4000")
	t.Setenv("DISKMON_DB_PATH", "/tmp/env.db")
	t.Setenv("DISKMON_LOG_LEVEL", "warn")
	t.Setenv("DISKMON_LOG_FORMAT", "json")
	t.Setenv("DISKMON_POLL_INTERVAL", "2m")
	t.Setenv("DISKMON_MOCK", "1")
	t.Setenv("DISKMON_MOCK_SEED", "99")
	t.Setenv("DISKMON_SMARTCTL_PATH", "/usr/local/sbin/smartctl")
	t.Setenv("DISKMON_NTFY_URL", "http://ntfy:8080")
	t.Setenv("DISKMON_NTFY_TOPIC", "test-alerts")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Listen)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval.Duration)
	assert.True(t, cfg.Mock)
	assert.Equal(t, int64(99), cfg.MockSeed)
	assert.Equal(t, "/usr/local/sbin/smartctl", cfg.SmartctlPath)

	require.Len(t, cfg.Notifications, 1)
	assert.Equal(t, "ntfy", cfg.Notifications[0].Type)
	assert.Equal(t, "test-alerts", cfg.Notifications[0].Topic)
}

func TestLoad_EnvOverridesYAMLScalars(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
listen: ":9090"
log_level: "debug"
`)

	t.Setenv("DISKMON_LISTEN", ":5555")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":5555", cfg.Listen, "env wins over YAML")
	assert.Equal(t, "debug", cfg.LogLevel, "YAML wins over defaults")
}

func TestLoad_NtfyDefaultTopic(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISKMON_NTFY_URL", "http://ntfy:8080")
	// No DISKMON_NTFY_TOPIC set -> should default to "diskmonitor-alerts".

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Notifications, 1)
	assert.Equal(t, "diskmonitor-alerts", cfg.Notifications[0].Topic)
}

func TestLoad_AlertDefaults(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
alerts:
  drive_red: {}
  drive_stale: {}
  temperature_high:
    threshold: 58
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Alerts.DriveRed)
	assert.Equal(t, "critical", cfg.Alerts.DriveRed.Severity)
	require.NotNil(t, cfg.Alerts.DriveStale)
	assert.Equal(t, "warning", cfg.Alerts.DriveStale.Severity)
	require.NotNil(t, cfg.Alerts.TemperatureHigh)
	assert.Equal(t, "warning", cfg.Alerts.TemperatureHigh.Severity)
	assert.Equal(t, 5*time.Minute, cfg.Alerts.TemperatureHigh.Duration.Duration)
	assert.Nil(t, cfg.Alerts.DriveDegrading, "unmentioned rule stays disabled")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log_level must be one of",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.LogFormat = "yaml" },
			wantErr: "log_format must be one of",
		},
		{
			name:    "poll_interval zero",
			mutate:  func(c *Config) { c.PollInterval = Duration{} },
			wantErr: "poll_interval must be > 0",
		},
		{
			name:    "device_timeout zero",
			mutate:  func(c *Config) { c.DeviceTimeout = Duration{} },
			wantErr: "device_timeout must be > 0",
		},
		{
			name:    "cycle_timeout zero",
			mutate:  func(c *Config) { c.CycleTimeout = Duration{} },
			wantErr: "cycle_timeout must be > 0",
		},
		{
			name:    "max_concurrent zero",
			mutate:  func(c *Config) { c.MaxConcurrent = 0 },
			wantErr: "max_concurrent must be >= 1",
		},
		{
			name:    "stale_cycles zero",
			mutate:  func(c *Config) { c.StaleCycles = 0 },
			wantErr: "stale_cycles must be >= 1",
		},
		{
			name:    "history_entries too small",
			mutate:  func(c *Config) { c.HistoryEntries = 1 },
			wantErr: "history_entries must be >= 2",
		},
		{
			name:    "retention zero",
			mutate:  func(c *Config) { c.Retention = Duration{} },
			wantErr: "retention must be > 0",
		},
		{
			name:    "mock_drives zero",
			mutate:  func(c *Config) { c.MockDrives = 0 },
			wantErr: "mock_drives must be >= 1",
		},
		{
			name:    "temp band inverted",
			mutate:  func(c *Config) { c.Scoring.TempCrit = c.Scoring.TempWarn - 1 },
			wantErr: "temp_crit must be >= temp_warn",
		},
		{
			name:    "service life zero",
			mutate:  func(c *Config) { c.Scoring.ServiceLifeHours = 0 },
			wantErr: "service_life_hours must be > 0",
		},
		{
			name: "attribute row without id",
			mutate: func(c *Config) {
				c.Scoring.Attributes = append(c.Scoring.Attributes, scoring.AttributePolicy{Base: 5})
			},
			wantErr: "id is required",
		},
		{
			name: "negative attribute weight",
			mutate: func(c *Config) {
				c.Scoring.Attributes = []scoring.AttributePolicy{{ID: 5, Base: -1}}
			},
			wantErr: "weights must be >= 0",
		},
		{
			name:    "trend window too small",
			mutate:  func(c *Config) { c.Trend.Window = 1 },
			wantErr: "trend.window must be >= 2",
		},
		{
			name:    "negative noise threshold",
			mutate:  func(c *Config) { c.Trend.NoiseThreshold = -0.1 },
			wantErr: "noise_threshold must be >= 0",
		},
		{
			name: "notification unknown type",
			mutate: func(c *Config) {
				c.Notifications = []NotificationConfig{{Type: "slack", URL: "http://x"}}
			},
			wantErr: "unknown type \"slack\"",
		},
		{
			name: "ntfy missing topic",
			mutate: func(c *Config) {
				c.Notifications = []NotificationConfig{{Type: "ntfy", URL: "http://x"}}
			},
			wantErr: "topic is required for ntfy",
		},
		{
			name: "webhook missing url",
			mutate: func(c *Config) {
				c.Notifications = []NotificationConfig{{Type: "webhook"}}
			},
			wantErr: "url is required for webhook",
		},
		{
			name: "bad alert severity",
			mutate: func(c *Config) {
				c.Alerts.DriveRed = &AlertDriveRed{Severity: "fatal"}
			},
			wantErr: "severity must be one of",
		},
		{
			name: "temperature alert threshold zero",
			mutate: func(c *Config) {
				c.Alerts.TemperatureHigh = &AlertTemperatureHigh{Severity: "warning", Duration: Duration{time.Minute}}
			},
			wantErr: "threshold must be > 0",
		},
		{
			name: "temperature alert duration zero",
			mutate: func(c *Config) {
				c.Alerts.TemperatureHigh = &AlertTemperatureHigh{Threshold: 55, Severity: "warning"}
			},
			wantErr: "duration must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, "{{invalid yaml")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `poll_interval: "not-a-duration"`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestDuration_MarshalYAML(t *testing.T) {
	d := Duration{Duration: 5 * time.Minute}
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", v)
}

func TestDuration_MarshalYAML_SubSecond(t *testing.T) {
	d := Duration{Duration: 500 * time.Millisecond}
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "500ms", v)
}

func TestLoad_ValidationFails(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `log_level: "chatty"`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation")
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)

	path := writeYAML(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":3900", cfg.Listen)
}

func FuzzExpandEnvVars(f *testing.F) {
	f.Add([]byte(`listen: ":3900"`))
	f.Add([]byte(`topic: "${MY_TOPIC}"`))
	f.Add([]byte(`${} ${VAR} $VAR`))
	f.Add([]byte(`token: "${A}${B}"`))
	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic
		_ = expandEnvVars(data)
	})
}

// validConfig returns a minimal valid Config for mutation in tests.
func validConfig() *Config {
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
		MockDrives:     3,
		Scoring:        scoring.DefaultPolicy(),
		Trend:          TrendConfig{Window: 30, NoiseThreshold: 0.1},
	}
}
