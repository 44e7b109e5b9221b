package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hostwatch/internal/config"
	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hostwatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
mode = "instances"
interval = 30
output_dir = "/var/lib/hostwatch"
log_level = "debug"

[cpu]
mode = "instant"
window_size = 12
sample_spacing = "5s"

[web]
service = "httpd"
health_url = "http://localhost:8080/healthz"

[database]
driver = "sqlite3"
dsn = "/var/lib/app/app.db"

[[services]]
name = "postgres"
display_name = "PostgreSQL"
port = 5432

[[services]]
name = "cron"
display_name = "Cron daemon"

[instances]
regions = ["us-east-1", "eu-west-1"]

[metrics]
enabled = true
exporter = "otlp-grpc"
endpoint = "collector:4317"
`)

	t.Setenv("HOSTWATCH_CONFIG", configPath)

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)

	assert.Equal(t, "instances", cfg.Mode, "Expected Mode instances")
	assert.Equal(t, 30, cfg.Interval, "Expected Interval 30")
	assert.Equal(t, 30*time.Second, cfg.IntervalDuration())
	assert.Equal(t, "/var/lib/hostwatch", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.Equal(t, "instant", cfg.CPU.Mode)
	assert.Equal(t, 12, cfg.CPU.WindowSize)
	assert.Equal(t, 5*time.Second, cfg.CPU.SampleSpacing)
	assert.Equal(t, "httpd", cfg.WebServer.Service)
	assert.Equal(t, "http://localhost:8080/healthz", cfg.WebServer.HealthURL)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/app/app.db", cfg.Database.DSN)
	require.Len(t, cfg.Services, 2)
	assert.Equal(t, "postgres", cfg.Services[0].Name)
	assert.Equal(t, 5432, cfg.Services[0].Port)
	assert.Equal(t, 0, cfg.Services[1].Port, "Expected no port for cron")
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, cfg.Instances.Regions)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "otlp-grpc", cfg.Metrics.Exporter)
	assert.Equal(t, "collector:4317", cfg.Metrics.Endpoint)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOSTWATCH_CONFIG", "")

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultMode, cfg.Mode)
	assert.Equal(t, 0, cfg.Interval, "Expected a single run by default")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel warning")
	assert.Equal(t, "rolling", cfg.CPU.Mode)
	assert.Equal(t, 30, cfg.CPU.WindowSize)
	assert.Equal(t, 10*time.Second, cfg.CPU.SampleSpacing)
	assert.Equal(t, 100*time.Millisecond, cfg.Sampling.WarmupDelay)
	assert.Equal(t, time.Second, cfg.Sampling.PortTimeout)
	assert.Equal(t, 6*time.Hour, cfg.Metadata.TokenTTL)
	assert.Equal(t, "http://169.254.169.254", cfg.Metadata.Endpoint)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Services)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)

	t.Setenv("HOSTWATCH_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.Equal(t, errors.ErrReadConfig, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)

	t.Setenv("HOSTWATCH_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_log_level")
}

func TestInvalidCPUMode(t *testing.T) {
	t.Setenv("HOSTWATCH_CONFIG", "")

	_, err := config.Load(config.WithArgs([]string{"--cpu-mode", "sometimes"}))
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}

func TestFlagsOverrideFile(t *testing.T) {
	configPath := writeConfig(t, `
interval = 30
log_level = "error"
`)

	cfg, err := config.Load(
		config.WithConfigFile(configPath),
		config.WithArgs([]string{"--log-level", "debug", "--interval", "5", "--region", "ap-south-1"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.Equal(t, 5, cfg.Interval)
	assert.Equal(t, []string{"ap-south-1"}, cfg.Instances.Regions)
}

func TestDebugFlag(t *testing.T) {
	t.Setenv("HOSTWATCH_CONFIG", "")

	cfg, err := config.Load(config.WithArgs([]string{"--debug"}))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	configPath := writeConfig(t, `
output_dir = "/from/file"
`)

	t.Setenv("HOSTWATCH_CONFIG", configPath)
	t.Setenv("HOSTWATCH_OUTPUT_DIR", "/from/env")
	t.Setenv("HOSTWATCH_CPU_MODE", "instant")

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.OutputDir)
	assert.Equal(t, "instant", cfg.CPU.Mode)
}

func TestLogLevelIsValid(t *testing.T) {
	assert.True(t, config.LogLevelWarning.IsValid())
	assert.False(t, config.LogLevel("warn").IsValid())
	assert.True(t, config.ModeMetadata.IsValid())
	assert.False(t, config.Mode("serve").IsValid())
}
