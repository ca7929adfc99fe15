package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  addr: ":9090"
storage:
  backend: memory
scheduler:
  slot_duration_minutes: 30
  score:
    severity_weight: 0.5
    tier_weight: 0.2
    proximity_weight: 0.2
    wait_penalty_weight: 0.1
metrics:
  prometheus_enabled: true
  prometheus_port: ":2112"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 30, cfg.Scheduler.SlotDurationMinutes)
	assert.Equal(t, 0.5, cfg.Scheduler.Score.SeverityWeight)
	assert.True(t, cfg.Metrics.PrometheusEnabled)

	// Unset sections fall back to defaults.
	assert.Equal(t, 5, cfg.Scheduler.SlotSearchLimit)
	assert.Equal(t, 30, cfg.Forecast.HistoryDays)
	assert.Equal(t, "fleet/telemetry/#", cfg.MQTT.TelemetryTopic)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"server": {"addr": ":7070"}, "storage": {"backend": "sqlite", "path": "test.db"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "test.db", cfg.Storage.Path)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  addr: ":8080"
storage:
  backend: memory
`)
	require.NoError(t, os.Setenv("FG_SERVER__ADDR", ":6060"))
	defer func() { _ = os.Unsetenv("FG_SERVER__ADDR") }()

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Addr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
storage:
  backend: cassandra
`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "config2.yaml", `
storage:
  backend: memory
logging:
  level: loud
`)
	_, err = Load(path)
	assert.Error(t, err)
}
