package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.json"))
	t.Setenv("PHOTO_STORAGE_PATH", filepath.Join(dir, "photos"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.ServerAddress)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, 3, cfg.Exchange.MaxAttempts)
	assert.True(t, cfg.Lifecycle.Enabled)
	assert.Equal(t, time.Hour, cfg.Lifecycle.Interval())
	assert.Equal(t, 30*24*time.Hour, cfg.Lifecycle.SoftDeleteAfter())
	assert.Equal(t, 7*24*time.Hour, cfg.Lifecycle.HardDeleteAfter())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.True(t, filepath.IsAbs(cfg.PhotoStorage.BasePath))

	info, err := os.Stat(cfg.PhotoStorage.BasePath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"serverAddress": ":7000",
		"exchange": {"maxAttempts": 5},
		"lifecycle": {"enabled": false, "batchSize": 50},
		"security": {"ipHashSalt": "from-file"}
	}`), 0644))

	t.Setenv("CONFIG_PATH", configPath)
	t.Setenv("PHOTO_STORAGE_PATH", filepath.Join(dir, "photos"))
	t.Setenv("SERVER_ADDRESS", ":8080")
	t.Setenv("DATABASE_URL", "postgres://localhost/photoexchange")
	t.Setenv("LIFECYCLE_SOFT_DELETE_AFTER_HOURS", "48")
	t.Setenv("LIFECYCLE_INTERVAL_MINUTES", "-5")
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL_SECONDS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress, "environment wins over file")
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 5, cfg.Exchange.MaxAttempts)
	assert.False(t, cfg.Lifecycle.Enabled)
	assert.Equal(t, 50, cfg.Lifecycle.BatchSize)
	assert.Equal(t, 48*time.Hour, cfg.Lifecycle.SoftDeleteAfter())
	assert.Equal(t, 60, cfg.Lifecycle.IntervalMinutes, "invalid values are ignored")
	assert.Equal(t, "from-file", cfg.Security.IPHashSalt)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
	assert.Equal(t, 10*time.Second, cfg.Telemetry.ExportInterval())
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{not json`), 0644))
	t.Setenv("CONFIG_PATH", configPath)

	_, err := Load()
	assert.Error(t, err)
}
