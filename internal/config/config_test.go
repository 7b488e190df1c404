package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidsafe/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost:5432/kidsafe"
server:
  port: ":8081"
  jwt_secret: "test-secret"
collector:
  url: "http://collector:9090"
  poll_interval_seconds: 10
  requests_per_second: 2
engine:
  cooldown_seconds: 60
  similarity_threshold: 0.8
  queue_size: 128
  workers: 2
  thresholds:
    critical: 0.9
    medium: 0.5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/kidsafe", cfg.Database.URL)
	assert.Equal(t, ":8081", cfg.Server.Port)
	assert.Equal(t, "test-secret", cfg.Server.JWTSecret)
	assert.Equal(t, "http://collector:9090", cfg.Collector.URL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval())
	assert.Equal(t, time.Minute, cfg.CooldownWindow())
	assert.Equal(t, 0.8, cfg.Engine.SimilarityThreshold)
	assert.Equal(t, 128, cfg.Engine.QueueSize)
	assert.Equal(t, 2, cfg.Engine.Workers)

	thresholds := cfg.AlertThresholds()
	assert.Equal(t, 0.9, thresholds[models.SeverityCritical])
	assert.Equal(t, 0.5, thresholds[models.SeverityMedium])
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost:5432/kidsafe"
server:
  port: ":8080"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 300*time.Second, cfg.CooldownWindow())
	assert.Equal(t, 30*time.Second, cfg.FilterRefreshInterval())
	assert.Equal(t, 0.7, cfg.Engine.SimilarityThreshold)
	assert.Equal(t, "KIDSAFE_CONTENT_KEY", cfg.Engine.ContentKeyEnv)

	thresholds := cfg.AlertThresholds()
	assert.Equal(t, 0.8, thresholds[models.SeverityCritical])
	assert.Equal(t, 0.8, thresholds[models.SeverityHigh])
	assert.Equal(t, 0.6, thresholds[models.SeverityMedium])
	assert.Equal(t, 0.4, thresholds[models.SeverityLow])
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "database: [not: a: mapping")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
