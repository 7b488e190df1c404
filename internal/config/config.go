package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kidsafe/internal/models"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port      string `yaml:"port"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Collector struct {
		URL               string  `yaml:"url"`
		PollInterval      int64   `yaml:"poll_interval_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"collector"`
	Engine struct {
		CooldownSeconds      int64   `yaml:"cooldown_seconds"`
		SimilarityThreshold  float64 `yaml:"similarity_threshold"`
		QueueSize            int     `yaml:"queue_size"`
		Workers              int     `yaml:"workers"`
		FilterRefreshSeconds int64   `yaml:"filter_refresh_seconds"`
		SessionBuffer        int     `yaml:"session_buffer"`
		ContentKeyEnv        string  `yaml:"content_key_env"`
		Thresholds           struct {
			Critical float64 `yaml:"critical"`
			High     float64 `yaml:"high"`
			Medium   float64 `yaml:"medium"`
			Low      float64 `yaml:"low"`
		} `yaml:"thresholds"`
	} `yaml:"engine"`
}

// LoadConfig reads configuration from the specified YAML file and fills in
// defaults for unset engine options.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Collector.PollInterval <= 0 {
		c.Collector.PollInterval = 30
	}
	if c.Engine.CooldownSeconds <= 0 {
		c.Engine.CooldownSeconds = 300
	}
	if c.Engine.SimilarityThreshold <= 0 {
		c.Engine.SimilarityThreshold = 0.7
	}
	if c.Engine.FilterRefreshSeconds <= 0 {
		c.Engine.FilterRefreshSeconds = 30
	}
	if c.Engine.ContentKeyEnv == "" {
		c.Engine.ContentKeyEnv = "KIDSAFE_CONTENT_KEY"
	}
	if c.Engine.Thresholds.Critical <= 0 {
		c.Engine.Thresholds.Critical = 0.8
	}
	if c.Engine.Thresholds.High <= 0 {
		c.Engine.Thresholds.High = 0.8
	}
	if c.Engine.Thresholds.Medium <= 0 {
		c.Engine.Thresholds.Medium = 0.6
	}
	if c.Engine.Thresholds.Low <= 0 {
		c.Engine.Thresholds.Low = 0.4
	}
}

// CooldownWindow returns the cooldown window as a duration.
func (c *Config) CooldownWindow() time.Duration {
	return time.Duration(c.Engine.CooldownSeconds) * time.Second
}

// FilterRefreshInterval returns the custom-filter refresh cycle.
func (c *Config) FilterRefreshInterval() time.Duration {
	return time.Duration(c.Engine.FilterRefreshSeconds) * time.Second
}

// PollInterval returns the collector poll cycle.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Collector.PollInterval) * time.Second
}

// AlertThresholds returns the per-severity minimum confidence for a flagged
// message to be alert-worthy.
func (c *Config) AlertThresholds() map[models.Severity]float64 {
	return map[models.Severity]float64{
		models.SeverityCritical: c.Engine.Thresholds.Critical,
		models.SeverityHigh:     c.Engine.Thresholds.High,
		models.SeverityMedium:   c.Engine.Thresholds.Medium,
		models.SeverityLow:      c.Engine.Thresholds.Low,
	}
}
