// Package config loads mirror engine configuration from YAML files and
// environment variables. Environment variables override file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exponential-tech/unifier-mirror/internal/logging"
	"github.com/exponential-tech/unifier-mirror/internal/metrics"
)

// Config is the full engine configuration.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Transport TransportConfig `yaml:"transport"`
	Perf      PerfConfig      `yaml:"performance"`
	Logging   logging.Config  `yaml:"logging"`
	Metrics   metrics.Config  `yaml:"metrics"`
}

// CatalogConfig locates and authenticates against the catalog service.
type CatalogConfig struct {
	BaseURL        string `yaml:"base_url"`
	User           string `yaml:"user"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MirrorConfig controls the local mirror tree.
type MirrorConfig struct {
	TargetDir      string `yaml:"target_dir"`
	WriteManifests bool   `yaml:"write_manifests"`
}

// TransportConfig controls transport selection and the bandwidth ceiling.
type TransportConfig struct {
	ToolPath       string `yaml:"tool_path"`
	ForceNative    bool   `yaml:"force_native"`
	BandwidthLimit string `yaml:"bandwidth_limit"` // e.g. "2.5MB", "500K", "off"
}

// PerfConfig tunes concurrency and retry behavior.
type PerfConfig struct {
	Workers        int `yaml:"workers"`
	RetryAttempts  int `yaml:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
}

// RetryBackoff returns the initial retry backoff as a duration.
func (p PerfConfig) RetryBackoff() time.Duration {
	return time.Duration(p.RetryBackoffMs) * time.Millisecond
}

// Default returns the configuration defaults applied before any file or
// environment override.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			TimeoutSeconds: 30,
		},
		Mirror: MirrorConfig{
			TargetDir:      "./mirror",
			WriteManifests: true,
		},
		Transport: TransportConfig{
			ToolPath: "rclone",
		},
		Perf: PerfConfig{
			Workers:        4,
			RetryAttempts:  3,
			RetryBackoffMs: 500,
		},
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
		Metrics: metrics.Config{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays UNIFIER_* environment variables.
func (c *Config) applyEnv() {
	setString(&c.Catalog.BaseURL, "UNIFIER_BASE_URL")
	setString(&c.Catalog.User, "UNIFIER_USER")
	setString(&c.Catalog.Token, "UNIFIER_TOKEN")
	setInt(&c.Catalog.TimeoutSeconds, "UNIFIER_TIMEOUT_SECONDS")

	setString(&c.Mirror.TargetDir, "UNIFIER_TARGET_DIR")
	setBool(&c.Mirror.WriteManifests, "UNIFIER_WRITE_MANIFESTS")

	setString(&c.Transport.ToolPath, "UNIFIER_TOOL_PATH")
	setBool(&c.Transport.ForceNative, "UNIFIER_FORCE_NATIVE")
	setString(&c.Transport.BandwidthLimit, "UNIFIER_BWLIMIT")

	setInt(&c.Perf.Workers, "UNIFIER_WORKERS")
	setInt(&c.Perf.RetryAttempts, "UNIFIER_RETRY_ATTEMPTS")
	setInt(&c.Perf.RetryBackoffMs, "UNIFIER_RETRY_BACKOFF_MS")

	setString(&c.Logging.Format, "UNIFIER_LOG_FORMAT")
	setString(&c.Logging.Level, "UNIFIER_LOG_LEVEL")

	setBool(&c.Metrics.Enabled, "UNIFIER_METRICS_ENABLED")
	setString(&c.Metrics.Address, "UNIFIER_METRICS_ADDRESS")
}

// Validate checks internal consistency. The catalog base URL is checked by
// the commands that need it, so offline commands still work without one.
func (c *Config) Validate() error {
	if c.Perf.Workers < 1 {
		return fmt.Errorf("performance.workers must be >= 1, got %d", c.Perf.Workers)
	}
	if c.Perf.RetryAttempts < 1 {
		return fmt.Errorf("performance.retry_attempts must be >= 1, got %d", c.Perf.RetryAttempts)
	}
	if c.Catalog.TimeoutSeconds < 1 {
		return fmt.Errorf("catalog.timeout_seconds must be >= 1, got %d", c.Catalog.TimeoutSeconds)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
