package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Perf.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Perf.Workers)
	}
	if cfg.Perf.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d, want 3", cfg.Perf.RetryAttempts)
	}
	if cfg.Transport.ToolPath != "rclone" {
		t.Errorf("tool path = %s, want rclone", cfg.Transport.ToolPath)
	}
	if cfg.Catalog.Timeout().Seconds() != 30 {
		t.Errorf("timeout = %v, want 30s", cfg.Catalog.Timeout())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
catalog:
  base_url: https://unifier.example.com
  user: alice
  timeout_seconds: 10
mirror:
  target_dir: /data/mirror
transport:
  force_native: true
  bandwidth_limit: 2.5MB
performance:
  workers: 8
logging:
  format: json
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Catalog.BaseURL != "https://unifier.example.com" {
		t.Errorf("base URL = %s", cfg.Catalog.BaseURL)
	}
	if cfg.Mirror.TargetDir != "/data/mirror" {
		t.Errorf("target dir = %s", cfg.Mirror.TargetDir)
	}
	if !cfg.Transport.ForceNative || cfg.Transport.BandwidthLimit != "2.5MB" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Perf.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Perf.Workers)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	// Untouched sections keep their defaults.
	if cfg.Perf.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d, want default 3", cfg.Perf.RetryAttempts)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UNIFIER_BASE_URL", "https://env.example.com")
	t.Setenv("UNIFIER_WORKERS", "16")
	t.Setenv("UNIFIER_FORCE_NATIVE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Catalog.BaseURL != "https://env.example.com" {
		t.Errorf("base URL = %s, env should win", cfg.Catalog.BaseURL)
	}
	if cfg.Perf.Workers != 16 {
		t.Errorf("workers = %d, want 16", cfg.Perf.Workers)
	}
	if !cfg.Transport.ForceNative {
		t.Error("force_native should be set from env")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Perf.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero workers should fail validation")
	}

	cfg = Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Error("enabled metrics without an address should fail validation")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("an explicitly named missing file is an error")
	}
}
