package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := "models_dir: /srv/models\niterations: 5\nmin_precision: 0.75\ntimeout: 3s\nlog_format: json\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.ModelsDir != "/srv/models" || cfg.LogFormat != "json" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.Iterations == nil || *cfg.Iterations != 5 {
			t.Fatalf("iterations: %v", cfg.Iterations)
		}
		if cfg.MinPrecision == nil || *cfg.MinPrecision != 0.75 {
			t.Fatalf("min_precision: %v", cfg.MinPrecision)
		}
		if cfg.Timeout == nil || *cfg.Timeout != 3*time.Second {
			t.Fatalf("timeout: %v", cfg.Timeout)
		}
		if cfg.MaxTokens != nil {
			t.Fatalf("max_tokens should be unset, got %d", *cfg.MaxTokens)
		}
	})

	t.Run("missing default file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg != (Config{}) {
			t.Fatalf("expected zero config, got %+v", cfg)
		}
	})

	t.Run("default location", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", home)
		t.Setenv("HOME", home)
		path := configPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("server_address: 0.0.0.0:9000\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.ServerAddress != "0.0.0.0:9000" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("iterations: [oops\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("expected parse error")
		}
	})
}
