package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Staleness.StaleThreshold != 10 {
		t.Errorf("stale threshold = %d, want default 10", cfg.Staleness.StaleThreshold)
	}
	if cfg.Extraction.BatchSize != 5 {
		t.Errorf("batch size = %d, want default 5", cfg.Extraction.BatchSize)
	}
	if cfg.Assembly.TotalCap != 1500 {
		t.Errorf("total cap = %d, want default 1500", cfg.Assembly.TotalCap)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memoryd.yaml")
	data := `
state_path: /var/lib/memoryd
extraction:
  batch_size: 8
  noise_types: [heartbeat]
staleness:
  stale_threshold: 25
  refresh_interval: 90s
ollama:
  model: llama3.1:8b
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatePath != "/var/lib/memoryd" {
		t.Errorf("state path = %q", cfg.StatePath)
	}
	if cfg.Extraction.BatchSize != 8 {
		t.Errorf("batch size = %d, want 8", cfg.Extraction.BatchSize)
	}
	if len(cfg.Extraction.NoiseTypes) != 1 || cfg.Extraction.NoiseTypes[0] != "heartbeat" {
		t.Errorf("noise types = %v", cfg.Extraction.NoiseTypes)
	}
	if cfg.Staleness.StaleThreshold != 25 {
		t.Errorf("stale threshold = %d, want 25", cfg.Staleness.StaleThreshold)
	}
	if cfg.Staleness.RefreshInterval.Std() != 90*time.Second {
		t.Errorf("refresh interval = %v, want 90s", cfg.Staleness.RefreshInterval)
	}
	// Untouched keys keep their defaults
	if cfg.Extraction.CharsPerToken != 4 {
		t.Errorf("chars per token = %d, want default 4", cfg.Extraction.CharsPerToken)
	}
	if cfg.Ollama.URL != "http://localhost:11434" {
		t.Errorf("ollama url = %q", cfg.Ollama.URL)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("\t[not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
