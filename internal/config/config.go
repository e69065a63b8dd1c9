// Package config loads memoryd configuration from a YAML file with sensible
// defaults for every knob.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets YAML carry "90s" or "5m" style values
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full memoryd configuration
type Config struct {
	StatePath string `yaml:"state_path"`

	Extraction struct {
		MinContentLen int      `yaml:"min_content_len"`
		NoiseTypes    []string `yaml:"noise_types"`
		DedupWindow   int      `yaml:"dedup_window"`
		BatchSize     int      `yaml:"batch_size"`
		CharsPerToken int      `yaml:"chars_per_token"`
		EnableProse   bool     `yaml:"enable_prose"`
		Model         string   `yaml:"model"`
		SpoolSize     int      `yaml:"spool_size"`
		SpoolMaxAge   Duration `yaml:"spool_max_age"`
	} `yaml:"extraction"`

	Staleness struct {
		AgeFactor       float64  `yaml:"age_factor"`
		StaleThreshold  int      `yaml:"stale_threshold"`
		RefreshInterval Duration `yaml:"refresh_interval"`
		RefreshLimit    int      `yaml:"refresh_limit"`
		MaxCPUPercent   float64  `yaml:"max_cpu_percent"`
	} `yaml:"staleness"`

	Assembly struct {
		Identity   int `yaml:"identity"`
		State      int `yaml:"state"`
		Knowledge  int `yaml:"knowledge"`
		Recent     int `yaml:"recent"`
		Entities   int `yaml:"entities"`
		Reflection int `yaml:"reflection"`
		TotalCap   int `yaml:"total_cap"`
	} `yaml:"assembly"`

	Ollama struct {
		URL   string `yaml:"url"`
		Model string `yaml:"model"`
	} `yaml:"ollama"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{StatePath: "state"}
	cfg.Extraction.BatchSize = 5
	cfg.Extraction.CharsPerToken = 4
	cfg.Extraction.SpoolSize = 10
	cfg.Extraction.SpoolMaxAge = Duration(30 * time.Second)
	cfg.Staleness.AgeFactor = 0.1
	cfg.Staleness.StaleThreshold = 10
	cfg.Staleness.RefreshInterval = Duration(5 * time.Minute)
	cfg.Staleness.RefreshLimit = 5
	cfg.Staleness.MaxCPUPercent = 70
	cfg.Assembly.TotalCap = 1500
	cfg.Ollama.URL = "http://localhost:11434"
	cfg.Ollama.Model = "qwen2.5:7b"
	return cfg
}

// Load reads a YAML config file over the defaults. A missing file is fine;
// a malformed one is not.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
