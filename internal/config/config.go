package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL         string `yaml:"backend_url"`
	APIKey             string `yaml:"api_key"`
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	EnableDeepThinking bool   `yaml:"enable_deep_thinking"`

	// Title generation can run on a cheaper model than the chat itself.
	// Empty fields fall back to the chat settings.
	TitleProvider string `yaml:"title_provider"`
	TitleModel    string `yaml:"title_model"`
	TitleAPIKey   string `yaml:"title_api_key"`

	// StreamTimeoutSec bounds a single streaming request; zero disables
	// the watchdog.
	StreamTimeoutSec int `yaml:"stream_timeout_sec"`

	// RenderIntervalMs is the minimum gap between screen refreshes
	// while streaming.
	RenderIntervalMs int `yaml:"render_interval_ms"`

	// DataDir overrides where sessions and trash live.
	DataDir string `yaml:"data_dir"`

	SyncEnabled       bool   `yaml:"sync_enabled"`
	SyncDebounceMs    int    `yaml:"sync_debounce_ms"`
	EmbeddingProvider string `yaml:"embedding_provider"`
	EmbeddingModel    string `yaml:"embedding_model"`
}

func DefaultConfig() Config {
	return Config{
		BackendURL:       "http://localhost:8000",
		Provider:         "deepseek",
		Model:            "deepseek-chat",
		StreamTimeoutSec: 60,
		RenderIntervalMs: 120,
		SyncDebounceMs:   2000,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:8000"
	}
	if cfg.Provider == "" {
		cfg.Provider = "deepseek"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.StreamTimeoutSec < 0 {
		cfg.StreamTimeoutSec = 0
	}
	if cfg.RenderIntervalMs <= 0 {
		cfg.RenderIntervalMs = 120
	}
	if cfg.SyncDebounceMs <= 0 {
		cfg.SyncDebounceMs = 2000
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "note-assistant", "config.yml")
}

// ApplyEnv lets environment variables override the file for the
// secrets people prefer not to write to disk.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("NOTA_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("NOTA_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("NOTA_TITLE_API_KEY"); v != "" {
		cfg.TitleAPIKey = v
	}
}
