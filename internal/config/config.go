package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Dataset   DatasetConfig   `json:"dataset"`
	Transform TransformConfig `json:"transform"`
	Captioner CaptionerConfig `json:"captioner"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Listen string `json:"listen"`
}

// DatasetConfig holds the dataset root location
type DatasetConfig struct {
	Root string `json:"root"`
}

// TransformConfig holds defaults for image transforms
type TransformConfig struct {
	DefaultMaxSide int `json:"default_max_side"`
	Quality        int `json:"quality"`
}

// CaptionerConfig holds configuration for caption suggestions
type CaptionerConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Model   string `json:"model"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:8000",
		},
		Dataset: DatasetConfig{
			Root: "./dataset",
		},
		Transform: TransformConfig{
			DefaultMaxSide: 1024,
			Quality:        90,
		},
		Captioner: CaptionerConfig{
			Enabled: false,
			URL:     "http://localhost:11434",
			Model:   "llava",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen cannot be empty")
	}

	if c.Dataset.Root == "" {
		return fmt.Errorf("dataset.root cannot be empty")
	}

	if c.Transform.DefaultMaxSide < 1 {
		return fmt.Errorf("transform.default_max_side must be positive")
	}

	if c.Transform.Quality < 1 || c.Transform.Quality > 100 {
		return fmt.Errorf("transform.quality must be between 1 and 100")
	}

	if c.Captioner.Enabled {
		if c.Captioner.URL == "" {
			return fmt.Errorf("captioner.url cannot be empty when enabled")
		}
		if c.Captioner.Model == "" {
			return fmt.Errorf("captioner.model cannot be empty when enabled")
		}
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "capset", "config.json")
}
