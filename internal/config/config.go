package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sensorable/platelbl"
	"github.com/sensorable/platelbl/vision"
)

// Environment variables that override the configuration file.
const (
	EnvAddr    = "PLATELBL_ADDR"
	EnvClasses = "PLATELBL_CLASSES" // Comma separated.
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	Classes []string      `json:"classes"`
	Locator vision.Params `json:"locator"`
	Output  OutputConfig  `json:"output"`
}

// ServerConfig holds configuration for the HTTP daemon
type ServerConfig struct {
	Addr          string `json:"addr"`
	MaxUploadSize int64  `json:"max_upload_size"` // Bytes.
}

// OutputConfig holds configuration for crop and overlay images
type OutputConfig struct {
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			MaxUploadSize: 32 << 20,
		},
		Classes: []string{"licence", "licence-plate", "license-plate", "plate", "number-plate"},
		Locator: vision.DefaultParams(),
		Output: OutputConfig{
			Format:  "jpg",
			Quality: 90,
		},
	}
}

// Load returns the configuration from filename, or the defaults if filename is empty, with
// environment overrides applied.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		var err error
		if cfg, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LoadFromFile loads configuration from a JSON file. Missing values keep their defaults.
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
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides values with those set in the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvClasses); v != "" {
		c.Classes = strings.Split(v, ",")
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}

	if _, err := c.Vocabulary(); err != nil {
		return fmt.Errorf("classes: %w", err)
	}

	if err := c.Locator.Validate(); err != nil {
		return fmt.Errorf("locator: %w", err)
	}

	if _, err := platelbl.ImageExt(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// Vocabulary returns the class vocabulary defined by c.Classes.
func (c *Config) Vocabulary() (*platelbl.Vocabulary, error) {
	if len(c.Classes) == 0 {
		return nil, fmt.Errorf("no classes defined")
	}
	return platelbl.NewVocabulary(c.Classes...)
}
