// Package config provides configuration loading and management for the
// checklist bridge.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPlatform is the platform configured when none is given.
const DefaultPlatform = "ChecklistPlatform"

var pinPattern = regexp.MustCompile(`^\d{8}$`)

// Config represents the complete checklist bridge configuration
type Config struct {
	// StoragePath holds the checklist file, the accessory cache and pairing data
	StoragePath string `yaml:"storage_path"`

	Log    LogConfig    `yaml:"log"`
	Bridge BridgeConfig `yaml:"bridge"`

	// MetricsAddr serves Prometheus metrics when set
	MetricsAddr string `yaml:"metrics_addr"`

	// Platforms are passed to their platform factory as JSON
	Platforms []PlatformConfig `yaml:"platforms"`
}

// LogConfig configures the root logger
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text (console) or json
	Format string `yaml:"format"`
}

// BridgeConfig configures the HomeKit bridge
type BridgeConfig struct {
	Name string `yaml:"name"`
	// Pin is the 8-digit pairing code
	Pin string `yaml:"pin"`
	// Addr is the HAP listen address (empty = random port)
	Addr string `yaml:"addr"`
}

// PlatformConfig is one platform entry. The "platform" key selects the
// factory; every other key belongs to the platform.
type PlatformConfig map[string]any

// Platform returns the platform key.
func (p PlatformConfig) Platform() string {
	s, _ := p["platform"].(string)
	return s
}

// JSON returns the entry as the raw JSON handed to the platform factory.
func (p PlatformConfig) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, fmt.Errorf("marshal platform %s config: %w", p.Platform(), err)
	}
	return data, nil
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		StoragePath: "~/.checklist",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Bridge: BridgeConfig{
			Name: "Checklist Bridge",
			Pin:  "00102003",
		},
		Platforms: []PlatformConfig{
			{"platform": DefaultPlatform, "name": "Checklist"},
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.StoragePath == "" {
		return fmt.Errorf("storage_path is required")
	}
	if len(c.Platforms) == 0 {
		return fmt.Errorf("at least one platform is required")
	}
	for i, p := range c.Platforms {
		if p.Platform() == "" {
			return fmt.Errorf("platforms[%d]: platform is required", i)
		}
	}
	if c.Bridge.Pin != "" && !pinPattern.MatchString(c.Bridge.Pin) {
		return fmt.Errorf("bridge.pin must be 8 digits")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.StoragePath != "" {
		c.StoragePath = other.StoragePath
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}

	// Bridge
	if other.Bridge.Name != "" {
		c.Bridge.Name = other.Bridge.Name
	}
	if other.Bridge.Pin != "" {
		c.Bridge.Pin = other.Bridge.Pin
	}
	if other.Bridge.Addr != "" {
		c.Bridge.Addr = other.Bridge.Addr
	}

	if other.MetricsAddr != "" {
		c.MetricsAddr = other.MetricsAddr
	}

	// Platform lists are replaced, not merged
	if len(other.Platforms) > 0 {
		c.Platforms = other.Platforms
	}
}

// ChecklistPath returns the checklist file inside the storage path.
func (c *Config) ChecklistPath() string {
	return filepath.Join(c.StoragePath, "checklist.json")
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
