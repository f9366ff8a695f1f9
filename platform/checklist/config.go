package checklist

import (
	"fmt"
	"time"
)

// Config holds configuration for the checklist platform.
type Config struct {
	// Platform is the platform key the host matched this entry on.
	Platform string `json:"platform"`

	// Name is the display name of the platform instance.
	Name string `json:"name"`

	// HTTPAddr is the listen address of the checklist HTTP API.
	HTTPAddr string `json:"http_addr"`

	// Watch reloads the checklist when the file is edited on disk.
	Watch bool `json:"watch"`

	// WatchDebounce collapses bursts of file events, e.g. "250ms".
	WatchDebounce string `json:"watch_debounce,omitempty"`

	// NATSURL enables change events when set.
	NATSURL string `json:"nats_url,omitempty"`

	// SubjectPrefix prefixes the event subjects.
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// DefaultConfig returns the default platform configuration.
func DefaultConfig() Config {
	return Config{
		Platform:      PlatformName,
		Name:          "Checklist",
		HTTPAddr:      ":3000",
		WatchDebounce: "250ms",
		SubjectPrefix: "checklist",
	}
}

// Validate verifies the configuration is consistent.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if c.NATSURL != "" && c.SubjectPrefix == "" {
		return fmt.Errorf("subject_prefix is required when nats_url is set")
	}
	if c.WatchDebounce != "" {
		d, err := time.ParseDuration(c.WatchDebounce)
		if err != nil {
			return fmt.Errorf("invalid watch_debounce: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("watch_debounce must be positive")
		}
	}
	return nil
}

// GetWatchDebounce returns the debounce interval, defaulting to 250ms.
func (c *Config) GetWatchDebounce() time.Duration {
	if c.WatchDebounce == "" {
		return 250 * time.Millisecond
	}
	d, err := time.ParseDuration(c.WatchDebounce)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}
