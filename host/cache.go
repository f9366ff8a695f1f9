package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	cacheDir  = "accessories"
	cacheFile = "cachedAccessories.json"
)

type cachedAccessory struct {
	Plugin      string        `json:"plugin"`
	Platform    string        `json:"platform"`
	DisplayName string        `json:"displayName"`
	UUID        string        `json:"UUID"`
	Switch      *cachedSwitch `json:"switch,omitempty"`
}

type cachedSwitch struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
}

// loadCache restores accessories saved by a previous run. A missing cache
// file yields no accessories.
func loadCache(path string) ([]*PlatformAccessory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read accessory cache: %w", err)
	}

	var entries []cachedAccessory
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse accessory cache: %w", err)
	}

	accessories := make([]*PlatformAccessory, 0, len(entries))
	for _, e := range entries {
		acc := NewPlatformAccessory(e.DisplayName, e.UUID)
		acc.Plugin = e.Plugin
		acc.Platform = e.Platform
		if e.Switch != nil {
			acc.AddSwitch(e.Switch.Name).Update(e.Switch.On)
		}
		accessories = append(accessories, acc)
	}
	return accessories, nil
}

// saveCache writes the accessory set, including current switch values.
func saveCache(path string, accessories []*PlatformAccessory) error {
	entries := make([]cachedAccessory, 0, len(accessories))
	for _, acc := range accessories {
		e := cachedAccessory{
			Plugin:      acc.Plugin,
			Platform:    acc.Platform,
			DisplayName: acc.DisplayName,
			UUID:        acc.UUID,
		}
		if sw := acc.Switch(); sw != nil {
			e.Switch = &cachedSwitch{Name: sw.Name(), On: sw.Value()}
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal accessory cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create accessory cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write accessory cache: %w", err)
	}
	return nil
}
