package checklist

import (
	"fmt"

	"github.com/c360studio/checklist/host"
)

const (
	// PluginName identifies the plugin that owns the platform.
	PluginName = "checklist-plugin"

	// PlatformName is the platform key matched against configuration.
	PlatformName = "ChecklistPlatform"
)

// RegistryInterface defines the minimal interface required for registration.
type RegistryInterface interface {
	RegisterPlatform(plugin, platform string, factory host.PlatformFactory) error
}

// Register registers the checklist platform with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterPlatform(PluginName, PlatformName, NewPlatform)
}
