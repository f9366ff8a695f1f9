// Package host defines the contract between the accessory host runtime and the
// platform plugins it loads, and provides a runtime implementing it.
//
// A plugin registers a platform factory under a platform name. The runtime
// constructs each configured platform with its raw configuration and a set of
// Dependencies, hands it every accessory restored from the accessory cache via
// ConfigureAccessory, and then fires DidFinishLaunching. From that point the
// platform registers new accessories through the API.
package host

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Event names a host lifecycle event.
type Event string

const (
	// DidFinishLaunching fires once, after every cached accessory has been
	// handed to its platform.
	DidFinishLaunching Event = "didFinishLaunching"

	// Shutdown fires once when the host is stopping.
	Shutdown Event = "shutdown"
)

// Handler handles a lifecycle event. An error returned from a
// DidFinishLaunching handler aborts startup.
type Handler func(ctx context.Context) error

// API is the host surface available to a platform.
type API interface {
	// StoragePath returns the directory the platform may persist state in.
	StoragePath() string

	// On subscribes a handler to a lifecycle event.
	On(event Event, handler Handler)

	// RegisterPlatformAccessories publishes new accessories and adds them to
	// the accessory cache.
	RegisterPlatformAccessories(plugin, platform string, accessories ...*PlatformAccessory) error

	// UnregisterPlatformAccessories withdraws accessories and drops them from
	// the accessory cache.
	UnregisterPlatformAccessories(plugin, platform string, accessories ...*PlatformAccessory) error
}

// Platform is a dynamic platform plugin instance.
type Platform interface {
	// ConfigureAccessory is called for every accessory restored from the
	// cache that belongs to this platform, before DidFinishLaunching.
	ConfigureAccessory(accessory *PlatformAccessory)
}

// Dependencies carries what the host hands a platform factory.
type Dependencies struct {
	API     API
	Logger  *slog.Logger
	Metrics prometheus.Registerer
}

// GetLogger returns the configured logger or the default one.
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// PlatformFactory builds a platform from its raw JSON configuration.
type PlatformFactory func(rawConfig json.RawMessage, deps Dependencies) (Platform, error)
