// Package hosttest provides an in-memory host API for platform tests.
package hosttest

import (
	"context"
	"sync"

	"github.com/c360studio/checklist/host"
)

// FakeAPI implements host.API without a transport or accessory cache.
type FakeAPI struct {
	Storage string

	mu          sync.Mutex
	handlers    map[host.Event][]host.Handler
	accessories []*host.PlatformAccessory

	// Error injection for testing
	RegisterErr   error
	UnregisterErr error
}

// NewFakeAPI creates a fake host rooted at storage.
func NewFakeAPI(storage string) *FakeAPI {
	return &FakeAPI{
		Storage:  storage,
		handlers: make(map[host.Event][]host.Handler),
	}
}

// StoragePath implements host.API.
func (f *FakeAPI) StoragePath() string {
	return f.Storage
}

// On implements host.API.
func (f *FakeAPI) On(event host.Event, handler host.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], handler)
}

// RegisterPlatformAccessories implements host.API.
func (f *FakeAPI) RegisterPlatformAccessories(plugin, platform string, accessories ...*host.PlatformAccessory) error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range accessories {
		acc.Plugin = plugin
		acc.Platform = platform
		f.accessories = append(f.accessories, acc)
	}
	return nil
}

// UnregisterPlatformAccessories implements host.API.
func (f *FakeAPI) UnregisterPlatformAccessories(plugin, platform string, accessories ...*host.PlatformAccessory) error {
	if f.UnregisterErr != nil {
		return f.UnregisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range accessories {
		for i, existing := range f.accessories {
			if existing.UUID == acc.UUID {
				f.accessories = append(f.accessories[:i], f.accessories[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Emit runs the handlers subscribed to event and returns the first error.
func (f *FakeAPI) Emit(ctx context.Context, event host.Event) error {
	f.mu.Lock()
	handlers := append([]host.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Accessories returns the registered accessories.
func (f *FakeAPI) Accessories() []*host.PlatformAccessory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*host.PlatformAccessory(nil), f.accessories...)
}

// Accessory returns the registered accessory with the given display name.
func (f *FakeAPI) Accessory(name string) *host.PlatformAccessory {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accessories {
		if acc.DisplayName == name {
			return acc
		}
	}
	return nil
}
