package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// shutdownTimeout bounds the Shutdown handlers once the run context is done.
const shutdownTimeout = 10 * time.Second

// Transport exposes registered accessories to smart-home clients.
type Transport interface {
	// SetAccessories replaces the published accessory set.
	SetAccessories(accessories []*PlatformAccessory)

	// Serve blocks until ctx is done or the transport fails.
	Serve(ctx context.Context) error
}

// PlatformConfig is one configured platform instance.
type PlatformConfig struct {
	Platform string
	Raw      json.RawMessage
}

// RuntimeConfig configures a Runtime.
type RuntimeConfig struct {
	// StoragePath is the directory for the accessory cache and platform state.
	StoragePath string

	Logger  *slog.Logger
	Metrics prometheus.Registerer

	// Transport publishes accessories. Nil runs the host without one.
	Transport Transport
}

// Runtime is the accessory host: it constructs platforms, restores cached
// accessories, dispatches lifecycle events and keeps the transport in sync
// with the registered accessory set.
type Runtime struct {
	storagePath string
	logger      *slog.Logger
	metrics     prometheus.Registerer
	registry    *Registry
	transport   Transport

	mu          sync.Mutex
	accessories []*PlatformAccessory
	handlers    map[Event][]Handler
	platforms   map[string]Platform
}

// NewRuntime creates a host runtime for the platforms in registry.
func NewRuntime(registry *Registry, cfg RuntimeConfig) (*Runtime, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg.StoragePath == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runtime{
		storagePath: cfg.StoragePath,
		logger:      logger,
		metrics:     cfg.Metrics,
		registry:    registry,
		transport:   cfg.Transport,
		handlers:    make(map[Event][]Handler),
		platforms:   make(map[string]Platform),
	}, nil
}

// StoragePath implements API.
func (r *Runtime) StoragePath() string {
	return r.storagePath
}

// On implements API.
func (r *Runtime) On(event Event, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], handler)
}

// RegisterPlatformAccessories implements API.
func (r *Runtime) RegisterPlatformAccessories(plugin, platform string, accessories ...*PlatformAccessory) error {
	r.mu.Lock()
	for _, acc := range accessories {
		if r.indexLocked(acc.UUID) >= 0 {
			r.mu.Unlock()
			return fmt.Errorf("accessory %s already registered", acc)
		}
	}
	for _, acc := range accessories {
		acc.Plugin = plugin
		acc.Platform = platform
		r.accessories = append(r.accessories, acc)
		r.logger.Debug("Registered accessory", "name", acc.DisplayName, "uuid", acc.UUID, "platform", platform)
	}
	r.mu.Unlock()

	return r.accessoriesChanged()
}

// UnregisterPlatformAccessories implements API.
func (r *Runtime) UnregisterPlatformAccessories(plugin, platform string, accessories ...*PlatformAccessory) error {
	r.mu.Lock()
	for _, acc := range accessories {
		i := r.indexLocked(acc.UUID)
		if i < 0 {
			continue
		}
		r.accessories = append(r.accessories[:i], r.accessories[i+1:]...)
		r.logger.Debug("Unregistered accessory", "name", acc.DisplayName, "uuid", acc.UUID, "platform", platform)
	}
	r.mu.Unlock()

	return r.accessoriesChanged()
}

// Accessories returns the registered accessories in registration order.
func (r *Runtime) Accessories() []*PlatformAccessory {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PlatformAccessory, len(r.accessories))
	copy(out, r.accessories)
	return out
}

func (r *Runtime) indexLocked(uuid string) int {
	for i, acc := range r.accessories {
		if acc.UUID == uuid {
			return i
		}
	}
	return -1
}

func (r *Runtime) cachePath() string {
	return filepath.Join(r.storagePath, cacheDir, cacheFile)
}

func (r *Runtime) accessoriesChanged() error {
	accessories := r.Accessories()
	if r.transport != nil {
		r.transport.SetAccessories(accessories)
	}
	return saveCache(r.cachePath(), accessories)
}

// Run constructs the configured platforms, restores cached accessories,
// fires DidFinishLaunching and serves until ctx is done. A platform that
// fails to construct or a failing DidFinishLaunching handler ends the run
// with an error.
func (r *Runtime) Run(ctx context.Context, platforms []PlatformConfig) error {
	cached, err := loadCache(r.cachePath())
	if err != nil {
		return err
	}

	for _, pc := range platforms {
		if err := r.createPlatform(pc); err != nil {
			return err
		}
	}

	r.restore(cached)

	if err := r.emit(ctx, DidFinishLaunching); err != nil {
		r.shutdown()
		return fmt.Errorf("%s: %w", DidFinishLaunching, err)
	}
	r.logger.Info("Host launched", "accessories", len(r.Accessories()))

	var serveErr error
	if r.transport != nil {
		serveCtx, cancel := context.WithCancel(ctx)
		errc := make(chan error, 1)

		r.transport.SetAccessories(r.Accessories())
		go func() {
			errc <- r.transport.Serve(serveCtx)
		}()

		select {
		case <-ctx.Done():
			cancel()
			serveErr = <-errc
		case serveErr = <-errc:
			cancel()
		}
		if serveErr != nil {
			serveErr = fmt.Errorf("transport: %w", serveErr)
		}
	} else {
		<-ctx.Done()
	}

	r.shutdown()
	return serveErr
}

func (r *Runtime) createPlatform(pc PlatformConfig) error {
	factory, plugin, ok := r.registry.Lookup(pc.Platform)
	if !ok {
		return fmt.Errorf("platform %s is not registered (available: %v)", pc.Platform, r.registry.ListPlatforms())
	}

	r.mu.Lock()
	_, exists := r.platforms[pc.Platform]
	r.mu.Unlock()
	if exists {
		return fmt.Errorf("platform %s configured more than once", pc.Platform)
	}

	deps := Dependencies{
		API:     r,
		Logger:  r.logger.With("platform", pc.Platform),
		Metrics: r.metrics,
	}
	p, err := factory(pc.Raw, deps)
	if err != nil {
		return fmt.Errorf("create platform %s: %w", pc.Platform, err)
	}

	r.mu.Lock()
	r.platforms[pc.Platform] = p
	r.mu.Unlock()

	r.logger.Info("Loaded platform", "platform", pc.Platform, "plugin", plugin)
	return nil
}

// restore hands each cached accessory to its platform. Accessories whose
// platform is no longer configured are dropped.
func (r *Runtime) restore(cached []*PlatformAccessory) {
	for _, acc := range cached {
		r.mu.Lock()
		p, ok := r.platforms[acc.Platform]
		if ok {
			r.accessories = append(r.accessories, acc)
		}
		r.mu.Unlock()

		if !ok {
			r.logger.Warn("Dropping cached accessory of unconfigured platform",
				"name", acc.DisplayName, "platform", acc.Platform)
			continue
		}
		p.ConfigureAccessory(acc)
	}
}

func (r *Runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := r.emit(ctx, Shutdown); err != nil {
		r.logger.Error("Shutdown handler failed", "error", err)
	}
	if err := saveCache(r.cachePath(), r.Accessories()); err != nil {
		r.logger.Error("Failed to save accessory cache", "error", err)
	}
}

// emit runs the handlers for event in subscription order. DidFinishLaunching
// stops at the first failure; Shutdown runs every handler.
func (r *Runtime) emit(ctx context.Context, event Event) error {
	r.mu.Lock()
	handlers := make([]Handler, len(r.handlers[event]))
	copy(handlers, r.handlers[event])
	r.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx); err != nil {
			if event != Shutdown {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
