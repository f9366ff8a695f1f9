// Package hapbridge publishes host accessories over HomeKit Accessory
// Protocol as switches behind a single bridge accessory.
package hapbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"

	"github.com/c360studio/checklist/host"
)

const (
	// DefaultName is the bridge name shown during pairing.
	DefaultName = "Checklist Bridge"

	// DefaultPin is the pairing code used when none is configured.
	DefaultPin = "00102003"

	bridgeID     = 1
	storeDir     = "hap"
	restartDelay = 2 * time.Second
)

var pinPattern = regexp.MustCompile(`^\d{8}$`)

// Config configures a Bridge.
type Config struct {
	Name string
	Pin  string

	// Addr is the listen address; empty picks a random port.
	Addr string

	// StoragePath holds pairing keys under StoragePath/hap.
	StoragePath string

	Logger *slog.Logger
}

// Validate checks the bridge configuration.
func (c Config) Validate() error {
	if c.StoragePath == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.Pin != "" && !pinPattern.MatchString(c.Pin) {
		return fmt.Errorf("pin must be 8 digits")
	}
	return nil
}

// Bridge implements host.Transport. The HAP server is rebuilt whenever the
// accessory set changes, since a running server cannot gain accessories.
type Bridge struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	accessories []*host.PlatformAccessory
	changed     chan struct{}
}

// New creates a bridge transport.
func New(cfg Config) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Pin == "" {
		cfg.Pin = DefaultPin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		cfg:     cfg,
		logger:  logger,
		changed: make(chan struct{}, 1),
	}, nil
}

// SetAccessories implements host.Transport.
func (b *Bridge) SetAccessories(accessories []*host.PlatformAccessory) {
	b.mu.Lock()
	b.accessories = append([]*host.PlatformAccessory(nil), accessories...)
	b.mu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Serve implements host.Transport. It runs the HAP server and restarts it
// with the new accessory set after every SetAccessories.
func (b *Bridge) Serve(ctx context.Context) error {
	// Drain the signal raised by the initial SetAccessories.
	select {
	case <-b.changed:
	default:
	}

	for {
		server, err := b.build()
		if err != nil {
			return err
		}

		serveCtx, cancel := context.WithCancel(ctx)
		errc := make(chan error, 1)
		go func() {
			errc <- server.ListenAndServe(serveCtx)
		}()
		b.logger.Info("HAP bridge serving", "name", b.cfg.Name, "addr", b.cfg.Addr, "accessories", b.count())

		select {
		case <-ctx.Done():
			cancel()
			<-errc
			return nil
		case <-b.changed:
			cancel()
			if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
				b.logger.Warn("HAP server stopped with error", "error", err)
			}
			b.logger.Debug("Accessory set changed, restarting HAP server")
		case err := <-errc:
			cancel()
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Error("HAP server failed, restarting", "error", err, "delay", restartDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(restartDelay):
			}
		}
	}
}

func (b *Bridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.accessories)
}

func (b *Bridge) build() (*hap.Server, error) {
	bridge := accessory.NewBridge(accessory.Info{
		Name:         b.cfg.Name,
		Manufacturer: "checklist",
	})
	bridge.A.Id = bridgeID

	b.mu.Lock()
	accessories := append([]*host.PlatformAccessory(nil), b.accessories...)
	b.mu.Unlock()

	as := make([]*accessory.A, 0, len(accessories))
	for _, acc := range accessories {
		sw := acc.Switch()
		if sw == nil {
			continue
		}
		as = append(as, b.bindSwitch(acc, sw).A)
	}

	store := hap.NewFsStore(filepath.Join(b.cfg.StoragePath, storeDir))
	server, err := hap.NewServer(store, bridge.A, as...)
	if err != nil {
		return nil, fmt.Errorf("create HAP server: %w", err)
	}
	server.Pin = b.cfg.Pin
	server.Addr = b.cfg.Addr
	return server, nil
}

// bindSwitch mirrors a host switch onto a HAP switch accessory. Remote
// writes go through the host switch before the HAP value changes.
func (b *Bridge) bindSwitch(acc *host.PlatformAccessory, sw *host.Switch) *accessory.Switch {
	a := accessory.NewSwitch(accessory.Info{
		Name:         acc.DisplayName,
		SerialNumber: acc.UUID,
		Manufacturer: "checklist",
	})
	a.A.Id = host.AccessoryID(acc.UUID)
	a.Switch.On.SetValue(sw.Value())

	// The characteristic commits only when the callback succeeds; an error
	// answers the controller with a HAP communication failure (-70402).
	a.Switch.On.OnSetRemoteValue(func(on bool) error {
		if err := sw.Set(on); err != nil {
			b.logger.Warn("Rejected switch write", "name", acc.DisplayName, "value", on, "error", err)
			return err
		}
		return nil
	})
	sw.SetNotifier(func(on bool) {
		a.Switch.On.SetValue(on)
	})
	return a
}
