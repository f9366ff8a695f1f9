// Package checklist implements the checklist platform: one switch accessory
// per checklist item, backed by a JSON file and mirrored over HTTP.
//
// Accessories are keyed by a UUID derived from the item name, and their
// set-callbacks look the item up by name when a switch is flipped. Replacing
// the checklist (POST or an edit of the file on disk) reconciles the
// registered accessories with the new names.
package checklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/checklist/host"
	"github.com/c360studio/checklist/storage"
)

// Platform is the checklist platform plugin.
type Platform struct {
	config  Config
	api     host.API
	logger  *slog.Logger
	store   *storage.Store
	metrics *metrics
	now     func() time.Time

	mu          sync.Mutex
	accessories map[string]*host.PlatformAccessory // wired, by UUID
	orphans     map[string]*host.PlatformAccessory // restored without a matching item
	server      *http.Server
	listener    net.Listener
	watcher     *Watcher

	// replaceMu serializes reconciliation, so the last one to run reads
	// the latest checklist.
	replaceMu sync.Mutex

	// eventsMu guards the publisher. Set-callbacks publish under a switch
	// lock and must not take mu.
	eventsMu  sync.Mutex
	publisher EventPublisher
	nc        *nats.Conn
}

// Option customizes a Platform.
type Option func(*Platform)

// WithPublisher sets the change event publisher, overriding nats_url.
func WithPublisher(pub EventPublisher) Option {
	return func(p *Platform) {
		p.publisher = pub
	}
}

// NewPlatform constructs a checklist platform from raw JSON config and deps.
func NewPlatform(rawConfig json.RawMessage, deps host.Dependencies) (host.Platform, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	return New(config, deps)
}

// New creates a checklist platform. The checklist file is loaded from the
// host storage path; a malformed file is a fatal error.
func New(config Config, deps host.Dependencies, opts ...Option) (*Platform, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.API == nil {
		return nil, fmt.Errorf("host API is required")
	}

	path := filepath.Join(deps.API.StoragePath(), storage.FileName)
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load checklist: %w", err)
	}

	m, err := newMetrics(deps.Metrics)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	p := &Platform{
		config:      config,
		api:         deps.API,
		logger:      deps.GetLogger(),
		store:       store,
		metrics:     m,
		now:         time.Now,
		accessories: make(map[string]*host.PlatformAccessory),
		orphans:     make(map[string]*host.PlatformAccessory),
	}
	for _, opt := range opts {
		opt(p)
	}

	m.observe(store.Items())
	p.api.On(host.DidFinishLaunching, p.didFinishLaunching)
	p.api.On(host.Shutdown, p.shutdown)

	p.logger.Info("Initialized checklist platform", "name", config.Name, "path", path, "items", store.Len())
	return p, nil
}

// Store returns the checklist store.
func (p *Platform) Store() *storage.Store {
	return p.store
}

// Addr returns the HTTP listen address once the platform has launched.
func (p *Platform) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// ConfigureAccessory implements host.Platform. A restored accessory whose
// name is no longer in the checklist is kept but left unwired.
func (p *Platform) ConfigureAccessory(acc *host.PlatformAccessory) {
	p.logger.Info("Configuring accessory", "name", acc.DisplayName)

	item, ok := p.lookup(acc.DisplayName)
	if !ok || acc.UUID != host.GenerateUUID(item.Name) {
		p.logger.Warn("Accessory not found in checklist", "name", acc.DisplayName)
		p.mu.Lock()
		p.orphans[acc.UUID] = acc
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.wireLocked(acc, item)
	p.mu.Unlock()
}

func (p *Platform) lookup(name string) (storage.Item, bool) {
	for _, it := range p.store.Items() {
		if it.Name == name {
			return it, true
		}
	}
	return storage.Item{}, false
}

// wireLocked attaches the set-callback and syncs the switch to item.
func (p *Platform) wireLocked(acc *host.PlatformAccessory, item storage.Item) {
	sw := acc.AddSwitch(item.Name)
	sw.OnSet(p.setHandler(item.Name))
	sw.Update(item.Checked)
	p.accessories[acc.UUID] = acc
	delete(p.orphans, acc.UUID)
}

func (p *Platform) didFinishLaunching(ctx context.Context) error {
	p.logger.Info("Did finish launching")

	if err := p.connectEvents(); err != nil {
		return err
	}
	if err := p.registerAll(p.store.Items()); err != nil {
		return fmt.Errorf("register accessories: %w", err)
	}
	if err := p.startHTTP(); err != nil {
		return err
	}
	if p.config.Watch {
		if err := p.startWatcher(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Platform) connectEvents() error {
	p.eventsMu.Lock()
	defer p.eventsMu.Unlock()
	if p.publisher != nil || p.config.NATSURL == "" {
		return nil
	}

	nc, err := nats.Connect(p.config.NATSURL, nats.Name(PluginName))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	p.nc = nc
	p.publisher = nc
	p.logger.Info("Publishing checklist events", "url", p.config.NATSURL, "prefix", p.config.SubjectPrefix)
	return nil
}

func (p *Platform) startHTTP() error {
	ln, err := net.Listen("tcp", p.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", p.config.HTTPAddr, err)
	}

	server := &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.mu.Lock()
	p.server = server
	p.listener = ln
	p.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Checklist HTTP server failed", "error", err)
		}
	}()

	p.logger.Info("Checklist HTTP server listening", "addr", ln.Addr().String())
	return nil
}

func (p *Platform) startWatcher(ctx context.Context) error {
	w, err := NewWatcher(WatcherConfig{
		Path:          p.store.Path(),
		DebounceDelay: p.config.GetWatchDebounce(),
		Logger:        p.logger,
		OnChange:      p.fileChanged,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	p.mu.Lock()
	p.watcher = w
	p.mu.Unlock()
	return nil
}

func (p *Platform) shutdown(ctx context.Context) error {
	p.mu.Lock()
	server, watcher := p.server, p.watcher
	p.server, p.watcher = nil, nil
	p.mu.Unlock()

	p.eventsMu.Lock()
	nc := p.nc
	p.nc = nil
	p.eventsMu.Unlock()

	var errs []error
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
	}
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop HTTP server: %w", err))
		}
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}

	p.logger.Info("Checklist platform stopped")
	return errors.Join(errs...)
}

// registerAll creates and registers an accessory for every item that has
// none yet. Items sharing a name share an accessory; entries without a name
// get none.
func (p *Platform) registerAll(items []storage.Item) error {
	var added []*host.PlatformAccessory

	p.mu.Lock()
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		id := host.GenerateUUID(item.Name)
		if _, ok := p.accessories[id]; ok {
			continue
		}
		if acc, ok := p.orphans[id]; ok {
			p.logger.Info("Rewiring restored accessory", "name", item.Name)
			p.wireLocked(acc, item)
			continue
		}

		p.logger.Info("Adding new accessory", "name", item.Name)
		acc := host.NewPlatformAccessory(item.Name, id)
		p.wireLocked(acc, item)
		added = append(added, acc)
	}
	p.mu.Unlock()

	if len(added) == 0 {
		return nil
	}
	if err := p.api.RegisterPlatformAccessories(PluginName, PlatformName, added...); err != nil {
		p.mu.Lock()
		for _, acc := range added {
			delete(p.accessories, acc.UUID)
		}
		p.mu.Unlock()
		return err
	}
	return nil
}

// setHandler returns the set-callback for the item called name. The item
// is resolved by name when the switch is flipped.
func (p *Platform) setHandler(name string) host.SetHandler {
	return func(checked bool) error {
		p.logger.Info("Setting state", "name", name, "checked", checked)

		index, err := p.store.SetCheckedByName(name, checked)
		if err != nil {
			if errors.Is(err, storage.ErrItemNotFound) {
				p.metrics.toggle(resultNotFound)
				p.logger.Warn("Switch has no checklist item", "name", name)
			} else {
				p.metrics.toggle(resultError)
				p.logger.Error("Failed to save checklist", "name", name, "error", err)
			}
			return err
		}

		p.toggled(index, storage.Item{Name: name, Checked: checked})
		return nil
	}
}

// Toggle sets the checked state of the item at index, persists the
// checklist and pushes the value to the item's switch.
func (p *Platform) Toggle(index int, checked bool) error {
	p.logger.Info("Setting state", "index", index, "checked", checked)

	var (
		item storage.Item
		err  error
	)
	items := p.store.Items()
	if index >= 0 && index < len(items) && items[index].Name != "" {
		name := items[index].Name
		if sw := p.switchFor(name); sw != nil {
			err = sw.UpdateWith(func() (bool, error) {
				var setErr error
				if item, setErr = p.store.SetCheckedAt(index, name, checked); setErr != nil {
					return false, setErr
				}
				if v, err := p.storedState(name); err == nil {
					return v, nil
				}
				return item.Checked, nil
			})
		} else if item, err = p.store.SetCheckedAt(index, name, checked); err == nil {
			// A switch registered while the item was written has not seen it.
			if sw := p.switchFor(name); sw != nil {
				p.syncSwitch(name, sw)
			}
		}
	} else {
		item, err = p.store.SetChecked(index, checked)
	}
	if err != nil {
		p.metrics.toggle(resultError)
		return fmt.Errorf("toggle item %d: %w", index, err)
	}

	p.toggled(index, item)
	return nil
}

// switchFor returns the switch wired to the item called name, if any.
func (p *Platform) switchFor(name string) *host.Switch {
	p.mu.Lock()
	acc := p.accessories[host.GenerateUUID(name)]
	p.mu.Unlock()
	if acc == nil {
		return nil
	}
	return acc.Switch()
}

// storedState is the checked flag a switch for name shows: that of the
// first item with the name.
func (p *Platform) storedState(name string) (bool, error) {
	it, ok := p.lookup(name)
	if !ok {
		return false, fmt.Errorf("%w: %q", storage.ErrItemNotFound, name)
	}
	return it.Checked, nil
}

// syncSwitch pushes the stored state of name to sw. The store is read under
// the switch's lock, so a set-callback that committed meanwhile is not
// overwritten with a stale value.
func (p *Platform) syncSwitch(name string, sw *host.Switch) {
	_ = sw.UpdateWith(func() (bool, error) { return p.storedState(name) })
}

func (p *Platform) toggled(index int, item storage.Item) {
	p.metrics.toggle(resultOK)
	p.metrics.observe(p.store.Items())

	p.publish(SubjectToggled, ToggledEvent{
		Name:    item.Name,
		Checked: item.Checked,
		Index:   index,
		At:      p.now().UTC(),
	})
}

// Replace swaps the whole checklist, persists it and reconciles the
// accessories. Only a failed save is returned.
func (p *Platform) Replace(items []storage.Item) error {
	if err := p.store.Replace(items); err != nil {
		return err
	}
	p.logger.Info("Checklist replaced", "items", len(items))
	p.replaced()
	return nil
}

func (p *Platform) replaced() {
	p.replaceMu.Lock()
	defer p.replaceMu.Unlock()

	items := p.store.Items()
	p.reconcile(items)
	p.metrics.observe(items)
	p.publish(SubjectReplaced, ReplacedEvent{Count: len(items), At: p.now().UTC()})
}

// reconcile unregisters accessories whose item is gone, registers new
// items and pushes every item's state to its switch.
func (p *Platform) reconcile(items []storage.Item) {
	wanted := make(map[string]storage.Item, len(items))
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		id := host.GenerateUUID(it.Name)
		if _, dup := wanted[id]; !dup {
			wanted[id] = it
		}
	}

	var removed []*host.PlatformAccessory
	p.mu.Lock()
	for id, acc := range p.accessories {
		if _, ok := wanted[id]; !ok {
			removed = append(removed, acc)
			delete(p.accessories, id)
		}
	}
	p.mu.Unlock()

	if len(removed) > 0 {
		sort.Slice(removed, func(i, j int) bool {
			return removed[i].DisplayName < removed[j].DisplayName
		})
		for _, acc := range removed {
			p.logger.Info("Removing accessory", "name", acc.DisplayName)
			if sw := acc.Switch(); sw != nil {
				sw.OnSet(nil)
			}
		}
		if err := p.api.UnregisterPlatformAccessories(PluginName, PlatformName, removed...); err != nil {
			p.logger.Error("Failed to unregister accessories", "error", err)
		}
	}

	if err := p.registerAll(items); err != nil {
		p.logger.Error("Failed to register accessories", "error", err)
	}

	switches := make(map[string]*host.Switch, len(wanted))
	p.mu.Lock()
	for id, it := range wanted {
		if acc, ok := p.accessories[id]; ok {
			if sw := acc.Switch(); sw != nil {
				switches[it.Name] = sw
			}
		}
	}
	p.mu.Unlock()

	for name, sw := range switches {
		p.syncSwitch(name, sw)
	}
}

// fileChanged reloads the checklist after an edit on disk. A missing or
// malformed file leaves the current checklist in place.
func (p *Platform) fileChanged() {
	changed, err := p.store.Reload()
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Debug("Checklist file removed, keeping current checklist")
		return
	}
	if err != nil {
		p.logger.Warn("Ignoring unreadable checklist file", "path", p.store.Path(), "error", err)
		return
	}
	if !changed {
		return
	}

	p.logger.Info("Checklist file changed on disk", "items", p.store.Len())
	p.replaced()
}

// Accessories returns the wired accessories sorted by name.
func (p *Platform) Accessories() []*host.PlatformAccessory {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*host.PlatformAccessory, 0, len(p.accessories))
	for _, acc := range p.accessories {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}
