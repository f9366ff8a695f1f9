package host

import (
	"fmt"
	"sync"
)

// PlatformAccessory is a host-managed virtual device owned by one platform.
type PlatformAccessory struct {
	DisplayName string
	UUID        string
	Plugin      string
	Platform    string

	mu sync.RWMutex
	sw *Switch
}

// NewPlatformAccessory creates an accessory with the given name and stable id.
func NewPlatformAccessory(displayName, uuid string) *PlatformAccessory {
	return &PlatformAccessory{DisplayName: displayName, UUID: uuid}
}

// AddSwitch attaches the on/off capability. Adding it twice returns the
// existing switch.
func (a *PlatformAccessory) AddSwitch(name string) *Switch {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sw == nil {
		a.sw = &Switch{name: name}
	}
	return a.sw
}

// Switch returns the on/off capability, or nil if none was added.
func (a *PlatformAccessory) Switch() *Switch {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sw
}

func (a *PlatformAccessory) String() string {
	return fmt.Sprintf("%s (%s)", a.DisplayName, a.UUID)
}

// SetHandler receives a value written by a user. Returning nil acknowledges
// the write; returning an error rejects it and the previous value stays.
type SetHandler func(value bool) error

// Switch is a single boolean on/off characteristic.
type Switch struct {
	name string

	// write orders Set against Update and UpdateWith, so the committed value
	// follows the order in which changes reached the set-callback's state.
	write sync.Mutex

	mu       sync.Mutex
	on       bool
	onSet    SetHandler
	notifier func(bool)
}

// Name returns the switch service name.
func (s *Switch) Name() string {
	return s.name
}

// Value returns the current value.
func (s *Switch) Value() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// OnSet attaches the set-callback, replacing any previous one. It waits for
// a Set in progress, so the old callback is not running once it returns.
func (s *Switch) OnSet(handler SetHandler) {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSet = handler
}

// Wired reports whether a set-callback is attached.
func (s *Switch) Wired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onSet != nil
}

// Set applies a user write. The handler runs synchronously and the value is
// committed only once it has acknowledged. Without a handler the value is
// simply stored. The handler must not call Update on the same switch.
func (s *Switch) Set(value bool) error {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	handler := s.onSet
	s.mu.Unlock()

	if handler != nil {
		if err := handler(value); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.on = value
	s.mu.Unlock()
	return nil
}

// Update changes the value from the plugin side without invoking the
// set-callback, and forwards it to the transport.
func (s *Switch) Update(value bool) {
	_ = s.UpdateWith(func() (bool, error) { return value, nil })
}

// UpdateWith is Update with the value produced by apply, which runs while
// Set is excluded. An error from apply leaves the value unchanged.
func (s *Switch) UpdateWith(apply func() (bool, error)) error {
	s.write.Lock()
	defer s.write.Unlock()

	value, err := apply()
	if err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.on != value
	s.on = value
	notify := s.notifier
	s.mu.Unlock()

	if changed && notify != nil {
		notify(value)
	}
	return nil
}

// SetNotifier installs the transport hook called on Update, replacing any
// previous one.
func (s *Switch) SetNotifier(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = fn
}
