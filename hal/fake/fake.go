// Package fake is an in-memory hal.Backend. Every property slot is explicit,
// so tests and demos can model the quirks real drivers show: controls that
// only exist under an unexpected scope, writes that are accepted but change
// nothing, and writes that land on a different control than the one written.
package fake

import (
	"fmt"
	"sync"

	"github.com/flokli/mute-agent/hal"
)

type slot struct {
	settable bool
	muted    bool
	volume   float32
}

// Device is one fake hardware endpoint.
type Device struct {
	ID   hal.DeviceID
	UID  string
	Name string

	// FailUID, FailName and FailChannels make the respective metadata
	// query fail.
	FailUID      bool
	FailName     bool
	FailChannels bool

	channels map[hal.Scope]int
	mute     map[hal.Address]*slot
	volume   map[hal.Address]*slot
}

// Write records one successful or failed write issued to the backend.
type Write struct {
	Addr    hal.Address
	Control hal.Control
	Muted   bool
	Volume  float32
}

// Backend implements hal.Backend.
type Backend struct {
	mu sync.Mutex

	devices    []*Device
	defaultID  hal.DeviceID
	hasDefault bool

	// FailDevices, if set, is returned from Devices.
	FailDevices error

	ignored    map[hal.Address]bool
	redirects  map[hal.Address]hal.Address
	failWrites map[hal.Address]error
	failReads  map[hal.Address]error

	// OnSetVolume is called before every volume write. A non-nil error
	// rejects the write.
	OnSetVolume func(addr hal.Address, v float32) error

	writes []Write
}

var _ hal.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		ignored:    make(map[hal.Address]bool),
		redirects:  make(map[hal.Address]hal.Address),
		failWrites: make(map[hal.Address]error),
		failReads:  make(map[hal.Address]error),
	}
}

// AddDevice registers a device with the given number of input channels.
func (b *Backend) AddDevice(id hal.DeviceID, uid, name string, inputChannels int) *Device {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := &Device{
		ID:       id,
		UID:      uid,
		Name:     name,
		channels: map[hal.Scope]int{hal.ScopeInput: inputChannels},
		mute:     make(map[hal.Address]*slot),
		volume:   make(map[hal.Address]*slot),
	}
	b.devices = append(b.devices, d)
	return d
}

// RemoveDevice unplugs a device.
func (b *Backend) RemoveDevice(id hal.DeviceID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, d := range b.devices {
		if d.ID == id {
			b.devices = append(b.devices[:i], b.devices[i+1:]...)
			break
		}
	}
	if b.hasDefault && b.defaultID == id {
		b.hasDefault = false
	}
}

func (b *Backend) SetDefaultInput(id hal.DeviceID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaultID = id
	b.hasDefault = true
}

func (b *Backend) ClearDefaultInput() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hasDefault = false
}

// SetChannels sets the stream channel count reported for a scope.
func (d *Device) SetChannels(scope hal.Scope, n int) *Device {
	d.channels[scope] = n
	return d
}

// AddMute creates a mute property at (scope, element).
func (d *Device) AddMute(scope hal.Scope, element hal.Element, settable, muted bool) *Device {
	d.mute[d.addr(scope, element)] = &slot{settable: settable, muted: muted}
	return d
}

// AddVolume creates a volume property at (scope, element).
func (d *Device) AddVolume(scope hal.Scope, element hal.Element, settable bool, v float32) *Device {
	d.volume[d.addr(scope, element)] = &slot{settable: settable, volume: v}
	return d
}

func (d *Device) addr(scope hal.Scope, element hal.Element) hal.Address {
	return hal.Address{Device: d.ID, Scope: scope, Element: element}
}

// IgnoreWrites makes writes to addr succeed without changing its value.
func (b *Backend) IgnoreWrites(addr hal.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ignored[addr] = true
}

// Redirect makes writes to from change the value at to instead.
func (b *Backend) Redirect(from, to hal.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.redirects[from] = to
}

// FailWrites makes every write to addr return err.
func (b *Backend) FailWrites(addr hal.Address, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWrites[addr] = err
}

// FailReads makes every read of addr return err.
func (b *Backend) FailReads(addr hal.Address, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failReads[addr] = err
}

// Writes returns every write issued so far.
func (b *Backend) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Write, len(b.writes))
	copy(out, b.writes)
	return out
}

// WriteCount returns how many writes of kind c were issued.
func (b *Backend) WriteCount(c hal.Control) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, w := range b.writes {
		if w.Control == c {
			n++
		}
	}
	return n
}

// ResetWrites clears the write log.
func (b *Backend) ResetWrites() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = nil
}

// MuteAt returns the raw mute value stored at addr, bypassing read failures.
func (b *Backend) MuteAt(addr hal.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.slotLocked(addr, hal.ControlMute); s != nil {
		return s.muted
	}
	return false
}

// VolumeAt returns the raw volume value stored at addr.
func (b *Backend) VolumeAt(addr hal.Address) float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.slotLocked(addr, hal.ControlVolume); s != nil {
		return s.volume
	}
	return 0
}

func (b *Backend) deviceLocked(id hal.DeviceID) *Device {
	for _, d := range b.devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (b *Backend) slotLocked(addr hal.Address, c hal.Control) *slot {
	d := b.deviceLocked(addr.Device)
	if d == nil {
		return nil
	}
	if c == hal.ControlMute {
		return d.mute[addr]
	}
	return d.volume[addr]
}

// Devices implements hal.Backend.
func (b *Backend) Devices() ([]hal.DeviceID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailDevices != nil {
		return nil, b.FailDevices
	}
	ids := make([]hal.DeviceID, 0, len(b.devices))
	for _, d := range b.devices {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// DefaultInputDevice implements hal.Backend.
func (b *Backend) DefaultInputDevice() (hal.DeviceID, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.defaultID, b.hasDefault, nil
}

// DeviceUID implements hal.Backend.
func (b *Backend) DeviceUID(id hal.DeviceID) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.deviceLocked(id)
	if d == nil {
		return "", hal.ErrNoSuchDevice
	}
	if d.FailUID {
		return "", hal.NewStatusError(-1, "read uid", nil)
	}
	return d.UID, nil
}

// DeviceName implements hal.Backend.
func (b *Backend) DeviceName(id hal.DeviceID) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.deviceLocked(id)
	if d == nil {
		return "", hal.ErrNoSuchDevice
	}
	if d.FailName {
		return "", hal.NewStatusError(-1, "read name", nil)
	}
	return d.Name, nil
}

// ChannelCount implements hal.Backend.
func (b *Backend) ChannelCount(id hal.DeviceID, scope hal.Scope) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.deviceLocked(id)
	if d == nil {
		return 0, hal.ErrNoSuchDevice
	}
	if d.FailChannels {
		return 0, hal.NewStatusError(-1, "read stream configuration", nil)
	}
	return d.channels[scope], nil
}

// HasControl implements hal.Backend.
func (b *Backend) HasControl(addr hal.Address, c hal.Control) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slotLocked(addr, c) != nil
}

// IsSettable implements hal.Backend.
func (b *Backend) IsSettable(addr hal.Address, c hal.Control) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.slotLocked(addr, c)
	if s == nil {
		return false, fmt.Errorf("%w: %s at %s", hal.ErrUnknownProperty, c, addr)
	}
	return s.settable, nil
}

// Mute implements hal.Backend.
func (b *Backend) Mute(addr hal.Address) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failReads[addr]; err != nil {
		return false, err
	}
	s := b.slotLocked(addr, hal.ControlMute)
	if s == nil {
		return false, fmt.Errorf("%w: mute at %s", hal.ErrUnknownProperty, addr)
	}
	return s.muted, nil
}

// SetMute implements hal.Backend.
func (b *Backend) SetMute(addr hal.Address, muted bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, Write{Addr: addr, Control: hal.ControlMute, Muted: muted})

	s, err := b.writableLocked(addr, hal.ControlMute)
	if err != nil || s == nil {
		return err
	}
	s.muted = muted
	return nil
}

// Volume implements hal.Backend.
func (b *Backend) Volume(addr hal.Address) (float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failReads[addr]; err != nil {
		return 0, err
	}
	s := b.slotLocked(addr, hal.ControlVolume)
	if s == nil {
		return 0, fmt.Errorf("%w: volume at %s", hal.ErrUnknownProperty, addr)
	}
	return s.volume, nil
}

// SetVolume implements hal.Backend.
func (b *Backend) SetVolume(addr hal.Address, v float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, Write{Addr: addr, Control: hal.ControlVolume, Volume: v})

	if b.OnSetVolume != nil {
		if err := b.OnSetVolume(addr, v); err != nil {
			return err
		}
	}
	s, err := b.writableLocked(addr, hal.ControlVolume)
	if err != nil || s == nil {
		return err
	}
	s.volume = v
	return nil
}

// writableLocked resolves the slot a write to addr lands on. A nil slot with
// a nil error means the write is silently ignored.
func (b *Backend) writableLocked(addr hal.Address, c hal.Control) (*slot, error) {
	if err := b.failWrites[addr]; err != nil {
		return nil, err
	}
	s := b.slotLocked(addr, c)
	if s == nil {
		return nil, fmt.Errorf("%w: %s at %s", hal.ErrUnknownProperty, c, addr)
	}
	if !s.settable {
		return nil, hal.NewStatusError(-2, "write "+c.String(), &addr)
	}
	if b.ignored[addr] {
		return nil, nil
	}
	if to, ok := b.redirects[addr]; ok {
		if t := b.slotLocked(to, c); t != nil {
			return t, nil
		}
		return nil, nil
	}
	return s, nil
}
