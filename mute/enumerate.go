package mute

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"

	"github.com/flokli/mute-agent/hal"
)

// Device is an input-capable hardware endpoint. It is rebuilt on every
// enumeration; only UID is stable while the device stays connected.
type Device struct {
	ID            hal.DeviceID `json:"-"`
	UID           string       `json:"uid"`
	Name          string       `json:"name"`
	InputChannels int          `json:"input_channels"`
	IsDefault     bool         `json:"is_default"`
}

// ResolvedDevice is the outcome of ResolveDevice.
type ResolvedDevice struct {
	Device
	// UsingDefault is set when the resolved device is the system default.
	UsingDefault bool
	// SelectionMissing is set when a selected UID was not found and the
	// default was used in its place.
	SelectionMissing bool
}

// ListDevices returns every device with at least one input channel. Only a
// failure to read the device list itself is an error; broken metadata on a
// single device degrades to fallback values. A device whose channel count
// cannot be read is kept.
func (c *Core) ListDevices() ([]Device, error) {
	ids, err := c.backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("unable to list devices: %w", err)
	}
	defaultID, hasDefault := c.defaultInput()

	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		d, channelsKnown := c.describe(id)
		if channelsKnown && d.InputChannels < 1 {
			continue
		}
		d.IsDefault = hasDefault && id == defaultID
		devices = append(devices, d)
	}
	return devices, nil
}

// ListMuteCapableDevices returns the input devices with at least one writable
// mute target group, default device first, then by name.
func (c *Core) ListMuteCapableDevices() ([]Device, error) {
	devices, err := c.ListDevices()
	if err != nil {
		return nil, err
	}

	capable := devices[:0]
	for _, d := range devices {
		if len(c.muteTargetGroups(d.ID, true)) > 0 {
			capable = append(capable, d)
		}
	}

	col := collate.New(c.lang)
	sort.SliceStable(capable, func(i, j int) bool {
		if capable[i].IsDefault != capable[j].IsDefault {
			return capable[i].IsDefault
		}
		return col.CompareString(capable[i].Name, capable[j].Name) < 0
	})
	return capable, nil
}

// ResolveDevice picks the device to operate on. An empty selectedUID means the
// system default. A selected device that is no longer connected falls back to
// the default with SelectionMissing set; that is not an error.
func (c *Core) ResolveDevice(selectedUID string) (ResolvedDevice, error) {
	if selectedUID == "" {
		d, ok := c.defaultDevice()
		if !ok {
			return ResolvedDevice{}, ErrNoDefaultDevice
		}
		return ResolvedDevice{Device: d, UsingDefault: true}, nil
	}

	devices, err := c.ListDevices()
	if err != nil {
		return ResolvedDevice{}, err
	}
	for _, d := range devices {
		if d.UID == selectedUID {
			return ResolvedDevice{Device: d, UsingDefault: d.IsDefault}, nil
		}
	}

	c.log.WithField("uid", selectedUID).Debug("selected device not found, falling back to default")
	d, ok := c.defaultDevice()
	if !ok {
		return ResolvedDevice{}, ErrNoDefaultDevice
	}
	return ResolvedDevice{Device: d, UsingDefault: true, SelectionMissing: true}, nil
}

func (c *Core) defaultInput() (hal.DeviceID, bool) {
	id, ok, err := c.backend.DefaultInputDevice()
	if err != nil {
		c.log.WithError(err).Warn("unable to read default input device")
		return 0, false
	}
	return id, ok
}

func (c *Core) defaultDevice() (Device, bool) {
	id, ok := c.defaultInput()
	if !ok {
		return Device{}, false
	}
	d, _ := c.describe(id)
	d.IsDefault = true
	return d, true
}

// describe reads a device's metadata, substituting fallbacks for anything
// that cannot be read.
func (c *Core) describe(id hal.DeviceID) (Device, bool) {
	l := c.log.WithField("deviceID", id)

	uid, err := c.backend.DeviceUID(id)
	if err != nil || uid == "" {
		uid = fmt.Sprintf("device-%d", id)
		l.WithError(err).WithField("uid", uid).Debug("unable to read device uid")
	}

	name, err := c.backend.DeviceName(id)
	if err != nil || name == "" {
		name = uid
		l.WithError(err).Debug("unable to read device name")
	}

	channels, err := c.backend.ChannelCount(id, hal.ScopeInput)
	channelsKnown := err == nil
	if !channelsKnown {
		channels = 0
		l.WithError(err).Debug("unable to read input channel count")
	}

	return Device{
		ID:            id,
		UID:           uid,
		Name:          name,
		InputChannels: channels,
	}, channelsKnown
}
