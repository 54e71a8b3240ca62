package fake

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flokli/mute-agent/hal"
)

// Fixture describes a fake audio subsystem in YAML:
//
//	default: usb-mic
//	devices:
//	  - uid: usb-mic
//	    name: USB-Mic
//	    channels: {input: 2}
//	    mute:
//	      - {scope: input, element: 1, settable: true}
//	      - {scope: input, element: 2, settable: true}
//	    volume:
//	      - {scope: input, element: 0, settable: true, value: 0.5}
//	    ignore_writes:
//	      - {scope: input, element: 2}
//
// Element 0 is the main element.
type Fixture struct {
	Default string          `yaml:"default"`
	Devices []FixtureDevice `yaml:"devices"`
}

type FixtureDevice struct {
	ID       uint32         `yaml:"id"`
	UID      string         `yaml:"uid"`
	Name     string         `yaml:"name"`
	Channels map[string]int `yaml:"channels"`
	Mute     []FixtureSlot  `yaml:"mute"`
	Volume   []FixtureSlot  `yaml:"volume"`

	IgnoreWrites []FixtureSlot `yaml:"ignore_writes"`
}

type FixtureSlot struct {
	Scope    string  `yaml:"scope"`
	Element  uint32  `yaml:"element"`
	Settable bool    `yaml:"settable"`
	Value    float32 `yaml:"value"`
}

// Load builds a Backend from a YAML fixture.
func Load(r io.Reader) (*Backend, error) {
	var f Fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("unable to decode fixture: %w", err)
	}
	return f.Build()
}

// LoadFile builds a Backend from the YAML fixture at path.
func LoadFile(path string) (*Backend, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open fixture: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

// Build turns the fixture into a Backend. Devices without an explicit id are
// numbered from 1 in fixture order.
func (f *Fixture) Build() (*Backend, error) {
	b := New()
	seen := make(map[hal.DeviceID]bool, len(f.Devices))

	for i, fd := range f.Devices {
		id := hal.DeviceID(fd.ID)
		if id == 0 {
			id = hal.DeviceID(i + 1)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate device id %d", id)
		}
		seen[id] = true

		d := b.AddDevice(id, fd.UID, fd.Name, 0)
		for scopeName, n := range fd.Channels {
			scope, err := hal.ParseScope(scopeName)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", fd.UID, err)
			}
			d.SetChannels(scope, n)
		}
		for _, s := range fd.Mute {
			scope, err := hal.ParseScope(s.Scope)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", fd.UID, err)
			}
			d.AddMute(scope, hal.Element(s.Element), s.Settable, s.Value != 0)
		}
		for _, s := range fd.Volume {
			scope, err := hal.ParseScope(s.Scope)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", fd.UID, err)
			}
			d.AddVolume(scope, hal.Element(s.Element), s.Settable, s.Value)
		}
		for _, s := range fd.IgnoreWrites {
			scope, err := hal.ParseScope(s.Scope)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", fd.UID, err)
			}
			b.IgnoreWrites(d.addr(scope, hal.Element(s.Element)))
		}

		if f.Default != "" && f.Default == fd.UID {
			b.SetDefaultInput(id)
		}
	}

	return b, nil
}
