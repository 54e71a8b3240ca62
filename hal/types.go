package hal

import "fmt"

// DeviceID is the opaque handle a backend uses to address a device's properties.
type DeviceID uint32

// Scope selects which side of a device a property belongs to.
type Scope int

const (
	ScopeInput Scope = iota
	ScopeGlobal
	ScopeOutput
)

func (s Scope) String() string {
	switch s {
	case ScopeInput:
		return "input"
	case ScopeGlobal:
		return "global"
	case ScopeOutput:
		return "output"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseScope is the inverse of Scope.String.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "input":
		return ScopeInput, nil
	case "global":
		return ScopeGlobal, nil
	case "output":
		return ScopeOutput, nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

// Element is a channel element within a scope. ElementMain addresses the
// device as a whole, 1..n address individual channels.
type Element uint32

const ElementMain Element = 0

func (e Element) String() string {
	if e == ElementMain {
		return "main"
	}
	return fmt.Sprintf("%d", uint32(e))
}

// Address identifies exactly one property slot.
type Address struct {
	Device  DeviceID
	Scope   Scope
	Element Element
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%s/%s", a.Device, a.Scope, a.Element)
}

// Control is the kind of property being addressed.
type Control int

const (
	ControlMute Control = iota
	ControlVolume
)

func (c Control) String() string {
	switch c {
	case ControlMute:
		return "mute"
	case ControlVolume:
		return "volume"
	default:
		return fmt.Sprintf("control(%d)", int(c))
	}
}
