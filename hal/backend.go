package hal

// Backend is the low-level device-property API. Every call is a synchronous
// round trip into the audio subsystem. Implementations are not required to be
// safe for concurrent use; callers serialise access.
type Backend interface {
	// Devices lists every hardware endpoint the subsystem knows about.
	Devices() ([]DeviceID, error)
	// DefaultInputDevice returns the system default input. ok is false if
	// there is none.
	DefaultInputDevice() (id DeviceID, ok bool, err error)

	DeviceUID(id DeviceID) (string, error)
	DeviceName(id DeviceID) (string, error)
	// ChannelCount returns the number of stream channels the device reports
	// for a scope.
	ChannelCount(id DeviceID, scope Scope) (int, error)

	// HasControl reports whether the property exists at the address.
	HasControl(addr Address, c Control) bool
	// IsSettable reports whether the property at the address accepts writes.
	IsSettable(addr Address, c Control) (bool, error)

	Mute(addr Address) (bool, error)
	SetMute(addr Address, muted bool) error
	// Volume is the normalised volume scalar in [0,1].
	Volume(addr Address) (float32, error)
	SetVolume(addr Address, v float32) error
}

// Closer is implemented by backends that hold a connection.
type Closer interface {
	Close() error
}
