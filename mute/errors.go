package mute

import (
	"errors"
	"fmt"

	"github.com/flokli/mute-agent/hal"
)

// Errors returned by the mute core. Match them with errors.Is; the per-device
// ones arrive wrapped in a *DeviceError carrying the device name.
var (
	// ErrNoDefaultDevice is returned when the system has no default input.
	ErrNoDefaultDevice = errors.New("mute: no default input device")

	// ErrNotSupported is returned when a device has no writable target group
	// for the requested control. It is never retried.
	ErrNotSupported = errors.New("mute: not supported")

	// ErrWriteHadNoEffect is returned when writes were accepted but no
	// candidate group ever read back the desired value.
	ErrWriteHadNoEffect = errors.New("mute: write had no effect")

	// ErrNoCapableDevices is returned by aggregate operations when no
	// mute-capable device is connected.
	ErrNoCapableDevices = errors.New("mute: no mute-capable devices")
)

// DeviceError attaches the device and control to one of the errors above.
type DeviceError struct {
	Device  string
	Control hal.Control
	Err     error
	// Cause is the last low-level failure observed, if any.
	Cause error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %s control on %q", e.Err, e.Control, e.Device)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func notSupported(d Device, c hal.Control) error {
	return &DeviceError{Device: d.Name, Control: c, Err: ErrNotSupported}
}

func noEffect(d Device, c hal.Control, cause error) error {
	return &DeviceError{Device: d.Name, Control: c, Err: ErrWriteHadNoEffect, Cause: cause}
}
