//go:build darwin

// Package coreaudio implements hal.Backend on the macOS CoreAudio HAL object
// property API. Addresses map one to one onto AudioObjectPropertyAddress.
package coreaudio

/*
#cgo LDFLAGS: -framework CoreAudio -framework CoreFoundation
#include <stdlib.h>
#include <CoreAudio/CoreAudio.h>
#include <CoreFoundation/CoreFoundation.h>

static AudioObjectPropertyAddress maAddr(AudioObjectPropertySelector sel, AudioObjectPropertyScope scope, AudioObjectPropertyElement elem) {
	AudioObjectPropertyAddress addr = { sel, scope, elem };
	return addr;
}

static Boolean maHas(AudioObjectID obj, AudioObjectPropertySelector sel, AudioObjectPropertyScope scope, AudioObjectPropertyElement elem) {
	AudioObjectPropertyAddress addr = maAddr(sel, scope, elem);
	return AudioObjectHasProperty(obj, &addr);
}

static OSStatus maSettable(AudioObjectID obj, AudioObjectPropertySelector sel, AudioObjectPropertyScope scope, AudioObjectPropertyElement elem, Boolean *out) {
	AudioObjectPropertyAddress addr = maAddr(sel, scope, elem);
	return AudioObjectIsPropertySettable(obj, &addr, out);
}

static OSStatus maGetUInt32(AudioObjectID obj, AudioObjectPropertySelector sel, AudioObjectPropertyScope scope, AudioObjectPropertyElement elem, UInt32 *out) {
	AudioObjectPropertyAddress addr = maAddr(sel, scope, elem);
	UInt32 size = sizeof(UInt32);
	return AudioObjectGetPropertyData(obj, &addr, 0, NULL, &size, out);
}

static OSStatus maSetUInt32(AudioObjectID obj, AudioObjectPropertySelector sel, AudioObjectPropertyScope scope, AudioObjectPropertyElement elem, UInt32 v) {
	AudioObjectPropertyAddress addr = maAddr(sel, scope, elem);
	return AudioObjectSetPropertyData(obj, &addr, 0, NULL, sizeof(UInt32), &v);
}

static OSStatus maGetFloat32(AudioObjectID obj, AudioObjectPropertySelector sel, AudioObjectPropertyScope scope, AudioObjectPropertyElement elem, Float32 *out) {
	AudioObjectPropertyAddress addr = maAddr(sel, scope, elem);
	UInt32 size = sizeof(Float32);
	return AudioObjectGetPropertyData(obj, &addr, 0, NULL, &size, out);
}

static OSStatus maSetFloat32(AudioObjectID obj, AudioObjectPropertySelector sel, AudioObjectPropertyScope scope, AudioObjectPropertyElement elem, Float32 v) {
	AudioObjectPropertyAddress addr = maAddr(sel, scope, elem);
	return AudioObjectSetPropertyData(obj, &addr, 0, NULL, sizeof(Float32), &v);
}

static OSStatus maGetString(AudioObjectID obj, AudioObjectPropertySelector sel, char *buf, UInt32 bufLen) {
	AudioObjectPropertyAddress addr = maAddr(sel, kAudioObjectPropertyScopeGlobal, 0);
	CFStringRef str = NULL;
	UInt32 size = sizeof(CFStringRef);
	OSStatus st = AudioObjectGetPropertyData(obj, &addr, 0, NULL, &size, &str);
	if (st != noErr) {
		return st;
	}
	if (str == NULL) {
		return kAudioHardwareUnspecifiedError;
	}
	Boolean ok = CFStringGetCString(str, buf, bufLen, kCFStringEncodingUTF8);
	CFRelease(str);
	return ok ? noErr : kAudioHardwareUnspecifiedError;
}

static OSStatus maDeviceCount(UInt32 *count) {
	AudioObjectPropertyAddress addr = maAddr(kAudioHardwarePropertyDevices, kAudioObjectPropertyScopeGlobal, 0);
	UInt32 size = 0;
	OSStatus st = AudioObjectGetPropertyDataSize(kAudioObjectSystemObject, &addr, 0, NULL, &size);
	*count = size / sizeof(AudioObjectID);
	return st;
}

static OSStatus maDevices(AudioObjectID *out, UInt32 *count) {
	AudioObjectPropertyAddress addr = maAddr(kAudioHardwarePropertyDevices, kAudioObjectPropertyScopeGlobal, 0);
	UInt32 size = *count * sizeof(AudioObjectID);
	OSStatus st = AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, out);
	*count = size / sizeof(AudioObjectID);
	return st;
}

static OSStatus maChannelCount(AudioObjectID obj, AudioObjectPropertyScope scope, UInt32 *out) {
	AudioObjectPropertyAddress addr = maAddr(kAudioDevicePropertyStreamConfiguration, scope, 0);
	UInt32 size = 0;
	*out = 0;
	OSStatus st = AudioObjectGetPropertyDataSize(obj, &addr, 0, NULL, &size);
	if (st != noErr || size == 0) {
		return st;
	}
	AudioBufferList *list = (AudioBufferList *)malloc(size);
	if (list == NULL) {
		return kAudioHardwareUnspecifiedError;
	}
	st = AudioObjectGetPropertyData(obj, &addr, 0, NULL, &size, list);
	if (st == noErr) {
		for (UInt32 i = 0; i < list->mNumberBuffers; i++) {
			*out += list->mBuffers[i].mNumberChannels;
		}
	}
	free(list);
	return st;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/flokli/mute-agent/hal"
)

const nameBufSize = 512

type Backend struct{}

var _ hal.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func scopeOf(s hal.Scope) C.AudioObjectPropertyScope {
	switch s {
	case hal.ScopeInput:
		return C.AudioObjectPropertyScope(C.kAudioDevicePropertyScopeInput)
	case hal.ScopeOutput:
		return C.AudioObjectPropertyScope(C.kAudioDevicePropertyScopeOutput)
	default:
		return C.AudioObjectPropertyScope(C.kAudioObjectPropertyScopeGlobal)
	}
}

func selectorOf(c hal.Control) C.AudioObjectPropertySelector {
	if c == hal.ControlVolume {
		return C.AudioObjectPropertySelector(C.kAudioDevicePropertyVolumeScalar)
	}
	return C.AudioObjectPropertySelector(C.kAudioDevicePropertyMute)
}

func status(st C.OSStatus, op string, addr *hal.Address) error {
	if st == 0 {
		return nil
	}
	return hal.NewStatusError(int32(st), op, addr)
}

// Devices implements hal.Backend.
func (b *Backend) Devices() ([]hal.DeviceID, error) {
	var count C.UInt32
	if err := status(C.maDeviceCount(&count), "read device list size", nil); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	raw := make([]C.AudioObjectID, count)
	if err := status(C.maDevices(&raw[0], &count), "read device list", nil); err != nil {
		return nil, err
	}
	ids := make([]hal.DeviceID, 0, count)
	for _, id := range raw[:count] {
		ids = append(ids, hal.DeviceID(id))
	}
	return ids, nil
}

// DefaultInputDevice implements hal.Backend.
func (b *Backend) DefaultInputDevice() (hal.DeviceID, bool, error) {
	var id C.UInt32
	st := C.maGetUInt32(
		C.AudioObjectID(C.kAudioObjectSystemObject),
		C.AudioObjectPropertySelector(C.kAudioHardwarePropertyDefaultInputDevice),
		C.AudioObjectPropertyScope(C.kAudioObjectPropertyScopeGlobal),
		0,
		&id,
	)
	if err := status(st, "read default input device", nil); err != nil {
		return 0, false, err
	}
	if id == C.kAudioObjectUnknown {
		return 0, false, nil
	}
	return hal.DeviceID(id), true, nil
}

func (b *Backend) stringProperty(id hal.DeviceID, sel C.AudioObjectPropertySelector, op string) (string, error) {
	buf := make([]byte, nameBufSize)
	ptr := (*C.char)(unsafe.Pointer(&buf[0]))
	if err := status(C.maGetString(C.AudioObjectID(id), sel, ptr, C.UInt32(len(buf))), op, nil); err != nil {
		return "", err
	}
	return C.GoString(ptr), nil
}

// DeviceUID implements hal.Backend.
func (b *Backend) DeviceUID(id hal.DeviceID) (string, error) {
	return b.stringProperty(id, C.AudioObjectPropertySelector(C.kAudioDevicePropertyDeviceUID), "read device uid")
}

// DeviceName implements hal.Backend.
func (b *Backend) DeviceName(id hal.DeviceID) (string, error) {
	return b.stringProperty(id, C.AudioObjectPropertySelector(C.kAudioObjectPropertyName), "read device name")
}

// ChannelCount implements hal.Backend.
func (b *Backend) ChannelCount(id hal.DeviceID, scope hal.Scope) (int, error) {
	var n C.UInt32
	if err := status(C.maChannelCount(C.AudioObjectID(id), scopeOf(scope), &n), "read stream configuration", nil); err != nil {
		return 0, err
	}
	return int(n), nil
}

// HasControl implements hal.Backend.
func (b *Backend) HasControl(addr hal.Address, c hal.Control) bool {
	return C.maHas(C.AudioObjectID(addr.Device), selectorOf(c), scopeOf(addr.Scope), C.AudioObjectPropertyElement(addr.Element)) != 0
}

// IsSettable implements hal.Backend.
func (b *Backend) IsSettable(addr hal.Address, c hal.Control) (bool, error) {
	var settable C.Boolean
	st := C.maSettable(C.AudioObjectID(addr.Device), selectorOf(c), scopeOf(addr.Scope), C.AudioObjectPropertyElement(addr.Element), &settable)
	if err := status(st, fmt.Sprintf("query %s settable", c), &addr); err != nil {
		return false, err
	}
	return settable != 0, nil
}

// Mute implements hal.Backend.
func (b *Backend) Mute(addr hal.Address) (bool, error) {
	var v C.UInt32
	st := C.maGetUInt32(C.AudioObjectID(addr.Device), selectorOf(hal.ControlMute), scopeOf(addr.Scope), C.AudioObjectPropertyElement(addr.Element), &v)
	if err := status(st, "read mute", &addr); err != nil {
		return false, err
	}
	return v != 0, nil
}

// SetMute implements hal.Backend.
func (b *Backend) SetMute(addr hal.Address, muted bool) error {
	var v C.UInt32
	if muted {
		v = 1
	}
	st := C.maSetUInt32(C.AudioObjectID(addr.Device), selectorOf(hal.ControlMute), scopeOf(addr.Scope), C.AudioObjectPropertyElement(addr.Element), v)
	return status(st, "write mute", &addr)
}

// Volume implements hal.Backend.
func (b *Backend) Volume(addr hal.Address) (float32, error) {
	var v C.Float32
	st := C.maGetFloat32(C.AudioObjectID(addr.Device), selectorOf(hal.ControlVolume), scopeOf(addr.Scope), C.AudioObjectPropertyElement(addr.Element), &v)
	if err := status(st, "read volume", &addr); err != nil {
		return 0, err
	}
	return float32(v), nil
}

// SetVolume implements hal.Backend.
func (b *Backend) SetVolume(addr hal.Address, v float32) error {
	st := C.maSetFloat32(C.AudioObjectID(addr.Device), selectorOf(hal.ControlVolume), scopeOf(addr.Scope), C.AudioObjectPropertyElement(addr.Element), C.Float32(v))
	return status(st, "write volume", &addr)
}
