package fake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flokli/mute-agent/hal"
)

const usbMicFixture = `
default: usb-mic
devices:
  - uid: usb-mic
    name: USB-Mic
    channels: {input: 2}
    mute:
      - {scope: input, element: 1, settable: true}
      - {scope: input, element: 2, settable: true, value: 1}
    volume:
      - {scope: input, element: 0, settable: true, value: 0.5}
    ignore_writes:
      - {scope: input, element: 2}
  - id: 7
    uid: speakers
    name: Speakers
    channels: {output: 2}
`

func TestLoad(t *testing.T) {
	b, err := Load(strings.NewReader(usbMicFixture))
	require.NoError(t, err)

	ids, err := b.Devices()
	require.NoError(t, err)
	assert.ElementsMatch(t, []hal.DeviceID{1, 7}, ids)

	id, ok, err := b.DefaultInputDevice()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, hal.DeviceID(1), id)

	n, err := b.ChannelCount(1, hal.ScopeInput)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = b.ChannelCount(7, hal.ScopeInput)
	require.NoError(t, err)
	assert.Zero(t, n)

	ch1 := hal.Address{Device: 1, Scope: hal.ScopeInput, Element: 1}
	ch2 := hal.Address{Device: 1, Scope: hal.ScopeInput, Element: 2}
	whole := hal.Address{Device: 1, Scope: hal.ScopeInput, Element: hal.ElementMain}
	assert.False(t, b.MuteAt(ch1))
	assert.True(t, b.MuteAt(ch2))
	assert.Equal(t, float32(0.5), b.VolumeAt(whole))

	// ignored writes are logged but leave the value alone
	require.NoError(t, b.SetMute(ch2, false))
	assert.True(t, b.MuteAt(ch2))
	require.NoError(t, b.SetMute(ch1, true))
	assert.True(t, b.MuteAt(ch1))
	assert.Equal(t, 2, b.WriteCount(hal.ControlMute))
}

func TestLoadErrors(t *testing.T) {
	for name, fixture := range map[string]string{
		"invalid yaml":  "devices: [",
		"bad scope":     "devices: [{uid: a, channels: {sideways: 1}}]",
		"bad mute":      "devices: [{uid: a, mute: [{scope: up}]}]",
		"duplicate ids": "devices: [{uid: a}, {id: 1, uid: b}]",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(fixture))
			require.Error(t, err)
		})
	}
}

func TestNonSettableWrite(t *testing.T) {
	b := New()
	b.AddDevice(1, "mic", "Mic", 1).AddMute(hal.ScopeInput, hal.ElementMain, false, false)
	a := hal.Address{Device: 1, Scope: hal.ScopeInput, Element: hal.ElementMain}

	settable, err := b.IsSettable(a, hal.ControlMute)
	require.NoError(t, err)
	require.False(t, settable)

	var statusErr *hal.StatusError
	require.ErrorAs(t, b.SetMute(a, true), &statusErr)
	require.False(t, b.MuteAt(a))
}
