package mute

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flokli/mute-agent/hal"
	"github.com/flokli/mute-agent/hal/fake"
)

func newCore(b hal.Backend) *Core {
	logger, _ := test.NewNullLogger()
	return New(b, WithLogger(logger))
}

func addr(id hal.DeviceID, scope hal.Scope, e hal.Element) hal.Address {
	return hal.Address{Device: id, Scope: scope, Element: e}
}

// usbMic has a writable per-channel mute on the input scope, both channels
// unmuted.
func usbMic(b *fake.Backend) *fake.Device {
	return b.AddDevice(1, "usb-mic", "USB-Mic", 2).
		AddMute(hal.ScopeInput, 1, true, false).
		AddMute(hal.ScopeInput, 2, true, false)
}

// weirdDAC only has a mute on the main element of the output scope.
func weirdDAC(b *fake.Backend) *fake.Device {
	return b.AddDevice(2, "weird-dac", "Weird-DAC", 1).
		AddMute(hal.ScopeOutput, hal.ElementMain, true, false)
}

func lookup(t *testing.T, c *Core, uid string) Device {
	t.Helper()
	devices, err := c.ListDevices()
	require.NoError(t, err)
	for _, d := range devices {
		if d.UID == uid {
			return d
		}
	}
	t.Fatalf("device %q not found", uid)
	return Device{}
}

func TestCandidateChannels(t *testing.T) {
	b := fake.New()
	b.AddDevice(1, "one", "One", 1)
	b.AddDevice(2, "four", "Four", 4)
	c := newCore(b)

	require.Equal(t, []hal.Element{hal.ElementMain, 1, 2}, c.candidateChannels(1, hal.ScopeInput))
	require.Equal(t, []hal.Element{hal.ElementMain, 1, 2, 3, 4}, c.candidateChannels(2, hal.ScopeInput))
	// no stream channels reported for the output scope
	require.Equal(t, []hal.Element{hal.ElementMain, 1, 2}, c.candidateChannels(2, hal.ScopeOutput))
}

func TestMuteTargetGroups(t *testing.T) {
	t.Run("per-channel input", func(t *testing.T) {
		b := fake.New()
		usbMic(b)
		c := newCore(b)

		want := []TargetGroup{{Device: 1, Scope: hal.ScopeInput, Elements: []hal.Element{1, 2}}}
		require.Equal(t, want, c.muteTargetGroups(1, true))
		require.Equal(t, want, c.muteTargetGroups(1, false))
	})

	t.Run("output main only", func(t *testing.T) {
		b := fake.New()
		weirdDAC(b)
		c := newCore(b)

		want := []TargetGroup{{Device: 2, Scope: hal.ScopeOutput, Elements: []hal.Element{hal.ElementMain}}}
		require.Equal(t, want, c.muteTargetGroups(2, true))
	})

	t.Run("per-channel and main probed independently", func(t *testing.T) {
		b := fake.New()
		b.AddDevice(3, "mixed", "Mixed", 2).
			AddMute(hal.ScopeInput, 1, false, false).
			AddMute(hal.ScopeInput, 2, false, false).
			AddMute(hal.ScopeInput, hal.ElementMain, false, false).
			AddMute(hal.ScopeGlobal, hal.ElementMain, true, false)
		c := newCore(b)

		targets := c.Discover(3, hal.ControlMute)
		require.Equal(t, []TargetGroup{
			{Device: 3, Scope: hal.ScopeInput, Elements: []hal.Element{1, 2}},
			{Device: 3, Scope: hal.ScopeInput, Elements: []hal.Element{hal.ElementMain}},
			{Device: 3, Scope: hal.ScopeGlobal, Elements: []hal.Element{hal.ElementMain}},
		}, targets.Readable)
		require.Equal(t, []TargetGroup{
			{Device: 3, Scope: hal.ScopeGlobal, Elements: []hal.Element{hal.ElementMain}},
		}, targets.Writable)

		preferred, ok := targets.Preferred()
		require.True(t, ok)
		require.Equal(t, hal.ScopeGlobal, preferred.Scope)
	})

	t.Run("partially settable channels are left out of the writable group", func(t *testing.T) {
		b := fake.New()
		b.AddDevice(4, "half", "Half", 2).
			AddMute(hal.ScopeInput, 1, true, false).
			AddMute(hal.ScopeInput, 2, false, false)
		c := newCore(b)

		targets := c.Discover(4, hal.ControlMute)
		require.Equal(t, []hal.Element{1, 2}, targets.Readable[0].Elements)
		require.Equal(t, []hal.Element{1}, targets.Writable[0].Elements)
	})
}

func TestVolumeTargetGroupsSkipOutputScope(t *testing.T) {
	b := fake.New()
	b.AddDevice(1, "mic", "Mic", 1).
		AddVolume(hal.ScopeOutput, hal.ElementMain, true, 0.5).
		AddVolume(hal.ScopeGlobal, hal.ElementMain, true, 0.5)
	c := newCore(b)

	require.Equal(t, []TargetGroup{
		{Device: 1, Scope: hal.ScopeGlobal, Elements: []hal.Element{hal.ElementMain}},
	}, c.volumeTargetGroups(1, true))
}

func TestDedupeGroups(t *testing.T) {
	a := TargetGroup{Device: 1, Scope: hal.ScopeInput, Elements: []hal.Element{1, 2}}
	b := TargetGroup{Device: 1, Scope: hal.ScopeGlobal, Elements: []hal.Element{1, 2}}
	require.Equal(t, []TargetGroup{a, b}, dedupeGroups([]TargetGroup{a, b, a}))
}

func TestSelector(t *testing.T) {
	in := TargetGroup{Device: 1, Scope: hal.ScopeInput, Elements: []hal.Element{1, 2}}
	glob := TargetGroup{Device: 1, Scope: hal.ScopeGlobal, Elements: []hal.Element{hal.ElementMain}}
	out := TargetGroup{Device: 1, Scope: hal.ScopeOutput, Elements: []hal.Element{hal.ElementMain}}

	_, ok := preferredGroup(nil, nil)
	require.False(t, ok)

	g, ok := preferredGroup(nil, []TargetGroup{in, glob})
	require.True(t, ok)
	require.Equal(t, in, g)

	g, ok = preferredGroup([]TargetGroup{glob, out}, []TargetGroup{in, glob, out})
	require.True(t, ok)
	require.Equal(t, glob, g)

	require.Equal(t, []TargetGroup{out, glob}, orderedCandidates([]TargetGroup{glob, out}, out))
	require.Equal(t, []TargetGroup{glob, out}, orderedCandidates([]TargetGroup{glob, out}, in))
}

func TestIsGroupMuted(t *testing.T) {
	group := TargetGroup{Device: 1, Scope: hal.ScopeInput, Elements: []hal.Element{1, 2}}

	for _, tc := range []struct {
		name     string
		ch1, ch2 bool
		failRead bool
		expected bool
	}{
		{name: "both muted", ch1: true, ch2: true, expected: true},
		{name: "one muted", ch1: true, ch2: false, expected: false},
		{name: "none muted", expected: false},
		{name: "unreadable channel", ch1: true, ch2: true, failRead: true, expected: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := fake.New()
			b.AddDevice(1, "mic", "Mic", 2).
				AddMute(hal.ScopeInput, 1, true, tc.ch1).
				AddMute(hal.ScopeInput, 2, true, tc.ch2)
			if tc.failRead {
				b.FailReads(addr(1, hal.ScopeInput, 2), errors.New("gone"))
			}
			c := newCore(b)
			require.Equal(t, tc.expected, c.IsGroupMuted(group))
		})
	}

	t.Run("empty group", func(t *testing.T) {
		require.False(t, newCore(fake.New()).IsGroupMuted(TargetGroup{Device: 1}))
	})
}

func TestToggleMuteUSBMic(t *testing.T) {
	b := fake.New()
	usbMic(b)
	b.SetDefaultInput(1)
	c := newCore(b)
	d := lookup(t, c, "usb-mic")

	muted, err := c.ToggleMute(d)
	require.NoError(t, err)
	require.True(t, muted)

	require.True(t, b.MuteAt(addr(1, hal.ScopeInput, 1)))
	require.True(t, b.MuteAt(addr(1, hal.ScopeInput, 2)))

	muted, err = c.ReadMute(d)
	require.NoError(t, err)
	require.True(t, muted)
}

func TestToggleMuteRoundTrip(t *testing.T) {
	b := fake.New()
	usbMic(b)
	c := newCore(b)
	d := lookup(t, c, "usb-mic")

	before, err := c.ReadMute(d)
	require.NoError(t, err)

	_, err = c.ToggleMute(d)
	require.NoError(t, err)
	after, err := c.ToggleMute(d)
	require.NoError(t, err)

	require.Equal(t, before, after)
	now, err := c.ReadMute(d)
	require.NoError(t, err)
	require.Equal(t, before, now)
}

func TestSetMute(t *testing.T) {
	b := fake.New()
	usbMic(b)
	c := newCore(b)
	d := lookup(t, c, "usb-mic")

	for _, v := range []bool{true, true, false, false, true} {
		require.NoError(t, c.SetMute(d, v))
		muted, err := c.ReadMute(d)
		require.NoError(t, err)
		require.Equal(t, v, muted)
	}
}

func TestToggleMuteWeirdDAC(t *testing.T) {
	b := fake.New()
	weirdDAC(b)
	c := newCore(b)
	d := lookup(t, c, "weird-dac")

	targets := c.Discover(d.ID, hal.ControlMute)
	require.Len(t, targets.Writable, 1)
	require.Len(t, targets.Readable, 1)
	require.Equal(t, hal.ScopeOutput, targets.Writable[0].Scope)

	muted, err := c.ToggleMute(d)
	require.NoError(t, err)
	require.True(t, muted)
	require.True(t, b.MuteAt(addr(2, hal.ScopeOutput, hal.ElementMain)))
}

func TestToggleMuteFallsBackAndRestores(t *testing.T) {
	b := fake.New()
	b.AddDevice(1, "quirky", "Quirky", 2).
		AddMute(hal.ScopeInput, 1, true, false).
		AddMute(hal.ScopeInput, 2, true, false).
		AddMute(hal.ScopeGlobal, hal.ElementMain, true, false)
	// channel 2 accepts writes but never changes
	b.IgnoreWrites(addr(1, hal.ScopeInput, 2))
	c := newCore(b)
	d := lookup(t, c, "quirky")

	require.NoError(t, c.SetMute(d, true))

	// the input group did not verify, so channel 1 was rolled back
	require.False(t, b.MuteAt(addr(1, hal.ScopeInput, 1)))
	require.True(t, b.MuteAt(addr(1, hal.ScopeGlobal, hal.ElementMain)))

	writes := b.Writes()
	require.Equal(t, fake.Write{Addr: addr(1, hal.ScopeInput, 1), Control: hal.ControlMute, Muted: true}, writes[0])
	require.Equal(t, fake.Write{Addr: addr(1, hal.ScopeInput, 1), Control: hal.ControlMute, Muted: false}, writes[2])
}

func TestWriteVerifiedThroughBaseline(t *testing.T) {
	b := fake.New()
	b.AddDevice(1, "redirect", "Redirect", 1).
		AddMute(hal.ScopeInput, 1, true, false).
		AddMute(hal.ScopeGlobal, hal.ElementMain, true, false)
	b.IgnoreWrites(addr(1, hal.ScopeInput, 1))
	// the global control drives the input channel instead of itself
	b.Redirect(addr(1, hal.ScopeGlobal, hal.ElementMain), addr(1, hal.ScopeInput, 1))
	c := newCore(b)
	d := lookup(t, c, "redirect")

	muted, err := c.ToggleMute(d)
	require.NoError(t, err)
	require.True(t, muted)

	require.True(t, b.MuteAt(addr(1, hal.ScopeInput, 1)))
	require.False(t, b.MuteAt(addr(1, hal.ScopeGlobal, hal.ElementMain)))

	now, err := c.ReadMute(d)
	require.NoError(t, err)
	require.True(t, now)
}

func TestToggleMuteNoEffect(t *testing.T) {
	b := fake.New()
	b.AddDevice(1, "stuck", "Stuck", 1).
		AddMute(hal.ScopeInput, 1, true, false).
		AddMute(hal.ScopeInput, hal.ElementMain, true, false)
	b.IgnoreWrites(addr(1, hal.ScopeInput, 1))
	b.IgnoreWrites(addr(1, hal.ScopeInput, hal.ElementMain))
	c := newCore(b)
	d := lookup(t, c, "stuck")

	_, err := c.ToggleMute(d)
	require.ErrorIs(t, err, ErrWriteHadNoEffect)
	require.NotErrorIs(t, err, ErrNotSupported)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, "Stuck", devErr.Device)
	require.Equal(t, hal.ControlMute, devErr.Control)

	// both candidates were tried
	require.Equal(t, 4, b.WriteCount(hal.ControlMute))
}

func TestToggleMuteNotSupported(t *testing.T) {
	b := fake.New()
	b.AddDevice(1, "readonly", "Read-Only", 1).
		AddMute(hal.ScopeInput, hal.ElementMain, false, true)
	b.AddDevice(2, "bare", "Bare", 1)
	c := newCore(b)

	for _, uid := range []string{"readonly", "bare"} {
		_, err := c.ToggleMute(lookup(t, c, uid))
		require.ErrorIs(t, err, ErrNotSupported)
		require.Zero(t, b.WriteCount(hal.ControlMute))
	}

	muted, err := c.ReadMute(lookup(t, c, "readonly"))
	require.NoError(t, err)
	require.True(t, muted)

	_, err = c.ReadMute(lookup(t, c, "bare"))
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestSetMuteWriteFailureContinuesAndRestores(t *testing.T) {
	b := fake.New()
	usbMic(b)
	c := newCore(b)
	d := lookup(t, c, "usb-mic")
	ch1 := addr(1, hal.ScopeInput, 1)
	ch2 := addr(1, hal.ScopeInput, 2)
	b.FailWrites(ch1, hal.NewStatusError(-3, "write mute", nil))

	require.ErrorIs(t, c.SetMute(d, true), ErrWriteHadNoEffect)
	require.Equal(t, []fake.Write{
		{Addr: ch1, Control: hal.ControlMute, Muted: true},
		{Addr: ch2, Control: hal.ControlMute, Muted: true},
		{Addr: ch1, Control: hal.ControlMute, Muted: false},
		{Addr: ch2, Control: hal.ControlMute, Muted: false},
	}, b.Writes())
	require.False(t, b.MuteAt(ch1))
	require.False(t, b.MuteAt(ch2))
}

func TestSetMuteRestoresOnlyReadValues(t *testing.T) {
	b := fake.New()
	usbMic(b)
	c := newCore(b)
	d := lookup(t, c, "usb-mic")
	ch1 := addr(1, hal.ScopeInput, 1)
	ch2 := addr(1, hal.ScopeInput, 2)
	b.FailReads(ch1, hal.NewStatusError(-4, "read mute", nil))

	// ch1 cannot be verified, so the attempt fails; it was never read, so
	// it is not restored either
	require.ErrorIs(t, c.SetMute(d, true), ErrWriteHadNoEffect)
	require.Equal(t, []fake.Write{
		{Addr: ch1, Control: hal.ControlMute, Muted: true},
		{Addr: ch2, Control: hal.ControlMute, Muted: true},
		{Addr: ch2, Control: hal.ControlMute, Muted: false},
	}, b.Writes())
	require.True(t, b.MuteAt(ch1))
	require.False(t, b.MuteAt(ch2))
}

func TestLockVolumeIfUnmuted(t *testing.T) {
	setup := func(muted bool) (*fake.Backend, *Core, Device) {
		b := fake.New()
		b.AddDevice(1, "mic", "Mic", 2).
			AddMute(hal.ScopeInput, hal.ElementMain, true, muted).
			AddVolume(hal.ScopeInput, 1, true, 0.3).
			AddVolume(hal.ScopeInput, 2, true, 0.4).
			AddVolume(hal.ScopeGlobal, hal.ElementMain, true, 0.5)
		c := newCore(b)
		return b, c, lookup(t, c, "mic")
	}

	t.Run("muted is a no-op", func(t *testing.T) {
		b, c, d := setup(true)
		b.OnSetVolume = func(a hal.Address, v float32) error {
			t.Errorf("volume write to %s while muted", a)
			return errors.New("volume written while muted")
		}
		require.NoError(t, c.LockVolumeIfUnmuted(d))
		require.Zero(t, b.WriteCount(hal.ControlVolume))
	})

	t.Run("unmuted raises every group to full scale", func(t *testing.T) {
		b, c, d := setup(false)
		require.NoError(t, c.LockVolumeIfUnmuted(d))
		assert.Equal(t, float32(1), b.VolumeAt(addr(1, hal.ScopeInput, 1)))
		assert.Equal(t, float32(1), b.VolumeAt(addr(1, hal.ScopeInput, 2)))
		assert.Equal(t, float32(1), b.VolumeAt(addr(1, hal.ScopeGlobal, hal.ElementMain)))
		require.Equal(t, 3, b.WriteCount(hal.ControlVolume))

		// every poll writes every group again
		b.ResetWrites()
		require.NoError(t, c.LockVolumeIfUnmuted(d))
		require.Equal(t, 3, b.WriteCount(hal.ControlVolume))
	})

	t.Run("partial success", func(t *testing.T) {
		b, c, d := setup(false)
		b.FailWrites(addr(1, hal.ScopeInput, 1), hal.NewStatusError(-3, "write volume", nil))
		require.NoError(t, c.LockVolumeIfUnmuted(d))
		assert.Equal(t, float32(1), b.VolumeAt(addr(1, hal.ScopeGlobal, hal.ElementMain)))
	})

	t.Run("every write fails", func(t *testing.T) {
		b, c, d := setup(false)
		statusErr := hal.NewStatusError(-3, "write volume", nil)
		b.OnSetVolume = func(hal.Address, float32) error { return statusErr }

		err := c.LockVolumeIfUnmuted(d)
		require.ErrorIs(t, err, ErrWriteHadNoEffect)
		var se *hal.StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, int32(-3), se.Code)
	})

	t.Run("no volume control", func(t *testing.T) {
		b := fake.New()
		usbMic(b)
		c := newCore(b)
		require.ErrorIs(t, c.LockVolumeIfUnmuted(lookup(t, c, "usb-mic")), ErrNotSupported)
	})
}

func TestNormalizeVolume(t *testing.T) {
	require.Equal(t, float32(1), NormalizeVolume(100))
	require.Equal(t, float32(1), NormalizeVolume(140))
	require.Equal(t, float32(0), NormalizeVolume(-5))
	require.InDelta(t, 0.5, NormalizeVolume(50), 1e-6)
}
