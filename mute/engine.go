package mute

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/hal"
)

// fullScaleVolume is the normalised volume written by LockVolumeIfUnmuted.
var fullScaleVolume = NormalizeVolume(100)

// NormalizeVolume maps a percentage to the [0,1] scalar the backend expects.
func NormalizeVolume(percent float64) float32 {
	switch {
	case percent <= 0:
		return 0
	case percent >= 100:
		return 1
	}
	return float32(percent / 100)
}

// IsGroupMuted reports whether every address of the group reads muted. An
// empty group is not muted.
func (c *Core) IsGroupMuted(g TargetGroup) bool {
	muted, _ := c.readGroupMute(g)
	return muted
}

// readGroupMute is IsGroupMuted that also reports when not a single address
// of a non-empty group could be read.
func (c *Core) readGroupMute(g TargetGroup) (bool, error) {
	if g.Empty() {
		return false, nil
	}

	all := true
	read := 0
	var lastErr error
	for _, addr := range g.Addresses() {
		m, err := c.backend.Mute(addr)
		if err != nil {
			lastErr = err
			all = false
			continue
		}
		read++
		if !m {
			all = false
		}
	}
	if read == 0 {
		return false, fmt.Errorf("unable to read mute of %s: %w", g, lastErr)
	}
	return all, nil
}

// groupReads reports whether every address of the group reads desired.
func (c *Core) groupReads(g TargetGroup, desired bool) bool {
	if g.Empty() {
		return false
	}
	for _, addr := range g.Addresses() {
		m, err := c.backend.Mute(addr)
		if err != nil || m != desired {
			return false
		}
	}
	return true
}

// ReadMute returns the mute state of the device's baseline group.
func (c *Core) ReadMute(d Device) (bool, error) {
	baseline, ok := c.Discover(d.ID, hal.ControlMute).Preferred()
	if !ok {
		return false, notSupported(d, hal.ControlMute)
	}
	return c.readGroupMute(baseline)
}

// CanToggle reports whether the device has at least one writable mute group.
func (c *Core) CanToggle(d Device) bool {
	return len(c.muteTargetGroups(d.ID, true)) > 0
}

// writeMute is one verified attempt against a single group. It writes desired
// to every address, then accepts the attempt if either the written group or
// the baseline group reads back desired. Otherwise the values read before the
// write are restored.
func (c *Core) writeMute(g TargetGroup, desired bool, baseline TargetGroup) bool {
	l := c.log.WithFields(log.Fields{
		"group":   g.String(),
		"desired": desired,
	})

	addrs := g.Addresses()
	prev := make(map[hal.Address]bool, len(addrs))
	for _, addr := range addrs {
		if m, err := c.backend.Mute(addr); err == nil {
			prev[addr] = m
		}
	}

	for _, addr := range addrs {
		if err := c.backend.SetMute(addr, desired); err != nil {
			l.WithError(err).WithField("addr", addr.String()).Debug("mute write failed")
		}
	}

	if c.groupReads(g, desired) {
		l.Debug("mute write verified")
		return true
	}
	if !baseline.Empty() && baseline.Key() != g.Key() && c.groupReads(baseline, desired) {
		l.WithField("baseline", baseline.String()).Debug("mute write verified through baseline group")
		return true
	}

	l.Debug("mute write had no effect, restoring previous values")
	for _, addr := range addrs {
		m, ok := prev[addr]
		if !ok {
			continue
		}
		if err := c.backend.SetMute(addr, m); err != nil {
			l.WithError(err).WithField("addr", addr.String()).Debug("unable to restore previous mute value")
		}
	}
	return false
}

// applyMute drives desired through the candidate groups until one verifies.
func (c *Core) applyMute(d Device, targets Targets, desired bool) error {
	if len(targets.Writable) == 0 {
		return notSupported(d, hal.ControlMute)
	}
	baseline, _ := targets.Preferred()

	g, ok := speculate(targets.Candidates(), func(g TargetGroup) bool {
		return c.writeMute(g, desired, baseline)
	})
	if !ok {
		return noEffect(d, hal.ControlMute, nil)
	}

	c.log.WithFields(log.Fields{
		"device": d.Name,
		"group":  g.String(),
		"muted":  desired,
	}).Info("set mute")
	return nil
}

// ToggleMute inverts the device's mute state and returns the new state.
func (c *Core) ToggleMute(d Device) (bool, error) {
	targets := c.Discover(d.ID, hal.ControlMute)
	if len(targets.Writable) == 0 {
		return false, notSupported(d, hal.ControlMute)
	}
	baseline, _ := targets.Preferred()
	current := c.IsGroupMuted(baseline)

	if err := c.applyMute(d, targets, !current); err != nil {
		return current, err
	}
	return !current, nil
}

// SetMute drives the device to the given mute state.
func (c *Core) SetMute(d Device, muted bool) error {
	return c.applyMute(d, c.Discover(d.ID, hal.ControlMute), muted)
}

// LockVolumeIfUnmuted writes full scale to every writable volume group of an
// unmuted device. While the device is muted nothing is written.
func (c *Core) LockVolumeIfUnmuted(d Device) error {
	l := c.log.WithField("device", d.Name)

	if baseline, ok := c.Discover(d.ID, hal.ControlMute).Preferred(); ok && c.IsGroupMuted(baseline) {
		l.Trace("device muted, not locking volume")
		return nil
	}

	groups := c.volumeTargetGroups(d.ID, true)
	if len(groups) == 0 {
		return notSupported(d, hal.ControlVolume)
	}

	updated := 0
	var lastErr error
	for _, g := range groups {
		ok := true
		for _, addr := range g.Addresses() {
			if err := c.backend.SetVolume(addr, fullScaleVolume); err != nil {
				l.WithError(err).WithField("addr", addr.String()).Debug("volume write failed")
				lastErr = err
				ok = false
			}
		}
		if ok {
			updated++
		}
	}

	if updated == 0 {
		return noEffect(d, hal.ControlVolume, lastErr)
	}
	l.WithField("groups", updated).Trace("volume locked")
	return nil
}
