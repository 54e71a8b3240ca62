package mute

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/hal"
)

// Scopes are probed in this order; earlier scopes are more likely to hold the
// control that actually affects capture. Volume on the output scope of an
// input device is not meaningful.
var (
	muteScopes   = []hal.Scope{hal.ScopeInput, hal.ScopeGlobal, hal.ScopeOutput}
	volumeScopes = []hal.Scope{hal.ScopeInput, hal.ScopeGlobal}
)

// minProbedChannels is the number of per-channel elements probed even when a
// device reports fewer stream channels.
const minProbedChannels = 2

// TargetGroup is a set of addresses on one device and scope that together
// form one logical control. Groups are alternatives to each other, never
// parts of one control.
type TargetGroup struct {
	Device   hal.DeviceID
	Scope    hal.Scope
	Elements []hal.Element
}

func (g TargetGroup) Empty() bool {
	return len(g.Elements) == 0
}

func (g TargetGroup) Addresses() []hal.Address {
	addrs := make([]hal.Address, 0, len(g.Elements))
	for _, e := range g.Elements {
		addrs = append(addrs, hal.Address{Device: g.Device, Scope: g.Scope, Element: e})
	}
	return addrs
}

// Key identifies the group for deduplication.
func (g TargetGroup) Key() string {
	return g.String()
}

func (g TargetGroup) String() string {
	elems := make([]string, 0, len(g.Elements))
	for _, e := range g.Elements {
		elems = append(elems, e.String())
	}
	return fmt.Sprintf("%d/%s/[%s]", g.Device, g.Scope, strings.Join(elems, ","))
}

// Targets holds the discovered groups of one control on one device.
type Targets struct {
	Readable []TargetGroup
	Writable []TargetGroup
}

// Discover finds the readable and writable target groups of a control.
func (c *Core) Discover(id hal.DeviceID, control hal.Control) Targets {
	if control == hal.ControlVolume {
		return Targets{
			Readable: c.volumeTargetGroups(id, false),
			Writable: c.volumeTargetGroups(id, true),
		}
	}
	return Targets{
		Readable: c.muteTargetGroups(id, false),
		Writable: c.muteTargetGroups(id, true),
	}
}

func (c *Core) muteTargetGroups(id hal.DeviceID, requireWritable bool) []TargetGroup {
	return c.targetGroups(id, hal.ControlMute, muteScopes, requireWritable)
}

func (c *Core) volumeTargetGroups(id hal.DeviceID, requireWritable bool) []TargetGroup {
	return c.targetGroups(id, hal.ControlVolume, volumeScopes, requireWritable)
}

// targetGroups probes every scope for two independent kinds of group: all
// per-channel elements carrying the control, and the main element alone.
func (c *Core) targetGroups(id hal.DeviceID, control hal.Control, scopes []hal.Scope, requireWritable bool) []TargetGroup {
	var groups []TargetGroup

	for _, scope := range scopes {
		var perChannel []hal.Element
		for _, e := range c.candidateChannels(id, scope) {
			if e == hal.ElementMain {
				continue
			}
			if c.qualifies(hal.Address{Device: id, Scope: scope, Element: e}, control, requireWritable) {
				perChannel = append(perChannel, e)
			}
		}
		if len(perChannel) > 0 {
			groups = append(groups, TargetGroup{Device: id, Scope: scope, Elements: perChannel})
		}

		if c.qualifies(hal.Address{Device: id, Scope: scope, Element: hal.ElementMain}, control, requireWritable) {
			groups = append(groups, TargetGroup{Device: id, Scope: scope, Elements: []hal.Element{hal.ElementMain}})
		}
	}

	groups = dedupeGroups(groups)
	c.log.WithFields(log.Fields{
		"deviceID":        id,
		"control":         control.String(),
		"requireWritable": requireWritable,
		"groups":          len(groups),
	}).Trace("discovered target groups")
	return groups
}

func (c *Core) qualifies(addr hal.Address, control hal.Control, requireWritable bool) bool {
	if !c.backend.HasControl(addr, control) {
		return false
	}
	if !requireWritable {
		return true
	}
	settable, err := c.backend.IsSettable(addr, control)
	if err != nil {
		c.log.WithError(err).WithField("addr", addr.String()).Trace("unable to query settable")
		return false
	}
	return settable
}

// candidateChannels returns the main element plus one element per reported
// stream channel, probing at least minProbedChannels.
func (c *Core) candidateChannels(id hal.DeviceID, scope hal.Scope) []hal.Element {
	n, err := c.backend.ChannelCount(id, scope)
	if err != nil || n < minProbedChannels {
		n = minProbedChannels
	}

	elems := make([]hal.Element, 0, n+1)
	elems = append(elems, hal.ElementMain)
	for i := 1; i <= n; i++ {
		elems = append(elems, hal.Element(i))
	}
	return dedupeElements(elems)
}

func dedupeElements(elems []hal.Element) []hal.Element {
	seen := make(map[hal.Element]struct{}, len(elems))
	out := elems[:0]
	for _, e := range elems {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func dedupeGroups(groups []TargetGroup) []TargetGroup {
	seen := make(map[string]struct{}, len(groups))
	out := make([]TargetGroup, 0, len(groups))
	for _, g := range groups {
		k := g.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, g)
	}
	return out
}
