package mute

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// AggregateState is the combined mute state of all mute-capable devices.
type AggregateState struct {
	// IsMuted is set only when every capable device reads muted.
	IsMuted   bool `json:"is_muted"`
	CanToggle bool `json:"can_toggle"`
	Total     int  `json:"total"`
	Muted     int  `json:"muted"`
	// Failed counts devices whose mute state could not be read at all.
	Failed int `json:"failed"`
}

// NoneFound reports the distinguished state of zero capable devices.
func (s AggregateState) NoneFound() bool {
	return s.Total == 0
}

// AllCapableState reads every mute-capable device.
func (c *Core) AllCapableState() (AggregateState, error) {
	devices, err := c.ListMuteCapableDevices()
	if err != nil {
		return AggregateState{}, err
	}
	return c.aggregate(devices), nil
}

func (c *Core) aggregate(devices []Device) AggregateState {
	s := AggregateState{Total: len(devices)}
	for _, d := range devices {
		muted, err := c.ReadMute(d)
		if err != nil {
			c.log.WithError(err).WithField("device", d.Name).Debug("unable to read mute state")
			s.Failed++
			continue
		}
		if muted {
			s.Muted++
		}
	}
	s.CanToggle = s.Total > 0
	s.IsMuted = s.Total > 0 && s.Muted == s.Total
	return s
}

// ToggleAllCapable mutes every capable device unless all of them already are,
// in which case it unmutes every one. The returned state is read back after
// the writes.
func (c *Core) ToggleAllCapable() (AggregateState, error) {
	devices, err := c.ListMuteCapableDevices()
	if err != nil {
		return AggregateState{}, err
	}
	current := c.aggregate(devices)
	if !current.CanToggle {
		return current, ErrNoCapableDevices
	}
	return c.setAll(devices, !current.IsMuted)
}

// SetAllCapable drives every capable device to the given mute state.
func (c *Core) SetAllCapable(muted bool) (AggregateState, error) {
	devices, err := c.ListMuteCapableDevices()
	if err != nil {
		return AggregateState{}, err
	}
	if len(devices) == 0 {
		return AggregateState{}, ErrNoCapableDevices
	}
	return c.setAll(devices, muted)
}

// setAll writes each device independently, in order. One success is enough.
func (c *Core) setAll(devices []Device, muted bool) (AggregateState, error) {
	succeeded := 0
	var errs []error
	for _, d := range devices {
		if err := c.SetMute(d, muted); err != nil {
			c.log.WithError(err).WithFields(log.Fields{
				"device": d.Name,
				"muted":  muted,
			}).Warn("unable to set mute")
			errs = append(errs, err)
			continue
		}
		succeeded++
	}

	state, err := c.AllCapableState()
	if err != nil {
		return state, err
	}
	if succeeded == 0 {
		return state, fmt.Errorf("%w on all %d devices: %w", ErrWriteHadNoEffect, len(devices), errors.Join(errs...))
	}
	return state, nil
}

// LockVolumeIfUnmutedForAll applies LockVolumeIfUnmuted to every capable
// device. It fails only if no device succeeded.
func (c *Core) LockVolumeIfUnmutedForAll() error {
	devices, err := c.ListMuteCapableDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return ErrNoCapableDevices
	}

	succeeded := 0
	var errs []error
	for _, d := range devices {
		if err := c.LockVolumeIfUnmuted(d); err != nil {
			errs = append(errs, err)
			continue
		}
		succeeded++
	}
	if succeeded == 0 {
		return errors.Join(errs...)
	}
	return nil
}
