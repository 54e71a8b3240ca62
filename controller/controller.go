// Package controller is the surface the agent's transports talk to. It holds
// the user's preferences, turns core results into presentable state, and
// serialises every call into the mute core.
package controller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/mute"
)

// MinToggleInterval is the shortest accepted interval between two toggles.
const MinToggleInterval = 300 * time.Millisecond

// ErrToggleTooSoon is returned when a toggle arrives within MinToggleInterval
// of the previous one.
var ErrToggleTooSoon = errors.New("controller: toggle requested too soon")

// Preferences are owned by the caller; the controller only keeps the current
// copy in memory.
type Preferences struct {
	MuteAll     bool   `json:"mute_all" yaml:"mute_all"`
	LockVolume  bool   `json:"lock_volume" yaml:"lock_volume"`
	SelectedUID string `json:"selected_uid,omitempty" yaml:"selected_uid"`
}

// DeviceStatus is one entry of ListDevices. IsMuted is nil if the device has
// no readable mute control.
type DeviceStatus struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	CanToggle bool   `json:"can_toggle"`
	IsMuted   *bool  `json:"is_muted"`
}

type SingleState struct {
	IsMuted          bool   `json:"is_muted"`
	CanToggle        bool   `json:"can_toggle"`
	StatusText       string `json:"status_text"`
	DeviceUID        string `json:"device_uid,omitempty"`
	DeviceName       string `json:"device_name"`
	UsingDefault     bool   `json:"using_default"`
	SelectionMissing bool   `json:"selection_missing"`
}

type AllState struct {
	IsMuted      bool   `json:"is_muted"`
	CanToggle    bool   `json:"can_toggle"`
	StatusText   string `json:"status_text"`
	TotalCapable int    `json:"total_capable"`
	MutedCount   int    `json:"muted_count"`
	FailedCount  int    `json:"failed_count"`
}

// State is what the current preferences select: Single when operating on one
// device, All when operating on all mute-capable devices.
type State struct {
	Single *SingleState `json:"single,omitempty"`
	All    *AllState    `json:"all,omitempty"`
}

// IsMuted returns the mute flag of whichever state is set.
func (s State) IsMuted() bool {
	if s.All != nil {
		return s.All.IsMuted
	}
	return s.Single != nil && s.Single.IsMuted
}

type Controller struct {
	mu sync.Mutex

	core  *mute.Core
	prefs Preferences
	log   log.FieldLogger

	now        func() time.Time
	lastToggle time.Time
}

type Option func(*Controller)

func WithLogger(l log.FieldLogger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func New(core *mute.Core, prefs Preferences, opts ...Option) *Controller {
	c := &Controller{
		core:  core,
		prefs: prefs,
		log:   log.StandardLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Preferences() Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

func (c *Controller) SetPreferences(p Preferences) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p != c.prefs {
		c.log.WithFields(log.Fields{
			"muteAll":     p.MuteAll,
			"lockVolume":  p.LockVolume,
			"selectedUID": p.SelectedUID,
		}).Info("preferences changed")
	}
	c.prefs = p
}

// ListDevices lists every input device with its mute capability and state.
func (c *Controller) ListDevices() ([]DeviceStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	devices, err := c.core.ListDevices()
	if err != nil {
		return nil, err
	}
	out := make([]DeviceStatus, 0, len(devices))
	for _, d := range devices {
		st := DeviceStatus{
			UID:       d.UID,
			Name:      d.Name,
			IsDefault: d.IsDefault,
			CanToggle: c.core.CanToggle(d),
		}
		if muted, err := c.core.ReadMute(d); err == nil {
			st.IsMuted = &muted
		}
		out = append(out, st)
	}
	return out, nil
}

// State returns the state selected by the current preferences.
func (c *Controller) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() (State, error) {
	if c.prefs.MuteAll {
		s, err := c.allStateLocked()
		return State{All: &s}, err
	}
	s, err := c.singleStateLocked(c.prefs.SelectedUID)
	return State{Single: &s}, err
}

// SingleDeviceState reports the device selectedUID resolves to.
func (c *Controller) SingleDeviceState(selectedUID string) (SingleState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.singleStateLocked(selectedUID)
}

func (c *Controller) singleStateLocked(selectedUID string) (SingleState, error) {
	r, err := c.core.ResolveDevice(selectedUID)
	if err != nil {
		return SingleState{StatusText: "No microphone found"}, err
	}

	s := SingleState{
		DeviceUID:        r.UID,
		DeviceName:       r.Name,
		UsingDefault:     r.UsingDefault,
		SelectionMissing: r.SelectionMissing,
		CanToggle:        c.core.CanToggle(r.Device),
	}
	muted, readErr := c.core.ReadMute(r.Device)
	if readErr == nil {
		s.IsMuted = muted
	}
	s.StatusText = singleStatusText(s, readErr)
	return s, nil
}

// AllDevicesState reports the aggregate over all mute-capable devices.
func (c *Controller) AllDevicesState() (AllState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allStateLocked()
}

func (c *Controller) allStateLocked() (AllState, error) {
	agg, err := c.core.AllCapableState()
	if err != nil {
		return AllState{StatusText: "Unable to list microphones"}, err
	}
	return allState(agg), nil
}

func allState(agg mute.AggregateState) AllState {
	return AllState{
		IsMuted:      agg.IsMuted,
		CanToggle:    agg.CanToggle,
		StatusText:   allStatusText(agg),
		TotalCapable: agg.Total,
		MutedCount:   agg.Muted,
		FailedCount:  agg.Failed,
	}
}

// checkToggleLocked enforces MinToggleInterval. Rejected requests do not
// extend the interval.
func (c *Controller) checkToggleLocked() error {
	now := c.now()
	if !c.lastToggle.IsZero() && now.Sub(c.lastToggle) < MinToggleInterval {
		return ErrToggleTooSoon
	}
	c.lastToggle = now
	return nil
}

// ToggleSingle toggles the device selectedUID resolves to and returns its
// state read back afterwards. On error the returned state is still fresh,
// since some writes may have happened.
func (c *Controller) ToggleSingle(selectedUID string) (SingleState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkToggleLocked(); err != nil {
		s, _ := c.singleStateLocked(selectedUID)
		return s, err
	}
	return c.toggleSingleLocked(selectedUID)
}

func (c *Controller) toggleSingleLocked(selectedUID string) (SingleState, error) {
	r, err := c.core.ResolveDevice(selectedUID)
	if err != nil {
		return SingleState{StatusText: "No microphone found"}, err
	}
	_, toggleErr := c.core.ToggleMute(r.Device)
	s, err := c.singleStateLocked(selectedUID)
	if toggleErr != nil {
		return s, toggleErr
	}
	return s, err
}

// ToggleAll toggles the aggregate over all mute-capable devices.
func (c *Controller) ToggleAll() (AllState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkToggleLocked(); err != nil {
		s, _ := c.allStateLocked()
		return s, err
	}
	return c.toggleAllLocked()
}

func (c *Controller) toggleAllLocked() (AllState, error) {
	agg, err := c.core.ToggleAllCapable()
	return allState(agg), err
}

// Toggle toggles whatever the current preferences select.
func (c *Controller) Toggle() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkToggleLocked(); err != nil {
		s, _ := c.stateLocked()
		return s, err
	}
	if c.prefs.MuteAll {
		s, err := c.toggleAllLocked()
		return State{All: &s}, err
	}
	s, err := c.toggleSingleLocked(c.prefs.SelectedUID)
	return State{Single: &s}, err
}

// SetMuted drives whatever the current preferences select to muted.
func (c *Controller) SetMuted(muted bool) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prefs.MuteAll {
		agg, err := c.core.SetAllCapable(muted)
		s := allState(agg)
		return State{All: &s}, err
	}

	r, err := c.core.ResolveDevice(c.prefs.SelectedUID)
	if err != nil {
		return State{Single: &SingleState{StatusText: "No microphone found"}}, err
	}
	setErr := c.core.SetMute(r.Device, muted)
	s, err := c.singleStateLocked(c.prefs.SelectedUID)
	if setErr != nil {
		err = setErr
	}
	return State{Single: &s}, err
}

// LockVolumeIfUnmuted raises the input volume of the resolved device to full
// scale unless it is muted.
func (c *Controller) LockVolumeIfUnmuted(selectedUID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockVolumeLocked(selectedUID)
}

func (c *Controller) lockVolumeLocked(selectedUID string) error {
	r, err := c.core.ResolveDevice(selectedUID)
	if err != nil {
		return err
	}
	return c.core.LockVolumeIfUnmuted(r.Device)
}

// LockVolumeIfUnmutedForAll applies LockVolumeIfUnmuted to every
// mute-capable device.
func (c *Controller) LockVolumeIfUnmutedForAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.core.LockVolumeIfUnmutedForAll()
}

// EnforceVolumeLock runs the volume lock the preferences ask for, if any.
func (c *Controller) EnforceVolumeLock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.prefs.LockVolume {
		return nil
	}
	if c.prefs.MuteAll {
		return c.core.LockVolumeIfUnmutedForAll()
	}
	return c.lockVolumeLocked(c.prefs.SelectedUID)
}

func singleStatusText(s SingleState, readErr error) string {
	var text string
	switch {
	case errors.Is(readErr, mute.ErrNotSupported):
		text = fmt.Sprintf("%s does not support mute", s.DeviceName)
	case readErr != nil:
		text = fmt.Sprintf("%s: mute state unavailable", s.DeviceName)
	case s.IsMuted:
		text = fmt.Sprintf("%s is muted", s.DeviceName)
	default:
		text = fmt.Sprintf("%s is live", s.DeviceName)
	}
	if s.SelectionMissing {
		text = "Selected microphone disconnected, using default. " + text
	}
	return text
}

func allStatusText(agg mute.AggregateState) string {
	var text string
	switch {
	case agg.NoneFound():
		return "No mute-capable microphones"
	case agg.IsMuted:
		text = fmt.Sprintf("All %d microphones muted", agg.Total)
	case agg.Muted > 0:
		text = fmt.Sprintf("%d of %d microphones muted", agg.Muted, agg.Total)
	default:
		text = fmt.Sprintf("All %d microphones live", agg.Total)
	}
	if agg.Failed > 0 {
		text += fmt.Sprintf(" (%d unreadable)", agg.Failed)
	}
	return text
}
