// Package pulse implements hal.Backend on top of PulseAudio (or PipeWire's
// pulse server). Each capture source is a device. Pulse knows one mute flag
// per source and one volume per channel, so mute lives on the main element of
// the input scope, and volume on both the main element (all channels) and
// the per-channel elements.
package pulse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/hal"
)

// volumeNorm is the pulse volume for 100%.
const volumeNorm = 0x10000

type Backend struct {
	client *pulse.Client
}

var _ hal.Backend = (*Backend)(nil)

// New connects to the pulse server. An empty server uses the default.
func New(server string) (*Backend, error) {
	opts := []pulse.ClientOption{pulse.ClientApplicationName("mute-agent")}
	if server != "" {
		opts = append(opts, pulse.ClientServerString(server))
	}
	client, err := pulse.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to pulse: %w", err)
	}
	log.WithField("server", server).Debug("connected to pulse")
	return &Backend{client: client}, nil
}

func (b *Backend) Close() error {
	b.client.Close()
	return nil
}

func (b *Backend) request(op string, addr *hal.Address, req proto.RequestArgs, rpl proto.Reply) error {
	err := b.client.RawRequest(req, rpl)
	if err == nil {
		return nil
	}
	var perr proto.Error
	if errors.As(err, &perr) {
		return hal.NewStatusError(int32(perr), op, addr)
	}
	return fmt.Errorf("pulse: %s: %w", op, err)
}

func (b *Backend) source(id hal.DeviceID) (*proto.GetSourceInfoReply, error) {
	var rpl proto.GetSourceInfoReply
	if err := b.request("get source info", nil, &proto.GetSourceInfo{SourceIndex: uint32(id)}, &rpl); err != nil {
		return nil, err
	}
	return &rpl, nil
}

func isMonitor(name string) bool {
	return strings.HasSuffix(name, ".monitor")
}

// Devices implements hal.Backend. Monitor sources of sinks are left out.
func (b *Backend) Devices() ([]hal.DeviceID, error) {
	var rpl proto.GetSourceInfoListReply
	if err := b.request("list sources", nil, &proto.GetSourceInfoList{}, &rpl); err != nil {
		return nil, err
	}
	ids := make([]hal.DeviceID, 0, len(rpl))
	for _, src := range rpl {
		if isMonitor(src.SourceName) {
			continue
		}
		ids = append(ids, hal.DeviceID(src.SourceIndex))
	}
	return ids, nil
}

// DefaultInputDevice implements hal.Backend.
func (b *Backend) DefaultInputDevice() (hal.DeviceID, bool, error) {
	var info proto.GetServerInfoReply
	if err := b.request("get server info", nil, &proto.GetServerInfo{}, &info); err != nil {
		return 0, false, err
	}
	if info.DefaultSourceName == "" || isMonitor(info.DefaultSourceName) {
		return 0, false, nil
	}

	var rpl proto.GetSourceInfoReply
	req := &proto.GetSourceInfo{SourceIndex: proto.Undefined, SourceName: info.DefaultSourceName}
	if err := b.request("get default source", nil, req, &rpl); err != nil {
		return 0, false, err
	}
	return hal.DeviceID(rpl.SourceIndex), true, nil
}

// DeviceUID implements hal.Backend.
func (b *Backend) DeviceUID(id hal.DeviceID) (string, error) {
	src, err := b.source(id)
	if err != nil {
		return "", err
	}
	return src.SourceName, nil
}

// DeviceName implements hal.Backend.
func (b *Backend) DeviceName(id hal.DeviceID) (string, error) {
	src, err := b.source(id)
	if err != nil {
		return "", err
	}
	return src.Device, nil
}

// ChannelCount implements hal.Backend.
func (b *Backend) ChannelCount(id hal.DeviceID, scope hal.Scope) (int, error) {
	if scope != hal.ScopeInput {
		return 0, nil
	}
	src, err := b.source(id)
	if err != nil {
		return 0, err
	}
	return len(src.ChannelVolumes), nil
}

// HasControl implements hal.Backend.
func (b *Backend) HasControl(addr hal.Address, c hal.Control) bool {
	if addr.Scope != hal.ScopeInput {
		return false
	}
	src, err := b.source(addr.Device)
	if err != nil {
		return false
	}
	switch c {
	case hal.ControlMute:
		return addr.Element == hal.ElementMain
	case hal.ControlVolume:
		return int(addr.Element) <= len(src.ChannelVolumes)
	}
	return false
}

// IsSettable implements hal.Backend. Every pulse control is settable.
func (b *Backend) IsSettable(addr hal.Address, c hal.Control) (bool, error) {
	if !b.HasControl(addr, c) {
		return false, fmt.Errorf("%w: %s at %s", hal.ErrUnknownProperty, c, addr)
	}
	return true, nil
}

// Mute implements hal.Backend.
func (b *Backend) Mute(addr hal.Address) (bool, error) {
	if addr.Scope != hal.ScopeInput || addr.Element != hal.ElementMain {
		return false, fmt.Errorf("%w: mute at %s", hal.ErrUnknownProperty, addr)
	}
	src, err := b.source(addr.Device)
	if err != nil {
		return false, err
	}
	return src.Mute, nil
}

// SetMute implements hal.Backend.
func (b *Backend) SetMute(addr hal.Address, muted bool) error {
	if addr.Scope != hal.ScopeInput || addr.Element != hal.ElementMain {
		return fmt.Errorf("%w: mute at %s", hal.ErrUnknownProperty, addr)
	}
	req := &proto.SetSourceMute{SourceIndex: uint32(addr.Device), Mute: muted}
	return b.request("set source mute", &addr, req, nil)
}

// Volume implements hal.Backend. The main element reports the loudest channel.
func (b *Backend) Volume(addr hal.Address) (float32, error) {
	src, err := b.source(addr.Device)
	if err != nil {
		return 0, err
	}
	vols := src.ChannelVolumes
	if addr.Scope != hal.ScopeInput || int(addr.Element) > len(vols) {
		return 0, fmt.Errorf("%w: volume at %s", hal.ErrUnknownProperty, addr)
	}

	if addr.Element != hal.ElementMain {
		return float32(vols[addr.Element-1]) / volumeNorm, nil
	}
	var loudest uint32
	for _, v := range vols {
		if v > loudest {
			loudest = v
		}
	}
	return float32(loudest) / volumeNorm, nil
}

// SetVolume implements hal.Backend. The main element sets every channel.
func (b *Backend) SetVolume(addr hal.Address, v float32) error {
	src, err := b.source(addr.Device)
	if err != nil {
		return err
	}
	vols := make(proto.ChannelVolumes, len(src.ChannelVolumes))
	copy(vols, src.ChannelVolumes)
	if addr.Scope != hal.ScopeInput || int(addr.Element) > len(vols) {
		return fmt.Errorf("%w: volume at %s", hal.ErrUnknownProperty, addr)
	}

	raw := uint32(v * volumeNorm)
	if addr.Element == hal.ElementMain {
		for i := range vols {
			vols[i] = raw
		}
	} else {
		vols[addr.Element-1] = raw
	}

	req := &proto.SetSourceVolume{SourceIndex: uint32(addr.Device), ChannelVolumes: vols}
	return b.request("set source volume", &addr, req, nil)
}
