// Package osc exposes mute control to OSC control surfaces.
//
// Routes:
//
//	/mute/toggle         toggle, arguments ignored
//	/mute/set    <v>     mute if v is true or non-zero, unmute otherwise
//	/mute/lock   <v>     enable or disable the volume lock preference
package osc

import (
	"context"
	"fmt"
	"net"

	goosc "github.com/hypebeast/go-osc/osc"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/controller"
)

const (
	AddrToggle = "/mute/toggle"
	AddrSet    = "/mute/set"
	AddrLock   = "/mute/lock"
)

// Surface dispatches incoming OSC messages to a controller.
type Surface struct {
	ctrl       *controller.Controller
	dispatcher *goosc.StandardDispatcher

	// onChange is called after every message that may have changed state.
	onChange func()
}

func New(ctrl *controller.Controller, onChange func()) (*Surface, error) {
	s := &Surface{
		ctrl:       ctrl,
		dispatcher: goosc.NewStandardDispatcher(),
		onChange:   onChange,
	}

	for addr, h := range map[string]goosc.HandlerFunc{
		AddrToggle: s.handleToggle,
		AddrSet:    s.handleSet,
		AddrLock:   s.handleLock,
	} {
		if err := s.dispatcher.AddMsgHandler(addr, h); err != nil {
			return nil, fmt.Errorf("unable to add handler for %s: %w", addr, err)
		}
	}
	return s, nil
}

// ListenAndServe serves OSC on the UDP address until ctx is done.
func (s *Surface) ListenAndServe(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.WithField("addr", addr).Info("serving OSC")
	server := &goosc.Server{Dispatcher: s.dispatcher}
	if err := server.Serve(conn); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving osc: %w", err)
	}
	return nil
}

func (s *Surface) handleToggle(msg *goosc.Message) {
	if _, err := s.ctrl.Toggle(); err != nil {
		log.WithError(err).WithField("address", msg.Address).Warn("unable to toggle")
	}
	s.changed()
}

func (s *Surface) handleSet(msg *goosc.Message) {
	v, err := boolArg(msg)
	if err != nil {
		log.WithError(err).WithField("address", msg.Address).Warn("invalid message")
		return
	}
	if _, err := s.ctrl.SetMuted(v); err != nil {
		log.WithError(err).WithField("address", msg.Address).Warn("unable to set mute")
	}
	s.changed()
}

func (s *Surface) handleLock(msg *goosc.Message) {
	v, err := boolArg(msg)
	if err != nil {
		log.WithError(err).WithField("address", msg.Address).Warn("invalid message")
		return
	}
	prefs := s.ctrl.Preferences()
	prefs.LockVolume = v
	s.ctrl.SetPreferences(prefs)
	s.changed()
}

func (s *Surface) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// boolArg interprets the last argument of a message as a boolean. Control
// surfaces send buttons as ints or floats as often as bools.
func boolArg(msg *goosc.Message) (bool, error) {
	if len(msg.Arguments) == 0 {
		return false, fmt.Errorf("%s: missing argument", msg.Address)
	}
	switch v := msg.Arguments[len(msg.Arguments)-1].(type) {
	case bool:
		return v, nil
	case int32:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float32:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		switch v {
		case "1", "true", "on":
			return true, nil
		case "0", "false", "off":
			return false, nil
		}
		return false, fmt.Errorf("%s: unable to interpret %q as bool", msg.Address, v)
	default:
		return false, fmt.Errorf("%s: unsupported argument type %T", msg.Address, v)
	}
}
