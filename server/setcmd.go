package server

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// SetCmd is the (sparse) payload accepted on the /set topic. Preference
// fields are applied first, then Muted, then Toggle.
type SetCmd struct {
	Toggle     *bool   `json:"toggle"`
	Muted      *bool   `json:"muted"`
	MuteAll    *bool   `json:"mute_all"`
	LockVolume *bool   `json:"lock_volume"`
	Device     *string `json:"device"`
}

// decode the mqtt set command and apply it.
func (s *Server) handleSetCmd(payload []byte) error {
	var cmd *SetCmd
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("failed to parse set payload: %w", err)
	}
	if cmd == nil {
		return fmt.Errorf("empty set payload")
	}

	prefs := s.ctrl.Preferences()
	if cmd.MuteAll != nil {
		prefs.MuteAll = *cmd.MuteAll
	}
	if cmd.LockVolume != nil {
		prefs.LockVolume = *cmd.LockVolume
	}
	if cmd.Device != nil {
		prefs.SelectedUID = *cmd.Device
	}
	s.ctrl.SetPreferences(prefs)

	// Dedup a mute request that is already satisfied.
	if cmd.Muted != nil {
		current, err := s.ctrl.State()
		if err == nil && current.IsMuted() == *cmd.Muted {
			log.WithField("muted", *cmd.Muted).Debug("already in requested state")
			cmd.Muted = nil
		}
	}

	if cmd.Muted != nil {
		if _, err := s.ctrl.SetMuted(*cmd.Muted); err != nil {
			return fmt.Errorf("failed to set mute: %w", err)
		}
	}
	if cmd.Toggle != nil && *cmd.Toggle {
		if _, err := s.ctrl.Toggle(); err != nil {
			return fmt.Errorf("failed to toggle: %w", err)
		}
	}
	return nil
}
