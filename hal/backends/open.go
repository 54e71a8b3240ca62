// Package backends opens the hal.Backend named in the configuration.
package backends

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/config"
	"github.com/flokli/mute-agent/hal"
	"github.com/flokli/mute-agent/hal/fake"
	"github.com/flokli/mute-agent/hal/pulse"
)

// Open returns the configured backend. If the result implements hal.Closer,
// the caller closes it.
func Open(cfg config.BackendConfig) (hal.Backend, error) {
	log.WithField("backend", cfg.Name).Debug("opening audio backend")

	switch cfg.Name {
	case "fake":
		b, err := fake.LoadFile(cfg.Fixture)
		if err != nil {
			return nil, fmt.Errorf("unable to load fixture %s: %w", cfg.Fixture, err)
		}
		return b, nil
	case "pulse":
		return pulse.New(cfg.PulseServer)
	case "coreaudio":
		return openCoreAudio()
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Name)
	}
}
