//go:build !darwin

package backends

import (
	"errors"

	"github.com/flokli/mute-agent/hal"
)

func openCoreAudio() (hal.Backend, error) {
	return nil, errors.New("the coreaudio backend is only available on macOS")
}
