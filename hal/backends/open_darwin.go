package backends

import (
	"github.com/flokli/mute-agent/hal"
	"github.com/flokli/mute-agent/hal/coreaudio"
)

func openCoreAudio() (hal.Backend, error) {
	return coreaudio.New(), nil
}
