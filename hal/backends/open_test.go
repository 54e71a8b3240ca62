package backends

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flokli/mute-agent/config"
	"github.com/flokli/mute-agent/hal/fake"
)

func TestOpenFake(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: usb-mic
devices:
  - uid: usb-mic
    name: USB-Mic
    channels: {input: 1}
    mute:
      - {scope: input, element: 0, settable: true}
`), 0o600))

	b, err := Open(config.BackendConfig{Name: "fake", Fixture: path})
	require.NoError(t, err)
	require.IsType(t, &fake.Backend{}, b)

	id, ok, err := b.DefaultInputDevice()
	require.NoError(t, err)
	require.True(t, ok)
	uid, err := b.DeviceUID(id)
	require.NoError(t, err)
	require.Equal(t, "usb-mic", uid)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(config.BackendConfig{Name: "fake", Fixture: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	_, err = Open(config.BackendConfig{Name: "alsa"})
	require.ErrorContains(t, err, "unknown backend")
}
