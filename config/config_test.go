package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flokli/mute-agent/controller"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
backend:
  name: fake
  fixture: devices.yaml
preferences:
  mute_all: true
  lock_volume: true
  selected_uid: usb-mic
poll:
  state_interval: 2s
mqtt:
  broker: tcp://broker:1883
  topic_prefix: office
osc:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, "fake", cfg.Backend.Name)
	require.Equal(t, controller.Preferences{MuteAll: true, LockVolume: true, SelectedUID: "usb-mic"}, cfg.Preferences)
	require.Equal(t, 2*time.Second, cfg.Poll.StateInterval)
	require.Equal(t, 500*time.Millisecond, cfg.Poll.VolumeLockInterval)
	require.True(t, cfg.MQTT.Enabled)
	require.Equal(t, "office", cfg.MQTT.TopicPrefix)
	require.True(t, cfg.OSC.Enabled)
	require.Equal(t, "127.0.0.1:9000", cfg.OSC.Listen)
	require.False(t, cfg.HTTP.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "backend:\n  name: pulse\n")
	t.Setenv("MUTEAGENT_MQTT_BROKER", "tcp://elsewhere:1883")
	t.Setenv("MUTEAGENT_SELECTED_UID", "weird-dac")
	t.Setenv("MUTEAGENT_LOG_LEVEL", "trace")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "tcp://elsewhere:1883", cfg.MQTT.Broker)
	require.Equal(t, "weird-dac", cfg.Preferences.SelectedUID)
	require.Equal(t, "trace", cfg.Logging.Level)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"
	cfg.Backend.Name = "fake"
	cfg.Poll.StateInterval = 0
	cfg.MQTT.TopicPrefix = "a/#"
	cfg.Language = "!!"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"logging.level",
		"logging.format",
		"backend.fixture",
		"poll.state_interval",
		"mqtt.topic_prefix",
		"language",
	} {
		require.Contains(t, err.Error(), want)
	}

	require.NoError(t, Default().Validate())
}
