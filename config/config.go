// Package config loads the agent configuration from YAML, applies
// environment overrides and validates the result.
//
//	logging:
//	  level: info        # trace, debug, info, warn, error
//	  format: text       # text, json
//	backend:
//	  name: coreaudio    # coreaudio, pulse, fake
//	  fixture: ""        # YAML fixture for the fake backend
//	  pulse_server: ""   # PulseAudio server address, empty for the default
//	language: und        # BCP 47 tag used to sort device names
//	preferences:
//	  mute_all: false
//	  lock_volume: false
//	  selected_uid: ""
//	poll:
//	  state_interval: 1s
//	  volume_lock_interval: 500ms
//	mqtt:
//	  enabled: true
//	  broker: tcp://localhost:1883
//	  topic_prefix: mute-agent
//	osc:
//	  enabled: false
//	  listen: 127.0.0.1:9000
//	http:
//	  enabled: false
//	  listen: 127.0.0.1:8765
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/flokli/mute-agent/controller"
)

// DefaultPath is used when no -config flag is given.
const DefaultPath = "/etc/mute-agent/config.yaml"

type Config struct {
	Logging     LoggingConfig          `yaml:"logging"`
	Backend     BackendConfig          `yaml:"backend"`
	Language    string                 `yaml:"language"`
	Preferences controller.Preferences `yaml:"preferences"`
	Poll        PollConfig             `yaml:"poll"`
	MQTT        MQTTConfig             `yaml:"mqtt"`
	OSC         OSCConfig              `yaml:"osc"`
	HTTP        HTTPConfig             `yaml:"http"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BackendConfig struct {
	Name        string `yaml:"name"`
	Fixture     string `yaml:"fixture"`
	PulseServer string `yaml:"pulse_server"`
}

type PollConfig struct {
	StateInterval      time.Duration `yaml:"state_interval"`
	VolumeLockInterval time.Duration `yaml:"volume_lock_interval"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type OSCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads the configuration at path. A missing file at DefaultPath yields
// the defaults; any other missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		log.WithField("path", path).Debug("no config file, using defaults")
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Backend: BackendConfig{
			Name: defaultBackend,
		},
		Language: "und",
		Poll: PollConfig{
			StateInterval:      1 * time.Second,
			VolumeLockInterval: 500 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Enabled:     true,
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "mute-agent",
		},
		OSC: OSCConfig{
			Listen: "127.0.0.1:9000",
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:8765",
		},
	}
}

// applyEnvOverrides applies MUTEAGENT_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MUTEAGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MUTEAGENT_BACKEND"); v != "" {
		cfg.Backend.Name = v
	}
	if v := os.Getenv("MUTEAGENT_SELECTED_UID"); v != "" {
		cfg.Preferences.SelectedUID = v
	}
	if v := os.Getenv("MUTEAGENT_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("MUTEAGENT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MUTEAGENT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level: %v", err))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	switch c.Backend.Name {
	case "coreaudio", "pulse":
	case "fake":
		if c.Backend.Fixture == "" {
			errs = append(errs, "backend.fixture is required for the fake backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("backend.name must be coreaudio, pulse or fake, got %q", c.Backend.Name))
	}

	if _, err := language.Parse(c.Language); err != nil {
		errs = append(errs, fmt.Sprintf("language: %v", err))
	}

	if c.Poll.StateInterval <= 0 {
		errs = append(errs, "poll.state_interval must be positive")
	}
	if c.Poll.VolumeLockInterval <= 0 {
		errs = append(errs, "poll.volume_lock_interval must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			errs = append(errs, "mqtt.topic_prefix must be set and must not contain wildcards")
		}
	}
	if c.OSC.Enabled && c.OSC.Listen == "" {
		errs = append(errs, "osc.listen is required")
	}
	if c.HTTP.Enabled && c.HTTP.Listen == "" {
		errs = append(errs, "http.listen is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// LanguageTag returns the parsed Language. Call after Validate.
func (c *Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Und
	}
	return tag
}
