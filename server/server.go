package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/daemon"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/config"
	"github.com/flokli/mute-agent/controller"
	"github.com/flokli/mute-agent/mqtt"
)

// emptyPayload replaces retained topics when the agent goes away.
const emptyPayload = "{}"

type Server struct {
	MachineID   string
	TopicPrefix string

	ctrl       *controller.Controller
	poll       config.PollConfig
	mqttClient pahomqtt.Client

	// kick requests an out-of-band refresh.
	kick chan struct{}

	muPublished sync.Mutex
	published   map[string][]byte
	ready       bool
}

func New(machineID string, topicPrefix string, ctrl *controller.Controller, poll config.PollConfig) *Server {
	return &Server{
		MachineID:   machineID,
		TopicPrefix: topicPrefix,
		ctrl:        ctrl,
		poll:        poll,
		kick:        make(chan struct{}, 1),
		published:   make(map[string][]byte),
	}
}

// Changed asks the server to refresh and publish state as soon as possible.
// It never blocks.
func (s *Server) Changed() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Server) Close() {
	if s.mqttClient == nil {
		return
	}
	if err := mqtt.Unsubscribe(s.mqttClient, s.topic("/set")); err != nil {
		log.WithError(err).Warn("unable to unsubscribe from set topic")
	}
	log.Debug("clearing retained topics")
	for _, suffix := range []string{"/state", "/devices", "/preferences"} {
		if err := mqtt.Publish(s.mqttClient, s.topic(suffix), 0, true, emptyPayload); err != nil {
			log.WithError(err).WithField("topic", s.topic(suffix)).Warn("unable to clear topic")
		}
	}
	log.Debug("disconnecting from mqtt")
	s.mqttClient.Disconnect(250)
}

// Run polls state and enforces the volume lock until ctx is done. mqttOpts
// may be nil to run without MQTT.
func (s *Server) Run(ctx context.Context, mqttOpts *mqtt.Options) error {
	if mqttOpts != nil {
		opts := *mqttOpts
		opts.WillTopic = s.topic("/state")
		opts.WillPayload = emptyPayload
		// (re)subscribe on every connect, the broker forgets us otherwise.
		opts.OnConnect = func(c pahomqtt.Client) {
			if err := s.subscribe(c); err != nil {
				log.WithError(err).Error("unable to subscribe to set topic")
			}
			s.forgetPublished()
			s.Changed()
		}

		mqttClient, err := mqtt.Connect(opts)
		if err != nil {
			log.Error("unable to connect to MQTT")
			return fmt.Errorf("unable to connect to mqtt: %w", err)
		}
		s.mqttClient = mqttClient
	}

	log.WithFields(log.Fields{
		"machineID":   s.MachineID,
		"topicPrefix": s.topic(""),
	}).Info("Server started")

	stateTicker := time.NewTicker(s.poll.StateInterval)
	defer stateTicker.Stop()
	lockTicker := time.NewTicker(s.poll.VolumeLockInterval)
	defer lockTicker.Stop()

	s.refresh()

	for {
		select {
		case <-stateTicker.C:
			s.refresh()
		case <-s.kick:
			s.refresh()
		case <-lockTicker.C:
			// errors are retried on the next tick
			if err := s.ctrl.EnforceVolumeLock(); err != nil {
				log.WithError(err).Debug("unable to enforce volume lock")
			}
		case <-ctx.Done():
			log.Info("server.Run() finished")
			return nil
		}
	}
}

func (s *Server) subscribe(c pahomqtt.Client) error {
	topic := s.topic("/set")
	return mqtt.Subscribe(c, topic, 0, func(c pahomqtt.Client, m pahomqtt.Message) {
		l := log.WithFields(log.Fields{
			"message_id": m.MessageID(),
			"payload":    string(m.Payload()),
			"topic":      topic,
		})
		l.Debug("received message")

		if m.Topic() != topic {
			l.Warn("discarded unrelated message")
			return
		}

		if err := s.handleSetCmd(m.Payload()); err != nil {
			l.WithError(err).Error("unable to handle setCmd")
		}
		s.Changed()
	})
}

// refresh reads the current state and publishes whatever changed.
func (s *Server) refresh() {
	state, err := s.ctrl.State()
	if err != nil {
		log.WithError(err).Debug("unable to read state")
	}
	devices, err := s.ctrl.ListDevices()
	if err != nil {
		log.WithError(err).Warn("unable to list devices")
		devices = []controller.DeviceStatus{}
	}

	if err := s.publishJSON("/state", state); err != nil {
		log.WithError(err).Warn("unable to publish state")
		return
	}
	if err := s.publishJSON("/devices", devices); err != nil {
		log.WithError(err).Warn("unable to publish devices")
		return
	}
	if err := s.publishJSON("/preferences", s.ctrl.Preferences()); err != nil {
		log.WithError(err).Warn("unable to publish preferences")
		return
	}

	s.muPublished.Lock()
	firstRefresh := !s.ready
	s.ready = true
	s.muPublished.Unlock()

	if firstRefresh {
		daemon.SdNotify(false, daemon.SdNotifyReady)
	}
	daemon.SdNotify(false, "WATCHDOG=1")
}

// publishJSON publishes v below the topic prefix if it differs from what was
// last published there.
func (s *Server) publishJSON(suffix string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("unable to marshal json: %w", err)
	}

	s.muPublished.Lock()
	defer s.muPublished.Unlock()
	if prev, ok := s.published[suffix]; ok && bytes.Equal(prev, payload) {
		return nil
	}

	if s.mqttClient != nil {
		if err := mqtt.Publish(s.mqttClient, s.topic(suffix), 0, true, payload); err != nil {
			return err
		}
	}
	s.published[suffix] = payload
	return nil
}

func (s *Server) forgetPublished() {
	s.muPublished.Lock()
	defer s.muPublished.Unlock()
	s.published = make(map[string][]byte)
}

// Published returns the last payload published below the topic prefix.
func (s *Server) Published(suffix string) []byte {
	s.muPublished.Lock()
	defer s.muPublished.Unlock()
	return s.published[suffix]
}

func (s *Server) topic(suffix string) string {
	return s.TopicPrefix + "/mic@" + s.MachineID + suffix
}
