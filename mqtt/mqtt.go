package mqtt

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	timeout = 10 * time.Second
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: operation timed out")

// Options configures Connect.
type Options struct {
	ServerURL string
	ClientID  string
	Username  string
	Password  string

	// WillTopic, if set, gets WillPayload published by the broker once the
	// connection is lost.
	WillTopic   string
	WillPayload string

	// OnConnect is called after every (re)connect.
	OnConnect func(mqtt.Client)
}

// ClientID returns a random client id with the given prefix.
func ClientID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func Connect(o Options) (mqtt.Client, error) {
	if o.ClientID == "" {
		o.ClientID = ClientID("mute-agent")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(o.ServerURL).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("lost connection to mqtt")
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	if o.WillTopic != "" {
		opts.SetWill(o.WillTopic, o.WillPayload, 0, true)
	}
	if o.OnConnect != nil {
		opts.SetOnConnectHandler(o.OnConnect)
	}
	client := mqtt.NewClient(opts)

	log.WithFields(log.Fields{
		"server":   o.ServerURL,
		"clientID": o.ClientID,
	}).Debug("connecting to mqtt")

	token := client.Connect()
	completed := token.WaitTimeout(timeout)
	if !completed {
		return nil, fmt.Errorf("connecting to mqtt: %w", ErrTimeout)
	} else {
		return client, token.Error()
	}
}

// Publishes a given value to the the broker at the given topic.
// Byte slices are sent as is, other values as their string representation.
func Publish(mqttClient mqtt.Client, topic string, qos byte, retained bool, value interface{}) error {
	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	default:
		payload = []byte(fmt.Sprintf("%v", value))
	}

	l := log.WithFields(log.Fields{
		"topic":    topic,
		"qos":      qos,
		"retained": retained,
		"payload":  string(payload),
	})

	token := mqttClient.Publish(topic, qos, retained, payload)
	completed := token.WaitTimeout(timeout)

	if !completed {
		return fmt.Errorf("publishing to mqtt: %w", ErrTimeout)
	} else {
		if token.Error() == nil {
			l.Trace("published message")
		}
		return token.Error()
	}
}

func Subscribe(mqttClient mqtt.Client, topic string, qos byte, cb mqtt.MessageHandler) error {
	l := log.WithFields(log.Fields{
		"topic": topic,
		"qos":   qos,
	})

	token := mqttClient.Subscribe(topic, qos, cb)
	completed := token.WaitTimeout(timeout)
	if !completed {
		return fmt.Errorf("subscribing to mqtt: %w", ErrTimeout)
	} else {
		if token.Error() == nil {
			l.Debug("subscribed")
		}
		return token.Error()
	}
}

// Unsubscribe drops the subscriptions for topics, so no further messages are
// delivered while the client shuts down.
func Unsubscribe(mqttClient mqtt.Client, topics ...string) error {
	token := mqttClient.Unsubscribe(topics...)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("unsubscribing from %v: %w", topics, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribing from %v: %w", topics, err)
	}
	log.WithField("topics", topics).Debug("unsubscribed")
	return nil
}
