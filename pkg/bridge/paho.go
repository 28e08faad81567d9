// pkg/bridge/paho.go
package bridge

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var errTimeout = errors.New("mqtt: timed out")

// PahoPublisher publishes retained QoS 0 messages through paho.
type PahoPublisher struct {
	client mqtt.Client
}

// Dial connects to broker (e.g. "tcp://mosquitto:1883"). An empty clientID
// gets a random one.
func Dial(broker, clientID string, log logrus.FieldLogger) (*PahoPublisher, error) {
	if clientID == "" {
		clientID = "twinsync-" + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.WithField("broker", broker).Info("mqtt connected")
		})

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect %s: %w", broker, errTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	return &PahoPublisher{client: client}, nil
}

func (p *PahoPublisher) Publish(topic string, payload []byte) error {
	tok := p.client.Publish(topic, 0, true, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: %w", topic, errTimeout)
	}
	return tok.Error()
}

func (p *PahoPublisher) Close() {
	p.client.Disconnect(250)
}
