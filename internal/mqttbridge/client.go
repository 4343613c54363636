package mqttbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned when the broker link is down.
var ErrNotConnected = errors.New("mqtt: not connected")

// MessageHandler receives a message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client is the broker surface the bridge needs.
type Client interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler MessageHandler) error
	Disconnect()
}

// Config holds the broker connection settings.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

type pahoClient struct {
	client pahomqtt.Client
	qos    byte
	logger *logrus.Logger

	mu   sync.Mutex
	subs map[string]MessageHandler
}

// Dial connects to the broker. The bridge availability topic gets an
// "offline" will so subscribers notice a crashed bridge.
func Dial(cfg Config, logger *logrus.Logger) (Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker address is required")
	}

	c := &pahoClient{
		qos:    cfg.QoS,
		logger: logger,
		subs:   make(map[string]MessageHandler),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(availabilityTopic(cfg.TopicPrefix), payloadOffline, cfg.QoS, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			logger.WithField("broker", cfg.Broker).Info("MQTT connected")
			c.restoreSubscriptions()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.WithError(err).Warn("MQTT connection lost")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %v", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return c, nil
}

func (c *pahoClient) Publish(topic string, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout after %v", topic, publishTimeout)
	}
	return token.Error()
}

func (c *pahoClient) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(topic, c.qos, wrap(handler))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timeout after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

// restoreSubscriptions re-subscribes after an automatic reconnect.
func (c *pahoClient) restoreSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, h := range c.subs {
		c.client.Subscribe(topic, c.qos, wrap(h))
	}
}

func (c *pahoClient) Disconnect() {
	c.client.Disconnect(1000)
}

func wrap(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		h(msg.Topic(), msg.Payload())
	}
}
