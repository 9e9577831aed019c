package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	qosAtLeastOnce    = 1
	disconnectQuiesce = 250 * time.Millisecond
)

// Client wraps the broker connection
type Client struct {
	client paho.Client
	host   string
	port   int
	logger *zap.Logger
}

// NewClient creates a new broker client. The connection is established
// by Connect, not here, so construction never blocks.
func NewClient(host string, port int, clientID string, logger *zap.Logger) *Client {
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", host, port)).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	return &Client{
		client: paho.NewClient(opts),
		host:   host,
		port:   port,
		logger: logger,
	}
}

// Connect connects to the broker
func (c *Client) Connect() error {
	c.logger.Info("connecting to MQTT broker",
		zap.String("host", c.host),
		zap.Int("port", c.port),
	)

	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("[MQTT CONNECTION FAILED] cannot connect to broker. Please check: 1) Broker is running, 2) MQTT_HOST and MQTT_PORT are correct. Error: %w", err)
	}

	c.logger.Info("connected to MQTT broker")
	return nil
}

// Disconnect disconnects from the broker, letting in-flight work quiesce
func (c *Client) Disconnect() {
	c.client.Disconnect(uint(disconnectQuiesce.Milliseconds()))
	c.logger.Info("disconnected from MQTT broker")
}

// Subscribe registers a handler for a topic pattern at QoS 1
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	token := c.client.Subscribe(topic, qosAtLeastOnce, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	c.logger.Info("subscribed", zap.String("topic", topic))
	return nil
}

// Publish publishes a payload at QoS 1
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, qosAtLeastOnce, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
