package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Relay command tokens understood by the device firmware
const (
	CommandRelayOn  = "RELAY_ON"
	CommandRelayOff = "RELAY_OFF"
)

const (
	topicEnergyReadings = "dev/+/pzem/energy"

	// Reserved for remote configuration commands; currently unused
	topicConfigScheduleAdd  = "scheduler/+/schedule/add"
	topicConfigThresholdSet = "scheduler/+/threshold/set"
)

func relayCommandTopic(clientID string) string {
	return fmt.Sprintf("dev/%s/relay/commands", clientID)
}

func thresholdAlertTopic(clientID string) string {
	return fmt.Sprintf("dev/%s/threshold/alert", clientID)
}

// clientIDFromTopic extracts the device id from the second topic segment
func clientIDFromTopic(topic string) (string, bool) {
	segments := strings.Split(topic, "/")
	if len(segments) < 2 || segments[1] == "" {
		return "", false
	}
	return segments[1], true
}

// ReadingHandler receives each successfully parsed energy reading
type ReadingHandler func(clientID string, energyKWh float64)

// ThresholdAlert is the retained payload published when a device exceeds
// its energy budget
type ThresholdAlert struct {
	ConsumptionKWh float64 `json:"consumption_kwh"`
	LimitKWh       float64 `json:"limit_kwh"`
	ExceededAt     string  `json:"exceeded_at"`
}

// Gateway translates between broker messages and typed events/commands
type Gateway struct {
	client    *Client
	logger    *zap.Logger
	onReading ReadingHandler
}

// NewGateway creates a new transport gateway
func NewGateway(client *Client, logger *zap.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger,
	}
}

// Subscribe wires the reading handler and subscribes to the device and
// reserved configuration topics. Called once at composition time.
func (g *Gateway) Subscribe(handler ReadingHandler) error {
	g.onReading = handler

	if err := g.client.Subscribe(topicEnergyReadings, g.energyMessageHandler); err != nil {
		return err
	}

	for _, topic := range []string{topicConfigScheduleAdd, topicConfigThresholdSet} {
		if err := g.client.Subscribe(topic, g.configMessageHandler); err != nil {
			return err
		}
	}

	return nil
}

func (g *Gateway) energyMessageHandler(_ paho.Client, msg paho.Message) {
	g.handleEnergyMessage(msg.Topic(), msg.Payload())
}

// handleEnergyMessage parses an inbound telemetry message. A malformed
// message is logged and dropped; it must never take down ingestion.
func (g *Gateway) handleEnergyMessage(topic string, payload []byte) {
	clientID, ok := clientIDFromTopic(topic)
	if !ok {
		g.logger.Warn("energy reading on unexpected topic", zap.String("topic", topic))
		return
	}

	energyKWh, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		g.logger.Error("invalid energy value, dropping message",
			zap.String("client_id", clientID),
			zap.String("payload", string(payload)),
			zap.Error(err),
		)
		return
	}

	g.logger.Debug("energy reading received",
		zap.String("client_id", clientID),
		zap.Float64("energy_kwh", energyKWh),
	)

	if g.onReading != nil {
		g.onReading(clientID, energyKWh)
	}
}

func (g *Gateway) configMessageHandler(_ paho.Client, msg paho.Message) {
	g.logger.Debug("configuration message ignored",
		zap.String("topic", msg.Topic()),
		zap.Int("body_size", len(msg.Payload())),
	)
}

// PublishRelayCommand publishes RELAY_ON or RELAY_OFF for a device
func (g *Gateway) PublishRelayCommand(ctx context.Context, clientID string, command string) error {
	topic := relayCommandTopic(clientID)
	if err := g.client.Publish(topic, []byte(command), false); err != nil {
		return err
	}

	g.logger.Info("published relay command",
		zap.String("topic", topic),
		zap.String("command", command),
	)
	return nil
}

// PublishThresholdAlert publishes a retained alert so a late-joining
// observer immediately sees the last alert state
func (g *Gateway) PublishThresholdAlert(ctx context.Context, clientID string, consumptionKWh, limitKWh float64) error {
	body, err := json.Marshal(ThresholdAlert{
		ConsumptionKWh: math.Round(consumptionKWh*1000) / 1000,
		LimitKWh:       limitKWh,
		ExceededAt:     time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := g.client.Publish(thresholdAlertTopic(clientID), body, true); err != nil {
		return err
	}

	g.logger.Info("published threshold alert", zap.String("client_id", clientID))
	return nil
}
