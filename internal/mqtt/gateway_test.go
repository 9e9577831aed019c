package mqtt

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func newTestGateway() *Gateway {
	// No client: inbound handling never touches the broker connection
	return NewGateway(nil, zap.NewNop())
}

func TestRelayCommandTopic(t *testing.T) {
	topic := relayCommandTopic("ESP32-AABBCCDD")

	if topic != "dev/ESP32-AABBCCDD/relay/commands" {
		t.Errorf("Unexpected relay command topic: %s", topic)
	}
}

func TestThresholdAlertTopic(t *testing.T) {
	topic := thresholdAlertTopic("ESP32-AABBCCDD")

	if topic != "dev/ESP32-AABBCCDD/threshold/alert" {
		t.Errorf("Unexpected threshold alert topic: %s", topic)
	}
}

func TestClientIDFromTopic(t *testing.T) {
	clientID, ok := clientIDFromTopic("dev/ESP32-AABBCCDD/pzem/energy")
	if !ok {
		t.Fatal("Expected client id to be extracted")
	}

	if clientID != "ESP32-AABBCCDD" {
		t.Errorf("Expected 'ESP32-AABBCCDD', got '%s'", clientID)
	}
}

func TestClientIDFromTopic_Malformed(t *testing.T) {
	if _, ok := clientIDFromTopic("dev"); ok {
		t.Error("Expected extraction to fail for a single-segment topic")
	}

	if _, ok := clientIDFromTopic("dev//pzem/energy"); ok {
		t.Error("Expected extraction to fail for an empty client id segment")
	}
}

func TestHandleEnergyMessage_ValidPayload(t *testing.T) {
	g := newTestGateway()

	var gotClientID string
	var gotEnergy float64
	calls := 0
	g.onReading = func(clientID string, energyKWh float64) {
		gotClientID = clientID
		gotEnergy = energyKWh
		calls++
	}

	g.handleEnergyMessage("dev/ESP32-AABBCCDD/pzem/energy", []byte("12.345"))

	if calls != 1 {
		t.Fatalf("Expected exactly one handler invocation, got %d", calls)
	}

	if gotClientID != "ESP32-AABBCCDD" {
		t.Errorf("Expected client id 'ESP32-AABBCCDD', got '%s'", gotClientID)
	}

	if gotEnergy != 12.345 {
		t.Errorf("Expected 12.345 kWh, got %f", gotEnergy)
	}
}

func TestHandleEnergyMessage_TrimsWhitespace(t *testing.T) {
	g := newTestGateway()

	var gotEnergy float64
	g.onReading = func(_ string, energyKWh float64) {
		gotEnergy = energyKWh
	}

	g.handleEnergyMessage("dev/ESP32-AABBCCDD/pzem/energy", []byte(" 7.5\n"))

	if gotEnergy != 7.5 {
		t.Errorf("Expected 7.5 kWh, got %f", gotEnergy)
	}
}

func TestHandleEnergyMessage_MalformedPayloadDropped(t *testing.T) {
	g := newTestGateway()

	calls := 0
	g.onReading = func(string, float64) {
		calls++
	}

	g.handleEnergyMessage("dev/ESP32-AABBCCDD/pzem/energy", []byte("not-a-number"))
	g.handleEnergyMessage("dev/ESP32-AABBCCDD/pzem/energy", []byte(""))

	if calls != 0 {
		t.Errorf("Expected malformed payloads to be dropped, handler ran %d times", calls)
	}
}

func TestHandleEnergyMessage_NoHandlerRegistered(t *testing.T) {
	g := newTestGateway()

	// Must not panic before Subscribe wires a handler
	g.handleEnergyMessage("dev/ESP32-AABBCCDD/pzem/energy", []byte("1.0"))
}

func TestThresholdAlert_JSONShape(t *testing.T) {
	body, err := json.Marshal(ThresholdAlert{
		ConsumptionKWh: 1.234,
		LimitKWh:       1.0,
		ExceededAt:     "2025-12-31T14:35:12Z",
	})
	if err != nil {
		t.Fatalf("Failed to marshal alert: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal alert: %v", err)
	}

	for _, field := range []string{"consumption_kwh", "limit_kwh", "exceeded_at"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("Expected alert payload to contain field '%s'", field)
		}
	}
}
