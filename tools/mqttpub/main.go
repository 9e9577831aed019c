package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Manual exercise tool: publishes synthetic cumulative energy readings so
// the daemon's ingestion and threshold sweep can be driven end to end
// against a live broker.
func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	clientID := flag.String("client-id", "ESP32-TEST0001", "device client id to impersonate")
	count := flag.Int("count", 10, "number of readings to send")
	start := flag.Float64("start", 10.0, "starting counter value in kWh")
	step := flag.Float64("step", 0.05, "counter increment per reading in kWh")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between readings")
	flag.Parse()

	opts := paho.NewClientOptions().
		AddBroker(*broker).
		SetClientID("mqttpub-tool")

	client := paho.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer client.Disconnect(250)

	topic := fmt.Sprintf("dev/%s/pzem/energy", *clientID)
	value := *start

	for i := 0; i < *count; i++ {
		payload := fmt.Sprintf("%.3f", value)
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("Failed to publish reading %d: %v", i, err)
			continue
		}

		log.Printf("Sent reading %d: %s -> %s", i+1, topic, payload)
		value += *step
		time.Sleep(*interval)
	}

	log.Printf("Successfully sent %d readings", *count)
}
