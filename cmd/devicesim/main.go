// Command devicesim publishes synthetic distance-sensor telemetry, standing
// in for the live gateway feed during development.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type metadata struct {
	Time string `json:"time"`
}

type uplink struct {
	DevID      string   `json:"dev_id"`
	PayloadRaw string   `json:"payload_raw"`
	Metadata   metadata `json:"metadata"`
}

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	username := flag.String("username", "", "MQTT username (application id)")
	password := flag.String("password", "", "MQTT password (access key)")
	deviceID := flag.String("device-id", "lairdc0ee400001012345", "Device identifier")
	topicPrefix := flag.String("topic-prefix", "kentwatersensors", "Topic prefix before devices/<id>/up")
	interval := flag.Duration("interval", 10*time.Second, "Interval between published readings")
	baseDistance := flag.Int("base-distance", 500, "Baseline distance-to-water in millimeters")
	jitter := flag.Int("jitter", 40, "Maximum random jitter applied to the distance")

	flag.Parse()

	clientID := fmt.Sprintf("%s-simulator-%d", *deviceID, time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	if *username != "" {
		opts = opts.SetUsername(*username).SetPassword(*password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := fmt.Sprintf("%s/devices/%s/up", *topicPrefix, *deviceID)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	publish := func() {
		distance := *baseDistance
		if *jitter > 0 {
			distance += rand.Intn(2**jitter+1) - *jitter
		}
		if distance < 0 {
			distance = 0
		}

		// Two big-endian bytes, matching the deployed sensors.
		payload := []byte{byte(distance >> 8), byte(distance)}

		msg := uplink{
			DevID:      *deviceID,
			PayloadRaw: base64.StdEncoding.EncodeToString(payload),
			Metadata:   metadata{Time: time.Now().UTC().Format(time.RFC3339Nano)},
		}

		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("failed to encode uplink: %v", err)
			return
		}

		if token := client.Publish(topic, 0, false, data); token.Wait() && token.Error() != nil {
			log.Printf("publish failed: %v", token.Error())
			return
		}
		log.Printf("published distance=%dmm to %s", distance, topic)
	}

	publish()
	for {
		select {
		case <-ctx.Done():
			client.Disconnect(250)
			log.Println("simulator stopped")
			return
		case <-ticker.C:
			publish()
		}
	}
}
