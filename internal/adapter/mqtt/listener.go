// Package mqtt subscribes to the live device telemetry feed and writes
// decoded water-level readings to the record store.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kentwatersensors/floodwatch/internal/config"
	"github.com/kentwatersensors/floodwatch/internal/domain"
	"github.com/kentwatersensors/floodwatch/internal/observability"
)

// storeTimeout bounds each reading write so a stalled database cannot back up
// the message handler indefinitely.
const storeTimeout = 2 * time.Second

// ReadingWriter persists decoded sensor readings.
type ReadingWriter interface {
	InsertSensorReading(ctx context.Context, r domain.SensorReading) error
}

// Listener owns the MQTT connection and the per-message decode-and-persist
// path. Reconnection is handled by the underlying client; the listener only
// re-subscribes on each connect event.
type Listener struct {
	client     pahomqtt.Client
	topic      string
	cals       domain.CalibrationTable
	writer     ReadingWriter
	metrics    *observability.Metrics
	logger     *slog.Logger
	subscribed atomic.Bool
}

// NewListener builds a Listener from config. Call Start to connect.
func NewListener(cfg *config.Config, cals domain.CalibrationTable, writer ReadingWriter, metrics *observability.Metrics, logger *slog.Logger) *Listener {
	l := &Listener{
		topic:   cfg.MQTTTopic,
		cals:    cals,
		writer:  writer,
		metrics: metrics,
		logger:  logger,
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetAutoReconnect(true).
		SetOnConnectHandler(l.onConnect).
		SetConnectionLostHandler(l.onConnectionLost)

	l.client = pahomqtt.NewClient(opts)
	return l
}

// Start connects to the broker. The initial subscription happens in the
// connect handler so it is re-established after every reconnect.
func (l *Listener) Start() error {
	if token := l.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight handlers to finish.
func (l *Listener) Close() {
	l.client.Disconnect(250)
	l.subscribed.Store(false)
	l.metrics.ListenerUp.Set(0)
}

// CheckReadiness returns nil once the telemetry subscription is established.
func (l *Listener) CheckReadiness(_ context.Context) error {
	if !l.subscribed.Load() {
		return errors.New("telemetry subscription not established")
	}
	return nil
}

func (l *Listener) onConnect(client pahomqtt.Client) {
	l.logger.Info("mqtt connected", "topic", l.topic)

	if token := client.Subscribe(l.topic, 0, l.handleMessage); token.Wait() && token.Error() != nil {
		l.logger.Error("mqtt subscribe failed", "topic", l.topic, "error", token.Error())
		return
	}

	l.subscribed.Store(true)
	l.metrics.ListenerUp.Set(1)
}

func (l *Listener) onConnectionLost(_ pahomqtt.Client, err error) {
	l.subscribed.Store(false)
	l.metrics.ListenerUp.Set(0)
	l.logger.Warn("mqtt connection lost", "error", err)
}

// envelope is the TTN-style uplink wrapper published by the gateway.
type envelope struct {
	DevID      string `json:"dev_id"`
	PayloadRaw string `json:"payload_raw"`
	Metadata   struct {
		Time string `json:"time"`
	} `json:"metadata"`
}

func (l *Listener) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		l.metrics.MessagesDropped.WithLabelValues("malformed_payload").Inc()
		l.logger.Warn("telemetry envelope decode failed", "topic", msg.Topic(), "error", err)
		return
	}

	if env.DevID == "" {
		env.DevID = deviceIDFromTopic(msg.Topic())
	}

	reading, err := domain.DecodeTelemetry(l.cals, env.DevID, env.PayloadRaw, parseEventTime(env.Metadata.Time))
	switch {
	case errors.Is(err, domain.ErrUnknownDevice):
		l.metrics.MessagesDropped.WithLabelValues("unknown_device").Inc()
		l.logger.Warn("telemetry from unknown device dropped", "device", env.DevID)
		return
	case errors.Is(err, domain.ErrMalformedPayload):
		l.metrics.MessagesDropped.WithLabelValues("malformed_payload").Inc()
		l.logger.Warn("malformed telemetry payload dropped", "device", env.DevID, "error", err)
		return
	case err != nil:
		l.metrics.MessagesDropped.WithLabelValues("malformed_payload").Inc()
		l.logger.Warn("telemetry decode failed", "device", env.DevID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := l.writer.InsertSensorReading(ctx, reading); err != nil {
		l.metrics.MessagesDropped.WithLabelValues("store_error").Inc()
		l.logger.Error("failed to persist sensor reading", "device", reading.DeviceID, "error", err)
		return
	}

	l.metrics.MessagesIngested.Inc()
	l.logger.Info("ingested sensor reading",
		"device", reading.DeviceID,
		"distance_mm", reading.DistanceToSensorMM,
		"water_level_mm", reading.WaterLevelMM,
		"alert", reading.Alert,
	)
}

// deviceIDFromTopic extracts the device segment from a
// "<prefix>/devices/<id>/up" topic.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i, p := range parts {
		if p == "devices" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func parseEventTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return time.Time{}
	}
	return t
}
