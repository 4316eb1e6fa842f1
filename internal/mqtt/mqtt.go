// Package mqtt provides the messaging collaborator with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/cafeteira/internal/logic"
)

// DefaultPrefix is the topic prefix for every device topic.
const DefaultPrefix = "cafeteira"

// Topics names every topic the device uses.
type Topics struct {
	Heating  string // heating-control, inbound commands and outbound echo
	Schedule string // scheduling-control, inbound commands
	Sensor   string // telemetry, outbound
	System   string // lifecycle events, outbound
}

// NewTopics derives the device topics from prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		Heating:  prefix + "/aquecimento",
		Schedule: prefix + "/agendamento",
		Sensor:   prefix + "/sensor",
		System:   prefix + "/system",
	}
}

// Receiver is the recipient of inbound messages.
type Receiver interface {
	Receive(topic string, payload []byte)
}

// ReceiverFunc adapts a function to a Receiver.
type ReceiverFunc func(topic string, payload []byte)

// Receive calls f.
func (f ReceiverFunc) Receive(topic string, payload []byte) {
	f(topic, payload)
}

// Publisher publishes messages to the broker.
type Publisher interface {
	// Publish sends payload on topic.
	// Returns error if publishing fails (should not crash the process).
	Publish(topic string, payload []byte, retained bool) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Client is the full messaging collaborator.
type Client interface {
	Publisher
	ConnectionStatus

	// Start connects to the broker and blocks until the connection is up
	// or ctx ends. Calling Start on a client that is already connected
	// returns nil immediately.
	Start(ctx context.Context) error

	// Subscribe registers r for topic. Registrations survive reconnects.
	Subscribe(topic string, r Receiver) error

	// Close disconnects from the broker.
	Close() error
}

// DefaultClientID returns a client id unique to this process.
func DefaultClientID() string {
	return "cafeteira-" + uuid.New().String()[:8]
}

// TelemetryPayload is the JSON body published on the sensor topic.
type TelemetryPayload struct {
	Temp int `json:"temp"`
	Umi  int `json:"umi"`
}

// FormatTelemetry creates the JSON payload for a sensor reading.
func FormatTelemetry(r logic.Reading) ([]byte, error) {
	return json.Marshal(TelemetryPayload{Temp: r.Temperature, Umi: r.Humidity})
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// PublishSystem formats and publishes a system event on topic.
func PublishSystem(p Publisher, topic string, event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.Publish(topic, payload, event.Retained)
}
