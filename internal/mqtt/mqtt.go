// Package mqtt provides MQTT publishing and command intake with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/blinker/internal/control"
)

// Topic is the MQTT topic for sequence events.
const Topic = "indicator/blinker/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "indicator/blinker/system"

// TopicCommand is the MQTT topic the daemon takes requests from.
const TopicCommand = "indicator/blinker/command"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a sequence event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event control.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Sequence SequencePayload `json:"sequence"`
}

// SequencePayload contains the sequence event details.
type SequencePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Kind      string `json:"kind,omitempty"`
	Plan      string `json:"plan,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Source    string `json:"source,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for a sequence event.
func FormatPayload(event control.Event) ([]byte, error) {
	payload := Payload{
		Sequence: SequencePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:     string(event.Type),
			Kind:      event.Kind,
			Plan:      event.Plan,
			Reason:    event.Reason,
			Source:    event.Source,
			Error:     event.Detail,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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

// WillPayload is registered with the broker as the last will. The broker
// publishes it if the daemon vanishes without a clean disconnect.
func WillPayload(now time.Time) []byte {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: now,
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	return payload
}
