// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/status"
)

// Topic is the MQTT topic for actuation events.
const Topic = "energy/outlet/spot/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/outlet/spot/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an actuation event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

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
	Outlet OutletPayload `json:"outlet"`
}

// OutletPayload describes one applied actuation.
type OutletPayload struct {
	Timestamp string  `json:"timestamp"`
	Mode      string  `json:"mode"`
	Price     *string `json:"price"`
	State     string  `json:"state"`
	Indicator string  `json:"indicator"`
}

// FormatPayload creates the JSON payload for an actuation event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Outlet: OutletPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Mode:      event.Situation.Mode().String(),
			Price:     status.PriceString(event.Situation),
			State:     status.OnOff(event.Actuation.Outlet),
			Indicator: event.Actuation.Color.Name,
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
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
// A zero Timestamp is omitted.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// NoopPublisher discards everything. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(logic.Event) error       { return nil }
func (NoopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NoopPublisher) Close() error                    { return nil }
func (NoopPublisher) IsConnected() bool               { return false }
