// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// Topic is the MQTT topic for doorbell activity reports.
const Topic = "home/doorbell/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/doorbell/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a doorbell activity report to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(r event.Report) error

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
	Doorbell DoorbellPayload `json:"doorbell"`
}

// DoorbellPayload contains the report details.
type DoorbellPayload struct {
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Event     string       `json:"event"`
	Outcome   string       `json:"outcome,omitempty"`
	Status    string       `json:"status,omitempty"`
	Gesture   string       `json:"gesture,omitempty"`
	Pin       int          `json:"pin,omitempty"`
	State     StatePayload `json:"state"`
}

// StatePayload is the controller state at the time of the report.
type StatePayload struct {
	Armed    bool `json:"armed"`
	Sending  bool `json:"sending"`
	Internet bool `json:"internet"`
}

// FormatPayload creates the JSON payload for a report. id identifies the
// message so consumers can drop duplicates after a buffered replay.
func FormatPayload(r event.Report, id string) ([]byte, error) {
	p := DoorbellPayload{
		ID:        id,
		Timestamp: r.Time.UTC().Format(time.RFC3339),
		Event:     string(r.Activity),
		State: StatePayload{
			Armed:    r.State.InferenceArmed,
			Sending:  r.State.MessageSending,
			Internet: r.State.InternetConnected,
		},
	}
	switch r.Activity {
	case event.ActivityArmed, event.ActivityDisarmed, event.ActivityDetection, event.ActivityNotify:
		if r.Outcome != event.IpcNull {
			p.Outcome = r.Outcome.String()
		}
	case event.ActivityDelivery:
		p.Status = r.Status.String()
	case event.ActivityButton:
		p.Gesture = r.Gesture.String()
		p.Pin = r.Pin
	}
	return json.Marshal(Payload{Doorbell: p})
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

// WillPayload is the retained last-will message published by the broker
// when the connection drops.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE"}})
	return data
}

// ReportObserver publishes every report it observes and logs failures.
type ReportObserver struct {
	Publisher Publisher
	Log       *slog.Logger
}

// Observe publishes r.
func (o ReportObserver) Observe(r event.Report) {
	if err := o.Publisher.Publish(r); err != nil {
		// Don't crash on publish failure
		o.Log.Warn("publish report", "event", r.Activity, "error", err)
	}
}
