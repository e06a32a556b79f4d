package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Armed         bool         `json:"armed"`
	Sending       bool         `json:"sending"`
	Internet      bool         `json:"internet"`
	IdleSeconds   uint32       `json:"idle_seconds"`
	LastNotified  string       `json:"last_notified"`
	LastActivity  string       `json:"last_activity,omitempty"`
	LastReport    string       `json:"last_report,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Strangers         int `json:"strangers"`
	Tenants           int `json:"tenants"`
	NotificationsSent int `json:"notifications_sent"`
	NotificationsFail int `json:"notifications_failed"`
	Clicks            int `json:"clicks"`
	DoubleClicks      int `json:"double_clicks"`
	LongPresses       int `json:"long_presses"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64  `json:"poll_ms"`
	ScoreThreshold int    `json:"score_threshold"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	NPUPort        string `json:"npu_port"`
	NotifyHost     string `json:"notify_host"`
	Broker         string `json:"broker"`
	HTTPPort       string `json:"http_port"`
	WSBroker       string `json:"ws_broker,omitempty"`
}

// LastNotifiedLabel is the display form of the last notified outcome.
func LastNotifiedLabel(snap Snapshot) string {
	if snap.State.LastNotifiedOutcome == event.IpcNull {
		return "NONE"
	}
	return snap.State.LastNotifiedOutcome.String()
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Armed:         snap.State.InferenceArmed,
		Sending:       snap.State.MessageSending,
		Internet:      snap.State.InternetConnected,
		IdleSeconds:   snap.State.IdleSeconds,
		LastNotified:  LastNotifiedLabel(snap),
		LastActivity:  string(snap.LastActivity),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Strangers:         snap.Counts.Strangers,
			Tenants:           snap.Counts.Tenants,
			NotificationsSent: snap.Counts.NotificationsSent,
			NotificationsFail: snap.Counts.NotificationsFail,
			Clicks:            snap.Counts.Clicks,
			DoubleClicks:      snap.Counts.DoubleClicks,
			LongPresses:       snap.Counts.LongPresses,
		},
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			ScoreThreshold: snap.Config.ScoreThreshold,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			NPUPort:        snap.Config.NPUPort,
			NotifyHost:     snap.Config.NotifyHost,
			Broker:         snap.Config.Broker,
			HTTPPort:       snap.Config.HTTPPort,
			WSBroker:       snap.Config.WSBroker,
		},
	}
	if !snap.LastReport.IsZero() {
		inner.LastReport = snap.LastReport.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
