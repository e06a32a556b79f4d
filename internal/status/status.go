// Package status provides a thread-safe status tracker for the doorbell daemon.
// It is fed by the alert controller's reports and read by HTTP handlers
// and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs         int64
	ScoreThreshold int
	HeartbeatMs    int64
	NPUPort        string
	NotifyHost     string
	Broker         string
	HTTPPort       string
	WSBroker       string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Counts tallies reports by outcome since startup.
type Counts struct {
	Strangers         int
	Tenants           int
	NotificationsSent int
	NotificationsFail int
	Clicks            int
	DoubleClicks      int
	LongPresses       int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         event.ControllerState
	LastActivity  event.Activity
	LastReport    time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Observe records a controller report. It satisfies orchestrator.Observer.
func (t *Tracker) Observe(r event.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.State = r.State
	t.snap.LastActivity = r.Activity
	t.snap.LastReport = r.Time

	c := &t.snap.Counts
	switch r.Activity {
	case event.ActivityDetection:
		switch r.Outcome {
		case event.IpcStrangerDetected:
			c.Strangers++
		case event.IpcTenantDetected:
			c.Tenants++
		}
	case event.ActivityDelivery:
		switch r.Status {
		case event.StatusSentSuccess:
			c.NotificationsSent++
		case event.StatusSentFail:
			c.NotificationsFail++
		}
	case event.ActivityButton:
		switch r.Gesture {
		case event.SysButtonClick:
			c.Clicks++
		case event.SysButtonDoubleClick:
			c.DoubleClicks++
		case event.SysButtonLongPress:
			c.LongPresses++
		}
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
