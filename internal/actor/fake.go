package actor

import (
	"sync"
	"time"
)

// ManualTimer is a Timer that only fires when the test calls Fire.
type ManualTimer struct {
	id      uint32
	name    string
	period  time.Duration
	fire    FireFunc
	running bool

	// Starts and Stops count calls, for assertions.
	Starts int
	Stops  int
}

// ID returns the timer id.
func (m *ManualTimer) ID() uint32 { return m.id }

// Name returns the timer name.
func (m *ManualTimer) Name() string { return m.name }

// Period returns the configured period.
func (m *ManualTimer) Period() time.Duration { return m.period }

// Start arms the timer.
func (m *ManualTimer) Start() {
	m.Starts++
	m.running = true
}

// Stop disarms the timer.
func (m *ManualTimer) Stop() {
	m.Stops++
	m.running = false
}

// Running reports whether the timer is armed.
func (m *ManualTimer) Running() bool { return m.running }

// Fire invokes the callback if the timer is armed and reports whether it did.
func (m *ManualTimer) Fire() bool {
	if !m.running {
		return false
	}
	m.fire(m.id)
	return true
}

// ManualTimers is a TimerFactory that records every timer it creates.
type ManualTimers struct {
	mu     sync.Mutex
	timers map[string]*ManualTimer
}

// NewManualTimers creates an empty registry.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{timers: make(map[string]*ManualTimer)}
}

// New creates a ManualTimer. Pass it where a TimerFactory is expected.
func (f *ManualTimers) New(name string, period time.Duration, fire FireFunc) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &ManualTimer{id: allocTimerID(), name: name, period: period, fire: fire}
	f.timers[name] = t
	return t
}

// Get returns the timer created with name, or nil.
func (f *ManualTimers) Get(name string) *ManualTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timers[name]
}
