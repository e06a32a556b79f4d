package gpio

import (
	"errors"
	"sync"
)

// FakeInput is a test double for an edge-reporting line.
type FakeInput struct {
	mu      sync.Mutex
	pin     int
	level   int
	enabled bool
	handler EdgeHandler

	// ReadError, if set, will be returned by Read()
	ReadError error

	// EnableError and DisableError, if set, are returned by the
	// interrupt toggles after the state change has been applied.
	EnableError  error
	DisableError error

	// Enables and Disables count interrupt toggles.
	Enables  int
	Disables int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeInput creates a FakeInput at the given idle level with reporting enabled.
func NewFakeInput(pin, level int, handler EdgeHandler) *FakeInput {
	return &FakeInput{pin: pin, level: level, enabled: true, handler: handler}
}

// SetHandler replaces the edge handler.
func (f *FakeInput) SetHandler(h EdgeHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// Pin returns the configured pin.
func (f *FakeInput) Pin() int {
	return f.pin
}

// Read returns the current level.
func (f *FakeInput) Read() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.level, nil
}

// SetLevel changes the level without reporting an edge.
func (f *FakeInput) SetLevel(level int) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

// Edge changes the level and reports the edge if reporting is enabled.
// It returns whether the handler was called.
func (f *FakeInput) Edge(level int, ms uint32) bool {
	f.mu.Lock()
	f.level = level
	h, enabled := f.handler, f.enabled
	f.mu.Unlock()
	if !enabled || h == nil {
		return false
	}
	h(f.pin, level, ms)
	return true
}

// Enabled reports whether edges are being reported.
func (f *FakeInput) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// EnableInterrupt resumes edge reporting.
func (f *FakeInput) EnableInterrupt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = true
	f.Enables++
	return f.EnableError
}

// DisableInterrupt suspends edge reporting.
func (f *FakeInput) DisableInterrupt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = false
	f.Disables++
	return f.DisableError
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return errors.New("already closed")
	}
	f.Closed = true
	return nil
}
