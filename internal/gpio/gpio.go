// Package gpio provides edge-triggered GPIO inputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
//
// Edge handlers run on the driver's goroutine and must only enqueue.
package gpio

// Input is a single GPIO line.
type Input interface {
	// Pin returns the BCM line offset.
	Pin() int

	// Read returns the raw level of the line (0 or 1).
	Read() (int, error)
}

// EdgeInput is an Input that reports edges through an EdgeHandler.
type EdgeInput interface {
	Input

	// EnableInterrupt resumes edge reporting.
	EnableInterrupt() error

	// DisableInterrupt suspends edge reporting. Edges that arrive while
	// disabled are lost.
	DisableInterrupt() error

	// Close releases the line.
	Close() error
}

// EdgeHandler receives an edge: the pin, the raw level after the edge, and
// a monotonic timestamp in milliseconds.
type EdgeHandler func(pin, level int, ms uint32)

// Edges selects which transitions an EdgeInput reports.
type Edges int

const (
	// RisingEdges reports low to high transitions only (PIR).
	RisingEdges Edges = iota
	// BothEdges reports every transition (buttons).
	BothEdges
)

// Bias selects the line's internal resistor.
type Bias int

const (
	PullDown Bias = iota
	PullUp
)

// Pin definitions (BCM numbering)
const (
	DefaultPinPIR    = 17 // PIR motion sensor output, active high
	DefaultPinButton = 27 // Mode button to ground, active low
)

// LineConfig describes one edge input.
type LineConfig struct {
	Pin   int
	Edges Edges
	Bias  Bias
}
