//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Chip is an open GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Close releases the chip. Lines must be closed first.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// RealInput is an edge-reporting line on real hardware.
type RealInput struct {
	line    *gpiocdev.Line
	pin     int
	edges   Edges
	bias    Bias
	enabled atomic.Bool
}

// RequestEdgeInput requests cfg.Pin as an input that reports edges to handler.
// Reporting starts enabled.
func (c *Chip) RequestEdgeInput(cfg LineConfig, handler EdgeHandler) (*RealInput, error) {
	in := &RealInput{pin: cfg.Pin, edges: cfg.Edges, bias: cfg.Bias}
	in.enabled.Store(true)

	onEvent := func(evt gpiocdev.LineEvent) {
		if !in.enabled.Load() {
			return
		}
		level := 0
		if evt.Type == gpiocdev.LineEventRisingEdge {
			level = 1
		}
		handler(evt.Offset, level, uint32(evt.Timestamp/time.Millisecond))
	}

	line, err := c.chip.RequestLine(cfg.Pin,
		gpiocdev.AsInput,
		biasOption(cfg.Bias),
		edgeOption(cfg.Edges),
		gpiocdev.WithEventHandler(onEvent))
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", cfg.Pin, err)
	}
	in.line = line
	return in, nil
}

func biasOption(b Bias) gpiocdev.LineBias {
	if b == PullUp {
		return gpiocdev.WithPullUp
	}
	return gpiocdev.WithPullDown
}

func edgeOption(e Edges) gpiocdev.LineEdge {
	if e == BothEdges {
		return gpiocdev.WithBothEdges
	}
	return gpiocdev.WithRisingEdge
}

// Pin returns the line offset.
func (r *RealInput) Pin() int {
	return r.pin
}

// Read returns the raw line level.
func (r *RealInput) Read() (int, error) {
	v, err := r.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", r.pin, err)
	}
	return v, nil
}

// EnableInterrupt turns edge detection back on.
func (r *RealInput) EnableInterrupt() error {
	r.enabled.Store(true)
	if err := r.line.Reconfigure(edgeOption(r.edges)); err != nil {
		return fmt.Errorf("enable edges on pin %d: %w", r.pin, err)
	}
	return nil
}

// DisableInterrupt turns edge detection off. Events already queued in the
// kernel are discarded by the handler.
func (r *RealInput) DisableInterrupt() error {
	r.enabled.Store(false)
	if err := r.line.Reconfigure(gpiocdev.WithoutEdges); err != nil {
		return fmt.Errorf("disable edges on pin %d: %w", r.pin, err)
	}
	return nil
}

// Close releases the line.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing to ensure clean state for system shutdown/reboot.
func (r *RealInput) Close() error {
	var errs []error
	r.enabled.Store(false)
	if err := r.line.Reconfigure(gpiocdev.WithoutEdges, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", r.pin, err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", r.pin, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
