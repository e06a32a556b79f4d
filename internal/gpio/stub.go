//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: only supported on linux")

// Chip is unavailable on this platform.
type Chip struct{}

// OpenChip always fails on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Close is a no-op.
func (c *Chip) Close() error { return nil }

// RealInput is unavailable on this platform.
type RealInput struct{}

// RequestEdgeInput always fails on non-Linux platforms.
func (c *Chip) RequestEdgeInput(cfg LineConfig, handler EdgeHandler) (*RealInput, error) {
	return nil, errUnsupported
}

func (r *RealInput) Pin() int                { return -1 }
func (r *RealInput) Read() (int, error)      { return 0, errUnsupported }
func (r *RealInput) EnableInterrupt() error  { return errUnsupported }
func (r *RealInput) DisableInterrupt() error { return errUnsupported }
func (r *RealInput) Close() error            { return nil }
