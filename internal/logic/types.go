// Package logic contains the pure button debounce state machine.
// This package has NO external dependencies (no GPIO, queues, OS, or time.Sleep).
// Time arrives as millisecond stamps on edges and as a fixed tick interval.
package logic

import (
	"errors"
	"time"
)

// MaxButtons is the number of button slots in a DebounceEngine.
const MaxButtons = 10

// Gesture is a debounced button event.
type Gesture string

const (
	GestureClick       Gesture = "CLICK"
	GestureDoubleClick Gesture = "DOUBLE_CLICK"
	GestureLongPress   Gesture = "LONG_PRESS"
)

var (
	// ErrTooManyButtons is returned by Attach when every slot is taken.
	ErrTooManyButtons = errors.New("debounce: no free button slot")
	// ErrDuplicatePin is returned by Attach when the pin already has a slot.
	ErrDuplicatePin = errors.New("debounce: pin already attached")
)

// ButtonState tracks the debounce state of one button.
type ButtonState struct {
	Pin         int
	ActiveLevel int
	// Whether a press sequence is being timed
	DebounceActive bool
	// Time accumulated since the sequence began, in ms
	AccumulatorMs uint32
	// Qualifying presses in this sequence, 0..2
	ClickCount   int
	PressBeginMs uint32
	PressEndMs   uint32
}

// DebounceConfig holds the engine's timing thresholds.
type DebounceConfig struct {
	// TickInterval is the period of the shared debounce timer.
	TickInterval time.Duration
	// MinPress is the shortest press that counts as a click.
	MinPress time.Duration
	// DoubleClickWindow is how long after the sequence starts clicks are collected.
	DoubleClickWindow time.Duration
	// LongPress is how long the button must be held for a long press.
	LongPress time.Duration
}

// DefaultDebounceConfig returns the standard thresholds.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		TickInterval:      10 * time.Millisecond,
		MinPress:          50 * time.Millisecond,
		DoubleClickWindow: 400 * time.Millisecond,
		LongPress:         2 * time.Second,
	}
}

// PinReader returns the current raw level of a pin.
type PinReader func(pin int) int

// GestureFunc receives debounced gestures.
type GestureFunc func(g Gesture, pin int)

// Switch starts and stops the shared debounce timer.
type Switch interface {
	Start()
	Stop()
}
