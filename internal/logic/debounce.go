package logic

import "time"

// DebounceEngine turns raw button edges into click, double-click and long
// press gestures. It owns a fixed arena of button slots that share one
// periodic timer. All methods must be called from the owning task.
type DebounceEngine struct {
	cfg   DebounceConfig
	read  PinReader
	emit  GestureFunc
	timer Switch

	slots [MaxButtons]ButtonState
	used  int

	tickMs        uint32
	minPressMs    uint32
	doubleClickMs uint32
	longPressMs   uint32
}

// NewDebounceEngine creates an engine. read samples a pin on every tick, emit
// receives gestures, timer is the shared tick source.
func NewDebounceEngine(cfg DebounceConfig, read PinReader, emit GestureFunc, timer Switch) *DebounceEngine {
	return &DebounceEngine{
		cfg:           cfg,
		read:          read,
		emit:          emit,
		timer:         timer,
		tickMs:        toMs(cfg.TickInterval),
		minPressMs:    toMs(cfg.MinPress),
		doubleClickMs: toMs(cfg.DoubleClickWindow),
		longPressMs:   toMs(cfg.LongPress),
	}
}

func toMs(d time.Duration) uint32 {
	return uint32(d / time.Millisecond)
}

// Config returns the engine's thresholds.
func (e *DebounceEngine) Config() DebounceConfig {
	return e.cfg
}

// Attach claims a slot for pin and returns its index.
func (e *DebounceEngine) Attach(pin, activeLevel int) (int, error) {
	if _, ok := e.Slot(pin); ok {
		return -1, ErrDuplicatePin
	}
	if e.used == MaxButtons {
		return -1, ErrTooManyButtons
	}
	idx := e.used
	e.slots[idx] = ButtonState{Pin: pin, ActiveLevel: activeLevel}
	e.used++
	return idx, nil
}

// Slot returns the slot index for pin.
func (e *DebounceEngine) Slot(pin int) (int, bool) {
	for i := 0; i < e.used; i++ {
		if e.slots[i].Pin == pin {
			return i, true
		}
	}
	return -1, false
}

// State returns a copy of the slot at idx.
func (e *DebounceEngine) State(idx int) ButtonState {
	return e.slots[idx]
}

// Len returns the number of attached buttons.
func (e *DebounceEngine) Len() int {
	return e.used
}

// OnEdge feeds a raw edge. It returns false if pin has no slot.
func (e *DebounceEngine) OnEdge(pin, level int, ms uint32) bool {
	idx, ok := e.Slot(pin)
	if !ok {
		return false
	}
	b := &e.slots[idx]

	if level == b.ActiveLevel {
		b.PressBeginMs = ms
		if b.ClickCount == 0 {
			b.DebounceActive = true
			b.AccumulatorMs = 0
			e.timer.Start()
		}
		return true
	}

	if b.DebounceActive {
		b.PressEndMs = ms
		if absDiff(b.PressEndMs, b.PressBeginMs) > e.minPressMs && b.ClickCount < 2 {
			b.ClickCount++
		}
	}
	return true
}

// OnTick advances every active slot by one tick interval. The shared timer
// is stopped once no slot is active.
func (e *DebounceEngine) OnTick() {
	active := false
	for i := 0; i < e.used; i++ {
		if e.tick(&e.slots[i]) {
			active = true
		}
	}
	if !active {
		e.timer.Stop()
	}
}

// tick advances one slot and reports whether it is still active.
func (e *DebounceEngine) tick(b *ButtonState) bool {
	if !b.DebounceActive {
		return false
	}

	if e.read(b.Pin) == b.ActiveLevel {
		if b.AccumulatorMs >= e.longPressMs {
			e.reset(b)
			e.emit(GestureLongPress, b.Pin)
			return false
		}
		b.AccumulatorMs += e.tickMs
		return true
	}

	if b.AccumulatorMs >= e.doubleClickMs {
		clicks := b.ClickCount
		e.reset(b)
		switch clicks {
		case 1:
			e.emit(GestureClick, b.Pin)
		case 2:
			e.emit(GestureDoubleClick, b.Pin)
		}
		return false
	}
	b.AccumulatorMs += e.tickMs
	return true
}

func (e *DebounceEngine) reset(b *ButtonState) {
	b.ClickCount = 0
	b.DebounceActive = false
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
