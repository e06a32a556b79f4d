package logic

import (
	"testing"
	"time"
)

const (
	bootPin   = 9
	otherPin  = 4
	activeLow = 0
)

type fakeSwitch struct {
	running bool
	starts  int
	stops   int
}

func (s *fakeSwitch) Start() { s.running = true; s.starts++ }
func (s *fakeSwitch) Stop()  { s.running = false; s.stops++ }

type gesture struct {
	g   Gesture
	pin int
}

type harness struct {
	engine *DebounceEngine
	timer  *fakeSwitch
	levels map[int]int
	got    []gesture
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{timer: &fakeSwitch{}, levels: map[int]int{bootPin: 1}}
	h.engine = NewDebounceEngine(DefaultDebounceConfig(),
		func(pin int) int { return h.levels[pin] },
		func(g Gesture, pin int) { h.got = append(h.got, gesture{g, pin}) },
		h.timer)
	if _, err := h.engine.Attach(bootPin, activeLow); err != nil {
		t.Fatalf("attach: %v", err)
	}
	return h
}

// edge sets the pin level and feeds the edge to the engine.
func (h *harness) edge(level int, ms uint32) {
	h.levels[bootPin] = level
	h.engine.OnEdge(bootPin, level, ms)
}

// ticks runs n ticks while the timer is running.
func (h *harness) ticks(n int) {
	for i := 0; i < n && h.timer.running; i++ {
		h.engine.OnTick()
	}
}

func TestSingleClick(t *testing.T) {
	h := newHarness(t)

	h.edge(0, 1000)
	if !h.timer.running {
		t.Fatal("timer should start on first active edge")
	}
	h.edge(1, 1100)
	h.ticks(100)

	if len(h.got) != 1 || h.got[0].g != GestureClick || h.got[0].pin != bootPin {
		t.Fatalf("expected one click on pin %d, got %v", bootPin, h.got)
	}
	if h.timer.running {
		t.Error("timer should stop once no button is active")
	}
	if st := h.engine.State(0); st.DebounceActive || st.ClickCount != 0 {
		t.Errorf("slot not reset: %+v", st)
	}
}

func TestClickFiresAfterWindow(t *testing.T) {
	h := newHarness(t)

	h.edge(0, 0)
	h.edge(1, 100)

	// 40 ticks accumulate exactly the 400ms window; the next tick fires.
	for i := 0; i < 40; i++ {
		h.engine.OnTick()
	}
	if len(h.got) != 0 {
		t.Fatalf("fired too early: %v", h.got)
	}
	h.engine.OnTick()
	if len(h.got) != 1 {
		t.Fatalf("expected click after window, got %v", h.got)
	}
}

func TestDoubleClick(t *testing.T) {
	h := newHarness(t)

	h.edge(0, 0)
	h.edge(1, 100)
	h.engine.OnTick()
	h.edge(0, 200)
	h.edge(1, 300)
	h.ticks(100)

	if len(h.got) != 1 || h.got[0].g != GestureDoubleClick {
		t.Fatalf("expected one double click, got %v", h.got)
	}
}

func TestThirdClickIsDropped(t *testing.T) {
	h := newHarness(t)

	for i := uint32(0); i < 3; i++ {
		h.edge(0, i*100)
		h.edge(1, i*100+60)
	}
	if st := h.engine.State(0); st.ClickCount != 2 {
		t.Fatalf("click count should saturate at 2, got %d", st.ClickCount)
	}
	h.ticks(100)

	if len(h.got) != 1 || h.got[0].g != GestureDoubleClick {
		t.Fatalf("expected one double click, got %v", h.got)
	}
}

func TestLongPressSuppressesClick(t *testing.T) {
	h := newHarness(t)

	h.edge(0, 0)
	h.ticks(500)

	if len(h.got) != 1 || h.got[0].g != GestureLongPress {
		t.Fatalf("expected one long press, got %v", h.got)
	}
	if h.timer.running {
		t.Error("timer should stop after long press")
	}

	// Release after the long press produces nothing.
	h.edge(1, 2500)
	h.ticks(100)
	if len(h.got) != 1 {
		t.Errorf("release after long press should not click, got %v", h.got)
	}
}

func TestLongPressAfterClick(t *testing.T) {
	h := newHarness(t)

	h.edge(0, 0)
	h.edge(1, 100)
	h.engine.OnTick()
	h.edge(0, 150)
	h.ticks(500)

	if len(h.got) != 1 || h.got[0].g != GestureLongPress {
		t.Fatalf("expected long press to win over pending click, got %v", h.got)
	}
}

func TestBounceIsNotAClick(t *testing.T) {
	h := newHarness(t)

	h.edge(0, 0)
	h.edge(1, 20)
	h.ticks(100)

	if len(h.got) != 0 {
		t.Fatalf("press shorter than debounce should be ignored, got %v", h.got)
	}
	if h.timer.running {
		t.Error("timer should stop after an empty sequence")
	}
}

func TestInactiveEdgeWithoutPressIgnored(t *testing.T) {
	h := newHarness(t)

	h.edge(1, 500)
	if h.timer.running {
		t.Error("inactive edge should not start the timer")
	}
	if st := h.engine.State(0); st.ClickCount != 0 {
		t.Errorf("click count should stay 0, got %d", st.ClickCount)
	}
}

func TestUnknownPin(t *testing.T) {
	h := newHarness(t)

	if h.engine.OnEdge(otherPin, 0, 0) {
		t.Error("OnEdge should reject an unattached pin")
	}
	if h.timer.starts != 0 {
		t.Error("unattached pin should not start the timer")
	}
}

func TestAttachLimits(t *testing.T) {
	e := NewDebounceEngine(DefaultDebounceConfig(), func(int) int { return 1 }, func(Gesture, int) {}, &fakeSwitch{})

	for pin := 0; pin < MaxButtons; pin++ {
		idx, err := e.Attach(pin, activeLow)
		if err != nil {
			t.Fatalf("attach pin %d: %v", pin, err)
		}
		if idx != pin {
			t.Errorf("expected slot %d, got %d", pin, idx)
		}
	}
	if _, err := e.Attach(3, activeLow); err != ErrDuplicatePin {
		t.Errorf("expected ErrDuplicatePin, got %v", err)
	}
	if _, err := e.Attach(MaxButtons, activeLow); err != ErrTooManyButtons {
		t.Errorf("expected ErrTooManyButtons, got %v", err)
	}
	if e.Len() != MaxButtons {
		t.Errorf("expected %d buttons, got %d", MaxButtons, e.Len())
	}
}

func TestTwoButtonsShareTimer(t *testing.T) {
	sw := &fakeSwitch{}
	levels := map[int]int{1: 1, 2: 1}
	var got []gesture
	e := NewDebounceEngine(DefaultDebounceConfig(),
		func(pin int) int { return levels[pin] },
		func(g Gesture, pin int) { got = append(got, gesture{g, pin}) },
		sw)
	e.Attach(1, activeLow)
	e.Attach(2, activeLow)

	levels[1] = 0
	e.OnEdge(1, 0, 0)
	levels[1] = 1
	e.OnEdge(1, 1, 100)

	levels[2] = 0
	e.OnEdge(2, 0, 100)

	for i := 0; i < 300 && sw.running; i++ {
		e.OnTick()
	}

	if len(got) != 2 {
		t.Fatalf("expected two gestures, got %v", got)
	}
	if got[0] != (gesture{GestureClick, 1}) {
		t.Errorf("first gesture: got %v", got[0])
	}
	if got[1] != (gesture{GestureLongPress, 2}) {
		t.Errorf("second gesture: got %v", got[1])
	}
}

func TestDefaultDebounceConfig(t *testing.T) {
	cfg := DefaultDebounceConfig()
	if cfg.TickInterval != 10*time.Millisecond {
		t.Errorf("tick: got %v", cfg.TickInterval)
	}
	if cfg.LongPress <= cfg.DoubleClickWindow {
		t.Error("long press must exceed the double click window")
	}
}
