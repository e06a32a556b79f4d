package actor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// Timer is a periodic timer owned by a task. Its callback only enqueues.
type Timer interface {
	ID() uint32
	Start()
	Stop()
	Running() bool
}

// FireFunc is called on every period with the firing timer's id.
type FireFunc func(id uint32)

// TimerFactory creates timers. Handlers take one so tests can drive ticks by hand.
type TimerFactory func(name string, period time.Duration, fire FireFunc) Timer

var nextTimerID atomic.Uint32

func allocTimerID() uint32 {
	return nextTimerID.Add(1)
}

// TickTo returns a FireFunc that posts a TimerTick carrying the timer id to q.
func TickTo(q *Queue) FireFunc {
	return func(id uint32) {
		q.PostFromISR(event.KindSystem, int32(event.SysTimerTick), 0, id)
	}
}

// PeriodicTimer fires its callback every period while started.
type PeriodicTimer struct {
	id     uint32
	name   string
	period time.Duration
	fire   FireFunc

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewPeriodicTimer creates a stopped timer. It satisfies TimerFactory.
func NewPeriodicTimer(name string, period time.Duration, fire FireFunc) Timer {
	return &PeriodicTimer{
		id:     allocTimerID(),
		name:   name,
		period: period,
		fire:   fire,
	}
}

// ID returns the timer id carried in TimerTick messages.
func (t *PeriodicTimer) ID() uint32 {
	return t.id
}

// Name returns the timer name.
func (t *PeriodicTimer) Name() string {
	return t.name
}

// Start arms the timer. Starting a running timer is a no-op.
func (t *PeriodicTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done)
}

// Stop disarms the timer and waits for its goroutine to exit.
func (t *PeriodicTimer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the timer is armed.
func (t *PeriodicTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *PeriodicTimer) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.fire(t.id)
		}
	}
}
