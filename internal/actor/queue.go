// Package actor runs the doorbell's tasks. Each task owns a buffered queue
// and a handler; the only way to reach a task is to post it a message.
package actor

import (
	"errors"
	"sync/atomic"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// ErrQueueFull is returned when a message could not be enqueued.
var ErrQueueFull = errors.New("queue full")

// Queue is a bounded FIFO of messages with a single consumer.
type Queue struct {
	name    string
	ch      chan event.Message
	dropped atomic.Uint64
}

// NewQueue creates a queue that holds at most size messages.
func NewQueue(name string, size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{name: name, ch: make(chan event.Message, size)}
}

// Name returns the queue's name.
func (q *Queue) Name() string {
	return q.name
}

// Send enqueues msg without blocking.
func (q *Queue) Send(msg event.Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Post enqueues a message built from its parts. It never blocks; a full
// queue drops the message.
func (q *Queue) Post(kind event.Kind, iParam int32, uParam, lParam uint32) error {
	return q.Send(event.New(kind, iParam, uParam, lParam))
}

// PostFromISR is Post for interrupt and timer callbacks. The contract is the
// same: it never blocks and never allocates beyond the message value.
func (q *Queue) PostFromISR(kind event.Kind, iParam int32, uParam, lParam uint32) bool {
	return q.Send(event.New(kind, iParam, uParam, lParam)) == nil
}

// Receive returns the channel the consumer reads from.
func (q *Queue) Receive() <-chan event.Message {
	return q.ch
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns how many messages were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Default queue depths.
const (
	MainQueueSize      = 2048
	MessagingQueueSize = 128
	NpuQueueSize       = 128
)

// AppContext holds the queues of the three tasks. It is built once at startup
// and only read afterwards.
type AppContext struct {
	Main      *Queue
	Messaging *Queue
	Npu       *Queue
}

// NewAppContext creates the task queues with their default depths.
func NewAppContext() *AppContext {
	return &AppContext{
		Main:      NewQueue("main", MainQueueSize),
		Messaging: NewQueue("messaging", MessagingQueueSize),
		Npu:       NewQueue("npu", NpuQueueSize),
	}
}

// Queues returns the queues in a fixed order, for metrics and status.
func (a *AppContext) Queues() []*Queue {
	return []*Queue{a.Main, a.Messaging, a.Npu}
}
