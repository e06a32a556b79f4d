package actor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// Handler is the behaviour of a task. Setup runs once on the task goroutine
// before the first message; OnMessage runs for every message in FIFO order.
// A handler must never block waiting for another task.
type Handler interface {
	Setup() error
	OnMessage(msg event.Message)
}

// Task binds a handler to the queue it consumes.
type Task struct {
	name    string
	queue   *Queue
	handler Handler
	log     *slog.Logger
}

// NewTask creates a task named after its queue.
func NewTask(queue *Queue, handler Handler, log *slog.Logger) *Task {
	return &Task{
		name:    queue.Name(),
		queue:   queue,
		handler: handler,
		log:     log.With("task", queue.Name()),
	}
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Run performs setup and then dispatches messages until ctx is cancelled.
func (t *Task) Run(ctx context.Context) error {
	if err := t.handler.Setup(); err != nil {
		return fmt.Errorf("%s setup: %w", t.name, err)
	}
	t.log.Debug("task running")

	for {
		select {
		case <-ctx.Done():
			t.log.Debug("task stopped", "pending", t.queue.Len())
			return nil
		case msg := <-t.queue.Receive():
			t.handler.OnMessage(msg)
		}
	}
}
