package mqtt

import "sync"

// outboxMsg is a serialized message waiting for the broker.
type outboxMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages while the broker is unreachable. When full the
// oldest message is dropped.
type outbox struct {
	mu      sync.Mutex
	msgs    []outboxMsg
	limit   int
	dropped uint64
	warned  bool
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{msgs: make([]outboxMsg, 0, limit), limit: limit}
}

// add queues msg. It returns true on the first drop since the last take.
func (o *outbox) add(msg outboxMsg) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.push(msg)
}

// holdIf queues msg only if offline reports true. offline is evaluated under
// the outbox lock, so a concurrent take either sees msg or runs after
// offline has turned false.
func (o *outbox) holdIf(offline func() bool, msg outboxMsg) (held, firstDrop bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !offline() {
		return false, false
	}
	return true, o.push(msg)
}

func (o *outbox) push(msg outboxMsg) bool {
	if len(o.msgs) < o.limit {
		o.msgs = append(o.msgs, msg)
		return false
	}
	copy(o.msgs, o.msgs[1:])
	o.msgs[len(o.msgs)-1] = msg
	o.dropped++
	if o.warned {
		return false
	}
	o.warned = true
	return true
}

// take returns the queued messages oldest first and empties the outbox.
func (o *outbox) take() []outboxMsg {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.msgs) == 0 {
		return nil
	}
	out := make([]outboxMsg, len(o.msgs))
	copy(out, o.msgs)
	o.msgs = o.msgs[:0]
	o.warned = false
	return out
}

func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

// droppedTotal counts every message lost to overflow.
func (o *outbox) droppedTotal() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
