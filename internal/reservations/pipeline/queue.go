package pipeline

import (
	"context"

	"innkeep/pkg/model"
)

// Queue is the bounded FIFO command channel between request handlers
// (many producers) and the processor (single consumer). A full queue blocks
// the producer rather than dropping: losing a release command would leak a
// room lock with no owner left to clear it.
type Queue struct {
	ch chan *model.ReservationCommand
}

const DefaultQueueCapacity = 1000

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan *model.ReservationCommand, capacity)}
}

// Enqueue appends cmd at the tail, blocking while the queue is at capacity.
// Returns the context error if ctx fires first; the command was not added.
func (q *Queue) Enqueue(ctx context.Context, cmd *model.ReservationCommand) error {
	select {
	case q.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue appends cmd only if there is capacity, reporting whether it was
// added. The consumer uses it for commands it originates itself: blocking
// there would deadlock the loop, since nothing else drains the queue.
func (q *Queue) TryEnqueue(cmd *model.ReservationCommand) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Dequeue blocks until a command is available or ctx fires. The second
// return is false only on cancellation; an empty queue is not an error.
func (q *Queue) Dequeue(ctx context.Context) (*model.ReservationCommand, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	case <-ctx.Done():
		return nil, false
	}
}

// Pending is an approximate depth for observability. Not for control flow.
func (q *Queue) Pending() int {
	return len(q.ch)
}

// Capacity returns the fixed queue capacity.
func (q *Queue) Capacity() int {
	return cap(q.ch)
}
