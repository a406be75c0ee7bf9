package thermalmgr

import (
	"context"
	"fmt"
)

const DefaultQueueLength = 10

// Queue is a bounded FIFO mailbox of events. Its capacity is fixed at
// creation and it is safe for concurrent producers and a single consumer.
type Queue struct {
	ch chan Event
}

func NewQueue(length int) (*Queue, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: queue length must be positive, got %d", ErrInvalidArg, length)
	}
	return &Queue{ch: make(chan Event, length)}, nil
}

// Send waits for a free slot until ctx is done. A missed deadline is
// reported as ErrQueueFull.
func (q *Queue) Send(ctx context.Context, e Event) error {
	// Fast path so an already expired ctx still succeeds when there is room.
	select {
	case q.ch <- e:
		return nil
	default:
	}

	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrQueueFull, ctx.Err())
	}
}

// TrySend enqueues e only if a slot is free right now. It never blocks.
func (q *Queue) TrySend(e Event) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive blocks until an event is available or ctx is done.
func (q *Queue) Receive(ctx context.Context) (Event, error) {
	select {
	case e := <-q.ch:
		return e, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// TryReceive returns the next event if one is queued. It never blocks.
func (q *Queue) TryReceive() (Event, bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return Event{}, false
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Producer is the task-context handle: sends may block up to the ctx deadline.
func (q *Queue) Producer() Producer {
	return Producer{q: q}
}

// ISRProducer is the interrupt-context handle: sends never block.
func (q *Queue) ISRProducer() ISRProducer {
	return ISRProducer{q: q}
}

type Producer struct {
	q *Queue
}

func (p Producer) Send(ctx context.Context, e Event) error {
	if p.q == nil {
		return ErrInvalidState
	}
	return p.q.Send(ctx, e)
}

type ISRProducer struct {
	q *Queue
}

func (p ISRProducer) TrySend(e Event) error {
	if p.q == nil {
		return ErrInvalidState
	}
	return p.q.TrySend(e)
}
