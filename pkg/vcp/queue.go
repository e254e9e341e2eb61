package vcp

import (
	"context"
	"sync"
)

// DefaultQueueSize is the capacity used when a non-positive size is requested.
const DefaultQueueSize = 100

// Producer is the sending half of a Queue.
type Producer interface {
	Push(ctx context.Context, msg Message) error
	TryPush(msg Message) error
	Len() int
}

// Consumer is the receiving half of a Queue.
type Consumer interface {
	Pop(ctx context.Context) (Message, error)
	Len() int
}

// Queue is a bounded FIFO of messages with one producer role and one
// consumer role. Push blocks while the queue is full and Pop blocks while it
// is empty; both give up when their context is done or the queue is closed.
//
// The underlying channel is never closed, so a Push racing with Close cannot
// panic. Messages still buffered at Close remain available to Pop.
type Queue struct {
	ch        chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}

	return &Queue{
		ch:     make(chan Message, capacity),
		closed: make(chan struct{}),
	}
}

// NewQueuePair creates the inbound (wire to application) and outbound
// (application to wire) queues with the same capacity.
func NewQueuePair(capacity int) (inbound *Queue, outbound *Queue) {
	return NewQueue(capacity), NewQueue(capacity)
}

// Push appends msg, blocking until a slot is free.
func (q *Queue) Push(ctx context.Context, msg Message) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush appends msg if a slot is free and returns ErrQueueFull otherwise.
func (q *Queue) TryPush(msg Message) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop removes the oldest message, blocking until one is available. After
// Close it keeps returning buffered messages, then ErrQueueClosed. A done
// ctx wins over a buffered message, which stays queued.
func (q *Queue) Pop(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	select {
	case msg := <-q.ch:
		return msg, nil
	default:
	}

	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.closed:
		select {
		case msg := <-q.ch:
			return msg, nil
		default:
			return Message{}, ErrQueueClosed
		}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close marks the queue closed. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
