package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed EventBus.
var ErrBusClosed = errors.New("event bus closed")

const defaultBuffer = 100

// stream is one buffered event queue sharing the bus's close signal.
type stream[T any] struct {
	ch   chan T
	done <-chan struct{}
}

func newStream[T any](buffer int, done <-chan struct{}) stream[T] {
	return stream[T]{ch: make(chan T, buffer), done: done}
}

func (s stream[T]) publish(ctx context.Context, ev T) error {
	select {
	case <-s.done:
		return ErrBusClosed
	default:
	}
	select {
	case s.ch <- ev:
		return nil
	case <-s.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s stream[T]) consume(ctx context.Context) (T, bool) {
	var zero T
	select {
	case ev := <-s.ch:
		return ev, true
	case <-s.done:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// EventBus carries inbound gateway events to the dispatcher. Messages and
// reactions travel on independent streams; nothing orders one against the
// other.
type EventBus struct {
	messages  stream[MessageEvent]
	reactions stream[ReactionEvent]
	done      chan struct{}
	closed    atomic.Bool
}

func NewEventBus() *EventBus {
	return NewEventBusSize(defaultBuffer)
}

func NewEventBusSize(buffer int) *EventBus {
	done := make(chan struct{})
	return &EventBus{
		messages:  newStream[MessageEvent](buffer, done),
		reactions: newStream[ReactionEvent](buffer, done),
		done:      done,
	}
}

func (eb *EventBus) PublishMessage(ctx context.Context, ev MessageEvent) error {
	return eb.messages.publish(ctx, ev)
}

func (eb *EventBus) ConsumeMessage(ctx context.Context) (MessageEvent, bool) {
	return eb.messages.consume(ctx)
}

func (eb *EventBus) PublishReaction(ctx context.Context, ev ReactionEvent) error {
	return eb.reactions.publish(ctx, ev)
}

func (eb *EventBus) ConsumeReaction(ctx context.Context) (ReactionEvent, bool) {
	return eb.reactions.consume(ctx)
}

// Pending reports how many events of each kind wait to be consumed.
func (eb *EventBus) Pending() (messages, reactions int) {
	return len(eb.messages.ch), len(eb.reactions.ch)
}

func (eb *EventBus) Close() {
	if eb.closed.CompareAndSwap(false, true) {
		close(eb.done)
	}
}
