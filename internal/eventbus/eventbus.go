package eventbus

import "context"

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
type Bus = TypedBus[Event]

// New creates a new Bus.
func New() *Bus { return NewTyped[Event]() }

// NewBuffered creates a Bus whose subscribers buffer up to n events. Slow
// subscribers miss events once their buffer is full.
func NewBuffered(n int) *Bus { return NewTypedBuffered[Event](n) }

// Listen calls fn for every event of type T published on bus until ctx is
// done or the bus is closed. The subscription is registered before Listen
// returns.
func Listen[T any](ctx context.Context, bus EventBus, fn func(T)) {
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(T); ok {
					fn(e)
				}
			}
		}
	}()
}
