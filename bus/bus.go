// bus.go
package bus

import (
	"reflect"
	"sync"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path. Any comparable value is allowed;
// in practice tokens are strings or integers.
type Token = any

// Topic is a sequence of tokens.
type Topic []Token

const (
	// SingleWild matches exactly one token in a subscription filter.
	SingleWild = "+"
	// MultiWild matches the remainder of a topic (zero or more tokens).
	// It is only meaningful as the last token of a filter.
	MultiWild = "#"
)

// T builds a topic, panicking on tokens that cannot be used as map keys.
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token must be comparable")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int       { return len(t) }
func (t Topic) At(i int) Token { return t[i] }
func (t Topic) Append(tokens ...Token) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, T(tokens...)...)
}

// Matches reports whether topic is selected by the subscription filter.
func (filter Topic) Matches(topic Topic) bool {
	for i, f := range filter {
		if f == MultiWild {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if f == SingleWild {
			continue
		}
		if f != topic[i] {
			return false
		}
	}
	return len(filter) == len(topic)
}

// -----------------------------------------------------------------------------
// Event
// -----------------------------------------------------------------------------

// Event is an immutable value posted on the bus. Its topic decides which
// subscriptions receive it.
type Event interface {
	Topic() Topic
}

// Handler is invoked synchronously from the publisher's goroutine. It must
// not block; modules copy the event into their own mailbox and return.
type Handler func(Event)

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	filter Topic
	fn     Handler
	conn   *Connection // owning connection
}

func (s *Subscription) Topic() Topic { return s.filter }
func (s *Subscription) Unsubscribe() { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu sync.RWMutex
	// subs is replaced, never mutated in place, so Publish can iterate a
	// snapshot without holding the lock while handlers run.
	subs []*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish delivers ev to every matching subscription in registration order.
// Handlers run on the caller's goroutine; a handler may publish again.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	topic := ev.Topic()
	for _, sub := range subs {
		if sub.filter.Matches(topic) {
			sub.fn(ev)
		}
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]*Subscription, 0, len(b.subs)+1)
	next = append(next, b.subs...)
	b.subs = append(next, sub)
}

func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s != sub {
			next = append(next, s)
		}
	}
	b.subs = next
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection groups the subscriptions owned by one module so they can be torn
// down together.
type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

func (c *Connection) ID() string { return c.id }

// Publish sends an event via the bus.
func (c *Connection) Publish(ev Event) {
	c.bus.Publish(ev)
}

// Subscribe registers fn for every event whose topic matches filter.
func (c *Connection) Subscribe(filter Topic, fn Handler) *Subscription {
	sub := &Subscription{
		filter: filter,
		fn:     fn,
		conn:   c,
	}
	c.bus.addSubscription(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.removeSubscription(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Disconnect removes all subscriptions owned by the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.removeSubscription(sub)
	}
}
