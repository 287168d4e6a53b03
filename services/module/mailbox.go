package module

import (
	"context"
	"sync"

	"assettracker/errcode"
)

// Mailbox is a bounded FIFO with a non-blocking producer side and a blocking
// single consumer. A full mailbox is not waited on: the message is lost, the
// mailbox latches a fault and the consumer's next Get reports it.
type Mailbox[M any] struct {
	name  string
	ch    chan M
	fault chan struct{}
	once  sync.Once
}

// NewMailbox creates a mailbox holding at most size messages.
func NewMailbox[M any](name string, size int) *Mailbox[M] {
	if size <= 0 {
		size = 1
	}
	return &Mailbox[M]{
		name:  name,
		ch:    make(chan M, size),
		fault: make(chan struct{}),
	}
}

// Put enqueues m without blocking. It returns an errcode.MailboxOverflow
// error when the mailbox is full.
func (mb *Mailbox[M]) Put(m M) error {
	select {
	case mb.ch <- m:
		return nil
	default:
	}
	overflowTotal.WithLabelValues(mb.name).Inc()
	mb.once.Do(func() { close(mb.fault) })
	return &errcode.E{C: errcode.MailboxOverflow, Op: "mailbox.put", Msg: mb.name}
}

// Get blocks until a message is available, ctx is done or the mailbox has
// overflowed. A latched overflow wins over pending messages.
func (mb *Mailbox[M]) Get(ctx context.Context) (M, error) {
	var zero M
	select {
	case <-mb.fault:
		return zero, mb.faultErr()
	default:
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-mb.fault:
		return zero, mb.faultErr()
	case m := <-mb.ch:
		return m, nil
	}
}

// C exposes the queue for consumers that multiplex the mailbox with other
// sources in a select. Such consumers must also watch Fault.
func (mb *Mailbox[M]) C() <-chan M { return mb.ch }

// Fault is closed once the mailbox has overflowed.
func (mb *Mailbox[M]) Fault() <-chan struct{} { return mb.fault }

func (mb *Mailbox[M]) Name() string { return mb.name }
func (mb *Mailbox[M]) Len() int     { return len(mb.ch) }
func (mb *Mailbox[M]) Cap() int     { return cap(mb.ch) }

func (mb *Mailbox[M]) faultErr() error {
	return &errcode.E{C: errcode.MailboxOverflow, Op: "mailbox.get", Msg: mb.name}
}
