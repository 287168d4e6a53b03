package module

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"assettracker/bus"
)

// Dispatch drains mb one message at a time and hands each to handle. It
// never runs two handle calls concurrently, so handle may own module state
// without locking. handle returns true once the module reached its terminal
// state; Dispatch then returns nil. Cancellation of ctx also returns nil. An
// overflowed mailbox is returned as an error: the module has lost messages
// and its ordering guarantees with them.
func Dispatch[M any](ctx context.Context, mb *Mailbox[M], handle func(M) bool) error {
	for {
		m, err := mb.Get(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		dispatchedTotal.WithLabelValues(mb.name).Inc()
		if handle(m) {
			return nil
		}
	}
}

// Route subscribes conn to filters and copies every matching event into mb.
// conv narrows the event into the mailbox's message type; events it rejects
// are skipped. onOverflow runs on the publisher's goroutine and must not
// block.
func Route[M any](conn *bus.Connection, mb *Mailbox[M], conv func(bus.Event) (M, bool), onOverflow func(error), filters ...bus.Topic) {
	fn := func(ev bus.Event) {
		m, ok := conv(ev)
		if !ok {
			return
		}
		if err := mb.Put(m); err != nil && onOverflow != nil {
			onOverflow(err)
		}
	}
	for _, f := range filters {
		conn.Subscribe(f, fn)
	}
}

// LogOverflow is the usual onOverflow: it logs, and publishes the module's
// error event once so observers learn the module lost coordination.
func LogOverflow(log *zap.Logger, conn *bus.Connection, errEvent bus.Event) func(error) {
	var reported atomic.Bool
	return func(err error) {
		log.Error("mailbox overflow", zap.Error(err))
		if errEvent != nil && reported.CompareAndSwap(false, true) {
			conn.Publish(errEvent)
		}
	}
}
