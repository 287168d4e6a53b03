// Package gpioirq turns pin interrupts into debounced edge events.
//
// Interrupt handlers only sample the pin and do a non-blocking send; edge
// detection, debouncing and the per-input callbacks run on the worker
// goroutine.
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin is an input pin with interrupts.
type IRQPin interface {
	Get() bool
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// Event is delivered to the callback of a registered input.
type Event struct {
	ID    string
	Level bool // after inversion
	Edge  Edge
	TS    time.Time
}

type Worker struct {
	// Written by ISR; MUST NOT block the ISR:
	isrQ chan isrEvent
	clk  clock.Clock

	mu     sync.RWMutex
	inputs map[string]*watch

	drops atomic.Uint32
}

type isrEvent struct {
	id    string
	level bool // captured in ISR
}

type watch struct {
	pin       IRQPin
	edge      Edge
	debounce  time.Duration
	invert    bool
	fn        func(Event)
	lastLevel bool
	lastEvent time.Time
}

// NewWorker creates a worker whose ISR queue holds isrBuf samples. A nil
// clk uses the wall clock.
func NewWorker(isrBuf int, clk clock.Clock) *Worker {
	if isrBuf <= 0 {
		isrBuf = 64
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Worker{
		isrQ:   make(chan isrEvent, isrBuf),
		clk:    clk,
		inputs: map[string]*watch{},
	}
}

// Run processes interrupts until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.isrQ:
			w.handleISR(ev)
		}
	}
}

// Register arms pin and calls fn, from the worker goroutine, for every
// debounced edge matching edge. The returned func disarms it.
func (w *Worker) Register(id string, pin IRQPin, edge Edge, debounce time.Duration, invert bool, fn func(Event)) (func(), error) {
	if edge == EdgeNone {
		return func() {}, nil
	}
	wh := &watch{
		pin:       pin,
		edge:      edge,
		debounce:  debounce,
		invert:    invert,
		fn:        fn,
		lastLevel: pin.Get() != invert, // initial snapshot
	}

	// ISR handler: fast register read + non-blocking channel send.
	handler := func() {
		l := pin.Get()
		select {
		case w.isrQ <- isrEvent{id: id, level: l}:
		default:
			w.drops.Add(1)
		}
	}
	// Both edges reach the worker so lastLevel follows the pin; edge only
	// filters what fn sees.
	if err := pin.SetIRQ(EdgeBoth, handler); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.inputs[id] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.inputs[id]; ok {
			_ = cur.pin.ClearIRQ()
			delete(w.inputs, id)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) handleISR(ev isrEvent) {
	w.mu.RLock()
	wh := w.inputs[ev.id]
	w.mu.RUnlock()
	if wh == nil {
		return
	}
	raw := ev.level != wh.invert
	now := w.clk.Now()

	// Debounce
	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		return
	}

	// Edge detection
	var e Edge
	switch {
	case !wh.lastLevel && raw:
		e = EdgeRising
	case wh.lastLevel && !raw:
		e = EdgeFalling
	default:
		return
	}

	wh.lastLevel = raw
	wh.lastEvent = now
	if wh.edge == EdgeBoth || wh.edge == e {
		wh.fn(Event{ID: ev.id, Level: raw, Edge: e, TS: now})
	}
}

// ISRDrops counts interrupts lost because the ISR queue was full.
func (w *Worker) ISRDrops() uint32 { return w.drops.Load() }
