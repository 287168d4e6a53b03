package gpioirq

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// fake IRQ-capable pin

type fakeIRQPin struct {
	level bool
	h     func()
}

func (p *fakeIRQPin) Get() bool                              { return p.level }
func (p *fakeIRQPin) SetIRQ(edge Edge, handler func()) error { p.h = handler; return nil }
func (p *fakeIRQPin) ClearIRQ() error                        { p.h = nil; return nil }

// simulate a hardware edge by setting level then calling ISR handler
func (p *fakeIRQPin) trigger(level bool) {
	p.level = level
	if p.h != nil {
		p.h()
	}
}

var _ IRQPin = (*fakeIRQPin)(nil)

func collect(w *Worker, id string, p IRQPin, edge Edge, debounce time.Duration, invert bool) (<-chan Event, func(), error) {
	ch := make(chan Event, 16)
	stop, err := w.Register(id, p, edge, debounce, invert, func(ev Event) { ch <- ev })
	return ch, stop, err
}

func recvEvent(t *testing.T, ch <-chan Event, d time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev := <-ch:
		return ev, true
	case <-time.After(d):
		return Event{}, false
	}
}

func TestWorker_RisingEdge_EventDelivered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakeIRQPin{}
	w := NewWorker(16, clock.NewMock())
	go w.Run(ctx)

	ch, stop, err := collect(w, "accel_int1", p, EdgeRising, 0, false)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	defer stop()

	// Rising transition: false -> true
	p.trigger(true)

	ev, ok := recvEvent(t, ch, 50*time.Millisecond)
	if !ok {
		t.Fatal("expected event, got timeout")
	}
	if ev.ID != "accel_int1" || ev.Edge != EdgeRising || !ev.Level {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// Falling transition should be ignored for EdgeRising
	p.trigger(false)
	if _, ok := recvEvent(t, ch, 10*time.Millisecond); ok {
		t.Fatal("did not expect an event for falling edge")
	}
}

func TestWorker_Debounce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.NewMock()
	p := &fakeIRQPin{}
	w := NewWorker(16, clk)
	go w.Run(ctx)

	ch, stop, err := collect(w, "in", p, EdgeBoth, 10*time.Millisecond, false)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	defer stop()

	p.trigger(true)
	if _, ok := recvEvent(t, ch, 50*time.Millisecond); !ok {
		t.Fatal("expected rising event")
	}

	// Bounce within the window is dropped.
	p.trigger(false)
	if _, ok := recvEvent(t, ch, 10*time.Millisecond); ok {
		t.Fatal("unexpected event within debounce window")
	}

	clk.Add(12 * time.Millisecond)
	p.trigger(false)
	ev, ok := recvEvent(t, ch, 50*time.Millisecond)
	if !ok {
		t.Fatal("expected falling event after debounce")
	}
	if ev.Edge != EdgeFalling || ev.Level {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWorker_Invert(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakeIRQPin{level: true} // idle high
	w := NewWorker(16, nil)
	go w.Run(ctx)

	ch, _, err := collect(w, "btn", p, EdgeRising, 0, true)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	p.trigger(false)
	ev, ok := recvEvent(t, ch, 50*time.Millisecond)
	if !ok || !ev.Level {
		t.Fatalf("expected logical rising on a low level, got %+v ok=%v", ev, ok)
	}
}

func TestWorker_CancelStopsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakeIRQPin{}
	w := NewWorker(16, nil)
	go w.Run(ctx)

	ch, stop, err := collect(w, "x", p, EdgeBoth, 0, false)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	stop()

	p.trigger(true)
	if _, ok := recvEvent(t, ch, 10*time.Millisecond); ok {
		t.Fatal("unexpected event after cancel")
	}
}

func TestWorker_ISRDropCounter(t *testing.T) {
	// Not running, so isrQ is never drained.
	p := &fakeIRQPin{}
	w := NewWorker(1, nil)

	if _, err := w.Register("y", p, EdgeBoth, 0, false, func(Event) {}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	p.trigger(true)  // fills isrQ
	p.trigger(false) // dropped

	if got := w.ISRDrops(); got != 1 {
		t.Fatalf("expected 1 ISR drop, got %d", got)
	}
}

func TestButtons_Masks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(16, clock.NewMock())
	go w.Run(ctx)

	b1, b2 := NewSimPin(true), NewSimPin(true) // active low, released
	btns := NewButtons(w, 0, b1, b2)
	defer btns.Close()

	type edge struct{ states, changed uint32 }
	ch := make(chan edge, 8)
	if err := btns.Init(func(s, c uint32) { ch <- edge{s, c} }); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	want := []edge{{0b10, 0b10}, {0b11, 0b01}, {0b01, 0b10}}
	b2.Set(false)
	b1.Set(false)
	b2.Set(true)
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Fatalf("edge %d: got %+v, want %+v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("edge %d: timeout", i)
		}
	}
}

func TestSimPin_EdgeFilter(t *testing.T) {
	p := NewSimPin(false)
	n := 0
	_ = p.SetIRQ(EdgeFalling, func() { n++ })
	p.Pulse(true) // rising then falling
	p.Set(false)  // no change
	if n != 1 {
		t.Fatalf("handler calls = %d, want 1", n)
	}
}
