package gpioirq

import (
	"fmt"
	"sync"
	"time"

	"assettracker/errcode"
)

// Buttons is a bank of active-low push buttons. Button i (from 0) is bit i
// of the masks passed to the handler.
type Buttons struct {
	w        *Worker
	pins     []IRQPin
	debounce time.Duration

	mu      sync.Mutex
	states  uint32
	cancels []func()
}

func NewButtons(w *Worker, debounce time.Duration, pins ...IRQPin) *Buttons {
	return &Buttons{w: w, pins: pins, debounce: debounce}
}

// Init arms every button. handler runs on the worker goroutine with the
// pressed-state mask and the mask of buttons that just changed.
func (b *Buttons) Init(handler func(states, changed uint32)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pins) > 32 {
		return &errcode.E{C: errcode.InvalidParams, Op: "buttons.init", Msg: fmt.Sprintf("%d buttons, at most 32", len(b.pins))}
	}

	for i, p := range b.pins {
		bit := uint32(1) << i
		if !p.Get() {
			b.states |= bit
		}
		cancel, err := b.w.Register(fmt.Sprintf("button%d", i+1), p, EdgeBoth, b.debounce, true, func(ev Event) {
			b.mu.Lock()
			if ev.Level {
				b.states |= bit
			} else {
				b.states &^= bit
			}
			states := b.states
			b.mu.Unlock()
			handler(states, bit)
		})
		if err != nil {
			b.closeLocked()
			return err
		}
		b.cancels = append(b.cancels, cancel)
	}
	return nil
}

// Close disarms all buttons.
func (b *Buttons) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *Buttons) closeLocked() {
	for _, c := range b.cancels {
		c()
	}
	b.cancels = nil
}
