package gpioirq

import "sync"

// SimPin is a host-side input pin. Set changes its level and fires the
// interrupt handler when the edge matches.
type SimPin struct {
	mu    sync.Mutex
	level bool
	edge  Edge
	h     func()
}

var _ IRQPin = (*SimPin)(nil)

func NewSimPin(level bool) *SimPin { return &SimPin{level: level} }

func (p *SimPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SimPin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	p.edge, p.h = edge, handler
	p.mu.Unlock()
	return nil
}

func (p *SimPin) ClearIRQ() error {
	p.mu.Lock()
	p.edge, p.h = EdgeNone, nil
	p.mu.Unlock()
	return nil
}

// Set drives the pin to level.
func (p *SimPin) Set(level bool) {
	p.mu.Lock()
	prev := p.level
	p.level = level
	h, edge := p.h, p.edge
	p.mu.Unlock()

	if h == nil || prev == level {
		return
	}
	rising := level
	if edge == EdgeBoth || (edge == EdgeRising && rising) || (edge == EdgeFalling && !rising) {
		h()
	}
}

// Pulse drives the pin to level and back.
func (p *SimPin) Pulse(level bool) {
	p.Set(level)
	p.Set(!level)
}

// Armed reports whether an interrupt handler is installed.
func (p *SimPin) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.h != nil
}
