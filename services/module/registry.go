// Package module holds the pieces every tracker module is built from: its
// descriptor and registration, the bounded mailbox fed by bus callbacks and
// the single-consumer dispatch loop draining it.
package module

import (
	"sort"
	"sync"

	"assettracker/errcode"
)

// Descriptor is a module's static identity. ID is assigned by Registry.Start
// and is what the module puts in its shutdown acknowledgement.
type Descriptor struct {
	Name             string
	ID               uint32
	SupportsShutdown bool
}

// Registry tracks started modules. It is the authority the shutdown
// coordinator asks for the set of modules it has to wait on.
type Registry struct {
	mu     sync.Mutex
	nextID uint32
	byID   map[uint32]Descriptor
	byName map[string]uint32
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		byID:   map[uint32]Descriptor{},
		byName: map[string]uint32{},
	}
}

// Start registers d and assigns its ID. Names are unique. Once the registry
// is closed no module may start, so the set of modules awaited by a shutdown
// cannot grow after the request went out.
func (r *Registry) Start(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &errcode.E{C: errcode.RegistryClosed, Op: "module.start", Msg: d.Name}
	}
	if _, dup := r.byName[d.Name]; dup {
		return &errcode.E{C: errcode.DuplicateModule, Op: "module.start", Msg: d.Name}
	}
	d.ID = r.nextID
	r.nextID++
	r.byID[d.ID] = *d
	r.byName[d.Name] = d.ID
	return nil
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id uint32) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	return d, ok
}

// Participants returns the started modules that support shutdown, ordered
// by ID.
func (r *Registry) Participants() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		if d.SupportsShutdown {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close stops further registrations and returns the participants at that
// instant.
func (r *Registry) Close() []Descriptor {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.Participants()
}
