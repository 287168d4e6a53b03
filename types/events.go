// Package types holds the event families exchanged between tracker modules.
//
// Every family is a small value type whose Type field selects which payload,
// if any, is valid. Payload fields are unexported and only reachable through
// accessors that return ok=false when the Type does not select them, so a
// consumer cannot read a payload the discriminant does not carry.
package types

import (
	"assettracker/bus"
	"assettracker/errcode"
)

// Family names the producer of an event. It is the first token of every
// event topic.
type Family string

const (
	FamilyApp      Family = "app"
	FamilyData     Family = "data"
	FamilyModem    Family = "modem"
	FamilyCloud    Family = "cloud"
	FamilyLocation Family = "location"
	FamilyUtil     Family = "util"
	FamilyUI       Family = "ui"
	FamilySensor   Family = "sensor"
	FamilyDebug    Family = "debug"
)

// Filter returns the subscription filter selecting every event of the family.
func (f Family) Filter() bus.Topic { return bus.T(string(f), bus.MultiWild) }

// Event is the closed set of tracker events. Only types in this package
// implement it.
type Event interface {
	bus.Event
	Family() Family
	sealed()
}

// Cast narrows a bus event to the concrete family E. It fails closed: any
// other event, or a foreign bus.Event, yields ok=false.
func Cast[E Event](ev bus.Event) (E, bool) {
	e, ok := ev.(E)
	return e, ok
}

// ShutdownAck is implemented by families that can acknowledge a shutdown
// request.
type ShutdownAck interface {
	Event
	ShutdownReady() (moduleID uint32, ok bool)
}

// Failure is implemented by families that can report a module error.
type Failure interface {
	Event
	Failure() (cause errcode.Code, ok bool)
}

func topic(f Family, t string) bus.Topic { return bus.T(string(f), t) }

// name returns names[i] or "unknown" when i is out of range.
func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "unknown"
	}
	return names[i]
}
