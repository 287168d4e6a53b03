package types

import (
	"assettracker/bus"
	"assettracker/errcode"
)

type DebugEventType uint8

const (
	// DebugEvtEmulatorInitialized stands in for the modem's initialised
	// event on emulator builds, where the modem is absent.
	DebugEvtEmulatorInitialized DebugEventType = iota
	// DebugEvtEmulatorNetworkConnected: emulator builds are assumed to be
	// online.
	DebugEvtEmulatorNetworkConnected
	DebugEvtError
)

var debugEventNames = []string{"emulator_initialized", "emulator_network_connected", "error"}

func (t DebugEventType) String() string { return name(debugEventNames, int(t)) }

// Matches reports whether ev is a DebugEvent of type t.
func (t DebugEventType) Matches(ev Event) bool {
	e, ok := ev.(DebugEvent)
	return ok && e.Type == t
}

type DebugEvent struct {
	Type DebugEventType
	err  errcode.Code
}

func NewDebugEvent(t DebugEventType) DebugEvent { return DebugEvent{Type: t} }

func NewDebugError(cause errcode.Code) DebugEvent {
	return DebugEvent{Type: DebugEvtError, err: cause}
}

func (e DebugEvent) Topic() bus.Topic { return topic(FamilyDebug, e.Type.String()) }
func (DebugEvent) Family() Family     { return FamilyDebug }
func (DebugEvent) sealed()            {}

func (e DebugEvent) Failure() (errcode.Code, bool) {
	if e.Type != DebugEvtError {
		return "", false
	}
	return e.err, true
}
