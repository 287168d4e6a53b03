package types

import "assettracker/bus"

// AppEventType enumerates application module events.
type AppEventType uint8

const (
	// AppEvtStart is broadcast once when the system starts. Every module
	// leaves its init state on it.
	AppEvtStart AppEventType = iota
	// AppEvtDataGet asks modules to sample and publish their data.
	AppEvtDataGet
	// AppEvtShutdownReady acknowledges a shutdown request.
	AppEvtShutdownReady
)

var appEventNames = []string{"start", "data_get", "shutdown_ready"}

func (t AppEventType) String() string { return name(appEventNames, int(t)) }

// Matches reports whether ev is an AppEvent of type t.
func (t AppEventType) Matches(ev Event) bool {
	e, ok := ev.(AppEvent)
	return ok && e.Type == t
}

type AppEvent struct {
	Type     AppEventType
	moduleID uint32
}

func NewAppEvent(t AppEventType) AppEvent { return AppEvent{Type: t} }

func NewAppShutdownReady(moduleID uint32) AppEvent {
	return AppEvent{Type: AppEvtShutdownReady, moduleID: moduleID}
}

func (e AppEvent) Topic() bus.Topic { return topic(FamilyApp, e.Type.String()) }
func (AppEvent) Family() Family     { return FamilyApp }
func (AppEvent) sealed()            {}

func (e AppEvent) ShutdownReady() (uint32, bool) {
	if e.Type != AppEvtShutdownReady {
		return 0, false
	}
	return e.moduleID, true
}
