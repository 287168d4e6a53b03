package types

import (
	"assettracker/bus"
	"assettracker/errcode"
)

type UIEventType uint8

const (
	UIEvtButtonDataReady UIEventType = iota
	UIEvtShutdownReady
	UIEvtError
)

var uiEventNames = []string{"button_data_ready", "shutdown_ready", "error"}

func (t UIEventType) String() string { return name(uiEventNames, int(t)) }

// Matches reports whether ev is a UIEvent of type t.
func (t UIEventType) Matches(ev Event) bool {
	e, ok := ev.(UIEvent)
	return ok && e.Type == t
}

// ButtonData describes a button press.
type ButtonData struct {
	Number int
	// Timestamp is milliseconds since boot.
	Timestamp int64
}

type UIEvent struct {
	Type     UIEventType
	button   ButtonData
	moduleID uint32
	err      errcode.Code
}

func NewUIButton(b ButtonData) UIEvent {
	return UIEvent{Type: UIEvtButtonDataReady, button: b}
}

func NewUIShutdownReady(moduleID uint32) UIEvent {
	return UIEvent{Type: UIEvtShutdownReady, moduleID: moduleID}
}

func NewUIError(cause errcode.Code) UIEvent {
	return UIEvent{Type: UIEvtError, err: cause}
}

func (e UIEvent) Topic() bus.Topic { return topic(FamilyUI, e.Type.String()) }
func (UIEvent) Family() Family     { return FamilyUI }
func (UIEvent) sealed()            {}

func (e UIEvent) Button() (ButtonData, bool) {
	if e.Type != UIEvtButtonDataReady {
		return ButtonData{}, false
	}
	return e.button, true
}

func (e UIEvent) ShutdownReady() (uint32, bool) {
	if e.Type != UIEvtShutdownReady {
		return 0, false
	}
	return e.moduleID, true
}

func (e UIEvent) Failure() (errcode.Code, bool) {
	if e.Type != UIEvtError {
		return "", false
	}
	return e.err, true
}
