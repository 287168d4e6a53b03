package types

import "assettracker/bus"

// ShutdownReason tags a shutdown request.
type ShutdownReason uint8

const (
	ReasonGeneric ShutdownReason = iota
	ReasonFOTAUpdate
)

var shutdownReasonNames = []string{"generic", "fota_update"}

func (r ShutdownReason) String() string { return name(shutdownReasonNames, int(r)) }

// Valid reports whether r is a known reason.
func (r ShutdownReason) Valid() bool { return int(r) < len(shutdownReasonNames) }

type UtilEventType uint8

const (
	// UtilEvtShutdownRequest asks every shutdown-capable module to
	// acknowledge and stop.
	UtilEvtShutdownRequest UtilEventType = iota
)

var utilEventNames = []string{"shutdown_request"}

func (t UtilEventType) String() string { return name(utilEventNames, int(t)) }

// Matches reports whether ev is a UtilEvent of type t.
func (t UtilEventType) Matches(ev Event) bool {
	e, ok := ev.(UtilEvent)
	return ok && e.Type == t
}

type UtilEvent struct {
	Type   UtilEventType
	reason ShutdownReason
}

func NewShutdownRequest(reason ShutdownReason) UtilEvent {
	return UtilEvent{Type: UtilEvtShutdownRequest, reason: reason}
}

func (e UtilEvent) Topic() bus.Topic { return topic(FamilyUtil, e.Type.String()) }
func (UtilEvent) Family() Family     { return FamilyUtil }
func (UtilEvent) sealed()            {}

// Reason returns the reason of a shutdown request.
func (e UtilEvent) Reason() (ShutdownReason, bool) {
	if e.Type != UtilEvtShutdownRequest {
		return 0, false
	}
	return e.reason, true
}
