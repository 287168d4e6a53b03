package types

import "assettracker/bus"

// -----------------------------------------------------------------------------
// Modem
// -----------------------------------------------------------------------------

type ModemEventType uint8

const (
	ModemEvtLTEConnecting ModemEventType = iota
	ModemEvtLTEConnected
	ModemEvtLTEDisconnected
)

var modemEventNames = []string{"lte_connecting", "lte_connected", "lte_disconnected"}

func (t ModemEventType) String() string { return name(modemEventNames, int(t)) }

// Matches reports whether ev is a ModemEvent of type t.
func (t ModemEventType) Matches(ev Event) bool {
	e, ok := ev.(ModemEvent)
	return ok && e.Type == t
}

// ModemEvent reports connectivity changes. It carries no payload.
type ModemEvent struct {
	Type ModemEventType
}

func (e ModemEvent) Topic() bus.Topic { return topic(FamilyModem, e.Type.String()) }
func (ModemEvent) Family() Family     { return FamilyModem }
func (ModemEvent) sealed()            {}

// -----------------------------------------------------------------------------
// Cloud
// -----------------------------------------------------------------------------

type CloudEventType uint8

const (
	CloudEvtConnecting CloudEventType = iota
	CloudEvtConnected
	CloudEvtDisconnected
	CloudEvtUserAssociationRequest
	CloudEvtUserAssociated
	CloudEvtFOTAStart
	CloudEvtFOTADone
	CloudEvtFOTAError
)

var cloudEventNames = []string{
	"connecting",
	"connected",
	"disconnected",
	"user_association_request",
	"user_associated",
	"fota_start",
	"fota_done",
	"fota_error",
}

func (t CloudEventType) String() string { return name(cloudEventNames, int(t)) }

// Matches reports whether ev is a CloudEvent of type t.
func (t CloudEventType) Matches(ev Event) bool {
	e, ok := ev.(CloudEvent)
	return ok && e.Type == t
}

// CloudEvent reports remote-service and firmware-update progress.
type CloudEvent struct {
	Type CloudEventType
}

func (e CloudEvent) Topic() bus.Topic { return topic(FamilyCloud, e.Type.String()) }
func (CloudEvent) Family() Family     { return FamilyCloud }
func (CloudEvent) sealed()            {}

// -----------------------------------------------------------------------------
// Location
// -----------------------------------------------------------------------------

type LocationEventType uint8

const (
	LocationEvtActive LocationEventType = iota
	LocationEvtInactive
)

var locationEventNames = []string{"active", "inactive"}

func (t LocationEventType) String() string { return name(locationEventNames, int(t)) }

// Matches reports whether ev is a LocationEvent of type t.
func (t LocationEventType) Matches(ev Event) bool {
	e, ok := ev.(LocationEvent)
	return ok && e.Type == t
}

// LocationEvent reports whether a location search is in progress.
type LocationEvent struct {
	Type LocationEventType
}

func (e LocationEvent) Topic() bus.Topic { return topic(FamilyLocation, e.Type.String()) }
func (LocationEvent) Family() Family     { return FamilyLocation }
func (LocationEvent) sealed()            {}
