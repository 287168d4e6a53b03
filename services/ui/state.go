package ui

import "fmt"

// State is the top level of the UI module's state machine.
type State uint8

const (
	StateInit State = iota
	StateRunning
	StateLTEConnecting
	StateCloudConnecting
	StateCloudAssociating
	StateFOTAUpdating
	// StateShutdown is terminal.
	StateShutdown
)

var stateNames = [...]string{
	"STATE_INIT",
	"STATE_RUNNING",
	"STATE_LTE_CONNECTING",
	"STATE_CLOUD_CONNECTING",
	"STATE_CLOUD_ASSOCIATING",
	"STATE_FOTA_UPDATING",
	"STATE_SHUTDOWN",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// SubState is only meaningful in StateRunning.
type SubState uint8

const (
	SubStateActive SubState = iota
	SubStatePassive
)

func (s SubState) String() string {
	switch s {
	case SubStateActive:
		return "SUB_STATE_ACTIVE"
	case SubStatePassive:
		return "SUB_STATE_PASSIVE"
	default:
		return "Unknown"
	}
}

// SubSubState is only meaningful in StateRunning.
type SubSubState uint8

const (
	SubSubStateLocationInactive SubSubState = iota
	SubSubStateLocationActive
)

func (s SubSubState) String() string {
	switch s {
	case SubSubStateLocationInactive:
		return "SUB_SUB_STATE_LOCATION_INACTIVE"
	case SubSubStateLocationActive:
		return "SUB_SUB_STATE_LOCATION_ACTIVE"
	default:
		return "Unknown"
	}
}

// Composite is the full state tuple. The zero value is the initial state
// (INIT, ACTIVE, LOCATION_INACTIVE).
type Composite struct {
	State       State
	SubState    SubState
	SubSubState SubSubState
}

func (c Composite) String() string {
	return fmt.Sprintf("(%s, %s, %s)", c.State, c.SubState, c.SubSubState)
}
