package ui

import (
	"go.uber.org/zap"

	"assettracker/services/module"
	"assettracker/types"
)

// Effect is a side action requested by a transition. The service applies
// effects in order before it handles the next message.
type Effect interface{ effect() }

// Emit publishes Event on the bus.
type Emit struct{ Event types.Event }

// StartModule registers the module and brings up its peripherals.
type StartModule struct{}

func (Emit) effect()        {}
func (StartModule) effect() {}

type handlerFunc func(m *machine, msg types.Event)

type handler struct {
	name string
	fn   handlerFunc
}

type runningKey struct {
	sub    SubState
	subSub SubSubState
}

var stateHandlers = map[State]handler{
	StateInit:             {"on_state_init", onStateInit},
	StateRunning:          {"on_state_running", onStateRunning},
	StateLTEConnecting:    {"on_state_lte_connecting", onStateLTEConnecting},
	StateCloudConnecting:  {"on_state_cloud_connecting", onStateCloudConnecting},
	StateCloudAssociating: {"on_state_cloud_associating", onStateCloudAssociating},
	StateFOTAUpdating:     {"on_state_fota_updating", onStateFOTAUpdating},
	StateShutdown:         {"on_state_shutdown", onStateShutdown},
}

var runningHandlers = map[runningKey]handler{
	{SubStateActive, SubSubStateLocationActive}:    {"on_active_location_active", onActiveLocationActive},
	{SubStateActive, SubSubStateLocationInactive}:  {"on_active_location_inactive", onActiveLocationInactive},
	{SubStatePassive, SubSubStateLocationActive}:   {"on_passive_location_active", onPassiveLocationActive},
	{SubStatePassive, SubSubStateLocationInactive}: {"on_passive_location_inactive", onPassiveLocationInactive},
}

var allStates = handler{"on_all_states", onAllStates}

type machine struct {
	st      Composite
	self    module.Descriptor
	effects []Effect
	log     *zap.Logger
	trace   func(handler string)
}

// Transition feeds one message to the state machine. The handler of the
// current composite state runs first; the all-states handler always runs
// after it and observes any transition the first one made. Transition does
// no I/O besides logging: side actions come back as effects.
func Transition(cur Composite, msg types.Event, self module.Descriptor, log *zap.Logger) (Composite, []Effect) {
	return transition(cur, msg, self, log, nil)
}

func transition(cur Composite, msg types.Event, self module.Descriptor, log *zap.Logger, trace func(string)) (Composite, []Effect) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &machine{st: cur, self: self, log: log, trace: trace}

	if h, ok := stateHandlers[m.st.State]; ok {
		m.run(h, msg)
	} else {
		m.log.Error("unknown state", zap.Uint8("state", uint8(m.st.State)))
	}
	m.run(allStates, msg)

	return m.st, m.effects
}

func (m *machine) run(h handler, msg types.Event) {
	if m.trace != nil {
		m.trace(h.name)
	}
	h.fn(m, msg)
}

func (m *machine) emit(e Effect) { m.effects = append(m.effects, e) }

// ---- setters (re-entering the current variant is a no-op) ----

func (m *machine) setState(s State) {
	if s == m.st.State {
		m.log.Debug("state", zap.Stringer("state", s))
		return
	}
	m.log.Debug("state transition", zap.Stringer("from", m.st.State), zap.Stringer("to", s))
	m.st.State = s
}

func (m *machine) setSubState(s SubState) {
	if s == m.st.SubState {
		m.log.Debug("sub state", zap.Stringer("state", s))
		return
	}
	m.log.Debug("sub state transition", zap.Stringer("from", m.st.SubState), zap.Stringer("to", s))
	m.st.SubState = s
}

func (m *machine) setSubSubState(s SubSubState) {
	if s == m.st.SubSubState {
		m.log.Debug("sub-sub state", zap.Stringer("state", s))
		return
	}
	m.log.Debug("sub-sub state transition", zap.Stringer("from", m.st.SubSubState), zap.Stringer("to", s))
	m.st.SubSubState = s
}

// ---- per-state handlers ----

func onStateInit(m *machine, msg types.Event) {
	if types.AppEvtStart.Matches(msg) {
		// Start failures are reported by the service; the state machine
		// advances regardless.
		m.emit(StartModule{})

		m.setState(StateRunning)
		m.setSubState(SubStateActive)
		m.setSubSubState(SubSubStateLocationInactive)
	}
}

func onStateRunning(m *machine, msg types.Event) {
	key := runningKey{m.st.SubState, m.st.SubSubState}
	if h, ok := runningHandlers[key]; ok {
		m.run(h, msg)
	} else if key.sub != SubStateActive && key.sub != SubStatePassive {
		m.log.Error("unknown sub state", zap.Uint8("sub_state", uint8(key.sub)))
	} else {
		m.log.Error("unknown sub-sub state", zap.Uint8("sub_sub_state", uint8(key.subSub)))
	}

	if types.LocationEvtActive.Matches(msg) || types.LocationEvtInactive.Matches(msg) {
		m.locationActivity(msg)
	}
}

func onActiveLocationActive(m *machine, msg types.Event) {
	if isCloudRelated(msg) {
		m.cloudActivity(msg)
	}
}

func onActiveLocationInactive(m *machine, msg types.Event) {
	if isCloudRelated(msg) {
		m.cloudActivity(msg)
	}
}

func onPassiveLocationActive(m *machine, msg types.Event) {
	if isCloudRelated(msg) {
		m.cloudActivity(msg)
	}
}

func onPassiveLocationInactive(m *machine, msg types.Event) {
	if isCloudRelated(msg) {
		m.cloudActivity(msg)
	}
}

func onStateLTEConnecting(m *machine, msg types.Event) {
	if types.ModemEvtLTEConnected.Matches(msg) {
		m.setState(StateRunning)
	}
}

func onStateCloudConnecting(m *machine, msg types.Event) {
	if types.CloudEvtConnected.Matches(msg) || types.CloudEvtUserAssociated.Matches(msg) {
		m.setState(StateRunning)
	}
}

func onStateCloudAssociating(m *machine, msg types.Event) {
	if types.CloudEvtUserAssociated.Matches(msg) {
		m.setState(StateRunning)
	}
}

func onStateFOTAUpdating(m *machine, msg types.Event) {
	if types.CloudEvtFOTADone.Matches(msg) || types.CloudEvtFOTAError.Matches(msg) {
		m.setState(StateRunning)
	}
}

// The shutdown state has no transition.
func onStateShutdown(*machine, types.Event) {}

// onAllStates holds the transitions valid from any state and is the only
// way into StateShutdown.
func onAllStates(m *machine, msg types.Event) {
	if m.st.State == StateShutdown {
		return
	}

	// INIT is left through the start command or a shutdown request only.
	operational := m.st.State != StateInit

	if operational && types.ModemEvtLTEConnecting.Matches(msg) {
		m.setState(StateLTEConnecting)
	}

	if operational && types.CloudEvtConnecting.Matches(msg) {
		m.setState(StateCloudConnecting)
	}

	if types.UtilEvtShutdownRequest.Matches(msg) {
		m.shutdown(msg)
		return
	}

	if types.DataEvtConfigInit.Matches(msg) || types.DataEvtConfigReady.Matches(msg) {
		if cfg, ok := msg.(types.DataEvent).Config(); ok {
			if cfg.ActiveMode {
				m.setSubState(SubStateActive)
			} else {
				m.setSubState(SubStatePassive)
			}
		}
	}

	if types.LocationEvtActive.Matches(msg) {
		m.setSubSubState(SubSubStateLocationActive)
	}

	if types.LocationEvtInactive.Matches(msg) {
		m.setSubSubState(SubSubStateLocationInactive)
	}

	if operational && types.CloudEvtFOTAStart.Matches(msg) {
		m.setState(StateFOTAUpdating)
	}

	if operational && types.CloudEvtUserAssociationRequest.Matches(msg) {
		m.setState(StateCloudAssociating)
	}
}

// shutdown acknowledges before entering the terminal state, so a
// coordinator on the same bus never sees the module gone without its ack.
func (m *machine) shutdown(msg types.Event) {
	reason, _ := msg.(types.UtilEvent).Reason()
	switch reason {
	case types.ReasonFOTAUpdate, types.ReasonGeneric:
	default:
		m.log.Error("unknown shutdown reason", zap.Uint8("reason", uint8(reason)))
	}

	m.emit(Emit{Event: types.NewUIShutdownReady(m.self.ID)})
	m.setState(StateShutdown)
}

// ---- extension points ----

func isCloudRelated(msg types.Event) bool {
	return types.DataEvtDataSend.Matches(msg) ||
		types.CloudEvtConnected.Matches(msg) ||
		types.DataEvtUIDataSend.Matches(msg) ||
		types.DataEvtDataSendBatch.Matches(msg) ||
		types.DataEvtCloudLocationDataSend.Matches(msg)
}

// cloudActivity is called for cloud traffic while running. Indications per
// sub-state (LED patterns) attach here; nothing is signalled yet.
func (m *machine) cloudActivity(types.Event) {}

// locationActivity is called for location search changes while running.
func (m *machine) locationActivity(types.Event) {}
