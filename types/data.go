package types

import "assettracker/bus"

type DataEventType uint8

const (
	// DataEvtConfigInit carries the device configuration loaded at start-up.
	DataEvtConfigInit DataEventType = iota
	// DataEvtConfigReady carries an updated device configuration.
	DataEvtConfigReady
	DataEvtDataSend
	DataEvtUIDataSend
	DataEvtDataSendBatch
	DataEvtCloudLocationDataSend
)

var dataEventNames = []string{
	"config_init",
	"config_ready",
	"data_send",
	"ui_data_send",
	"data_send_batch",
	"cloud_location_data_send",
}

func (t DataEventType) String() string { return name(dataEventNames, int(t)) }

// Matches reports whether ev is a DataEvent of type t.
func (t DataEventType) Matches(ev Event) bool {
	e, ok := ev.(DataEvent)
	return ok && e.Type == t
}

func (t DataEventType) carriesConfig() bool {
	return t == DataEvtConfigInit || t == DataEvtConfigReady
}

type DataEvent struct {
	Type   DataEventType
	cfg    DeviceConfig
	hasCfg bool
}

func NewDataEvent(t DataEventType) DataEvent { return DataEvent{Type: t} }

// NewDataConfigEvent builds a config-carrying event. Types that do not carry
// a configuration drop cfg.
func NewDataConfigEvent(t DataEventType, cfg DeviceConfig) DataEvent {
	if !t.carriesConfig() {
		return DataEvent{Type: t}
	}
	return DataEvent{Type: t, cfg: cfg, hasCfg: true}
}

func (e DataEvent) Topic() bus.Topic { return topic(FamilyData, e.Type.String()) }
func (DataEvent) Family() Family     { return FamilyData }
func (DataEvent) sealed()            {}

// Config returns the device configuration of a ConfigInit/ConfigReady event.
func (e DataEvent) Config() (DeviceConfig, bool) {
	if !e.Type.carriesConfig() || !e.hasCfg {
		return DeviceConfig{}, false
	}
	return e.cfg, true
}
