package types

import (
	"assettracker/bus"
	"assettracker/errcode"
)

type SensorEventType uint8

const (
	// SensorEvtMovementActivityDetected: acceleration exceeded the
	// activity threshold.
	SensorEvtMovementActivityDetected SensorEventType = iota
	// SensorEvtMovementInactivityDetected: acceleration stayed below the
	// inactivity threshold for the configured timeout.
	SensorEvtMovementInactivityDetected
	SensorEvtFuelGaugeReady
	SensorEvtFuelGaugeNotSupported
	SensorEvtShutdownReady
	SensorEvtError
)

var sensorEventNames = []string{
	"movement_activity_detected",
	"movement_inactivity_detected",
	"fuel_gauge_ready",
	"fuel_gauge_not_supported",
	"shutdown_ready",
	"error",
}

func (t SensorEventType) String() string { return name(sensorEventNames, int(t)) }

// Matches reports whether ev is a SensorEvent of type t.
func (t SensorEventType) Matches(ev Event) bool {
	e, ok := ev.(SensorEvent)
	return ok && e.Type == t
}

// AccelAxisCount is the number of accelerometer axes.
const AccelAxisCount = 3

// AccelData is one acceleration sample in m/s².
type AccelData struct {
	Timestamp int64
	Values    [AccelAxisCount]float64
}

// BatteryData is one fuel gauge sample.
type BatteryData struct {
	Timestamp int64
	Level     int // percent
}

type SensorEvent struct {
	Type     SensorEventType
	accel    AccelData
	battery  BatteryData
	moduleID uint32
	err      errcode.Code
}

func NewSensorEvent(t SensorEventType) SensorEvent { return SensorEvent{Type: t} }

// NewSensorMovement builds an activity or inactivity event. Any other type
// drops the sample.
func NewSensorMovement(t SensorEventType, a AccelData) SensorEvent {
	ev := SensorEvent{Type: t}
	if t.isMovement() {
		ev.accel = a
	}
	return ev
}

func NewSensorBattery(b BatteryData) SensorEvent {
	return SensorEvent{Type: SensorEvtFuelGaugeReady, battery: b}
}

func NewSensorShutdownReady(moduleID uint32) SensorEvent {
	return SensorEvent{Type: SensorEvtShutdownReady, moduleID: moduleID}
}

func NewSensorError(cause errcode.Code) SensorEvent {
	return SensorEvent{Type: SensorEvtError, err: cause}
}

func (t SensorEventType) isMovement() bool {
	return t == SensorEvtMovementActivityDetected || t == SensorEvtMovementInactivityDetected
}

func (e SensorEvent) Topic() bus.Topic { return topic(FamilySensor, e.Type.String()) }
func (SensorEvent) Family() Family     { return FamilySensor }
func (SensorEvent) sealed()            {}

func (e SensorEvent) Accel() (AccelData, bool) {
	if !e.Type.isMovement() {
		return AccelData{}, false
	}
	return e.accel, true
}

func (e SensorEvent) Battery() (BatteryData, bool) {
	if e.Type != SensorEvtFuelGaugeReady {
		return BatteryData{}, false
	}
	return e.battery, true
}

func (e SensorEvent) ShutdownReady() (uint32, bool) {
	if e.Type != SensorEvtShutdownReady {
		return 0, false
	}
	return e.moduleID, true
}

func (e SensorEvent) Failure() (errcode.Code, bool) {
	if e.Type != SensorEvtError {
		return "", false
	}
	return e.err, true
}
