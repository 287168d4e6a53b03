package sensor

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"assettracker/errcode"
	"assettracker/x/mathx"
)

// Accelerometer is the low-power accelerometer the ext-sensors layer drives.
// Thresholds and timer values are raw register units. adxl362.Device
// satisfies it.
type Accelerometer interface {
	Ready() bool
	SetActivityThreshold(raw uint16) error
	SetInactivityThreshold(raw uint16) error
	SetInactivityTime(raw uint16) error
	EnableTriggers(on bool) error
	Acceleration() (x, y, z float64, err error)
}

type ExtEventType uint8

const (
	ExtAccelActTrigger ExtEventType = iota
	ExtAccelInactTrigger
	ExtAccelError
)

// ExtEvent is delivered to the handler installed by Init.
type ExtEvent struct {
	Type   ExtEventType
	Values [3]float64
}

// ExtSensors is the boundary between the sensor module and its peripherals.
// Values are in SI units; each call fails with an errcode-carrying error.
type ExtSensors interface {
	Init(handler func(ExtEvent)) error
	SetThreshold(v float64, upper bool) error
	SetTimeout(seconds float64) error
	EnableTrigger(on bool) error
}

// Default limits for a ±2 g range at 12.5 Hz.
const (
	DefaultRangeMax   = 19.6133
	DefaultTimeoutMax = 5242.88

	thresholdSteps = 2000
	timeoutSteps   = 65536
)

type ExtOptions struct {
	// RangeMax is the full-scale acceleration in m/s².
	RangeMax float64
	// TimeoutMax is the longest inactivity time in seconds.
	TimeoutMax float64
	Log        *zap.Logger
}

// Ext implements ExtSensors on top of an Accelerometer.
type Ext struct {
	acc Accelerometer
	opt ExtOptions
	log *zap.Logger

	mu      sync.Mutex
	handler func(ExtEvent)
	armed   bool
}

var _ ExtSensors = (*Ext)(nil)

func NewExt(acc Accelerometer, opt ExtOptions) *Ext {
	if opt.RangeMax <= 0 {
		opt.RangeMax = DefaultRangeMax
	}
	if opt.TimeoutMax <= 0 {
		opt.TimeoutMax = DefaultTimeoutMax
	}
	if opt.Log == nil {
		opt.Log = zap.NewNop()
	}
	return &Ext{acc: acc, opt: opt, log: opt.Log.Named("ext_sensors")}
}

// Init installs handler. A device that is not ready does not fail Init; the
// handler receives an ExtAccelError instead.
func (e *Ext) Init(handler func(ExtEvent)) error {
	if handler == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "ext_sensors.init", Msg: "nil handler"}
	}
	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()

	if e.acc == nil || !e.acc.Ready() {
		e.log.Error("low-power accelerometer device is not ready")
		handler(ExtEvent{Type: ExtAccelError})
	}
	return nil
}

// SetThreshold sets the activity (upper) or inactivity threshold in m/s².
func (e *Ext) SetThreshold(v float64, upper bool) error {
	const op = "ext_sensors.threshold_set"
	if v <= 0 || v > e.opt.RangeMax || math.IsNaN(v) {
		e.log.Error("invalid threshold value", zap.Bool("activity", upper), zap.Float64("value", v))
		return &errcode.E{C: errcode.Unsupported, Op: op}
	}
	if e.acc == nil {
		return errNoDevice(op)
	}
	raw := ThresholdRaw(v, e.opt.RangeMax)

	var err error
	if upper {
		err = e.acc.SetActivityThreshold(raw)
	} else {
		err = e.acc.SetInactivityThreshold(raw)
	}
	if err != nil {
		e.log.Error("failed to set accelerometer threshold", zap.Error(err))
		return errcode.Wrap(errcode.MapDriverErr(err), op, err)
	}
	return nil
}

// SetTimeout sets the inactivity timeout in seconds.
func (e *Ext) SetTimeout(seconds float64) error {
	const op = "ext_sensors.inactivity_timeout_set"
	if seconds < 0 || seconds > e.opt.TimeoutMax || math.IsNaN(seconds) {
		e.log.Error("invalid timeout value", zap.Float64("value", seconds))
		return &errcode.E{C: errcode.Unsupported, Op: op}
	}
	if e.acc == nil {
		return errNoDevice(op)
	}
	if err := e.acc.SetInactivityTime(TimeoutRaw(seconds, e.opt.TimeoutMax)); err != nil {
		e.log.Error("failed to set accelerometer inactivity timeout", zap.Error(err))
		return errcode.Wrap(errcode.MapDriverErr(err), op, err)
	}
	return nil
}

// EnableTrigger arms or disarms movement detection.
func (e *Ext) EnableTrigger(on bool) error {
	if e.acc == nil {
		return errNoDevice("ext_sensors.trigger_set")
	}
	if err := e.acc.EnableTriggers(on); err != nil {
		e.log.Error("could not set accelerometer trigger", zap.Error(err))
		return errcode.Wrap(errcode.MapDriverErr(err), "ext_sensors.trigger_set", err)
	}
	e.mu.Lock()
	e.armed = on
	e.mu.Unlock()
	return nil
}

// Trigger is the interrupt entry point: the caller reports which edge fired.
// It samples the device and forwards the event while triggers are armed.
func (e *Ext) Trigger(activity bool) {
	e.mu.Lock()
	h, armed := e.handler, e.armed
	e.mu.Unlock()
	if h == nil || !armed || e.acc == nil {
		return
	}

	x, y, z, err := e.acc.Acceleration()
	if err != nil {
		e.log.Error("sample fetch error", zap.Error(err))
		return
	}
	ev := ExtEvent{Type: ExtAccelInactTrigger, Values: [3]float64{x, y, z}}
	if activity {
		ev.Type = ExtAccelActTrigger
	}
	h(ev)
}

func errNoDevice(op string) error {
	return &errcode.E{C: errcode.NotReady, Op: op, Msg: "no accelerometer"}
}

// ThresholdRaw converts m/s² into the 11-bit threshold register value
// relative to rangeMax.
func ThresholdRaw(v, rangeMax float64) uint16 {
	raw := int(v*(thresholdSteps/rangeMax) + 0.5)
	return uint16(mathx.Clamp(raw, 0, thresholdSteps-1))
}

// TimeoutRaw converts seconds into inactivity timer steps. The register is
// 16 bits wide, so the top step saturates at 65535.
func TimeoutRaw(seconds, timeoutMax float64) uint16 {
	raw := int(seconds/timeoutMax*timeoutSteps + 0.5)
	return uint16(mathx.Clamp(raw, 0, timeoutSteps-1))
}
