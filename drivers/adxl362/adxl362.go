// Package adxl362 provides a register-level driver for the ADXL362
// ultra-low-power 3-axis accelerometer over SPI.
//
// The device is used in linked loop mode: activity and inactivity detection
// alternate, and the ACT/INACT status bits (optionally mapped to INT1) tell
// the host which edge happened.
//
//	d := adxl362.New(spi, cs)
//	err := d.Configure(adxl362.Config{Range: adxl362.Range2G})
//	err = d.SetActivityThreshold(raw)  // 11-bit, below ThresholdMax
//	err = d.EnableTriggers(true)
//
// Thresholds and timeouts are raw register values; converting from m/s² and
// seconds is the caller's business (see Range.MaxMS2 and ODR.TimeoutMax).
package adxl362

import (
	"time"

	"tinygo.org/x/drivers"

	"assettracker/errcode"
)

// Pin is the chip-select line. machine.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// SPI commands.
const (
	cmdWrite = 0x0A
	cmdRead  = 0x0B
)

// Registers.
const (
	regDevIDAD      = 0x00
	regStatus       = 0x0B
	regXDataL       = 0x0E
	regSoftReset    = 0x1F
	regThreshActL   = 0x20
	regTimeAct      = 0x22
	regThreshInactL = 0x23
	regTimeInactL   = 0x25
	regActInactCtl  = 0x27
	regIntMap1      = 0x2A
	regFilterCtl    = 0x2C
	regPowerCtl     = 0x2D
)

const (
	devIDAD   = 0xAD
	resetCode = 0x52

	statusAct   = 1 << 4
	statusInact = 1 << 5

	actEnable    = 1 << 0
	actRef       = 1 << 1
	inactEnable  = 1 << 2
	inactRef     = 1 << 3
	linkLoopMode = 3 << 4

	intAct   = 1 << 4
	intInact = 1 << 5

	measureMode = 0x02
)

// ThresholdMax is one past the largest activity/inactivity threshold.
const ThresholdMax = 2000

const standardGravity = 9.80665

// Errors carry an errcode so callers can forward them as bus causes.
var (
	ErrNotReady error = &errcode.E{C: errcode.NotReady, Op: "adxl362"}
	ErrProtocol error = &errcode.E{C: errcode.DriverFailure, Op: "adxl362", Msg: "protocol error"}
	ErrRange    error = &errcode.E{C: errcode.InvalidParams, Op: "adxl362", Msg: "value out of range"}
)

// Range is the measurement range.
type Range uint8

const (
	Range2G Range = iota
	Range4G
	Range8G
)

// MaxMS2 is the full-scale acceleration in m/s².
func (r Range) MaxMS2() float64 {
	switch r {
	case Range4G:
		return 39.2266
	case Range8G:
		return 78.4532
	default:
		return 19.6133
	}
}

// mgPerLSB is the data register sensitivity.
func (r Range) mgPerLSB() float64 {
	switch r {
	case Range4G:
		return 2
	case Range8G:
		return 4
	default:
		return 1
	}
}

// ODR is the output data rate.
type ODR uint8

const (
	ODR12_5 ODR = iota
	ODR25
	ODR50
	ODR100
	ODR200
	ODR400
)

// TimeoutMax is the longest inactivity time in seconds the 16-bit timer can
// hold at this rate.
func (o ODR) TimeoutMax() float64 {
	return 5242.88 / float64(uint(1)<<min(uint(o), 5))
}

type Config struct {
	Range Range
	// ODR defaults to 12.5 Hz.
	ODR ODR
	// ResetDelay is waited after the soft reset. Default 1 ms.
	ResetDelay time.Duration
}

// Device wraps an SPI connection to an ADXL362.
type Device struct {
	bus drivers.SPI
	cs  Pin

	cfg   Config
	ready bool
	buf   [8]byte
	rbuf  [8]byte
}

// New creates a driver instance. The SPI bus must already be configured for
// mode 0. New does not touch the device.
func New(bus drivers.SPI, cs Pin) *Device {
	return &Device{bus: bus, cs: cs}
}

// Configure resets the device, checks its identity and puts it in
// measurement mode with linked loop activity detection.
func (d *Device) Configure(cfg Config) error {
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = time.Millisecond
	}
	d.cfg = cfg
	d.ready = false

	if err := d.write(regSoftReset, resetCode); err != nil {
		return err
	}
	time.Sleep(cfg.ResetDelay)

	id, err := d.read1(regDevIDAD)
	if err != nil {
		return err
	}
	if id != devIDAD {
		return ErrProtocol
	}

	// Range in bits 7:6, ODR in bits 2:0.
	if err := d.write(regFilterCtl, byte(cfg.Range)<<6|byte(cfg.ODR)&0x07); err != nil {
		return err
	}
	if err := d.write(regTimeAct, 0); err != nil {
		return err
	}
	if err := d.write(regActInactCtl, actEnable|actRef|inactEnable|inactRef|linkLoopMode); err != nil {
		return err
	}
	if err := d.write(regPowerCtl, measureMode); err != nil {
		return err
	}
	d.ready = true
	return nil
}

// Ready reports whether Configure succeeded.
func (d *Device) Ready() bool { return d.ready }

// Config returns the active configuration.
func (d *Device) Config() Config { return d.cfg }

// SetActivityThreshold sets the 11-bit activity threshold.
func (d *Device) SetActivityThreshold(raw uint16) error {
	return d.write11(regThreshActL, raw)
}

// SetInactivityThreshold sets the 11-bit inactivity threshold.
func (d *Device) SetInactivityThreshold(raw uint16) error {
	return d.write11(regThreshInactL, raw)
}

// SetInactivityTime sets the inactivity timer in samples.
func (d *Device) SetInactivityTime(raw uint16) error {
	if !d.ready {
		return ErrNotReady
	}
	return d.write(regTimeInactL, byte(raw), byte(raw>>8))
}

// EnableTriggers maps (or unmaps) activity and inactivity to INT1.
func (d *Device) EnableTriggers(on bool) error {
	if !d.ready {
		return ErrNotReady
	}
	var v byte
	if on {
		v = intAct | intInact
	}
	return d.write(regIntMap1, v)
}

// Pending reads STATUS and reports latched activity/inactivity edges.
// Reading STATUS clears them on the device.
func (d *Device) Pending() (activity, inactivity bool, err error) {
	if !d.ready {
		return false, false, ErrNotReady
	}
	st, err := d.read1(regStatus)
	if err != nil {
		return false, false, err
	}
	return st&statusAct != 0, st&statusInact != 0, nil
}

// Acceleration reads one XYZ sample in m/s².
func (d *Device) Acceleration() (x, y, z float64, err error) {
	if !d.ready {
		return 0, 0, 0, ErrNotReady
	}
	data, err := d.read(regXDataL, 6)
	if err != nil {
		return 0, 0, 0, err
	}
	scale := d.cfg.Range.mgPerLSB() * standardGravity / 1000
	x = float64(sample12(data[0], data[1])) * scale
	y = float64(sample12(data[2], data[3])) * scale
	z = float64(sample12(data[4], data[5])) * scale
	return x, y, z, nil
}

// sample12 decodes a sign-extended 12-bit little-endian sample.
func sample12(lo, hi byte) int16 {
	v := int16(uint16(hi)<<8 | uint16(lo))
	return v << 4 >> 4
}

func (d *Device) write11(reg byte, raw uint16) error {
	if !d.ready {
		return ErrNotReady
	}
	if raw >= ThresholdMax {
		return ErrRange
	}
	return d.write(reg, byte(raw), byte(raw>>8)&0x07)
}

func (d *Device) write(reg byte, vals ...byte) error {
	w := d.buf[:2+len(vals)]
	w[0], w[1] = cmdWrite, reg
	copy(w[2:], vals)

	d.cs.Low()
	err := d.bus.Tx(w, nil)
	d.cs.High()
	return err
}

func (d *Device) read1(reg byte) (byte, error) {
	b, err := d.read(reg, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// read returns a view into the receive buffer, valid until the next call.
func (d *Device) read(reg byte, n int) ([]byte, error) {
	w := d.buf[:2+n]
	r := d.rbuf[:2+n]
	w[0], w[1] = cmdRead, reg
	for i := 2; i < len(w); i++ {
		w[i] = 0
	}

	d.cs.Low()
	err := d.bus.Tx(w, r)
	d.cs.High()
	if err != nil {
		return nil, err
	}
	return r[2:], nil
}
