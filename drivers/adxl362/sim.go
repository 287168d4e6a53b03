package adxl362

import (
	"math"
	"sync"

	"tinygo.org/x/drivers"
)

var _ drivers.SPI = (*Sim)(nil)

// Sim is an in-memory ADXL362 register file behind the SPI interface. It
// lets the driver run on hosts without the part.
type Sim struct {
	mu   sync.Mutex
	regs [0x40]byte
	// Fail, when set, is returned from every transaction.
	Fail error
}

// NewSim returns a powered-on simulated device.
func NewSim() *Sim {
	s := &Sim{}
	s.reset()
	return s
}

func (s *Sim) reset() {
	s.regs = [0x40]byte{}
	s.regs[regDevIDAD] = devIDAD
	s.regs[0x01] = 0x1D // DEVID_MST
	s.regs[0x02] = 0xF2 // PARTID
	s.regs[regFilterCtl] = 0x13
}

// Tx executes one chip-select framed transaction.
func (s *Sim) Tx(w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}
	if len(w) < 2 {
		return ErrProtocol
	}
	reg := int(w[1])
	switch w[0] {
	case cmdWrite:
		for i, v := range w[2:] {
			s.store(reg+i, v)
		}
	case cmdRead:
		if len(r) != len(w) {
			return ErrProtocol
		}
		for i := 2; i < len(r); i++ {
			r[i] = s.load(reg + i - 2)
		}
		// STATUS edges clear on read.
		if reg <= regStatus && regStatus < reg+len(r)-2 {
			s.regs[regStatus] &^= statusAct | statusInact
		}
	default:
		return ErrProtocol
	}
	return nil
}

// Transfer is not used by the driver.
func (s *Sim) Transfer(b byte) (byte, error) { return 0, nil }

func (s *Sim) store(reg int, v byte) {
	if reg >= len(s.regs) {
		return
	}
	if reg == regSoftReset {
		if v == resetCode {
			s.reset()
		}
		return
	}
	s.regs[reg] = v
}

func (s *Sim) load(reg int) byte {
	if reg >= len(s.regs) {
		return 0
	}
	return s.regs[reg]
}

// Reg returns the raw register value.
func (s *Sim) Reg(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(int(reg))
}

// Move sets the current sample (m/s²) and latches the activity or
// inactivity edge.
func (s *Sim) Move(x, y, z float64, activity bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scale := Range(s.regs[regFilterCtl]>>6).mgPerLSB() * standardGravity / 1000
	for i, v := range [3]float64{x, y, z} {
		raw := int16(math.Round(v / scale))
		raw = max(min(raw, 2047), -2048)
		s.regs[regXDataL+2*i] = byte(raw)
		s.regs[regXDataL+2*i+1] = byte(uint16(raw)>>8) & 0x0F
		if raw < 0 {
			s.regs[regXDataL+2*i+1] |= 0xF0
		}
	}
	if activity {
		s.regs[regStatus] |= statusAct
	} else {
		s.regs[regStatus] |= statusInact
	}
}
