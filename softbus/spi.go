// Package softbus bit-bangs serial buses over fabric pins so serial memories
// can be programmed from the same socket as parallel ones.
//
// SPI implements tinygo.org/x/drivers.SPI and I2C implements
// tinygo.org/x/drivers.I2C, so existing tinygo drivers can run on top of
// them. Both commit every line change immediately; throughput is bounded by
// expander transactions, not by the optional half-period delay.
package softbus

import (
	"errors"

	"github.com/e2thenegpii/gumbi/fabric"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/timex"
)

var (
	ErrPins  = errors.New("softbus: required line missing")
	ErrNoAck = errors.New("softbus: no acknowledge")
)

// SPIPins wires an SPI mode 0 bus. Polarity is per line; CLK is asserted
// while the clock is high in mode 0 terms.
type SPIPins struct {
	SS, CLK, MOSI, MISO types.CtrlPin
}

// SPI is a mode 0, MSB-first software SPI controller.
type SPI struct {
	f    *fabric.Fabric
	p    SPIPins
	clk  timex.Clock
	half uint32 // µs
}

// NewSPI returns a controller; call Configure before use.
func NewSPI(f *fabric.Fabric, p SPIPins, clk timex.Clock, halfPeriodMicros uint32) *SPI {
	if clk == nil {
		clk = timex.Real{}
	}
	return &SPI{f: f, p: p, clk: clk, half: halfPeriodMicros}
}

// Configure claims the lines, idles them (slave deselected, clock low) and
// commits.
func (s *SPI) Configure() error {
	f := s.f
	if !f.IsValid(s.p.CLK.Pin) || !f.IsValid(s.p.MOSI.Pin) {
		return ErrPins
	}
	for _, l := range []types.CtrlPin{s.p.SS, s.p.CLK, s.p.MOSI, s.p.MISO} {
		f.Assign(l)
	}
	out := []uint8{s.p.SS.Pin, s.p.CLK.Pin, s.p.MOSI.Pin}
	for _, p := range out {
		f.ConfigureDirection(p, types.Output)
	}
	f.ConfigureDirection(s.p.MISO.Pin, types.Input)
	f.SetLevel(s.p.SS.Pin, s.p.SS.Active.Level(false))
	f.SetLevel(s.p.CLK.Pin, s.p.CLK.Active.Level(false))
	f.SetLevel(s.p.MOSI.Pin, false)
	if err := f.CommitTargeted(out); err != nil {
		return err
	}
	return f.CommitTargetedDirections(append(out, s.p.MISO.Pin))
}

// Select asserts or releases slave-select.
func (s *SPI) Select(on bool) error {
	return s.f.Assert(s.p.SS, on)
}

// Transfer clocks one byte out on MOSI while sampling MISO.
func (s *SPI) Transfer(b byte) (byte, error) {
	var in byte
	for bit := 7; bit >= 0; bit-- {
		if err := s.f.SetLevelImmediate(s.p.MOSI.Pin, b&(1<<uint(bit)) != 0); err != nil {
			return in, err
		}
		s.clk.DelayMicros(s.half)
		if err := s.f.Assert(s.p.CLK, true); err != nil {
			return in, err
		}
		hi, err := s.f.GetLevel(s.p.MISO.Pin)
		if err != nil {
			return in, err
		}
		if hi {
			in |= 1 << uint(bit)
		}
		s.clk.DelayMicros(s.half)
		if err := s.f.Assert(s.p.CLK, false); err != nil {
			return in, err
		}
	}
	return in, nil
}

// Tx exchanges len(w) or len(r) bytes, whichever is longer. A nil w sends
// DummyByte; a nil r discards input. Slave-select is left to the caller.
func (s *SPI) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	for i := 0; i < n; i++ {
		out := byte(types.DummyByte)
		if i < len(w) {
			out = w[i]
		}
		in, err := s.Transfer(out)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = in
		}
	}
	return nil
}
