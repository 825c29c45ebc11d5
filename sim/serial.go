package sim

import "github.com/e2thenegpii/gumbi/types"

// SPISlave is a mode 0 SPI target. While selected it shifts Out onto MISO
// (DummyByte once Out is empty) and collects MOSI bytes into In.
type SPISlave struct {
	SS, CLK, MOSI, MISO types.CtrlPin

	Out     []byte
	In      []byte
	Selects int

	sel, clk bool
	bits     int
	in, cur  byte
}

func (s *SPISlave) level(c *Chain, p types.CtrlPin) bool {
	return p.Active.Asserted(c.Level(p.Pin))
}

func (s *SPISlave) next() byte {
	if len(s.Out) == 0 {
		return types.DummyByte
	}
	b := s.Out[0]
	s.Out = s.Out[1:]
	return b
}

func (s *SPISlave) drive(c *Chain) {
	c.Drive(s.MISO.Pin, s.cur&(1<<uint(7-s.bits)) != 0)
}

func (s *SPISlave) Changed(c *Chain) {
	sel := s.SS.Pin == types.UnusedPin || s.level(c, s.SS)
	clk := s.level(c, s.CLK)
	switch {
	case sel && !s.sel:
		s.Selects++
		s.bits, s.in = 0, 0
		s.cur = s.next()
		s.drive(c)
	case sel && clk && !s.clk:
		s.in <<= 1
		if c.Level(s.MOSI.Pin) {
			s.in |= 1
		}
		s.bits++
		if s.bits == 8 {
			s.In = append(s.In, s.in)
			s.bits, s.in = 0, 0
			s.cur = s.next()
		}
	case sel && !clk && s.clk:
		s.drive(c)
	}
	s.sel, s.clk = sel, clk
}

func (s *SPISlave) Sampled(*Chain, uint8, uint8) {}

type i2cPhase uint8

const (
	i2cIdle i2cPhase = iota
	i2cRecv
	i2cAckOut
	i2cSend
	i2cAckIn
)

// I2CSlave is an I2C memory with an AddrBytes-wide word address pointer,
// in the manner of 24-series EEPROMs.
type I2CSlave struct {
	SDA, SCL  uint8
	Addr      uint8
	AddrBytes int
	Mem       []byte

	Starts, Stops int

	phase    i2cPhase
	sda, scl bool
	bits     int
	shift    byte
	header   bool
	reading  bool
	ptrLeft  int
	ptr      int
	mack     bool
}

func (s *I2CSlave) release(c *Chain) { c.Drive(s.SDA, true) }
func (s *I2CSlave) pull(c *Chain)    { c.Drive(s.SDA, false) }

func (s *I2CSlave) sendBit(c *Chain) {
	var v byte
	if len(s.Mem) > 0 {
		v = s.Mem[s.ptr%len(s.Mem)]
	}
	c.Drive(s.SDA, v&(1<<uint(7-s.bits)) != 0)
}

func (s *I2CSlave) Changed(c *Chain) {
	sda, scl := c.Level(s.SDA), c.Level(s.SCL)
	switch {
	case scl && s.scl && s.sda && !sda:
		s.Starts++
		s.phase, s.bits, s.shift, s.header = i2cRecv, 0, 0, true
		s.release(c)
	case scl && s.scl && !s.sda && sda:
		s.Stops++
		s.phase = i2cIdle
		s.release(c)
	case scl && !s.scl:
		s.rising(sda)
	case !scl && s.scl:
		s.falling(c)
	}
	s.sda, s.scl = c.Level(s.SDA), c.Level(s.SCL)
}

func (s *I2CSlave) rising(sda bool) {
	switch s.phase {
	case i2cRecv:
		s.shift <<= 1
		if sda {
			s.shift |= 1
		}
		s.bits++
	case i2cSend:
		s.bits++
	case i2cAckIn:
		s.mack = !sda
	}
}

func (s *I2CSlave) falling(c *Chain) {
	switch s.phase {
	case i2cRecv:
		if s.bits < 8 {
			return
		}
		if s.header {
			if s.shift>>1 != s.Addr {
				s.phase = i2cIdle
				return
			}
			s.reading = s.shift&1 != 0
			if !s.reading {
				s.ptrLeft = s.AddrBytes
			}
			s.header = false
		} else if s.ptrLeft > 0 {
			if s.ptrLeft == s.AddrBytes {
				s.ptr = 0
			}
			s.ptr = s.ptr<<8 | int(s.shift)
			s.ptrLeft--
		} else if len(s.Mem) > 0 {
			s.Mem[s.ptr%len(s.Mem)] = s.shift
			s.ptr++
		}
		s.pull(c)
		s.phase = i2cAckOut
	case i2cAckOut:
		s.release(c)
		s.bits, s.shift = 0, 0
		if s.reading {
			s.phase = i2cSend
			s.sendBit(c)
		} else {
			s.phase = i2cRecv
		}
	case i2cSend:
		if s.bits < 8 {
			s.sendBit(c)
			return
		}
		s.release(c)
		s.ptr++
		s.phase = i2cAckIn
	case i2cAckIn:
		if !s.mack {
			s.phase = i2cIdle
			return
		}
		s.bits = 0
		s.phase = i2cSend
		s.sendBit(c)
	}
}

func (s *I2CSlave) Sampled(*Chain, uint8, uint8) {}
