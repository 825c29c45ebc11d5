package softbus

import (
	"github.com/e2thenegpii/gumbi/fabric"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/timex"
)

// I2C is a software I2C controller. Lines are open drain: a released line
// is an input pulled up by the target, a driven line is an output latched
// low. Clock stretching is not supported.
type I2C struct {
	f        *fabric.Fabric
	sda, scl uint8
	clk      timex.Clock
	half     uint32 // µs
}

// NewI2C returns a controller; call Configure before use.
func NewI2C(f *fabric.Fabric, sda, scl uint8, clk timex.Clock, halfPeriodMicros uint32) *I2C {
	if clk == nil {
		clk = timex.Real{}
	}
	return &I2C{f: f, sda: sda, scl: scl, clk: clk, half: halfPeriodMicros}
}

// Configure zeroes both latches and releases both lines.
func (b *I2C) Configure() error {
	f := b.f
	if !f.IsValid(b.sda) || !f.IsValid(b.scl) || b.sda == b.scl {
		return ErrPins
	}
	pins := []uint8{b.sda, b.scl}
	f.SetLevels(pins, false)
	if err := f.CommitTargeted(pins); err != nil {
		return err
	}
	f.ConfigureDirections(pins, types.Input)
	return f.CommitTargetedDirections(pins)
}

func (b *I2C) set(pin uint8, high bool) error {
	dir := types.Output
	if high {
		dir = types.Input
	}
	return b.f.ConfigureDirectionImmediate(pin, dir)
}

func (b *I2C) clockPulse() (sda bool, err error) {
	b.clk.DelayMicros(b.half)
	if err = b.set(b.scl, true); err != nil {
		return false, err
	}
	if sda, err = b.f.GetLevel(b.sda); err != nil {
		return false, err
	}
	b.clk.DelayMicros(b.half)
	return sda, b.set(b.scl, false)
}

// Start issues a START (or repeated START) and leaves SCL low.
func (b *I2C) Start() error {
	for _, step := range []struct {
		pin  uint8
		high bool
	}{{b.sda, true}, {b.scl, true}, {b.sda, false}, {b.scl, false}} {
		if err := b.set(step.pin, step.high); err != nil {
			return err
		}
		b.clk.DelayMicros(b.half)
	}
	return nil
}

// Stop issues a STOP and leaves both lines released.
func (b *I2C) Stop() error {
	for _, step := range []struct {
		pin  uint8
		high bool
	}{{b.sda, false}, {b.scl, true}, {b.sda, true}} {
		if err := b.set(step.pin, step.high); err != nil {
			return err
		}
		b.clk.DelayMicros(b.half)
	}
	return nil
}

// WriteByte shifts v out and reports whether the target acknowledged.
func (b *I2C) WriteByte(v byte) (bool, error) {
	for bit := 7; bit >= 0; bit-- {
		if err := b.set(b.sda, v&(1<<uint(bit)) != 0); err != nil {
			return false, err
		}
		if _, err := b.clockPulse(); err != nil {
			return false, err
		}
	}
	if err := b.set(b.sda, true); err != nil {
		return false, err
	}
	high, err := b.clockPulse()
	return !high, err
}

// ReadByte shifts a byte in and answers with ACK when ack is set, NACK
// otherwise.
func (b *I2C) ReadByte(ack bool) (byte, error) {
	if err := b.set(b.sda, true); err != nil {
		return 0, err
	}
	var v byte
	for i := 0; i < 8; i++ {
		high, err := b.clockPulse()
		if err != nil {
			return v, err
		}
		v <<= 1
		if high {
			v |= 1
		}
	}
	if err := b.set(b.sda, !ack); err != nil {
		return v, err
	}
	if _, err := b.clockPulse(); err != nil {
		return v, err
	}
	return v, b.set(b.sda, true)
}

// Tx writes w to the 7-bit target addr and then, after a repeated START,
// reads len(r) bytes. A missing acknowledge stops the bus and returns
// ErrNoAck.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if err := b.Start(); err != nil {
		return err
	}
	if len(w) > 0 || len(r) == 0 {
		if err := b.send(byte(addr<<1), w); err != nil {
			return b.abort(err)
		}
		if len(r) > 0 {
			if err := b.Start(); err != nil {
				return err
			}
		}
	}
	if len(r) > 0 {
		if err := b.send(byte(addr<<1)|1, nil); err != nil {
			return b.abort(err)
		}
		for i := range r {
			v, err := b.ReadByte(i < len(r)-1)
			if err != nil {
				return err
			}
			r[i] = v
		}
	}
	return b.Stop()
}

func (b *I2C) send(head byte, body []byte) error {
	for i := -1; i < len(body); i++ {
		v := head
		if i >= 0 {
			v = body[i]
		}
		ack, err := b.WriteByte(v)
		if err != nil {
			return err
		}
		if !ack {
			return ErrNoAck
		}
	}
	return nil
}

func (b *I2C) abort(err error) error {
	if serr := b.Stop(); serr != nil && err == ErrNoAck {
		return serr
	}
	return err
}
