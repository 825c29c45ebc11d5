package fabric

import (
	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/types"
)

// IsOutput reports the shadow direction of p.
func (f *Fabric) IsOutput(p uint8) bool {
	pin := f.pins[p]
	return f.dev[pin.Chip].regs[mcp23s17.DirectionRegister(pin.Reg)]&pin.mask() == 0
}

// IsHigh reports the shadow output latch of p.
func (f *Fabric) IsHigh(p uint8) bool {
	pin := f.pins[p]
	return f.dev[pin.Chip].regs[pin.Reg]&pin.mask() != 0
}

// ConfigureDirection sets p's shadow direction. It reports whether the
// shadow changed; an invalid pin or an unchanged direction is a no-op.
func (f *Fabric) ConfigureDirection(p uint8, dir types.Direction) bool {
	if !f.IsValid(p) {
		return false
	}
	pin := f.pins[p]
	reg := &f.dev[pin.Chip].regs[mcp23s17.DirectionRegister(pin.Reg)]
	switch {
	case dir == types.Input && f.IsOutput(p):
		*reg |= pin.mask()
	case dir == types.Output && !f.IsOutput(p):
		*reg &^= pin.mask()
	default:
		return false
	}
	return true
}

// ConfigureDirections applies dir to every pin in ps.
func (f *Fabric) ConfigureDirections(ps []uint8, dir types.Direction) {
	for _, p := range ps {
		f.ConfigureDirection(p, dir)
	}
}

// SetLevel sets p's shadow output latch and reports whether it changed.
func (f *Fabric) SetLevel(p uint8, high bool) bool {
	if !f.IsValid(p) || f.IsHigh(p) == high {
		return false
	}
	pin := f.pins[p]
	if high {
		f.dev[pin.Chip].regs[pin.Reg] |= pin.mask()
	} else {
		f.dev[pin.Chip].regs[pin.Reg] &^= pin.mask()
	}
	return true
}

// SetLevels applies one level to every pin in ps.
func (f *Fabric) SetLevels(ps []uint8, high bool) {
	for _, p := range ps {
		f.SetLevel(p, high)
	}
}

// SetValue drives bit i of v onto ps[i] in the shadow.
func (f *Fabric) SetValue(ps []uint8, v uint32) {
	for i, p := range ps {
		if i >= 32 {
			break
		}
		f.SetLevel(p, v&(1<<uint(i)) != 0)
	}
}

// Commit writes one shadow register to its chip.
func (f *Fabric) Commit(chip, reg uint8) error {
	if err := f.bus.WriteRegister(chip, reg, f.dev[chip].regs[reg]); err != nil {
		return errcode.Wrap(errcode.Bus, "fabric.commit", err)
	}
	return nil
}

// SetLevelImmediate sets p and commits its latch register if it changed.
func (f *Fabric) SetLevelImmediate(p uint8, high bool) error {
	if !f.SetLevel(p, high) {
		return nil
	}
	pin := f.pins[p]
	return f.Commit(pin.Chip, pin.Reg)
}

// ConfigureDirectionImmediate sets p's direction and commits its direction
// register if it changed.
func (f *Fabric) ConfigureDirectionImmediate(p uint8, dir types.Direction) error {
	if !f.ConfigureDirection(p, dir) {
		return nil
	}
	pin := f.pins[p]
	return f.Commit(pin.Chip, mcp23s17.DirectionRegister(pin.Reg))
}

// CommitTargeted commits the latch registers holding ps, once per distinct
// (chip, register) pair.
func (f *Fabric) CommitTargeted(ps []uint8) error {
	return f.commitTargeted(ps, false)
}

// CommitTargetedDirections is CommitTargeted for the direction registers.
func (f *Fabric) CommitTargetedDirections(ps []uint8) error {
	return f.commitTargeted(ps, true)
}

func (f *Fabric) commitTargeted(ps []uint8, dir bool) error {
	var done [mcp23s17.MaxDevices]uint8 // bit 0: bank A, bit 1: bank B
	for _, p := range ps {
		if int(p) >= f.count {
			continue
		}
		pin := f.pins[p]
		bank := uint8(1)
		if pin.Reg == mcp23s17.GPIOB {
			bank = 2
		}
		if done[pin.Chip]&bank != 0 {
			continue
		}
		done[pin.Chip] |= bank
		reg := pin.Reg
		if dir {
			reg = mcp23s17.DirectionRegister(reg)
		}
		if err := f.Commit(pin.Chip, reg); err != nil {
			return err
		}
	}
	return nil
}

// CommitDirections commits both direction registers on every chip.
func (f *Fabric) CommitDirections() error {
	return f.commitPair(mcp23s17.IODIRA, mcp23s17.IODIRB)
}

// CommitLevels commits both latch registers on every chip.
func (f *Fabric) CommitLevels() error {
	return f.commitPair(mcp23s17.GPIOA, mcp23s17.GPIOB)
}

func (f *Fabric) commitPair(a, b uint8) error {
	for c := 0; c < f.chips; c++ {
		if err := f.Commit(uint8(c), a); err != nil {
			return err
		}
		if err := f.Commit(uint8(c), b); err != nil {
			return err
		}
	}
	return nil
}

// GetLevel returns p's level: the shadow latch for outputs, a live read for
// inputs. Invalid pins read low.
func (f *Fabric) GetLevel(p uint8) (bool, error) {
	if !f.IsValid(p) {
		return false, nil
	}
	if f.IsOutput(p) {
		return f.IsHigh(p), nil
	}
	pin := f.pins[p]
	v, err := f.bus.ReadRegister(pin.Chip, pin.Reg)
	if err != nil {
		return false, errcode.Wrap(errcode.Bus, "fabric.get", err)
	}
	return v&pin.mask() != 0, nil
}

// SampleTargeted reads the pins in ps live and returns bit i set when ps[i]
// is high. Each distinct (chip, register) pair is read once.
func (f *Fabric) SampleTargeted(ps []uint8) (uint32, error) {
	var (
		have [mcp23s17.MaxDevices]uint8
		val  [mcp23s17.MaxDevices][2]uint8
		out  uint32
	)
	for i, p := range ps {
		if i >= 32 {
			break
		}
		if int(p) >= f.count {
			continue
		}
		pin := f.pins[p]
		bank := 0
		if pin.Reg == mcp23s17.GPIOB {
			bank = 1
		}
		if have[pin.Chip]&(1<<bank) == 0 {
			v, err := f.bus.ReadRegister(pin.Chip, pin.Reg)
			if err != nil {
				return out, errcode.Wrap(errcode.Bus, "fabric.sample", err)
			}
			val[pin.Chip][bank] = v
			have[pin.Chip] |= 1 << bank
		}
		if val[pin.Chip][bank]&pin.mask() != 0 {
			out |= 1 << uint(i)
		}
	}
	return out, nil
}

// ReadBanks returns the live GPIOA and GPIOB values of chip.
func (f *Fabric) ReadBanks(chip uint8) (a, b uint8, err error) {
	if a, err = f.bus.ReadRegister(chip, mcp23s17.GPIOA); err != nil {
		return 0, 0, errcode.Wrap(errcode.Bus, "fabric.banks", err)
	}
	if b, err = f.bus.ReadRegister(chip, mcp23s17.GPIOB); err != nil {
		return 0, 0, errcode.Wrap(errcode.Bus, "fabric.banks", err)
	}
	return a, b, nil
}

// Assert drives control line c to its asserted (or deasserted) level,
// committing immediately. Absent lines are ignored.
func (f *Fabric) Assert(c types.CtrlPin, on bool) error {
	if !f.IsValid(c.Pin) {
		return nil
	}
	return f.SetLevelImmediate(c.Pin, c.Active.Level(on))
}

// Asserted samples control line c and resolves its polarity. Absent lines
// report false.
func (f *Fabric) Asserted(c types.CtrlPin) (bool, error) {
	if !f.IsValid(c.Pin) {
		return false, nil
	}
	lvl, err := f.GetLevel(c.Pin)
	if err != nil {
		return false, err
	}
	return c.Active.Asserted(lvl), nil
}
