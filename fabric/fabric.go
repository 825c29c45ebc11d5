// Package fabric maps the programmer's virtual pin numbers onto MCP23S17
// expander pins and keeps a shadow copy of every expander register.
//
// Setters only touch the shadow. Commit and its variants are the only calls
// that write to the expanders, so a caller can change many pins and pay for
// one transaction per distinct register. Setters given a pin that is not
// valid are no-ops; callers validate whole configurations up front with
// AreValid.
//
// A Fabric has a single owner at a time and is not safe for concurrent use.
package fabric

import (
	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/mathx"
)

// Expander is the register-level bus to the chained expanders.
// *mcp23s17.Device satisfies it.
type Expander interface {
	WriteRegister(addr, reg, val uint8) error
	ReadRegister(addr, reg uint8) (uint8, error)
}

// Resetter is implemented by expander buses with a shared reset line.
type Resetter interface {
	Enable()
	Disable()
}

// Pin locates one virtual pin.
type Pin struct {
	Chip   uint8 // expander hardware address
	Reg    uint8 // mcp23s17.GPIOA or mcp23s17.GPIOB
	Bit    uint8 // 0..7
	InUse  bool
	Active types.Polarity
}

func (p Pin) mask() uint8 { return 1 << p.Bit }

type chip struct {
	regs [mcp23s17.NumRegisters]uint8
}

// Fabric owns the pin table and the shadow registers.
type Fabric struct {
	bus   Expander
	chips int
	count int
	pins  [types.MaxPins]Pin
	dev   [mcp23s17.MaxDevices]chip
}

// New returns a fabric over bus with an empty pin table. Call Init to scan.
func New(bus Expander) *Fabric {
	f := &Fabric{bus: bus}
	f.resetShadow()
	return f
}

// Init brings the expanders out of reset, loads power-on defaults, counts the
// chips that answer, rebuilds the pin table and puts the chips back in reset.
func (f *Fabric) Init() error {
	if err := f.Enable(); err != nil {
		f.Disable()
		return err
	}
	n, err := f.countChips()
	f.Disable()
	if err != nil {
		return errcode.Wrap(errcode.Bus, "fabric.init", err)
	}
	f.chips = n
	f.count = n * mcp23s17.PinsPerDevice
	f.buildPins()
	if n == 0 {
		return errcode.New(errcode.NoExpanders, "fabric.init", "no I/O expanders found")
	}
	return nil
}

// Enable releases reset and loads every register on every address with its
// power-on value. All pins end up as inputs.
func (f *Fabric) Enable() error {
	if r, ok := f.bus.(Resetter); ok {
		r.Enable()
	}
	// Until HAEN is set every chip answers address 0, so this one write
	// enables hardware addressing everywhere.
	if err := f.bus.WriteRegister(0, mcp23s17.IOCON, mcp23s17.IOCONDefault); err != nil {
		return errcode.Wrap(errcode.Bus, "fabric.enable", err)
	}
	f.resetShadow()
	for c := uint8(0); c < mcp23s17.MaxDevices; c++ {
		for reg := uint8(0); reg < mcp23s17.NumRegisters; reg++ {
			if err := f.Commit(c, reg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Disable holds the expanders in reset.
func (f *Fabric) Disable() {
	if r, ok := f.bus.(Resetter); ok {
		r.Disable()
	}
}

func (f *Fabric) resetShadow() {
	for c := range f.dev {
		for reg := range f.dev[c].regs {
			f.dev[c].regs[reg] = mcp23s17.Default(uint8(reg))
		}
	}
}

func (f *Fabric) countChips() (int, error) {
	n := 0
	for ; n < mcp23s17.MaxDevices; n++ {
		v, err := f.bus.ReadRegister(uint8(n), mcp23s17.IOCON)
		if err != nil {
			return n, err
		}
		if v != mcp23s17.IOCONDefault {
			break
		}
	}
	return n, nil
}

func (f *Fabric) buildPins() {
	for i := range f.pins {
		f.pins[i] = Pin{}
	}
	for i := 0; i < f.count; i++ {
		p := Pin{
			Chip:   uint8(i / mcp23s17.PinsPerDevice),
			Bit:    uint8(i % mcp23s17.PinsPerDevice),
			InUse:  true,
			Active: types.ActiveHigh,
		}
		if p.Bit >= mcp23s17.PinsPerRegister {
			p.Bit -= mcp23s17.PinsPerRegister
			p.Reg = mcp23s17.GPIOB
		} else {
			p.Reg = mcp23s17.GPIOA
		}
		f.pins[i] = p
	}
}

// PinCount is the number of entries in the pin table (pin 0 included).
func (f *Fabric) PinCount() int { return f.count }

// ChipCount is the number of expanders the table spans.
func (f *Fabric) ChipCount() int { return f.chips }

// SetPinCount overrides the scanned pin count and rebuilds the table.
// It returns the count actually applied.
func (f *Fabric) SetPinCount(n int) int {
	f.count = mathx.Clamp(n, 0, types.MaxPins)
	f.chips = mathx.CeilDiv(f.count, mcp23s17.PinsPerDevice)
	f.buildPins()
	return f.count
}

// Pin returns the table entry for p.
func (f *Fabric) Pin(p uint8) (Pin, bool) {
	if int(p) >= f.count {
		return Pin{}, false
	}
	return f.pins[p], true
}

// IsValid reports whether p is nonzero, inside the table and in use.
func (f *Fabric) IsValid(p uint8) bool {
	return p > 0 && int(p) < f.count && f.pins[p].InUse
}

// AreValid reports whether every pin in ps is valid.
func (f *Fabric) AreValid(ps []uint8) bool {
	for _, p := range ps {
		if !f.IsValid(p) {
			return false
		}
	}
	return true
}

// SetInUse marks p as usable or reserved.
func (f *Fabric) SetInUse(p uint8, inUse bool) {
	if int(p) < f.count {
		f.pins[p].InUse = inUse
	}
}

// Assign records a control role's polarity in the pin table. Absent roles
// are ignored. Assert and Asserted take the polarity from their argument.
func (f *Fabric) Assign(c types.CtrlPin) {
	if f.IsValid(c.Pin) {
		f.pins[c.Pin].Active = c.Active
	}
}

// Shadow returns the last value written (or to be written) to reg on chip.
func (f *Fabric) Shadow(chip, reg uint8) uint8 {
	if chip >= mcp23s17.MaxDevices || reg >= mcp23s17.NumRegisters {
		return 0
	}
	return f.dev[chip].regs[reg]
}
