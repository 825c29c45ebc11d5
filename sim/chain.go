// Package sim models the programmer's hardware on the host: a chain of
// MCP23S17 expanders behind an SPI bus and a few targets wired to their pins.
// It backs the host build of the firmware and the end-to-end tests.
package sim

import (
	"errors"

	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
)

// ErrFrame is returned for SPI transactions that are not register accesses.
var ErrFrame = errors.New("sim: unsupported spi frame")

// Watcher observes the chain. Changed runs after every write that can move
// a pin; Sampled runs before a GPIO register is read.
type Watcher interface {
	Changed(c *Chain)
	Sampled(c *Chain, chip, reg uint8)
}

const (
	haen     = 1 << 3
	pulledUp = 0xFF
)

type expander struct {
	regs [mcp23s17.NumRegisters]uint8
	ext  [2]uint8 // levels on the wire when a pin is an input
}

// Chain is n expanders sharing one SPI bus and reset line.
type Chain struct {
	dev      []expander
	inReset  bool
	watchers []Watcher

	Writes int // register writes accepted
	Reads  int // register reads answered
}

// NewChain returns n expanders (at most mcp23s17.MaxDevices) out of reset
// with power-on register values and pulled-up inputs.
func NewChain(n int) *Chain {
	if n > mcp23s17.MaxDevices {
		n = mcp23s17.MaxDevices
	}
	c := &Chain{dev: make([]expander, n)}
	for i := range c.dev {
		c.powerOn(i)
	}
	return c
}

func (c *Chain) powerOn(i int) {
	d := &c.dev[i]
	for reg := range d.regs {
		d.regs[reg] = 0
	}
	d.regs[mcp23s17.IODIRA] = 0xFF
	d.regs[mcp23s17.IODIRB] = 0xFF
	d.ext = [2]uint8{pulledUp, pulledUp}
}

// Chips is the number of expanders on the chain.
func (c *Chain) Chips() int { return len(c.dev) }

// Attach adds a watcher.
func (c *Chain) Attach(w Watcher) { c.watchers = append(c.watchers, w) }

// ResetPin returns the chain's active-low reset input.
func (c *Chain) ResetPin() *ResetLine { return &ResetLine{c: c} }

// ResetLine is the shared reset input.
type ResetLine struct{ c *Chain }

func (r *ResetLine) Set(high bool) {
	c := r.c
	if !high && !c.inReset {
		for i := range c.dev {
			c.powerOn(i)
		}
		c.changed()
	}
	c.inReset = !high
}

// InReset reports whether the reset line is held.
func (c *Chain) InReset() bool { return c.inReset }

// Tx handles one register access frame.
func (c *Chain) Tx(w, r []byte) error {
	if len(w) != 3 || w[0]&0xF0 != 0x40 {
		return ErrFrame
	}
	addr := (w[0] >> 1) & 0x07
	read := w[0]&1 != 0
	reg := w[1]
	if reg >= mcp23s17.NumRegisters {
		return ErrFrame
	}
	if c.inReset {
		if len(r) == 3 {
			r[0], r[1], r[2] = 0, 0, 0
		}
		return nil
	}
	if read {
		var v uint8
		if i, ok := c.match(addr); ok {
			v = c.read(i, reg)
			c.Reads++
		}
		if len(r) == 3 {
			r[0], r[1], r[2] = 0, 0, v
		}
		return nil
	}
	hit := false
	for i := range c.dev {
		if c.addressed(i, addr) {
			c.write(i, reg, w[2])
			hit = true
		}
	}
	if hit {
		c.Writes++
		c.changed()
	}
	return nil
}

// Transfer is not used by the expanders.
func (c *Chain) Transfer(b byte) (byte, error) { return 0, ErrFrame }

// Devices without hardware addressing enabled answer every address.
func (c *Chain) addressed(i int, addr uint8) bool {
	return c.dev[i].regs[mcp23s17.IOCON]&haen == 0 || int(addr) == i
}

func (c *Chain) match(addr uint8) (int, bool) {
	for i := range c.dev {
		if c.addressed(i, addr) {
			return i, true
		}
	}
	return 0, false
}

func (c *Chain) write(i int, reg, v uint8) {
	d := &c.dev[i]
	switch reg {
	case mcp23s17.IOCON, mcp23s17.IOCONB:
		d.regs[mcp23s17.IOCON] = v
		d.regs[mcp23s17.IOCONB] = v
	case mcp23s17.GPIOA, mcp23s17.OLATA:
		d.regs[mcp23s17.OLATA] = v
	case mcp23s17.GPIOB, mcp23s17.OLATB:
		d.regs[mcp23s17.OLATB] = v
	case mcp23s17.INTFA, mcp23s17.INTFB, mcp23s17.INTCAPA, mcp23s17.INTCAPB:
	default:
		d.regs[reg] = v
	}
}

func (c *Chain) read(i int, reg uint8) uint8 {
	d := &c.dev[i]
	switch reg {
	case mcp23s17.GPIOA, mcp23s17.GPIOB:
		for _, w := range c.watchers {
			w.Sampled(c, uint8(i), reg)
		}
		bank := int(reg - mcp23s17.GPIOA)
		dir := d.regs[mcp23s17.IODIRA+bank]
		return d.regs[mcp23s17.OLATA+bank]&^dir | d.ext[bank]&dir
	}
	return d.regs[reg]
}

func (c *Chain) changed() {
	for _, w := range c.watchers {
		w.Changed(c)
	}
}

// Register returns a raw register value.
func (c *Chain) Register(chip int, reg uint8) uint8 { return c.dev[chip].regs[reg] }

func locate(pin uint8) (chip, bank int, mask uint8) {
	return int(pin) / 16, int(pin) % 16 / 8, 1 << (pin % 8)
}

func (c *Chain) has(pin uint8) bool { return int(pin)/16 < len(c.dev) }

// IsOutput reports whether the expander drives pin.
func (c *Chain) IsOutput(pin uint8) bool {
	if !c.has(pin) {
		return false
	}
	chip, bank, m := locate(pin)
	return c.dev[chip].regs[mcp23s17.IODIRA+bank]&m == 0
}

// Level is the logic level on pin's wire: the latch when the expander drives
// it, otherwise whatever the target drives (pulled up when nothing does).
func (c *Chain) Level(pin uint8) bool {
	if !c.has(pin) {
		return false
	}
	chip, bank, m := locate(pin)
	d := &c.dev[chip]
	if d.regs[mcp23s17.IODIRA+bank]&m == 0 {
		return d.regs[mcp23s17.OLATA+bank]&m != 0
	}
	return d.ext[bank]&m != 0
}

// Drive sets the target side of pin. It only shows while pin is an input.
func (c *Chain) Drive(pin uint8, high bool) {
	if !c.has(pin) {
		return
	}
	chip, bank, m := locate(pin)
	if high {
		c.dev[chip].ext[bank] |= m
	} else {
		c.dev[chip].ext[bank] &^= m
	}
}

// Gather reads the wire levels of pins into bit positions.
func (c *Chain) Gather(pins []uint8) uint32 {
	var v uint32
	for i, p := range pins {
		if i < 32 && c.Level(p) {
			v |= 1 << uint(i)
		}
	}
	return v
}

// Scatter drives bit i of v onto pins[i] from the target side.
func (c *Chain) Scatter(pins []uint8, v uint32) {
	for i, p := range pins {
		if i < 32 {
			c.Drive(p, v&(1<<uint(i)) != 0)
		}
	}
}
