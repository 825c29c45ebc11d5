// Package mcp23s17 provides a driver for the Microchip MCP23S17 16-bit SPI
// I/O expander.
//
// Up to eight devices share one SPI bus and one chip-select line. Each device
// is addressed by its A2..A0 strap pins once hardware addressing (IOCON.HAEN)
// has been enabled; until then every device answers address 0, which is how
// Init enables HAEN on all of them with a single write.
//
// Every register access is a single three-byte transaction:
//
//	opcode(0x40 | addr<<1 | rw), register, value
//
// The bus must already be configured for mode 0, MSB first.
package mcp23s17

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Errors returned by the driver.
var (
	ErrAddress  = errors.New("mcp23s17: hardware address out of range")
	ErrRegister = errors.New("mcp23s17: register out of range")
)

// Pin is an output line driven by the driver (chip-select, reset).
// machine.Pin satisfies it.
type Pin interface {
	Set(high bool)
}

// Config controls optional wiring. All fields are optional.
type Config struct {
	// CS is the active-low chip-select. Leave nil when the SPI controller
	// frames each Tx with its own chip-select (Linux spidev).
	CS Pin
	// Reset is the active-low reset line shared by all devices.
	Reset Pin
}

// Device drives every expander on one chip-select.
type Device struct {
	bus   drivers.SPI
	cs    Pin
	reset Pin

	w [3]byte
	r [3]byte
}

// New creates a driver for the expanders on bus. It does not touch the bus.
func New(bus drivers.SPI) Device {
	return Device{bus: bus}
}

// Configure applies optional wiring and idles the control lines: chip-select
// released, devices held in reset until Enable is called.
func (d *Device) Configure(cfgs ...Config) {
	if len(cfgs) > 0 {
		d.cs = cfgs[0].CS
		d.reset = cfgs[0].Reset
	}
	if d.cs != nil {
		d.cs.Set(true)
	}
	d.SetReset(true)
}

// SetReset holds (true) or releases (false) the devices in reset.
func (d *Device) SetReset(asserted bool) {
	if d.reset != nil {
		d.reset.Set(!asserted)
	}
}

// Enable releases reset.
func (d *Device) Enable() { d.SetReset(false) }

// Disable puts the devices back into reset (all pins become inputs).
func (d *Device) Disable() { d.SetReset(true) }

// WriteRegister writes val to reg on the device strapped at addr.
func (d *Device) WriteRegister(addr, reg, val uint8) error {
	if err := check(addr, reg); err != nil {
		return err
	}
	d.w[0] = opcode | addr<<1 | opWrite
	d.w[1] = reg
	d.w[2] = val
	d.selectBus(true)
	err := d.bus.Tx(d.w[:], nil)
	d.selectBus(false)
	return err
}

// ReadRegister returns the current value of reg on the device at addr.
func (d *Device) ReadRegister(addr, reg uint8) (uint8, error) {
	if err := check(addr, reg); err != nil {
		return 0, err
	}
	d.w[0] = opcode | addr<<1 | opRead
	d.w[1] = reg
	d.w[2] = 0xFF
	d.selectBus(true)
	err := d.bus.Tx(d.w[:], d.r[:])
	d.selectBus(false)
	if err != nil {
		return 0, err
	}
	return d.r[2], nil
}

// Present reports whether a device answers at addr with the IOCON value Init
// programs. A missing device reads back as 0xFF or 0x00 on a floating bus.
func (d *Device) Present(addr uint8) (bool, error) {
	v, err := d.ReadRegister(addr, IOCON)
	if err != nil {
		return false, err
	}
	return v == IOCONDefault, nil
}

// Count probes addresses upward from 0 and returns how many contiguous
// devices respond.
func (d *Device) Count() (int, error) {
	n := 0
	for ; n < MaxDevices; n++ {
		ok, err := d.Present(uint8(n))
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
	}
	return n, nil
}

func (d *Device) selectBus(on bool) {
	if d.cs != nil {
		d.cs.Set(!on)
	}
}

func check(addr, reg uint8) error {
	if addr >= MaxDevices {
		return ErrAddress
	}
	if reg >= NumRegisters {
		return ErrRegister
	}
	return nil
}
