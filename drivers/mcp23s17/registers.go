package mcp23s17

// Register addresses with IOCON.BANK = 0 (the power-on layout, A/B interleaved).
const (
	IODIRA   = 0x00 // direction, 1 = input
	IODIRB   = 0x01
	IPOLA    = 0x02
	IPOLB    = 0x03
	GPINTENA = 0x04
	GPINTENB = 0x05
	DEFVALA  = 0x06
	DEFVALB  = 0x07
	INTCONA  = 0x08
	INTCONB  = 0x09
	IOCON    = 0x0A // shared with IOCONB
	IOCONB   = 0x0B
	GPPUA    = 0x0C
	GPPUB    = 0x0D
	INTFA    = 0x0E // R
	INTFB    = 0x0F // R
	INTCAPA  = 0x10 // R
	INTCAPB  = 0x11 // R
	GPIOA    = 0x12 // port read / latch write
	GPIOB    = 0x13
	OLATA    = 0x14
	OLATB    = 0x15

	NumRegisters = 0x16
)

// IOCON bits.
const (
	ioconBank   = 1 << 7
	ioconMirror = 1 << 6
	ioconSeqop  = 1 << 5 // 1 = sequential addressing disabled
	ioconDisslw = 1 << 4
	ioconHaen   = 1 << 3
	ioconOdr    = 1 << 2
	ioconIntpol = 1 << 1
)

// Power-on values written by Init.
const (
	// IOCONDefault disables sequential addressing and slew control and
	// enables hardware addressing.
	IOCONDefault = ioconSeqop | ioconDisslw | ioconHaen // 0x38
	IODIRDefault = 0xFF
	RegDefault   = 0x00
)

// SPI framing.
const (
	opcode          = 0x40
	opRead          = 0x01
	opWrite         = 0x00
	MaxDevices      = 8
	PinsPerDevice   = 16
	PinsPerRegister = 8
)

// Default returns the power-on value of reg.
func Default(reg uint8) uint8 {
	switch reg {
	case IOCON, IOCONB:
		return IOCONDefault
	case IODIRA, IODIRB:
		return IODIRDefault
	default:
		return RegDefault
	}
}

// DirectionRegister returns the IODIR register paired with a GPIO bank.
func DirectionRegister(gpio uint8) uint8 {
	if gpio == GPIOB {
		return IODIRB
	}
	return IODIRA
}
