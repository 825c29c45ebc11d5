package types

// ------------------------
// Soft SPI / I2C sessions
// ------------------------

type SPIConfig struct {
	Action Action
	Count  uint32
	// Hold keeps slave-select asserted after the action so the next record
	// continues the same transaction (command then read).
	Hold bool

	SS   CtrlPin
	CLK  CtrlPin
	MOSI CtrlPin
	MISO CtrlPin

	VccPins []uint8
	GndPins []uint8
}

func DecodeSPI(b []byte) (SPIConfig, error) {
	var c SPIConfig
	if len(b) < SPIConfigSize {
		if len(b) > 0 {
			c.Action = Action(b[0])
		}
		return c, ErrShortRecord
	}
	r := cursor{b: b}
	c.Action = Action(r.u8())
	c.Count = r.u32()
	c.Hold = r.u8() != 0
	c.SS = r.ctrl()
	c.CLK = r.ctrl()
	c.MOSI = r.ctrl()
	c.MISO = r.ctrl()
	nVcc, nGnd := r.u16(), r.u16()
	if err := pinCounts(nVcc, nGnd); err != nil {
		return c, err
	}
	c.VccPins = r.pins(nVcc)
	c.GndPins = r.pins(nGnd)
	return c, nil
}

func (c *SPIConfig) MarshalBinary() ([]byte, error) {
	if err := pinLists(c.VccPins, c.GndPins); err != nil {
		return nil, err
	}
	w := builder{b: make([]byte, 0, SPIConfigSize)}
	w.u8(uint8(c.Action))
	w.u32(c.Count)
	w.flag(c.Hold)
	w.ctrl(c.SS)
	w.ctrl(c.CLK)
	w.ctrl(c.MOSI)
	w.ctrl(c.MISO)
	w.u16(uint16(len(c.VccPins)))
	w.u16(uint16(len(c.GndPins)))
	w.pins(c.VccPins)
	w.pins(c.GndPins)
	return w.b, nil
}

type I2CConfig struct {
	Action Action
	Addr   uint8 // 7-bit target address
	Count  uint32

	SDA CtrlPin
	SCL CtrlPin

	// Prefix is written (after addr+W) before a read, e.g. an EEPROM word
	// address. At most MaxPrefix bytes.
	Prefix []byte

	VccPins []uint8
	GndPins []uint8
}

func DecodeI2C(b []byte) (I2CConfig, error) {
	var c I2CConfig
	if len(b) < I2CConfigSize {
		if len(b) > 0 {
			c.Action = Action(b[0])
		}
		return c, ErrShortRecord
	}
	r := cursor{b: b}
	c.Action = Action(r.u8())
	c.Addr = r.u8()
	c.Count = r.u32()
	c.SDA = r.ctrl()
	c.SCL = r.ctrl()
	n := int(r.u8())
	if n > MaxPrefix {
		return c, ErrPrefixLength
	}
	c.Prefix = append([]byte(nil), b[r.off:r.off+n]...)
	r.off += MaxPrefix
	nVcc, nGnd := r.u16(), r.u16()
	if err := pinCounts(nVcc, nGnd); err != nil {
		return c, err
	}
	c.VccPins = r.pins(nVcc)
	c.GndPins = r.pins(nGnd)
	return c, nil
}

func (c *I2CConfig) MarshalBinary() ([]byte, error) {
	if err := pinLists(c.VccPins, c.GndPins); err != nil {
		return nil, err
	}
	if len(c.Prefix) > MaxPrefix {
		return nil, ErrPrefixLength
	}
	w := builder{b: make([]byte, 0, I2CConfigSize)}
	w.u8(uint8(c.Action))
	w.u8(c.Addr)
	w.u32(c.Count)
	w.ctrl(c.SDA)
	w.ctrl(c.SCL)
	w.u8(uint8(len(c.Prefix)))
	var pfx [MaxPrefix]byte
	copy(pfx[:], c.Prefix)
	w.b = append(w.b, pfx[:]...)
	w.u16(uint16(len(c.VccPins)))
	w.u16(uint16(len(c.GndPins)))
	w.pins(c.VccPins)
	w.pins(c.GndPins)
	return w.b, nil
}

// ------------------------
// GPIO session
// ------------------------

type GPIOCommand struct {
	Action Action
	Pin    uint8
}

func DecodeGPIO(b []byte) GPIOCommand {
	var c GPIOCommand
	if len(b) > 0 {
		c.Action = Action(b[0])
	}
	if len(b) > 1 {
		c.Pin = b[1]
	}
	return c
}

func (c GPIOCommand) Bytes() [GPIOCommandSize]byte {
	return [GPIOCommandSize]byte{uint8(c.Action), c.Pin}
}
