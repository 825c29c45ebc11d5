package types

// ------------------------
// Parallel memory session
// ------------------------

// ParallelConfig is one parallel-mode record. Pin lists are bounded by
// MaxPins and Commands by MaxCommands; decoding rejects anything longer.
type ParallelConfig struct {
	Action      Action
	Addr        uint32
	Count       uint32 // bytes
	TOE         uint8  // µs, address/output-enable settle time
	TBP         uint8  // µs, byte program time
	CmdDelay    uint8  // s, settle after the command list
	Reconfigure bool

	AddrPins []uint8
	DataPins []uint8
	VccPins  []uint8
	GndPins  []uint8

	// Commands alternates address, data.
	Commands []uint32

	CE  CtrlPin // chip enable
	WE  CtrlPin // write enable
	RE  CtrlPin // read enable
	OE  CtrlPin // output enable
	BE  CtrlPin // byte enable
	BY  CtrlPin // busy/ready
	WP  CtrlPin // write protect
	RST CtrlPin // target reset

	ByteOrder ByteOrder
	CEIdle    IdleCE
}

// WordSize is the number of bytes moved per address step: 0 with no data
// pins, 1 for up to eight, 2 beyond that.
func (c *ParallelConfig) WordSize() int {
	switch n := len(c.DataPins); {
	case n == 0:
		return 0
	case n <= 8:
		return 1
	default:
		return 2
	}
}

// DecodeParallel parses a ParallelConfigSize record. Action is populated
// even when an error is returned so callers can honour EXIT first.
func DecodeParallel(b []byte) (ParallelConfig, error) {
	var c ParallelConfig
	if len(b) < ParallelConfigSize {
		if len(b) > 0 {
			c.Action = Action(b[0])
		}
		return c, ErrShortRecord
	}
	r := cursor{b: b}
	c.Action = Action(r.u8())
	c.Addr = r.u32()
	c.Count = r.u32()
	c.TOE = r.u8()
	c.TBP = r.u8()
	c.CmdDelay = r.u8()
	c.Reconfigure = r.u8() != 0
	nAddr, nData, nVcc, nGnd := r.u16(), r.u16(), r.u16(), r.u16()
	nCmd := r.u8()
	if err := pinCounts(nAddr, nData, nVcc, nGnd); err != nil {
		return c, err
	}
	if nCmd > MaxCommands {
		return c, ErrCommandList
	}
	c.AddrPins = r.pins(nAddr)
	c.DataPins = r.pins(nData)
	c.VccPins = r.pins(nVcc)
	c.GndPins = r.pins(nGnd)
	c.Commands = make([]uint32, 0, nCmd)
	for i := 0; i < MaxCommands; i++ {
		v := r.u32()
		if i < int(nCmd) {
			c.Commands = append(c.Commands, v)
		}
	}
	c.CE = r.ctrl()
	c.WE = r.ctrl()
	c.RE = r.ctrl()
	c.OE = r.ctrl()
	c.BE = r.ctrl()
	c.BY = r.ctrl()
	c.WP = r.ctrl()
	c.RST = r.ctrl()
	c.ByteOrder = ByteOrder(r.u8())
	c.CEIdle = IdleCE(r.u8())
	return c, nil
}

// MarshalBinary packs c into a ParallelConfigSize record.
func (c *ParallelConfig) MarshalBinary() ([]byte, error) {
	if err := pinLists(c.AddrPins, c.DataPins, c.VccPins, c.GndPins); err != nil {
		return nil, err
	}
	if len(c.Commands) > MaxCommands {
		return nil, ErrCommandList
	}
	w := builder{b: make([]byte, 0, ParallelConfigSize)}
	w.u8(uint8(c.Action))
	w.u32(c.Addr)
	w.u32(c.Count)
	w.u8(c.TOE)
	w.u8(c.TBP)
	w.u8(c.CmdDelay)
	w.flag(c.Reconfigure)
	w.u16(uint16(len(c.AddrPins)))
	w.u16(uint16(len(c.DataPins)))
	w.u16(uint16(len(c.VccPins)))
	w.u16(uint16(len(c.GndPins)))
	w.u8(uint8(len(c.Commands)))
	w.pins(c.AddrPins)
	w.pins(c.DataPins)
	w.pins(c.VccPins)
	w.pins(c.GndPins)
	for i := 0; i < MaxCommands; i++ {
		var v uint32
		if i < len(c.Commands) {
			v = c.Commands[i]
		}
		w.u32(v)
	}
	for _, p := range []CtrlPin{c.CE, c.WE, c.RE, c.OE, c.BE, c.BY, c.WP, c.RST} {
		w.ctrl(p)
	}
	w.u8(uint8(c.ByteOrder))
	w.u8(uint8(c.CEIdle))
	return w.b, nil
}
