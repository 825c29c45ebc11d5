package sim

import (
	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/types"
)

// Cycle is one latched write.
type Cycle struct {
	Addr uint32
	Data uint16
}

// Memory is a parallel memory wired to the chain: it drives its data pins
// while chip and output enable are asserted and latches a word when write
// enable is released.
type Memory struct {
	AddrPins []uint8
	DataPins []uint8
	CE, OE   types.CtrlPin
	WE, BY   types.CtrlPin

	Words map[uint32]uint16
	// BusyAfterWrite is how many busy-line samples report busy after each
	// latched write.
	BusyAfterWrite int

	OEPulses  int
	BusyPolls int
	Writes    []Cycle

	oe, we   bool
	busyLeft int
}

// NewMemory returns an empty memory; assign pins before attaching it.
func NewMemory() *Memory { return &Memory{Words: map[uint32]uint16{}} }

func (m *Memory) asserted(c *Chain, p types.CtrlPin, absent bool) bool {
	if p.Pin == types.UnusedPin || !c.has(p.Pin) {
		return absent
	}
	return p.Active.Asserted(c.Level(p.Pin))
}

// Addr is the address currently on the bus.
func (m *Memory) Addr(c *Chain) uint32 { return c.Gather(m.AddrPins) }

func (m *Memory) Changed(c *Chain) {
	ce := m.asserted(c, m.CE, true)
	oe := m.asserted(c, m.OE, false)
	we := m.asserted(c, m.WE, false)

	if ce && oe && !m.oe {
		m.OEPulses++
	}
	if ce && oe {
		c.Scatter(m.DataPins, uint32(m.Words[m.Addr(c)]))
	}
	if m.we && !we && ce {
		cyc := Cycle{Addr: m.Addr(c), Data: uint16(c.Gather(m.DataPins))}
		m.Words[cyc.Addr] = cyc.Data
		m.Writes = append(m.Writes, cyc)
		m.busyLeft = m.BusyAfterWrite
	}
	m.oe, m.we = oe, we
	m.driveBusy(c)
}

func (m *Memory) Sampled(c *Chain, chip, reg uint8) {
	if m.BY.Pin == types.UnusedPin || !c.has(m.BY.Pin) {
		return
	}
	bc, bank, _ := locate(m.BY.Pin)
	if bc != int(chip) || int(reg-mcp23s17.GPIOA) != bank {
		return
	}
	m.BusyPolls++
	m.driveBusy(c)
	if m.busyLeft > 0 {
		m.busyLeft--
	}
}

func (m *Memory) driveBusy(c *Chain) {
	if m.BY.Pin != types.UnusedPin {
		c.Drive(m.BY.Pin, m.BY.Active.Level(m.busyLeft > 0))
	}
}
