package client

import (
	"encoding/binary"
	"fmt"

	"github.com/e2thenegpii/gumbi/types"
)

// GPIO is an open GPIO session. Errors from a single command (a bad pin,
// say) leave the session usable.
type GPIO struct {
	c      *Client
	closed bool
}

// GPIO enters GPIO mode.
func (c *Client) GPIO() (*GPIO, error) {
	if err := c.SetMode(types.ModeGPIO); err != nil {
		return nil, err
	}
	return &GPIO{c: c}, nil
}

func (g *GPIO) cmd(a types.Action, pin uint8) error {
	if g.closed {
		return ErrClosed
	}
	b := types.GPIOCommand{Action: a, Pin: pin}.Bytes()
	if err := g.c.send(b[:]); err != nil {
		return err
	}
	if err := g.c.ReadAck(); err != nil {
		return fmt.Errorf("gumbi: gpio %s %d: %w", a, pin, err)
	}
	return nil
}

// High drives pin high.
func (g *GPIO) High(pin uint8) error { return g.cmd(types.ActionHigh, pin) }

// Low drives pin low.
func (g *GPIO) Low(pin uint8) error { return g.cmd(types.ActionLow, pin) }

// Read makes pin an input and samples it.
func (g *GPIO) Read(pin uint8) (bool, error) {
	if err := g.cmd(types.ActionRead, pin); err != nil {
		return false, err
	}
	b, err := g.c.readByte()
	return b != 0, err
}

// Close leaves GPIO mode; the expanders return to reset and every pin
// floats.
func (g *GPIO) Close() error {
	if g.closed {
		return nil
	}
	err := g.cmd(types.ActionExit, 0)
	g.closed = true
	return err
}

// Monitor is an open MONITOR session.
type Monitor struct {
	c      *Client
	chips  int
	closed bool
}

// Monitor enters MONITOR mode for a chain of chips expanders.
func (c *Client) Monitor(chips int) (*Monitor, error) {
	if chips <= 0 {
		return nil, fmt.Errorf("gumbi: monitor needs at least one expander")
	}
	if err := c.SetMode(types.ModeMonitor); err != nil {
		return nil, err
	}
	return &Monitor{c: c, chips: chips}, nil
}

// Sample takes count snapshots. Each is two bytes (GPIOA, GPIOB) per
// expander; bit n of a bank byte is the live level of that bank's pin n.
func (m *Monitor) Sample(count uint32) ([][]byte, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if count == 0 {
		return nil, nil
	}
	if err := m.c.send(binary.LittleEndian.AppendUint32(nil, count)); err != nil {
		return nil, err
	}
	width := 2 * m.chips
	raw := make([]byte, int(count)*width)
	if err := m.c.ReadFull(raw); err != nil {
		return nil, err
	}
	out := make([][]byte, count)
	for i := range out {
		out[i] = raw[i*width : (i+1)*width]
	}
	return out, nil
}

// Close leaves MONITOR mode.
func (m *Monitor) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.c.send(make([]byte, types.CountSize)); err != nil {
		return err
	}
	return m.c.ReadAck()
}
