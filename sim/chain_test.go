package sim

import (
	"errors"
	"testing"

	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
)

func writeReg(t *testing.T, c *Chain, addr, reg, v uint8) {
	t.Helper()
	if err := c.Tx([]byte{0x40 | addr<<1, reg, v}, nil); err != nil {
		t.Fatalf("write %02X: %v", reg, err)
	}
}

func readReg(t *testing.T, c *Chain, addr, reg uint8) uint8 {
	t.Helper()
	r := make([]byte, 3)
	if err := c.Tx([]byte{0x41 | addr<<1, reg, 0}, r); err != nil {
		t.Fatalf("read %02X: %v", reg, err)
	}
	return r[2]
}

func TestChainAddressing(t *testing.T) {
	c := NewChain(2)

	// Without HAEN every chip takes every write.
	writeReg(t, c, 0, mcp23s17.IODIRA, 0x00)
	if c.Register(1, mcp23s17.IODIRA) != 0 {
		t.Fatal("broadcast write missed chip 1")
	}

	writeReg(t, c, 0, mcp23s17.IOCON, haen)
	writeReg(t, c, 1, mcp23s17.OLATA, 0x01)
	if !c.Level(16) || c.Level(0) {
		t.Fatalf("levels pin0=%v pin16=%v", c.Level(0), c.Level(16))
	}
	if got := readReg(t, c, 1, mcp23s17.GPIOA); got != 0x01 {
		t.Fatalf("GPIOA chip 1 = %02X", got)
	}
	if c.Writes != 3 {
		t.Fatalf("Writes = %d", c.Writes)
	}
}

func TestChainInputsFollowTarget(t *testing.T) {
	c := NewChain(1)
	if !c.Level(8) {
		t.Fatal("input should idle pulled up")
	}
	c.Drive(8, false)
	if c.Level(8) {
		t.Fatal("target drive not visible")
	}
	if got := readReg(t, c, 0, mcp23s17.GPIOB); got != 0xFE {
		t.Fatalf("GPIOB = %02X", got)
	}
	c.Scatter([]uint8{0, 1, 2}, 0b101)
	if got := c.Gather([]uint8{0, 1, 2}); got != 0b101 {
		t.Fatalf("Gather = %03b", got)
	}
}

func TestChainReset(t *testing.T) {
	c := NewChain(1)
	writeReg(t, c, 0, mcp23s17.IODIRA, 0x00)
	rst := c.ResetPin()
	rst.Set(false)
	if !c.InReset() {
		t.Fatal("reset not held")
	}
	if c.Register(0, mcp23s17.IODIRA) != 0xFF {
		t.Fatal("registers survived reset")
	}
	writeReg(t, c, 0, mcp23s17.IODIRA, 0x00)
	if c.Register(0, mcp23s17.IODIRA) != 0xFF {
		t.Fatal("write accepted while in reset")
	}
	rst.Set(true)
	if c.InReset() {
		t.Fatal("reset still held")
	}
}

func TestChainRejectsOtherFrames(t *testing.T) {
	c := NewChain(1)
	if err := c.Tx([]byte{0x9F}, nil); !errors.Is(err, ErrFrame) {
		t.Fatalf("Tx = %v", err)
	}
	if err := c.Tx([]byte{0x40, mcp23s17.NumRegisters, 0}, nil); !errors.Is(err, ErrFrame) {
		t.Fatalf("Tx = %v", err)
	}
}

func TestRigScansChain(t *testing.T) {
	r, err := NewRig(3)
	if err != nil {
		t.Fatalf("NewRig: %v", err)
	}
	if r.Fabric.ChipCount() != 3 {
		t.Fatalf("chips = %d", r.Fabric.ChipCount())
	}
}
