package softbus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/e2thenegpii/gumbi/sim"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/timex"
	"tinygo.org/x/drivers"
)

var (
	_ drivers.SPI = (*SPI)(nil)
	_ drivers.I2C = (*I2C)(nil)
)

func newRig(t *testing.T) *sim.Rig {
	t.Helper()
	rig, err := sim.NewRig(1)
	if err != nil {
		t.Fatalf("NewRig: %v", err)
	}
	if err := rig.Fabric.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	return rig
}

func TestSPIExchange(t *testing.T) {
	rig := newRig(t)
	pins := SPIPins{
		SS:   types.CtrlPin{Pin: 1, Active: types.ActiveLow},
		CLK:  types.CtrlPin{Pin: 2, Active: types.ActiveHigh},
		MOSI: types.CtrlPin{Pin: 3, Active: types.ActiveHigh},
		MISO: types.CtrlPin{Pin: 4, Active: types.ActiveHigh},
	}
	slave := &sim.SPISlave{SS: pins.SS, CLK: pins.CLK, MOSI: pins.MOSI, MISO: pins.MISO, Out: []byte{0xAA, 0x55}}
	rig.Chain.Attach(slave)

	s := NewSPI(rig.Fabric, pins, &timex.Fake{}, 0)
	if err := s.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := s.Select(true); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 3)
	if err := s.Tx([]byte{0x03, 0x00}, r); err != nil {
		t.Fatal(err)
	}
	s.Select(false)

	if !bytes.Equal(r, []byte{0xAA, 0x55, types.DummyByte}) {
		t.Fatalf("miso = % x", r)
	}
	if !bytes.Equal(slave.In, []byte{0x03, 0x00, types.DummyByte}) {
		t.Fatalf("mosi = % x", slave.In)
	}
	if slave.Selects != 1 || !rig.Chain.Level(1) {
		t.Fatal("slave select not released")
	}
}

func TestSPIRequiresClockAndData(t *testing.T) {
	rig := newRig(t)
	s := NewSPI(rig.Fabric, SPIPins{SS: types.Unused, CLK: types.Unused, MOSI: types.Unused, MISO: types.Unused}, nil, 0)
	if err := s.Configure(); !errors.Is(err, ErrPins) {
		t.Fatalf("err = %v", err)
	}
}

func newEEPROM(rig *sim.Rig) *sim.I2CSlave {
	dev := &sim.I2CSlave{SDA: 5, SCL: 6, Addr: 0x50, AddrBytes: 2, Mem: make([]byte, 256)}
	rig.Chain.Attach(dev)
	return dev
}

func TestI2CWriteThenRead(t *testing.T) {
	rig := newRig(t)
	dev := newEEPROM(rig)
	bus := NewI2C(rig.Fabric, 5, 6, &timex.Fake{}, 0)
	if err := bus.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if err := bus.Tx(0x50, []byte{0x00, 0x10, 0xDE, 0xAD}, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if dev.Mem[0x10] != 0xDE || dev.Mem[0x11] != 0xAD {
		t.Fatalf("mem = % x", dev.Mem[0x10:0x12])
	}

	r := make([]byte, 2)
	if err := bus.Tx(0x50, []byte{0x00, 0x10}, r); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(r, []byte{0xDE, 0xAD}) {
		t.Fatalf("read = % x", r)
	}
	if dev.Starts != 3 || dev.Stops != 2 {
		t.Fatalf("starts=%d stops=%d", dev.Starts, dev.Stops)
	}
	if !rig.Chain.Level(5) || !rig.Chain.Level(6) {
		t.Fatal("bus not released after STOP")
	}
}

func TestI2CMissingTarget(t *testing.T) {
	rig := newRig(t)
	dev := newEEPROM(rig)
	bus := NewI2C(rig.Fabric, 5, 6, &timex.Fake{}, 0)
	if err := bus.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Tx(0x51, []byte{0x00}, nil); !errors.Is(err, ErrNoAck) {
		t.Fatalf("err = %v", err)
	}
	if dev.Stops != 1 {
		t.Fatalf("stops = %d, bus must be stopped after a NACK", dev.Stops)
	}
}

func TestI2CConfigureRejectsSharedLine(t *testing.T) {
	rig := newRig(t)
	if err := NewI2C(rig.Fabric, 5, 5, nil, 0).Configure(); !errors.Is(err, ErrPins) {
		t.Fatalf("err = %v", err)
	}
}
