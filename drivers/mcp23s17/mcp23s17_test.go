package mcp23s17

import (
	"errors"
	"testing"
)

// fakeSPI records write frames and answers reads from a register table.
type fakeSPI struct {
	frames [][]byte
	regs   map[[2]uint8]uint8
	err    error
}

func (f *fakeSPI) Tx(w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, append([]byte(nil), w...))
	if r != nil {
		addr := (w[0] >> 1) & 0x07
		for i := range r {
			r[i] = 0
		}
		r[2] = f.regs[[2]uint8{addr, w[1]}]
	}
	return nil
}

func (f *fakeSPI) Transfer(b byte) (byte, error) { return 0, nil }

type fakePin struct{ history []bool }

func (p *fakePin) Set(high bool) { p.history = append(p.history, high) }

func TestWriteRegisterFrame(t *testing.T) {
	bus := &fakeSPI{}
	cs := &fakePin{}
	d := New(bus)
	d.Configure(Config{CS: cs})

	if err := d.WriteRegister(5, GPIOB, 0xA5); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	if len(bus.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(bus.frames))
	}
	got := bus.frames[0]
	want := []byte{0x40 | 5<<1, GPIOB, 0xA5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
	// idle high from Configure, then low/high around the transaction
	if len(cs.history) != 3 || !cs.history[0] || cs.history[1] || !cs.history[2] {
		t.Fatalf("cs history = %v", cs.history)
	}
}

func TestReadRegisterUsesReadOpcode(t *testing.T) {
	bus := &fakeSPI{regs: map[[2]uint8]uint8{{2, IOCON}: IOCONDefault}}
	d := New(bus)

	v, err := d.ReadRegister(2, IOCON)
	if err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if v != IOCONDefault {
		t.Fatalf("value = %#x", v)
	}
	if bus.frames[0][0] != 0x40|2<<1|0x01 {
		t.Fatalf("opcode = %#x", bus.frames[0][0])
	}
}

func TestCountStopsAtFirstMissingDevice(t *testing.T) {
	bus := &fakeSPI{regs: map[[2]uint8]uint8{
		{0, IOCON}: IOCONDefault,
		{1, IOCON}: IOCONDefault,
		{3, IOCON}: IOCONDefault, // not contiguous, never counted
	}}
	d := New(bus)
	n, err := d.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}

func TestRangeChecks(t *testing.T) {
	d := New(&fakeSPI{})
	if err := d.WriteRegister(MaxDevices, GPIOA, 0); !errors.Is(err, ErrAddress) {
		t.Fatalf("addr err = %v", err)
	}
	if _, err := d.ReadRegister(0, NumRegisters); !errors.Is(err, ErrRegister) {
		t.Fatalf("reg err = %v", err)
	}
}

func TestResetIsActiveLow(t *testing.T) {
	rst := &fakePin{}
	d := New(&fakeSPI{})
	d.Configure(Config{Reset: rst})
	d.Enable()
	d.Disable()
	want := []bool{false, true, false}
	for i, v := range want {
		if rst.history[i] != v {
			t.Fatalf("reset history = %v, want %v", rst.history, want)
		}
	}
}

func TestDefaults(t *testing.T) {
	if Default(IOCON) != 0x38 || Default(IODIRB) != 0xFF || Default(GPIOA) != 0 {
		t.Fatal("unexpected power-on defaults")
	}
	if DirectionRegister(GPIOB) != IODIRB || DirectionRegister(GPIOA) != IODIRA {
		t.Fatal("direction register pairing")
	}
}
