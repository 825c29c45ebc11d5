package session

import (
	"bytes"
	"context"
	"encoding"
	"encoding/binary"
	"testing"

	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/sim"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/timex"
)

// link plays a scripted host: everything the host will send is queued up
// front and the session runs until the script is exhausted.
type link struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (l *link) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *link) Write(p []byte) (int, error) { return l.out.Write(p) }

func (l *link) mode(m types.Mode) *link { l.in.WriteByte(byte(m)); return l }
func (l *link) raw(b ...byte) *link     { l.in.Write(b); return l }

func (l *link) u32(v uint32) *link {
	l.in.Write(binary.LittleEndian.AppendUint32(nil, v))
	return l
}

func (l *link) record(t *testing.T, m encoding.BinaryMarshaler) *link {
	t.Helper()
	b, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	l.in.Write(b)
	return l
}

const (
	ack = "A\n"
)

func nack(reason string) string { return "N\n" + reason + "\n" }

func serve(t *testing.T, rig *sim.Rig, l *link) string {
	t.Helper()
	s := New(l, rig.Fabric, Options{Clock: &timex.Fake{}})
	err := s.Serve(context.Background())
	if errcode.Of(err) != errcode.Transport {
		t.Fatalf("Serve ended with %v, want end of script", err)
	}
	return l.out.String()
}

func newRig(t *testing.T, chips int) *sim.Rig {
	t.Helper()
	rig, err := sim.NewRig(chips)
	if err != nil {
		t.Fatalf("NewRig: %v", err)
	}
	return rig
}

func TestDiagnosticModes(t *testing.T) {
	rig := newRig(t, 2)
	l := &link{}
	l.mode(types.ModeVoltage)
	l.mode(types.ModeNOP)
	l.mode(types.ModePing)
	l.mode(types.ModeID)
	l.mode(types.ModeInfo)
	l.mode(types.ModeSpeedTest).u32(3)
	l.mode(200)

	want := nack(types.ReasonUnknownMode) +
		ack +
		ack + ack +
		ack + "GUMBI v1\n" +
		ack + "Board ID: GUMBI v1\nFirmware Version: 2.0.0\nI/O Chip Count: 2\nI/O Pin Count: 32\n" + ack +
		ack + "\xff\xff\xff" +
		nack(types.ReasonUnknownMode)
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestXferEchoes(t *testing.T) {
	rig := newRig(t, 1)
	payload := make([]byte, types.XferTestSize)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	l := (&link{}).mode(types.ModeXfer).raw(payload...)
	if got := serve(t, rig, l); got != ack+string(payload) {
		t.Fatalf("echo mismatch: %q", got)
	}
}

func TestUnknownModeIsReported(t *testing.T) {
	rig := newRig(t, 1)
	l := &link{}
	s := New(l, rig.Fabric, Options{Clock: &timex.Fake{}})
	err := s.Dispatch(context.Background(), types.ModeVoltage)
	if errcode.Of(err) != errcode.UnsupportedMode {
		t.Fatalf("err = %v", err)
	}
	if got := l.out.String(); got != nack(types.ReasonUnknownMode) {
		t.Fatalf("got %q", got)
	}
}

func TestPinCountModes(t *testing.T) {
	rig := newRig(t, 2)
	l := &link{}
	l.mode(types.ModeGetPinCount)
	l.mode(types.ModeSetPinCount).raw(20)
	l.mode(types.ModeGetPinCount)
	l.mode(types.ModeScanBus)
	want := ack + "\x20" + ack + "\x14" + ack + "\x14" + ack + "\x20"
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

// highWatch records whether a pin was ever driven high by the expander.
type highWatch struct {
	pin  uint8
	high bool
}

func (p *highWatch) Changed(c *sim.Chain) {
	if c.IsOutput(p.pin) && c.Level(p.pin) {
		p.high = true
	}
}
func (p *highWatch) Sampled(*sim.Chain, uint8, uint8) {}

func TestGPIOMode(t *testing.T) {
	rig := newRig(t, 1)
	pr := &highWatch{pin: 3}
	rig.Chain.Attach(pr)

	l := (&link{}).mode(types.ModeGPIO)
	l.raw(byte(types.ActionHigh), 3)
	l.raw(byte(types.ActionRead), 9)
	l.raw(byte(types.ActionLow), 0)
	l.raw(9, 3)
	l.raw(byte(types.ActionExit), 0)

	want := ack +
		ack +
		ack + "\x01" +
		nack("Invalid pin [0]") +
		nack("The specified GPIO action is not supported [0x9]") +
		ack
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
	if !pr.high {
		t.Fatal("pin 3 never driven high")
	}
	if !rig.Chain.InReset() {
		t.Fatal("expanders must be back in reset after the mode")
	}
}

func TestMonitorMode(t *testing.T) {
	rig := newRig(t, 2)
	l := (&link{}).mode(types.ModeMonitor).u32(2).u32(0)
	// inputs idle pulled up: two chips, two banks, two passes
	want := ack + string(bytes.Repeat([]byte{0xFF}, 8)) + ack
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got %q", got)
	}
}

func TestParallelMode(t *testing.T) {
	rig := newRig(t, 2)
	mem := sim.NewMemory()
	mem.AddrPins = []uint8{16, 17, 18, 19}
	mem.DataPins = []uint8{1, 2, 3, 4, 5, 6, 7, 8}
	mem.CE = types.CtrlPin{Pin: 20, Active: types.ActiveLow}
	mem.OE = types.CtrlPin{Pin: 21, Active: types.ActiveLow}
	mem.WE = types.CtrlPin{Pin: 22, Active: types.ActiveLow}
	mem.BY = types.Unused
	mem.Words[2] = 0xC3
	rig.Chain.Attach(mem)

	cfg := &types.ParallelConfig{
		Action: types.ActionRead, Addr: 2, Count: 1,
		AddrPins: mem.AddrPins, DataPins: mem.DataPins,
		CE: mem.CE, OE: mem.OE, WE: mem.WE,
		RE: types.Unused, BE: types.Unused, BY: types.Unused, WP: types.Unused, RST: types.Unused,
	}
	l := (&link{}).mode(types.ModeParallel).record(t, cfg)
	l.record(t, &types.ParallelConfig{Action: types.ActionExit})
	l.mode(types.ModePing)

	// mode, config, action, one block and its ACK, exit, then PING
	want := ack + ack + ack + "\xc3" + ack + ack + ack + ack
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParallelInvalidLeavesMode(t *testing.T) {
	rig := newRig(t, 2)
	cfg := &types.ParallelConfig{Action: types.ActionRead, Count: 1, DataPins: []uint8{99}}
	l := (&link{}).mode(types.ModeParallel).record(t, cfg).mode(types.ModePing)
	want := ack + nack(types.ReasonInvalidConfig) + ack + ack
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func spiConfig(a types.Action, count uint32) *types.SPIConfig {
	return &types.SPIConfig{
		Action: a, Count: count,
		SS:   types.CtrlPin{Pin: 1, Active: types.ActiveLow},
		CLK:  types.CtrlPin{Pin: 2, Active: types.ActiveHigh},
		MOSI: types.CtrlPin{Pin: 3, Active: types.ActiveHigh},
		MISO: types.CtrlPin{Pin: 4, Active: types.ActiveHigh},
	}
}

func TestSPIMode(t *testing.T) {
	rig := newRig(t, 1)
	c := spiConfig(types.ActionWrite, 1)
	slave := &sim.SPISlave{SS: c.SS, CLK: c.CLK, MOSI: c.MOSI, MISO: c.MISO, Out: []byte{0x00, 0xEF, 0xBE}}
	rig.Chain.Attach(slave)

	c.Hold = true
	l := (&link{}).mode(types.ModeSPI).record(t, c).raw(0x9F)
	l.record(t, spiConfig(types.ActionRead, 2))
	bad := spiConfig(types.ActionRead, 1)
	bad.MISO.Pin = 0
	l.record(t, bad)
	l.record(t, spiConfig(types.ActionExit, 0))

	want := ack +
		ack + ack + ack + // config, action, block
		ack + ack + "\xef\xbe" +
		nack(types.ReasonInvalidConfig) +
		ack
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
	if slave.Selects != 1 {
		t.Fatalf("selects = %d, hold must keep one transaction", slave.Selects)
	}
	if !bytes.Equal(slave.In, []byte{0x9F, 0xFF, 0xFF}) {
		t.Fatalf("mosi = % x", slave.In)
	}
}

func TestI2CMode(t *testing.T) {
	rig := newRig(t, 1)
	dev := &sim.I2CSlave{SDA: 5, SCL: 6, Addr: 0x50, AddrBytes: 1, Mem: make([]byte, 64)}
	rig.Chain.Attach(dev)
	pins := func(c *types.I2CConfig) *types.I2CConfig {
		c.SDA = types.CtrlPin{Pin: 5, Active: types.ActiveHigh}
		c.SCL = types.CtrlPin{Pin: 6, Active: types.ActiveHigh}
		return c
	}

	l := (&link{}).mode(types.ModeI2C)
	l.record(t, pins(&types.I2CConfig{Action: types.ActionWrite, Addr: 0x50, Count: 2, Prefix: []byte{0x08}})).raw(0x12, 0x34)
	l.record(t, pins(&types.I2CConfig{Action: types.ActionRead, Addr: 0x50, Count: 3, Prefix: []byte{0x08}}))
	l.record(t, pins(&types.I2CConfig{Action: types.ActionRead, Addr: 0x22, Count: 1}))
	l.record(t, pins(&types.I2CConfig{Action: types.ActionExit}))

	want := ack +
		ack + ack + ack +
		ack + ack + "\x12\x34\x00" +
		ack + nack(types.ReasonNoAck) +
		ack
	if got := serve(t, rig, l); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
	if dev.Mem[8] != 0x12 || dev.Mem[9] != 0x34 {
		t.Fatalf("mem = % x", dev.Mem[8:10])
	}
}

func TestNackReasonIsBounded(t *testing.T) {
	l := &link{}
	s := New(l, nil, Options{})
	long := string(bytes.Repeat([]byte{'x'}, 300))
	if err := s.Nack(long); err != nil {
		t.Fatal(err)
	}
	if got := l.out.Len(); got != 2+types.MaxReason+1 {
		t.Fatalf("nack length = %d", got)
	}
}
