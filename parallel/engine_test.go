package parallel

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/sim"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/timex"
)

// fakeHost feeds scripted input and records what the engine sends back.
type fakeHost struct {
	in     bytes.Buffer
	data   bytes.Buffer
	events []string // "A", "N:<reason>"
}

func (h *fakeHost) Read(p []byte) (int, error)  { return h.in.Read(p) }
func (h *fakeHost) Write(p []byte) (int, error) { return h.data.Write(p) }
func (h *fakeHost) Ack() error                  { h.events = append(h.events, "A"); return nil }
func (h *fakeHost) Nack(reason string) error {
	h.events = append(h.events, "N:"+reason)
	return nil
}

func (h *fakeHost) send(t *testing.T, c types.ParallelConfig) {
	t.Helper()
	b, err := c.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	h.in.Write(b)
}

func (h *fakeHost) exit(t *testing.T) { h.send(t, types.ParallelConfig{Action: types.ActionExit}) }

func (h *fakeHost) count(ev string) int {
	n := 0
	for _, e := range h.events {
		if e == ev {
			n++
		}
	}
	return n
}

func seq(from, n int) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = uint8(from + i)
	}
	return out
}

// Four expanders: address on chip 1, data on chip 2, busy alone on chip 3
// bank A, the other controls on chip 3 bank B.
const (
	pinBY  = 48
	pinCE  = 56
	pinOE  = 57
	pinWE  = 58
	pinVcc = 59
	pinGnd = 60
)

type bench struct {
	rig  *sim.Rig
	mem  *sim.Memory
	host *fakeHost
	clk  *timex.Fake
	eng  *Engine
}

func newBench(t *testing.T, dataPins int, opt Options) *bench {
	t.Helper()
	rig, err := sim.NewRig(4)
	if err != nil {
		t.Fatalf("NewRig: %v", err)
	}
	if err := rig.Fabric.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	mem := sim.NewMemory()
	mem.AddrPins = seq(16, 16)
	mem.DataPins = seq(32, dataPins)
	mem.CE = types.CtrlPin{Pin: pinCE, Active: types.ActiveLow}
	mem.OE = types.CtrlPin{Pin: pinOE, Active: types.ActiveLow}
	mem.WE = types.CtrlPin{Pin: pinWE, Active: types.ActiveLow}
	mem.BY = types.CtrlPin{Pin: pinBY, Active: types.ActiveLow}
	rig.Chain.Attach(mem)

	b := &bench{rig: rig, mem: mem, host: &fakeHost{}, clk: &timex.Fake{}}
	opt.Clock = b.clk
	b.eng = New(rig.Fabric, b.host, opt)
	return b
}

func (b *bench) config(a types.Action, addr, count uint32) types.ParallelConfig {
	return types.ParallelConfig{
		Action:   a,
		Addr:     addr,
		Count:    count,
		TOE:      1,
		TBP:      10,
		AddrPins: b.mem.AddrPins,
		DataPins: b.mem.DataPins,
		VccPins:  []uint8{pinVcc},
		GndPins:  []uint8{pinGnd},
		CE:       b.mem.CE,
		OE:       b.mem.OE,
		WE:       b.mem.WE,
		BY:       b.mem.BY,
		RE:       types.Unused,
		BE:       types.Unused,
		WP:       types.Unused,
		RST:      types.Unused,
	}
}

func TestReadStreamsOneWordPerAddress(t *testing.T) {
	b := newBench(t, 8, Options{})
	for i, v := range []uint16{0x11, 0x22, 0x33, 0x44} {
		b.mem.Words[0x1000+uint32(i)] = v
	}
	b.host.send(t, b.config(types.ActionRead, 0x1000, 4))
	b.host.exit(t)

	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.host.data.Bytes(); !bytes.Equal(got, []byte{0x11, 0x22, 0x33, 0x44}) {
		t.Fatalf("data = % x", got)
	}
	if b.mem.OEPulses != 4 || b.mem.BusyPolls != 4 {
		t.Fatalf("oe pulses = %d, busy polls = %d", b.mem.OEPulses, b.mem.BusyPolls)
	}
	// config, action, one block, exit
	if b.host.count("A") != 4 {
		t.Fatalf("events = %v", b.host.events)
	}
	if !b.rig.Chain.Level(pinVcc) || b.rig.Chain.Level(pinGnd) {
		t.Fatal("target not powered")
	}
}

func TestInvalidPinNacksWithoutTouchingPins(t *testing.T) {
	rig, err := sim.NewRig(2)
	if err != nil {
		t.Fatal(err)
	}
	rig.Fabric.Enable()
	h := &fakeHost{}
	h.send(t, types.ParallelConfig{Action: types.ActionRead, Count: 1, AddrPins: []uint8{200}, DataPins: []uint8{1}})
	before := rig.Chain.Writes

	err = New(rig.Fabric, h, Options{Clock: &timex.Fake{}}).Run(context.Background())
	if errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("err = %v", err)
	}
	if len(h.events) != 1 || h.events[0] != "N:"+types.ReasonInvalidConfig {
		t.Fatalf("events = %v", h.events)
	}
	if rig.Chain.Writes != before {
		t.Fatalf("%d expander writes after invalid record", rig.Chain.Writes-before)
	}
}

func TestWriteRunsUnlockBeforeEveryWord(t *testing.T) {
	b := newBench(t, 8, Options{})
	c := b.config(types.ActionWrite, 0x40, 2)
	c.Commands = []uint32{0x5555, 0xAA, 0x2AAA, 0x55, 0x5555, 0xA0}
	c.CmdDelay = 1
	b.host.send(t, c)
	b.host.in.Write([]byte{0xDE, 0xAD})
	b.host.exit(t)

	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []sim.Cycle{
		{0x5555, 0xAA}, {0x2AAA, 0x55}, {0x5555, 0xA0}, {0x40, 0xDE},
		{0x5555, 0xAA}, {0x2AAA, 0x55}, {0x5555, 0xA0}, {0x41, 0xAD},
	}
	if len(b.mem.Writes) != len(want) {
		t.Fatalf("writes = %+v", b.mem.Writes)
	}
	for i := range want {
		if b.mem.Writes[i] != want[i] {
			t.Fatalf("write %d = %+v, want %+v", i, b.mem.Writes[i], want[i])
		}
	}
	// config, action, one block, exit
	if b.host.count("A") != 4 {
		t.Fatalf("events = %v", b.host.events)
	}
	if b.clk.Slept != 2*time.Second {
		t.Fatalf("command delay slept %v", b.clk.Slept)
	}
}

func TestWriteAcksEveryBlock(t *testing.T) {
	b := newBench(t, 8, Options{})
	b.host.send(t, b.config(types.ActionWrite, 0, 130))
	b.host.in.Write(bytes.Repeat([]byte{0x5A}, 130))
	b.host.exit(t)

	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(b.mem.Writes) != 130 {
		t.Fatalf("writes = %d", len(b.mem.Writes))
	}
	// config, action, 3 blocks (64, 64, 2), exit
	if b.host.count("A") != 6 {
		t.Fatalf("events = %v", b.host.events)
	}
}

func TestNoDataPinsMovesNoWords(t *testing.T) {
	b := newBench(t, 8, Options{})
	rd := b.config(types.ActionRead, 0, 4)
	rd.DataPins = nil
	wr := b.config(types.ActionWrite, 0, 3)
	wr.DataPins = nil
	b.host.send(t, rd)
	b.host.send(t, wr)
	b.host.in.Write([]byte{1, 2, 3})
	b.host.exit(t)

	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.host.data.Bytes(); !bytes.Equal(got, bytes.Repeat([]byte{types.DummyByte}, 4)) {
		t.Fatalf("data = % x", got)
	}
	if len(b.mem.Writes) != 0 || b.mem.OEPulses != 0 {
		t.Fatalf("writes = %+v, oe pulses = %d", b.mem.Writes, b.mem.OEPulses)
	}
	// read: config, action, block; write: config, action, block; exit
	if b.host.count("A") != 7 {
		t.Fatalf("events = %v", b.host.events)
	}
}

func TestReadLatchesNoWrites(t *testing.T) {
	b := newBench(t, 8, Options{})
	// WE on bank A, CE on bank B of the same chip.
	b.mem.WE = types.CtrlPin{Pin: 50, Active: types.ActiveLow}
	b.mem.Words[7] = 0x99
	b.host.send(t, b.config(types.ActionRead, 7, 1))
	b.host.exit(t)

	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(b.mem.Writes) != 0 {
		t.Fatalf("read session latched writes %+v", b.mem.Writes)
	}
	if b.mem.OEPulses != 1 {
		t.Fatalf("oe pulses = %d, want 1", b.mem.OEPulses)
	}
	if got := b.host.data.Bytes(); !bytes.Equal(got, []byte{0x99}) {
		t.Fatalf("data = % x", got)
	}
}

func TestReadBusyTimeoutPadsBlock(t *testing.T) {
	b := newBench(t, 8, Options{BusyLimit: 5})
	b.mem.BusyAfterWrite = 1000
	b.host.send(t, b.config(types.ActionWrite, 0, 1))
	b.host.in.Write([]byte{0x42})
	b.host.send(t, b.config(types.ActionRead, 0, 4))

	err := b.eng.Run(context.Background())
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("err = %v", err)
	}
	if got := b.host.data.Bytes(); !bytes.Equal(got, bytes.Repeat([]byte{types.DummyByte}, 4)) {
		t.Fatalf("data = % x", got)
	}
	// write: config, action, block; read: config, action, then the NACK
	// in place of the block ACK
	want := []string{"A", "A", "A", "A", "A", "N:" + types.ReasonBusyTimeout}
	if strings.Join(b.host.events, "|") != strings.Join(want, "|") {
		t.Fatalf("events = %v", b.host.events)
	}
}

func TestPolarityFollowsEveryRecord(t *testing.T) {
	b := newBench(t, 8, Options{BusyLimit: 3})
	// The memory idles BY high (ready for an active-low line).
	b.host.send(t, b.config(types.ActionRead, 0, 1))
	c := b.config(types.ActionRead, 0, 1)
	c.BY.Active = types.ActiveHigh
	b.host.send(t, c)

	err := b.eng.Run(context.Background())
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("second record kept the old busy polarity: err = %v", err)
	}
	if b.host.data.Len() != 2 {
		t.Fatalf("data = % x", b.host.data.Bytes())
	}
}

func TestControlPinOutsideFabric(t *testing.T) {
	b := newBench(t, 8, Options{})
	c := b.config(types.ActionRead, 0, 1)
	c.CE = types.CtrlPin{Pin: 200, Active: types.ActiveLow}
	b.host.send(t, c)

	err := b.eng.Run(context.Background())
	if errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("err = %v", err)
	}
	if len(b.host.events) != 1 || b.host.events[0] != "N:"+types.ReasonInvalidConfig {
		t.Fatalf("events = %v", b.host.events)
	}
}

func TestWordSizeAndByteOrder(t *testing.T) {
	b := newBench(t, 16, Options{})
	b.mem.Words[0] = 0x1234
	b.mem.Words[1] = 0xABCD
	c := b.config(types.ActionRead, 0, 3)
	c.ByteOrder = types.BigEndian
	b.host.send(t, c)

	w := b.config(types.ActionWrite, 0x10, 3)
	w.ByteOrder = types.LittleEndian
	b.host.send(t, w)
	b.host.in.Write([]byte{0x01, 0x02, 0x03})
	b.host.exit(t)

	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.host.data.Bytes(); !bytes.Equal(got, []byte{0x12, 0x34, 0xAB}) {
		t.Fatalf("read = % x", got)
	}
	if b.mem.OEPulses != 2 {
		t.Fatalf("oe pulses = %d, want one per word", b.mem.OEPulses)
	}
	if b.mem.Words[0x10] != 0x0201 || b.mem.Words[0x11] != 0x0003 {
		t.Fatalf("words = %#x %#x", b.mem.Words[0x10], b.mem.Words[0x11])
	}
}

func TestAddressRoundTrip(t *testing.T) {
	b := newBench(t, 8, Options{})
	b.host.send(t, b.config(types.ActionWrite, 0xABCD, 1))
	b.host.in.Write([]byte{0x7E})
	b.host.exit(t)
	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(b.mem.Writes) != 1 || b.mem.Writes[0] != (sim.Cycle{Addr: 0xABCD, Data: 0x7E}) {
		t.Fatalf("writes = %+v", b.mem.Writes)
	}
}

func TestCommandAction(t *testing.T) {
	b := newBench(t, 8, Options{})
	c := b.config(types.ActionCommand, 0, 0)
	c.Commands = []uint32{0x5555, 0xAA, 0x2AAA, 0x55, 0x5555, 0x10}
	b.host.send(t, c)
	b.host.exit(t)
	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(b.mem.Writes) != 3 || b.host.count("A") != 4 {
		t.Fatalf("writes = %d events = %v", len(b.mem.Writes), b.host.events)
	}
}

func TestUnsupportedActionKeepsSession(t *testing.T) {
	b := newBench(t, 8, Options{})
	b.host.send(t, b.config(types.ActionHigh, 0, 0))
	b.host.exit(t)
	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"A", "N:The specified action is not supported [0x3]", "A"}
	if strings.Join(b.host.events, "|") != strings.Join(want, "|") {
		t.Fatalf("events = %v", b.host.events)
	}
}

func TestBusyTimeout(t *testing.T) {
	b := newBench(t, 8, Options{BusyLimit: 5})
	b.mem.BusyAfterWrite = 1000
	b.host.send(t, b.config(types.ActionWrite, 0, 2))
	b.host.in.Write([]byte{1, 2})

	err := b.eng.Run(context.Background())
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("err = %v", err)
	}
	if last := b.host.events[len(b.host.events)-1]; last != "N:"+types.ReasonBusyTimeout {
		t.Fatalf("events = %v", b.host.events)
	}
	if len(b.mem.Writes) != 1 {
		t.Fatalf("writes = %d", len(b.mem.Writes))
	}
}

func TestBusyWaitHonoursReady(t *testing.T) {
	b := newBench(t, 8, Options{BusyLimit: 5})
	b.mem.BusyAfterWrite = 3
	b.host.send(t, b.config(types.ActionWrite, 0, 2))
	b.host.in.Write([]byte{1, 2})
	b.host.exit(t)
	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// one poll for the first word, 3 busy + 1 ready for the second
	if b.mem.BusyPolls != 5 {
		t.Fatalf("busy polls = %d", b.mem.BusyPolls)
	}
}

func TestReconfigureOnlyWhenAsked(t *testing.T) {
	b := newBench(t, 8, Options{})
	b.host.send(t, b.config(types.ActionCommand, 0, 0))
	b.host.send(t, b.config(types.ActionCommand, 0, 0))
	b.host.exit(t)
	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := b.rig.Chain.Writes

	b2 := newBench(t, 8, Options{})
	c := b2.config(types.ActionCommand, 0, 0)
	b2.host.send(t, c)
	c.Reconfigure = true
	b2.host.send(t, c)
	b2.host.exit(t)
	if err := b2.eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b2.rig.Chain.Writes <= first {
		t.Fatalf("reconfigure issued no extra writes: %d vs %d", b2.rig.Chain.Writes, first)
	}
}

func TestCEReleasedBetweenActions(t *testing.T) {
	b := newBench(t, 8, Options{})
	c := b.config(types.ActionRead, 0, 1)
	c.CEIdle = types.CEReleased
	b.host.send(t, c)
	b.host.exit(t)
	if err := b.eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !b.rig.Chain.Level(pinCE) {
		t.Fatal("active-low CE still asserted after the action")
	}
}
