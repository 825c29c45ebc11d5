// Package parallel drives parallel memory devices (EPROM, EEPROM, flash,
// SRAM) through the pin fabric.
//
// A session is a loop of fixed-size configuration records. Each record
// either exits, or is validated, optionally (re)configures the target's
// pins, and runs one action: READ streams bytes to the host, WRITE consumes
// bytes in BlockSize blocks with one ACK per block, COMMAND runs the
// record's unlock/command list on its own.
package parallel

import (
	"context"
	"io"
	"time"

	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/fabric"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/fmtx"
	"github.com/e2thenegpii/gumbi/x/timex"
)

// Host is the programmer's side of the link.
type Host interface {
	io.Reader
	io.Writer
	Ack() error
	Nack(reason string) error
}

// Options tune an Engine. The zero value is usable.
type Options struct {
	// BusyLimit bounds the busy-pin polls per word. Zero polls forever.
	BusyLimit int
	// Clock times the target; nil means timex.Real.
	Clock timex.Clock
}

var errBusyTimeout = errcode.New(errcode.Timeout, "parallel.busy", types.ReasonBusyTimeout)

// Engine runs parallel-mode sessions against one fabric.
type Engine struct {
	f    *fabric.Fabric
	host Host
	clk  timex.Clock
	busy int

	cfg        types.ParallelConfig
	configured bool

	rec [types.ParallelConfigSize]byte
	blk [types.BlockSize]byte
	out [types.BlockSize]byte
}

// New returns an engine; the fabric must already be enabled.
func New(f *fabric.Fabric, host Host, opt Options) *Engine {
	clk := opt.Clock
	if clk == nil {
		clk = timex.Real{}
	}
	return &Engine{f: f, host: host, clk: clk, busy: opt.BusyLimit}
}

// Config returns the active configuration.
func (e *Engine) Config() types.ParallelConfig { return e.cfg }

// Run serves records until EXIT (nil), an invalid record, a busy timeout,
// or a transport or bus failure (the error).
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(e.host, e.rec[:]); err != nil {
			return errcode.Wrap(errcode.Transport, "parallel.read", err)
		}
		cfg, err := types.DecodeParallel(e.rec[:])
		if cfg.Action == types.ActionExit {
			return e.host.Ack()
		}
		if err == nil {
			err = e.Validate(&cfg)
		}
		if err != nil {
			return e.fail(err)
		}
		if err := e.host.Ack(); err != nil {
			return err
		}
		if err := e.Apply(cfg); err != nil {
			return e.fail(err)
		}
		if err := e.Dispatch(); err != nil {
			return e.fail(err)
		}
	}
}

// fail reports err to the host, unless the link itself failed, and
// returns it.
func (e *Engine) fail(err error) error {
	if errcode.Of(err) != errcode.Transport {
		e.host.Nack(errcode.Reason(err))
	}
	return err
}

// Validate checks every pin the record names against the fabric. Control
// lines may be absent (UnusedPin) but not outside the fabric.
func (e *Engine) Validate(c *types.ParallelConfig) error {
	invalid := func(msg string) error {
		return &errcode.E{C: errcode.InvalidConfig, Op: "parallel.validate", Msg: types.ReasonInvalidConfig, Err: errcode.New(errcode.InvalidConfig, "", msg)}
	}
	if len(c.Commands)%2 != 0 {
		return invalid("odd command list")
	}
	for _, ps := range [][]uint8{c.AddrPins, c.DataPins, c.VccPins, c.GndPins} {
		if !e.f.AreValid(ps) {
			return invalid("pin outside fabric")
		}
	}
	for _, p := range []types.CtrlPin{c.CE, c.WE, c.RE, c.OE, c.BE, c.BY, c.WP, c.RST} {
		if p.Pin != types.UnusedPin && !e.f.IsValid(p.Pin) {
			return invalid("control pin outside fabric")
		}
	}
	return nil
}

// Apply adopts cfg, configuring the target's pins on the first record and
// whenever cfg asks for it.
func (e *Engine) Apply(cfg types.ParallelConfig) error {
	first := !e.configured
	e.cfg = cfg
	for _, p := range e.ctrl() {
		e.f.Assign(p)
	}
	if first || cfg.Reconfigure {
		if err := e.Configure(); err != nil {
			return err
		}
		e.configured = true
	}
	return nil
}

func (e *Engine) ctrl() []types.CtrlPin {
	c := &e.cfg
	return []types.CtrlPin{c.CE, c.WE, c.RE, c.OE, c.BE, c.BY, c.WP, c.RST}
}

// Configure sets pin directions, idles every control line, powers the
// target and asserts chip enable.
func (e *Engine) Configure() error {
	c := &e.cfg
	f := e.f
	for _, ps := range [][]uint8{c.AddrPins, c.DataPins, c.VccPins, c.GndPins} {
		f.ConfigureDirections(ps, types.Output)
	}
	for _, p := range []types.CtrlPin{c.OE, c.WE, c.RE, c.CE, c.BE, c.RST, c.WP} {
		f.ConfigureDirection(p.Pin, types.Output)
	}
	f.ConfigureDirection(c.BY.Pin, types.Input)

	// Shadow only; committed below with everything else.
	f.SetLevel(c.BE.Pin, c.BE.Active.Level(c.WordSize() == 1))
	for _, p := range []types.CtrlPin{c.RST, c.WE, c.RE, c.OE, c.WP, c.CE} {
		f.SetLevel(p.Pin, p.Active.Level(false))
	}
	f.SetLevels(c.VccPins, true)
	f.SetLevels(c.GndPins, false)

	// Latches first so no line glitches through its active level when it
	// turns into an output.
	if err := f.CommitLevels(); err != nil {
		return err
	}
	if err := f.CommitDirections(); err != nil {
		return err
	}
	e.clk.DelayMicros(uint32(c.TOE))
	if err := f.Assert(c.CE, true); err != nil {
		return err
	}
	e.clk.DelayMicros(uint32(c.TOE))
	return nil
}

// Dispatch runs the active record's action.
func (e *Engine) Dispatch() error {
	release := e.cfg.CEIdle == types.CEReleased
	if release {
		if err := e.f.Assert(e.cfg.CE, true); err != nil {
			return err
		}
	}
	var err error
	switch e.cfg.Action {
	case types.ActionRead:
		err = e.Read()
	case types.ActionWrite:
		err = e.Write()
	case types.ActionCommand:
		if err = e.host.Ack(); err == nil {
			if err = e.RunCommands(); err == nil {
				err = e.host.Ack()
			}
		}
	default:
		err = e.host.Nack(fmtx.Sprintf("The specified action is not supported [0x%X]", uint8(e.cfg.Action)))
	}
	if release {
		if rerr := e.f.Assert(e.cfg.CE, false); err == nil {
			err = rerr
		}
	}
	return err
}

// RunCommands writes each (address, data) pair of the command list, then
// waits the record's command delay.
func (e *Engine) RunCommands() error {
	cmds := e.cfg.Commands
	if len(cmds) == 0 {
		return nil
	}
	for i := 0; i+1 < len(cmds); i += 2 {
		if err := e.WriteWord(cmds[i], uint16(cmds[i+1])); err != nil {
			return err
		}
	}
	e.clk.Sleep(time.Duration(e.cfg.CmdDelay) * time.Second)
	return nil
}

// WaitReady polls the busy line until the target is ready.
func (e *Engine) WaitReady() error {
	for polls := 0; ; polls++ {
		busy, err := e.f.Asserted(e.cfg.BY)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if e.busy > 0 && polls >= e.busy {
			return errBusyTimeout
		}
	}
}

// SetAddress drives addr onto the address pins.
func (e *Engine) SetAddress(addr uint32) error {
	e.f.SetValue(e.cfg.AddrPins, addr)
	return e.f.CommitTargeted(e.cfg.AddrPins)
}

// SetData drives w onto the data pins.
func (e *Engine) SetData(w uint16) error {
	e.f.SetValue(e.cfg.DataPins, uint32(w))
	return e.f.CommitTargeted(e.cfg.DataPins)
}

// ReadWord samples the data pins at addr.
func (e *Engine) ReadWord(addr uint32) (uint16, error) {
	c := &e.cfg
	if err := e.WaitReady(); err != nil {
		return 0, err
	}
	if err := e.SetAddress(addr); err != nil {
		return 0, err
	}
	if err := e.strobe(true, c.OE, c.RE); err != nil {
		return 0, err
	}
	e.clk.DelayMicros(uint32(c.TOE))
	v, err := e.f.SampleTargeted(c.DataPins)
	if err != nil {
		return 0, err
	}
	if err := e.strobe(false, c.OE, c.RE); err != nil {
		return 0, err
	}
	e.clk.DelayMicros(uint32(c.TOE))
	return uint16(v), nil
}

// WriteWord latches w at addr with one write-enable pulse.
func (e *Engine) WriteWord(addr uint32, w uint16) error {
	c := &e.cfg
	if err := e.WaitReady(); err != nil {
		return err
	}
	if err := e.f.Assert(c.OE, false); err != nil {
		return err
	}
	if err := e.SetAddress(addr); err != nil {
		return err
	}
	if err := e.SetData(w); err != nil {
		return err
	}
	e.clk.DelayMicros(uint32(c.TOE))
	if err := e.f.Assert(c.WE, true); err != nil {
		return err
	}
	e.clk.DelayMicros(uint32(c.TOE))
	if err := e.f.Assert(c.WE, false); err != nil {
		return err
	}
	e.clk.DelayMicros(uint32(c.TOE))
	return nil
}

func (e *Engine) strobe(on bool, lines ...types.CtrlPin) error {
	for _, l := range lines {
		if err := e.f.Assert(l, on); err != nil {
			return err
		}
	}
	return nil
}
