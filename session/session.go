// Package session is the programmer's command loop: it reads a mode byte
// from the host link, acknowledges it and runs the mode's handler, which
// reads its own records and answers with ACK/NACK lines.
//
// Every response is buffered and flushed at protocol boundaries (each ACK
// or NACK, the end of a data stream) so the link sees block-sized writes.
package session

import (
	"bufio"
	"context"
	"io"

	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/fabric"
	"github.com/e2thenegpii/gumbi/parallel"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/timex"
)

// Options tune a Session. The zero value is usable.
type Options struct {
	// Engine is passed to every parallel session.
	Engine parallel.Options
	// Clock times soft-bus edges; nil means timex.Real.
	Clock timex.Clock
	// HalfPeriod is the soft-bus half clock period in µs.
	HalfPeriod uint32
	// Logf receives diagnostics. Leave nil when the console shares the host
	// link.
	Logf func(format string, a ...any)
}

// Session serves one host link against one fabric.
type Session struct {
	link io.ReadWriter
	out  *bufio.Writer
	f    *fabric.Fabric
	opt  Options

	rec [types.ParallelConfigSize]byte
	blk [types.BlockSize]byte
}

// New returns a session; the fabric should already be scanned.
func New(link io.ReadWriter, f *fabric.Fabric, opt Options) *Session {
	if opt.Clock == nil {
		opt.Clock = timex.Real{}
	}
	if opt.Engine.Clock == nil {
		opt.Engine.Clock = opt.Clock
	}
	return &Session{
		link: link,
		out:  bufio.NewWriterSize(link, types.BlockSize),
		f:    f,
		opt:  opt,
	}
}

func (s *Session) logf(format string, a ...any) {
	if s.opt.Logf != nil {
		s.opt.Logf(format, a...)
	}
}

// Serve dispatches modes until ctx is done or the link fails. A failed
// Serve may be called again once the link recovers.
func (s *Session) Serve(ctx context.Context) error {
	s.out.Reset(s.link)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := s.ReadMode()
		if err != nil {
			return err
		}
		if err := s.Dispatch(ctx, m); err != nil {
			if errcode.Of(err) == errcode.Transport {
				return err
			}
			s.logf("session: %s: %v", m, err)
		}
	}
}

// ReadMode reads the next mode byte.
func (s *Session) ReadMode() (types.Mode, error) {
	var b [1]byte
	if err := s.ReadConfig(b[:]); err != nil {
		return types.ModeNOP, err
	}
	return types.Mode(b[0]), nil
}

// ReadConfig zeroes buf and fills it from the link.
func (s *Session) ReadConfig(buf []byte) error {
	clear(buf)
	if _, err := io.ReadFull(s.link, buf); err != nil {
		return errcode.Wrap(errcode.Transport, "session.read", err)
	}
	return nil
}

// Read satisfies parallel.Host.
func (s *Session) Read(p []byte) (int, error) { return s.link.Read(p) }

// Write queues p for the host.
func (s *Session) Write(p []byte) (int, error) {
	n, err := s.out.Write(p)
	if err != nil {
		return n, errcode.Wrap(errcode.Transport, "session.write", err)
	}
	return n, nil
}

// WriteByte queues one byte.
func (s *Session) WriteByte(b byte) error {
	if err := s.out.WriteByte(b); err != nil {
		return errcode.Wrap(errcode.Transport, "session.write", err)
	}
	return nil
}

// Flush pushes queued bytes to the link.
func (s *Session) Flush() error {
	if err := s.out.Flush(); err != nil {
		return errcode.Wrap(errcode.Transport, "session.flush", err)
	}
	return nil
}

func (s *Session) line(text string) error {
	s.out.WriteString(text)
	s.out.WriteByte('\n')
	return s.Flush()
}

// Ack sends an ACK line.
func (s *Session) Ack() error { return s.line(types.AckToken) }

// Nack sends a NACK line followed by reason, cut to MaxReason bytes.
func (s *Session) Nack(reason string) error {
	if len(reason) > types.MaxReason {
		reason = reason[:types.MaxReason]
	}
	s.out.WriteString(types.NackToken)
	s.out.WriteByte('\n')
	return s.line(reason)
}

var errUnknownMode = errcode.New(errcode.UnsupportedMode, "session.dispatch", types.ReasonUnknownMode)

// Dispatch acknowledges m and runs its handler. Unknown modes are NACKed
// and leave the session ready for the next mode byte.
func (s *Session) Dispatch(ctx context.Context, m types.Mode) error {
	h := s.handler(m)
	if h == nil {
		if err := s.Nack(errUnknownMode.Msg); err != nil {
			return err
		}
		return errUnknownMode
	}
	if err := s.Ack(); err != nil {
		return err
	}
	return h(ctx)
}

func (s *Session) handler(m types.Mode) func(context.Context) error {
	switch m {
	case types.ModeNOP:
		return func(context.Context) error { return nil }
	case types.ModePing:
		return func(context.Context) error { return s.Ack() }
	case types.ModeInfo:
		return s.info
	case types.ModeID:
		return s.id
	case types.ModeSpeedTest:
		return s.speedTest
	case types.ModeXfer:
		return s.xfer
	case types.ModeGetPinCount:
		return func(context.Context) error { return s.pinCount() }
	case types.ModeSetPinCount:
		return s.setPinCount
	case types.ModeScanBus:
		return s.scanBus
	case types.ModeGPIO:
		return s.gpio
	case types.ModeMonitor:
		return s.monitor
	case types.ModeParallel:
		return s.parallel
	case types.ModeSPI:
		return s.spi
	case types.ModeI2C:
		return s.i2c
	}
	return nil
}

// powered runs fn with the expanders out of reset and puts them back in
// reset afterwards, leaving every target pin floating between modes.
func (s *Session) powered(fn func() error) error {
	if err := s.f.Enable(); err != nil {
		s.f.Disable()
		return err
	}
	defer s.f.Disable()
	return fn()
}

// readBlock reads the next host block of at most BlockSize bytes.
func (s *Session) readBlock(left uint32) ([]byte, error) {
	n := int(min(left, types.BlockSize))
	if err := s.ReadConfig(s.blk[:n]); err != nil {
		return nil, err
	}
	return s.blk[:n], nil
}
