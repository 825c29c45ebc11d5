package session

import (
	"context"
	"encoding/binary"

	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/fmtx"
)

func (s *Session) info(context.Context) error {
	fmtx.Fprintf(s.out, "Board ID: %s\n", types.BoardID)
	fmtx.Fprintf(s.out, "Firmware Version: %s\n", types.FirmwareVersion)
	fmtx.Fprintf(s.out, "I/O Chip Count: %d\n", s.f.ChipCount())
	fmtx.Fprintf(s.out, "I/O Pin Count: %d\n", s.f.PinCount())
	return s.Ack()
}

func (s *Session) id(context.Context) error { return s.line(types.BoardID) }

func (s *Session) speedTest(context.Context) error {
	var b [types.CountSize]byte
	if err := s.ReadConfig(b[:]); err != nil {
		return err
	}
	for n := binary.LittleEndian.Uint32(b[:]); n > 0; n-- {
		if err := s.WriteByte(types.DummyByte); err != nil {
			return err
		}
	}
	return s.Flush()
}

func (s *Session) xfer(context.Context) error {
	var b [types.XferTestSize]byte
	if err := s.ReadConfig(b[:]); err != nil {
		return err
	}
	if _, err := s.Write(b[:]); err != nil {
		return err
	}
	return s.Flush()
}

func (s *Session) pinCount() error {
	if err := s.WriteByte(byte(s.f.PinCount())); err != nil {
		return err
	}
	return s.Flush()
}

func (s *Session) setPinCount(context.Context) error {
	var b [1]byte
	if err := s.ReadConfig(b[:]); err != nil {
		return err
	}
	s.f.SetPinCount(int(b[0]))
	return s.pinCount()
}

func (s *Session) scanBus(context.Context) error {
	if err := s.f.Init(); err != nil {
		s.logf("session: scan: %v", err)
	}
	return s.pinCount()
}
