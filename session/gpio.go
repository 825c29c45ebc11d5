package session

import (
	"context"
	"encoding/binary"

	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/fmtx"
)

// gpio serves single-pin commands until EXIT. Each record gets exactly one
// ACK or NACK; READ follows its ACK with one byte, 0 or 1.
func (s *Session) gpio(ctx context.Context) error {
	return s.powered(func() error {
		var b [types.GPIOCommandSize]byte
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.ReadConfig(b[:]); err != nil {
				return err
			}
			cmd := types.DecodeGPIO(b[:])
			if cmd.Action == types.ActionExit {
				return s.Ack()
			}
			if err := s.gpioCommand(cmd); err != nil {
				if errcode.Of(err) == errcode.Transport {
					return err
				}
				if err := s.Nack(errcode.Reason(err)); err != nil {
					return err
				}
			}
		}
	})
}

func (s *Session) gpioCommand(cmd types.GPIOCommand) error {
	f := s.f
	switch cmd.Action {
	case types.ActionHigh, types.ActionLow, types.ActionRead:
	default:
		return errcode.New(errcode.UnsupportedAction, "gpio",
			fmtx.Sprintf("The specified GPIO action is not supported [0x%X]", uint8(cmd.Action)))
	}
	if !f.IsValid(cmd.Pin) {
		return errcode.New(errcode.InvalidPin, "gpio", fmtx.Sprintf("Invalid pin [%d]", cmd.Pin))
	}
	if cmd.Action == types.ActionRead {
		if err := f.ConfigureDirectionImmediate(cmd.Pin, types.Input); err != nil {
			return err
		}
		high, err := f.GetLevel(cmd.Pin)
		if err != nil {
			return err
		}
		var v byte
		if high {
			v = 1
		}
		s.out.WriteString(types.AckToken + "\n")
		s.out.WriteByte(v)
		return s.Flush()
	}
	if err := f.ConfigureDirectionImmediate(cmd.Pin, types.Output); err != nil {
		return err
	}
	if err := f.SetLevelImmediate(cmd.Pin, cmd.Action == types.ActionHigh); err != nil {
		return err
	}
	return s.Ack()
}

// monitor streams the GPIOA/GPIOB pair of every chip count times per
// request until a zero count.
func (s *Session) monitor(ctx context.Context) error {
	return s.powered(func() error {
		var b [types.CountSize]byte
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.ReadConfig(b[:]); err != nil {
				return err
			}
			n := binary.LittleEndian.Uint32(b[:])
			if n == 0 {
				return s.Ack()
			}
			for ; n > 0; n-- {
				for c := 0; c < s.f.ChipCount(); c++ {
					a, bb, err := s.f.ReadBanks(uint8(c))
					if err != nil {
						s.Flush()
						return err
					}
					s.WriteByte(a)
					if err := s.WriteByte(bb); err != nil {
						return err
					}
				}
			}
			if err := s.Flush(); err != nil {
				return err
			}
		}
	})
}
