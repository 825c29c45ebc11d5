package session

import (
	"context"
	"errors"

	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/parallel"
	"github.com/e2thenegpii/gumbi/softbus"
	"github.com/e2thenegpii/gumbi/types"
	"github.com/e2thenegpii/gumbi/x/fmtx"
)

func (s *Session) parallel(ctx context.Context) error {
	return s.powered(func() error {
		return parallel.New(s.f, s, s.opt.Engine).Run(ctx)
	})
}

var errInvalidConfig = errcode.New(errcode.InvalidConfig, "session.validate", types.ReasonInvalidConfig)

// power drives the target's supply pins and commits them.
func (s *Session) power(vcc, gnd []uint8) error {
	f := s.f
	pins := append(append([]uint8(nil), vcc...), gnd...)
	f.SetLevels(vcc, true)
	f.SetLevels(gnd, false)
	if err := f.CommitTargeted(pins); err != nil {
		return err
	}
	f.ConfigureDirections(pins, types.Output)
	return f.CommitTargetedDirections(pins)
}

func unsupported(bus string, a types.Action) string {
	return fmtx.Sprintf("The specified %s action is not supported [0x%X]", bus, uint8(a))
}

// serial runs an interactive soft-bus loop: read a record, EXIT leaves,
// an invalid record is NACKed and the next one is read, anything else is
// ACKed and handed to run.
func (s *Session) serial(ctx context.Context, size int, run func(rec []byte) error) error {
	return s.powered(func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec := s.rec[:size]
			if err := s.ReadConfig(rec); err != nil {
				return err
			}
			if types.Action(rec[0]) == types.ActionExit {
				return s.Ack()
			}
			err := run(rec)
			switch errcode.Of(err) {
			case errcode.OK:
			case errcode.Transport:
				return err
			case errcode.InvalidConfig, errcode.NoAcknowledge, errcode.UnsupportedAction:
				if err := s.Nack(errcode.Reason(err)); err != nil {
					return err
				}
			default:
				s.Nack(errcode.Reason(err))
				return err
			}
		}
	})
}

func (s *Session) spi(ctx context.Context) error {
	var (
		bus  *softbus.SPI
		held bool
	)
	return s.serial(ctx, types.SPIConfigSize, func(rec []byte) error {
		cfg, err := types.DecodeSPI(rec)
		if err != nil {
			return err
		}
		if !s.f.AreValid([]uint8{cfg.SS.Pin, cfg.CLK.Pin, cfg.MOSI.Pin, cfg.MISO.Pin}) ||
			!s.f.AreValid(cfg.VccPins) || !s.f.AreValid(cfg.GndPins) {
			return errInvalidConfig
		}
		if err := s.Ack(); err != nil {
			return err
		}
		if !held {
			bus = softbus.NewSPI(s.f, softbus.SPIPins{SS: cfg.SS, CLK: cfg.CLK, MOSI: cfg.MOSI, MISO: cfg.MISO}, s.opt.Clock, s.opt.HalfPeriod)
			if err := bus.Configure(); err != nil {
				return err
			}
		}
		if err := s.power(cfg.VccPins, cfg.GndPins); err != nil {
			return err
		}

		switch cfg.Action {
		case types.ActionRead, types.ActionWrite:
		default:
			return errcode.New(errcode.UnsupportedAction, "spi", unsupported("SPI", cfg.Action))
		}
		if err := bus.Select(true); err != nil {
			return err
		}
		if cfg.Action == types.ActionRead {
			err = s.spiRead(bus, cfg.Count)
		} else {
			err = s.spiWrite(bus, cfg.Count)
		}
		held = cfg.Hold && err == nil
		if !held {
			if serr := bus.Select(false); err == nil {
				err = serr
			}
		}
		return err
	})
}

func (s *Session) spiRead(bus *softbus.SPI, count uint32) error {
	if err := s.Ack(); err != nil {
		return err
	}
	for ; count > 0; count-- {
		v, err := bus.Transfer(types.DummyByte)
		if err != nil {
			s.Flush()
			return err
		}
		if err := s.WriteByte(v); err != nil {
			return err
		}
	}
	return s.Flush()
}

func (s *Session) spiWrite(bus *softbus.SPI, count uint32) error {
	if err := s.Ack(); err != nil {
		return err
	}
	for left := count; left > 0; {
		blk, err := s.readBlock(left)
		if err != nil {
			return err
		}
		if err := bus.Tx(blk, nil); err != nil {
			return err
		}
		left -= uint32(len(blk))
		if err := s.Ack(); err != nil {
			return err
		}
	}
	return nil
}

var errNoAck = errcode.New(errcode.NoAcknowledge, "i2c", types.ReasonNoAck)

func (s *Session) i2c(ctx context.Context) error {
	return s.serial(ctx, types.I2CConfigSize, func(rec []byte) error {
		cfg, err := types.DecodeI2C(rec)
		if err != nil {
			return err
		}
		if !s.f.IsValid(cfg.SDA.Pin) || !s.f.IsValid(cfg.SCL.Pin) || cfg.SDA.Pin == cfg.SCL.Pin ||
			!s.f.AreValid(cfg.VccPins) || !s.f.AreValid(cfg.GndPins) {
			return errInvalidConfig
		}
		if err := s.Ack(); err != nil {
			return err
		}
		bus := softbus.NewI2C(s.f, cfg.SDA.Pin, cfg.SCL.Pin, s.opt.Clock, s.opt.HalfPeriod)
		if err := bus.Configure(); err != nil {
			return err
		}
		if err := s.power(cfg.VccPins, cfg.GndPins); err != nil {
			return err
		}
		switch cfg.Action {
		case types.ActionRead:
			return s.i2cRead(bus, cfg)
		case types.ActionWrite:
			return s.i2cWrite(bus, cfg)
		}
		return errcode.New(errcode.UnsupportedAction, "i2c", unsupported("I2C", cfg.Action))
	})
}

// i2cRead addresses the target before acknowledging the action so a
// missing target is reported instead of data.
func (s *Session) i2cRead(bus *softbus.I2C, cfg types.I2CConfig) error {
	addr := cfg.Addr << 1
	steps := func() error {
		if err := bus.Start(); err != nil {
			return err
		}
		if len(cfg.Prefix) > 0 {
			if err := s.i2cSend(bus, addr, cfg.Prefix); err != nil {
				return err
			}
			if err := bus.Start(); err != nil {
				return err
			}
		}
		return s.i2cSend(bus, addr|1, nil)
	}
	if err := steps(); err != nil {
		bus.Stop()
		return err
	}
	if err := s.Ack(); err != nil {
		return err
	}
	for i := uint32(0); i < cfg.Count; i++ {
		v, err := bus.ReadByte(i+1 < cfg.Count)
		if err != nil {
			s.Flush()
			return err
		}
		if err := s.WriteByte(v); err != nil {
			return err
		}
	}
	if err := bus.Stop(); err != nil {
		return err
	}
	return s.Flush()
}

// i2cWrite sends each host block as its own transaction, prefix first.
func (s *Session) i2cWrite(bus *softbus.I2C, cfg types.I2CConfig) error {
	if err := s.Ack(); err != nil {
		return err
	}
	w := make([]byte, 0, types.MaxPrefix+types.BlockSize)
	for left := cfg.Count; left > 0; {
		blk, err := s.readBlock(left)
		if err != nil {
			return err
		}
		w = append(append(w[:0], cfg.Prefix...), blk...)
		if err := bus.Tx(uint16(cfg.Addr), w, nil); err != nil {
			if errors.Is(err, softbus.ErrNoAck) {
				return errNoAck
			}
			return err
		}
		left -= uint32(len(blk))
		if err := s.Ack(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) i2cSend(bus *softbus.I2C, head byte, body []byte) error {
	for i := -1; i < len(body); i++ {
		v := head
		if i >= 0 {
			v = body[i]
		}
		ack, err := bus.WriteByte(v)
		if err != nil {
			return err
		}
		if !ack {
			return errNoAck
		}
	}
	return nil
}
