package client

import (
	"fmt"

	"github.com/e2thenegpii/gumbi/types"
)

// SPI is an open soft SPI session. An invalid record is NACKed and the
// session stays open.
type SPI struct {
	c      *Client
	cfg    types.SPIConfig
	closed bool
}

// SPI enters SPI mode for the lines and supplies in cfg.
func (c *Client) SPI(cfg types.SPIConfig) (*SPI, error) {
	if err := c.SetMode(types.ModeSPI); err != nil {
		return nil, err
	}
	return &SPI{c: c, cfg: cfg}, nil
}

func (s *SPI) start(a types.Action, count uint32, hold bool) error {
	if s.closed {
		return ErrClosed
	}
	cfg := s.cfg
	cfg.Action, cfg.Count, cfg.Hold = a, count, hold
	rec, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.c.send(rec); err != nil {
		return err
	}
	for _, what := range []string{"config", "action"} {
		if err := s.c.ReadAck(); err != nil {
			return fmt.Errorf("gumbi: spi %s %s: %w", a, what, err)
		}
	}
	return nil
}

// Read clocks in count bytes. With hold set slave-select stays asserted so
// the next Read or Write continues the same transaction.
func (s *SPI) Read(count uint32, hold bool) ([]byte, error) {
	if err := s.start(types.ActionRead, count, hold); err != nil {
		return nil, err
	}
	return s.c.readData(count, nil, nil)
}

// Write clocks out data; see Read for hold.
func (s *SPI) Write(data []byte, hold bool) error {
	if err := s.start(types.ActionWrite, uint32(len(data)), hold); err != nil {
		return err
	}
	return s.c.sendBlocks(data, nil)
}

// Transfer writes w, then reads n bytes in the same transaction.
func (s *SPI) Transfer(w []byte, n uint32) ([]byte, error) {
	if err := s.Write(w, true); err != nil {
		return nil, err
	}
	return s.Read(n, false)
}

// Close leaves SPI mode.
func (s *SPI) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	rec, err := (&types.SPIConfig{Action: types.ActionExit}).MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.c.send(rec); err != nil {
		return err
	}
	return s.c.ReadAck()
}

// I2C is an open soft I2C session.
type I2C struct {
	c      *Client
	cfg    types.I2CConfig
	closed bool
}

// I2C enters I2C mode for the lines and supplies in cfg.
func (c *Client) I2C(cfg types.I2CConfig) (*I2C, error) {
	if err := c.SetMode(types.ModeI2C); err != nil {
		return nil, err
	}
	return &I2C{c: c, cfg: cfg}, nil
}

func (b *I2C) start(a types.Action, addr uint8, prefix []byte, count uint32) error {
	if b.closed {
		return ErrClosed
	}
	if len(prefix) > types.MaxPrefix {
		return types.ErrPrefixLength
	}
	cfg := b.cfg
	cfg.Action, cfg.Addr, cfg.Prefix, cfg.Count = a, addr, prefix, count
	rec, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}
	if err := b.c.send(rec); err != nil {
		return err
	}
	for _, what := range []string{"config", "action"} {
		if err := b.c.ReadAck(); err != nil {
			return fmt.Errorf("gumbi: i2c %s 0x%02X %s: %w", a, addr, what, err)
		}
	}
	return nil
}

// Read writes prefix (a register or word address) to the target at addr,
// then reads count bytes after a repeated start.
func (b *I2C) Read(addr uint8, prefix []byte, count uint32) ([]byte, error) {
	if err := b.start(types.ActionRead, addr, prefix, count); err != nil {
		return nil, err
	}
	return b.c.readData(count, nil, nil)
}

// Write sends data to the target at addr. Each BlockSize block is its own
// transaction with prefix in front, so page-sized writes line up with
// block boundaries.
func (b *I2C) Write(addr uint8, prefix, data []byte) error {
	if err := b.start(types.ActionWrite, addr, prefix, uint32(len(data))); err != nil {
		return err
	}
	return b.c.sendBlocks(data, nil)
}

// Close leaves I2C mode.
func (b *I2C) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	rec, err := (&types.I2CConfig{Action: types.ActionExit}).MarshalBinary()
	if err != nil {
		return err
	}
	if err := b.c.send(rec); err != nil {
		return err
	}
	return b.c.ReadAck()
}
