package client

import (
	"fmt"

	"github.com/e2thenegpii/gumbi/types"
)

// Parallel is an open parallel memory session. The programmer leaves the
// mode on any NACK (an invalid record or a busy timeout), after which the
// session reports ErrClosed.
type Parallel struct {
	c      *Client
	cfg    types.ParallelConfig
	closed bool
}

// Parallel enters PARALLEL mode for the target described by cfg. Action,
// Addr and Count are set per operation.
func (c *Client) Parallel(cfg types.ParallelConfig) (*Parallel, error) {
	if err := c.SetMode(types.ModeParallel); err != nil {
		return nil, err
	}
	return &Parallel{c: c, cfg: cfg}, nil
}

// Config returns the target configuration sent with every record.
func (p *Parallel) Config() types.ParallelConfig { return p.cfg }

// SetCommands replaces the unlock/command list (address, data pairs).
func (p *Parallel) SetCommands(cmds []uint32) { p.cfg.Commands = cmds }

// start sends one record and reads the configuration and action ACKs.
func (p *Parallel) start(a types.Action, addr, count uint32) error {
	if p.closed {
		return ErrClosed
	}
	cfg := p.cfg
	cfg.Action, cfg.Addr, cfg.Count = a, addr, count
	rec, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}
	if err := p.c.send(rec); err != nil {
		return err
	}
	if err := p.ack(); err != nil {
		return fmt.Errorf("gumbi: parallel %s config: %w", a, err)
	}
	if err := p.ack(); err != nil {
		return fmt.Errorf("gumbi: parallel %s: %w", a, err)
	}
	return nil
}

func (p *Parallel) ack() error {
	err := p.c.ReadAck()
	if IsNack(err) {
		p.closed = true
	}
	return err
}

// Read reads count bytes starting at word address addr. The programmer
// acknowledges every block; a NACK (such as a busy timeout) ends the read
// and the session, returning the blocks read before it.
func (p *Parallel) Read(addr, count uint32, progress func(done, total int)) ([]byte, error) {
	if err := p.start(types.ActionRead, addr, count); err != nil {
		return nil, err
	}
	data, err := p.c.readData(count, p.ack, progress)
	if err != nil {
		return data, fmt.Errorf("gumbi: parallel read after %d bytes: %w", len(data), err)
	}
	return data, nil
}

// Write programs data starting at word address addr, one block at a time.
func (p *Parallel) Write(addr uint32, data []byte, progress func(done, total int)) error {
	if err := p.start(types.ActionWrite, addr, uint32(len(data))); err != nil {
		return err
	}
	for off := 0; off < len(data); {
		end := min(off+types.BlockSize, len(data))
		if err := p.c.send(data[off:end]); err != nil {
			return err
		}
		if err := p.ack(); err != nil {
			return err
		}
		off = end
		if progress != nil {
			progress(off, len(data))
		}
	}
	return nil
}

// Exec runs the command list on its own (chip erase, software id entry).
func (p *Parallel) Exec() error {
	if err := p.start(types.ActionCommand, 0, 0); err != nil {
		return err
	}
	return p.ack()
}

// Close leaves PARALLEL mode.
func (p *Parallel) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	rec, err := (&types.ParallelConfig{Action: types.ActionExit}).MarshalBinary()
	if err != nil {
		return err
	}
	if err := p.c.send(rec); err != nil {
		return err
	}
	return p.c.ReadAck()
}
