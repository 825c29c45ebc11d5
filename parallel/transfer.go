package parallel

import (
	"io"

	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/types"
)

// Read streams Count bytes starting at Addr, one address step per word.
// The bytes go out in blocks of at most BlockSize, each followed by an ACK.
// A block cut short by a failure is padded with DummyByte and the failure
// is returned, so the caller's NACK takes the place of the block's ACK.
// Without data pins no words are read and every block is padding. The
// command list runs before the action ACK so its failure is a plain NACK.
func (e *Engine) Read() error {
	c := &e.cfg
	if err := e.RunCommands(); err != nil {
		return err
	}
	e.f.ConfigureDirections(c.DataPins, types.Input)
	if err := e.f.CommitTargetedDirections(c.DataPins); err != nil {
		return err
	}
	if err := e.host.Ack(); err != nil {
		return err
	}

	addr := c.Addr
	for left := c.Count; left > 0; {
		n := int(min(left, types.BlockSize))
		err := e.readBlock(&addr, e.out[:n])
		if _, werr := e.host.Write(e.out[:n]); werr != nil {
			return errcode.Wrap(errcode.Transport, "parallel.read", werr)
		}
		if err != nil {
			return err
		}
		if err := e.host.Ack(); err != nil {
			return err
		}
		left -= uint32(n)
	}
	return nil
}

// readBlock fills blk with words read from *addr upward. On failure the
// rest of blk holds DummyByte.
func (e *Engine) readBlock(addr *uint32, blk []byte) error {
	c := &e.cfg
	ws := c.WordSize()
	var err error
	i := 0
	for ; ws > 0 && i < len(blk); i += ws {
		var w uint16
		if w, err = e.ReadWord(*addr); err != nil {
			break
		}
		*addr++
		if ws == 1 {
			blk[i] = byte(w)
			continue
		}
		first, second := c.ByteOrder.Bytes(w)
		blk[i] = first
		if i+1 < len(blk) {
			blk[i+1] = second
		}
	}
	for ; i < len(blk); i++ {
		blk[i] = types.DummyByte
	}
	return err
}

// Write programs Count bytes from the host starting at Addr. The host sends
// at most BlockSize bytes at a time and waits for an ACK after each block.
// The command list runs before every word. Without data pins the blocks
// are still consumed and acknowledged but no words are written.
func (e *Engine) Write() error {
	c := &e.cfg
	if err := e.host.Ack(); err != nil {
		return err
	}
	e.f.ConfigureDirections(c.DataPins, types.Output)
	if err := e.f.CommitTargetedDirections(c.DataPins); err != nil {
		return err
	}

	ws := c.WordSize()
	addr := c.Addr
	for left := c.Count; left > 0; {
		n := int(min(left, types.BlockSize))
		if _, err := io.ReadFull(e.host, e.blk[:n]); err != nil {
			return errcode.Wrap(errcode.Transport, "parallel.write", err)
		}
		for i := 0; ws > 0 && i < n; i += ws {
			w := uint16(e.blk[i])
			if ws == 2 && i+1 < n {
				w = c.ByteOrder.Word(e.blk[i], e.blk[i+1])
			}
			if err := e.RunCommands(); err != nil {
				return err
			}
			if err := e.WriteWord(addr, w); err != nil {
				return err
			}
			addr++
			e.clk.DelayMicros(uint32(c.TBP))
		}
		left -= uint32(n)
		if err := e.host.Ack(); err != nil {
			return err
		}
	}
	return nil
}
