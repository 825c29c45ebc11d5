// Package platform binds the programmer to a board: the SPI bus to the
// expander chain, its chip-select and reset lines, and the host link.
//
// Open picks the build's default board (the RP2 board on TinyGo, the
// simulator elsewhere); OpenLinux binds a Linux board through periph.
package platform

import (
	"io"

	"tinygo.org/x/drivers"

	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/fabric"
	"github.com/e2thenegpii/gumbi/parallel"
	"github.com/e2thenegpii/gumbi/platform/boards"
	"github.com/e2thenegpii/gumbi/session"
)

// Hardware is an opened board.
type Hardware struct {
	Board boards.Board
	Bus   drivers.SPI
	CS    mcp23s17.Pin // nil when the controller drives chip-select
	Reset mcp23s17.Pin
	Link  io.ReadWriter

	closers []io.Closer
}

// Fabric wires the expander driver to the bus and scans the chain. The
// fabric is returned even when the scan finds nothing so a later SCANBUS
// can retry.
func (h *Hardware) Fabric() (*fabric.Fabric, error) {
	d := mcp23s17.New(h.Bus)
	d.Configure(mcp23s17.Config{CS: h.CS, Reset: h.Reset})
	f := fabric.New(&d)
	return f, f.Init()
}

// SessionOptions returns the board's tuning for session.New.
func (h *Hardware) SessionOptions() session.Options {
	return session.Options{
		Engine:     parallel.Options{BusyLimit: h.Board.BusyLimit},
		HalfPeriod: h.Board.HalfPeriod,
	}
}

// Close releases whatever Open acquired, newest first.
func (h *Hardware) Close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	h.closers = nil
	return first
}
