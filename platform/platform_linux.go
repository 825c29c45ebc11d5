//go:build linux && !(rp2040 || rp2350)

package platform

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/platform/boards"
)

var hostInitialized atomic.Bool

// OpenLinux binds b through periph: the chain on spidev, reset (and
// chip-select, when wired) on GPIO, and the host on the tty named by Link.
func OpenLinux(b boards.Board) (h *Hardware, err error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("platform: host initialization failed: %w", err)
		}
	}
	h = &Hardware{Board: b}
	defer func() {
		if err != nil {
			h.Close()
		}
	}()

	port, err := spireg.Open(b.SPI)
	if err != nil {
		return nil, fmt.Errorf("platform: open %s: %w", b.SPI, err)
	}
	h.closers = append(h.closers, port)
	conn, err := port.Connect(physic.Frequency(b.SPIHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("platform: connect %s: %w", b.SPI, err)
	}
	h.Bus = spiConn{conn}

	if h.Reset, err = gpioOut(b.Reset); err != nil {
		return nil, err
	}
	if h.CS, err = gpioOut(b.CS); err != nil {
		return nil, err
	}

	link, err := serial.Open(b.Link, &serial.Mode{
		BaudRate: int(b.Baud),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("platform: open %s: %w", b.Link, err)
	}
	h.closers = append(h.closers, link)
	h.Link = link
	return h, nil
}

// spiConn adapts a periph connection to the tinygo SPI interface.
type spiConn struct{ c spi.Conn }

func (s spiConn) Tx(w, r []byte) error { return s.c.Tx(w, r) }

func (s spiConn) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.c.Tx([]byte{b}, r[:])
	return r[0], err
}

type gpioPin struct{ p gpio.PinOut }

func (g gpioPin) Set(high bool) { _ = g.p.Out(gpio.Level(high)) }

// gpioOut claims GPIO n as an output idling high. Unwired lines are nil.
func gpioOut(n int) (mcp23s17.Pin, error) {
	if n < 0 {
		return nil, nil
	}
	p := gpioreg.ByName(strconv.Itoa(n))
	if p == nil {
		return nil, fmt.Errorf("platform: gpio %d not found", n)
	}
	if err := p.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("platform: gpio %d: %w", n, err)
	}
	return gpioPin{p}, nil
}
