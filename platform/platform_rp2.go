//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/errcode"
	"github.com/e2thenegpii/gumbi/platform/boards"
)

// Open configures the selected board: SPI at the board clock in mode 0,
// chip-select and reset as outputs, and the host link.
func Open() (*Hardware, error) {
	b := boards.Selected
	bus := machine.SPI0
	if b.SPI == "spi1" {
		bus = machine.SPI1
	}
	if err := bus.Configure(machine.SPIConfig{
		Frequency: b.SPIHz,
		SCK:       machine.Pin(b.SCK),
		SDO:       machine.Pin(b.SDO),
		SDI:       machine.Pin(b.SDI),
		Mode:      0,
	}); err != nil {
		return nil, errcode.Wrap(errcode.Bus, "platform.spi", err)
	}
	h := &Hardware{
		Board: b,
		Bus:   bus,
		CS:    output(b.CS),
		Reset: output(b.Reset),
	}

	var u *uartx.UART
	switch b.Link {
	case "uart0":
		u = uartx.UART0
	case "uart1":
		u = uartx.UART1
	default:
		h.Link = usbLink{}
		return h, nil
	}
	// Defaults inside uartx apply to zero fields.
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: b.Baud,
		TX:       machine.Pin(b.TX),
		RX:       machine.Pin(b.RX),
	}); err != nil {
		return nil, errcode.Wrap(errcode.Transport, "platform.uart", err)
	}
	h.Link = uartLink{u: u}
	return h, nil
}

func output(n int) mcp23s17.Pin {
	if n < 0 {
		return nil
	}
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.High()
	return p
}

// uartLink blocks in the driver until bytes arrive.
type uartLink struct{ u *uartx.UART }

func (l uartLink) Read(p []byte) (int, error) {
	return l.u.RecvSomeContext(context.Background(), p)
}

func (l uartLink) Write(p []byte) (int, error) { return l.u.Write(p) }

// usbLink is the USB CDC console. The CDC driver never blocks, so reads
// poll its buffer.
type usbLink struct{}

func (usbLink) Read(p []byte) (int, error) {
	for machine.Serial.Buffered() == 0 {
		time.Sleep(50 * time.Microsecond)
	}
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		p[n] = c
		n++
	}
	return n, nil
}

func (usbLink) Write(p []byte) (int, error) { return machine.Serial.Write(p) }
