// Package boards describes the boards the programmer firmware runs on.
package boards

// Board describes where the expander chain and the host link are wired.
// GPIO numbers are the SoC's own numbering; -1 means not wired.
type Board struct {
	Name string

	// Expander bus. SPI is a controller id ("spi0") on microcontrollers and
	// a periph port name ("/dev/spidev0.0") on Linux.
	SPI           string
	SPIHz         uint32
	SCK, SDO, SDI int
	// CS is -1 when the controller frames each transfer itself.
	CS    int
	Reset int

	// Host link: "usb" for the USB CDC console, "uart0"/"uart1", or a tty
	// path on Linux.
	Link   string
	TX, RX int
	Baud   uint32

	// HalfPeriod is the soft SPI/I2C half clock period in µs.
	HalfPeriod uint32
	// BusyLimit bounds busy-line polls per word; 0 polls forever.
	BusyLimit int
}

// Pico is a Raspberry Pi Pico with the expander chain on SPI0 and the host
// on the USB console.
var Pico = Board{
	Name:  "gumbi_pico",
	SPI:   "spi0",
	SPIHz: 10_000_000,
	SCK:   18,
	SDO:   19,
	SDI:   16,
	CS:    17,
	Reset: 20,
	Link:  "usb",
	TX:    0,
	RX:    1,
	Baud:  115200,
}

// PicoUART is Pico wired to the host through UART0 instead of USB.
var PicoUART = func() Board {
	b := Pico
	b.Name = "gumbi_pico_uart"
	b.Link = "uart0"
	b.Baud = 1_000_000
	return b
}()

// RaspberryPi runs the firmware as a daemon with the chain on spidev0.0
// and the host on the USB gadget serial port.
var RaspberryPi = Board{
	Name:  "gumbi_rpi",
	SPI:   "/dev/spidev0.0",
	SPIHz: 8_000_000,
	SCK:   -1,
	SDO:   -1,
	SDI:   -1,
	CS:    -1,
	Reset: 25,
	Link:  "/dev/ttyGS0",
	TX:    -1,
	RX:    -1,
	Baud:  115200,
}

// Sim is the simulated board used on development hosts.
var Sim = Board{
	Name:      "gumbi_sim",
	SCK:       -1,
	SDO:       -1,
	SDI:       -1,
	CS:        -1,
	Reset:     -1,
	Link:      "stdio",
	TX:        -1,
	RX:        -1,
	BusyLimit: 1 << 16,
}

var all = []Board{Pico, PicoUART, RaspberryPi, Sim}

// ByName looks a board up by Name.
func ByName(name string) (Board, bool) {
	for _, b := range all {
		if b.Name == name {
			return b, true
		}
	}
	return Board{}, false
}

// Names lists the known boards.
func Names() []string {
	out := make([]string, len(all))
	for i, b := range all {
		out[i] = b.Name
	}
	return out
}
