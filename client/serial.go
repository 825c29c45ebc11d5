package client

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaud is used by OpenSerial when baud is zero. USB CDC links
// ignore it.
const DefaultBaud = 115200

// OpenSerial opens a programmer on a serial port. A positive timeout
// bounds every read; a silent link then fails with ErrTimeout.
func OpenSerial(port string, baud int, timeout time.Duration, opts ...Option) (*Client, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("gumbi: open %s: %w", port, err)
	}
	if timeout > 0 {
		if err := p.SetReadTimeout(timeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("gumbi: %s: %w", port, err)
		}
	}
	return New(serialPort{p}, opts...), nil
}

// serialPort turns the port's silent read timeout into ErrTimeout.
type serialPort struct{ serial.Port }

func (p serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, ErrTimeout
	}
	return n, err
}

// Port is a serial port that may be a programmer.
type Port struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// ListPorts lists the host's serial ports with their USB identity when
// known.
func ListPorts() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("gumbi: list ports: %w", err)
	}
	out := make([]Port, 0, len(details))
	for _, d := range details {
		out = append(out, Port{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return out, nil
}
