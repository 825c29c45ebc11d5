// Package client drives a GUMBI programmer from the host. It frames modes
// and configuration records, checks the ACK/NACK lines the programmer
// answers with and moves bulk data in protocol blocks.
//
// A Client is not safe for concurrent use; the programmer serves one
// command at a time.
package client

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/e2thenegpii/gumbi/types"
)

var (
	// ErrResponse reports bytes that do not fit the protocol.
	ErrResponse = errors.New("gumbi: unexpected response")
	// ErrTimeout is returned when the link stays silent past its timeout.
	ErrTimeout = errors.New("gumbi: timeout")
	// ErrClosed is returned by a session used after Close or after the
	// programmer left the mode.
	ErrClosed = errors.New("gumbi: session closed")
)

// NackError is a NACK from the programmer.
type NackError struct {
	Reason string
}

func (e *NackError) Error() string { return "gumbi: nack: " + e.Reason }

// IsNack reports whether err is (or wraps) a NACK.
func IsNack(err error) bool {
	var n *NackError
	return errors.As(err, &n)
}

type inputFlusher interface {
	ResetInputBuffer() error
}

// Client talks to one programmer.
type Client struct {
	rw     io.ReadWriter
	r      *bufio.Reader
	settle time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSettle sets how long Reset lets the programmer unwind before its
// output is discarded. The default is 100ms.
func WithSettle(d time.Duration) Option {
	return func(c *Client) { c.settle = d }
}

// New returns a client on rw. It does not touch the link; call Reset to
// bring a programmer of unknown state back to mode selection.
func New(rw io.ReadWriter, opts ...Option) *Client {
	c := &Client{
		rw:     rw,
		r:      bufio.NewReaderSize(rw, 4*types.BlockSize),
		settle: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Close closes the link when it can be closed.
func (c *Client) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c *Client) send(b []byte) error {
	if _, err := c.rw.Write(b); err != nil {
		return fmt.Errorf("gumbi: write: %w", err)
	}
	return nil
}

// ReadLine reads one response line without its line ending.
func (c *Client) ReadLine() (string, error) {
	s, err := c.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("gumbi: read: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// ReadFull reads exactly len(p) data bytes.
func (c *Client) ReadFull(p []byte) error {
	if _, err := io.ReadFull(c.r, p); err != nil {
		return fmt.Errorf("gumbi: read: %w", err)
	}
	return nil
}

func (c *Client) readByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("gumbi: read: %w", err)
	}
	return b, nil
}

// ReadAck reads one ACK. A NACK is returned as *NackError carrying the
// programmer's reason.
func (c *Client) ReadAck() error {
	line, err := c.ReadLine()
	if err != nil {
		return err
	}
	switch line {
	case types.AckToken:
		return nil
	case types.NackToken:
		reason, err := c.ReadLine()
		if err != nil {
			return err
		}
		return &NackError{Reason: reason}
	}
	return fmt.Errorf("%w: %q", ErrResponse, line)
}

// SetMode selects a mode and waits for its ACK.
func (c *Client) SetMode(m types.Mode) error {
	if err := c.send([]byte{byte(m)}); err != nil {
		return err
	}
	if err := c.ReadAck(); err != nil {
		return fmt.Errorf("gumbi: mode %s: %w", m, err)
	}
	return nil
}

// Reset unwinds whatever mode the programmer was left in. It sends
// ResetLen EXIT bytes, discards everything received, then resynchronises
// on the board id line.
func (c *Client) Reset() error {
	if err := c.send(make([]byte, types.ResetLen)); err != nil {
		return err
	}
	if c.settle > 0 {
		time.Sleep(c.settle)
	}
	if f, ok := c.rw.(inputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			return fmt.Errorf("gumbi: flush: %w", err)
		}
	}
	c.r.Reset(c.rw)

	if err := c.send([]byte{byte(types.ModeID)}); err != nil {
		return err
	}
	// Every byte of the burst is answered with at most one line.
	for i := 0; i <= 2*types.ResetLen; i++ {
		line, err := c.ReadLine()
		if err != nil {
			return err
		}
		if line == types.BoardID {
			return nil
		}
	}
	return fmt.Errorf("%w: no board id after reset", ErrResponse)
}

// Ping checks the programmer answers.
func (c *Client) Ping() error {
	if err := c.SetMode(types.ModePing); err != nil {
		return err
	}
	return c.ReadAck()
}

// ID returns the board id line.
func (c *Client) ID() (string, error) {
	if err := c.SetMode(types.ModeID); err != nil {
		return "", err
	}
	return c.ReadLine()
}

// Info is the programmer's self description.
type Info struct {
	BoardID  string
	Firmware string
	Chips    int
	Pins     int
}

// Info reads the INFO lines.
func (c *Client) Info() (Info, error) {
	var in Info
	if err := c.SetMode(types.ModeInfo); err != nil {
		return in, err
	}
	for {
		line, err := c.ReadLine()
		if err != nil {
			return in, err
		}
		if line == types.AckToken {
			return in, nil
		}
		key, val, ok := strings.Cut(line, ": ")
		if !ok {
			return in, fmt.Errorf("%w: %q", ErrResponse, line)
		}
		switch key {
		case "Board ID":
			in.BoardID = val
		case "Firmware Version":
			in.Firmware = val
		case "I/O Chip Count":
			in.Chips, err = strconv.Atoi(val)
		case "I/O Pin Count":
			in.Pins, err = strconv.Atoi(val)
		}
		if err != nil {
			return in, fmt.Errorf("%w: %q", ErrResponse, line)
		}
	}
}

// PinCount returns the number of board pins.
func (c *Client) PinCount() (int, error) {
	if err := c.SetMode(types.ModeGetPinCount); err != nil {
		return 0, err
	}
	b, err := c.readByte()
	return int(b), err
}

// SetPinCount overrides the pin count and returns the value applied.
func (c *Client) SetPinCount(n int) (int, error) {
	if n < 0 || n > types.MaxPins {
		return 0, fmt.Errorf("gumbi: pin count %d out of range", n)
	}
	if err := c.SetMode(types.ModeSetPinCount); err != nil {
		return 0, err
	}
	if err := c.send([]byte{byte(n)}); err != nil {
		return 0, err
	}
	b, err := c.readByte()
	return int(b), err
}

// ScanBus rescans the expander chain and returns the new pin count.
func (c *Client) ScanBus() (int, error) {
	if err := c.SetMode(types.ModeScanBus); err != nil {
		return 0, err
	}
	b, err := c.readByte()
	return int(b), err
}

// SpeedTest has the programmer stream n filler bytes and returns how long
// they took to arrive.
func (c *Client) SpeedTest(n uint32) (time.Duration, error) {
	if err := c.SetMode(types.ModeSpeedTest); err != nil {
		return 0, err
	}
	start := time.Now()
	if err := c.send(binary.LittleEndian.AppendUint32(nil, n)); err != nil {
		return 0, err
	}
	buf := make([]byte, types.BlockSize)
	for left := n; left > 0; {
		chunk := buf[:min(left, uint32(len(buf)))]
		if err := c.ReadFull(chunk); err != nil {
			return 0, err
		}
		for _, b := range chunk {
			if b != types.DummyByte {
				return 0, fmt.Errorf("%w: speed test byte 0x%02X", ErrResponse, b)
			}
		}
		left -= uint32(len(chunk))
	}
	return time.Since(start), nil
}

// Xfer sends an XferTestSize payload and returns the echo.
func (c *Client) Xfer(p []byte) ([]byte, error) {
	if len(p) != types.XferTestSize {
		return nil, fmt.Errorf("gumbi: xfer payload must be %d bytes", types.XferTestSize)
	}
	if err := c.SetMode(types.ModeXfer); err != nil {
		return nil, err
	}
	if err := c.send(p); err != nil {
		return nil, err
	}
	echo := make([]byte, len(p))
	return echo, c.ReadFull(echo)
}

// sendBlocks writes data in BlockSize blocks, reading one ACK after each.
func (c *Client) sendBlocks(data []byte, progress func(done, total int)) error {
	for off := 0; off < len(data); {
		end := min(off+types.BlockSize, len(data))
		if err := c.send(data[off:end]); err != nil {
			return err
		}
		if err := c.ReadAck(); err != nil {
			return err
		}
		off = end
		if progress != nil {
			progress(off, len(data))
		}
	}
	return nil
}

// readData reads n data bytes, reporting progress per block. A non-nil
// blockAck reads the status that follows each block; data read before a
// failed status is returned with the error.
func (c *Client) readData(n uint32, blockAck func() error, progress func(done, total int)) ([]byte, error) {
	out := make([]byte, n)
	for off := 0; off < len(out); {
		end := min(off+types.BlockSize, len(out))
		if err := c.ReadFull(out[off:end]); err != nil {
			return out[:off], err
		}
		if blockAck != nil {
			if err := blockAck(); err != nil {
				return out[:off], err
			}
		}
		off = end
		if progress != nil {
			progress(off, len(out))
		}
	}
	return out, nil
}
