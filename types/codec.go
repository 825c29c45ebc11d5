package types

import (
	"encoding/binary"
	"errors"

	"github.com/e2thenegpii/gumbi/errcode"
)

// Decode/encode failures. Each carries the InvalidConfig NACK reason.
var (
	ErrShortRecord  = invalid(errcode.InvalidConfig, errors.New("types: short record"))
	ErrPinList      = invalid(errcode.InvalidConfig, errors.New("types: pin list exceeds capacity"))
	ErrCommandList  = invalid(errcode.TooManyCommands, errors.New("types: command list exceeds capacity"))
	ErrPrefixLength = invalid(errcode.InvalidConfig, errors.New("types: i2c prefix exceeds capacity"))
)

func invalid(c errcode.Code, err error) *errcode.E {
	return &errcode.E{C: c, Op: "decode", Msg: ReasonInvalidConfig, Err: err}
}

// cursor walks a packed little-endian record.
type cursor struct {
	b   []byte
	off int
}

func (c *cursor) u8() uint8 {
	v := c.b[c.off]
	c.off++
	return v
}

func (c *cursor) u16() uint16 {
	v := binary.LittleEndian.Uint16(c.b[c.off:])
	c.off += 2
	return v
}

func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.b[c.off:])
	c.off += 4
	return v
}

func (c *cursor) ctrl() CtrlPin {
	p := c.u8()
	return CtrlPin{Pin: p, Active: PolarityOf(c.u8())}
}

// pins takes a fixed MaxPins array and keeps the first n entries.
func (c *cursor) pins(n uint16) []uint8 {
	arr := c.b[c.off : c.off+MaxPins]
	c.off += MaxPins
	out := make([]uint8, int(n))
	copy(out, arr[:n])
	return out
}

// builder appends a packed little-endian record.
type builder struct{ b []byte }

func (w *builder) u8(v uint8) { w.b = append(w.b, v) }

func (w *builder) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }

func (w *builder) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }

func (w *builder) flag(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *builder) ctrl(p CtrlPin) {
	w.u8(p.Pin)
	w.u8(uint8(p.Active))
}

// pins writes a fixed MaxPins array, zero padded.
func (w *builder) pins(p []uint8) {
	var arr [MaxPins]byte
	copy(arr[:], p)
	w.b = append(w.b, arr[:]...)
}

func pinLists(lists ...[]uint8) error {
	for _, l := range lists {
		if len(l) > MaxPins {
			return ErrPinList
		}
	}
	return nil
}

func pinCounts(counts ...uint16) error {
	for _, n := range counts {
		if n > MaxPins {
			return ErrPinList
		}
	}
	return nil
}
