package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/e2thenegpii/gumbi/types"
)

// Target is a target description loaded from KEY=VALUE lines:
//
//	# 28-pin parallel EEPROM
//	MODE=PARALLEL
//	PINS=28
//	ADDRESS=10,9,8,7,6,5,4,3,25,24,21,23,2,26,1
//	DATA=11;12;13;15;16;17;18;19
//	CE=20,0
//	VCC=28
//
// Keys are case-insensitive, '#' starts a comment, and ',', ';' and ':'
// all separate list items. Numbers are decimal, or hex when decimal fails.
// INCLUDE=name merges name plus this file's extension from the same
// directory. Pin numbers are package pins, counted from 1; with PINS set,
// the upper half of the package is moved to the far end of the board's
// socket so the package sits at the socket's top.
type Target struct {
	vals map[string][]string
}

// Keys with a meaning of their own; any other key is kept for lookups
// such as named command lists.
const (
	KeyMode        = "MODE"
	KeyInclude     = "INCLUDE"
	KeyPins        = "PINS"
	KeyTOE         = "TOE"
	KeyTBP         = "TBP"
	KeyAddress     = "ADDRESS"
	KeyData        = "DATA"
	KeyVcc         = "VCC"
	KeyGnd         = "GND"
	KeyCommands    = "COMMANDS"
	KeyCmdDelay    = "CMDELAY"
	KeyReconfigure = "RECONFIGURE"
	KeyByteOrder   = "BYTEORDER"
	KeyCEIdle      = "CEIDLE"
	KeySlave       = "SLAVE"
)

// Defaults applied by Parallel when a key is absent.
const (
	DefaultTOE = 0
	DefaultTBP = 25
)

const maxIncludeDepth = 8

// NewTarget returns an empty target.
func NewTarget() *Target { return &Target{vals: map[string][]string{}} }

// ParseTarget reads a target description without INCLUDE support.
func ParseTarget(r io.Reader) (*Target, error) {
	t := NewTarget()
	return t, t.parse(r, "", 0)
}

// LoadTarget reads a target file, following INCLUDE lines.
func LoadTarget(path string) (*Target, error) {
	t := NewTarget()
	return t, t.load(path, 0)
}

func (t *Target) load(path string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("gumbi: target %s: includes nested too deep", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("gumbi: target: %w", err)
	}
	defer f.Close()
	return t.parse(f, path, depth)
}

func (t *Target) parse(r io.Reader, path string, depth int) error {
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		key, raw, ok := splitLine(sc.Text())
		if !ok {
			continue
		}
		if key == KeyInclude {
			if path == "" {
				return fmt.Errorf("gumbi: target line %d: INCLUDE needs a file", n)
			}
			name := raw + filepath.Ext(path)
			if err := t.load(filepath.Join(filepath.Dir(path), name), depth+1); err != nil {
				return err
			}
			continue
		}
		t.vals[key] = splitList(strings.ToUpper(raw))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("gumbi: target: %w", err)
	}
	return nil
}

func splitLine(line string) (key, val string, ok bool) {
	line, _, _ = strings.Cut(line, "#")
	key, val, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	val = strings.TrimSpace(val)
	return key, val, key != "" && val != ""
}

func splitList(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == ':'
	})
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseNum accepts decimal, then hex with or without a 0x prefix.
func parseNum(s string) (uint32, error) {
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(v), nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(s), "0X"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("gumbi: target: bad number %q", s)
	}
	return uint32(v), nil
}

// Set replaces key's values.
func (t *Target) Set(key string, vals ...string) {
	t.vals[strings.ToUpper(key)] = vals
}

// Has reports whether key is set.
func (t *Target) Has(key string) bool {
	_, ok := t.vals[strings.ToUpper(key)]
	return ok
}

// Values returns key's raw values.
func (t *Target) Values(key string) []string { return t.vals[strings.ToUpper(key)] }

// Mode is the MODE value, upper case, or "".
func (t *Target) Mode() string {
	if v := t.Values(KeyMode); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Expect fails when the target names a mode other than mode.
func (t *Target) Expect(mode string) error {
	if m := t.Mode(); m != "" && m != strings.ToUpper(mode) {
		return fmt.Errorf("gumbi: target is for %s, not %s", m, strings.ToUpper(mode))
	}
	return nil
}

// Ints parses every value of key.
func (t *Target) Ints(key string) ([]uint32, error) {
	raw := t.Values(key)
	out := make([]uint32, 0, len(raw))
	for _, s := range raw {
		v, err := parseNum(s)
		if err != nil {
			return nil, fmt.Errorf("%w (%s)", err, strings.ToUpper(key))
		}
		out = append(out, v)
	}
	return out, nil
}

// Int parses key's first value, or returns def when key is absent.
func (t *Target) Int(key string, def uint32) (uint32, error) {
	v, err := t.Ints(key)
	if err != nil || len(v) == 0 {
		return def, err
	}
	return v[0], nil
}

func (t *Target) u8(key string, def uint32) (uint8, error) {
	v, err := t.Int(key, def)
	if err == nil && v > 0xFF {
		err = fmt.Errorf("gumbi: target: %s=%d does not fit a byte", strings.ToUpper(key), v)
	}
	return uint8(v), err
}

// BoardPin maps a package pin to a board pin on a board with boardPins
// pins. UnusedPin passes through.
func (t *Target) BoardPin(pin uint32, boardPins int) (uint8, error) {
	if pin == types.UnusedPin {
		return types.UnusedPin, nil
	}
	pkg, err := t.Int(KeyPins, 0)
	if err != nil {
		return 0, err
	}
	if boardPins > 0 && pkg > 0 && pin > pkg/2 {
		pin += uint32(boardPins) - pkg
	}
	if pin > 0 {
		pin--
	}
	if pin >= types.MaxPins {
		return 0, fmt.Errorf("gumbi: target: pin %d outside the board", pin)
	}
	return uint8(pin), nil
}

// Pins maps key's pin list to board pins.
func (t *Target) Pins(key string, boardPins int) ([]uint8, error) {
	raw, err := t.Ints(key)
	if err != nil {
		return nil, err
	}
	if len(raw) > types.MaxPins {
		return nil, types.ErrPinList
	}
	out := make([]uint8, 0, len(raw))
	for _, p := range raw {
		b, err := t.BoardPin(p, boardPins)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Ctrl maps a control pin written as PIN or PIN,ACTIVE (0 active low, 1
// active high). An absent key is types.Unused.
func (t *Target) Ctrl(key string, boardPins int) (types.CtrlPin, error) {
	raw, err := t.Ints(key)
	if err != nil || len(raw) == 0 {
		return types.Unused, err
	}
	p, err := t.BoardPin(raw[0], boardPins)
	if err != nil {
		return types.Unused, err
	}
	c := types.CtrlPin{Pin: p, Active: types.ActiveLow}
	if len(raw) > 1 {
		c.Active = types.PolarityOf(uint8(raw[1]))
	}
	return c, nil
}

// Commands returns a command list (address, data pairs) by key; "" means
// COMMANDS.
func (t *Target) Commands(key string) ([]uint32, error) {
	if key == "" {
		key = KeyCommands
	}
	cmds, err := t.Ints(key)
	if err != nil {
		return nil, err
	}
	if len(cmds) > types.MaxCommands || len(cmds)%2 != 0 {
		return nil, types.ErrCommandList
	}
	return cmds, nil
}

// Parallel builds a parallel configuration for a board with boardPins pins.
func (t *Target) Parallel(boardPins int) (types.ParallelConfig, error) {
	var (
		c   types.ParallelConfig
		err error
	)
	set := func(f func() error) {
		if err == nil {
			err = f()
		}
	}
	set(func() (e error) { c.TOE, e = t.u8(KeyTOE, DefaultTOE); return })
	set(func() (e error) { c.TBP, e = t.u8(KeyTBP, DefaultTBP); return })
	set(func() (e error) { c.CmdDelay, e = t.u8(KeyCmdDelay, 0); return })
	set(func() error {
		v, e := t.Int(KeyReconfigure, 0)
		c.Reconfigure = v != 0
		return e
	})
	set(func() (e error) { c.AddrPins, e = t.Pins(KeyAddress, boardPins); return })
	set(func() (e error) { c.DataPins, e = t.Pins(KeyData, boardPins); return })
	set(func() (e error) { c.VccPins, e = t.Pins(KeyVcc, boardPins); return })
	set(func() (e error) { c.GndPins, e = t.Pins(KeyGnd, boardPins); return })
	set(func() (e error) { c.Commands, e = t.Commands(""); return })
	for _, r := range []struct {
		key string
		dst *types.CtrlPin
	}{
		{"CE", &c.CE}, {"WE", &c.WE}, {"RE", &c.RE}, {"OE", &c.OE},
		{"BE", &c.BE}, {"BY", &c.BY}, {"WP", &c.WP}, {"RST", &c.RST},
	} {
		set(func() (e error) { *r.dst, e = t.Ctrl(r.key, boardPins); return })
	}
	set(func() (e error) { c.ByteOrder, e = t.byteOrder(); return })
	set(func() (e error) { c.CEIdle, e = t.ceIdle(); return })
	return c, err
}

func (t *Target) byteOrder() (types.ByteOrder, error) {
	v := t.Values(KeyByteOrder)
	if len(v) == 0 {
		return types.LittleEndian, nil
	}
	switch v[0] {
	case "LITTLE", "LE", "0":
		return types.LittleEndian, nil
	case "BIG", "BE", "1":
		return types.BigEndian, nil
	}
	return 0, fmt.Errorf("gumbi: target: BYTEORDER=%s", v[0])
}

func (t *Target) ceIdle() (types.IdleCE, error) {
	v := t.Values(KeyCEIdle)
	if len(v) == 0 {
		return types.CEHeld, nil
	}
	switch v[0] {
	case "HELD", "0":
		return types.CEHeld, nil
	case "RELEASED", "1":
		return types.CEReleased, nil
	}
	return 0, fmt.Errorf("gumbi: target: CEIDLE=%s", v[0])
}

// SPI builds an SPI configuration from SS, CLK, MOSI, MISO, VCC and GND.
func (t *Target) SPI(boardPins int) (types.SPIConfig, error) {
	var c types.SPIConfig
	var err error
	for _, r := range []struct {
		key string
		dst *types.CtrlPin
	}{{"SS", &c.SS}, {"CLK", &c.CLK}, {"MOSI", &c.MOSI}, {"MISO", &c.MISO}} {
		if *r.dst, err = t.Ctrl(r.key, boardPins); err != nil {
			return c, err
		}
	}
	if c.VccPins, err = t.Pins(KeyVcc, boardPins); err != nil {
		return c, err
	}
	c.GndPins, err = t.Pins(KeyGnd, boardPins)
	return c, err
}

// I2C builds an I2C configuration from SDA, SCL, SLAVE, VCC and GND.
func (t *Target) I2C(boardPins int) (types.I2CConfig, error) {
	var c types.I2CConfig
	var err error
	if c.SDA, err = t.Ctrl("SDA", boardPins); err != nil {
		return c, err
	}
	if c.SCL, err = t.Ctrl("SCL", boardPins); err != nil {
		return c, err
	}
	addr, err := t.Int(KeySlave, 0)
	if err != nil {
		return c, err
	}
	if addr > 0x7F {
		return c, fmt.Errorf("gumbi: target: SLAVE=0x%X is not a 7-bit address", addr)
	}
	c.Addr = uint8(addr)
	if c.VccPins, err = t.Pins(KeyVcc, boardPins); err != nil {
		return c, err
	}
	c.GndPins, err = t.Pins(KeyGnd, boardPins)
	return c, err
}
