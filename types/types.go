package types

// ---- Modes (first byte of every command frame) ----

type Mode uint8

const (
	ModeNOP         Mode = 0
	ModeParallel    Mode = 1
	ModePing        Mode = 2
	ModeInfo        Mode = 3
	ModeSpeedTest   Mode = 4
	ModeGPIO        Mode = 5
	ModeID          Mode = 6
	ModeXfer        Mode = 7
	ModeGetPinCount Mode = 8
	ModeSetPinCount Mode = 9
	ModeScanBus     Mode = 10
	ModeMonitor     Mode = 11
	ModeVoltage     Mode = 12 // regulator selection; not served by this firmware
	ModeSPI         Mode = 13
	ModeI2C         Mode = 14
)

func (m Mode) String() string {
	switch m {
	case ModeNOP:
		return "nop"
	case ModeParallel:
		return "parallel"
	case ModePing:
		return "ping"
	case ModeInfo:
		return "info"
	case ModeSpeedTest:
		return "speedtest"
	case ModeGPIO:
		return "gpio"
	case ModeID:
		return "id"
	case ModeXfer:
		return "xfer"
	case ModeGetPinCount:
		return "getpincount"
	case ModeSetPinCount:
		return "setpincount"
	case ModeScanBus:
		return "scanbus"
	case ModeMonitor:
		return "monitor"
	case ModeVoltage:
		return "voltage"
	case ModeSPI:
		return "spi"
	case ModeI2C:
		return "i2c"
	default:
		return "unknown"
	}
}

// ---- Actions (first byte of every per-mode record) ----

type Action uint8

const (
	ActionExit    Action = 0
	ActionRead    Action = 1
	ActionWrite   Action = 2
	ActionHigh    Action = 3
	ActionLow     Action = 4
	ActionCommand Action = 5
)

func (a Action) String() string {
	switch a {
	case ActionExit:
		return "exit"
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionHigh:
		return "high"
	case ActionLow:
		return "low"
	case ActionCommand:
		return "command"
	default:
		return "unknown"
	}
}

// ---- Pin attributes ----

// Polarity is the level at which a line counts as asserted.
type Polarity uint8

const (
	ActiveLow Polarity = iota
	ActiveHigh
)

// PolarityOf decodes the wire "active" byte: nonzero means active high.
func PolarityOf(b uint8) Polarity {
	if b != 0 {
		return ActiveHigh
	}
	return ActiveLow
}

// Level resolves an asserted/deasserted request to a logic level.
func (p Polarity) Level(asserted bool) bool {
	return asserted == (p == ActiveHigh)
}

// Asserted reports whether a sampled level means asserted.
func (p Polarity) Asserted(level bool) bool {
	return level == (p == ActiveHigh)
}

func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}
	return "active-low"
}

type Direction uint8

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// CtrlPin is a control-line role: a board pin plus its assertion polarity.
// Pin UnusedPin (or any pin the fabric rejects) means the role is absent.
type CtrlPin struct {
	Pin    uint8
	Active Polarity
}

// Unused is the zero role used by host tools for absent control lines.
var Unused = CtrlPin{Pin: UnusedPin, Active: ActiveLow}

// ---- Per-target conventions ----

// ByteOrder selects how a 16-bit word maps to the two bytes on the wire.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Word combines two wire bytes (in arrival order) into a word.
func (o ByteOrder) Word(first, second byte) uint16 {
	if o == BigEndian {
		return uint16(first)<<8 | uint16(second)
	}
	return uint16(first) | uint16(second)<<8
}

// Bytes splits a word into wire order.
func (o ByteOrder) Bytes(w uint16) (first, second byte) {
	if o == BigEndian {
		return byte(w >> 8), byte(w)
	}
	return byte(w), byte(w >> 8)
}

// IdleCE selects what chip-enable does between actions.
type IdleCE uint8

const (
	// CEHeld keeps chip-enable asserted from Configure until the mode exits.
	CEHeld IdleCE = iota
	// CEReleased deasserts chip-enable after every action.
	CEReleased
)
