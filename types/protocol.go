package types

// ------------------------
// Protocol constants
// ------------------------

const (
	BoardID         = "GUMBI v1"
	FirmwareVersion = "2.0.0"

	// Response tokens, each sent as one line. A NACK line is followed by a
	// reason line of at most MaxReason bytes.
	AckToken  = "A"
	NackToken = "N"
	MaxReason = 128

	BlockSize    = 64   // transport buffer; unit of write flow control
	MaxPins      = 128  // capacity of every pin list
	MaxCommands  = 32   // capacity of the parallel command list (u32 entries)
	MaxPrefix    = 4    // I2C register/word address prefix
	XferTestSize = 128  // loopback test payload
	DummyByte    = 0xFF // speed test filler, SPI read filler
	UnusedPin    = 0xFF // absent control line
	ResetLen     = 1024 // EXIT bytes a host sends to unwind any mode
)

// Fixed record sizes.
const (
	ParallelConfigSize = 680
	SPIConfigSize      = 274
	I2CConfigSize      = 275
	GPIOCommandSize    = 2
	CountSize          = 4
)

// Standard NACK reasons.
const (
	ReasonUnknownMode   = "Specified mode not implemented!"
	ReasonInvalidConfig = "Invalid configuration"
	ReasonBusyTimeout   = "Target busy timeout"
	ReasonNoAck         = "I2C target did not acknowledge"
)
