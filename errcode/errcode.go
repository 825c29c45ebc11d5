package errcode

// Code is a stable, host-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	InvalidConfig     Code = "invalid_config"
	InvalidPin        Code = "invalid_pin"
	UnsupportedMode   Code = "unsupported_mode"
	UnsupportedAction Code = "unsupported_action"
	TooManyCommands   Code = "too_many_commands"
	NoExpanders       Code = "no_expanders"
	NoAcknowledge     Code = "no_acknowledge"
	Timeout           Code = "timeout"
	Transport         Code = "transport"
	Bus               Code = "bus"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
// Msg is what a NACK carries to the host when present.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	if e.Err != nil {
		return string(e.C) + ": " + e.Err.Error()
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New builds an *E with a host-visible message.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Wrap attaches a code and operation to a cause. Nil stays nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return Of(u.Unwrap())
	}
	return Error
}

// Reason returns the text a NACK should carry for err: the message of an *E
// when set, otherwise the error string.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*E); ok && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
