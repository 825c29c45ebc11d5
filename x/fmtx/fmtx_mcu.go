//go:build rp2040 || rp2350

package fmtx

import (
	"io"

	"github.com/e2thenegpii/gumbi/x/strconvx"
)

func Sprintf(format string, a ...any) string {
	return string(appendf(nil, format, a))
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return w.Write(appendf(nil, format, a))
}

func appendf(b []byte, format string, a []any) []byte {
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b = append(b, c)
			continue
		}
		i++
		zero := format[i] == '0'
		width := 0
		for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}
		if i == len(format) {
			break
		}
		verb := format[i]
		if verb == '%' {
			b = append(b, '%')
			continue
		}
		if next >= len(a) {
			b = append(b, "%!"...)
			b = append(b, verb)
			b = append(b, "(MISSING)"...)
			continue
		}
		start := len(b)
		b = appendArg(b, verb, a[next])
		next++
		b = pad(b, start, width, zero)
	}
	return b
}

// pad right-aligns b[start:] in width columns.
func pad(b []byte, start, width int, zero bool) []byte {
	n := width - (len(b) - start)
	if n <= 0 {
		return b
	}
	fill := byte(' ')
	if zero {
		fill = '0'
	}
	for range n {
		b = append(b, 0)
	}
	copy(b[start+n:], b[start:len(b)-n])
	for i := start; i < start+n; i++ {
		b[i] = fill
	}
	return b
}

func appendArg(b []byte, verb byte, arg any) []byte {
	if s, ok := arg.(string); ok && (verb == 's' || verb == 'v') {
		return append(b, s...)
	}
	if e, ok := arg.(error); ok && (verb == 's' || verb == 'v') {
		return append(b, e.Error()...)
	}
	u, neg, ok := integer(arg)
	if !ok {
		return append(b, "%!"+string(verb)+"(BADTYPE)"...)
	}
	switch verb {
	case 'd', 'v':
		if neg {
			b = append(b, '-')
		}
		return strconvx.AppendUint(b, u, 10)
	case 'x', 'X':
		start := len(b)
		b = strconvx.AppendUint(b, u, 16)
		if verb == 'X' {
			for i := start; i < len(b); i++ {
				if b[i] >= 'a' {
					b[i] -= 'a' - 'A'
				}
			}
		}
		return b
	case 'c':
		return append(b, byte(u))
	}
	return append(b, "%!"+string(verb)+"(BADVERB)"...)
}

// integer returns the magnitude and sign of an integer argument.
func integer(arg any) (u uint64, neg bool, ok bool) {
	var i int64
	switch v := arg.(type) {
	case uint8:
		return uint64(v), false, true
	case uint16:
		return uint64(v), false, true
	case uint32:
		return uint64(v), false, true
	case uint64:
		return v, false, true
	case uint:
		return uint64(v), false, true
	case int8:
		i = int64(v)
	case int16:
		i = int64(v)
	case int32:
		i = int64(v)
	case int64:
		i = v
	case int:
		i = int64(v)
	default:
		return 0, false, false
	}
	if i < 0 {
		return uint64(-(i + 1)) + 1, true, true
	}
	return uint64(i), false, true
}
