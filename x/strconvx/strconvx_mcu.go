//go:build rp2040 || rp2350

package strconvx

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// AppendUint appends u in base (2..36, lower case digits).
func AppendUint(dst []byte, u uint64, base int) []byte {
	if base < 2 || base > len(digits) {
		base = 10
	}
	var a [64]byte
	i := len(a)
	b := uint64(base)
	for u >= b {
		i--
		a[i] = digits[u%b]
		u /= b
	}
	i--
	a[i] = digits[u]
	return append(dst, a[i:]...)
}

// AppendInt appends i in base with a leading '-' when negative.
func AppendInt(dst []byte, i int64, base int) []byte {
	if i < 0 {
		// -i overflows for MinInt64; negate in unsigned space instead.
		return AppendUint(append(dst, '-'), uint64(-(i+1))+1, base)
	}
	return AppendUint(dst, uint64(i), base)
}

func FormatInt(i int64, base int) string   { return string(AppendInt(nil, i, base)) }
func FormatUint(u uint64, base int) string { return string(AppendUint(nil, u, base)) }
