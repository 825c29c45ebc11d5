//go:build !(rp2040 || rp2350)

package strconvx

import "strconv"

func AppendInt(dst []byte, i int64, base int) []byte   { return strconv.AppendInt(dst, i, base) }
func AppendUint(dst []byte, u uint64, base int) []byte { return strconv.AppendUint(dst, u, base) }
func FormatInt(i int64, base int) string               { return strconv.FormatInt(i, base) }
func FormatUint(u uint64, base int) string             { return strconv.FormatUint(u, base) }
