// Package strconvx formats integers without pulling strconv into MCU
// builds. Host builds delegate to strconv.
package strconvx
