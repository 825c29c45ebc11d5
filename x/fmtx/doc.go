// Package fmtx is the slice of fmt the firmware formats NACK reasons and
// INFO lines with. Host builds delegate to fmt; MCU builds use a small
// formatter that understands %s %d %x %X %c %v and %% with an optional
// zero-padded width.
package fmtx
