//go:build !linux && !(rp2040 || rp2350)

package platform

import (
	"errors"

	"github.com/e2thenegpii/gumbi/platform/boards"
)

// OpenLinux needs spidev and is unavailable on this OS.
func OpenLinux(boards.Board) (*Hardware, error) {
	return nil, errors.New("platform: spidev boards need linux")
}
