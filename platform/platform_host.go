//go:build !(rp2040 || rp2350)

package platform

import (
	"io"
	"os"

	"github.com/e2thenegpii/gumbi/platform/boards"
	"github.com/e2thenegpii/gumbi/sim"
)

// SimChips is the chain length Open simulates.
const SimChips = 4

// Open runs the programmer on a simulated chain with the host on stdio.
func Open() (*Hardware, error) {
	h, _ := OpenSim(SimChips, Stdio{})
	return h, nil
}

// OpenSim returns a simulated board with chips expanders serving link. The
// chain is returned so targets can be attached to it.
func OpenSim(chips int, link io.ReadWriter) (*Hardware, *sim.Chain) {
	c := sim.NewChain(chips)
	h := &Hardware{
		Board: boards.Sim,
		Bus:   c,
		Reset: c.ResetPin(),
		Link:  link,
	}
	if cl, ok := link.(io.Closer); ok {
		h.closers = append(h.closers, cl)
	}
	return h, c
}

// Stdio is the host link on standard input and output.
type Stdio struct{}

func (Stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (Stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
