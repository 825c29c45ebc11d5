package sim

import (
	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/fabric"
)

// Rig is a simulated programmer: a Chain behind the real expander driver and
// a scanned Fabric.
type Rig struct {
	Chain  *Chain
	Device *mcp23s17.Device
	Fabric *fabric.Fabric
}

// NewRig builds and scans a rig with chips expanders. The fabric is left
// in reset, as after power-up.
func NewRig(chips int) (*Rig, error) {
	c := NewChain(chips)
	d := mcp23s17.New(c)
	d.Configure(mcp23s17.Config{Reset: c.ResetPin()})
	r := &Rig{Chain: c, Device: &d, Fabric: fabric.New(&d)}
	return r, r.Fabric.Init()
}
