package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USB identities the programmer enumerates with.
const (
	VendorID  = 0xFFFF
	ProductID = 0x1337

	// Pico firmware images use the Raspberry Pi vendor id.
	PicoVendorID  = 0x2E8A
	PicoProductID = 0x000A
)

// USBTransport talks to the programmer's bulk data interface directly,
// bypassing the host's tty driver.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	timeout time.Duration
}

// OpenUSB opens the first device matching vid:pid. A positive timeout
// bounds every transfer.
func OpenUSB(vid, pid uint16, timeout time.Duration, opts ...Option) (*Client, error) {
	t, err := NewUSBTransport(vid, pid, timeout)
	if err != nil {
		return nil, err
	}
	return New(t, opts...), nil
}

// NewUSBTransport opens and claims the device's bulk interface.
func NewUSBTransport(vid, pid uint16, timeout time.Duration) (*USBTransport, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("gumbi: usb: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("gumbi: usb device %04x:%04x not found", vid, pid)
	}
	// Not supported everywhere; claiming fails later if it mattered.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{ctx: ctx, dev: dev, timeout: timeout}
	if err := t.claim(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// claim picks the CDC data or vendor interface and its bulk endpoints.
func (t *USBTransport) claim() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("gumbi: usb config: %w", err)
	}
	t.cfg = cfg

	num := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		switch intf.AltSettings[0].Class {
		case gousb.ClassData, gousb.ClassVendorSpec:
			num = intf.Number
		}
		if num >= 0 {
			break
		}
	}
	if num < 0 {
		return fmt.Errorf("gumbi: usb: no data interface")
	}
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		return fmt.Errorf("gumbi: usb claim interface %d: %w", num, err)
	}
	t.intf = intf

	var in, out int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && in == 0 {
			in = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionOut && out == 0 {
			out = ep.Number
		}
	}
	if in == 0 || out == 0 {
		return fmt.Errorf("gumbi: usb: bulk endpoints not found")
	}
	if t.epOut, err = intf.OutEndpoint(out); err != nil {
		return fmt.Errorf("gumbi: usb out endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(in); err != nil {
		return fmt.Errorf("gumbi: usb in endpoint: %w", err)
	}
	return nil
}

func (t *USBTransport) context() (context.Context, context.CancelFunc) {
	if t.timeout > 0 {
		return context.WithTimeout(context.Background(), t.timeout)
	}
	return context.Background(), func() {}
}

// Read receives at most one bulk packet.
func (t *USBTransport) Read(p []byte) (int, error) {
	ctx, cancel := t.context()
	defer cancel()
	n, err := t.epIn.ReadContext(ctx, p)
	if err != nil && ctx.Err() != nil {
		return n, ErrTimeout
	}
	return n, err
}

// Write sends p, split into packets by the host stack.
func (t *USBTransport) Write(p []byte) (int, error) {
	ctx, cancel := t.context()
	defer cancel()
	n, err := t.epOut.WriteContext(ctx, p)
	if err != nil && ctx.Err() != nil {
		return n, ErrTimeout
	}
	return n, err
}

// Close releases the interface, device and context.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// Device is a USB device that may be a programmer.
type Device struct {
	VID, PID     uint16
	Bus, Address int
	Serial       string
	Description  string
}

// IsProgrammerID reports whether vid:pid is one of the programmer's
// identities.
func IsProgrammerID(vid, pid uint16) bool {
	return (vid == VendorID && pid == ProductID) ||
		(vid == PicoVendorID && pid == PicoProductID)
}

// DiscoverUSB lists attached devices with a programmer identity.
func DiscoverUSB() ([]Device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsProgrammerID(uint16(desc.Vendor), uint16(desc.Product))
	})
	// Devices we may not open still show up in devs.
	if err != nil && err != gousb.ErrorAccess && len(devs) == 0 {
		return nil, fmt.Errorf("gumbi: usb enumerate: %w", err)
	}
	out := make([]Device, 0, len(devs))
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()
		out = append(out, Device{
			VID:         uint16(dev.Desc.Vendor),
			PID:         uint16(dev.Desc.Product),
			Bus:         dev.Desc.Bus,
			Address:     dev.Desc.Address,
			Serial:      serial,
			Description: fmt.Sprintf("%s %s", manufacturer, product),
		})
		dev.Close()
	}
	return out, nil
}
