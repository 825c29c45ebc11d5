//go:build !(rp2040 || rp2350)

package main

import (
	"context"
	"testing"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/platform"
	"github.com/e2thenegpii/gumbi/platform/boards"
	"github.com/e2thenegpii/gumbi/session"
	"github.com/e2thenegpii/gumbi/x/shmring"
	"github.com/e2thenegpii/gumbi/x/timex"
)

func newFlags(t *testing.T, args ...string) (*cobra.Command, options) {
	t.Helper()
	var o options
	cmd := &cobra.Command{Use: "gumbid"}
	f := cmd.Flags()
	f.StringVar(&o.board, "board", boards.RaspberryPi.Name, "")
	f.StringVar(&o.spi, "spi", "", "")
	f.Uint32Var(&o.hz, "hz", 0, "")
	f.IntVar(&o.csPin, "cs-pin", 0, "")
	f.IntVar(&o.resetPin, "reset-pin", 0, "")
	f.StringVar(&o.port, "port", "", "")
	f.Uint32Var(&o.baud, "baud", 0, "")
	f.IntVar(&o.busyLimit, "busy-limit", 0, "")
	f.Uint32Var(&o.half, "half-period", 0, "")
	if err := f.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cmd, o
}

func TestBoardDefaults(t *testing.T) {
	cmd, o := newFlags(t)
	b, err := boardFromFlags(cmd, o)
	if err != nil {
		t.Fatal(err)
	}
	if b != boards.RaspberryPi {
		t.Fatalf("board = %+v", b)
	}
}

func TestBoardOverrides(t *testing.T) {
	cmd, o := newFlags(t, "--spi", "/dev/spidev1.0", "--reset-pin", "0", "--port", "/dev/ttyUSB1", "--busy-limit", "9")
	b, err := boardFromFlags(cmd, o)
	if err != nil {
		t.Fatal(err)
	}
	if b.SPI != "/dev/spidev1.0" || b.Reset != 0 || b.Link != "/dev/ttyUSB1" || b.BusyLimit != 9 {
		t.Fatalf("board = %+v", b)
	}
	if b.SPIHz != boards.RaspberryPi.SPIHz {
		t.Fatalf("unset flag changed SPIHz to %d", b.SPIHz)
	}
}

func TestUnknownBoard(t *testing.T) {
	cmd, o := newFlags(t, "--board", "abacus")
	if _, err := boardFromFlags(cmd, o); err == nil {
		t.Fatal("unknown board accepted")
	}
}

func TestServeEndsWhenLinkCloses(t *testing.T) {
	host, dev := shmring.Pipe(256)
	hw, _ := platform.OpenSim(1, dev)
	f, err := hw.Fabric()
	if err != nil {
		t.Fatalf("Fabric: %v", err)
	}
	s := session.New(hw.Link, f, session.Options{Clock: &timex.Fake{}})

	host.Write([]byte{2}) // PING
	host.Close()
	if err := serve(context.Background(), s, log.NewTestLogger(t)); err != nil {
		t.Fatalf("serve = %v", err)
	}
	if err := hw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
