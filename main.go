package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/e2thenegpii/gumbi/platform"
	"github.com/e2thenegpii/gumbi/session"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	hw, err := platform.Open()
	for err != nil {
		println("platform:", err.Error())
		time.Sleep(time.Second)
		hw, err = platform.Open()
	}
	println("board", hw.Board.Name)

	f, err := hw.Fabric()
	if err != nil {
		// Keep serving: SCANBUS can find the chain later.
		println("scan:", err.Error())
	}
	println("expanders", f.ChipCount(), "pins", f.PinCount())

	s := session.New(hw.Link, f, hw.SessionOptions())
	for {
		err := s.Serve(context.Background())
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			println("link closed")
			hw.Close()
			return
		}
		println("session:", err.Error())
		time.Sleep(100 * time.Millisecond)
	}
}
