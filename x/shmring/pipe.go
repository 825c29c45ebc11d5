package shmring

import (
	"io"
	"sync"
	"time"
)

// End is one side of a Pipe. Reads drain the inbound ring and writes fill
// the outbound ring, each blocking until progress is possible.
type End struct {
	in, out *Ring
	done    chan struct{}
	once    *sync.Once
	timeout time.Duration
}

// Pipe returns the two ends of an in-memory duplex link with size bytes of
// buffering in each direction. Closing either end closes both.
func Pipe(size int) (a, b *End) {
	ab, ba := New(size), New(size)
	done := make(chan struct{})
	once := new(sync.Once)
	a = &End{in: ba, out: ab, done: done, once: once}
	b = &End{in: ab, out: ba, done: done, once: once}
	return a, b
}

// SetReadTimeout bounds how long Read waits for the first byte. Zero waits
// forever. A timed out Read returns 0, nil.
func (e *End) SetReadTimeout(d time.Duration) error {
	e.timeout = d
	return nil
}

// Read returns as soon as at least one byte is available.
func (e *End) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var expire <-chan time.Time
	if e.timeout > 0 {
		t := time.NewTimer(e.timeout)
		defer t.Stop()
		expire = t.C
	}
	for {
		if n := e.in.TryReadInto(p); n > 0 {
			return n, nil
		}
		select {
		case <-e.in.Readable():
		case <-e.done:
			if n := e.in.TryReadInto(p); n > 0 {
				return n, nil
			}
			return 0, io.EOF
		case <-expire:
			return 0, nil
		}
	}
}

// Write blocks until all of p is queued or the pipe is closed.
func (e *End) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		select {
		case <-e.done:
			return total, io.ErrClosedPipe
		default:
		}
		if n := e.out.TryWriteFrom(p[total:]); n > 0 {
			total += n
			continue
		}
		select {
		case <-e.out.Writable():
		case <-e.done:
			return total, io.ErrClosedPipe
		}
	}
	return total, nil
}

// ResetInputBuffer discards unread inbound bytes.
func (e *End) ResetInputBuffer() error {
	e.in.Reset()
	return nil
}

// Close closes both ends. Pending inbound bytes remain readable.
func (e *End) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}
