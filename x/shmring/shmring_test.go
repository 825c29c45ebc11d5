package shmring

import (
	"bytes"
	"io"
	"testing"
	"time"
)

// fakeIO models partial producer progress (accept up to k bytes).
type fakeIO struct{ k int }

func (f fakeIO) write(p []byte) int {
	if len(p) > f.k {
		return f.k
	}
	return len(p)
}

func TestOrderAcrossWrapWithPartialProgress(t *testing.T) {
	r := New(64)
	prod := fakeIO{k: 7}

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	p := src
	dst := make([]byte, N)
	off := 0
	for off < N {
		if len(p) > 0 {
			if step := prod.write(p); step > 0 {
				step = r.TryWriteFrom(p[:step])
				p = p[step:]
			}
		}
		var tmp [17]byte
		n := r.TryReadInto(tmp[:])
		copy(dst[off:], tmp[:n])
		off += n
	}
	if !bytes.Equal(dst, src) {
		t.Fatal("stream mismatch")
	}
}

func TestReadableWritableEdges(t *testing.T) {
	r := New(8)
	select {
	case <-r.Readable():
		t.Fatal("unexpected Readable on empty ring")
	default:
	}
	if n := r.TryWriteFrom([]byte{1, 2, 3}); n != 3 {
		t.Fatalf("write 3 -> %d", n)
	}
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected Readable")
	}
	select {
	case <-r.Readable():
		t.Fatal("unexpected extra Readable")
	default:
	}

	r.TryWriteFrom(make([]byte, 5))
	if r.Space() != 0 {
		t.Fatalf("space = %d", r.Space())
	}
	r.TryReadInto(make([]byte, 1))
	select {
	case <-r.Writable():
	default:
		t.Fatal("expected Writable after leaving full")
	}
}

func TestReset(t *testing.T) {
	r := New(4)
	r.TryWriteFrom([]byte{1, 2, 3})
	r.Reset()
	if r.Available() != 0 || r.Space() != 4 {
		t.Fatalf("avail=%d space=%d", r.Available(), r.Space())
	}
}

func TestPipeDuplex(t *testing.T) {
	a, b := Pipe(16)
	payload := bytes.Repeat([]byte("0123456789"), 20)

	go func() {
		a.Write(payload)
		a.Close()
	}()
	got, err := io.ReadAll(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %d bytes", len(got))
	}
	if _, err := b.Write([]byte{1}); err != io.ErrClosedPipe {
		t.Fatalf("write after close: %v", err)
	}
}

func TestPipeReadTimeout(t *testing.T) {
	a, _ := Pipe(8)
	a.SetReadTimeout(5 * time.Millisecond)
	n, err := a.Read(make([]byte, 4))
	if n != 0 || err != nil {
		t.Fatalf("timeout read = %d, %v", n, err)
	}
}
