package timex

import "time"

// Clock provides the short busy delays and long sleeps used when driving
// target timing. Tests substitute a recording clock.
type Clock interface {
	DelayMicros(us uint32)
	Sleep(d time.Duration)
}

// Real is the wall clock.
type Real struct{}

func (Real) DelayMicros(us uint32) {
	if us > 0 {
		time.Sleep(time.Duration(us) * time.Microsecond)
	}
}

func (Real) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Fake records requested delays without waiting.
type Fake struct {
	Micros uint64        // total of DelayMicros
	Delays int           // DelayMicros calls
	Slept  time.Duration // total of Sleep
}

func (f *Fake) DelayMicros(us uint32) { f.Micros += uint64(us); f.Delays++ }
func (f *Fake) Sleep(d time.Duration) { f.Slept += d }
