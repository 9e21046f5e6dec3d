package evdev

import "time"

// Repeat is a device's kernel autorepeat: the delay before the first
// repeat and the interval between repeats.
type Repeat struct {
	Delay  time.Duration
	Period time.Duration
}

// values encodes r as the unsigned int[2] of EVIOCSREP, in milliseconds.
func (r Repeat) values() [2]uint32 {
	return [2]uint32{millis(r.Delay), millis(r.Period)}
}

func repeatFromValues(v [2]uint32) Repeat {
	return Repeat{
		Delay:  time.Duration(v[0]) * time.Millisecond,
		Period: time.Duration(v[1]) * time.Millisecond,
	}
}

func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
