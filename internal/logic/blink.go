package logic

import "sync/atomic"

// blinkPeriod is the wrap point of the per-direction tick counter. It is a
// common multiple of the Fast and Slow moduli so those rates stay regular.
const blinkPeriod = 12

// Modulus returns the tick divisor for r, or 0 for RateOff.
func Modulus(r Rate) uint32 {
	switch r {
	case RateFast:
		return 3
	case RateMedium:
		return 8
	case RateSlow:
		return 6
	}
	return 0
}

// blinkState is the indicator state of one direction.
type blinkState struct {
	on      atomic.Bool
	counter atomic.Uint32
}

// Blinker drives the two intensity indicators from a periodic tick. The rate
// is passed in on every step, derived from the level current at that tick, so
// it can never disagree with the level.
//
// Step is called only from the tick context. ForceOff may be called from any
// context.
type Blinker struct {
	dirs [2]blinkState
}

// Step advances the indicator of d by one tick at rate r. It returns
// changed=true when the indicator state flipped (or was forced off) and the
// pin must be written with on.
func (b *Blinker) Step(d Direction, r Rate) (changed, on bool) {
	s := &b.dirs[d]
	mod := Modulus(r)
	if mod == 0 {
		// A stale "on" left behind by a racing toggle is cleared here.
		if s.on.Swap(false) {
			return true, false
		}
		return false, false
	}

	c := s.counter.Load()
	if c%mod == 0 {
		on = !s.on.Load()
		s.on.Store(on)
		changed = true
	} else {
		on = s.on.Load()
	}
	s.counter.Store((c + 1) % blinkPeriod)
	return changed, on
}

// ForceOff turns the indicator of d off immediately.
func (b *Blinker) ForceOff(d Direction) {
	b.dirs[d].on.Store(false)
}

// On reports whether the indicator of d is currently lit.
func (b *Blinker) On(d Direction) bool {
	return b.dirs[d].on.Load()
}

// counter returns the tick counter of d, always in [0, 12).
func (b *Blinker) counter(d Direction) uint32 {
	return b.dirs[d].counter.Load()
}
