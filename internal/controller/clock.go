package controller

import (
	"context"
	"sync"
	"time"
)

// Clock supplies time and the blocking delay of the main loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d, or until wake fires or ctx is done. It reports
	// whether it returned early because of wake.
	Sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) (woken bool, err error)
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep waits on a timer.
func (RealClock) Sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) (bool, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-wake:
		return true, nil
	case <-t.C:
		return false, nil
	}
}

// FakeClock is a virtual clock for tests. Sleep returns immediately: it
// reports a pending wake without advancing time, otherwise it advances the
// clock by the full duration.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// BeforeSleep, if set, runs at the start of every Sleep with the current
	// virtual time. Tests use it to inject input at a point in the cycle.
	BeforeSleep func(now time.Time)
}

// NewFakeClock creates a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the virtual time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances the virtual time by d unless wake is pending.
func (f *FakeClock) Sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) (bool, error) {
	if f.BeforeSleep != nil {
		f.BeforeSleep(f.Now())
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	select {
	case <-wake:
		return true, nil
	default:
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return false, nil
}

// Sleeps returns every duration the clock advanced by, in order.
func (f *FakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
