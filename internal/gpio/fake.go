package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/traffic-light/internal/logic"
)

// Write records a single output write.
type Write struct {
	Pin Pin
	On  bool
}

// FakePins is a test double that records output writes and lets tests
// inject sense edges.
type FakePins struct {
	mu      sync.Mutex
	levels  map[Pin]bool
	writes  []Write
	handler EdgeFunc
	acks    [2]int

	// SetError, if set, will be returned by Set().
	SetError error
}

// NewFakePins creates a FakePins with every line low.
func NewFakePins() *FakePins {
	return &FakePins{levels: make(map[Pin]bool)}
}

// Set records the write and updates the pin level.
func (f *FakePins) Set(pin Pin, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.levels[pin] = on
	f.writes = append(f.writes, Write{Pin: pin, On: on})
	return nil
}

// WatchEdges registers fn as the edge handler.
func (f *FakePins) WatchEdges(fn EdgeFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handler != nil {
		return errors.New("edges already watched")
	}
	f.handler = fn
	return nil
}

// Edge simulates a rising edge on the sense input of d at counter value now.
// The edge is acknowledged even when no handler is registered.
func (f *FakePins) Edge(d logic.Direction, now uint32) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(d, now)
	}
	f.mu.Lock()
	f.acks[d]++
	f.mu.Unlock()
}

// Acks returns the number of acknowledged edges on d.
func (f *FakePins) Acks(d logic.Direction) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks[d]
}

// Level returns the last value written to pin.
func (f *FakePins) Level(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// Writes returns a copy of every recorded write.
func (f *FakePins) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// WritesTo returns the values written to pin, in order.
func (f *FakePins) WritesTo(pin Pin) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bool
	for _, w := range f.writes {
		if w.Pin == pin {
			out = append(out, w.On)
		}
	}
	return out
}

// Reset clears recorded writes and levels.
func (f *FakePins) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = make(map[Pin]bool)
	f.writes = nil
	f.acks = [2]int{}
	f.SetError = nil
}
