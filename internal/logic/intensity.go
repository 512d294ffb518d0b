package logic

import "sync/atomic"

// Intensity holds the per-direction traffic intensity shared by every context.
// All methods are lock-free and safe to call from any goroutine. A reader may
// observe a value that another context is about to replace; it never observes
// a partially written one.
type Intensity struct {
	levels [2]atomic.Uint32
}

// Level returns the current level for d.
func (in *Intensity) Level(d Direction) Level {
	return Level(in.levels[d].Load())
}

// Set stores lvl for d. Invalid levels are stored as Normal.
func (in *Intensity) Set(d Direction, lvl Level) {
	if !lvl.Valid() {
		lvl = Normal
	}
	in.levels[d].Store(uint32(lvl))
}

// Advance moves d one step along the level cycle and returns the new level.
func (in *Intensity) Advance(d Direction) Level {
	for {
		cur := in.levels[d].Load()
		next := uint32(Level(cur).Next())
		if in.levels[d].CompareAndSwap(cur, next) {
			return Level(next)
		}
	}
}

// Both returns a snapshot of the left and right levels.
func (in *Intensity) Both() (left, right Level) {
	return in.Level(Left), in.Level(Right)
}
