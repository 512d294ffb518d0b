package logic

import "sync/atomic"

// Gate rejects edges that arrive too soon after the last accepted edge of the
// same source. Timestamps are raw values of a free-running uint32 counter;
// differences are taken modulo 2^32 so a counter wrap neither accepts nor
// rejects an edge spuriously.
type Gate struct {
	threshold uint32
	last      [2]atomic.Uint32
	accepted  atomic.Uint32
	rejected  atomic.Uint32
}

// NewGate creates a gate that accepts an edge only when more than threshold
// counter ticks have elapsed since the previous accepted edge.
func NewGate(threshold uint32) *Gate {
	return &Gate{threshold: threshold}
}

// Accept reports whether an edge from source at counter value now passes the
// gate. On acceptance now becomes the source's new reference point.
//
// Each source has a single producer (its edge handler), so the load/store
// pair below does not race with another writer of the same slot.
func (g *Gate) Accept(source Direction, now uint32) bool {
	if now-g.last[source].Load() <= g.threshold {
		g.rejected.Add(1)
		return false
	}
	g.last[source].Store(now)
	g.accepted.Add(1)
	return true
}

// Counts returns the number of accepted and rejected edges since startup.
func (g *Gate) Counts() (accepted, rejected int) {
	return int(g.accepted.Load()), int(g.rejected.Load())
}
