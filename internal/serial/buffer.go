package serial

import "sync/atomic"

// LineCapacity is the number of bytes a LineBuffer holds.
const LineCapacity = 64

// LineBuffer is a bounded single-producer, single-consumer byte queue that
// assembles newline-terminated command lines.
//
// Push is the producer side and is called only from the receive context.
// LineAvailable, TakeLine and Discard are the consumer side; only one
// goroutine may consume at a time. Neither side blocks or takes a lock: the
// producer publishes a byte by advancing head after storing it, the consumer
// releases space by advancing tail after copying.
type LineBuffer struct {
	buf     [LineCapacity]byte
	head    atomic.Uint32 // next write position (monotonic, wraps at 2^32)
	tail    atomic.Uint32 // next read position
	dropped atomic.Uint32
	ready   chan struct{}

	// skipping is set while the rest of an over-long line is arriving.
	// Only Push reads or writes it.
	skipping bool
}

// NewLineBuffer returns an empty buffer.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{ready: make(chan struct{}, 1)}
}

func isTerminator(b byte) bool {
	return b == '\r' || b == '\n'
}

// Push appends b. If the buffer is already full, b is dropped and Push
// returns false.
//
// A line that fills the whole buffer without a terminator can never be
// taken. Its remaining bytes, up to and including the next terminator, are
// dropped as well, so no fragment of it is ever assembled into a command.
func (lb *LineBuffer) Push(b byte) bool {
	if lb.skipping {
		lb.dropped.Add(1)
		if isTerminator(b) {
			lb.skipping = false
		}
		return false
	}
	h, t := lb.head.Load(), lb.tail.Load()
	if h-t == LineCapacity {
		lb.dropped.Add(1)
		return false
	}
	lb.buf[h%LineCapacity] = b
	lb.head.Store(h + 1)

	full := h+1-t == LineCapacity
	if full && !isTerminator(b) && !lb.terminated(t, h) {
		lb.skipping = true
	}
	if isTerminator(b) || full {
		select {
		case lb.ready <- struct{}{}:
		default:
		}
	}
	return true
}

// terminated reports whether a terminator is stored in positions [from, to).
func (lb *LineBuffer) terminated(from, to uint32) bool {
	for i := from; i != to; i++ {
		if isTerminator(lb.buf[i%LineCapacity]) {
			return true
		}
	}
	return false
}

// Ready returns a coalesced notification sent when a terminator is pushed or
// the buffer becomes full.
// Receivers must re-check LineAvailable after waking.
func (lb *LineBuffer) Ready() <-chan struct{} {
	return lb.ready
}

// LineAvailable reports whether the buffer holds a complete line.
func (lb *LineBuffer) LineAvailable() bool {
	return lb.terminated(lb.tail.Load(), lb.head.Load())
}

// TakeLine removes the bytes up to and including the first terminator and
// returns them without the terminator. Bytes after the terminator stay
// queued in order. Returns false if no complete line is buffered.
func (lb *LineBuffer) TakeLine() ([]byte, bool) {
	t, h := lb.tail.Load(), lb.head.Load()
	for i := t; i != h; i++ {
		if !isTerminator(lb.buf[i%LineCapacity]) {
			continue
		}
		line := make([]byte, 0, i-t)
		for j := t; j != i; j++ {
			line = append(line, lb.buf[j%LineCapacity])
		}
		lb.tail.Store(i + 1)
		return line, true
	}
	return nil, false
}

// Full reports whether no more bytes can be pushed.
func (lb *LineBuffer) Full() bool {
	return lb.head.Load()-lb.tail.Load() == LineCapacity
}

// buffered returns the number of queued bytes.
func (lb *LineBuffer) buffered() int {
	return int(lb.head.Load() - lb.tail.Load())
}

// Discard drops every buffered byte and returns how many were dropped.
func (lb *LineBuffer) Discard() int {
	h := lb.head.Load()
	n := h - lb.tail.Load()
	lb.tail.Store(h)
	return int(n)
}

// Dropped returns the number of bytes rejected by Push since startup.
func (lb *LineBuffer) Dropped() int {
	return int(lb.dropped.Load())
}
