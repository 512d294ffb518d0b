package serial

import (
	"sync"
	"testing"
)

func pushString(lb *LineBuffer, s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if lb.Push(s[i]) {
			n++
		}
	}
	return n
}

func TestLineBufferEmpty(t *testing.T) {
	lb := NewLineBuffer()
	if lb.LineAvailable() {
		t.Error("empty buffer should have no line")
	}
	if line, ok := lb.TakeLine(); ok {
		t.Errorf("expected no line, got %q", line)
	}
}

func TestLineBufferRoundTrip(t *testing.T) {
	lb := NewLineBuffer()
	pushString(lb, "Left High\n")

	if !lb.LineAvailable() {
		t.Fatal("expected line available")
	}
	line, ok := lb.TakeLine()
	if !ok {
		t.Fatal("expected a line")
	}
	if string(line) != "Left High" {
		t.Errorf("line: got %q, want %q", line, "Left High")
	}
	if lb.buffered() != 0 {
		t.Errorf("terminator should be consumed, %d bytes left", lb.buffered())
	}
	if line, ok := lb.TakeLine(); ok {
		t.Errorf("expected no second line, got %q", line)
	}
}

func TestLineBufferPartialLineNotReturned(t *testing.T) {
	lb := NewLineBuffer()
	pushString(lb, "stat")
	if lb.LineAvailable() {
		t.Error("partial line should not be available")
	}
	if _, ok := lb.TakeLine(); ok {
		t.Error("TakeLine should fail without a terminator")
	}
	pushString(lb, "us\r")
	line, ok := lb.TakeLine()
	if !ok || string(line) != "status" {
		t.Errorf("got (%q, %v), want (\"status\", true)", line, ok)
	}
}

func TestLineBufferKeepsRemainderInOrder(t *testing.T) {
	lb := NewLineBuffer()
	pushString(lb, "help\rstatus\nLeft")

	first, _ := lb.TakeLine()
	second, _ := lb.TakeLine()
	if string(first) != "help" || string(second) != "status" {
		t.Errorf("lines: got %q, %q", first, second)
	}
	if lb.buffered() != 4 {
		t.Errorf("remainder: got %d bytes, want 4", lb.buffered())
	}
	pushString(lb, " Low\n")
	third, ok := lb.TakeLine()
	if !ok || string(third) != "Left Low" {
		t.Errorf("third line: got %q", third)
	}
}

func TestLineBufferCRLFYieldsEmptyLine(t *testing.T) {
	lb := NewLineBuffer()
	pushString(lb, "help\r\n")
	line, _ := lb.TakeLine()
	if string(line) != "help" {
		t.Errorf("first: got %q", line)
	}
	line, ok := lb.TakeLine()
	if !ok || len(line) != 0 {
		t.Errorf("second: got (%q, %v), want empty line", line, ok)
	}
}

func TestLineBufferNonASCIIPassedThrough(t *testing.T) {
	lb := NewLineBuffer()
	in := []byte{0xC3, 0xA9, 0x00, 0xFF, '\n'}
	for _, b := range in {
		lb.Push(b)
	}
	line, ok := lb.TakeLine()
	if !ok || string(line) != string(in[:4]) {
		t.Errorf("got %v, want %v", line, in[:4])
	}
}

func TestLineBufferOverflowDropsExcess(t *testing.T) {
	lb := NewLineBuffer()
	data := make([]byte, LineCapacity+10)
	for i := range data {
		data[i] = 'a' + byte(i%26)
	}
	accepted := pushString(lb, string(data))
	if accepted != LineCapacity {
		t.Errorf("accepted: got %d, want %d", accepted, LineCapacity)
	}
	if lb.Dropped() != 10 {
		t.Errorf("dropped: got %d, want 10", lb.Dropped())
	}
	if !lb.Full() {
		t.Error("buffer should be full")
	}
	if lb.LineAvailable() {
		t.Error("over-long line must never be assembled")
	}
	if lb.Push('\n') {
		t.Error("terminator should be dropped when full")
	}

	if n := lb.Discard(); n != LineCapacity {
		t.Errorf("discard: got %d, want %d", n, LineCapacity)
	}
	// The dropped terminator ended the over-long line.
	pushString(lb, "ok\n")
	line, ok := lb.TakeLine()
	if !ok || string(line) != "ok" {
		t.Errorf("after discard: got (%q, %v)", line, ok)
	}
}

func TestLineBufferDropsTailOfOverlongLine(t *testing.T) {
	lb := NewLineBuffer()
	for i := 0; i < LineCapacity; i++ {
		lb.Push('x')
	}
	if n := lb.Discard(); n != LineCapacity {
		t.Fatalf("discard: got %d, want %d", n, LineCapacity)
	}

	// Still part of the discarded line.
	if accepted := pushString(lb, "reset\n"); accepted != 0 {
		t.Errorf("tail accepted: got %d bytes, want 0", accepted)
	}
	if lb.LineAvailable() {
		t.Fatal("tail of an over-long line must not become a line")
	}
	if lb.Dropped() != len("reset\n") {
		t.Errorf("dropped: got %d, want %d", lb.Dropped(), len("reset\n"))
	}

	pushString(lb, "help\n")
	line, ok := lb.TakeLine()
	if !ok || string(line) != "help" {
		t.Errorf("next line: got (%q, %v), want help", line, ok)
	}
}

func TestLineBufferFullWithLineDoesNotSkip(t *testing.T) {
	lb := NewLineBuffer()
	pushString(lb, "status\n")
	for i := 0; i < LineCapacity-len("status\n"); i++ {
		lb.Push('x')
	}
	if !lb.Full() {
		t.Fatal("buffer should be full")
	}
	lb.TakeLine()
	lb.Discard()

	pushString(lb, "help\n")
	line, ok := lb.TakeLine()
	if !ok || string(line) != "help" {
		t.Errorf("got (%q, %v), want help", line, ok)
	}
}

func TestLineBufferOverflowPreservesEarlierLine(t *testing.T) {
	lb := NewLineBuffer()
	pushString(lb, "status\n")
	for i := 0; i < LineCapacity; i++ {
		lb.Push('x')
	}
	line, ok := lb.TakeLine()
	if !ok || string(line) != "status" {
		t.Errorf("got (%q, %v), want status", line, ok)
	}
	if lb.buffered() != LineCapacity-7 {
		t.Errorf("len: got %d, want %d", lb.buffered(), LineCapacity-7)
	}
}

func TestLineBufferWrapsAround(t *testing.T) {
	lb := NewLineBuffer()
	for i := 0; i < 20; i++ {
		pushString(lb, "Right Medium\n")
		line, ok := lb.TakeLine()
		if !ok || string(line) != "Right Medium" {
			t.Fatalf("iteration %d: got (%q, %v)", i, line, ok)
		}
	}
}

func TestLineBufferReadyNotification(t *testing.T) {
	lb := NewLineBuffer()
	pushString(lb, "hel")
	select {
	case <-lb.Ready():
		t.Fatal("no notification expected before terminator")
	default:
	}
	pushString(lb, "p\n\n")
	select {
	case <-lb.Ready():
	default:
		t.Fatal("expected notification after terminator")
	}
	select {
	case <-lb.Ready():
		t.Fatal("notifications should be coalesced")
	default:
	}
}

func TestLineBufferConcurrentProducer(t *testing.T) {
	lb := NewLineBuffer()
	const lines = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < lines; i++ {
			for _, b := range []byte("status\n") {
				for !lb.Push(b) {
					// Spin until the consumer frees space.
				}
			}
		}
	}()

	got := 0
	for got < lines {
		line, ok := lb.TakeLine()
		if !ok {
			continue
		}
		if string(line) != "status" {
			t.Fatalf("line %d: got %q", got, line)
		}
		got++
	}
	wg.Wait()
}

func TestLineBufferReadyWhenFull(t *testing.T) {
	lb := NewLineBuffer()
	for i := 0; i < LineCapacity-1; i++ {
		lb.Push('x')
	}
	select {
	case <-lb.Ready():
		t.Fatal("no notification expected before the buffer fills")
	default:
	}
	lb.Push('x')
	select {
	case <-lb.Ready():
	default:
		t.Fatal("expected notification when the buffer fills")
	}
	if lb.LineAvailable() {
		t.Error("a full buffer without terminator holds no line")
	}
}
