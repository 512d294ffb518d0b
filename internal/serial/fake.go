package serial

import (
	"bytes"
	"io"
	"sync"
)

// FakePort is a test double. Bytes queued with Feed are returned by Read;
// once they are consumed Read reports io.EOF. Everything written is recorded.
type FakePort struct {
	mu      sync.Mutex
	in      bytes.Buffer
	out     bytes.Buffer
	Closed  bool
	ReadErr error
	// WriteError, if set, will be returned by Write.
	WriteError error
}

// NewFakePort creates an empty FakePort.
func NewFakePort() *FakePort {
	return &FakePort{}
}

// Feed queues data to be read.
func (f *FakePort) Feed(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in.WriteString(data)
}

func (f *FakePort) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	if f.in.Len() == 0 {
		return 0, io.EOF
	}
	return f.in.Read(b)
}

func (f *FakePort) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return 0, f.WriteError
	}
	return f.out.Write(b)
}

// Written returns everything written so far.
func (f *FakePort) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.String()
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
