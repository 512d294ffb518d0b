// Package serial carries the controller's command line: the receive-side
// line buffer, the serial port abstraction and the receive pump.
package serial

import (
	"context"
	"errors"
	"io"
	"os"
)

// Port represents a serial port interface.
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Standard input/output (for running without a UART)
// - Fake port (for testing)
type Port interface {
	io.ReadWriteCloser
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0"). Empty selects stdin/stdout.
	Device string

	// Baud rate.
	Baud int

	// Read timeout in milliseconds (0 = blocking).
	ReadTimeout int
}

// DefaultConfig returns the reference configuration: 9600 baud 8N1.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        9600,
		ReadTimeout: 100,
	}
}

// StdioPort reads commands from stdin and writes replies to stdout.
type StdioPort struct {
	in  io.Reader
	out io.Writer
}

// NewStdioPort returns a Port backed by the process's stdin and stdout.
func NewStdioPort() *StdioPort {
	return &StdioPort{in: os.Stdin, out: os.Stdout}
}

func (p *StdioPort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *StdioPort) Write(b []byte) (int, error) { return p.out.Write(b) }

// Close is a no-op; the standard streams belong to the process.
func (p *StdioPort) Close() error { return nil }

// Pump reads from r and hands each byte to push, one call per byte, until
// ctx is cancelled, r reports io.EOF or r fails. Zero-length reads are an
// idle line.
func Pump(ctx context.Context, r io.Reader, push func(byte)) error {
	buf := make([]byte, LineCapacity)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			push(b)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		return err
	}
}
