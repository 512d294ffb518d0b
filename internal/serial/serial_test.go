package serial

import (
	"context"
	"errors"
	"testing"
)

func TestPumpDeliversEveryByte(t *testing.T) {
	port := NewFakePort()
	port.Feed("Left Low\nstatus\n")
	lb := NewLineBuffer()

	if err := Pump(context.Background(), port, func(b byte) { lb.Push(b) }); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	first, _ := lb.TakeLine()
	second, _ := lb.TakeLine()
	if string(first) != "Left Low" || string(second) != "status" {
		t.Errorf("lines: got %q, %q", first, second)
	}
}

func TestPumpReturnsReadError(t *testing.T) {
	port := NewFakePort()
	port.ReadErr = errors.New("framing error")

	err := Pump(context.Background(), port, func(byte) {})
	if err == nil || err.Error() != "framing error" {
		t.Errorf("got %v, want framing error", err)
	}
}

func TestPumpStopsOnCancel(t *testing.T) {
	port := NewFakePort()
	port.ReadErr = errors.New("port closed")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Pump(ctx, port, func(byte) {}); err != nil {
		t.Errorf("cancelled pump should return nil, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB0")
	if cfg.Baud != 9600 {
		t.Errorf("Baud: got %d, want 9600", cfg.Baud)
	}
	if cfg.Device != "/dev/ttyUSB0" {
		t.Errorf("Device: got %q", cfg.Device)
	}
}

func TestOpenRejectsEmptyDevice(t *testing.T) {
	if _, err := Open(DefaultConfig("")); err == nil {
		t.Error("expected error for empty device")
	}
	if _, err := Open(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
