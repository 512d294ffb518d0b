//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/traffic-light/internal/logic"
)

const consumer = "traffic-light"

// RealPins drives lamps and watches sense inputs through the Linux GPIO
// character device.
type RealPins struct {
	chip    *gpiocdev.Chip
	layout  Layout
	outputs map[Pin]*gpiocdev.Line

	mu     sync.Mutex
	inputs []*gpiocdev.Line
}

// NewRealPins opens chipName and requests every output line of layout,
// driven low. Sense inputs are not requested until WatchEdges.
func NewRealPins(chipName string, layout Layout) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealPins{
		chip:    chip,
		layout:  layout,
		outputs: make(map[Pin]*gpiocdev.Line),
	}
	for _, pin := range layout.Outputs() {
		line, err := chip.RequestLine(int(pin), gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		r.outputs[pin] = line
	}
	return r, nil
}

// Set drives an output line.
func (r *RealPins) Set(pin Pin, on bool) error {
	line, ok := r.outputs[pin]
	if !ok {
		return fmt.Errorf("pin %d is not an output", pin)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// WatchEdges requests both sense inputs with pull-down and rising-edge
// detection. The kernel queues each edge as an event; reading it in the
// handler goroutine clears it, whether or not fn accepts it.
func (r *RealPins) WatchEdges(fn EdgeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.inputs) > 0 {
		return fmt.Errorf("edges already watched")
	}

	byOffset := map[int]logic.Direction{
		int(r.layout.Sense[logic.Left]):  logic.Left,
		int(r.layout.Sense[logic.Right]): logic.Right,
	}
	handler := func(evt gpiocdev.LineEvent) {
		d, ok := byOffset[evt.Offset]
		if !ok {
			return
		}
		fn(d, uint32(evt.Timestamp.Microseconds()))
	}

	for _, d := range logic.Directions {
		pin := r.layout.Sense[d]
		line, err := r.chip.RequestLine(int(pin),
			gpiocdev.AsInput,
			gpiocdev.WithPullDown,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(handler))
		if err != nil {
			r.closeInputs()
			return fmt.Errorf("request %s sense pin %d: %w", d, pin, err)
		}
		r.inputs = append(r.inputs, line)
	}
	return nil
}

// ReadSense samples the two sense inputs once. It requests them as plain
// inputs, so it must not be combined with WatchEdges.
func (r *RealPins) ReadSense() (left, right bool, err error) {
	var vals [2]bool
	for _, d := range logic.Directions {
		pin := r.layout.Sense[d]
		line, err := r.chip.RequestLine(int(pin), gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			return false, false, fmt.Errorf("request %s sense pin %d: %w", d, pin, err)
		}
		v, err := line.Value()
		line.Close()
		if err != nil {
			return false, false, fmt.Errorf("read %s sense pin %d: %w", d, pin, err)
		}
		vals[d] = v == 1
	}
	return vals[logic.Left], vals[logic.Right], nil
}

func (r *RealPins) closeInputs() []error {
	var errs []error
	for _, line := range r.inputs {
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.inputs = nil
	return errs
}

// Close drives every lamp low, then releases all lines.
// Lines are reconfigured as pulled-down inputs first so the board boots with
// every lamp dark.
func (r *RealPins) Close() error {
	r.mu.Lock()
	errs := r.closeInputs()
	r.mu.Unlock()

	for pin, line := range r.outputs {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear pin %d: %w", pin, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
