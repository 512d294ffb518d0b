// Package gpio provides signal-lamp outputs and intensity-sense edge inputs
// with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/traffic-light/internal/logic"

// Pin is a line offset on the GPIO chip (BCM numbering on a Raspberry Pi).
type Pin int

// Pins drives output lines.
type Pins interface {
	// Set drives pin high (on) or low. It must not block for longer than a
	// single register write and is called from the tick and edge contexts.
	Set(pin Pin, on bool) error
}

// EdgeFunc receives a rising edge on the sense input of a direction. now is a
// free-running microsecond counter that wraps at 2^32.
type EdgeFunc func(d logic.Direction, now uint32)

// EdgeSource delivers rising edges from the two sense inputs.
type EdgeSource interface {
	// WatchEdges starts edge delivery. fn runs in the source's own context and
	// every edge is acknowledged whether or not fn acts on it.
	WatchEdges(fn EdgeFunc) error
}

// Default pin definitions (BCM numbering).
const (
	DefaultRedLeft        Pin = 9
	DefaultYellowLeft     Pin = 8
	DefaultGreenLeft      Pin = 10
	DefaultGreenRight     Pin = 6
	DefaultYellowRight    Pin = 11
	DefaultRedRight       Pin = 12
	DefaultLeftSense      Pin = 4
	DefaultRightSense     Pin = 7
	DefaultLeftIndicator  Pin = 5
	DefaultRightIndicator Pin = 15
)

// Layout assigns lines to the controller's lamps and inputs.
type Layout struct {
	RedLeft, YellowLeft, GreenLeft    Pin
	RedRight, YellowRight, GreenRight Pin
	Sense                             [2]Pin // indexed by logic.Direction
	Indicator                         [2]Pin // indexed by logic.Direction
}

// DefaultLayout returns the reference wiring.
func DefaultLayout() Layout {
	return Layout{
		RedLeft:     DefaultRedLeft,
		YellowLeft:  DefaultYellowLeft,
		GreenLeft:   DefaultGreenLeft,
		RedRight:    DefaultRedRight,
		YellowRight: DefaultYellowRight,
		GreenRight:  DefaultGreenRight,
		Sense:       [2]Pin{DefaultLeftSense, DefaultRightSense},
		Indicator:   [2]Pin{DefaultLeftIndicator, DefaultRightIndicator},
	}
}

// Outputs returns every output line in the layout.
func (l Layout) Outputs() []Pin {
	return []Pin{
		l.RedLeft, l.YellowLeft, l.GreenLeft,
		l.RedRight, l.YellowRight, l.GreenRight,
		l.Indicator[logic.Left], l.Indicator[logic.Right],
	}
}

// ApplyLights writes all six lamps to match lights, stopping at the first error.
func ApplyLights(p Pins, l Layout, lights logic.Lights) error {
	writes := []struct {
		pin Pin
		on  bool
	}{
		// Lamps going dark are written first so two greens never overlap.
		{l.GreenLeft, lights.GreenLeft},
		{l.GreenRight, lights.GreenRight},
		{l.YellowLeft, lights.YellowLeft},
		{l.YellowRight, lights.YellowRight},
		{l.RedLeft, lights.RedLeft},
		{l.RedRight, lights.RedRight},
	}
	for _, w := range writes {
		if w.on {
			continue
		}
		if err := p.Set(w.pin, false); err != nil {
			return err
		}
	}
	for _, w := range writes {
		if !w.on {
			continue
		}
		if err := p.Set(w.pin, true); err != nil {
			return err
		}
	}
	return nil
}
