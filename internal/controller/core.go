// Package controller runs the traffic-light phase cycle and owns the state
// shared between the edge, tick, receive and main-loop contexts.
package controller

import (
	"sync/atomic"

	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/serial"
)

// Core is the shared state of the controller. It is built once before any
// context starts and is never reallocated. Every field is either immutable
// after construction or accessed atomically, so the handlers below may run
// concurrently with each other and with the main loop.
//
// Edge, Tick and Receive never block and never log.
type Core struct {
	pins   gpio.Pins
	layout gpio.Layout

	levels logic.Intensity
	gate   *logic.Gate
	blink  logic.Blinker
	lines  *serial.LineBuffer

	pinErrors atomic.Uint32
}

// NewCore creates a Core with both directions at Normal and both indicators
// off. debounce is the minimum edge spacing in edge-counter units.
func NewCore(pins gpio.Pins, layout gpio.Layout, debounce uint32) *Core {
	return &Core{
		pins:   pins,
		layout: layout,
		gate:   logic.NewGate(debounce),
		lines:  serial.NewLineBuffer(),
	}
}

// Edge handles a rising edge on the sense input of d at counter value now.
// An accepted edge advances the level of d by one step.
func (c *Core) Edge(d logic.Direction, now uint32) {
	if !c.gate.Accept(d, now) {
		return
	}
	c.applyLevel(d, c.levels.Advance(d))
}

// Tick advances both indicators by one tick at the rate implied by the
// current levels. A pin is written only when its indicator changes.
func (c *Core) Tick() {
	for _, d := range logic.Directions {
		changed, on := c.blink.Step(d, logic.RateFor(c.levels.Level(d)))
		if changed {
			c.write(c.layout.Indicator[d], on)
		}
	}
}

// Receive queues one byte from the serial line. Bytes arriving while the
// line buffer is full are dropped.
func (c *Core) Receive(b byte) {
	c.lines.Push(b)
}

// Level returns the current level of d.
func (c *Core) Level(d logic.Direction) logic.Level {
	return c.levels.Level(d)
}

// SetLevel overrides the level of d. Invalid levels are stored as Normal.
func (c *Core) SetLevel(d logic.Direction, lvl logic.Level) {
	c.levels.Set(d, lvl)
	c.applyLevel(d, c.levels.Level(d))
}

// Levels returns both levels.
func (c *Core) Levels() (left, right logic.Level) {
	return c.levels.Both()
}

// applyLevel turns the indicator off the moment a direction returns to
// Normal instead of waiting for the next tick.
func (c *Core) applyLevel(d logic.Direction, lvl logic.Level) {
	if lvl != logic.Normal {
		return
	}
	c.blink.ForceOff(d)
	c.write(c.layout.Indicator[d], false)
}

func (c *Core) write(pin gpio.Pin, on bool) {
	if err := c.pins.Set(pin, on); err != nil {
		c.pinErrors.Add(1)
	}
}

// IndicatorOn reports whether the indicator of d is lit.
func (c *Core) IndicatorOn(d logic.Direction) bool {
	return c.blink.On(d)
}

// Lines returns the serial line buffer fed by Receive.
func (c *Core) Lines() *serial.LineBuffer {
	return c.lines
}

// Pins returns the output lines and their layout.
func (c *Core) Pins() (gpio.Pins, gpio.Layout) {
	return c.pins, c.layout
}

// EdgeCounts returns the number of accepted and rejected edges.
func (c *Core) EdgeCounts() (accepted, rejected int) {
	return c.gate.Counts()
}

// PinErrors returns the number of failed indicator writes.
func (c *Core) PinErrors() int {
	return int(c.pinErrors.Load())
}
