// Package logic contains the pure state machines of the traffic-light controller:
// intensity levels, the debounce gate, blink-rate indication and phase timing.
// This package has NO external dependencies (no GPIO, MQTT, serial or time.Sleep).
// Time is always injectable, either as a time.Time or as a raw uint32 counter value.
package logic

import "time"

// Direction identifies one of the two opposing traffic directions.
type Direction int

const (
	Left Direction = iota
	Right
)

// Directions lists both directions in a fixed order (left first).
var Directions = [2]Direction{Left, Right}

func (d Direction) String() string {
	switch d {
	case Left:
		return "Left"
	case Right:
		return "Right"
	}
	return "Unknown"
}

// Level is the sensed or commanded traffic intensity of one direction.
type Level uint32

const (
	Normal Level = iota
	Intense
	HighIntense

	numLevels = 3
)

func (l Level) String() string {
	switch l {
	case Normal:
		return "Normal"
	case Intense:
		return "Intense"
	case HighIntense:
		return "HighIntense"
	}
	return "Unknown"
}

// Next returns the level that follows l in the cycle Normal → Intense → HighIntense → Normal.
func (l Level) Next() Level {
	return (l + 1) % numLevels
}

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	return l < numLevels
}

// Rate is the toggle rate of an intensity indicator.
type Rate uint32

const (
	RateOff Rate = iota
	RateSlow
	RateMedium
	RateFast
)

func (r Rate) String() string {
	switch r {
	case RateOff:
		return "Off"
	case RateSlow:
		return "Slow"
	case RateMedium:
		return "Medium"
	case RateFast:
		return "Fast"
	}
	return "Unknown"
}

// RateFor derives the indicator rate from an intensity level.
func RateFor(l Level) Rate {
	switch l {
	case Intense:
		return RateMedium
	case HighIntense:
		return RateFast
	}
	return RateOff
}

// EventType represents a published controller event.
type EventType string

const (
	EventPhase     EventType = "PHASE"
	EventIntensity EventType = "INTENSITY"
)

// Event is a phase entry or an observed intensity change, as seen by the main loop.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Phase     Phase
	Duration  time.Duration // phase events only
	Left      Level
	Right     Level
	Cycle     int
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Phases      int
	Cycles      int
	Intensity   int
	EdgesOK     int
	EdgesDenied int
	Commands    int
	Unknown     int
	Dropped     int
	PinErrors   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
