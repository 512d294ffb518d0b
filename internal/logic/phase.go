package logic

import "time"

// Phase is one of the four light combinations of the traffic cycle.
type Phase int

const (
	PhaseGreenRight  Phase = iota // red left, green right
	PhaseYellowRight              // red left, yellow right
	PhaseGreenLeft                // green left, red right
	PhaseYellowLeft               // yellow left, red right

	NumPhases = 4
)

func (p Phase) String() string {
	switch p {
	case PhaseGreenRight:
		return "GREEN_RIGHT"
	case PhaseYellowRight:
		return "YELLOW_RIGHT"
	case PhaseGreenLeft:
		return "GREEN_LEFT"
	case PhaseYellowLeft:
		return "YELLOW_LEFT"
	}
	return "UNKNOWN"
}

// Next returns the phase that follows p.
func (p Phase) Next() Phase {
	return (p + 1) % NumPhases
}

// Lights is the on/off state of the six signal lamps.
type Lights struct {
	RedLeft, YellowLeft, GreenLeft    bool
	RedRight, YellowRight, GreenRight bool
}

// LightsFor returns the lamp combination shown during p.
func LightsFor(p Phase) Lights {
	switch p {
	case PhaseGreenRight:
		return Lights{RedLeft: true, GreenRight: true}
	case PhaseYellowRight:
		return Lights{RedLeft: true, YellowRight: true}
	case PhaseGreenLeft:
		return Lights{GreenLeft: true, RedRight: true}
	case PhaseYellowLeft:
		return Lights{YellowLeft: true, RedRight: true}
	}
	return Lights{}
}

// Phase durations in seconds, indexed by Phase.
var (
	delayNormal          = [NumPhases]int{15, 5, 15, 5}
	delayLeftIntense     = [NumPhases]int{10, 5, 30, 5}
	delayLeftHighIntense = [NumPhases]int{10, 5, 50, 5}
	delayRightIntense    = [NumPhases]int{30, 5, 10, 5}
	delayRightHigh       = [NumPhases]int{50, 5, 10, 5}
)

// Seconds returns the unscaled phase durations for the given levels. The side
// with the higher level gets the longer green phase: 30s for a one-level
// lead, 50s for a two-level lead.
func Seconds(left, right Level) [NumPhases]int {
	if !left.Valid() || !right.Valid() {
		return delayNormal
	}
	switch int(left) - int(right) {
	case 1:
		return delayLeftIntense
	case 2:
		return delayLeftHighIntense
	case -1:
		return delayRightIntense
	case -2:
		return delayRightHigh
	}
	return delayNormal
}

// Durations returns the phase durations for the given levels divided by
// scale. A scale below 1 is treated as 1.
func Durations(left, right Level, scale int) [NumPhases]time.Duration {
	if scale < 1 {
		scale = 1
	}
	var out [NumPhases]time.Duration
	for i, s := range Seconds(left, right) {
		out[i] = time.Duration(s) * time.Second / time.Duration(scale)
	}
	return out
}
