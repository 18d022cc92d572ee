package models

import "math"

// Direction is an intersection approach
type Direction string

const (
	North Direction = "N"
	South Direction = "S"
	East  Direction = "E"
	West  Direction = "W"
)

// Directions lists every approach in the fixed order used for event generation
var Directions = []Direction{North, South, East, West}

// Phase is a set of approaches that share right-of-way
type Phase string

const (
	PhaseNS Phase = "NS"
	PhaseEW Phase = "EW"
)

// Directions returns the approaches served by the phase
func (p Phase) Directions() []Direction {
	if p == PhaseNS {
		return []Direction{North, South}
	}
	return []Direction{East, West}
}

// Next returns the phase that follows p in the two-phase sequence
func (p Phase) Next() Phase {
	if p == PhaseNS {
		return PhaseEW
	}
	return PhaseNS
}

const (
	DefaultYellowTime = 3.0
	DefaultAllRedTime = 2.0
)

// SignalTiming is a fixed-time plan for a two-phase intersection.
// Values are never modified in place; the With* helpers return copies.
type SignalTiming struct {
	CycleLength int     `json:"cycle_length" msgpack:"cycle_length" toml:"cycle_length"`
	GreenNorth  float64 `json:"green_time_north" msgpack:"green_time_north" toml:"green_time_north"`
	GreenSouth  float64 `json:"green_time_south" msgpack:"green_time_south" toml:"green_time_south"`
	GreenEast   float64 `json:"green_time_east" msgpack:"green_time_east" toml:"green_time_east"`
	GreenWest   float64 `json:"green_time_west" msgpack:"green_time_west" toml:"green_time_west"`
	YellowTime  float64 `json:"yellow_time" msgpack:"yellow_time" toml:"yellow_time"`
	AllRedTime  float64 `json:"all_red_time" msgpack:"all_red_time" toml:"all_red_time"`
}

// DefaultSignalTiming returns a 90 second plan with yellow and all-red at their defaults
func DefaultSignalTiming() SignalTiming {
	return SignalTiming{
		CycleLength: 90,
		GreenNorth:  35,
		GreenSouth:  35,
		GreenEast:   30,
		GreenWest:   30,
		YellowTime:  DefaultYellowTime,
		AllRedTime:  DefaultAllRedTime,
	}
}

// LostTime is the yellow plus all-red time of both phases
func (t SignalTiming) LostTime() float64 {
	return 2 * (t.YellowTime + t.AllRedTime)
}

// AvailableGreen is the cycle time left for discharge once lost time is removed
func (t SignalTiming) AvailableGreen() float64 {
	return float64(t.CycleLength) - t.LostTime()
}

// Green returns the green time of a single approach
func (t SignalTiming) Green(d Direction) float64 {
	switch d {
	case North:
		return t.GreenNorth
	case South:
		return t.GreenSouth
	case East:
		return t.GreenEast
	case West:
		return t.GreenWest
	}
	return 0
}

// PhaseGreen is the nominal block length used by the simulator for a phase
func (t SignalTiming) PhaseGreen(p Phase) float64 {
	if p == PhaseNS {
		return t.GreenNorth
	}
	return t.GreenEast
}

// TotalGreen sums the green time of all four approaches
func (t SignalTiming) TotalGreen() float64 {
	return t.GreenNorth + t.GreenSouth + t.GreenEast + t.GreenWest
}

// WithGreen returns a copy of t with one approach's green replaced
func (t SignalTiming) WithGreen(d Direction, green float64) SignalTiming {
	switch d {
	case North:
		t.GreenNorth = green
	case South:
		t.GreenSouth = green
	case East:
		t.GreenEast = green
	case West:
		t.GreenWest = green
	}
	return t
}

// WithCycle returns a copy of t with a new cycle length
func (t SignalTiming) WithCycle(cycle int) SignalTiming {
	t.CycleLength = cycle
	return t
}

// Normalized averages each phase pair and, when the phase greens exceed the
// available green, scales both down proportionally so they fit exactly.
// Both approaches of a phase receive the same value.
func (t SignalTiming) Normalized() SignalTiming {
	available := t.AvailableGreen()

	ns := (t.GreenNorth + t.GreenSouth) / 2
	ew := (t.GreenEast + t.GreenWest) / 2

	if total := ns + ew; total > available && total > 0 {
		scale := math.Max(available, 0) / total
		ns *= scale
		ew *= scale
	}

	t.GreenNorth, t.GreenSouth = ns, ns
	t.GreenEast, t.GreenWest = ew, ew
	return t
}

// Volumes maps each approach to its hourly vehicle volume
type Volumes map[Direction]float64

// Scaled returns a copy of v with every volume multiplied by factor
func (v Volumes) Scaled(factor float64) Volumes {
	out := make(Volumes, len(v))
	for d, vol := range v {
		out[d] = vol * factor
	}
	return out
}
