package models

import "math"

// Parameter names a tunable field of a SignalTiming
type Parameter string

const (
	ParamCycleLength Parameter = "cycle_length"
	ParamGreenNorth  Parameter = "green_time_north"
	ParamGreenSouth  Parameter = "green_time_south"
	ParamGreenEast   Parameter = "green_time_east"
	ParamGreenWest   Parameter = "green_time_west"
)

// Parameters is the gene set searched by the optimizer, in a fixed order
var Parameters = []Parameter{
	ParamCycleLength,
	ParamGreenNorth,
	ParamGreenSouth,
	ParamGreenEast,
	ParamGreenWest,
}

// Direction returns the approach controlled by a green parameter
func (p Parameter) Direction() (Direction, bool) {
	switch p {
	case ParamGreenNorth:
		return North, true
	case ParamGreenSouth:
		return South, true
	case ParamGreenEast:
		return East, true
	case ParamGreenWest:
		return West, true
	}
	return "", false
}

// Value reads a parameter from a timing
func (t SignalTiming) Value(p Parameter) float64 {
	if p == ParamCycleLength {
		return float64(t.CycleLength)
	}
	d, _ := p.Direction()
	return t.Green(d)
}

// WithValue returns a copy of t with p set to v. Cycle length is rounded to
// the nearest whole second.
func (t SignalTiming) WithValue(p Parameter, v float64) SignalTiming {
	if p == ParamCycleLength {
		return t.WithCycle(int(math.Round(v)))
	}
	d, _ := p.Direction()
	return t.WithGreen(d, v)
}

// Bounds is an inclusive parameter range
type Bounds struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max" toml:"max"`
}

// Span is Max - Min
func (b Bounds) Span() float64 {
	return b.Max - b.Min
}

// Clip limits v to the range
func (b Bounds) Clip(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Constraints holds the search bounds of every parameter
type Constraints map[Parameter]Bounds

// DefaultConstraints bounds cycle length to [45,120] and each green to [10,60]
func DefaultConstraints() Constraints {
	return Constraints{
		ParamCycleLength: {Min: 45, Max: 120},
		ParamGreenNorth:  {Min: 10, Max: 60},
		ParamGreenSouth:  {Min: 10, Max: 60},
		ParamGreenEast:   {Min: 10, Max: 60},
		ParamGreenWest:   {Min: 10, Max: 60},
	}
}

// Get returns the bounds for p, falling back to the defaults when unset
func (c Constraints) Get(p Parameter) Bounds {
	if b, ok := c[p]; ok {
		return b
	}
	return DefaultConstraints()[p]
}
