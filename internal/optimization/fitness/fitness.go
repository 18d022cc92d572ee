// Package fitness scores simulation results and signal timings.
// Higher scores are better.
package fitness

import (
	"math"

	"github.com/signaltiming-optimizer/pkg/signal/models"
)

// Scale constants that bring each component to roughly unit size
const (
	throughputScale = 2000.0
	delayScale      = -100.0
	stopsScale      = -2.0
	queueScale      = -50.0
)

// Constraint limits used by PenaltyForConstraints
const (
	MinGreen        = 10.0
	MinCycle        = 45
	MaxCycle        = 120
	referenceCycle  = 80
	greenPenalty    = 10.0
	cyclePenalty    = 5.0
	overflowPenalty = 20.0
)

// Weights sets the relative importance of each objective
type Weights struct {
	Throughput float64 `json:"throughput" toml:"throughput"`
	Delay      float64 `json:"delay" toml:"delay"`
	Stops      float64 `json:"stops" toml:"stops"`
	Queue      float64 `json:"queue" toml:"queue"`
}

// DefaultWeights favours throughput and delay over stops and queue length
func DefaultWeights() Weights {
	return Weights{
		Throughput: 0.35,
		Delay:      0.35,
		Stops:      0.15,
		Queue:      0.15,
	}
}

// Normalize rescales the weights to sum to one. Weights with a
// non-positive sum are returned unchanged.
func (w Weights) Normalize() Weights {
	total := w.Throughput + w.Delay + w.Stops + w.Queue
	if total <= 0 {
		return w
	}
	return Weights{
		Throughput: w.Throughput / total,
		Delay:      w.Delay / total,
		Stops:      w.Stops / total,
		Queue:      w.Queue / total,
	}
}

// ThroughputScore is the hourly throughput
func ThroughputScore(r models.SimulationResult) float64 {
	return r.Throughput
}

// DelayScore is the negated average delay
func DelayScore(r models.SimulationResult) float64 {
	return -r.AvgDelay
}

// StopsScore is the negated average number of stops
func StopsScore(r models.SimulationResult) float64 {
	return -r.AvgStops
}

// QueueScore is the negated maximum queue length
func QueueScore(r models.SimulationResult) float64 {
	return -r.MaxQueueLength
}

// CompositeFitness combines all objectives into a single weighted score
func CompositeFitness(r models.SimulationResult, w Weights) float64 {
	w = w.Normalize()

	return w.Throughput*(ThroughputScore(r)/throughputScale) +
		w.Delay*(DelayScore(r)/delayScale) +
		w.Stops*(StopsScore(r)/stopsScale) +
		w.Queue*(QueueScore(r)/queueScale)
}

// PenaltyForConstraints returns zero for a feasible plan and a negative
// value proportional to the size of every violation otherwise
func PenaltyForConstraints(t models.SignalTiming) float64 {
	penalty := 0.0

	for _, d := range models.Directions {
		if g := t.Green(d); g < MinGreen {
			penalty -= (MinGreen - g) * greenPenalty
		}
	}

	if t.CycleLength < MinCycle || t.CycleLength > MaxCycle {
		penalty -= math.Abs(float64(t.CycleLength-referenceCycle)) * cyclePenalty
	}

	if total, available := t.TotalGreen(), t.AvailableGreen(); total > available {
		penalty -= (total - available) * overflowPenalty
	}

	return penalty
}

// EvaluateWithConstraints is the composite fitness net of constraint penalties.
// This is the per-candidate score used by the optimizer.
func EvaluateWithConstraints(r models.SimulationResult, t models.SignalTiming, w Weights) float64 {
	return CompositeFitness(r, w) + PenaltyForConstraints(t)
}
