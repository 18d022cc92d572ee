package genetic

import (
	"math"

	"github.com/signaltiming-optimizer/pkg/signal/models"
)

const (
	DefaultConvergenceWindow    = 10
	DefaultConvergenceThreshold = 0.001
)

// ConvergenceGeneration returns the first generation index i at which the
// best fitness moved less than threshold over the previous window
// generations. It returns len(history) when that never happens or the
// history is shorter than the window. It is a diagnostic only; the search
// never stops early.
func ConvergenceGeneration(history []float64, window int, threshold float64) int {
	if window <= 0 || len(history) < window {
		return len(history)
	}

	for i := window; i < len(history); i++ {
		if math.Abs(history[i]-history[i-window]) < threshold {
			return i
		}
	}

	return len(history)
}

// Diagnostics describes the last optimization run
type Diagnostics struct {
	BestTiming            models.SignalTiming `json:"best_signal_timing" msgpack:"best_signal_timing"`
	BestFitness           float64             `json:"best_fitness" msgpack:"best_fitness"`
	GenerationsRun        int                 `json:"generations_run" msgpack:"generations_run"`
	FitnessImprovement    float64             `json:"fitness_improvement" msgpack:"fitness_improvement"`
	ConvergenceGeneration int                 `json:"convergence_generation" msgpack:"convergence_generation"`
}

// Diagnostics reports on the last call to Optimize. The second return value
// is false when no call to Optimize has completed.
func (a *Algorithm) Diagnostics() (Diagnostics, bool) {
	if !a.done {
		return Diagnostics{}, false
	}

	return Diagnostics{
		BestTiming:            a.best.Timing,
		BestFitness:           a.best.Fitness,
		GenerationsRun:        len(a.history),
		FitnessImprovement:    a.history[len(a.history)-1] - a.history[0],
		ConvergenceGeneration: ConvergenceGeneration(a.history, DefaultConvergenceWindow, DefaultConvergenceThreshold),
	}, true
}
