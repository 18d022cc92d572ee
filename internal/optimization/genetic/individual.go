package genetic

import "github.com/signaltiming-optimizer/pkg/signal/models"

// Evaluator scores a candidate plan. Implementations typically simulate the
// plan and apply a fitness function; any error aborts the optimization.
type Evaluator interface {
	Score(timing models.SignalTiming) (float64, models.SimulationResult, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface
type EvaluatorFunc func(timing models.SignalTiming) (float64, models.SimulationResult, error)

// Score calls f
func (f EvaluatorFunc) Score(timing models.SignalTiming) (float64, models.SimulationResult, error) {
	return f(timing)
}

// Individual is one candidate plan with its last evaluation. Individuals are
// values: operators always build new ones instead of editing evaluated ones.
type Individual struct {
	Timing  models.SignalTiming
	Fitness float64
	Result  models.SimulationResult
}
