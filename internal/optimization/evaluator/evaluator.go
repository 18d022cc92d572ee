// Package evaluator scores candidate plans for the genetic search by pairing
// a traffic model with the constraint-penalized fitness function.
package evaluator

import (
	"fmt"

	"github.com/signaltiming-optimizer/internal/common/logger"
	"github.com/signaltiming-optimizer/internal/optimization/fitness"
	"github.com/signaltiming-optimizer/internal/optimization/genetic"
	"github.com/signaltiming-optimizer/internal/simulation/simulator"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

var (
	_ genetic.Evaluator = (*SimulationEvaluator)(nil)
	_ genetic.Evaluator = (*AnalyticEvaluator)(nil)
)

// Demand is the traffic a plan is scored against
type Demand struct {
	Volumes  models.Volumes
	Duration float64 // seconds
}

// Validate rejects negative volumes and a non-positive duration
func (d Demand) Validate() error {
	if d.Duration <= 0 {
		return fmt.Errorf("simulation duration must be positive, got %v", d.Duration)
	}
	for dir, v := range d.Volumes {
		if v < 0 {
			return fmt.Errorf("volume for direction %s must not be negative, got %v", dir, v)
		}
	}
	return nil
}

// SimulationEvaluator runs a full event-driven simulation per candidate.
// Every candidate gets a fresh simulator seeded identically, so all plans
// face the same arrival stream and the score is a pure function of the plan.
type SimulationEvaluator struct {
	demand  Demand
	config  simulator.Config
	weights fitness.Weights
	logger  logger.Logger
}

// NewSimulationEvaluator validates the demand and builds the evaluator
func NewSimulationEvaluator(demand Demand, cfg simulator.Config, weights fitness.Weights, log logger.Logger) (*SimulationEvaluator, error) {
	if err := demand.Validate(); err != nil {
		return nil, fmt.Errorf("invalid demand: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SimulationEvaluator{
		demand:  demand,
		config:  cfg,
		weights: weights,
		logger:  log,
	}, nil
}

// Simulate runs the plan without scoring it
func (e *SimulationEvaluator) Simulate(timing models.SignalTiming) models.SimulationResult {
	return simulator.New(timing, e.config, e.logger).RunSimulation(e.demand.Volumes, e.demand.Duration)
}

// Score simulates the plan and returns its penalized fitness
func (e *SimulationEvaluator) Score(timing models.SignalTiming) (float64, models.SimulationResult, error) {
	result := e.Simulate(timing)
	return fitness.EvaluateWithConstraints(result, timing, e.weights), result, nil
}
