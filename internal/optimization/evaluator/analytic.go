package evaluator

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/signaltiming-optimizer/internal/common/logger"
	"github.com/signaltiming-optimizer/internal/optimization/fitness"
	"github.com/signaltiming-optimizer/internal/simulation/queue"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

// AnalyticEvaluator scores plans with closed-form queuing approximations
// instead of simulation. It is much faster and fully deterministic.
type AnalyticEvaluator struct {
	demand  Demand
	model   *queue.Model
	weights fitness.Weights
}

// NewAnalyticEvaluator builds an evaluator around a queue model for the
// given saturation flow (vehicles per hour)
func NewAnalyticEvaluator(demand Demand, saturationFlow float64, weights fitness.Weights, log logger.Logger) (*AnalyticEvaluator, error) {
	if err := demand.Validate(); err != nil {
		return nil, fmt.Errorf("invalid demand: %w", err)
	}
	if saturationFlow <= 0 {
		return nil, fmt.Errorf("saturation flow must be positive, got %v", saturationFlow)
	}
	return &AnalyticEvaluator{
		demand:  demand,
		model:   queue.New(saturationFlow/3600, log),
		weights: weights,
	}, nil
}

type approach struct {
	direction models.Direction
	volume    float64
	delay     float64
	stops     float64
	served    float64
	maxQueue  float64
}

// Estimate derives simulation-style metrics for a plan
func (e *AnalyticEvaluator) Estimate(timing models.SignalTiming) models.SimulationResult {
	cycle := float64(timing.CycleLength)
	if cycle <= 0 {
		return models.SimulationResult{LevelOfService: "F"}
	}
	cycles := int(math.Ceil(e.demand.Duration / cycle))

	var approaches []approach
	for _, d := range models.Directions {
		volume := e.demand.Volumes[d]
		if volume <= 0 {
			continue
		}

		rate := volume / 3600
		green := math.Max(0, math.Min(timing.Green(d), cycle))
		red := cycle - green

		evolution := queue.Summarize(e.model.Evolution(rate, green, red, cycles))
		approaches = append(approaches, approach{
			direction: d,
			volume:    volume,
			delay:     e.model.Delay(rate, green, red).Total,
			stops:     e.model.Stops(rate, green, cycle),
			served:    evolution.TotalThroughput,
			maxQueue:  evolution.MaxQueueLength,
		})
	}

	if len(approaches) == 0 {
		return models.SimulationResult{LevelOfService: "F"}
	}

	volumes := lo.Map(approaches, func(a approach, _ int) float64 { return a.volume })
	delays := lo.Map(approaches, func(a approach, _ int) float64 { return a.delay })
	stops := lo.Map(approaches, func(a approach, _ int) float64 { return a.stops })

	hours := float64(cycles) * cycle / 3600
	totalServed := lo.SumBy(approaches, func(a approach) float64 { return a.served })
	avgDelay := stat.Mean(delays, volumes)

	directionMetrics := make(map[models.Direction]models.DirectionMetrics, len(approaches))
	for _, a := range approaches {
		directionMetrics[a.direction] = models.DirectionMetrics{
			Throughput: a.served / hours,
			AvgDelay:   a.delay,
		}
	}

	return models.SimulationResult{
		Throughput:             totalServed / hours,
		AvgDelay:               avgDelay,
		MaxDelay:               lo.Max(delays),
		AvgStops:               stat.Mean(stops, volumes),
		MaxQueueLength:         math.Max(1, lo.MaxBy(approaches, func(a, b approach) bool { return a.maxQueue > b.maxQueue }).maxQueue),
		LevelOfService:         queue.LevelOfService(avgDelay),
		TotalVehiclesProcessed: int(math.Round(totalServed)),
		DirectionMetrics:       directionMetrics,
	}
}

// Score estimates the plan and returns its penalized fitness
func (e *AnalyticEvaluator) Score(timing models.SignalTiming) (float64, models.SimulationResult, error) {
	result := e.Estimate(timing)
	return fitness.EvaluateWithConstraints(result, timing, e.weights), result, nil
}
