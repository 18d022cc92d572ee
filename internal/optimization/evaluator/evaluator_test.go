package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaltiming-optimizer/internal/optimization/fitness"
	"github.com/signaltiming-optimizer/internal/optimization/genetic"
	"github.com/signaltiming-optimizer/internal/simulation/simulator"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

func referenceDemand() Demand {
	return Demand{
		Volumes: models.Volumes{
			models.North: 600,
			models.South: 600,
			models.East:  400,
			models.West:  400,
		},
		Duration: 1800,
	}
}

func TestDemandValidate(t *testing.T) {
	require.NoError(t, referenceDemand().Validate())

	d := referenceDemand()
	d.Duration = 0
	assert.Error(t, d.Validate())

	d = referenceDemand()
	d.Volumes[models.East] = -1
	assert.Error(t, d.Validate())

	_, err := NewSimulationEvaluator(d, simulator.DefaultConfig(), fitness.DefaultWeights(), nil)
	assert.Error(t, err)

	_, err = NewAnalyticEvaluator(referenceDemand(), 0, fitness.DefaultWeights(), nil)
	assert.Error(t, err)
}

func TestSimulationEvaluatorScore(t *testing.T) {
	eval, err := NewSimulationEvaluator(referenceDemand(), simulator.DefaultConfig(), fitness.DefaultWeights(), nil)
	require.NoError(t, err)

	timing := models.DefaultSignalTiming()
	score, result, err := eval.Score(timing)
	require.NoError(t, err)

	assert.Greater(t, result.TotalVehiclesProcessed, 0)
	assert.InDelta(t, fitness.EvaluateWithConstraints(result, timing, fitness.DefaultWeights()), score, 1e-12)

	// common random numbers: the same plan always scores the same
	again, againResult, err := eval.Score(timing)
	require.NoError(t, err)
	assert.Equal(t, score, again)
	assert.Equal(t, result, againResult)
	assert.Equal(t, result, eval.Simulate(timing))
}

func TestAnalyticEvaluatorEstimate(t *testing.T) {
	eval, err := NewAnalyticEvaluator(referenceDemand(), 1800, fitness.DefaultWeights(), nil)
	require.NoError(t, err)

	result := eval.Estimate(models.DefaultSignalTiming())

	assert.Greater(t, result.Throughput, 0.0)
	assert.Greater(t, result.AvgDelay, 0.0)
	assert.GreaterOrEqual(t, result.MaxDelay, result.AvgDelay)
	assert.GreaterOrEqual(t, result.MaxQueueLength, 1.0)
	assert.Greater(t, result.AvgStops, 0.0)
	assert.LessOrEqual(t, result.AvgStops, 1.0)
	assert.Contains(t, []string{"A", "B", "C", "D", "E", "F"}, result.LevelOfService)
	assert.Len(t, result.DirectionMetrics, 4)
}

func TestAnalyticEvaluatorHeavierDemandMeansMoreDelay(t *testing.T) {
	light, err := NewAnalyticEvaluator(referenceDemand(), 1800, fitness.DefaultWeights(), nil)
	require.NoError(t, err)

	heavyDemand := referenceDemand()
	heavyDemand.Volumes = heavyDemand.Volumes.Scaled(1.5)
	heavy, err := NewAnalyticEvaluator(heavyDemand, 1800, fitness.DefaultWeights(), nil)
	require.NoError(t, err)

	timing := models.DefaultSignalTiming()
	assert.Greater(t, heavy.Estimate(timing).AvgDelay, light.Estimate(timing).AvgDelay)
}

func TestAnalyticEvaluatorNoTraffic(t *testing.T) {
	eval, err := NewAnalyticEvaluator(Demand{Volumes: models.Volumes{}, Duration: 3600}, 1800, fitness.DefaultWeights(), nil)
	require.NoError(t, err)

	result := eval.Estimate(models.DefaultSignalTiming())
	assert.Equal(t, 0.0, result.Throughput)
	assert.Equal(t, "F", result.LevelOfService)
	assert.Equal(t, 0, result.TotalVehiclesProcessed)
}

func TestEvaluatorsDriveGeneticSearch(t *testing.T) {
	cfg := genetic.Config{
		PopulationSize: 6,
		Generations:    3,
		MutationRate:   0.2,
		CrossoverRate:  0.8,
		EliteCount:     1,
		Seed:           11,
	}

	sim, err := NewSimulationEvaluator(referenceDemand(), simulator.DefaultConfig(), fitness.DefaultWeights(), nil)
	require.NoError(t, err)
	analytic, err := NewAnalyticEvaluator(referenceDemand(), 1800, fitness.DefaultWeights(), nil)
	require.NoError(t, err)

	for name, eval := range map[string]genetic.Evaluator{"simulation": sim, "analytic": analytic} {
		t.Run(name, func(t *testing.T) {
			ga, err := genetic.New(cfg, nil)
			require.NoError(t, err)

			best, summary, err := ga.Optimize(models.DefaultSignalTiming(), eval, nil)
			require.NoError(t, err)

			assert.Len(t, summary.FitnessHistory, 3)
			assert.GreaterOrEqual(t, best.CycleLength, 45)
			assert.LessOrEqual(t, best.CycleLength, 120)

			score, _, err := eval.Score(best)
			require.NoError(t, err)
			assert.InDelta(t, summary.BestFitness, score, 1e-9)
		})
	}
}
