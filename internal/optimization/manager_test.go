package optimization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaltiming-optimizer/internal/common/db"
	"github.com/signaltiming-optimizer/internal/optimization/evaluator"
	"github.com/signaltiming-optimizer/internal/optimization/fitness"
	"github.com/signaltiming-optimizer/internal/optimization/genetic"
	"github.com/signaltiming-optimizer/internal/report"
	"github.com/signaltiming-optimizer/internal/simulation/simulator"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

type storedPlan struct {
	timing    models.SignalTiming
	optimized bool
}

type fakeStore struct {
	intersections []string
	plans         []storedPlan
	activated     []int
	results       []db.ResultRecord
	failInsert    error
}

func (s *fakeStore) UpsertIntersection(_ context.Context, id, _ string) error {
	s.intersections = append(s.intersections, id)
	return nil
}

func (s *fakeStore) InsertSignalTiming(_ context.Context, _ string, timing models.SignalTiming, optimized bool) (int, error) {
	if s.failInsert != nil {
		return 0, s.failInsert
	}
	s.plans = append(s.plans, storedPlan{timing: timing, optimized: optimized})
	return len(s.plans), nil
}

func (s *fakeStore) ActivateTiming(_ context.Context, _ string, timingID int) error {
	s.activated = append(s.activated, timingID)
	return nil
}

func (s *fakeStore) InsertOptimizationResult(_ context.Context, rec db.ResultRecord) (int, error) {
	s.results = append(s.results, rec)
	return len(s.results), nil
}

type fakeExporter struct{ reports []*report.Report }

func (e *fakeExporter) Export(r *report.Report) error {
	e.reports = append(e.reports, r)
	return nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (n *fakeNotifier) SendRunSummary(*report.Report) error {
	n.calls++
	return n.err
}

func smallRequest() Request {
	return Request{
		IntersectionID: "INT-001",
		Baseline:       models.DefaultSignalTiming(),
		Demand: evaluator.Demand{
			Volumes: models.Volumes{
				models.North: 600,
				models.South: 600,
				models.East:  400,
				models.West:  400,
			},
			Duration: 900,
		},
		Simulation: simulator.DefaultConfig(),
		Genetic: genetic.Config{
			PopulationSize: 6,
			Generations:    4,
			MutationRate:   0.2,
			CrossoverRate:  0.8,
			EliteCount:     1,
			Seed:           3,
		},
		Weights: fitness.DefaultWeights(),
	}
}

func TestRunProducesReport(t *testing.T) {
	exporter := &fakeExporter{}
	m := NewManager(Sinks{Exporter: exporter}, nil)

	rep, err := m.Run(context.Background(), smallRequest())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rep.RunID)
	assert.Equal(t, "simulation", rep.Evaluator)
	assert.Len(t, rep.Summary.FitnessHistory, 4)
	assert.Equal(t, 4, rep.Diagnostics.GenerationsRun)
	assert.Equal(t, rep.OptimizedTiming, rep.Diagnostics.BestTiming)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))

	// both plans face the same arrivals
	sim, err := evaluator.NewSimulationEvaluator(smallRequest().Demand, simulator.DefaultConfig(), fitness.DefaultWeights(), nil)
	require.NoError(t, err)
	assert.Equal(t, sim.Simulate(rep.BaselineTiming), rep.BaselineResults)
	assert.Equal(t, sim.Simulate(rep.OptimizedTiming), rep.OptimizedResults)
	assert.Equal(t, fitness.CompareScenarios(rep.BaselineResults, rep.OptimizedResults), rep.Comparison)

	require.Len(t, exporter.reports, 1)
	assert.Same(t, rep, exporter.reports[0])
}

func TestRunPersistsBothPlans(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(Sinks{Store: store}, nil)

	rep, err := m.Run(context.Background(), smallRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"INT-001"}, store.intersections)
	require.Len(t, store.plans, 2)
	assert.Equal(t, storedPlan{timing: rep.BaselineTiming, optimized: false}, store.plans[0])
	assert.Equal(t, storedPlan{timing: rep.OptimizedTiming, optimized: true}, store.plans[1])
	assert.Equal(t, []int{2}, store.activated)

	require.Len(t, store.results, 2)
	for i, rec := range store.results {
		assert.Equal(t, rep.RunID, rec.RunID)
		assert.Equal(t, i+1, rec.TimingID)
	}
	assert.Equal(t, rep.OptimizedResults, store.results[1].Result)
	assert.Equal(t,
		fitness.EvaluateWithConstraints(rep.OptimizedResults, rep.OptimizedTiming, fitness.DefaultWeights()),
		store.results[1].Fitness)
}

func TestRunStoreFailureIsReturned(t *testing.T) {
	boom := errors.New("connection reset")
	exporter := &fakeExporter{}
	m := NewManager(Sinks{Store: &fakeStore{failInsert: boom}, Exporter: exporter}, nil)

	rep, err := m.Run(context.Background(), smallRequest())
	assert.True(t, errors.Is(err, boom))
	assert.NotNil(t, rep)
	assert.Empty(t, exporter.reports, "later sinks are skipped")
}

func TestRunNotifierFailureIsOnlyLogged(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("webhook down")}
	m := NewManager(Sinks{Notifier: notifier}, nil)

	_, err := m.Run(context.Background(), smallRequest())
	assert.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)
}

func TestRunAnalyticSearch(t *testing.T) {
	req := smallRequest()
	req.Analytic = true

	rep, err := NewManager(Sinks{}, nil).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "analytic", rep.Evaluator)
	assert.Greater(t, rep.OptimizedResults.TotalVehiclesProcessed, 0, "the winner is still simulated")
}

func TestRunRejectsBadInput(t *testing.T) {
	m := NewManager(Sinks{}, nil)

	req := smallRequest()
	req.Demand.Duration = 0
	_, err := m.Run(context.Background(), req)
	assert.Error(t, err)

	req = smallRequest()
	req.Genetic.PopulationSize = 0
	_, err = m.Run(context.Background(), req)
	assert.True(t, errors.Is(err, genetic.ErrInvalidConfig))

	req = smallRequest()
	req.Analytic = true
	req.Simulation.SaturationFlowRate = 0
	_, err = m.Run(context.Background(), req)
	assert.Error(t, err)
}

func TestRunHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	_, err := NewManager(Sinks{Store: store}, nil).Run(ctx, smallRequest())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, store.plans)
}

func TestRunUsesClock(t *testing.T) {
	m := NewManager(Sinks{}, nil)
	ticks := []time.Time{
		time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 7, 0, 30, 0, time.UTC),
	}
	m.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	rep, err := m.Run(context.Background(), smallRequest())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, rep.Elapsed())
}
