// Package optimization runs a complete optimization for one intersection and
// hands the resulting report to the configured sinks.
package optimization

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signaltiming-optimizer/internal/common/db"
	"github.com/signaltiming-optimizer/internal/common/logger"
	"github.com/signaltiming-optimizer/internal/optimization/evaluator"
	"github.com/signaltiming-optimizer/internal/optimization/fitness"
	"github.com/signaltiming-optimizer/internal/optimization/genetic"
	"github.com/signaltiming-optimizer/internal/report"
	"github.com/signaltiming-optimizer/internal/simulation/simulator"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

// Store persists plans and their scores. db.PlanStore satisfies it.
type Store interface {
	UpsertIntersection(ctx context.Context, intersectionID, name string) error
	InsertSignalTiming(ctx context.Context, intersectionID string, timing models.SignalTiming, optimized bool) (int, error)
	ActivateTiming(ctx context.Context, intersectionID string, timingID int) error
	InsertOptimizationResult(ctx context.Context, rec db.ResultRecord) (int, error)
}

type Exporter interface {
	Export(r *report.Report) error
}

type Notifier interface {
	SendRunSummary(r *report.Report) error
}

// Sinks receive the report of every successful run. Nil sinks are skipped.
type Sinks struct {
	Store    Store
	Exporter Exporter
	Notifier Notifier
}

// Request describes one optimization run
type Request struct {
	IntersectionID   string
	IntersectionName string
	Baseline         models.SignalTiming
	Demand           evaluator.Demand
	Simulation       simulator.Config
	Genetic          genetic.Config
	Weights          fitness.Weights
	Constraints      models.Constraints // nil means models.DefaultConstraints
	Analytic         bool               // score candidates with the queuing model instead of simulating
}

type Manager struct {
	logger logger.Logger
	sinks  Sinks
	now    func() time.Time
}

func NewManager(sinks Sinks, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		logger: log,
		sinks:  sinks,
		now:    time.Now,
	}
}

// Run simulates the baseline plan, searches for a better one, simulates the
// winner under the same arrivals and compares the two. Store and export
// failures are returned together with the finished report; notification
// failures are only logged.
func (m *Manager) Run(ctx context.Context, req Request) (*report.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	log := m.logger.With("run_id", runID.String(), "intersection_id", req.IntersectionID)
	started := m.now()

	log.Info("Starting optimization run",
		"population_size", req.Genetic.PopulationSize,
		"generations", req.Genetic.Generations,
		"analytic", req.Analytic)

	sim, err := evaluator.NewSimulationEvaluator(req.Demand, req.Simulation, req.Weights, log)
	if err != nil {
		return nil, fmt.Errorf("creating simulation evaluator: %w", err)
	}

	search, name, err := m.searchEvaluator(req, sim, log)
	if err != nil {
		return nil, err
	}

	ga, err := genetic.New(req.Genetic, log)
	if err != nil {
		return nil, fmt.Errorf("creating genetic algorithm: %w", err)
	}

	baseline := sim.Simulate(req.Baseline)
	log.Info("Baseline simulated",
		"throughput", baseline.Throughput,
		"avg_delay", baseline.AvgDelay,
		"level_of_service", baseline.LevelOfService)

	best, summary, err := ga.Optimize(req.Baseline, search, req.Constraints)
	if err != nil {
		return nil, fmt.Errorf("optimizing intersection %s: %w", req.IntersectionID, err)
	}

	optimized := sim.Simulate(best)
	comparison := fitness.CompareScenarios(baseline, optimized)
	diagnostics, _ := ga.Diagnostics()

	rep := &report.Report{
		RunID:            runID,
		IntersectionID:   req.IntersectionID,
		IntersectionName: req.IntersectionName,
		Evaluator:        name,
		StartedAt:        started,
		FinishedAt:       m.now(),
		Volumes:          req.Demand.Volumes,
		BaselineTiming:   req.Baseline,
		OptimizedTiming:  best,
		BaselineResults:  baseline,
		OptimizedResults: optimized,
		Summary:          summary,
		Comparison:       comparison,
		Diagnostics:      diagnostics,
	}

	log.Info("Optimization run finished",
		"best_fitness", summary.BestFitness,
		"cycle_length", best.CycleLength,
		"fitness_improvement_pct", comparison.OverallFitness.ImprovementPercent,
		"elapsed", rep.Elapsed())

	return rep, m.deliver(ctx, rep, req.Weights, log)
}

func (m *Manager) searchEvaluator(req Request, sim *evaluator.SimulationEvaluator, log logger.Logger) (genetic.Evaluator, string, error) {
	if !req.Analytic {
		return sim, "simulation", nil
	}
	analytic, err := evaluator.NewAnalyticEvaluator(req.Demand, req.Simulation.SaturationFlowRate, req.Weights, log)
	if err != nil {
		return nil, "", fmt.Errorf("creating analytic evaluator: %w", err)
	}
	return analytic, "analytic", nil
}

func (m *Manager) deliver(ctx context.Context, rep *report.Report, weights fitness.Weights, log logger.Logger) error {
	if m.sinks.Store != nil {
		if err := persist(ctx, m.sinks.Store, rep, weights); err != nil {
			return fmt.Errorf("storing run %s: %w", rep.RunID, err)
		}
		log.Info("Run stored")
	}

	if m.sinks.Exporter != nil {
		if err := m.sinks.Exporter.Export(rep); err != nil {
			return fmt.Errorf("exporting run %s: %w", rep.RunID, err)
		}
		log.Info("Run exported")
	}

	if m.sinks.Notifier != nil {
		if err := m.sinks.Notifier.SendRunSummary(rep); err != nil {
			log.Warn("Failed to send run summary", "error", err)
		}
	}

	return nil
}

// persist stores both plans, activates the optimized one and records the
// score of each under the run id
func persist(ctx context.Context, store Store, rep *report.Report, weights fitness.Weights) error {
	if err := store.UpsertIntersection(ctx, rep.IntersectionID, rep.IntersectionName); err != nil {
		return err
	}

	plans := []struct {
		timing    models.SignalTiming
		result    models.SimulationResult
		optimized bool
	}{
		{rep.BaselineTiming, rep.BaselineResults, false},
		{rep.OptimizedTiming, rep.OptimizedResults, true},
	}

	for _, p := range plans {
		id, err := store.InsertSignalTiming(ctx, rep.IntersectionID, p.timing, p.optimized)
		if err != nil {
			return err
		}

		if _, err := store.InsertOptimizationResult(ctx, db.ResultRecord{
			RunID:          rep.RunID,
			IntersectionID: rep.IntersectionID,
			TimingID:       id,
			Result:         p.result,
			Fitness:        fitness.EvaluateWithConstraints(p.result, p.timing, weights),
		}); err != nil {
			return err
		}

		if p.optimized {
			if err := store.ActivateTiming(ctx, rep.IntersectionID, id); err != nil {
				return err
			}
		}
	}

	return nil
}
