package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signaltiming-optimizer/internal/common/config"
	"github.com/signaltiming-optimizer/internal/report"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

func TestRequestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Optimization.Weights.Throughput = 2
	cfg.Simulation.Analytic = true

	req := requestFromConfig(cfg)

	assert.Equal(t, cfg.Intersection.ID, req.IntersectionID)
	assert.Equal(t, cfg.Simulation.Duration, req.Demand.Duration)
	assert.Equal(t, cfg.Optimization.PopulationSize, req.Genetic.PopulationSize)
	assert.NoError(t, req.Genetic.Validate())
	assert.InDelta(t, 1.0, req.Weights.Throughput+req.Weights.Delay+req.Weights.Stops+req.Weights.Queue, 1e-9)
	assert.True(t, req.Analytic)
}

func TestPrintResults(t *testing.T) {
	rep := &report.Report{
		IntersectionID:   "INT-001",
		BaselineTiming:   models.DefaultSignalTiming(),
		OptimizedTiming:  models.DefaultSignalTiming().WithCycle(72),
		BaselineResults:  models.SimulationResult{Throughput: 1480.34, AvgDelay: 31.456},
		OptimizedResults: models.SimulationResult{Throughput: 1510, AvgDelay: 27.1, LevelOfService: "C"},
	}

	var buf bytes.Buffer
	printResults(&buf, rep)
	out := buf.String()

	assert.Contains(t, out, "OPTIMIZATION RESULTS (INT-001)")
	assert.Contains(t, out, "Optimized Cycle Length: 72s")
	assert.Contains(t, out, "Baseline Throughput:  1480.3 veh/hr")
	assert.Contains(t, out, "Baseline Delay:  31.46s")
	assert.Contains(t, out, "Level of Service: C")
}
