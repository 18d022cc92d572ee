package fitness

import (
	"math"

	"github.com/signaltiming-optimizer/pkg/signal/models"
)

// MetricComparison holds a baseline and an optimized value of one metric
type MetricComparison struct {
	Baseline           float64 `json:"baseline" msgpack:"baseline"`
	Optimized          float64 `json:"optimized" msgpack:"optimized"`
	ImprovementPercent float64 `json:"improvement_percent" msgpack:"improvement_percent"`
}

// Comparison reports how an optimized plan performs against a baseline
type Comparison struct {
	Throughput     MetricComparison `json:"throughput" msgpack:"throughput"`
	AvgDelay       MetricComparison `json:"avg_delay" msgpack:"avg_delay"`
	AvgStops       MetricComparison `json:"avg_stops" msgpack:"avg_stops"`
	MaxQueueLength MetricComparison `json:"max_queue_length" msgpack:"max_queue_length"`
	OverallFitness MetricComparison `json:"overall_fitness" msgpack:"overall_fitness"`
}

// CompareScenarios computes per-metric percentage changes and the change in
// composite fitness under the default weights
func CompareScenarios(baseline, optimized models.SimulationResult) Comparison {
	bf := CompositeFitness(baseline, DefaultWeights())
	of := CompositeFitness(optimized, DefaultWeights())

	overall := MetricComparison{Baseline: bf, Optimized: of}
	if bf != 0 {
		overall.ImprovementPercent = (of - bf) / math.Abs(bf) * 100
	}

	return Comparison{
		Throughput:     compareMetric(baseline.Throughput, optimized.Throughput),
		AvgDelay:       compareMetric(baseline.AvgDelay, optimized.AvgDelay),
		AvgStops:       compareMetric(baseline.AvgStops, optimized.AvgStops),
		MaxQueueLength: compareMetric(baseline.MaxQueueLength, optimized.MaxQueueLength),
		OverallFitness: overall,
	}
}

func compareMetric(baseline, optimized float64) MetricComparison {
	m := MetricComparison{Baseline: baseline, Optimized: optimized}
	if baseline != 0 {
		m.ImprovementPercent = (optimized - baseline) / baseline * 100
	}
	return m
}
