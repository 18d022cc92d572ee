package simulator

import (
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/signaltiming-optimizer/internal/simulation/queue"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

func (s *Simulator) calculateMetrics() models.SimulationResult {
	processed := s.state.Processed

	if len(processed) == 0 {
		return models.SimulationResult{LevelOfService: "F"}
	}

	hours := s.state.CurrentTime / 3600
	perHour := func(n int) float64 {
		if hours <= 0 {
			return 0
		}
		return float64(n) / hours
	}

	delays := lo.Map(processed, func(v *Vehicle, _ int) float64 { return v.Delay })
	stops := lo.Map(processed, func(v *Vehicle, _ int) float64 { return float64(v.Stops) })

	maxQueue := 1
	for _, q := range s.state.Queues {
		maxQueue = max(maxQueue, len(q))
	}

	avgDelay := stat.Mean(delays, nil)

	byDirection := lo.GroupBy(processed, func(v *Vehicle) models.Direction { return v.Direction })
	directionMetrics := make(map[models.Direction]models.DirectionMetrics, len(byDirection))
	for d, vehicles := range byDirection {
		directionMetrics[d] = models.DirectionMetrics{
			Throughput: perHour(len(vehicles)),
			AvgDelay:   lo.SumBy(vehicles, func(v *Vehicle) float64 { return v.Delay }) / float64(len(vehicles)),
		}
	}

	return models.SimulationResult{
		Throughput:             perHour(len(processed)),
		AvgDelay:               avgDelay,
		MaxDelay:               floats.Max(delays),
		AvgStops:               stat.Mean(stops, nil),
		MaxQueueLength:         float64(maxQueue),
		LevelOfService:         queue.LevelOfService(avgDelay),
		TotalVehiclesProcessed: len(processed),
		DirectionMetrics:       directionMetrics,
	}
}
