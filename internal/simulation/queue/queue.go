// Package queue provides closed-form queuing, delay and stop approximations
// for a signalized approach. It is an analytic alternative to running the
// event-driven simulator.
package queue

import (
	"iter"
	"math"

	"github.com/signaltiming-optimizer/internal/common/logger"
)

// Model evaluates queuing formulas for a fixed service rate
type Model struct {
	ServiceRate float64 // vehicles per second
	logger      logger.Logger
}

// New creates a model with the given service rate (vehicles per second)
func New(serviceRate float64, log logger.Logger) *Model {
	if log == nil {
		log = logger.Nop()
	}
	return &Model{ServiceRate: serviceRate, logger: log}
}

// DelayBreakdown splits the average delay per vehicle into its components
type DelayBreakdown struct {
	Uniform    float64 `json:"uniform_delay"`
	Random     float64 `json:"random_delay"`
	Total      float64 `json:"total_delay"`
	Saturation float64 `json:"saturation"`
}

// CycleRecord is the state of an approach over one signal cycle
type CycleRecord struct {
	Cycle      int     `json:"cycle"`
	Arrivals   float64 `json:"arrivals"`
	Served     float64 `json:"served"`
	QueueStart float64 `json:"queue_start"`
	QueueEnd   float64 `json:"queue_end"`
	MaxQueue   float64 `json:"max_queue"`
	Delay      float64 `json:"delay"`
}

// QueueLength returns the average and maximum queue for an approach that
// receives serviceTime seconds of service in every timePeriod seconds.
func (m *Model) QueueLength(arrivalRate, serviceTime, timePeriod float64) (avg, max float64) {
	rho := (arrivalRate * timePeriod) / (serviceTime * m.ServiceRate)

	if rho >= 1 {
		// oversaturated: queue grows linearly
		avg = (rho - 1) * serviceTime * m.ServiceRate / 2
		max = (rho - 1) * serviceTime * m.ServiceRate
		m.logger.Warn("Oversaturated approach", "rho", rho)
		return avg, max
	}

	avg = rho * rho / (1 - rho)
	return avg, 2 * avg
}

// Delay estimates the average delay per vehicle with Webster's formula
func (m *Model) Delay(arrivalRate, greenTime, redTime float64) DelayBreakdown {
	cycle := greenTime + redTime
	gc := greenTime / cycle

	capacity := m.ServiceRate * gc
	x := 1.0
	if capacity > 0 {
		x = arrivalRate / capacity
	}

	var d DelayBreakdown
	d.Saturation = x

	if x < 1 {
		d.Uniform = cycle * (1 - gc) * (1 - gc) / (2 * (1 - x*gc))
		if arrivalRate > 0 {
			d.Random = x * x / (2 * arrivalRate * (1 - x))
		}
	} else {
		d.Uniform = 0.5 * cycle
		d.Random = 0.25 * cycle
	}
	d.Total = d.Uniform + d.Random

	return d
}

// Stops returns the proportion of vehicles that must stop, between 0 and 1
func (m *Model) Stops(arrivalRate, greenTime, cycleLength float64) float64 {
	redTime := cycleLength - greenTime
	prob := redTime / cycleLength

	// spillback raises the stop probability near saturation
	x := (arrivalRate * cycleLength) / (m.ServiceRate * greenTime)
	if x > 0.8 {
		prob = math.Min(1, prob*(1+(x-0.8)))
	}

	return prob
}

// Evolution steps the approach queue through numCycles signal cycles.
// The returned sequence is lazy and can be ranged over any number of times;
// every pass starts from an empty queue.
func (m *Model) Evolution(arrivalRate, greenTime, redTime float64, numCycles int) iter.Seq[CycleRecord] {
	cycle := greenTime + redTime
	arrivals := arrivalRate * cycle
	capacity := m.ServiceRate * greenTime

	return func(yield func(CycleRecord) bool) {
		queue := 0.0
		for i := 0; i < numCycles; i++ {
			start := queue
			served := math.Min(start+arrivals, capacity)
			queue = math.Max(0, start+arrivals-served)

			rec := CycleRecord{
				Cycle:      i,
				Arrivals:   arrivals,
				Served:     served,
				QueueStart: start,
				QueueEnd:   queue,
				MaxQueue:   start + arrivalRate*redTime,
			}
			if arrivals > 0 {
				rec.Delay = (start + queue) / 2 * cycle / arrivals
			}

			if !yield(rec) {
				return
			}
		}
	}
}

// EvolutionSummary aggregates a cycle sequence
type EvolutionSummary struct {
	AvgQueueLength  float64 `json:"avg_queue_length"`
	MaxQueueLength  float64 `json:"max_queue_length"`
	AvgDelay        float64 `json:"avg_delay"`
	TotalThroughput float64 `json:"total_throughput"`
	Cycles          int     `json:"cycles"`
}

// Summarize reduces a cycle sequence to aggregate performance figures.
// An empty sequence yields the zero summary.
func Summarize(seq iter.Seq[CycleRecord]) EvolutionSummary {
	var s EvolutionSummary
	var queueSum, delaySum float64

	for rec := range seq {
		queueSum += rec.QueueEnd
		delaySum += rec.Delay
		s.TotalThroughput += rec.Served
		if s.Cycles == 0 || rec.MaxQueue > s.MaxQueueLength {
			s.MaxQueueLength = rec.MaxQueue
		}
		s.Cycles++
	}

	if s.Cycles > 0 {
		s.AvgQueueLength = queueSum / float64(s.Cycles)
		s.AvgDelay = delaySum / float64(s.Cycles)
	}
	return s
}
