// Package simulator plays a discrete-event timeline of vehicle arrivals and
// signal changes at a two-phase intersection.
package simulator

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signaltiming-optimizer/internal/common/logger"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

// DefaultDuration is the default simulated time in seconds
const DefaultDuration = 3600.0

// Config holds simulator settings
type Config struct {
	SaturationFlowRate float64 // vehicles per hour per lane
	Seed               uint64
}

// DefaultConfig uses a saturation flow of 1800 veh/h and seed 42
func DefaultConfig() Config {
	return Config{
		SaturationFlowRate: 1800,
		Seed:               42,
	}
}

// ServiceRate converts the saturation flow to vehicles per second
func (c Config) ServiceRate() float64 {
	return c.SaturationFlowRate / 3600
}

// Simulator runs fixed-time simulations of a single intersection.
// It owns its random source; runs on the same Simulator continue the stream.
type Simulator struct {
	timing      models.SignalTiming
	serviceRate float64
	rng         *rand.Rand
	logger      logger.Logger

	state          IntersectionState
	vehicleCounter int
}

// New creates a simulator for a timing plan
func New(timing models.SignalTiming, cfg Config, log logger.Logger) *Simulator {
	if log == nil {
		log = logger.Nop()
	}
	return &Simulator{
		timing:      timing,
		serviceRate: cfg.ServiceRate(),
		rng:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
		logger:      log,
		state:       newIntersectionState(),
	}
}

// Timing returns the plan being simulated
func (s *Simulator) Timing() models.SignalTiming {
	return s.timing
}

// RunSimulation simulates duration seconds of traffic with the given hourly
// volumes and returns aggregate metrics. No state survives across runs
// except the random stream.
func (s *Simulator) RunSimulation(volumes models.Volumes, duration float64) models.SimulationResult {
	s.logger.Debug("Starting simulation", "duration", duration, "cycle_length", s.timing.CycleLength)

	s.state = newIntersectionState()
	s.vehicleCounter = 0

	events := s.generateArrivals(volumes, duration)
	events = append(events, s.generateSignalChanges(duration)...)

	slices.SortStableFunc(events, func(a, b event) int {
		return cmp.Compare(a.time, b.time)
	})

	for _, ev := range events {
		s.state.CurrentTime = ev.time

		switch ev.kind {
		case eventArrival:
			s.handleArrival(ev.vehicle)
		case eventSignalChange:
			s.handleSignalChange()
		}
	}

	result := s.calculateMetrics()

	s.logger.Debug("Simulation complete",
		"arrivals", s.vehicleCounter,
		"processed", result.TotalVehiclesProcessed,
		"avg_delay", result.AvgDelay)

	return result
}

// QueueSnapshot returns the queue length of every approach as left by the last run
func (s *Simulator) QueueSnapshot() map[models.Direction]int {
	out := make(map[models.Direction]int, len(s.state.Queues))
	for d, q := range s.state.Queues {
		out[d] = len(q)
	}
	return out
}

// generateArrivals draws Poisson arrivals for every approach with traffic
func (s *Simulator) generateArrivals(volumes models.Volumes, duration float64) []event {
	var events []event

	for _, direction := range models.Directions {
		hourly := volumes[direction]
		if hourly <= 0 {
			continue
		}

		gaps := distuv.Exponential{Rate: hourly / 3600, Src: s.rng}

		t := 0.0
		for t < duration {
			t += gaps.Rand()
			if t >= duration {
				break
			}

			v := &Vehicle{
				ID:          s.vehicleCounter,
				ArrivalTime: t,
				Direction:   direction,
			}
			s.vehicleCounter++
			events = append(events, event{time: t, kind: eventArrival, vehicle: v})
		}
	}

	return events
}

// generateSignalChanges schedules phase changes from t=0, spaced alternately
// by the NS green and the EW green
func (s *Simulator) generateSignalChanges(duration float64) []event {
	nsGreen := s.timing.PhaseGreen(models.PhaseNS)
	ewGreen := s.timing.PhaseGreen(models.PhaseEW)

	var events []event
	t := 0.0
	for t < duration {
		events = append(events, event{time: t, kind: eventSignalChange})
		t += nsGreen

		events = append(events, event{time: t, kind: eventSignalChange})
		t += ewGreen

		// a plan without positive green can never reach the horizon
		if nsGreen+ewGreen <= 0 {
			break
		}
	}

	return events
}

func (s *Simulator) handleArrival(v *Vehicle) {
	q, ok := s.state.Queues[v.Direction]
	if !ok {
		return
	}
	s.state.Queues[v.Direction] = append(q, v)

	s.serveVehicles()
}

// handleSignalChange flips the active phase. The run starts in NS, so the
// change at t=0 gives EW the first green.
func (s *Simulator) handleSignalChange() {
	s.state.CurrentPhase = s.state.CurrentPhase.Next()
	s.state.PhaseStartTime = s.state.CurrentTime

	s.serveVehicles()
}

// serveVehicles discharges queued vehicles of the active phase within the
// residual green
func (s *Simulator) serveVehicles() {
	phase := s.state.CurrentPhase
	elapsed := s.state.CurrentTime - s.state.PhaseStartTime
	remaining := math.Max(0, s.timing.PhaseGreen(phase)-elapsed)
	if remaining <= 0 {
		return
	}

	capacity := int(math.Floor(s.serviceRate * remaining))

	for _, d := range phase.Directions() {
		q := s.state.Queues[d]
		n := min(len(q), capacity)

		for _, v := range q[:n] {
			v.DepartureTime = s.state.CurrentTime
			v.Delay = v.DepartureTime - v.ArrivalTime
			s.state.Processed = append(s.state.Processed, v)
		}
		s.state.Queues[d] = q[n:]
	}
}
