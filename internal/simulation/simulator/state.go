package simulator

import "github.com/signaltiming-optimizer/pkg/signal/models"

// Vehicle is a single arrival. It belongs to the run that created it and is
// stamped once when it is served.
type Vehicle struct {
	ID            int
	ArrivalTime   float64
	Direction     models.Direction
	DepartureTime float64
	Delay         float64
	Stops         int
}

// IntersectionState is the mutable state of one simulation run
type IntersectionState struct {
	CurrentTime    float64
	CurrentPhase   models.Phase
	PhaseStartTime float64
	Queues         map[models.Direction][]*Vehicle
	Processed      []*Vehicle
}

func newIntersectionState() IntersectionState {
	queues := make(map[models.Direction][]*Vehicle, len(models.Directions))
	for _, d := range models.Directions {
		queues[d] = nil
	}
	return IntersectionState{
		CurrentPhase: models.PhaseNS,
		Queues:       queues,
	}
}

type eventKind int

const (
	eventArrival eventKind = iota
	eventSignalChange
)

type event struct {
	time    float64
	kind    eventKind
	vehicle *Vehicle
}
