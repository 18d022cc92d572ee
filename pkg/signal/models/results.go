package models

// DirectionMetrics is the per-approach breakdown of a simulation run
type DirectionMetrics struct {
	Throughput float64 `json:"throughput" msgpack:"throughput"`
	AvgDelay   float64 `json:"avg_delay" msgpack:"avg_delay"`
}

// SimulationResult aggregates the performance of one simulation run
type SimulationResult struct {
	Throughput             float64                        `json:"throughput" msgpack:"throughput"`
	AvgDelay               float64                        `json:"avg_delay" msgpack:"avg_delay"`
	MaxDelay               float64                        `json:"max_delay" msgpack:"max_delay"`
	AvgStops               float64                        `json:"avg_stops" msgpack:"avg_stops"`
	MaxQueueLength         float64                        `json:"max_queue_length" msgpack:"max_queue_length"`
	LevelOfService         string                         `json:"level_of_service" msgpack:"level_of_service"`
	TotalVehiclesProcessed int                            `json:"total_vehicles_processed" msgpack:"total_vehicles_processed"`
	DirectionMetrics       map[Direction]DirectionMetrics `json:"direction_metrics,omitempty" msgpack:"direction_metrics,omitempty"`
}

// OptimizationSummary describes a finished optimization
type OptimizationSummary struct {
	BestFitness         float64          `json:"best_fitness" msgpack:"best_fitness"`
	FitnessHistory      []float64        `json:"fitness_history" msgpack:"fitness_history"`
	Generations         int              `json:"generations" msgpack:"generations"`
	FinalPopulationSize int              `json:"final_population_size" msgpack:"final_population_size"`
	SimulationResults   SimulationResult `json:"simulation_results" msgpack:"simulation_results"`
}
