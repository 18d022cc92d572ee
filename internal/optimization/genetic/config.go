package genetic

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by New and Validate for unusable hyperparameters
var ErrInvalidConfig = errors.New("invalid genetic algorithm configuration")

// Config holds the genetic algorithm hyperparameters
type Config struct {
	// PopulationSize is the number of plans kept in every generation
	PopulationSize int
	// Generations is the exact number of generations evolved
	Generations int
	// MutationRate is the chance (0-1) that a child is mutated
	MutationRate float64
	// CrossoverRate is the chance (0-1) that a parent pair is recombined
	CrossoverRate float64
	// EliteCount is the number of best plans carried over unchanged
	EliteCount int
	// Seed drives every random draw of the search
	Seed uint64
}

// DefaultConfig returns 50 plans evolved over 100 generations
func DefaultConfig() Config {
	return Config{
		PopulationSize: 50,
		Generations:    100,
		MutationRate:   0.1,
		CrossoverRate:  0.8,
		EliteCount:     2,
		Seed:           42,
	}
}

// Validate reports the first unusable hyperparameter
func (c Config) Validate() error {
	switch {
	case c.PopulationSize <= 0:
		return fmt.Errorf("%w: population size must be positive, got %d", ErrInvalidConfig, c.PopulationSize)
	case c.Generations <= 0:
		return fmt.Errorf("%w: generations must be positive, got %d", ErrInvalidConfig, c.Generations)
	case c.MutationRate < 0 || c.MutationRate > 1:
		return fmt.Errorf("%w: mutation rate must be in [0,1], got %v", ErrInvalidConfig, c.MutationRate)
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return fmt.Errorf("%w: crossover rate must be in [0,1], got %v", ErrInvalidConfig, c.CrossoverRate)
	case c.EliteCount < 0 || c.EliteCount > c.PopulationSize:
		return fmt.Errorf("%w: elite count must be in [0,%d], got %d", ErrInvalidConfig, c.PopulationSize, c.EliteCount)
	}
	return nil
}
