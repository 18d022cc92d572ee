// Package genetic searches for fixed-time signal plans with a genetic
// algorithm. Every random draw comes from a single seeded source owned by the
// Algorithm, so identical inputs reproduce identical trajectories.
package genetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signaltiming-optimizer/internal/common/logger"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

const (
	tournamentSize  = 3
	swapProbability = 0.5
	mutationSpread  = 0.1 // std dev as a share of the parameter range
	progressEvery   = 10
)

// Algorithm evolves a population of signal plans
type Algorithm struct {
	config Config
	logger logger.Logger

	rng        *rand.Rand
	population []Individual
	best       Individual
	history    []float64
	done       bool
}

// New validates cfg and creates an algorithm
func New(cfg Config, log logger.Logger) (*Algorithm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Algorithm{
		config: cfg,
		logger: log,
	}, nil
}

// Config returns the hyperparameters the algorithm was built with
func (a *Algorithm) Config() Config {
	return a.config
}

// Optimize evolves plans starting from initial for exactly the configured
// number of generations and returns the best plan found. The random source
// is reseeded on every call.
func (a *Algorithm) Optimize(initial models.SignalTiming, eval Evaluator, constraints models.Constraints) (models.SignalTiming, models.OptimizationSummary, error) {
	if constraints == nil {
		constraints = models.DefaultConstraints()
	}

	a.rng = rand.New(rand.NewPCG(a.config.Seed, a.config.Seed))
	a.history = make([]float64, 0, a.config.Generations)
	a.done = false

	a.logger.Info("Starting GA optimization",
		"population_size", a.config.PopulationSize,
		"generations", a.config.Generations,
		"seed", a.config.Seed)

	a.population = a.initializePopulation(initial, constraints)
	if err := a.evaluate(eval, a.population, 0); err != nil {
		return models.SignalTiming{}, models.OptimizationSummary{}, err
	}

	for gen := 1; gen <= a.config.Generations; gen++ {
		parents := a.selection()
		offspring := a.reproduce(parents, constraints)
		elite := a.elite()

		next := make([]Individual, 0, len(elite)+len(offspring))
		next = append(next, elite...)
		next = append(next, offspring...)
		if len(next) > a.config.PopulationSize {
			next = next[:a.config.PopulationSize]
		}

		// only offspring are scored, elites carry their fitness over
		if err := a.evaluate(eval, next[len(elite):], gen); err != nil {
			return models.SignalTiming{}, models.OptimizationSummary{}, err
		}

		a.population = next
		a.best = fittest(a.population)
		a.history = append(a.history, a.best.Fitness)

		if gen%progressEvery == 0 {
			a.logger.Info("Generation complete",
				"generation", gen,
				"generations", a.config.Generations,
				"best_fitness", a.best.Fitness)
		}
	}

	summary := models.OptimizationSummary{
		BestFitness:         a.best.Fitness,
		FitnessHistory:      slices.Clone(a.history),
		Generations:         a.config.Generations,
		FinalPopulationSize: len(a.population),
		SimulationResults:   a.best.Result,
	}

	a.done = true
	a.logger.Info("Optimization complete",
		"best_fitness", a.best.Fitness,
		"cycle_length", a.best.Timing.CycleLength)

	return a.best.Timing, summary, nil
}

// initializePopulation seeds the population with the initial plan and random
// normalized plans drawn within the constraints
func (a *Algorithm) initializePopulation(initial models.SignalTiming, constraints models.Constraints) []Individual {
	population := make([]Individual, 0, a.config.PopulationSize)
	population = append(population, Individual{Timing: initial})

	cycleMin, cycleMax := cycleRange(constraints.Get(models.ParamCycleLength))

	for len(population) < a.config.PopulationSize {
		timing := initial.WithCycle(cycleMin + a.rng.IntN(cycleMax-cycleMin+1))

		for _, d := range models.Directions {
			b := constraints.Get(greenParam(d))
			timing = timing.WithGreen(d, b.Min+a.rng.Float64()*b.Span())
		}

		population = append(population, Individual{Timing: timing.Normalized()})
	}

	return population
}

func (a *Algorithm) evaluate(eval Evaluator, individuals []Individual, generation int) error {
	for i := range individuals {
		fitness, result, err := eval.Score(individuals[i].Timing)
		if err != nil {
			return fmt.Errorf("evaluating individual %d of generation %d: %w", i, generation, err)
		}
		individuals[i].Fitness = fitness
		individuals[i].Result = result
	}
	return nil
}

// selection fills a parent pool by tournament. Each tournament draws distinct
// contestants; contestants may win again in later tournaments.
func (a *Algorithm) selection() []Individual {
	size := min(tournamentSize, len(a.population))
	parents := make([]Individual, 0, a.config.PopulationSize)

	for len(parents) < a.config.PopulationSize {
		contestants := a.rng.Perm(len(a.population))[:size]

		winner := a.population[contestants[0]]
		for _, idx := range contestants[1:] {
			if a.population[idx].Fitness > winner.Fitness {
				winner = a.population[idx]
			}
		}
		parents = append(parents, winner)
	}

	return parents
}

// reproduce pairs consecutive parents, recombines and mutates them. An odd
// trailing parent is passed on alone and may still mutate.
func (a *Algorithm) reproduce(parents []Individual, constraints models.Constraints) []Individual {
	offspring := make([]Individual, 0, len(parents))

	for i := 0; i+1 < len(parents); i += 2 {
		c1, c2 := parents[i].Timing, parents[i+1].Timing

		if a.rng.Float64() < a.config.CrossoverRate {
			c1, c2 = a.crossover(c1, c2)
		}
		c1 = a.maybeMutate(c1, constraints)
		c2 = a.maybeMutate(c2, constraints)

		offspring = append(offspring, Individual{Timing: c1}, Individual{Timing: c2})
	}

	if len(parents)%2 == 1 {
		last := a.maybeMutate(parents[len(parents)-1].Timing, constraints)
		offspring = append(offspring, Individual{Timing: last})
	}

	return offspring
}

func (a *Algorithm) maybeMutate(t models.SignalTiming, constraints models.Constraints) models.SignalTiming {
	if a.rng.Float64() < a.config.MutationRate {
		return a.mutate(t, constraints)
	}
	return t
}

// crossover swaps each parameter between the two plans with even odds
func (a *Algorithm) crossover(p1, p2 models.SignalTiming) (models.SignalTiming, models.SignalTiming) {
	c1, c2 := p1, p2

	for _, param := range models.Parameters {
		if a.rng.Float64() < swapProbability {
			c1 = c1.WithValue(param, p2.Value(param))
			c2 = c2.WithValue(param, p1.Value(param))
		}
	}

	return c1.Normalized(), c2.Normalized()
}

// mutate applies clipped Gaussian noise to one randomly chosen parameter
func (a *Algorithm) mutate(t models.SignalTiming, constraints models.Constraints) models.SignalTiming {
	param := models.Parameters[a.rng.IntN(len(models.Parameters))]
	b := constraints.Get(param)

	noise := distuv.Normal{Mu: 0, Sigma: mutationSpread * b.Span(), Src: a.rng}
	value := b.Clip(t.Value(param) + noise.Rand())

	if param == models.ParamCycleLength {
		lo, hi := cycleRange(b)
		return t.WithCycle(min(max(int(math.Round(value)), lo), hi)).Normalized()
	}

	return t.WithValue(param, value).Normalized()
}

// elite returns the best individuals of the current population, best first
func (a *Algorithm) elite() []Individual {
	if a.config.EliteCount == 0 {
		return nil
	}

	ranked := slices.Clone(a.population)
	slices.SortStableFunc(ranked, func(x, y Individual) int {
		switch {
		case x.Fitness > y.Fitness:
			return -1
		case x.Fitness < y.Fitness:
			return 1
		}
		return 0
	})

	return ranked[:min(a.config.EliteCount, len(ranked))]
}

func fittest(population []Individual) Individual {
	best := population[0]
	for _, ind := range population[1:] {
		if ind.Fitness > best.Fitness {
			best = ind
		}
	}
	return best
}

// cycleRange is the whole-second span of the cycle bounds
func cycleRange(b models.Bounds) (int, int) {
	lo, hi := int(math.Ceil(b.Min)), int(math.Floor(b.Max))
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func greenParam(d models.Direction) models.Parameter {
	switch d {
	case models.North:
		return models.ParamGreenNorth
	case models.South:
		return models.ParamGreenSouth
	case models.East:
		return models.ParamGreenEast
	}
	return models.ParamGreenWest
}
