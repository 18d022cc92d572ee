package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/signaltiming-optimizer/internal/common/config"
	"github.com/signaltiming-optimizer/internal/common/db"
	"github.com/signaltiming-optimizer/internal/common/discord"
	"github.com/signaltiming-optimizer/internal/common/logger"
	"github.com/signaltiming-optimizer/internal/common/maintenance"
	"github.com/signaltiming-optimizer/internal/optimization"
	"github.com/signaltiming-optimizer/internal/optimization/evaluator"
	"github.com/signaltiming-optimizer/internal/optimization/genetic"
	"github.com/signaltiming-optimizer/internal/report"
	"github.com/signaltiming-optimizer/internal/simulation/simulator"
)

func main() {
	// .env is optional; the environment and SIGNALOPT_CONFIG_FILE still apply
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	useStore := cfg.Database.Enabled
	flag.IntVar(&cfg.Optimization.Generations, "generations", cfg.Optimization.Generations, "number of GA generations")
	flag.IntVar(&cfg.Optimization.PopulationSize, "population", cfg.Optimization.PopulationSize, "GA population size")
	flag.Float64Var(&cfg.Optimization.MutationRate, "mutation", cfg.Optimization.MutationRate, "GA mutation rate")
	flag.StringVar(&cfg.Export.Path, "export", cfg.Export.Path, "write the run report to `FILE` (.json, .msgpack or .mpk)")
	flag.BoolVar(&useStore, "store", useStore, "persist plans and results to PostgreSQL")
	flag.BoolVar(&cfg.Simulation.Analytic, "analytic", cfg.Simulation.Analytic, "score candidates with the queuing model instead of simulating")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "debug, info, warn or error")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLogLevel(cfg.Logging.Level)
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.FilePath != ""
	logCfg.FilePath = cfg.Logging.FilePath
	log := logger.NewFromConfig(logCfg)

	log.Info("Signal timing optimizer starting",
		"intersection_id", cfg.Intersection.ID,
		"log_level", cfg.Logging.Level,
		"store", useStore,
		"export", cfg.Export.Path)

	notifier := discord.NewClient(cfg.Notify.DiscordURL, cfg.Notify.Timeout)

	var sinks optimization.Sinks
	if notifier.Enabled() {
		sinks.Notifier = notifier
	}
	if cfg.Export.Path != "" {
		if _, err := report.FormatFor(cfg.Export.Path); err != nil {
			log.Fatal("Invalid export path", "error", err)
		}
		sinks.Exporter = report.Exporter{Path: cfg.Export.Path}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup *maintenance.Maintenance
	if useStore {
		if err := cfg.Database.Validate(); err != nil {
			log.Fatal("Invalid database configuration", "error", err)
		}

		database, err := db.New(cfg.Database.ConnectionString(), log)
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		defer database.Close()

		store := db.NewPlanStore(database)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to prepare database schema", "error", err)
		}
		sinks.Store = store
		cleanup = maintenance.New(database, log)
	}

	manager := optimization.NewManager(sinks, log)
	rep, err := manager.Run(ctx, requestFromConfig(cfg))
	if err != nil {
		if notifier.Enabled() {
			if sendErr := notifier.SendLogMessage("ERROR", "Optimization run failed", map[string]interface{}{
				"intersection_id": cfg.Intersection.ID,
				"error":           err.Error(),
			}); sendErr != nil {
				log.Warn("Failed to send failure alert", "error", sendErr)
			}
		}
		if rep == nil {
			log.Fatal("Optimization failed", "error", err)
		}
		log.Error("Optimization finished but delivering the report failed", "error", err)
	}

	if cleanup != nil && err == nil {
		if _, pruneErr := cleanup.PruneInactiveTimings(ctx, cfg.Intersection.ID, cfg.Database.KeepInactivePlans); pruneErr != nil {
			log.Warn("Failed to prune old signal timings", "error", pruneErr)
		}
	}

	printResults(os.Stdout, rep)
	if cfg.Export.Path != "" && err == nil {
		fmt.Printf("Results exported to %s\n", cfg.Export.Path)
	}
	if err != nil {
		os.Exit(1)
	}
}

func requestFromConfig(cfg *config.Config) optimization.Request {
	opt := cfg.Optimization
	return optimization.Request{
		IntersectionID:   cfg.Intersection.ID,
		IntersectionName: cfg.Intersection.Name,
		Baseline:         cfg.Intersection.Baseline,
		Demand: evaluator.Demand{
			Volumes:  cfg.Intersection.Volumes,
			Duration: cfg.Simulation.Duration,
		},
		Simulation: simulator.Config{
			SaturationFlowRate: cfg.Simulation.SaturationFlowRate,
			Seed:               cfg.Simulation.Seed,
		},
		Genetic: genetic.Config{
			PopulationSize: opt.PopulationSize,
			Generations:    opt.Generations,
			MutationRate:   opt.MutationRate,
			CrossoverRate:  opt.CrossoverRate,
			EliteCount:     opt.EliteCount,
			Seed:           opt.Seed,
		},
		Weights:  opt.Weights.Normalize(),
		Analytic: cfg.Simulation.Analytic,
	}
}

func printResults(w io.Writer, rep *report.Report) {
	rule := strings.Repeat("=", 60)
	base, opt := rep.BaselineResults, rep.OptimizedResults

	fmt.Fprintf(w, "\n%s\nOPTIMIZATION RESULTS (%s)\n%s\n", rule, rep.IntersectionID, rule)
	fmt.Fprintf(w, "\nBaseline Cycle Length:  %ds\n", rep.BaselineTiming.CycleLength)
	fmt.Fprintf(w, "Optimized Cycle Length: %ds\n", rep.OptimizedTiming.CycleLength)
	fmt.Fprintf(w, "Optimized Greens (N/S/E/W): %.1f / %.1f / %.1f / %.1f s\n",
		rep.OptimizedTiming.GreenNorth, rep.OptimizedTiming.GreenSouth,
		rep.OptimizedTiming.GreenEast, rep.OptimizedTiming.GreenWest)
	fmt.Fprintf(w, "\nBaseline Throughput:  %.1f veh/hr\n", base.Throughput)
	fmt.Fprintf(w, "Optimized Throughput: %.1f veh/hr\n", opt.Throughput)
	fmt.Fprintf(w, "\nBaseline Delay:  %.2fs\n", base.AvgDelay)
	fmt.Fprintf(w, "Optimized Delay: %.2fs\n", opt.AvgDelay)
	fmt.Fprintf(w, "\nLevel of Service: %s\n", opt.LevelOfService)
	fmt.Fprintf(w, "Fitness change: %+.2f%%\n", rep.Comparison.OverallFitness.ImprovementPercent)
	fmt.Fprintf(w, "Run ID: %s\n%s\n\n", rep.RunID, rule)
}
