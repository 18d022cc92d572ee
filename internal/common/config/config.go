package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/signaltiming-optimizer/internal/optimization/fitness"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// FileEnv names the optional TOML file layered under the environment
const FileEnv = "SIGNALOPT_CONFIG_FILE"

type Config struct {
	Database     DatabaseConfig     `toml:"database"`
	Simulation   SimulationConfig   `toml:"simulation"`
	Optimization OptimizationConfig `toml:"optimization"`
	Intersection IntersectionConfig `toml:"intersection"`
	Logging      LoggingConfig      `toml:"logging"`
	Notify       NotifyConfig       `toml:"notify"`
	Export       ExportConfig       `toml:"export"`
}

type DatabaseConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`

	// KeepInactivePlans is how many superseded plans per intersection survive cleanup
	KeepInactivePlans int `toml:"keep_inactive_plans"`
}

// SimulationConfig drives the discrete-event simulator
type SimulationConfig struct {
	Duration           float64 `toml:"duration"`             // seconds
	SaturationFlowRate float64 `toml:"saturation_flow_rate"` // veh/hour/lane
	Seed               uint64  `toml:"seed"`
	Analytic           bool    `toml:"analytic"`
}

// OptimizationConfig holds the genetic search hyperparameters and fitness weights
type OptimizationConfig struct {
	PopulationSize int             `toml:"population_size"`
	Generations    int             `toml:"generations"`
	MutationRate   float64         `toml:"mutation_rate"`
	CrossoverRate  float64         `toml:"crossover_rate"`
	EliteCount     int             `toml:"elite_count"`
	Seed           uint64          `toml:"seed"`
	Weights        fitness.Weights `toml:"weights"`
}

type IntersectionConfig struct {
	ID       string              `toml:"id"`
	Name     string              `toml:"name"`
	Baseline models.SignalTiming `toml:"baseline"`
	Volumes  models.Volumes      `toml:"volumes"`
}

type LoggingConfig struct {
	Level    string `toml:"level"`
	FilePath string `toml:"file_path"`
	Console  bool   `toml:"console"`
}

// NotifyConfig for run summaries posted to a Discord webhook
type NotifyConfig struct {
	DiscordURL string        `toml:"discord_url"`
	Timeout    time.Duration `toml:"timeout"`
}

type ExportConfig struct {
	Path string `toml:"path"` // .json, .msgpack or .mpk; empty disables export
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "signalopt",
			SSLMode: "disable",

			KeepInactivePlans: 10,
		},
		Simulation: SimulationConfig{
			Duration:           3600,
			SaturationFlowRate: 1800,
			Seed:               42,
		},
		Optimization: OptimizationConfig{
			PopulationSize: 50,
			Generations:    100,
			MutationRate:   0.1,
			CrossoverRate:  0.8,
			EliteCount:     2,
			Seed:           42,
			Weights:        fitness.DefaultWeights(),
		},
		Intersection: IntersectionConfig{
			ID:       "INT-001",
			Name:     "Main St & 1st Ave",
			Baseline: models.DefaultSignalTiming(),
			Volumes: models.Volumes{
				models.North: 600,
				models.South: 600,
				models.East:  400,
				models.West:  400,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "signalopt.log",
			Console:  true,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file named
// by SIGNALOPT_CONFIG_FILE, and finally the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.overlayEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile decodes the file over c. A volumes table in the file replaces
// the default volumes as a whole; approaches it leaves out carry no traffic.
func (c *Config) overlayFile(path string) error {
	defaults := c.Intersection.Volumes
	c.Intersection.Volumes = nil

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}
	if !md.IsDefined("intersection", "volumes") {
		c.Intersection.Volumes = defaults
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.Database.Enabled = getBoolEnv("DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.KeepInactivePlans = getIntEnv("DB_KEEP_INACTIVE_PLANS", c.Database.KeepInactivePlans)

	c.Simulation.Duration = getFloatEnv("SIM_DURATION", c.Simulation.Duration)
	c.Simulation.SaturationFlowRate = getFloatEnv("SIM_SATURATION_FLOW", c.Simulation.SaturationFlowRate)
	c.Simulation.Seed = getUintEnv("SIM_SEED", c.Simulation.Seed)
	c.Simulation.Analytic = getBoolEnv("SIM_ANALYTIC", c.Simulation.Analytic)

	c.Optimization.PopulationSize = getIntEnv("GA_POPULATION_SIZE", c.Optimization.PopulationSize)
	c.Optimization.Generations = getIntEnv("GA_GENERATIONS", c.Optimization.Generations)
	c.Optimization.MutationRate = getFloatEnv("GA_MUTATION_RATE", c.Optimization.MutationRate)
	c.Optimization.CrossoverRate = getFloatEnv("GA_CROSSOVER_RATE", c.Optimization.CrossoverRate)
	c.Optimization.EliteCount = getIntEnv("GA_ELITE_COUNT", c.Optimization.EliteCount)
	c.Optimization.Seed = getUintEnv("GA_SEED", c.Optimization.Seed)

	c.Intersection.ID = getEnv("INTERSECTION_ID", c.Intersection.ID)
	c.Intersection.Name = getEnv("INTERSECTION_NAME", c.Intersection.Name)
	if c.Intersection.Volumes == nil {
		c.Intersection.Volumes = models.Volumes{}
	}
	for _, d := range models.Directions {
		key := "VOLUME_" + string(d)
		if _, set := os.LookupEnv(key); set {
			c.Intersection.Volumes[d] = getFloatEnv(key, c.Intersection.Volumes[d])
		}
	}

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.FilePath = getEnv("LOG_FILE", c.Logging.FilePath)
	c.Logging.Console = getBoolEnv("LOG_CONSOLE", c.Logging.Console)

	c.Notify.DiscordURL = getEnv("DISCORD_WEBHOOK_URL", c.Notify.DiscordURL)
	c.Notify.Timeout = getDurationEnv("DISCORD_TIMEOUT", c.Notify.Timeout)

	c.Export.Path = getEnv("EXPORT_PATH", c.Export.Path)
}

// Validate checks the settings that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Simulation.Duration <= 0 {
		return fmt.Errorf("%w: simulation duration must be positive", ErrInvalidConfig)
	}
	if c.Simulation.SaturationFlowRate <= 0 {
		return fmt.Errorf("%w: saturation flow rate must be positive", ErrInvalidConfig)
	}
	if c.Intersection.ID == "" {
		return fmt.Errorf("%w: intersection id is required", ErrInvalidConfig)
	}
	if c.Intersection.Baseline.CycleLength <= 0 {
		return fmt.Errorf("%w: baseline cycle length must be positive", ErrInvalidConfig)
	}
	for d, v := range c.Intersection.Volumes {
		if v < 0 {
			return fmt.Errorf("%w: volume for %s is negative", ErrInvalidConfig, d)
		}
	}
	if c.Database.Enabled {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" || c.DBName == "" || c.User == "" {
		return fmt.Errorf("%w: database host, name and user are required", ErrInvalidConfig)
	}
	if c.KeepInactivePlans < 0 {
		return fmt.Errorf("%w: keep_inactive_plans must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getUintEnv(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if u, err := strconv.ParseUint(value, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
