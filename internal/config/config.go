package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. A YAML file sets the
// baseline and environment variables override the operational knobs,
// matching how the service is deployed.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`

	MatrixFile   string `yaml:"matrixFile"`
	ArrivalsFile string `yaml:"arrivalsFile"`
	DayOfYear    int    `yaml:"dayOfYear"`

	Fleet     Fleet     `yaml:"fleet"`
	Assign    Assign    `yaml:"assign"`
	ALNS      ALNS      `yaml:"alns"`
	Batch     Batch     `yaml:"batch"`
	Optimizer Optimizer `yaml:"optimizer"`
	Travel    Travel    `yaml:"travel"`
}

type Fleet struct {
	NumVehicles       int     `yaml:"numVehicles"`
	VehicleCapacity   int     `yaml:"vehicleCapacity"`
	MaxRouteMinutes   float64 `yaml:"maxRouteMinutes"`
	FixedCostPerTruck float64 `yaml:"fixedCostPerTruck"`
	VariableCostPerKm float64 `yaml:"variableCostPerKm"`
}

type Assign struct {
	TabuIterations       int     `yaml:"tabuIterations"`
	TabuTenure           int     `yaml:"tabuTenure"`
	ImprovementThreshold float64 `yaml:"improvementThreshold"`
}

type ALNS struct {
	Iterations         int     `yaml:"iterations"`
	SegmentLength      int     `yaml:"segmentLength"`
	ReactionFactor     float64 `yaml:"reactionFactor"`
	TempStart          float64 `yaml:"tempStart"`
	TempEnd            float64 `yaml:"tempEnd"`
	Cooling            float64 `yaml:"cooling"`
	DestroyMinPct      float64 `yaml:"destroyMinPct"`
	DestroyMaxPct      float64 `yaml:"destroyMaxPct"`
	ScoreNewBest       float64 `yaml:"scoreNewBest"`
	ScoreBetter        float64 `yaml:"scoreBetter"`
	ScoreWorseAccepted float64 `yaml:"scoreWorseAccepted"`
	UnassignedPenalty  float64 `yaml:"unassignedPenalty"`
}

type Batch struct {
	SolverURL  string   `yaml:"solverUrl"`
	Timeout    Duration `yaml:"timeout"`
	CycleEvery Duration `yaml:"cycleEvery"`
}

// Duration parses YAML strings like "30s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Optimizer struct {
	Seed int64 `yaml:"seed"`
}

type Travel struct {
	ServiceURL string  `yaml:"serviceUrl"`
	RPS        float64 `yaml:"rps"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Port:      "8080",
		DayOfYear: 1,
		Fleet: Fleet{
			NumVehicles:       12,
			VehicleCapacity:   20,
			MaxRouteMinutes:   200,
			FixedCostPerTruck: 5000,
			VariableCostPerKm: 15,
		},
		Assign: Assign{
			TabuIterations:       50,
			TabuTenure:           7,
			ImprovementThreshold: 0.1,
		},
		ALNS: ALNS{
			Iterations:         1500,
			SegmentLength:      100,
			ReactionFactor:     0.2,
			TempStart:          1000,
			TempEnd:            1,
			Cooling:            0.9975,
			DestroyMinPct:      0.15,
			DestroyMaxPct:      0.4,
			ScoreNewBest:       33,
			ScoreBetter:        9,
			ScoreWorseAccepted: 13,
			UnassignedPenalty:  2,
		},
		Batch: Batch{
			Timeout:    Duration(30 * time.Second),
			CycleEvery: Duration(time.Minute),
		},
		Travel: Travel{RPS: 10},
	}
}

// Load reads the optional YAML file at path (empty path skips it),
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr(&c.Port, "PORT")
	envStr(&c.DatabaseURL, "DATABASE_URL")
	envStr(&c.RedisURL, "REDIS_URL")
	envStr(&c.Batch.SolverURL, "SOLVER_URL")
	envStr(&c.MatrixFile, "MATRIX_FILE")
	envStr(&c.ArrivalsFile, "ARRIVALS_FILE")
	envStr(&c.Travel.ServiceURL, "TRAVEL_SERVICE_URL")
	envInt(&c.DayOfYear, "DAY_OF_YEAR")
	envInt(&c.Fleet.NumVehicles, "NUM_VEHICLES")
	envDur(&c.Batch.CycleEvery, "CYCLE_EVERY")
	envI64(&c.Optimizer.Seed, "SEED")
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envI64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envDur(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func (c Config) validate() error {
	if c.Fleet.NumVehicles <= 0 {
		return fmt.Errorf("config: numVehicles must be positive")
	}
	if c.Fleet.VehicleCapacity <= 0 {
		return fmt.Errorf("config: vehicleCapacity must be positive")
	}
	if c.Fleet.MaxRouteMinutes <= 0 {
		return fmt.Errorf("config: maxRouteMinutes must be positive")
	}
	if c.ALNS.DestroyMinPct <= 0 || c.ALNS.DestroyMaxPct < c.ALNS.DestroyMinPct || c.ALNS.DestroyMaxPct > 1 {
		return fmt.Errorf("config: destroy range [%v,%v] invalid", c.ALNS.DestroyMinPct, c.ALNS.DestroyMaxPct)
	}
	if c.ALNS.Cooling <= 0 || c.ALNS.Cooling >= 1 {
		return fmt.Errorf("config: cooling must be in (0,1)")
	}
	if c.Batch.CycleEvery <= 0 {
		return fmt.Errorf("config: cycleEvery must be positive")
	}
	return nil
}
