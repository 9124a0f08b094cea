// Package config loads and validates mission simulation settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix is prepended to environment overrides, e.g. MISSION_NODES or
// MISSION_HAZARDS_MAX_DELAY.
const EnvPrefix = "MISSION"

// Config is the full mission scenario.
type Config struct {
	// Nodes is the size of the generated topology.
	Nodes int `mapstructure:"nodes" validate:"gte=1"`
	// Origin is the node every route starts from.
	Origin int `mapstructure:"origin" validate:"gte=0"`
	// Seed drives every random source. Zero picks a time-derived seed.
	Seed uint64 `mapstructure:"seed"`

	Topology  TopologyConfig  `mapstructure:"topology"`
	Hazards   HazardConfig    `mapstructure:"hazards"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Mission   MissionConfig   `mapstructure:"mission"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type TopologyConfig struct {
	EdgeProbability float64 `mapstructure:"edge_probability" validate:"gte=0,lte=1"`
}

type HazardConfig struct {
	ObstacleProbability float64 `mapstructure:"obstacle_probability" validate:"gte=0,lte=1"`
	MaxDelay            float64 `mapstructure:"max_delay" validate:"gte=1"`
	CharacterizeTrials  int     `mapstructure:"characterize_trials" validate:"gte=0"`
}

type TelemetryConfig struct {
	// CorruptionProbability is the chance a position report has one bit flipped.
	CorruptionProbability float64 `mapstructure:"corruption_probability" validate:"gte=0,lte=1"`
}

type RoutingConfig struct {
	Alternatives int    `mapstructure:"alternatives" validate:"gte=1"`
	SearchDepth  int    `mapstructure:"search_depth" validate:"gte=1"`
	Strategy     string `mapstructure:"strategy" validate:"oneof=single-ply hazard-adversarial"`
}

type MissionConfig struct {
	// DelayUnit is the pause for a blocked hop with delay factor 1.0.
	DelayUnit time.Duration `mapstructure:"delay_unit" validate:"gte=0"`
	Tasks     []TaskConfig  `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Target      int    `mapstructure:"target" validate:"gte=0"`
	Priority    int    `mapstructure:"priority"`
	Description string `mapstructure:"description" validate:"required"`
}

// TracingConfig maps onto MISSION_TRACING_* variables, e.g.
// MISSION_TRACING_ENABLED=true MISSION_TRACING_EXPORTER=otlp.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter" validate:"oneof=stdout otlp"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name" validate:"required"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// DefaultTasks mirrors the demo mission: a casualty rescue, a supply drop and
// a survey, in descending urgency.
func DefaultTasks() []TaskConfig {
	return []TaskConfig{
		{Target: 3, Priority: 1, Description: "Emergency: casualty extraction"},
		{Target: 7, Priority: 2, Description: "Supply delivery"},
		{Target: 5, Priority: 3, Description: "Area reconnaissance"},
	}
}

// Default returns a Config with the documented defaults.
func Default() Config {
	return Config{
		Nodes:  10,
		Origin: 0,
		Topology: TopologyConfig{
			EdgeProbability: 0.3,
		},
		Hazards: HazardConfig{
			ObstacleProbability: 0.3,
			MaxDelay:            2.0,
			CharacterizeTrials:  1000,
		},
		Telemetry: TelemetryConfig{
			CorruptionProbability: 0.2,
		},
		Routing: RoutingConfig{
			Alternatives: 2,
			SearchDepth:  3,
			Strategy:     "single-ply",
		},
		Mission: MissionConfig{
			DelayUnit: time.Second,
			Tasks:     DefaultTasks(),
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "mission-sim",
			SampleRatio: 1.0,
		},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("nodes", d.Nodes)
	v.SetDefault("origin", d.Origin)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("topology.edge_probability", d.Topology.EdgeProbability)
	v.SetDefault("hazards.obstacle_probability", d.Hazards.ObstacleProbability)
	v.SetDefault("hazards.max_delay", d.Hazards.MaxDelay)
	v.SetDefault("hazards.characterize_trials", d.Hazards.CharacterizeTrials)
	v.SetDefault("telemetry.corruption_probability", d.Telemetry.CorruptionProbability)
	v.SetDefault("routing.alternatives", d.Routing.Alternatives)
	v.SetDefault("routing.search_depth", d.Routing.SearchDepth)
	v.SetDefault("routing.strategy", d.Routing.Strategy)
	v.SetDefault("mission.delay_unit", d.Mission.DelayUnit)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)
}

// Load reads an optional scenario file (YAML, JSON or TOML by extension),
// applies MISSION_* environment overrides and validates the result. An empty
// path yields the defaults plus environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if !v.IsSet("mission.tasks") {
		cfg.Mission.Tasks = DefaultTasks()
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field constraints.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, formatValidationError(e))
		}
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(msgs, "\n  - "))
	}

	var msgs []string
	if cfg.Origin >= cfg.Nodes {
		msgs = append(msgs, fmt.Sprintf("origin %d must be below nodes (%d)", cfg.Origin, cfg.Nodes))
	}
	for i, task := range cfg.Mission.Tasks {
		if task.Target >= cfg.Nodes {
			msgs = append(msgs, fmt.Sprintf("mission.tasks[%d].target %d must be below nodes (%d)", i, task.Target, cfg.Nodes))
		}
		if strings.TrimSpace(task.Description) == "" {
			msgs = append(msgs, fmt.Sprintf("mission.tasks[%d].description must not be blank", i))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(msgs, "\n  - "))
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s (got: %v)", field, e.Param(), e.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s (got: %v)", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation (got: %v)", field, e.Tag(), e.Value())
	}
}
