package mission

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/rescue-mission-sim/core"
	"github.com/signalsfoundry/rescue-mission-sim/internal/config"
	"github.com/signalsfoundry/rescue-mission-sim/internal/logging"
	"github.com/signalsfoundry/rescue-mission-sim/internal/routing"
	"github.com/signalsfoundry/rescue-mission-sim/internal/telemetry"
	"github.com/signalsfoundry/rescue-mission-sim/timectrl"
)

// Independent random streams derived from one seed, so that adding a draw in
// one component does not shift the others.
const (
	streamTopology uint64 = iota + 1
	streamHazards
	streamChannel
	streamMission
	streamCharacterize
)

// Simulation is a fully wired mission: random topology, hazard field,
// scheduler, route evaluator, telemetry channel and orchestrator.
type Simulation struct {
	Config       config.Config
	Seed         uint64
	Topology     *core.Topology
	Hazards      *core.HazardField
	Scheduler    *Scheduler
	Evaluator    *routing.Evaluator
	Codec        *telemetry.Codec
	Orchestrator *Orchestrator
}

// NewSimulation builds a Simulation from cfg. The clock stamps task
// timestamps and carries hazard pauses; nil uses the wall clock. opts are
// passed to the orchestrator after the config-derived options.
func NewSimulation(cfg config.Config, clock timectrl.Clock, opts ...Option) (*Simulation, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timectrl.RealClock{}
	}

	seed := resolveSeed(cfg.Seed)
	stream := func(id uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, id)) }

	topo := core.RandomTopology(cfg.Nodes, cfg.Topology.EdgeProbability, stream(streamTopology))

	hazards := core.NewHazardField(cfg.Nodes, stream(streamHazards))
	hazards.GenerateObstacles(cfg.Hazards.ObstacleProbability)
	hazards.GenerateDelays(cfg.Hazards.MaxDelay)

	evaluator, err := routing.NewEvaluator(cfg.Routing.Strategy, cfg.Routing.SearchDepth, hazards)
	if err != nil {
		return nil, fmt.Errorf("build route evaluator: %w", err)
	}

	codec := telemetry.NewCodec(stream(streamChannel))
	scheduler := NewScheduler(clock)

	base := []Option{
		WithOrigin(cfg.Origin),
		WithAlternatives(cfg.Routing.Alternatives),
		WithCorruptionProbability(cfg.Telemetry.CorruptionProbability),
		WithDelayUnit(cfg.Mission.DelayUnit),
		WithClock(clock),
		WithRand(stream(streamMission)),
	}
	orch := NewOrchestrator(topo, evaluator, hazards, codec, scheduler, append(base, opts...)...)

	return &Simulation{
		Config:       cfg,
		Seed:         seed,
		Topology:     topo,
		Hazards:      hazards,
		Scheduler:    scheduler,
		Evaluator:    evaluator,
		Codec:        codec,
		Orchestrator: orch,
	}, nil
}

// LoadTasks queues every task from the config in file order.
func (s *Simulation) LoadTasks(ctx context.Context, log logging.Logger) {
	if log == nil {
		log = logging.Noop()
	}
	for _, tc := range s.Config.Mission.Tasks {
		task := s.Orchestrator.AddTask(tc.Target, tc.Priority, tc.Description)
		log.Info(ctx, "task queued",
			logging.Int("task_id", task.ID),
			logging.Int("target", task.Target),
			logging.Int("priority", task.Priority),
			logging.String("description", task.Description),
		)
	}
}

// CharacterizeHazards regenerates a scratch hazard field trials times and
// returns the aggregate statistics with the seed that produced them.
func CharacterizeHazards(cfg config.Config, trials int) (core.Characterization, uint64) {
	seed := resolveSeed(cfg.Seed)
	field := core.NewHazardField(cfg.Nodes, rand.New(rand.NewPCG(seed, streamCharacterize)))
	return field.Characterize(trials, cfg.Hazards.ObstacleProbability, cfg.Hazards.MaxDelay), seed
}

func resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano()) | 1
}
