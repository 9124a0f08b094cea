package mission

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/rescue-mission-sim/internal/config"
	"github.com/signalsfoundry/rescue-mission-sim/internal/routing"
	"github.com/signalsfoundry/rescue-mission-sim/model"
	"github.com/signalsfoundry/rescue-mission-sim/timectrl"
)

func runSeeded(t *testing.T, cfg config.Config) (*Simulation, *timectrl.ManualClock) {
	t.Helper()
	clock := timectrl.NewManualClock(epoch)
	sim, err := NewSimulation(cfg, clock)
	require.NoError(t, err)
	sim.LoadTasks(context.Background(), nil)
	sim.Orchestrator.RunToCompletion(context.Background())
	return sim, clock
}

func TestSimulationIsReproducibleForSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 42

	a, clockA := runSeeded(t, cfg)
	b, clockB := runSeeded(t, cfg)

	if diff := cmp.Diff(a.Topology.Edges(), b.Topology.Edges()); diff != "" {
		t.Fatalf("topology differs for equal seeds (-a +b):\n%s", diff)
	}
	assert.Equal(t, a.Hazards.ObstacleCount(), b.Hazards.ObstacleCount())
	assert.Equal(t, a.Hazards.DelayCount(), b.Hazards.DelayCount())
	assert.Equal(t, a.Orchestrator.Stats(), b.Orchestrator.Stats())
	assert.Equal(t, clockA.Sleeps(), clockB.Sleeps())

	ra, rb := a.Orchestrator.Reports(), b.Orchestrator.Reports()
	require.Len(t, ra, len(rb))
	for i := range ra {
		assert.Equal(t, ra[i].Status, rb[i].Status)
		assert.Equal(t, ra[i].Route, rb[i].Route)
		assert.Equal(t, ra[i].Corrupted, rb[i].Corrupted)
	}
}

func TestSimulationRunsEveryTaskToTerminalStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 7

	sim, _ := runSeeded(t, cfg)
	stats := sim.Orchestrator.Stats()
	assert.Zero(t, stats["PENDING"])
	assert.Zero(t, stats["IN_PROGRESS"])
	assert.Equal(t, len(cfg.Mission.Tasks), stats["COMPLETED"]+stats["FAILED"]+stats["ERROR"])

	for _, task := range sim.Scheduler.Tasks() {
		assert.True(t, task.Status.Terminal(), "task %d left in %s", task.ID, task.Status)
	}
}

func TestSimulationCompleteGraphCleanChannel(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 11
	cfg.Topology.EdgeProbability = 1
	cfg.Hazards.ObstacleProbability = 0
	cfg.Telemetry.CorruptionProbability = 0

	sim, clock := runSeeded(t, cfg)
	assert.Equal(t, cfg.Nodes*(cfg.Nodes-1)/2, sim.Topology.EdgeCount())

	reports := sim.Orchestrator.Reports()
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.Equal(t, model.TaskCompleted, r.Status)
		assert.Equal(t, 1, r.Hops, "complete graph gives a direct hop to %d", r.Target)
		assert.Zero(t, r.Corrupted)
	}
	// Urgent rescue first, survey last.
	assert.Equal(t, []int{3, 7, 5}, []int{reports[0].Target, reports[1].Target, reports[2].Target})
	assert.Empty(t, clock.Sleeps())
}

func TestSimulationHazardAdversarialStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 3
	cfg.Routing.Strategy = routing.StrategyHazardAdversarial

	sim, _ := runSeeded(t, cfg)
	assert.Equal(t, routing.StrategyHazardAdversarial, sim.Evaluator.Strategy.Name())
	assert.Len(t, sim.Orchestrator.Reports(), 3)
}

func TestSimulationZeroSeedPicksOne(t *testing.T) {
	sim, err := NewSimulation(config.Default(), timectrl.NewManualClock(epoch))
	require.NoError(t, err)
	assert.NotZero(t, sim.Seed)
}

func TestSimulationRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Nodes = 0
	_, err := NewSimulation(cfg, nil)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestCharacterizeHazardsIsSeeded(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 99

	a, seedA := CharacterizeHazards(cfg, 50)
	b, seedB := CharacterizeHazards(cfg, 50)
	assert.Equal(t, uint64(99), seedA)
	assert.Equal(t, seedA, seedB)
	assert.Equal(t, a, b)
	assert.Equal(t, 50, a.Trials)
	assert.LessOrEqual(t, a.MaxDelay, cfg.Hazards.MaxDelay)

	pairs := float64(cfg.Nodes * (cfg.Nodes - 1) / 2)
	assert.LessOrEqual(t, a.MeanObstacles, pairs)
	assert.LessOrEqual(t, a.MeanDelayedEdges, pairs)
}
