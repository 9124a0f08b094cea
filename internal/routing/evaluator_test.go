package routing

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/rescue-mission-sim/core"
)

func TestScoreIsStrictlyDecreasingInLength(t *testing.T) {
	prev := Score(nil)
	for n := 1; n < 20; n++ {
		s := Score(make(core.Path, n))
		if s >= prev {
			t.Fatalf("Score(len %d) = %v not below Score(len %d) = %v", n, s, n-1, prev)
		}
		prev = s
	}
	if got := Score(core.Path{0, 1, 2}); got != 0.25 {
		t.Fatalf("Score of 3-node path = %v, want 0.25", got)
	}
}

func TestSinglePlyPicksShortest(t *testing.T) {
	e, err := NewEvaluator(StrategySinglePly, 3, nil)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	paths := []core.Path{{0, 2, 4, 3}, {0, 1, 3}, {0, 5, 6, 7, 3}}
	if diff := cmp.Diff(core.Path{0, 1, 3}, e.Select(paths)); diff != "" {
		t.Fatalf("Select mismatch (-want +got):\n%s", diff)
	}
}

func TestSinglePlyTieKeepsFirst(t *testing.T) {
	idx, _ := SinglePly{Depth: 1}.Choose([]core.Path{{0, 1, 3}, {0, 2, 3}})
	if idx != 0 {
		t.Fatalf("tie resolved to index %d, want 0", idx)
	}
}

func TestSinglePlyDepthHasNoFurtherEffect(t *testing.T) {
	paths := []core.Path{{0, 2, 4, 3}, {0, 1, 3}}
	for depth := 1; depth <= 6; depth++ {
		idx, v := SinglePly{Depth: depth}.Choose(paths)
		if idx != 1 || v != Score(paths[1]) {
			t.Fatalf("depth %d chose %d (%v)", depth, idx, v)
		}
	}
}

func TestSelectEmpty(t *testing.T) {
	e, _ := NewEvaluator("", 3, nil)
	if got := e.Select(nil); got != nil {
		t.Fatalf("Select(nil) = %v, want nil", got)
	}
}

type costTable map[core.EdgeKey]float64

func (c costTable) DelayFactor(u, v int) float64 {
	if d, ok := c[core.Canonical(u, v)]; ok {
		return d
	}
	return 1.0
}

func TestHazardAdversarialAvoidsCostlyHop(t *testing.T) {
	costs := costTable{core.Canonical(1, 3): 10}
	e, err := NewEvaluator(StrategyHazardAdversarial, 2, costs)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	paths := []core.Path{{0, 1, 3}, {0, 2, 4, 3}}
	if diff := cmp.Diff(core.Path{0, 2, 4, 3}, e.Select(paths)); diff != "" {
		t.Fatalf("Select mismatch (-want +got):\n%s", diff)
	}

	// Without hazards the shorter route wins again.
	calm, _ := NewEvaluator(StrategyHazardAdversarial, 2, costTable{})
	if diff := cmp.Diff(core.Path{0, 1, 3}, calm.Select(paths)); diff != "" {
		t.Fatalf("Select mismatch (-want +got):\n%s", diff)
	}
}

func TestHazardAdversarialDepthOneIsSinglePly(t *testing.T) {
	costs := costTable{core.Canonical(1, 3): 10}
	paths := []core.Path{{0, 1, 3}, {0, 2, 4, 3}}
	idx, _ := HazardAdversarial{Depth: 1, Costs: costs}.Choose(paths)
	if idx != 0 {
		t.Fatalf("depth 1 chose %d, want 0", idx)
	}
}

func TestNewEvaluatorUnknown(t *testing.T) {
	if _, err := NewEvaluator("monte-carlo-tree", 3, nil); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("error = %v, want ErrUnknownStrategy", err)
	}
}

func TestEvaluateRanksBestFirst(t *testing.T) {
	e, _ := NewEvaluator(StrategySinglePly, 3, nil)
	ranked := e.Evaluate([]core.Path{{0, 2, 4, 3}, {0, 1, 3}})
	if len(ranked) != 2 || len(ranked[0].Path) != 3 {
		t.Fatalf("Evaluate = %+v", ranked)
	}
}
