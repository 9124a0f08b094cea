package core

import (
	"math/rand/v2"
	"testing"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(42, 1024))
}

func TestHazardDefaultsForUntouchedEdges(t *testing.T) {
	h := NewHazardField(5, newTestRand())
	for i := 0; i < 100; i++ {
		if h.IsBlocked(1, 3) {
			t.Fatalf("untouched edge reported blocked")
		}
	}
	if got := h.DelayFactor(3, 1); got != 1.0 {
		t.Fatalf("DelayFactor = %v, want 1.0", got)
	}
}

func TestHazardLookupsAreOrderIndependent(t *testing.T) {
	h := NewHazardField(5, newTestRand())
	h.SetDelay(4, 2, 1.75)
	h.SetBlockage(2, 4, 1.0)

	if got := h.DelayFactor(2, 4); got != 1.75 {
		t.Fatalf("DelayFactor(2, 4) = %v, want 1.75", got)
	}
	if !h.IsBlocked(4, 2) || !h.IsBlocked(2, 4) {
		t.Fatalf("edge with blockage probability 1 must always be blocked")
	}

	h.SetBlockage(0, 1, 0)
	if h.IsBlocked(1, 0) {
		t.Fatalf("edge with blockage probability 0 must never be blocked")
	}
}

func TestGenerateObstaclesRanges(t *testing.T) {
	h := NewHazardField(8, newTestRand())
	h.GenerateObstacles(1.0)
	if got, want := h.ObstacleCount(), 8*7/2; got != want {
		t.Fatalf("ObstacleCount() = %d, want %d", got, want)
	}
	for i := 0; i < 8; i++ {
		for j := i + 1; j < 8; j++ {
			p, ok := h.BlockageProbability(j, i)
			if !ok {
				t.Fatalf("missing obstacle entry for %d-%d", i, j)
			}
			if p <= 0.1 || p > 1.0 {
				t.Fatalf("blockage probability %v outside (0.1, 1.0]", p)
			}
		}
	}
}

func TestGenerateObstaclesIsAdditive(t *testing.T) {
	h := NewHazardField(6, newTestRand())
	h.SetBlockage(0, 5, 0.5)
	h.GenerateObstacles(0)
	if p, ok := h.BlockageProbability(0, 5); !ok || p != 0.5 {
		t.Fatalf("zero-probability generation must keep existing entries, got %v %v", p, ok)
	}
}

func TestGenerateDelaysRange(t *testing.T) {
	h := NewHazardField(12, newTestRand())
	h.GenerateDelays(2.0)
	if h.DelayCount() == 0 {
		t.Fatalf("expected some delayed edges with 40%% inclusion over 66 pairs")
	}
	for i := 0; i < 12; i++ {
		for j := i + 1; j < 12; j++ {
			d := h.DelayFactor(i, j)
			if d < 1.0 || d > 2.0 {
				t.Fatalf("delay factor %v outside [1, 2]", d)
			}
		}
	}
}

func TestCharacterize(t *testing.T) {
	h := NewHazardField(10, newTestRand())
	res := h.Characterize(50, 0.3, 2.0)
	if res.Trials != 50 {
		t.Fatalf("Trials = %d, want 50", res.Trials)
	}
	if res.MeanObstacles <= 0 || res.MeanObstacles > 45 {
		t.Fatalf("MeanObstacles = %v, want within (0, 45]", res.MeanObstacles)
	}
	if res.MaxDelay < 1.0 || res.MaxDelay > 2.0 {
		t.Fatalf("MaxDelay = %v, want within [1, 2]", res.MaxDelay)
	}
	if res.MeanTotalDelay < res.MeanDelayedEdges {
		t.Fatalf("summed delay %v cannot be below delayed edge count %v", res.MeanTotalDelay, res.MeanDelayedEdges)
	}

	if zero := h.Characterize(0, 0.3, 2.0); zero != (Characterization{}) {
		t.Fatalf("Characterize(0) = %+v, want zero value", zero)
	}
}

func TestCharacterizeIsReproducible(t *testing.T) {
	want := NewHazardField(10, rand.New(rand.NewPCG(99, 5))).Characterize(50, 0.3, 2.0)
	for run := 0; run < 50; run++ {
		got := NewHazardField(10, rand.New(rand.NewPCG(99, 5))).Characterize(50, 0.3, 2.0)
		if got != want {
			t.Fatalf("run %d: Characterize = %+v, want %+v", run, got, want)
		}
	}
}
