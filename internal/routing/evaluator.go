// Package routing scores candidate routes and arbitrates between them.
package routing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/signalsfoundry/rescue-mission-sim/core"
)

// ErrUnknownStrategy is returned by NewEvaluator for an unrecognised name.
var ErrUnknownStrategy = errors.New("unknown route strategy")

const (
	StrategySinglePly         = "single-ply"
	StrategyHazardAdversarial = "hazard-adversarial"
)

// Score rates a path by length: 1 / (1 + len(path)). Shorter paths score
// strictly higher.
func Score(path core.Path) float64 {
	return 1.0 / (1.0 + float64(len(path)))
}

// Strategy picks one candidate. It returns -1 when paths is empty.
type Strategy interface {
	Choose(paths []core.Path) (index int, value float64)
	Name() string
}

// EdgeCoster prices traversal of a single edge. core.HazardField satisfies it
// through DelayFactor.
type EdgeCoster interface {
	DelayFactor(u, v int) float64
}

// SinglePly is bounded single-ply arbitration: a maximising pass over the
// flat candidate list with alpha-beta bookkeeping. Candidates are leaves and
// are never expanded, so any Depth > 0 behaves the same.
type SinglePly struct {
	Depth int
}

func (SinglePly) Name() string { return StrategySinglePly }

func (s SinglePly) Choose(paths []core.Path) (int, float64) {
	if len(paths) == 0 || s.Depth <= 0 {
		return -1, 0
	}
	alpha, beta := math.Inf(-1), math.Inf(1)
	best, bestIdx := math.Inf(-1), -1
	for i, p := range paths {
		v := Score(p)
		if v > best {
			best, bestIdx = v, i
		}
		alpha = math.Max(alpha, v)
		if beta <= alpha {
			break
		}
	}
	return bestIdx, best
}

// HazardAdversarial is a two-ply minimax. The agent maximises over routes,
// then an adversary picks the hop of that route to degrade; a degraded hop
// adds Costs.DelayFactor(u, v) to the route length before scoring. A route is
// pruned as soon as one hop pulls its value to alpha or below.
//
// Depth 1 only looks at the agent's ply and equals SinglePly.
type HazardAdversarial struct {
	Depth int
	Costs EdgeCoster
}

func (HazardAdversarial) Name() string { return StrategyHazardAdversarial }

func (h HazardAdversarial) Choose(paths []core.Path) (int, float64) {
	if h.Depth <= 1 || h.Costs == nil {
		return SinglePly{Depth: h.Depth}.Choose(paths)
	}
	if len(paths) == 0 {
		return -1, 0
	}

	alpha := math.Inf(-1)
	bestIdx := -1
	for i, p := range paths {
		v := h.adversary(p, alpha)
		if v > alpha || bestIdx == -1 {
			alpha, bestIdx = math.Max(alpha, v), i
		}
	}
	return bestIdx, alpha
}

// adversary returns the minimum over hops of the degraded score of p, cutting
// off once the value cannot beat alpha.
func (h HazardAdversarial) adversary(p core.Path, alpha float64) float64 {
	if len(p) < 2 {
		return Score(p)
	}
	worst := math.Inf(1)
	for i := 0; i < len(p)-1; i++ {
		v := 1.0 / (1.0 + float64(len(p)) + h.Costs.DelayFactor(p[i], p[i+1]))
		if v < worst {
			worst = v
		}
		if worst <= alpha {
			break
		}
	}
	return worst
}

// Scored pairs a candidate with its plain length score.
type Scored struct {
	Path  core.Path
	Score float64
}

// Evaluator selects a route through a pluggable Strategy.
type Evaluator struct {
	Strategy Strategy
}

// NewEvaluator builds an Evaluator for a strategy name. costs is only used by
// the hazard-adversarial strategy.
func NewEvaluator(name string, depth int, costs EdgeCoster) (*Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategySinglePly:
		return &Evaluator{Strategy: SinglePly{Depth: depth}}, nil
	case StrategyHazardAdversarial:
		return &Evaluator{Strategy: HazardAdversarial{Depth: depth, Costs: costs}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Select returns the chosen path, or nil when there are no candidates. A nil
// result means "no route available".
func (e *Evaluator) Select(paths []core.Path) core.Path {
	idx, _ := e.Strategy.Choose(paths)
	if idx < 0 || idx >= len(paths) {
		return nil
	}
	return paths[idx]
}

// Evaluate scores every candidate and returns them best first. Ties keep
// their input order.
func (e *Evaluator) Evaluate(paths []core.Path) []Scored {
	out := make([]Scored, 0, len(paths))
	for _, p := range paths {
		out = append(out, Scored{Path: p, Score: Score(p)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
