package core

import (
	"math/rand/v2"
)

const (
	// DelayInclusionProbability is the per-pair chance that GenerateDelays
	// assigns a delay multiplier on a given call.
	DelayInclusionProbability = 0.4

	minBlockage = 0.1
	maxBlockage = 1.0
)

// HazardField models environmental interference per edge: a probability that
// the edge is blocked when traversed and a multiplier on the transit delay.
// Entries are created by the generate calls and persist until overwritten;
// absent entries mean "no hazard".
type HazardField struct {
	n   int
	rng *rand.Rand

	obstacles map[EdgeKey]float64
	delays    map[EdgeKey]float64
}

// Characterization summarises repeated hazard regeneration.
type Characterization struct {
	Trials           int     `json:"trials"`
	MeanObstacles    float64 `json:"mean_obstacles"`
	MeanDelayedEdges float64 `json:"mean_delayed_edges"`
	MeanTotalDelay   float64 `json:"mean_total_delay"`
	MaxDelay         float64 `json:"max_delay"`
}

// NewHazardField creates an empty field over n nodes drawing from rng.
func NewHazardField(n int, rng *rand.Rand) *HazardField {
	return &HazardField{
		n:         n,
		rng:       rng,
		obstacles: make(map[EdgeKey]float64),
		delays:    make(map[EdgeKey]float64),
	}
}

// GenerateObstacles visits every unordered pair and, with the given
// probability, assigns it a blockage probability sampled from (0.1, 1.0].
// Pairs not selected keep their previous value.
func (h *HazardField) GenerateObstacles(probability float64) {
	for i := 0; i < h.n; i++ {
		for j := i + 1; j < h.n; j++ {
			if h.rng.Float64() < probability {
				// 1-Float64() lies in (0, 1], which keeps the upper bound inclusive.
				h.obstacles[EdgeKey{A: i, B: j}] = minBlockage + (maxBlockage-minBlockage)*(1-h.rng.Float64())
			}
		}
	}
}

// GenerateDelays assigns each pair, with DelayInclusionProbability, a delay
// multiplier sampled from [1.0, maxDelay].
func (h *HazardField) GenerateDelays(maxDelay float64) {
	if maxDelay < 1.0 {
		maxDelay = 1.0
	}
	for i := 0; i < h.n; i++ {
		for j := i + 1; j < h.n; j++ {
			if h.rng.Float64() < DelayInclusionProbability {
				h.delays[EdgeKey{A: i, B: j}] = 1.0 + (maxDelay-1.0)*h.rng.Float64()
			}
		}
	}
}

// SetBlockage stores a blockage probability for {u, v}, clamped to [0, 1].
func (h *HazardField) SetBlockage(u, v int, p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	h.obstacles[Canonical(u, v)] = p
}

// SetDelay stores a delay multiplier for {u, v}; values below 1.0 are raised to 1.0.
func (h *HazardField) SetDelay(u, v int, factor float64) {
	if factor < 1.0 {
		factor = 1.0
	}
	h.delays[Canonical(u, v)] = factor
}

// IsBlocked draws a fresh Bernoulli trial with the stored blockage
// probability. Edges without an entry are never blocked and consume no
// randomness.
func (h *HazardField) IsBlocked(u, v int) bool {
	p, ok := h.obstacles[Canonical(u, v)]
	if !ok {
		return false
	}
	return h.rng.Float64() < p
}

// DelayFactor returns the stored multiplier, or 1.0 when absent.
func (h *HazardField) DelayFactor(u, v int) float64 {
	if d, ok := h.delays[Canonical(u, v)]; ok {
		return d
	}
	return 1.0
}

// BlockageProbability returns the stored blockage probability for {u, v}.
func (h *HazardField) BlockageProbability(u, v int) (float64, bool) {
	p, ok := h.obstacles[Canonical(u, v)]
	return p, ok
}

// ObstacleCount returns the number of edges with a blockage entry.
func (h *HazardField) ObstacleCount() int { return len(h.obstacles) }

// DelayCount returns the number of edges with a delay entry.
func (h *HazardField) DelayCount() int { return len(h.delays) }

// Characterize regenerates obstacles and delays trials times and tracks the
// running mean of obstacle count, delayed edge count and summed delay, plus
// the maximum delay observed. Regeneration is additive, so the receiver's
// state accumulates across trials; run it on a scratch field when the live
// field must stay untouched.
func (h *HazardField) Characterize(trials int, obstacleProbability, maxDelay float64) Characterization {
	res := Characterization{Trials: trials}
	if trials <= 0 {
		res.Trials = 0
		return res
	}

	for i := 1; i <= trials; i++ {
		h.GenerateObstacles(obstacleProbability)
		h.GenerateDelays(maxDelay)

		total := h.totalDelay(&res.MaxDelay)

		n := float64(i)
		res.MeanObstacles += (float64(len(h.obstacles)) - res.MeanObstacles) / n
		res.MeanDelayedEdges += (float64(len(h.delays)) - res.MeanDelayedEdges) / n
		res.MeanTotalDelay += (total - res.MeanTotalDelay) / n
	}
	return res
}

// totalDelay sums every stored delay in canonical pair order, raising *peak to
// the largest one seen. The order is fixed so one seed gives one float total.
func (h *HazardField) totalDelay(peak *float64) float64 {
	total := 0.0
	for i := 0; i < h.n; i++ {
		for j := i + 1; j < h.n; j++ {
			d, ok := h.delays[EdgeKey{A: i, B: j}]
			if !ok {
				continue
			}
			total += d
			if d > *peak {
				*peak = d
			}
		}
	}
	return total
}
