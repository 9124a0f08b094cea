package core

import "fmt"

// EdgeKey is the canonical form of an unordered node pair: A <= B.
// Adjacency and hazard data are indexed by it so that (u, v) and (v, u)
// always resolve to the same entry.
type EdgeKey struct {
	A int
	B int
}

// Canonical returns the EdgeKey for the unordered pair {u, v}.
func Canonical(u, v int) EdgeKey {
	if u > v {
		u, v = v, u
	}
	return EdgeKey{A: u, B: v}
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%d-%d", k.A, k.B)
}

// Path is an ordered sequence of nodes where consecutive nodes are adjacent.
type Path []int

// Hops returns the number of edges traversed by the path.
func (p Path) Hops() int {
	if len(p) < 2 {
		return 0
	}
	return len(p) - 1
}

// Edges returns the canonical keys of the edges the path traverses, in order.
func (p Path) Edges() []EdgeKey {
	if len(p) < 2 {
		return nil
	}
	edges := make([]EdgeKey, 0, len(p)-1)
	for i := 0; i < len(p)-1; i++ {
		edges = append(edges, Canonical(p[i], p[i+1]))
	}
	return edges
}

// Reaches reports whether p is a usable route from start to end. A single
// node path only counts when start and end coincide; the shortest path search
// returns [end] for unreachable targets.
func (p Path) Reaches(start, end int) bool {
	if len(p) == 0 {
		return false
	}
	if p[0] != start || p[len(p)-1] != end {
		return false
	}
	if len(p) == 1 {
		return start == end
	}
	return true
}
