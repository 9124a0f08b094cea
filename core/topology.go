package core

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

// ErrNodeOutOfRange is returned when an edge references a node outside [0, N).
var ErrNodeOutOfRange = errors.New("node out of range")

// Topology is the undirected, unweighted node network the agent travels.
// Nodes are the integers [0, N). Parallel edges and self loops are accepted;
// they add traversal options but carry no weight.
//
// Topology is not safe for concurrent mutation. Mission execution touches it
// from a single control goroutine.
type Topology struct {
	n   int
	adj [][]int
}

// NewTopology creates a topology with n isolated nodes.
func NewTopology(n int) *Topology {
	if n < 0 {
		n = 0
	}
	return &Topology{
		n:   n,
		adj: make([][]int, n),
	}
}

// RandomTopology connects every pair i<j independently with the given
// probability.
func RandomTopology(n int, edgeProbability float64, rng *rand.Rand) *Topology {
	t := NewTopology(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < edgeProbability {
				// Both endpoints are in range by construction.
				_ = t.AddEdge(i, j)
			}
		}
	}
	return t
}

// NodeCount returns N.
func (t *Topology) NodeCount() int {
	return t.n
}

func (t *Topology) valid(u int) bool {
	return u >= 0 && u < t.n
}

// AddEdge inserts the undirected edge {u, v}.
func (t *Topology) AddEdge(u, v int) error {
	if !t.valid(u) || !t.valid(v) {
		return fmt.Errorf("add edge %d-%d on %d nodes: %w", u, v, t.n, ErrNodeOutOfRange)
	}
	t.adj[u] = append(t.adj[u], v)
	t.adj[v] = append(t.adj[v], u)
	return nil
}

// Neighbors returns a copy of u's adjacency list in insertion order.
func (t *Topology) Neighbors(u int) []int {
	if !t.valid(u) {
		return nil
	}
	out := make([]int, len(t.adj[u]))
	copy(out, t.adj[u])
	return out
}

// HasEdge reports whether u and v are adjacent.
func (t *Topology) HasEdge(u, v int) bool {
	if !t.valid(u) || !t.valid(v) {
		return false
	}
	for _, nb := range t.adj[u] {
		if nb == v {
			return true
		}
	}
	return false
}

// Edges returns the distinct canonical edges, sorted.
func (t *Topology) Edges() []EdgeKey {
	seen := make(map[EdgeKey]struct{})
	for u, nbs := range t.adj {
		for _, v := range nbs {
			seen[Canonical(u, v)] = struct{}{}
		}
	}
	edges := make([]EdgeKey, 0, len(seen))
	for k := range seen {
		edges = append(edges, k)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// EdgeCount returns the number of distinct edges.
func (t *Topology) EdgeCount() int {
	return len(t.Edges())
}

// ShortestPath returns the fewest-hop path from start to end inclusive.
//
// When end cannot be reached from start (including when either node lies
// outside the topology) the result is the single-element path [end]. Callers
// must treat a path of length <= 1 as "no route" unless start == end.
func (t *Topology) ShortestPath(start, end int) Path {
	return t.shortestPathAvoiding(start, end, nil)
}

// shortestPathAvoiding is a breadth-first search that never traverses an edge
// in forbidden. With unit edge costs BFS order equals uniform-cost order.
func (t *Topology) shortestPathAvoiding(start, end int, forbidden map[EdgeKey]struct{}) Path {
	if start == end {
		return Path{end}
	}
	if !t.valid(start) || !t.valid(end) {
		return Path{end}
	}

	queue := []int{start}
	visited := make([]bool, t.n)
	prev := make([]int, t.n)
	for i := range prev {
		prev[i] = -1
	}
	visited[start] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == end {
			break
		}

		for _, nb := range t.adj[current] {
			if visited[nb] {
				continue
			}
			if _, blocked := forbidden[Canonical(current, nb)]; blocked {
				continue
			}
			visited[nb] = true
			prev[nb] = current
			queue = append(queue, nb)
		}
	}

	if !visited[end] {
		return Path{end}
	}

	path := Path{}
	for node := end; node != -1; node = prev[node] {
		path = append(path, node)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// AlternativePaths returns up to k distinct routes from start to end.
//
// The first entry is always ShortestPath(start, end), so an unreachable target
// yields [[end]]. Each further route is the shortest path that avoids every
// edge used by the routes already found; the search stops early once no such
// route exists.
func (t *Topology) AlternativePaths(start, end, k int) []Path {
	if k <= 0 {
		return nil
	}

	first := t.ShortestPath(start, end)
	paths := []Path{first}
	if !first.Reaches(start, end) || len(first) < 2 {
		return paths
	}

	used := make(map[EdgeKey]struct{})
	for len(paths) < k {
		for _, e := range paths[len(paths)-1].Edges() {
			used[e] = struct{}{}
		}
		next := t.shortestPathAvoiding(start, end, used)
		if !next.Reaches(start, end) {
			break
		}
		paths = append(paths, next)
	}
	return paths
}
