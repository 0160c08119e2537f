// Package graph defines the directed graph model — nodes, typed edges with
// condition predicates, priority, and fallback — plus the validation
// pipeline run before any node executes.
package graph

import (
	"sort"

	"github.com/no-ai-labs/spice-sub002/node"
)

// EdgeCondition evaluates whether an edge should be taken given the result
// produced by its source node.
type EdgeCondition func(result node.NodeResult) bool

// Edge is a directed transition with a predicate, priority, and optional
// fallback flag. Edges are evaluated in ascending Priority order;
// the first edge whose Condition returns true is taken. Fallback edges are
// considered only if no non-fallback edge matched.
type Edge struct {
	Name       string
	From       string
	To         string
	Condition  EdgeCondition
	Priority   int
	IsFallback bool
}

// Graph is a directed graph of nodes bound together by Edges, an EntryPoint,
// and a cycle policy. Middleware is not part of the Graph; it is configured
// on runner.Runner.
type Graph struct {
	ID          string
	Nodes       map[string]node.Node
	Edges       []Edge
	EntryPoint  string
	AllowCycles bool
}

// New constructs an empty Graph with the given id and entry point.
func New(id, entryPoint string) *Graph {
	return &Graph{ID: id, Nodes: map[string]node.Node{}, EntryPoint: entryPoint}
}

// AddNode registers n under its own ID.
func (g *Graph) AddNode(n node.Node) *Graph {
	g.Nodes[n.ID()] = n
	return g
}

// AddEdge appends e to the graph's edge list.
func (g *Graph) AddEdge(e Edge) *Graph {
	g.Edges = append(g.Edges, e)
	return g
}

// OutgoingEdges returns the edges leaving nodeID, sorted by ascending
// Priority, ties broken by declaration order (a stable sort preserves the
// original slice order for equal priorities).
func (g *Graph) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// SelectNext evaluates nodeID's outgoing edges in priority order: first all
// non-fallback edges, then (only if none matched) fallback edges, again in
// priority order. Returns the matched edge and true, or false if no edge
// matches (the node is terminal for this step).
func (g *Graph) SelectNext(nodeID string, result node.NodeResult) (Edge, bool) {
	edges := g.OutgoingEdges(nodeID)

	for _, e := range edges {
		if e.IsFallback {
			continue
		}
		if e.Condition == nil || e.Condition(result) {
			return e, true
		}
	}
	for _, e := range edges {
		if !e.IsFallback {
			continue
		}
		if e.Condition == nil || e.Condition(result) {
			return e, true
		}
	}
	return Edge{}, false
}

// IsDAG reports whether the graph (considered as a directed graph, ignoring
// AllowCycles) contains no cycle. Defined independently of AllowCycles so
// Validate can report a cycle as an error or a no-op depending on that flag.
func (g *Graph) IsDAG() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return false
			case white:
				if !visit(next) {
					return false
				}
			}
		}
		color[id] = black
		return true
	}

	for id := range g.Nodes {
		if color[id] == white {
			if !visit(id) {
				return false
			}
		}
	}
	for id := range adj {
		if color[id] == white {
			if !visit(id) {
				return false
			}
		}
	}
	return true
}
