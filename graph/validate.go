package graph

import (
	"fmt"

	"github.com/no-ai-labs/spice-sub002/node"
)

// ValidationError is one violation surfaced by Validate. Fatal violations
// (see Result.OK) block execution; non-fatal ones (unreachable nodes) are
// warnings.
type ValidationError struct {
	Rule    string
	Message string
	Fatal   bool
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("graph validation [%s]: %s", e.Rule, e.Message)
}

// Result is the outcome of Validate: a list of errors/warnings and whether
// any fatal error was found.
type Result struct {
	Errors []ValidationError
}

// OK reports whether no fatal ValidationError was found. Non-fatal
// (unreachable-node) warnings do not affect OK.
func (r Result) OK() bool {
	for _, e := range r.Errors {
		if e.Fatal {
			return false
		}
	}
	return true
}

// Fatal returns only the fatal errors.
func (r Result) Fatal() []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Fatal {
			out = append(out, e)
		}
	}
	return out
}

// Validate runs every structural rule below against g. Validation is pure:
// running it twice on the same graph yields an identical Result.
func Validate(g *Graph) Result {
	var res Result
	add := func(rule, msg string, fatal bool) {
		res.Errors = append(res.Errors, ValidationError{Rule: rule, Message: msg, Fatal: fatal})
	}

	if len(g.Nodes) == 0 {
		add("empty-graph", "graph has no nodes", true)
		return res
	}

	// Rule 1: entryPoint present in nodes.
	if _, ok := g.Nodes[g.EntryPoint]; !ok {
		add("entry-point", fmt.Sprintf("entry point %q is not a registered node", g.EntryPoint), true)
	}

	// Rule 2: every edge endpoint resolves to a node.
	// Rule 3: no duplicate node ids (guaranteed by map keys; check Node.ID() consistency).
	for id, n := range g.Nodes {
		if n.ID() != id {
			add("node-id-mismatch", fmt.Sprintf("node registered under key %q reports ID() %q", id, n.ID()), true)
		}
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			add("dangling-edge", fmt.Sprintf("edge %q: source %q is not a registered node", e.Name, e.From), true)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			add("dangling-edge", fmt.Sprintf("edge %q: target %q is not a registered node", e.Name, e.To), true)
		}
	}

	// Rule 4: reachability from entryPoint (warning, not fatal).
	if _, ok := g.Nodes[g.EntryPoint]; ok {
		reachable := reachableFrom(g, g.EntryPoint)
		for id := range g.Nodes {
			if !reachable[id] {
				add("unreachable-node", fmt.Sprintf("node %q is not reachable from entry point %q", id, g.EntryPoint), false)
			}
		}
	}

	// Rule 5: if !allowCycles, the graph must be a DAG.
	if !g.AllowCycles && !g.IsDAG() {
		add("cycle-not-allowed", "graph contains a cycle but allowCycles is false", true)
	}

	// Rule 6: output nodes have no outgoing edges.
	for id, n := range g.Nodes {
		if _, isOutput := n.(*node.OutputNode); isOutput {
			if len(g.OutgoingEdges(id)) > 0 {
				add("output-node-outgoing-edge", fmt.Sprintf("output node %q must not have outgoing edges", id), true)
			}
		}
	}

	// Rule 7: decision nodes must either have a matching edge for each
	// declared branch target, or a fallback edge.
	for id, n := range g.Nodes {
		dn, ok := n.(*node.DecisionNode)
		if !ok {
			continue
		}
		outgoing := g.OutgoingEdges(id)
		hasFallback := false
		targets := map[string]bool{}
		for _, e := range outgoing {
			targets[e.To] = true
			if e.IsFallback {
				hasFallback = true
			}
		}
		for _, target := range dn.BranchTargets() {
			if !targets[target] && !hasFallback {
				add("decision-branch-unmatched", fmt.Sprintf("decision node %q: branch target %q has no matching edge and no fallback edge exists", id, target), true)
			}
		}
	}

	return res
}

func reachableFrom(g *Graph, start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Edges {
			if e.From != cur {
				continue
			}
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return seen
}
