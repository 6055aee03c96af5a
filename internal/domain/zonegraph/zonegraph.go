// Package zonegraph makes zone dependencies explicit: nodes are zone ids and
// edges run from a zone to every zone derived from it. Ordering is a
// topological sort with cycle detection rather than recursive lookups.
package zonegraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Sentinel kinds for graph errors.
var (
	ErrUnknownNode = errors.New("unknown dependency")
	ErrDuplicate   = errors.New("duplicate node")
)

// Node is a zone and the zones it depends on.
type Node struct {
	ID        string
	DependsOn []string
}

// CycleError names every zone that takes part in a dependency cycle.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = strings.Join(c, " -> ") + " -> " + c[0]
	}
	return "dependency cycle: " + strings.Join(parts, "; ")
}

// Graph is an immutable dependency graph.
type Graph struct {
	ids   []string
	index map[string]int64
	g     *simple.DirectedGraph
	deps  map[string][]string
}

// New builds the graph. Nodes keep their declaration order, which also
// breaks ties in Order.
func New(nodes []Node) (*Graph, error) {
	gr := &Graph{
		ids:   make([]string, len(nodes)),
		index: make(map[string]int64, len(nodes)),
		g:     simple.NewDirectedGraph(),
		deps:  make(map[string][]string, len(nodes)),
	}
	for i, n := range nodes {
		if _, ok := gr.index[n.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, n.ID)
		}
		gr.ids[i] = n.ID
		gr.index[n.ID] = int64(i)
		gr.g.AddNode(simple.Node(i))
	}
	for _, n := range nodes {
		to := gr.index[n.ID]
		for _, dep := range n.DependsOn {
			from, ok := gr.index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrUnknownNode, n.ID, dep)
			}
			gr.deps[n.ID] = append(gr.deps[n.ID], dep)
			if from == to {
				// simple graphs reject self edges; keep it for cycle reporting.
				continue
			}
			gr.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return gr, nil
}

// Order returns ids so that every zone follows the zones it depends on.
func (gr *Graph) Order() ([]string, error) {
	if cyc := gr.selfCycles(); len(cyc) > 0 {
		return nil, &CycleError{Cycles: cyc}
	}
	sorted, err := topo.SortStabilized(gr.g, nil)
	if err != nil {
		var un topo.Unorderable
		if errors.As(err, &un) {
			return nil, &CycleError{Cycles: gr.names(un)}
		}
		return nil, err
	}
	out := make([]string, len(sorted))
	for i, n := range sorted {
		out[i] = gr.ids[n.ID()]
	}
	return out, nil
}

// DependsOn returns the direct dependencies of id.
func (gr *Graph) DependsOn(id string) []string {
	return append([]string(nil), gr.deps[id]...)
}

// Dependents returns the zones derived directly from id, in declaration order.
func (gr *Graph) Dependents(id string) []string {
	i, ok := gr.index[id]
	if !ok {
		return nil
	}
	var out []int64
	it := gr.g.From(i)
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	slices.Sort(out)
	names := make([]string, len(out))
	for k, v := range out {
		names[k] = gr.ids[v]
	}
	return names
}

func (gr *Graph) selfCycles() [][]string {
	var out [][]string
	for _, id := range gr.ids {
		for _, dep := range gr.deps[id] {
			if dep == id {
				out = append(out, []string{id})
				break
			}
		}
	}
	return out
}

func (gr *Graph) names(un topo.Unorderable) [][]string {
	out := make([][]string, 0, len(un))
	for _, comp := range un {
		ids := make([]int64, 0, len(comp))
		for _, n := range comp {
			ids = append(ids, n.ID())
		}
		out = append(out, gr.walkCycle(ids))
	}
	return out
}

// walkCycle lists a cyclic component in edge order starting from its first
// declared member, so the message reads a -> b -> a.
func (gr *Graph) walkCycle(ids []int64) []string {
	slices.Sort(ids)
	member := make(map[int64]bool, len(ids))
	for _, id := range ids {
		member[id] = true
	}
	seen := make(map[int64]bool, len(ids))
	cur := ids[0]
	var out []string
	for !seen[cur] {
		seen[cur] = true
		out = append(out, gr.ids[cur])
		next := int64(-1)
		it := gr.g.From(cur)
		var cands []int64
		for it.Next() {
			if id := it.Node().ID(); member[id] {
				cands = append(cands, id)
			}
		}
		slices.Sort(cands)
		for _, c := range cands {
			if !seen[c] {
				next = c
				break
			}
		}
		if next < 0 {
			break
		}
		cur = next
	}
	for _, id := range ids {
		if !seen[id] {
			out = append(out, gr.ids[id])
		}
	}
	return out
}
