package depgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCircularDependency is returned when a walk revisits a node that is still open
	ErrCircularDependency = errors.New("circular dependency")
	// ErrUnknownNode is returned when a requested node is not in the graph
	ErrUnknownNode = errors.New("unknown node")
)

type color uint8

const (
	white color = iota
	gray
	black
)

// Graph is a name -> dependencies adjacency list that remembers insertion
// order. It is not safe for concurrent mutation; the owner serializes access.
type Graph struct {
	order []string
	deps  map[string][]string
}

// New creates an empty graph
func New() *Graph {
	return &Graph{deps: make(map[string][]string)}
}

// Set adds or replaces a node. A replaced node keeps its original position.
func (g *Graph) Set(name string, deps []string) {
	if _, ok := g.deps[name]; !ok {
		g.order = append(g.order, name)
	}
	g.deps[name] = append([]string(nil), deps...)
}

// Remove deletes a node. Edges pointing at it from other nodes are kept.
func (g *Graph) Remove(name string) {
	if _, ok := g.deps[name]; !ok {
		return
	}
	delete(g.deps, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
}

// Has reports whether name is a node
func (g *Graph) Has(name string) bool {
	_, ok := g.deps[name]
	return ok
}

// Len returns the node count
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns node names in insertion order
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Dependencies returns the declared dependencies of name
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Dependents returns the nodes that list name as a direct dependency, in
// insertion order
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, n := range g.order {
		for _, dep := range g.deps[n] {
			if dep == name {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Clone returns an independent copy
func (g *Graph) Clone() *Graph {
	c := &Graph{
		order: append([]string(nil), g.order...),
		deps:  make(map[string][]string, len(g.deps)),
	}
	for name, deps := range g.deps {
		c.deps[name] = append([]string(nil), deps...)
	}
	return c
}

type frame struct {
	name string
	next int
}

// TopoSort returns nodes ordered so every dependency precedes its dependents.
// Only names in subset are emitted (all nodes when subset is empty), but the
// walk passes through every reachable node so ordering holds transitively.
// Dependencies that are not nodes are ignored. The result is deterministic
// for a fixed graph and subset order.
func (g *Graph) TopoSort(subset ...string) ([]string, error) {
	roots := subset
	if len(roots) == 0 {
		roots = g.order
	}

	want := make(map[string]bool, len(roots))
	for _, name := range roots {
		if !g.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
		}
		want[name] = true
	}
	return g.walk(roots, func(name string) bool { return want[name] })
}

// Ancestors returns name plus every node it transitively depends on,
// dependencies first and name last. Dependencies that are not nodes are
// skipped.
func (g *Graph) Ancestors(name string) ([]string, error) {
	if !g.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	return g.walk([]string{name}, func(string) bool { return true })
}

// walk runs a depth-first post-order walk from roots and collects every
// finished node that emit accepts
func (g *Graph) walk(roots []string, emit func(string) bool) ([]string, error) {
	colors := make(map[string]color, len(g.deps))
	var out []string
	var stack []frame

	for _, root := range roots {
		if colors[root] != white {
			continue
		}
		colors[root] = gray
		stack = append(stack[:0], frame{name: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.deps[top.name]

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				if !g.Has(dep) {
					continue
				}
				switch colors[dep] {
				case gray:
					return nil, cycleError(stack, dep)
				case black:
					continue
				}
				colors[dep] = gray
				stack = append(stack, frame{name: dep})
				continue
			}

			colors[top.name] = black
			if emit(top.name) {
				out = append(out, top.name)
			}
			stack = stack[:len(stack)-1]
		}
	}

	return out, nil
}

// Closure returns name plus every node that transitively depends on it,
// ordered so each node comes after all of its own dependents. Stopping nodes
// in this order never leaves a dependent running without its dependency.
func (g *Graph) Closure(name string) []string {
	if !g.Has(name) {
		return nil
	}

	dependents := make(map[string][]string, len(g.order))
	for _, n := range g.order {
		for _, dep := range g.deps[n] {
			dependents[dep] = append(dependents[dep], n)
		}
	}

	colors := make(map[string]color, len(g.order))
	var out []string
	colors[name] = gray
	stack := []frame{{name: name}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		next := dependents[top.name]

		if top.next < len(next) {
			n := next[top.next]
			top.next++
			// A gray node here means a cycle; skip it rather than loop.
			if colors[n] != white {
				continue
			}
			colors[n] = gray
			stack = append(stack, frame{name: n})
			continue
		}

		colors[top.name] = black
		out = append(out, top.name)
		stack = stack[:len(stack)-1]
	}

	return out
}

func cycleError(stack []frame, dep string) error {
	path := make([]string, 0, len(stack)+1)
	for i := len(stack) - 1; i >= 0; i-- {
		path = append(path, stack[i].name)
		if stack[i].name == dep {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	path = append(path, dep)
	return fmt.Errorf("%w: %s (%s)", ErrCircularDependency, dep, strings.Join(path, " -> "))
}
