package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Graph holds dependency relationships between named components.
// An edge from A to B means A depends on B. Cycles are allowed; they are
// reported by DetectCycles and TopologicalSort and tolerated by
// DisposalOrder.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string // insertion order
}

// Node is one component in the graph.
type Node struct {
	Name string

	// Attributes are free-form labels rendered by the visualizer, such as
	// the lifestyle or the handler state.
	Attributes map[string]string

	// Dependencies are the components this node depends on.
	Dependencies []string

	// Dependents are the components depending on this node.
	Dependents []string

	// Depth is the length of the longest dependency chain below the node,
	// or -1 for nodes on a cycle. Set by CalculateDepths.
	Depth int

	// placeholder marks nodes referenced as dependencies but never added.
	placeholder bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
	}
}

// AddNode adds or replaces the node called name with its dependencies.
// Dependencies that are not in the graph yet are added as placeholders.
func (g *Graph) AddNode(name string, dependencies []string, attributes map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node := g.node(name)
	node.placeholder = false
	node.Attributes = attributes

	seen := make(map[string]bool, len(dependencies))
	node.Dependencies = node.Dependencies[:0]
	for _, dep := range dependencies {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		node.Dependencies = append(node.Dependencies, dep)

		if _, exists := g.nodes[dep]; !exists {
			g.node(dep).placeholder = true
		}
	}

	g.updateDependents()
}

// node returns the node called name, creating it if needed.
// g.mu must be held.
func (g *Graph) node(name string) *Node {
	if n, ok := g.nodes[name]; ok {
		return n
	}
	n := &Node{Name: name}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return n
}

// RemoveNode removes the node and every edge pointing to it.
func (g *Graph) RemoveNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[name]; !exists {
		return
	}
	delete(g.nodes, name)

	order := g.order[:0]
	for _, n := range g.order {
		if n != name {
			order = append(order, n)
		}
	}
	g.order = order

	for _, node := range g.nodes {
		deps := node.Dependencies[:0]
		for _, dep := range node.Dependencies {
			if dep != name {
				deps = append(deps, dep)
			}
		}
		node.Dependencies = deps
	}

	g.updateDependents()
}

// updateDependents rebuilds the Dependents lists from the Dependencies.
// g.mu must be held.
func (g *Graph) updateDependents() {
	for _, node := range g.nodes {
		node.Dependents = node.Dependents[:0]
	}
	for _, name := range g.order {
		for _, dep := range g.nodes[name].Dependencies {
			if target, ok := g.nodes[dep]; ok {
				target.Dependents = append(target.Dependents, name)
			}
		}
	}
}

// Node returns a copy of the node called name.
func (g *Graph) Node(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return Node{}, false
	}
	out := *n
	out.Dependencies = append([]string(nil), n.Dependencies...)
	out.Dependents = append([]string(nil), n.Dependents...)
	return out, true
}

// HasNode reports whether name was added to the graph. Placeholders do
// not count.
func (g *Graph) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]
	return ok && !n.placeholder
}

// Names returns every node name in insertion order, placeholders included.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Size returns the number of nodes, placeholders included.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the direct dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if n, ok := g.nodes[name]; ok {
		return append([]string(nil), n.Dependencies...)
	}
	return nil
}

// Dependents returns the components depending directly on name.
func (g *Graph) Dependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if n, ok := g.nodes[name]; ok {
		return append([]string(nil), n.Dependents...)
	}
	return nil
}

// TransitiveDependencies returns every direct and indirect dependency of
// name, nearest first.
func (g *Graph) TransitiveDependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{name: true}
	var result []string
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		n, ok := g.nodes[current]
		if !ok {
			continue
		}
		for _, dep := range n.Dependencies {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				queue = append(queue, dep)
			}
		}
	}
	return result
}

// Roots returns the nodes nothing depends on, in insertion order.
func (g *Graph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []string
	for _, name := range g.order {
		if len(g.nodes[name].Dependents) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// Leaves returns the nodes without dependencies, in insertion order.
func (g *Graph) Leaves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var leaves []string
	for _, name := range g.order {
		if len(g.nodes[name].Dependencies) == 0 {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

// TopologicalSort returns the node names with every dependency before its
// dependents. Ties keep insertion order. It fails on a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sorted, rest := g.kahn()
	if len(rest) > 0 {
		return nil, CycleError{Path: g.findCycle(rest[0])}
	}
	return sorted, nil
}

// DisposalOrder returns the node names with every dependent before its
// dependencies. Nodes on cycles come after the acyclic part, in reverse
// insertion order.
func (g *Graph) DisposalOrder() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sorted, rest := g.kahn()
	out := make([]string, 0, len(sorted)+len(rest))
	for i := len(rest) - 1; i >= 0; i-- {
		out = append(out, rest[i])
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		out = append(out, sorted[i])
	}
	return out
}

// kahn sorts the acyclic part of the graph dependencies first and returns
// the nodes it could not place. g.mu must be held.
func (g *Graph) kahn() (sorted, rest []string) {
	pending := make(map[string]int, len(g.nodes))
	for _, name := range g.order {
		count := 0
		for _, dep := range g.nodes[name].Dependencies {
			if _, ok := g.nodes[dep]; ok {
				count++
			}
		}
		pending[name] = count
	}

	placed := make(map[string]bool, len(g.nodes))
	for progress := true; progress; {
		progress = false
		for _, name := range g.order {
			if placed[name] || pending[name] > 0 {
				continue
			}
			placed[name] = true
			sorted = append(sorted, name)
			progress = true

			for _, dependent := range g.nodes[name].Dependents {
				pending[dependent]--
			}
		}
	}

	for _, name := range g.order {
		if !placed[name] {
			rest = append(rest, name)
		}
	}
	return sorted, rest
}

// DetectCycles returns a CycleError for the first cycle found.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, rest := g.kahn(); len(rest) > 0 {
		return CycleError{Path: g.findCycle(rest[0])}
	}
	return nil
}

// IsAcyclic reports whether the graph has no cycles.
func (g *Graph) IsAcyclic() bool {
	return g.DetectCycles() == nil
}

// findCycle returns a cycle reachable from start, first node repeated at
// the end. g.mu must be held.
func (g *Graph) findCycle(start string) []string {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		state[name] = visiting
		stack = append(stack, name)

		if n, ok := g.nodes[name]; ok {
			for _, dep := range n.Dependencies {
				switch state[dep] {
				case visiting:
					for i, s := range stack {
						if s == dep {
							cycle = append(append([]string(nil), stack[i:]...), dep)
							return true
						}
					}
				case unvisited:
					if visit(dep) {
						return true
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return false
	}

	if visit(start) {
		return cycle
	}

	// start only leads into a cycle; search from every unfinished node.
	for _, name := range g.order {
		if state[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return []string{start}
}

// CalculateDepths sets Depth on every node: 0 for leaves, one more than
// the deepest dependency otherwise, -1 for nodes on or above a cycle.
func (g *Graph) CalculateDepths() {
	g.mu.Lock()
	defer g.mu.Unlock()

	sorted, rest := g.kahn()
	for _, name := range rest {
		g.nodes[name].Depth = -1
	}
	for _, name := range sorted {
		node := g.nodes[name]
		node.Depth = 0
		for _, dep := range node.Dependencies {
			if d, ok := g.nodes[dep]; ok && d.Depth+1 > node.Depth {
				node.Depth = d.Depth + 1
			}
		}
	}
}

// String returns a short description of the node.
func (n *Node) String() string {
	return fmt.Sprintf("Node{%s, deps:%d, dependents:%d, depth:%d}",
		n.Name, len(n.Dependencies), len(n.Dependents), n.Depth)
}

// sortedAttributes returns the attribute keys in lexical order.
func (n *Node) sortedAttributes() []string {
	keys := make([]string, 0, len(n.Attributes))
	for k := range n.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
