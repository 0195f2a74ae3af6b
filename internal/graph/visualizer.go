package graph

import (
	"fmt"
	"io"
	"strings"
)

// Visualizer renders a graph.
type Visualizer struct {
	graph *Graph
}

// NewVisualizer creates a new graph visualizer
func NewVisualizer(graph *Graph) *Visualizer {
	return &Visualizer{graph: graph}
}

// WriteDOT writes the graph in Graphviz DOT format. Edges point from a
// component to its dependencies.
func (v *Visualizer) WriteDOT(w io.Writer) error {
	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	var b strings.Builder
	b.WriteString("digraph components {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	ids := make(map[string]string, len(v.graph.order))
	for i, name := range v.graph.order {
		id := fmt.Sprintf("n%d", i)
		ids[name] = id

		node := v.graph.nodes[name]
		fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q, style=filled];\n",
			id, v.label(node), v.color(node))
	}

	for _, name := range v.graph.order {
		for _, dep := range v.graph.nodes[name].Dependencies {
			fmt.Fprintf(&b, "  %s -> %s;\n", ids[name], ids[dep])
		}
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText writes the graph grouped by depth, leaves first.
func (v *Visualizer) WriteText(w io.Writer) error {
	v.graph.CalculateDepths()

	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Component Graph:\n")
	b.WriteString("================\n\n")

	groups := make(map[int][]*Node)
	maxDepth := -1
	for _, name := range v.graph.order {
		node := v.graph.nodes[name]
		groups[node.Depth] = append(groups[node.Depth], node)
		if node.Depth > maxDepth {
			maxDepth = node.Depth
		}
	}

	for depth := 0; depth <= maxDepth; depth++ {
		nodes, ok := groups[depth]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Level %d:\n", depth)
		b.WriteString("--------\n")
		for _, node := range nodes {
			v.writeNode(&b, node, "  ")
		}
		b.WriteString("\n")
	}

	if nodes, ok := groups[-1]; ok {
		b.WriteString("Nodes in Cycles:\n")
		b.WriteString("----------------\n")
		for _, node := range nodes {
			v.writeNode(&b, node, "  ")
		}
		b.WriteString("\n")
	}

	v.writeStatistics(&b)

	_, err := io.WriteString(w, b.String())
	return err
}

func (v *Visualizer) label(node *Node) string {
	var parts []string
	parts = append(parts, node.Name)
	for _, k := range node.sortedAttributes() {
		parts = append(parts, k+": "+node.Attributes[k])
	}
	return strings.Join(parts, "\n")
}

// color picks a fill color from the state and lifestyle attributes.
func (v *Visualizer) color(node *Node) string {
	if node.placeholder {
		return "lightgray"
	}
	if node.Attributes["state"] == "WaitingDependency" {
		return "salmon"
	}

	switch node.Attributes["lifestyle"] {
	case "Singleton":
		return "lightblue"
	case "Scoped":
		return "lightgreen"
	case "Transient":
		return "lightyellow"
	case "Pooled":
		return "plum"
	default:
		return "white"
	}
}

func (v *Visualizer) writeNode(b *strings.Builder, node *Node, indent string) {
	fmt.Fprintf(b, "%s%s\n", indent, node.Name)
	if node.placeholder {
		fmt.Fprintf(b, "%s  (not registered)\n", indent)
	}
	for _, k := range node.sortedAttributes() {
		fmt.Fprintf(b, "%s  %s: %s\n", indent, k, node.Attributes[k])
	}
	if len(node.Dependencies) > 0 {
		fmt.Fprintf(b, "%s  Dependencies: [%s]\n", indent, strings.Join(node.Dependencies, ", "))
	}
	if len(node.Dependents) > 0 {
		fmt.Fprintf(b, "%s  Dependents: [%s]\n", indent, strings.Join(node.Dependents, ", "))
	}
}

func (v *Visualizer) writeStatistics(b *strings.Builder) {
	edges := 0
	roots, leaves := 0, 0
	for _, node := range v.graph.nodes {
		edges += len(node.Dependencies)
		if len(node.Dependents) == 0 {
			roots++
		}
		if len(node.Dependencies) == 0 {
			leaves++
		}
	}

	b.WriteString("Statistics:\n")
	b.WriteString("-----------\n")
	fmt.Fprintf(b, "  Total nodes: %d\n", len(v.graph.nodes))
	fmt.Fprintf(b, "  Total edges: %d\n", edges)
	fmt.Fprintf(b, "  Root nodes (no dependents): %d\n", roots)
	fmt.Fprintf(b, "  Leaf nodes (no dependencies): %d\n", leaves)

	if _, rest := v.graph.kahn(); len(rest) == 0 {
		b.WriteString("  Cycles: None (graph is acyclic)\n")
	} else {
		b.WriteString("  Cycles: DETECTED (graph contains circular dependencies)\n")
	}
}
