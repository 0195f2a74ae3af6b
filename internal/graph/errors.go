package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a cycle in the component graph. Path starts and ends
// with the same component.
type CycleError struct {
	Path []string
}

func (e CycleError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	for i, node := range e.Path {
		b.WriteString(fmt.Sprintf("    %s", node))
		if i == len(e.Path)-1 && i > 0 {
			b.WriteString(" (cycle)")
		}
		b.WriteString("\n")
		if i < len(e.Path)-1 {
			b.WriteString("      ↓\n")
		}
	}

	return b.String()
}
