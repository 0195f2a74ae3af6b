package godi

import (
	"fmt"
)

// DiagnosticKind classifies a configuration problem.
type DiagnosticKind int

const (
	// MisconfiguredComponent is a component still waiting for dependencies.
	MisconfiguredComponent DiagnosticKind = iota

	// LifestyleMismatch is a singleton holding a scoped or pooled
	// dependency, which then outlives its scope or never returns to its pool.
	LifestyleMismatch
)

func (k DiagnosticKind) String() string {
	switch k {
	case MisconfiguredComponent:
		return "MisconfiguredComponent"
	case LifestyleMismatch:
		return "LifestyleMismatch"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic is one potential problem found by Kernel.Diagnostics.
type Diagnostic struct {
	Kind      DiagnosticKind
	Component string

	// Dependency is the offending dependency of a LifestyleMismatch.
	Dependency string

	// Err explains a MisconfiguredComponent.
	Err error
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case LifestyleMismatch:
		return fmt.Sprintf("%s: singleton %s depends on %s", d.Kind, d.Component, d.Dependency)
	default:
		return fmt.Sprintf("%s: %v", d.Kind, d.Err)
	}
}

// Diagnostics reports potentially misconfigured components and lifestyle
// mismatches among the local components, in registration order.
func (k *Kernel) Diagnostics() []Diagnostic {
	var out []Diagnostic

	check := func(h *defaultHandler) {
		if h.CurrentState() == WaitingDependency {
			out = append(out, Diagnostic{
				Kind:      MisconfiguredComponent,
				Component: h.model.Name,
				Err:       h.missingDependencies(make(map[Handler]bool)),
			})
		}

		if h.model.Lifestyle != Singleton {
			return
		}
		for _, name := range k.dependencyNames(h) {
			dep := k.naming.GetHandler(name)
			if dep == nil {
				continue
			}
			switch dep.ComponentModel().Lifestyle {
			case Scoped, Pooled:
				out = append(out, Diagnostic{
					Kind:       LifestyleMismatch,
					Component:  h.model.Name,
					Dependency: name,
				})
			}
		}
	}

	for _, h := range k.naming.Handlers() {
		switch h := h.(type) {
		case *defaultHandler:
			check(h)
		case *genericHandler:
			for _, c := range h.ClosedHandlers() {
				check(c.(*defaultHandler))
			}
		}
	}
	return out
}
