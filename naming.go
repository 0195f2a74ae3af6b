package godi

import (
	"reflect"
	"sync"
)

// namingSubsystem indexes handlers by component name, by service type and
// by open generic service definition. Lookups that miss locally fall back
// to the parent kernel's naming subsystem; parent results come after local
// ones.
type namingSubsystem struct {
	mu        sync.RWMutex
	byName    map[string]Handler
	byService map[reflect.Type][]Handler
	byOpen    map[OpenType][]Handler
	order     []Handler

	parent func() *namingSubsystem
}

func newNamingSubsystem(parent func() *namingSubsystem) *namingSubsystem {
	return &namingSubsystem{
		byName:    make(map[string]Handler),
		byService: make(map[reflect.Type][]Handler),
		byOpen:    make(map[OpenType][]Handler),
		parent:    parent,
	}
}

func (n *namingSubsystem) parentNaming() *namingSubsystem {
	if n.parent == nil {
		return nil
	}
	return n.parent()
}

// Register indexes h. It fails if the component name is already taken.
func (n *namingSubsystem) Register(h Handler) error {
	model := h.ComponentModel()

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.byName[model.Name]; exists {
		return DuplicateRegistrationError{Name: model.Name}
	}

	n.byName[model.Name] = h
	for _, s := range model.Services {
		n.byService[s] = append(n.byService[s], h)
	}
	if model.Generic != nil {
		n.byOpen[model.Generic.Service] = append(n.byOpen[model.Generic.Service], h)
	}
	n.order = append(n.order, h)
	return nil
}

// Unregister removes the named handler from every index.
func (n *namingSubsystem) Unregister(name string) (Handler, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := n.byName[name]
	if !ok {
		return nil, false
	}

	delete(n.byName, name)
	model := h.ComponentModel()
	for _, s := range model.Services {
		n.byService[s] = removeHandler(n.byService[s], h)
		if len(n.byService[s]) == 0 {
			delete(n.byService, s)
		}
	}
	if model.Generic != nil {
		key := model.Generic.Service
		n.byOpen[key] = removeHandler(n.byOpen[key], h)
		if len(n.byOpen[key]) == 0 {
			delete(n.byOpen, key)
		}
	}
	n.order = removeHandler(n.order, h)
	return h, true
}

func removeHandler(handlers []Handler, h Handler) []Handler {
	out := handlers[:0:0]
	for _, x := range handlers {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// GetHandler returns the handler registered under name.
func (n *namingSubsystem) GetHandler(name string) Handler {
	n.mu.RLock()
	h, ok := n.byName[name]
	n.mu.RUnlock()
	if ok {
		return h
	}

	if p := n.parentNaming(); p != nil {
		return p.GetHandler(name)
	}
	return nil
}

// GetHandlerForService returns the first registered handler for t. An
// unmatched closed generic type falls back to the open generic handler.
func (n *namingSubsystem) GetHandlerForService(t reflect.Type) Handler {
	if hs := n.localHandlers(t); len(hs) > 0 {
		return hs[0]
	}
	if p := n.parentNaming(); p != nil {
		return p.GetHandlerForService(t)
	}
	return nil
}

// GetHandlers returns every handler for t, local first.
func (n *namingSubsystem) GetHandlers(t reflect.Type) []Handler {
	handlers := n.localHandlers(t)
	if p := n.parentNaming(); p != nil {
		handlers = append(handlers, p.GetHandlers(t)...)
	}
	return handlers
}

// localHandlers returns the exact handlers for t, then open generic
// handlers able to serve it.
func (n *namingSubsystem) localHandlers(t reflect.Type) []Handler {
	n.mu.RLock()
	defer n.mu.RUnlock()

	exact := n.byService[t]
	var open []Handler
	if len(n.byOpen) > 0 {
		if key, _, ok := openTypeOf(t); ok {
			open = n.byOpen[key]
		}
	}

	out := make([]Handler, 0, len(exact)+len(open))
	out = append(out, exact...)
	return append(out, open...)
}

// GetAssignableHandlers returns every handler whose service is assignable
// to t, in registration order, followed by the parent's.
func (n *namingSubsystem) GetAssignableHandlers(t reflect.Type) []Handler {
	openKey, _, isGeneric := openTypeOf(t)

	n.mu.RLock()
	var out []Handler
	for _, h := range n.order {
		model := h.ComponentModel()
		if model.Generic != nil {
			if isGeneric && model.Generic.Service == openKey {
				out = append(out, h)
			}
			continue
		}
		for _, s := range model.Services {
			if s == t || s.AssignableTo(t) {
				out = append(out, h)
				break
			}
		}
	}
	n.mu.RUnlock()

	if p := n.parentNaming(); p != nil {
		out = append(out, p.GetAssignableHandlers(t)...)
	}
	return out
}

// Handlers returns the local handlers in registration order.
func (n *namingSubsystem) Handlers() []Handler {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Handler, len(n.order))
	copy(out, n.order)
	return out
}

// Contains reports whether name is registered locally or in a parent.
func (n *namingSubsystem) Contains(name string) bool {
	return n.GetHandler(name) != nil
}

// Count returns the number of local handlers.
func (n *namingSubsystem) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.order)
}
