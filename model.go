package godi

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// DependencyKind tells whether a dependency is satisfied by another component
// or by a plain value.
type DependencyKind int

const (
	// ServiceDependency is satisfied by resolving another component.
	ServiceDependency DependencyKind = iota

	// ValueDependency is satisfied by a primitive or configuration value.
	ValueDependency
)

func (k DependencyKind) String() string {
	switch k {
	case ServiceDependency:
		return "Service"
	case ValueDependency:
		return "Parameter"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// HandlerState is the state of a component handler.
type HandlerState int

const (
	// WaitingDependency means at least one required dependency cannot be satisfied.
	WaitingDependency HandlerState = iota

	// Valid means every required dependency can currently be satisfied.
	Valid
)

func (s HandlerState) String() string {
	switch s {
	case WaitingDependency:
		return "WaitingDependency"
	case Valid:
		return "Valid"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// DependencyModel describes one required input of a component.
// It is read-only after the component is registered.
type DependencyModel struct {
	// Name is the declared name of the parameter, field or property.
	Name string

	// Type is the type the dependency must be assignable to.
	Type reflect.Type

	// Kind tells whether this is a service reference or a value.
	Kind DependencyKind

	// ComponentName, when set, selects a component by name instead of by type.
	ComponentName string

	// ConfigKey is the key looked up in the kernel's ConfigSource for value
	// dependencies. Defaults to Name.
	ConfigKey string

	// Optional dependencies never keep a handler waiting.
	Optional bool

	// HasDefault and Default carry a declared default value.
	HasDefault bool
	Default    any

	// Index is the parameter position, or the field index for parameter
	// objects and properties.
	Index int

	// IsProperty marks property (field) injection.
	IsProperty bool
}

func (d *DependencyModel) String() string {
	if d.ComponentName != "" {
		return fmt.Sprintf("%s %q (%s)", d.Kind, d.Name, d.ComponentName)
	}
	return fmt.Sprintf("%s %q of type %s", d.Kind, d.Name, formatType(d.Type))
}

// configKey returns the configuration key for the dependency.
func (d *DependencyModel) configKey() string {
	if d.ConfigKey != "" {
		return d.ConfigKey
	}
	return d.Name
}

// isRequired reports whether the dependency keeps a handler waiting when unmet.
func (d *DependencyModel) isRequired() bool {
	return !d.Optional && !d.HasDefault
}

// ConstructorCandidate is one way of constructing a component.
type ConstructorCandidate struct {
	// Fn is the constructor function.
	Fn reflect.Value

	// Dependencies are the constructor's inputs, in parameter order.
	Dependencies []*DependencyModel

	// ParamObject is set when the constructor takes a single In struct.
	ParamObject reflect.Type

	// HasErrorReturn reports whether the last return value is an error.
	HasErrorReturn bool
}

// Arity returns the number of dependencies of the constructor.
func (c *ConstructorCandidate) Arity() int {
	return len(c.Dependencies)
}

func (c *ConstructorCandidate) String() string {
	return c.Fn.Type().String()
}

// sortedDependencyNames returns dependency names in lexical order.
func (c *ConstructorCandidate) sortedDependencyNames() []string {
	names := make([]string, len(c.Dependencies))
	for i, d := range c.Dependencies {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}

// FactoryFunc builds a component instance by hand. The kernel and the
// current creation context are available for nested resolution.
type FactoryFunc func(k *Kernel, ctx *CreationContext) (any, error)

// DynamicParametersFunc supplies arguments computed at resolution time.
type DynamicParametersFunc func(k *Kernel, ctx *CreationContext, args *Arguments) error

// CreationConcern runs after an instance has been built and injected.
type CreationConcern func(instance any) error

// DestructionConcern runs when an instance is decommissioned.
type DestructionConcern func(instance any) error

// ComponentModel is the metadata describing one registered component.
//
// A ComponentModel is built once by a Registration. Facilities may append
// interceptors and extensions until the first resolution; after that the
// model is frozen.
type ComponentModel struct {
	Name           string
	Services       []reflect.Type
	Implementation reflect.Type
	Lifestyle      Lifestyle

	Constructors []*ConstructorCandidate
	Properties   []*DependencyModel

	Overrides         []DependencyOverride
	DynamicParameters []DynamicParametersFunc

	Factory     FactoryFunc
	Instance    any
	HasInstance bool

	OnCreate  []CreationConcern
	OnDestroy []DestructionConcern

	PoolInitialSize int
	PoolMaxSize     int

	// PropagateArguments passes per-call arguments on to dependencies.
	PropagateArguments bool

	// Generic is set for open generic registrations.
	Generic *GenericModel

	mu           sync.RWMutex
	interceptors []string
	extensions   map[string]any
	frozen       atomic.Bool
}

// AddInterceptor attaches an interceptor name to the model.
func (m *ComponentModel) AddInterceptor(names ...string) error {
	if m.frozen.Load() {
		return ModelFrozenError{Component: m.Name}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.interceptors = append(m.interceptors, names...)
	return nil
}

// Interceptors returns a copy of the model's interceptor names.
func (m *ComponentModel) Interceptors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.interceptors))
	copy(out, m.interceptors)
	return out
}

// HasInterceptors reports whether any interceptor is attached.
func (m *ComponentModel) HasInterceptors() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.interceptors) > 0
}

// SetExtension stores facility-specific metadata on the model.
func (m *ComponentModel) SetExtension(key string, value any) error {
	if m.frozen.Load() {
		return ModelFrozenError{Component: m.Name}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.extensions == nil {
		m.extensions = make(map[string]any)
	}
	m.extensions[key] = value
	return nil
}

// Extension returns facility-specific metadata stored on the model.
func (m *ComponentModel) Extension(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.extensions[key]
	return v, ok
}

// Frozen reports whether the model has been used for resolution.
func (m *ComponentModel) Frozen() bool {
	return m.frozen.Load()
}

func (m *ComponentModel) freeze() {
	m.frozen.Store(true)
}

// Supports reports whether the component declares service t.
func (m *ComponentModel) Supports(t reflect.Type) bool {
	for _, s := range m.Services {
		if s == t {
			return true
		}
	}
	return false
}

// allDependencies returns every constructor and property dependency.
func (m *ComponentModel) allDependencies() []*DependencyModel {
	var deps []*DependencyModel
	seen := make(map[*DependencyModel]struct{})
	for _, c := range m.Constructors {
		for _, d := range c.Dependencies {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				deps = append(deps, d)
			}
		}
	}
	return append(deps, m.Properties...)
}

// requiresDecommission reports whether releasing instance must run concerns.
func (m *ComponentModel) requiresDecommission(instance any) bool {
	if len(m.OnDestroy) > 0 || m.Lifestyle == Pooled {
		return true
	}
	if m.HasInstance {
		return false
	}
	switch instance.(type) {
	case Disposable, DisposableWithContext:
		return true
	}
	return false
}

// findOverride returns the registration override matching dep, if any.
func (m *ComponentModel) findOverride(dep *DependencyModel) (DependencyOverride, bool) {
	for _, o := range m.Overrides {
		if o.matches(dep) {
			return o, true
		}
	}
	return DependencyOverride{}, false
}

func (m *ComponentModel) String() string {
	return m.Name
}
