package godi

import "reflect"

// Arguments carries inline dependency values for one resolution.
// Values are matched by dependency name first, then by exact type.
type Arguments struct {
	named map[string]any
	typed map[reflect.Type]any
}

// NewArguments returns an empty argument set.
func NewArguments() *Arguments {
	return &Arguments{}
}

// Set adds a value matched by dependency name.
func (a *Arguments) Set(name string, value any) *Arguments {
	if a.named == nil {
		a.named = make(map[string]any)
	}
	a.named[name] = value
	return a
}

// SetTyped adds a value matched by its dynamic type.
func (a *Arguments) SetTyped(value any) *Arguments {
	return a.SetType(reflect.TypeOf(value), value)
}

// SetType adds a value matched by the given type, typically an interface.
func (a *Arguments) SetType(t reflect.Type, value any) *Arguments {
	if t == nil {
		return a
	}
	if a.typed == nil {
		a.typed = make(map[reflect.Type]any)
	}
	a.typed[t] = value
	return a
}

// Len returns the number of values in the set.
func (a *Arguments) Len() int {
	if a == nil {
		return 0
	}
	return len(a.named) + len(a.typed)
}

// Lookup returns the value supplied for dep.
func (a *Arguments) Lookup(dep *DependencyModel) (any, bool) {
	if a == nil {
		return nil, false
	}

	if v, ok := a.named[dep.Name]; ok && assignable(v, dep.Type) {
		return v, true
	}

	if v, ok := a.typed[dep.Type]; ok {
		return v, true
	}

	return nil, false
}

// merge returns a new set with other's values layered over a's.
func (a *Arguments) merge(other *Arguments) *Arguments {
	if other.Len() == 0 {
		return a
	}
	if a.Len() == 0 {
		return other
	}

	out := NewArguments()
	for _, src := range []*Arguments{a, other} {
		for k, v := range src.named {
			out.Set(k, v)
		}
		for k, v := range src.typed {
			out.SetType(k, v)
		}
	}
	return out
}

// assignable reports whether v can be passed where t is expected.
func assignable(v any, t reflect.Type) bool {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		}
		return false
	}
	return reflect.TypeOf(v).AssignableTo(t)
}
