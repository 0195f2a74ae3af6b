package godi

import "reflect"

// DependencyOverride replaces how one dependency of a component is
// satisfied. Build overrides with OnValue, OnComponent and OnConfig.
type DependencyOverride struct {
	// Name matches DependencyModel.Name when set.
	Name string

	// Type matches DependencyModel.Type when set.
	Type reflect.Type

	// Value is the fixed value to inject when HasValue is true.
	Value    any
	HasValue bool

	// ComponentName resolves the dependency from a named component.
	ComponentName string

	// ConfigKey reads the dependency from the kernel's ConfigSource.
	ConfigKey string
}

func (o DependencyOverride) matches(dep *DependencyModel) bool {
	if o.Name != "" && o.Name != dep.Name {
		return false
	}
	if o.Type != nil && o.Type != dep.Type {
		return false
	}
	return o.Name != "" || o.Type != nil
}

// OnValue supplies a fixed value for the dependency with the given name.
func OnValue(name string, value any) DependencyOverride {
	return DependencyOverride{Name: name, Value: value, HasValue: true}
}

// OnValueOf supplies a fixed value for every dependency of type T.
func OnValueOf[T any](value T) DependencyOverride {
	return DependencyOverride{Type: reflect.TypeFor[T](), Value: value, HasValue: true}
}

// OnComponent satisfies the named dependency from the named component.
func OnComponent(name, componentName string) DependencyOverride {
	return DependencyOverride{Name: name, ComponentName: componentName}
}

// OnComponentFor satisfies every dependency of type T from the named component.
func OnComponentFor[T any](componentName string) DependencyOverride {
	return DependencyOverride{Type: reflect.TypeFor[T](), ComponentName: componentName}
}

// OnConfig reads the named dependency from the configuration key.
func OnConfig(name, key string) DependencyOverride {
	return DependencyOverride{Name: name, ConfigKey: key}
}
