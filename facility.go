package godi

import (
	"reflect"
)

// Facility extends the kernel. Init runs when the facility is added and
// typically subscribes to kernel events; Close runs when the kernel is
// closed, in reverse order of addition.
type Facility interface {
	Init(k *Kernel) error
	Close() error
}

// ComponentLoader registers components on demand. The kernel asks its
// loaders, in order, when a requested component is not registered.
type ComponentLoader interface {
	// Load returns a registration able to serve the name or service, or
	// nil when the loader cannot help. name is empty for lookups by type.
	Load(name string, service reflect.Type) Registration
}

// ComponentLoaderFunc adapts a function to ComponentLoader.
type ComponentLoaderFunc func(name string, service reflect.Type) Registration

func (f ComponentLoaderFunc) Load(name string, service reflect.Type) Registration {
	return f(name, service)
}

// ConfigSource supplies values for value dependencies.
type ConfigSource interface {
	Get(key string) (string, bool)
}

// ConfigMap is a ConfigSource backed by a map.
type ConfigMap map[string]string

func (m ConfigMap) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
