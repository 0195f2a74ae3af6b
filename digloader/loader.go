// Package digloader lets a godi kernel pull components it does not know
// from a go.uber.org/dig container.
//
// Example:
//
//	c := dig.New()
//	_ = c.Provide(NewDatabase)
//
//	kernel := godi.NewKernel(godi.WithComponentLoader(digloader.New(c)))
//	db, err := godi.Resolve[*Database](kernel)
package digloader

import (
	"fmt"
	"reflect"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/junioryono/godi/v5"
)

// Loader is a godi.ComponentLoader backed by a dig container. Values built
// by dig are registered as instances: dig keeps ownership and the kernel
// never disposes them.
type Loader struct {
	container *dig.Container
	logger    *zap.Logger
	prefix    string
}

var _ godi.ComponentLoader = (*Loader)(nil)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger of the loader.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithNamePrefix sets the prefix of the component names given to loaded
// values requested by type. The default is "dig:".
func WithNamePrefix(prefix string) Option {
	return func(l *Loader) {
		l.prefix = prefix
	}
}

// New returns a loader serving values from c.
func New(c *dig.Container, opts ...Option) *Loader {
	l := &Loader{
		container: c,
		logger:    zap.NewNop(),
		prefix:    "dig:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds the requested value with dig and returns an instance
// registration for it. A request by name looks up the dig value provided
// with dig.Name(name).
func (l *Loader) Load(name string, service reflect.Type) godi.Registration {
	if service == nil {
		return nil
	}

	value, err := l.invoke(name, service)
	if err != nil {
		l.logger.Debug("dig cannot provide component",
			zap.String("name", name),
			zap.Stringer("service", service),
			zap.Error(err))
		return nil
	}
	if value == nil {
		return nil
	}

	componentName := name
	if componentName == "" {
		componentName = l.prefix + service.String()
	}

	l.logger.Debug("loaded component from dig",
		zap.String("component", componentName),
		zap.Stringer("service", service))

	return godi.For(service).Instance(value).Named(componentName)
}

// invoke asks dig for a value of type t, optionally named, through a
// parameter object built at runtime.
func (l *Loader) invoke(name string, t reflect.Type) (any, error) {
	field := reflect.StructField{Name: "Value", Type: t}
	if name != "" {
		field.Tag = reflect.StructTag(fmt.Sprintf(`name:%q`, name))
	}

	param := reflect.StructOf([]reflect.StructField{
		{Name: "In", Type: reflect.TypeFor[dig.In](), Anonymous: true},
		field,
	})

	var out any
	fn := reflect.MakeFunc(reflect.FuncOf([]reflect.Type{param}, nil, false), func(args []reflect.Value) []reflect.Value {
		out = args[0].Field(1).Interface()
		return nil
	})

	if err := l.container.Invoke(fn.Interface()); err != nil {
		return nil, err
	}
	return out, nil
}
