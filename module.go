package godi

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
)

// ModuleOption represents a registration action within a module.
type ModuleOption func(*Kernel) error

// NewModule creates a new module with the given name and builders.
// Modules are a way to group related component registrations together.
//
// Example:
//
//	var DatabaseModule = godi.NewModule("database",
//	    godi.AddSingleton(NewDatabaseConnection),
//	    godi.AddTransient(NewUserRepository),
//	)
//
//	var AppModule = godi.NewModule("app",
//	    DatabaseModule,
//	    godi.AddScoped(NewService, godi.Name("service")),
//	    godi.Add(godi.Component[Clock]().Instance(systemClock{})),
//	)
//
//	err := kernel.Install(AppModule)
func NewModule(name string, builders ...ModuleOption) ModuleOption {
	return func(k *Kernel) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(k); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// Install runs modules as one registration batch.
func (k *Kernel) Install(modules ...ModuleOption) error {
	done := k.OptimizeDependencyResolution()
	defer done()

	for _, m := range modules {
		if m == nil {
			continue
		}
		if err := m(k); err != nil {
			return err
		}
	}
	return nil
}

// Add creates a ModuleOption registering regs.
func Add(regs ...Registration) ModuleOption {
	return func(k *Kernel) error {
		return k.Register(regs...)
	}
}

// AddSingleton creates a ModuleOption registering a singleton constructor.
func AddSingleton(constructor any, opts ...AddOption) ModuleOption {
	return addWithLifestyle(constructor, Singleton, opts)
}

// AddScoped creates a ModuleOption registering a scoped constructor.
func AddScoped(constructor any, opts ...AddOption) ModuleOption {
	return addWithLifestyle(constructor, Scoped, opts)
}

// AddTransient creates a ModuleOption registering a transient constructor.
func AddTransient(constructor any, opts ...AddOption) ModuleOption {
	return addWithLifestyle(constructor, Transient, opts)
}

func addWithLifestyle(constructor any, l Lifestyle, opts []AddOption) ModuleOption {
	return func(k *Kernel) error {
		var o addOptions
		for _, opt := range opts {
			if opt != nil {
				opt.applyAddOption(&o)
			}
		}
		if err := o.Validate(); err != nil {
			return err
		}

		services := make([]reflect.Type, len(o.As))
		for i, iface := range o.As {
			services[i] = reflect.TypeOf(iface).Elem()
		}

		r := For(services...).Constructor(constructor, o.Params...).WithLifestyle(l)
		if o.Name != "" {
			r.Named(o.Name)
		}
		return k.Register(r)
	}
}

// An AddOption modifies the default behavior of AddSingleton, AddScoped, and AddTransient.
type AddOption interface {
	applyAddOption(*addOptions)
}

type addOptions struct {
	Name   string
	As     []any
	Params []string
}

func (o *addOptions) Validate() error {
	if strings.ContainsRune(o.Name, '`') {
		return fmt.Errorf("invalid godi.Name(%q): names cannot contain backquotes", o.Name)
	}

	for _, i := range o.As {
		t := reflect.TypeOf(i)

		if t == nil {
			return fmt.Errorf("invalid godi.As(nil): argument must be a pointer to an interface")
		}

		if t.Kind() != reflect.Ptr {
			return fmt.Errorf("invalid godi.As(%v): argument must be a pointer to an interface", t)
		}

		pointingTo := t.Elem()
		if pointingTo.Kind() != reflect.Interface {
			return fmt.Errorf("invalid godi.As(*%v): argument must be a pointer to an interface", pointingTo)
		}
	}
	return nil
}

// Name is an AddOption that registers the component under the given name.
//
// Given,
//
//	func NewReadOnlyConnection(...) (*Connection, error)
//	func NewReadWriteConnection(...) (*Connection, error)
//
// The following registers two connections: one named "ro" and the other
// named "rw". Resolving *Connection returns the first registered.
//
//	godi.AddSingleton(NewReadOnlyConnection, godi.Name("ro"))
//	godi.AddSingleton(NewReadWriteConnection, godi.Name("rw"))
func Name(name string) AddOption {
	return addNameOption(name)
}

type addNameOption string

func (o addNameOption) String() string {
	return fmt.Sprintf("Name(%q)", string(o))
}

func (o addNameOption) applyAddOption(opt *addOptions) {
	opt.Name = string(o)
}

// Params is an AddOption naming the constructor parameters positionally.
// Names select named components and configuration keys.
func Params(names ...string) AddOption {
	return addParamsOption(names)
}

type addParamsOption []string

func (o addParamsOption) String() string {
	return fmt.Sprintf("Params(%s)", strings.Join(o, ", "))
}

func (o addParamsOption) applyAddOption(opt *addOptions) {
	opt.Params = append(opt.Params, o...)
}

// As is an AddOption that specifies that the value produced by the
// constructor implements one or more other interfaces and is provided
// to the kernel as those interfaces.
//
// As expects one or more pointers to the implemented interfaces. Values
// produced by constructors will be then available in the kernel as
// implementations of all of those interfaces, but not as the value itself.
//
// For example, the following will make io.Reader and io.Writer available
// in the kernel, but not buffer.
//
//	godi.AddSingleton(newBuffer, godi.As(new(io.Reader), new(io.Writer)))
func As(i ...any) AddOption {
	return addAsOption(i)
}

type addAsOption []any

func (o addAsOption) String() string {
	buf := bytes.NewBufferString("As(")
	for i, iface := range o {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(reflect.TypeOf(iface).Elem().String())
	}
	buf.WriteString(")")
	return buf.String()
}

func (o addAsOption) applyAddOption(opts *addOptions) {
	opts.As = append(opts.As, o...)
}
