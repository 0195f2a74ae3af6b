package godi

import (
	"fmt"
	"reflect"

	"github.com/junioryono/godi/v5/internal/reflection"
)

// In is embedded in a struct to turn it into a parameter object: every
// exported field becomes one dependency of the constructor.
//
// Example:
//
//	type ServiceParams struct {
//	    godi.In
//
//	    DB     *sql.DB
//	    Cache  Cache  `optional:"true"`
//	    Reader Store  `name:"replica"`
//	    DSN    string `config:"DATABASE_URL"`
//	}
type In = reflection.In

// Registration produces a component model for the kernel.
// Build registrations with Component, For and Open.
type Registration interface {
	buildModel(k *Kernel) (*ComponentModel, error)
}

type constructorDecl struct {
	fn    any
	names []string
}

// ComponentRegistration is a fluent component description.
//
// Example:
//
//	err := kernel.Register(
//	    godi.Component[Store]().ImplementedBy(NewSQLStore).LifestyleSingleton(),
//	    godi.Component[Handler]().ImplementedBy(NewHandler).Named("api").LifestyleTransient(),
//	)
type ComponentRegistration struct {
	services []reflect.Type
	open     *OpenType
	name     string

	constructors []constructorDecl
	instance     any
	hasInstance  bool
	factory      FactoryFunc

	lifestyle    Lifestyle
	lifestyleSet bool
	poolInitial  int
	poolMax      int

	overrides    []DependencyOverride
	dynamic      []DynamicParametersFunc
	interceptors []string
	extensions   map[string]any
	onCreate     []CreationConcern
	onDestroy    []DestructionConcern
	propagate    bool
	strategy     GenericImplementationMatchingStrategy

	err error
}

// Component starts a registration for service type T.
func Component[T any]() *ComponentRegistration {
	return For(reflect.TypeFor[T]())
}

// For starts a registration for one or more service types.
func For(services ...reflect.Type) *ComponentRegistration {
	r := &ComponentRegistration{}
	for _, s := range services {
		if s == nil {
			r.fail(ErrServiceTypeNil)
			continue
		}
		r.services = append(r.services, s)
	}
	return r
}

// Open starts a registration for an open generic service. S is any
// instantiation of the generic service, conventionally with any as the
// type arguments: Open[IRepo[any]]().
func Open[S any]() *ComponentRegistration {
	r := &ComponentRegistration{}
	open, ok := OpenTypeOf[S]()
	if !ok {
		r.fail(fmt.Errorf("%s is not an instantiated generic type", formatType(reflect.TypeFor[S]())))
		return r
	}
	r.open = &open
	return r
}

func (r *ComponentRegistration) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Forward adds more service types served by the same component.
func (r *ComponentRegistration) Forward(services ...reflect.Type) *ComponentRegistration {
	for _, s := range services {
		if s == nil {
			r.fail(ErrServiceTypeNil)
			continue
		}
		r.services = append(r.services, s)
	}
	return r
}

// ImplementedBy sets the constructors of the component. Each constructor
// is a function returning (T) or (T, error). With several constructors the
// kernel picks the greediest satisfiable one at resolution time.
// For open registrations each constructor is a closed instantiation, e.g.
// NewRepo[int].
func (r *ComponentRegistration) ImplementedBy(constructors ...any) *ComponentRegistration {
	for _, c := range constructors {
		r.constructors = append(r.constructors, constructorDecl{fn: c})
	}
	return r
}

// Constructor adds one constructor and names its parameters positionally.
// Names select named components and configuration keys.
func (r *ComponentRegistration) Constructor(fn any, names ...string) *ComponentRegistration {
	r.constructors = append(r.constructors, constructorDecl{fn: fn, names: names})
	return r
}

// Instance registers an existing instance. The kernel never disposes it.
func (r *ComponentRegistration) Instance(instance any) *ComponentRegistration {
	if instance == nil {
		r.fail(fmt.Errorf("instance cannot be nil"))
		return r
	}
	r.instance = instance
	r.hasInstance = true
	return r
}

// UsingFactory builds the component with a factory function.
func (r *ComponentRegistration) UsingFactory(factory FactoryFunc) *ComponentRegistration {
	if factory == nil {
		r.fail(ErrConstructorNil)
		return r
	}
	r.factory = factory
	return r
}

// Named sets the unique component name.
func (r *ComponentRegistration) Named(name string) *ComponentRegistration {
	if name == "" {
		r.fail(ErrNameEmpty)
		return r
	}
	r.name = name
	return r
}

// WithLifestyle sets the lifestyle of the component.
func (r *ComponentRegistration) WithLifestyle(l Lifestyle) *ComponentRegistration {
	if !l.IsValid() {
		r.fail(LifestyleError{Value: l})
		return r
	}
	r.lifestyle = l
	r.lifestyleSet = true
	return r
}

func (r *ComponentRegistration) LifestyleSingleton() *ComponentRegistration {
	return r.WithLifestyle(Singleton)
}

func (r *ComponentRegistration) LifestyleTransient() *ComponentRegistration {
	return r.WithLifestyle(Transient)
}

func (r *ComponentRegistration) LifestyleScoped() *ComponentRegistration {
	return r.WithLifestyle(Scoped)
}

// LifestylePooled sets the pooled lifestyle. initialSize instances are
// created on first use; at most maxSize released instances are kept.
func (r *ComponentRegistration) LifestylePooled(initialSize, maxSize int) *ComponentRegistration {
	if initialSize < 0 || maxSize < 1 || initialSize > maxSize {
		r.fail(fmt.Errorf("invalid pool size: initial %d, max %d", initialSize, maxSize))
		return r
	}
	r.poolInitial = initialSize
	r.poolMax = maxSize
	return r.WithLifestyle(Pooled)
}

// DependsOn overrides how dependencies of the component are satisfied.
func (r *ComponentRegistration) DependsOn(overrides ...DependencyOverride) *ComponentRegistration {
	r.overrides = append(r.overrides, overrides...)
	return r
}

// DynamicParameters registers a function computing arguments at resolution time.
func (r *ComponentRegistration) DynamicParameters(fn DynamicParametersFunc) *ComponentRegistration {
	if fn != nil {
		r.dynamic = append(r.dynamic, fn)
	}
	return r
}

// Interceptors attaches interceptor names. A ProxyFactory configured on
// the kernel wraps instances of components with interceptors.
func (r *ComponentRegistration) Interceptors(names ...string) *ComponentRegistration {
	r.interceptors = append(r.interceptors, names...)
	return r
}

// ExtendedProperty stores facility metadata on the model.
func (r *ComponentRegistration) ExtendedProperty(key string, value any) *ComponentRegistration {
	if r.extensions == nil {
		r.extensions = make(map[string]any)
	}
	r.extensions[key] = value
	return r
}

// OnCreate adds a concern run after the instance is built and injected.
func (r *ComponentRegistration) OnCreate(fn CreationConcern) *ComponentRegistration {
	if fn != nil {
		r.onCreate = append(r.onCreate, fn)
	}
	return r
}

// OnDestroy adds a concern run when the instance is decommissioned.
func (r *ComponentRegistration) OnDestroy(fn DestructionConcern) *ComponentRegistration {
	if fn != nil {
		r.onDestroy = append(r.onDestroy, fn)
	}
	return r
}

// PropagateArguments passes per-call arguments on to the component's dependencies.
func (r *ComponentRegistration) PropagateArguments() *ComponentRegistration {
	r.propagate = true
	return r
}

// MatchingStrategy sets the strategy closing an open implementation that
// has more type parameters than the service.
func (r *ComponentRegistration) MatchingStrategy(s GenericImplementationMatchingStrategy) *ComponentRegistration {
	if r.open == nil {
		r.fail(fmt.Errorf("matching strategy requires an open generic registration"))
		return r
	}
	r.strategy = s
	return r
}

func (r *ComponentRegistration) buildModel(k *Kernel) (*ComponentModel, error) {
	if r.err != nil {
		return nil, RegistrationError{Component: r.name, Cause: r.err}
	}

	model := &ComponentModel{
		Name:               r.name,
		Lifestyle:          k.defaultLifestyle,
		Overrides:          append([]DependencyOverride(nil), r.overrides...),
		DynamicParameters:  append([]DynamicParametersFunc(nil), r.dynamic...),
		OnCreate:           append([]CreationConcern(nil), r.onCreate...),
		OnDestroy:          append([]DestructionConcern(nil), r.onDestroy...),
		PoolInitialSize:    r.poolInitial,
		PoolMaxSize:        r.poolMax,
		PropagateArguments: r.propagate,
	}
	if r.lifestyleSet {
		model.Lifestyle = r.lifestyle
	}
	if model.Lifestyle == Pooled && model.PoolMaxSize == 0 {
		model.PoolInitialSize, model.PoolMaxSize = defaultPoolInitialSize, defaultPoolMaxSize
	}

	var err error
	if r.open != nil {
		err = r.buildOpen(k, model)
	} else {
		err = r.buildClosed(k, model)
	}
	if err != nil {
		return nil, RegistrationError{Component: model.Name, Cause: err}
	}

	if len(r.interceptors) > 0 {
		_ = model.AddInterceptor(r.interceptors...)
	}
	for key, v := range r.extensions {
		_ = model.SetExtension(key, v)
	}

	return model, nil
}

func (r *ComponentRegistration) buildClosed(k *Kernel, model *ComponentModel) error {
	sources := 0
	if len(r.constructors) > 0 {
		sources++
	}
	if r.hasInstance {
		sources++
	}
	if r.factory != nil {
		sources++
	}
	switch {
	case sources == 0:
		return ErrNoImplementation
	case sources > 1:
		return fmt.Errorf("registration must use exactly one of constructors, instance or factory")
	}

	switch {
	case r.hasInstance:
		model.Instance = r.instance
		model.HasInstance = true
		model.Implementation = reflect.TypeOf(r.instance)

	case r.factory != nil:
		model.Factory = r.factory
		if len(r.services) == 0 {
			return ErrNoServices
		}
		model.Implementation = r.services[0]

	default:
		for _, decl := range r.constructors {
			candidate, err := k.buildCandidate(decl.fn, decl.names...)
			if err != nil {
				return err
			}

			result := candidate.Fn.Type().Out(0)
			if model.Implementation == nil {
				model.Implementation = result
			} else if result != model.Implementation {
				return fmt.Errorf("constructor %s returns %s, other constructors return %s",
					formatType(candidate.Fn.Type()), formatType(result), formatType(model.Implementation))
			}
			model.Constructors = append(model.Constructors, candidate)
		}

		props, err := k.buildProperties(model.Implementation)
		if err != nil {
			return err
		}
		model.Properties = props
	}

	model.Services = append([]reflect.Type(nil), r.services...)
	if len(model.Services) == 0 {
		model.Services = []reflect.Type{model.Implementation}
	}

	for _, s := range model.Services {
		if !model.Implementation.AssignableTo(s) && !(r.factory != nil && s.Kind() == reflect.Interface) {
			return TypeMismatchError{
				Expected: s,
				Actual:   model.Implementation,
				Context:  "component implementation does not provide service",
			}
		}
	}

	if model.Name == "" {
		model.Name = model.Implementation.String()
	}
	return nil
}

func (r *ComponentRegistration) buildOpen(k *Kernel, model *ComponentModel) error {
	if len(r.constructors) == 0 {
		return ErrNoImplementation
	}
	if r.hasInstance || r.factory != nil {
		return fmt.Errorf("open generic components must be built by constructors")
	}

	generic := &GenericModel{
		Service:  *r.open,
		Strategy: r.strategy,
	}

	for i, decl := range r.constructors {
		candidate, err := k.buildCandidate(decl.fn, decl.names...)
		if err != nil {
			return err
		}

		result := candidate.Fn.Type().Out(0)
		implOpen, args, ok := openTypeOf(result)
		if !ok {
			return fmt.Errorf("constructor %s does not return an instantiated generic type", formatType(candidate.Fn.Type()))
		}
		if i == 0 {
			generic.Implementation = implOpen
		} else if implOpen != generic.Implementation {
			return fmt.Errorf("constructor %s returns %s, other constructors return %s",
				formatType(candidate.Fn.Type()), implOpen, generic.Implementation)
		}

		props, err := k.buildProperties(result)
		if err != nil {
			return err
		}
		generic.addInstantiation(args, &instantiation{constructor: candidate, properties: props})
	}

	model.Generic = generic
	if model.Name == "" {
		model.Name = generic.Implementation.base()
	}
	return nil
}

// buildCandidate analyzes a constructor into a candidate.
func (k *Kernel) buildCandidate(fn any, names ...string) (*ConstructorCandidate, error) {
	if fn == nil {
		return nil, ErrConstructorNil
	}

	info, err := k.analyzer.Analyze(fn, names...)
	if err != nil {
		return nil, err
	}

	deps := make([]*DependencyModel, len(info.Parameters))
	for i, p := range info.Parameters {
		dep, err := dependencyFromParameter(p)
		if err != nil {
			return nil, err
		}
		deps[i] = dep
	}

	return &ConstructorCandidate{
		Fn:             info.Value,
		Dependencies:   deps,
		ParamObject:    info.ParamObject,
		HasErrorReturn: info.HasErrorReturn,
	}, nil
}

// buildProperties analyzes the injectable properties of an implementation.
func (k *Kernel) buildProperties(impl reflect.Type) ([]*DependencyModel, error) {
	params := k.analyzer.AnalyzeProperties(impl)
	if len(params) == 0 {
		return nil, nil
	}

	props := make([]*DependencyModel, len(params))
	for i, p := range params {
		dep, err := dependencyFromParameter(p)
		if err != nil {
			return nil, err
		}
		dep.IsProperty = true
		props[i] = dep
	}
	return props, nil
}

func dependencyFromParameter(p reflection.ParameterInfo) (*DependencyModel, error) {
	dep := &DependencyModel{
		Name:          p.Name,
		Type:          p.Type,
		Kind:          ServiceDependency,
		ComponentName: p.Component,
		ConfigKey:     p.ConfigKey,
		Optional:      p.Optional,
		Index:         p.Index,
	}
	if p.IsValue {
		dep.Kind = ValueDependency
	}

	if p.HasDefault {
		v, err := convertString(p.Default, p.Type)
		if err != nil {
			return nil, fmt.Errorf("default value of %s: %w", p.Name, err)
		}
		dep.HasDefault = true
		dep.Default = v
	}

	return dep, nil
}
