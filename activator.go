package godi

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/junioryono/godi/v5/internal/reflection"
)

// activator builds instances for one handler: it selects a constructor,
// resolves its dependencies, calls it, injects properties, commissions the
// instance and finally lets the proxy factory wrap it.
type activator struct {
	kernel  *Kernel
	handler *defaultHandler
}

func (a *activator) create(ctx *CreationContext) (any, error) {
	model := a.handler.model

	if model.HasInstance {
		return model.Instance, nil
	}

	var (
		instance any
		err      error
	)
	if model.Factory != nil {
		instance, err = a.invokeFactory(ctx)
	} else {
		instance, err = a.construct(ctx)
	}
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	if err := a.injectProperties(ctx, instance); err != nil {
		return nil, a.fail(ctx, err)
	}

	if err := commission(model, instance); err != nil {
		return nil, a.fail(ctx, err)
	}

	instance, err = a.kernel.proxy(instance, model, ctx)
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	return instance, nil
}

// fail wraps err unless it already describes the failing component.
func (a *activator) fail(ctx *CreationContext, err error) error {
	var (
		handlerErr *HandlerError
		cycleErr   CircularDependencyError
		resolveErr ComponentResolutionError
	)
	if errors.As(err, &handlerErr) || errors.As(err, &cycleErr) || errors.As(err, &resolveErr) {
		return err
	}
	return ComponentResolutionError{
		Component:   a.handler.model.Name,
		ServiceType: ctx.requested,
		Cause:       err,
	}
}

func (a *activator) invokeFactory(ctx *CreationContext) (instance any, err error) {
	model := a.handler.model

	defer a.kernel.inflight.enter(ctx)()
	defer func() {
		if p := recover(); p != nil {
			err = ConstructorPanicError{
				Constructor: reflect.TypeOf(model.Factory),
				Panic:       p,
				Stack:       debug.Stack(),
			}
		}
	}()

	instance, err = model.Factory(a.kernel, ctx)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("factory of %s returned nil", model.Name)
	}

	for _, s := range model.Services {
		if !assignable(instance, s) {
			return nil, TypeMismatchError{
				Expected: s,
				Actual:   reflect.TypeOf(instance),
				Context:  "factory of " + model.Name,
			}
		}
	}
	return instance, nil
}

func (a *activator) construct(ctx *CreationContext) (any, error) {
	c, err := a.selectConstructor(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]reflect.Value, len(c.Dependencies))
	for i, dep := range c.Dependencies {
		v, err := a.resolveDependency(ctx, dep)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	args := values
	if c.ParamObject != nil {
		fields := make([]int, len(c.Dependencies))
		for i, dep := range c.Dependencies {
			fields[i] = dep.Index
		}

		obj, err := reflection.BuildParamObject(c.ParamObject, fields, values)
		if err != nil {
			return nil, err
		}
		args = []reflect.Value{obj}
	}

	return a.call(ctx, c, args)
}

// resolveDependency resolves dep to a value ready to pass to a constructor.
// Unsatisfied optional dependencies get the zero value.
func (a *activator) resolveDependency(ctx *CreationContext, dep *DependencyModel) (reflect.Value, error) {
	v, found, err := a.kernel.resolver.Resolve(ctx, a.handler.model, dep)
	if err != nil {
		return reflect.Value{}, err
	}
	if !found {
		return reflect.Zero(dep.Type), nil
	}

	v, err = convertValue(v, dep.Type)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("dependency %s: %w", dep.Name, err)
	}
	if !assignable(v, dep.Type) {
		return reflect.Value{}, TypeMismatchError{
			Expected: dep.Type,
			Actual:   reflect.TypeOf(v),
			Context:  "dependency " + dep.Name + " of " + a.handler.model.Name,
		}
	}
	return reflection.ValueOf(v, dep.Type), nil
}

// selectConstructor picks the constructor to call. Only candidates whose
// required dependencies can all be satisfied in ctx qualify. Among them the
// one with more parameters wins, then the one with more explicitly supplied
// dependencies, then the one whose sorted dependency names come first.
func (a *activator) selectConstructor(ctx *CreationContext) (*ConstructorCandidate, error) {
	model := a.handler.model
	if len(model.Constructors) == 1 {
		return model.Constructors[0], nil
	}

	canResolve := func(d *DependencyModel) bool {
		return a.kernel.resolver.CanResolve(ctx, a.handler, d)
	}

	var (
		best          *ConstructorCandidate
		bestOverrides int
		bestKey       string
	)
	for _, c := range model.Constructors {
		if !a.handler.constructorSatisfied(c, canResolve) {
			continue
		}

		overrides := a.explicitDependencies(ctx, c)
		key := strings.Join(c.sortedDependencyNames(), ",")

		switch {
		case best == nil,
			c.Arity() > best.Arity(),
			c.Arity() == best.Arity() && overrides > bestOverrides,
			c.Arity() == best.Arity() && overrides == bestOverrides && key < bestKey:
			best, bestOverrides, bestKey = c, overrides, key
		}
	}

	if best != nil {
		return best, nil
	}

	if report := a.handler.missingDependencies(make(map[Handler]bool)); len(report.Missing) > 0 {
		return nil, report
	}
	return nil, NoResolvableConstructorError{
		Component:  model.Name,
		Candidates: len(model.Constructors),
	}
}

// explicitDependencies counts the dependencies of c supplied by per-call
// arguments or registration overrides.
func (a *activator) explicitDependencies(ctx *CreationContext, c *ConstructorCandidate) int {
	n := 0
	for _, dep := range c.Dependencies {
		if _, ok := ctx.args.Lookup(dep); ok {
			n++
			continue
		}
		if _, ok := a.handler.model.findOverride(dep); ok {
			n++
		}
	}
	return n
}

func (a *activator) call(ctx *CreationContext, c *ConstructorCandidate, args []reflect.Value) (instance any, err error) {
	defer a.kernel.inflight.enter(ctx)()
	defer func() {
		if p := recover(); p != nil {
			err = ConstructorPanicError{
				Constructor: c.Fn.Type(),
				Panic:       p,
				Stack:       debug.Stack(),
			}
		}
	}()

	out := c.Fn.Call(args)
	if c.HasErrorReturn && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}

	if isNilValue(out[0]) {
		return nil, fmt.Errorf("constructor %s returned nil", formatType(c.Fn.Type()))
	}
	return out[0].Interface(), nil
}

// injectProperties sets the resolvable properties of instance. Optional
// properties that cannot be satisfied are left untouched.
func (a *activator) injectProperties(ctx *CreationContext, instance any) error {
	model := a.handler.model
	if len(model.Properties) == 0 {
		return nil
	}

	target := reflect.ValueOf(instance)
	for _, p := range model.Properties {
		v, err := a.resolveDependency(ctx, p)
		if err != nil {
			if p.Optional && skippable(err) {
				continue
			}
			return err
		}
		if isZeroOptional(v, p) {
			continue
		}

		if err := reflection.SetProperty(target, p.Index, v); err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
	}
	return nil
}

// skippable reports whether an optional property may be left unset after err.
func skippable(err error) bool {
	var cycle CircularDependencyError
	return isUnsatisfiable(err) || errors.As(err, &cycle)
}

func isZeroOptional(v reflect.Value, p *DependencyModel) bool {
	return p.Optional && !p.HasDefault && v.IsZero()
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
