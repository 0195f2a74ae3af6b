package godi

import (
	"reflect"
	"sync"

	"github.com/junioryono/godi/v5/internal/reflection"
)

// SubResolver supplies dependency values the kernel cannot find on its own.
// Sub-resolvers are asked after per-call arguments and registration
// overrides, and before services are looked up. The first one whose
// CanResolve returns true resolves the dependency.
//
// ctx is the frame of the component being built. During the handler state
// pass no resolution is running and ctx carries neither arguments nor scope.
type SubResolver interface {
	CanResolve(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) bool
	Resolve(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) (any, error)
}

// SubResolverFunc builds a SubResolver from a pair of functions.
type SubResolverFunc struct {
	CanResolveFunc func(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) bool
	ResolveFunc    func(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) (any, error)
}

func (f SubResolverFunc) CanResolve(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) bool {
	return f.CanResolveFunc(ctx, model, dep)
}

func (f SubResolverFunc) Resolve(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) (any, error) {
	return f.ResolveFunc(ctx, model, dep)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// dependencyResolver satisfies constructor and property dependencies.
// The chain, in order: per-call arguments, registration overrides,
// sub-resolvers, services, dynamic parameters, configuration, defaults.
type dependencyResolver struct {
	kernel *Kernel

	mu           sync.RWMutex
	subResolvers []SubResolver
}

func newDependencyResolver(k *Kernel, subs []SubResolver) *dependencyResolver {
	return &dependencyResolver{
		kernel:       k,
		subResolvers: append([]SubResolver(nil), subs...),
	}
}

// AddSubResolver appends a sub-resolver to the chain.
func (r *dependencyResolver) AddSubResolver(s SubResolver) {
	r.mu.Lock()
	r.subResolvers = append(r.subResolvers, s)
	r.mu.Unlock()
}

func (r *dependencyResolver) subs() []SubResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subResolvers
}

// Resolve returns the value for dep of the component built in ctx.
// found is false only for optional dependencies nothing could satisfy.
// A required dependency nothing could satisfy yields a HandlerError.
func (r *dependencyResolver) Resolve(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) (any, bool, error) {
	value, found, err := r.lookup(ctx, model, dep)
	if err != nil {
		return nil, false, err
	}

	if !found {
		switch {
		case dep.HasDefault:
			value = dep.Default
		case dep.Optional:
			return nil, false, nil
		default:
			return nil, false, &HandlerError{
				Component: model.Name,
				Missing:   []MissingDependency{r.kernel.describeMissing(ctx.handler, dep, make(map[Handler]bool))},
			}
		}
	}

	value, err = r.kernel.events.fireDependencyResolving(model, dep, value)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *dependencyResolver) lookup(ctx *CreationContext, model *ComponentModel, dep *DependencyModel) (any, bool, error) {
	k := r.kernel

	if v, ok := ctx.args.Lookup(dep); ok {
		v, err := convertValue(v, dep.Type)
		return v, err == nil, err
	}

	if o, ok := model.findOverride(dep); ok {
		switch {
		case o.HasValue:
			v, err := convertValue(o.Value, dep.Type)
			return v, err == nil, err
		case o.ComponentName != "":
			return r.resolveNamed(ctx, o.ComponentName, dep.Type)
		case o.ConfigKey != "":
			if v, ok, err := r.fromConfig(o.ConfigKey, dep.Type); ok || err != nil {
				return v, ok, err
			}
		}
	}

	for _, s := range r.subs() {
		if s.CanResolve(ctx, model, dep) {
			v, err := s.Resolve(ctx, model, dep)
			return v, err == nil, err
		}
	}

	if dep.ComponentName != "" {
		return r.resolveNamed(ctx, dep.ComponentName, dep.Type)
	}

	if dep.Kind == ServiceDependency {
		if handlers := k.naming.GetHandlers(dep.Type); len(handlers) > 0 {
			return r.resolveFromHandler(ctx, pickHandler(ctx, handlers), dep.Type)
		}
		if isCollection(dep.Type) {
			return r.resolveCollection(ctx, dep.Type)
		}
		if target, ok := lazyTarget(dep.Type); ok {
			return r.lazy(ctx, dep.Type, target, ""), true, nil
		}
		if h := k.loadHandler("", dep.Type); h != nil {
			return r.resolveFromHandler(ctx, h, dep.Type)
		}
	}

	dynamic, err := ctx.dynamicArguments(model)
	if err != nil {
		return nil, false, err
	}
	if v, ok := dynamic.Lookup(dep); ok {
		v, err := convertValue(v, dep.Type)
		return v, err == nil, err
	}

	if dep.Kind == ValueDependency || dep.ConfigKey != "" {
		return r.fromConfig(dep.configKey(), dep.Type)
	}

	return nil, false, nil
}

func (r *dependencyResolver) fromConfig(key string, t reflect.Type) (any, bool, error) {
	if r.kernel.config == nil {
		return nil, false, nil
	}
	s, ok := r.kernel.config.Get(key)
	if !ok {
		return nil, false, nil
	}
	v, err := convertString(s, t)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// resolveNamed resolves the component called name as a value of type t.
func (r *dependencyResolver) resolveNamed(ctx *CreationContext, name string, t reflect.Type) (any, bool, error) {
	k := r.kernel

	h := k.naming.GetHandler(name)
	if h == nil {
		h = k.loadHandler(name, t)
	}
	if h == nil {
		return nil, false, nil
	}

	if !serves(h, t) {
		if target, ok := lazyTarget(t); ok && serves(h, target) {
			return r.lazy(ctx, t, target, name), true, nil
		}
		return nil, false, TypeMismatchError{
			Expected: t,
			Actual:   h.ComponentModel().Implementation,
			Context:  "component " + name,
		}
	}
	return r.resolveFromHandler(ctx, h, t)
}

// resolveFromHandler resolves t through h in a child frame of ctx and
// attaches the resulting burden to the instance ctx is building.
func (r *dependencyResolver) resolveFromHandler(ctx *CreationContext, h Handler, t reflect.Type) (any, bool, error) {
	var args *Arguments
	if ctx.handler != nil && ctx.handler.ComponentModel().PropagateArguments {
		args = ctx.args
	}

	frame := ctx.child(h, t, args)
	instance, burden, err := h.resolve(frame, false)
	if err != nil {
		return nil, false, err
	}
	ctx.attach(burden)
	return instance, true, nil
}

// resolveCollection builds a []T of every handler able to serve T.
// Handlers already on the chain and handlers that cannot be satisfied are
// skipped.
func (r *dependencyResolver) resolveCollection(ctx *CreationContext, t reflect.Type) (any, bool, error) {
	elem := t.Elem()
	handlers := r.kernel.naming.GetAssignableHandlers(elem)

	out := reflect.MakeSlice(t, 0, len(handlers))
	for _, h := range handlers {
		if ctx.IsResolving(h) {
			continue
		}

		frame := ctx.child(h, elem, nil)
		instance, burden, err := h.resolve(frame, true)
		if err != nil {
			if isUnsatisfiable(err) {
				continue
			}
			return nil, false, err
		}
		ctx.attach(burden)
		out = reflect.Append(out, reflection.ValueOf(instance, elem))
	}

	if out.Len() == 0 {
		r.kernel.events.fireEmptyCollection(elem)
	}
	return out.Interface(), true, nil
}

// lazy builds a func of type fn that resolves target when called. The
// kernel is not consulted until then.
func (r *dependencyResolver) lazy(ctx *CreationContext, fn, target reflect.Type, name string) any {
	k := r.kernel
	goctx := ctx.ctx

	return reflect.MakeFunc(fn, func([]reflect.Value) []reflect.Value {
		opts := []ResolveOption{WithContext(goctx)}
		if name != "" {
			opts = append(opts, WithName(name))
		}

		v, err := k.Resolve(target, opts...)
		if fn.NumOut() == 1 {
			if err != nil {
				panic(err)
			}
			return []reflect.Value{reflection.ValueOf(v, target)}
		}

		errValue := reflect.Zero(errorType)
		if err != nil {
			errValue = reflect.ValueOf(&err).Elem()
		}
		return []reflect.Value{reflection.ValueOf(v, target), errValue}
	}).Interface()
}

// CanResolve reports whether dep of the component built in ctx can be
// satisfied in that frame. Services count when some handler for them is
// valid, even if it is already being built: requesting it again surfaces as
// a circular dependency rather than an unsatisfiable constructor.
func (r *dependencyResolver) CanResolve(ctx *CreationContext, owner Handler, dep *DependencyModel) bool {
	k := r.kernel
	model := owner.ComponentModel()

	if _, ok := ctx.args.Lookup(dep); ok {
		return true
	}

	if o, ok := model.findOverride(dep); ok {
		switch {
		case o.HasValue:
			return true
		case o.ComponentName != "":
			return r.canResolveNamed(ctx, o.ComponentName, dep.Type)
		case o.ConfigKey != "":
			if r.hasConfig(o.ConfigKey) {
				return true
			}
		}
	}

	for _, s := range r.subs() {
		if s.CanResolve(ctx, model, dep) {
			return true
		}
	}

	if dep.ComponentName != "" {
		return r.canResolveNamed(ctx, dep.ComponentName, dep.Type)
	}

	if dep.Kind == ServiceDependency {
		handlers := k.naming.GetHandlers(dep.Type)
		propagate := model.PropagateArguments && ctx.HasArguments()
		for _, h := range handlers {
			if h == owner {
				continue
			}
			if h.CurrentState() == Valid {
				return true
			}
			if propagate && h.CanResolvePendingDependencies(ctx.child(h, dep.Type, ctx.args)) {
				return true
			}
		}
		if len(handlers) == 0 {
			if isCollection(dep.Type) {
				return true
			}
			if _, ok := lazyTarget(dep.Type); ok {
				return true
			}
			if h := k.loadHandler("", dep.Type); h != nil && h.CurrentState() == Valid {
				return true
			}
		}
	}

	if dynamic, err := ctx.dynamicArguments(model); err == nil {
		if _, ok := dynamic.Lookup(dep); ok {
			return true
		}
	}

	if dep.Kind == ValueDependency || dep.ConfigKey != "" {
		return r.hasConfig(dep.configKey())
	}
	return false
}

func (r *dependencyResolver) canResolveNamed(ctx *CreationContext, name string, t reflect.Type) bool {
	h := r.kernel.naming.GetHandler(name)
	if h == nil {
		h = r.kernel.loadHandler(name, t)
	}
	if h == nil {
		return false
	}
	return h.CurrentState() == Valid || h.CanResolvePendingDependencies(ctx.child(h, t, nil))
}

// canSatisfy reports whether dep of owner is statically satisfiable when
// exactly the handlers accepted by valid are valid. Per-call arguments and
// dynamic parameters are not known statically and never count.
func (r *dependencyResolver) canSatisfy(owner Handler, dep *DependencyModel, valid func(Handler) bool) bool {
	if !dep.isRequired() {
		return true
	}

	k := r.kernel
	model := owner.ComponentModel()

	if o, ok := model.findOverride(dep); ok {
		switch {
		case o.HasValue:
			return true
		case o.ComponentName != "":
			h := k.naming.GetHandler(o.ComponentName)
			return h != nil && h != owner && valid(h)
		case o.ConfigKey != "":
			if r.hasConfig(o.ConfigKey) {
				return true
			}
		}
	}

	if subs := r.subs(); len(subs) > 0 {
		empty := newCreationContext(k, nil, owner, nil, nil, nil)
		for _, s := range subs {
			if s.CanResolve(empty, model, dep) {
				return true
			}
		}
	}

	if dep.ComponentName != "" {
		h := k.naming.GetHandler(dep.ComponentName)
		return h != nil && h != owner && valid(h)
	}

	if dep.Kind == ServiceDependency {
		handlers := k.naming.GetHandlers(dep.Type)
		for _, h := range handlers {
			if h != owner && valid(h) {
				return true
			}
		}
		if len(handlers) == 0 {
			if isCollection(dep.Type) {
				return true
			}
			if _, ok := lazyTarget(dep.Type); ok {
				return true
			}
		}
	}

	if dep.Kind == ValueDependency || dep.ConfigKey != "" {
		return r.hasConfig(dep.configKey())
	}
	return false
}

func (r *dependencyResolver) hasConfig(key string) bool {
	if r.kernel.config == nil {
		return false
	}
	_, ok := r.kernel.config.Get(key)
	return ok
}

// pickHandler chooses the handler serving a dependency. Handlers already
// being built in ctx are passed over, so a component decorating a service
// receives the next implementation of it. When every handler is on the
// chain the first one is returned and resolving it reports the cycle.
func pickHandler(ctx *CreationContext, handlers []Handler) Handler {
	var fallback Handler
	for _, h := range handlers {
		if ctx.IsResolving(h) {
			continue
		}
		if h.CurrentState() == Valid {
			return h
		}
		if fallback == nil {
			fallback = h
		}
	}
	if fallback != nil {
		return fallback
	}
	return handlers[0]
}

// serves reports whether h can provide a value assignable to t.
func serves(h Handler, t reflect.Type) bool {
	if h.Supports(t) {
		return true
	}
	for _, s := range h.ComponentModel().Services {
		if s.AssignableTo(t) {
			return true
		}
	}
	return false
}

// isCollection reports whether t is a slice resolved from every handler of
// its element type.
func isCollection(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && !reflection.IsValueType(t.Elem()) && t.Elem().Kind() != reflect.Uint8
}

// lazyTarget reports whether t is a lazy provider, func() T or
// func() (T, error), and returns T.
func lazyTarget(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.IsVariadic() {
		return nil, false
	}
	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			return nil, false
		}
	case 2:
		if t.Out(1) != errorType || t.Out(0) == errorType {
			return nil, false
		}
	default:
		return nil, false
	}
	return t.Out(0), true
}
