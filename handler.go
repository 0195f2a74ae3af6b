package godi

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler owns one registered component: its model, its state and the
// lifestyle governing its instances.
//
// A handler starts in WaitingDependency when some required dependency
// cannot be satisfied and moves to Valid once it can. It never moves back.
type Handler interface {
	// ComponentModel returns the model of the component.
	ComponentModel() *ComponentModel

	// CurrentState returns the handler state.
	CurrentState() HandlerState

	// Supports reports whether the handler can serve service t.
	Supports(t reflect.Type) bool

	// Resolve builds or reuses an instance serving service as a dependency
	// of the frame parent. A nil parent starts a new resolution.
	Resolve(parent *CreationContext, service reflect.Type) (any, error)

	// TryResolve is Resolve, but reports unsatisfiable dependencies as
	// ok == false instead of an error.
	TryResolve(parent *CreationContext, service reflect.Type) (any, bool, error)

	// IsBeingResolvedInContext reports whether the handler is building an
	// instance in ctx or one of its ancestors.
	IsBeingResolvedInContext(ctx *CreationContext) bool

	// CanResolvePendingDependencies reports whether the arguments and
	// dynamic parameters of ctx satisfy a waiting handler.
	CanResolvePendingDependencies(ctx *CreationContext) bool

	// Release releases an instance built by the handler. It reports whether
	// the instance was destroyed.
	Release(ctx context.Context, b *Burden) (bool, error)

	// Close destroys every instance the lifestyle still holds.
	Close(ctx context.Context) error

	resolve(ctx *CreationContext, try bool) (any, *Burden, error)
	decommission(ctx context.Context, b *Burden) error
}

// defaultHandler handles components built by constructors, factories or
// supplied instances.
type defaultHandler struct {
	kernel    *Kernel
	model     *ComponentModel
	state     atomic.Int32
	lifestyle lifestyleManager
	activator *activator
}

var _ Handler = (*defaultHandler)(nil)

func newDefaultHandler(k *Kernel, model *ComponentModel) *defaultHandler {
	h := &defaultHandler{
		kernel: k,
		model:  model,
	}
	h.state.Store(int32(WaitingDependency))
	h.activator = &activator{kernel: k, handler: h}
	h.lifestyle = newLifestyleManager(h)
	return h
}

func (h *defaultHandler) ComponentModel() *ComponentModel {
	return h.model
}

func (h *defaultHandler) CurrentState() HandlerState {
	return HandlerState(h.state.Load())
}

// setValid moves the handler to Valid. It reports whether the state changed.
func (h *defaultHandler) setValid() bool {
	return h.state.CompareAndSwap(int32(WaitingDependency), int32(Valid))
}

func (h *defaultHandler) Supports(t reflect.Type) bool {
	return h.model.Supports(t)
}

func (h *defaultHandler) IsBeingResolvedInContext(ctx *CreationContext) bool {
	return ctx != nil && ctx.IsResolving(h)
}

func (h *defaultHandler) Resolve(parent *CreationContext, service reflect.Type) (any, error) {
	instance, _, err := h.kernel.resolveWith(h, parent, service, resolveOptions{}, false)
	return instance, err
}

func (h *defaultHandler) TryResolve(parent *CreationContext, service reflect.Type) (any, bool, error) {
	return h.kernel.resolveWith(h, parent, service, resolveOptions{}, true)
}

func (h *defaultHandler) resolve(ctx *CreationContext, try bool) (any, *Burden, error) {
	if ctx.parent.IsResolving(h) {
		return nil, nil, ctx.cycleError()
	}

	h.model.freeze()

	if h.CurrentState() == WaitingDependency && !h.CanResolvePendingDependencies(ctx) {
		return nil, nil, h.missingDependencies(make(map[Handler]bool))
	}

	return h.lifestyle.resolve(ctx)
}

// create builds a new instance through the activator. Burdens of the
// dependencies created for a failed attempt are released before the error
// is returned.
func (h *defaultHandler) create(ctx *CreationContext, ownedByLifestyle bool) (any, *Burden, error) {
	b := newBurden(h, ownedByLifestyle)
	ctx.building = b

	instance, err := h.activator.create(ctx)
	if err != nil {
		if rerr := b.releaseChildren(ctx.ctx); rerr != nil {
			h.kernel.logger.Warn("failed to release dependencies of failed component",
				zap.String("component", h.model.Name),
				zap.Error(rerr))
		}
		return nil, nil, err
	}

	b.setInstance(instance)
	h.kernel.events.fireComponentCreated(h.model, instance)
	return instance, b, nil
}

func (h *defaultHandler) decommission(ctx context.Context, b *Burden) error {
	if !b.requiresDecommission {
		return nil
	}
	err := decommission(ctx, h.model, b.instance)
	h.kernel.events.fireComponentDestroyed(h.model, b.instance)
	return err
}

func (h *defaultHandler) Release(ctx context.Context, b *Burden) (bool, error) {
	return h.lifestyle.release(ctx, b)
}

func (h *defaultHandler) Close(ctx context.Context) error {
	return h.lifestyle.close(ctx)
}

// CanResolvePendingDependencies reports whether some constructor can be
// satisfied once the arguments and dynamic parameters of ctx are included.
func (h *defaultHandler) CanResolvePendingDependencies(ctx *CreationContext) bool {
	if h.CurrentState() == Valid {
		return true
	}
	if ctx == nil {
		return false
	}

	if len(h.model.DynamicParameters) == 0 && !ctx.HasArguments() && len(h.kernel.loaders) == 0 {
		return false
	}

	for _, p := range h.model.Properties {
		if p.isRequired() && !h.kernel.resolver.CanResolve(ctx, h, p) {
			return false
		}
	}

	if len(h.model.Constructors) == 0 {
		return true
	}

	for _, c := range h.model.Constructors {
		if h.constructorSatisfied(c, func(d *DependencyModel) bool {
			return h.kernel.resolver.CanResolve(ctx, h, d)
		}) {
			return true
		}
	}
	return false
}

// satisfiedWith reports whether the handler's required dependencies can be
// satisfied assuming exactly the handlers accepted by valid are valid.
func (h *defaultHandler) satisfiedWith(valid func(Handler) bool) bool {
	check := func(d *DependencyModel) bool {
		return h.kernel.resolver.canSatisfy(h, d, valid)
	}

	for _, p := range h.model.Properties {
		if p.isRequired() && !check(p) {
			return false
		}
	}

	if len(h.model.Constructors) == 0 {
		return true
	}

	for _, c := range h.model.Constructors {
		if h.constructorSatisfied(c, check) {
			return true
		}
	}
	return false
}

func (h *defaultHandler) constructorSatisfied(c *ConstructorCandidate, check func(*DependencyModel) bool) bool {
	for _, d := range c.Dependencies {
		if d.isRequired() && !check(d) {
			return false
		}
	}
	return true
}

// missingDependencies builds the report of every unsatisfied required
// dependency. visiting guards nested reports against loops.
func (h *defaultHandler) missingDependencies(visiting map[Handler]bool) *HandlerError {
	visiting[h] = true
	report := &HandlerError{Component: h.model.Name}

	seen := make(map[*DependencyModel]bool)
	add := func(d *DependencyModel) {
		if seen[d] || !d.isRequired() {
			return
		}
		seen[d] = true

		if h.kernel.resolver.canSatisfy(h, d, isValid) {
			return
		}
		report.Missing = append(report.Missing, h.kernel.describeMissing(h, d, visiting))
	}

	for _, c := range h.model.Constructors {
		for _, d := range c.Dependencies {
			add(d)
		}
	}
	for _, p := range h.model.Properties {
		add(p)
	}

	return report
}

// describeMissing classifies why dep of owner cannot be satisfied.
func (k *Kernel) describeMissing(owner Handler, dep *DependencyModel, visiting map[Handler]bool) MissingDependency {
	if dep.Kind == ValueDependency {
		if _, ok := owner.ComponentModel().findOverride(dep); !ok {
			return MissingDependency{Dependency: dep, Reason: ValueNotProvided}
		}
	}

	var candidates []Handler
	name := dep.ComponentName
	if o, ok := owner.ComponentModel().findOverride(dep); ok && o.ComponentName != "" {
		name = o.ComponentName
	}
	if name != "" {
		if h := k.naming.GetHandler(name); h != nil {
			candidates = []Handler{h}
		}
	} else {
		candidates = k.naming.GetHandlers(dep.Type)
	}

	for _, c := range candidates {
		if c == owner || c.CurrentState() == Valid {
			continue
		}

		missing := MissingDependency{Dependency: dep, Reason: RegisteredButWaiting}
		if dh, ok := c.(*defaultHandler); ok && !visiting[c] {
			missing.Waiting = dh.missingDependencies(visiting)
		}
		return missing
	}

	if dep.Kind == ValueDependency {
		return MissingDependency{Dependency: dep, Reason: ValueNotProvided}
	}
	return MissingDependency{Dependency: dep, Reason: NotRegistered}
}

// isValid reports the current state of h.
func isValid(h Handler) bool {
	return h.CurrentState() == Valid
}

// isUnsatisfiable reports whether err means the handler cannot serve the
// request at all, as opposed to a failure while building.
func isUnsatisfiable(err error) bool {
	var he *HandlerError
	return errors.As(err, &he) || errors.Is(err, ErrGenericClosing)
}
