package godi

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// genericHandler serves an open generic component. For each requested
// closed service it computes the implementation type arguments, picks the
// registered instantiation and delegates to a closed handler built for it.
// Closed handlers are cached per implementation and keep their own
// lifestyle, so a singleton open component has one instance per closed type.
type genericHandler struct {
	kernel *Kernel
	model  *ComponentModel

	mu     sync.Mutex
	closed map[string]*defaultHandler
	order  []*defaultHandler
}

var _ Handler = (*genericHandler)(nil)

func newGenericHandler(k *Kernel, model *ComponentModel) *genericHandler {
	return &genericHandler{
		kernel: k,
		model:  model,
		closed: make(map[string]*defaultHandler),
	}
}

func (g *genericHandler) ComponentModel() *ComponentModel {
	return g.model
}

// CurrentState is always Valid: whether a closed type can be served is
// only known when it is requested.
func (g *genericHandler) CurrentState() HandlerState {
	return Valid
}

func (g *genericHandler) Supports(t reflect.Type) bool {
	open, _, ok := openTypeOf(t)
	return ok && open == g.model.Generic.Service
}

func (g *genericHandler) Resolve(parent *CreationContext, service reflect.Type) (any, error) {
	instance, _, err := g.kernel.resolveWith(g, parent, service, resolveOptions{}, false)
	return instance, err
}

func (g *genericHandler) TryResolve(parent *CreationContext, service reflect.Type) (any, bool, error) {
	return g.kernel.resolveWith(g, parent, service, resolveOptions{}, true)
}

func (g *genericHandler) IsBeingResolvedInContext(ctx *CreationContext) bool {
	for f := ctx; f != nil; f = f.parent {
		if f.handler == Handler(g) {
			return true
		}
		if dh, ok := f.handler.(*defaultHandler); ok && g.owns(dh) {
			return true
		}
	}
	return false
}

func (g *genericHandler) CanResolvePendingDependencies(*CreationContext) bool {
	return true
}

func (g *genericHandler) resolve(ctx *CreationContext, try bool) (any, *Burden, error) {
	requested := Describe(ctx.requested)
	if !requested.IsGeneric() || *requested.Open != g.model.Generic.Service {
		return nil, nil, GenericTypeMismatchError{Requested: ctx.requested}
	}

	h, err := g.closedHandler(ctx, requested)
	if err != nil {
		g.kernel.logger.Debug("failed to close generic component",
			zap.String("component", g.model.Name),
			zap.Stringer("requested", ctx.requested),
			zap.Error(err))
		return nil, nil, err
	}

	ctx.handler = h
	return h.resolve(ctx, try)
}

// closedHandler returns the handler for the implementation closing the
// requested service, building it on first use.
func (g *genericHandler) closedHandler(ctx *CreationContext, requested TypeDescriptor) (*defaultHandler, error) {
	generic := g.model.Generic

	args, err := generic.closingArguments(g.model, ctx, requested)
	if err != nil {
		return nil, err
	}
	key := argumentKey(args)

	g.mu.Lock()
	if h, ok := g.closed[key]; ok {
		g.mu.Unlock()
		return h, nil
	}

	inst, err := generic.close(requested, args)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	h := newDefaultHandler(g.kernel, g.closedModel(requested, inst, key))
	g.closed[key] = h
	g.order = append(g.order, h)
	g.mu.Unlock()

	g.kernel.addClosedHandler(h)
	return h, nil
}

// closedModel builds the model of one instantiation. Everything but the
// constructor and the properties comes from the open model.
func (g *genericHandler) closedModel(requested TypeDescriptor, inst *instantiation, key string) *ComponentModel {
	open := g.model
	model := &ComponentModel{
		Name:               open.Name + "[" + key + "]",
		Services:           []reflect.Type{requested.Type},
		Implementation:     inst.constructor.Fn.Type().Out(0),
		Lifestyle:          open.Lifestyle,
		Constructors:       []*ConstructorCandidate{inst.constructor},
		Properties:         inst.properties,
		Overrides:          open.Overrides,
		DynamicParameters:  open.DynamicParameters,
		OnCreate:           open.OnCreate,
		OnDestroy:          open.OnDestroy,
		PoolInitialSize:    open.PoolInitialSize,
		PoolMaxSize:        open.PoolMaxSize,
		PropagateArguments: open.PropagateArguments,
	}

	open.mu.RLock()
	model.interceptors = append([]string(nil), open.interceptors...)
	if len(open.extensions) > 0 {
		model.extensions = make(map[string]any, len(open.extensions))
		for k, v := range open.extensions {
			model.extensions[k] = v
		}
	}
	open.mu.RUnlock()

	return model
}

func (g *genericHandler) owns(h *defaultHandler) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.order {
		if c == h {
			return true
		}
	}
	return false
}

// ClosedHandlers returns the handlers built so far, one per closed
// implementation, in creation order.
func (g *genericHandler) ClosedHandlers() []Handler {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Handler, len(g.order))
	for i, h := range g.order {
		out[i] = h
	}
	return out
}

func (g *genericHandler) Release(ctx context.Context, b *Burden) (bool, error) {
	if b.handler == Handler(g) {
		return false, nil
	}
	return b.handler.Release(ctx, b)
}

func (g *genericHandler) decommission(ctx context.Context, b *Burden) error {
	if b.handler == Handler(g) {
		return nil
	}
	return b.handler.decommission(ctx, b)
}

// Close closes the closed handlers, most recently built first.
func (g *genericHandler) Close(ctx context.Context) error {
	g.mu.Lock()
	handlers := g.order
	g.order = nil
	g.closed = make(map[string]*defaultHandler)
	g.mu.Unlock()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		g.kernel.removeWaiting(handlers[i])
		if err := handlers[i].Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
