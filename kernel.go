package godi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/junioryono/godi/v5/internal/graph"
	"github.com/junioryono/godi/v5/internal/reflection"
)

// Kernel is the component container. It indexes registered components,
// tracks the state of their handlers, resolves instance graphs and owns
// the release of what it built.
//
// A Kernel is safe for concurrent use.
//
// Example:
//
//	kernel := godi.NewKernel(godi.WithLogger(logger))
//	defer kernel.Close()
//
//	err := kernel.Register(
//	    godi.Component[Store]().ImplementedBy(NewSQLStore),
//	    godi.Component[*Service]().ImplementedBy(NewService).LifestyleTransient(),
//	)
//
//	svc, err := godi.Resolve[*Service](kernel)
type Kernel struct {
	id     string
	logger *zap.Logger

	naming   *namingSubsystem
	resolver *dependencyResolver
	policy   *ReleasePolicy
	events   eventHub
	analyzer *reflection.Analyzer

	config           ConfigSource
	proxyFactory     ProxyFactory
	loaders          []ComponentLoader
	defaultLifestyle Lifestyle

	// inflight is the creation context being built on each goroutine.
	inflight goroutineContexts

	// loading marks goroutines currently asking loaders, so a loader that
	// resolves from the kernel does not recurse into the loaders.
	loading  goroutineFlag
	loaderMu sync.Mutex

	stateMu sync.Mutex
	waiting []*defaultHandler
	batch   int

	scopesMu sync.Mutex
	scopes   map[*Scope]struct{}

	familyMu   sync.Mutex
	parent     atomic.Pointer[Kernel]
	children   []*Kernel
	facilities []Facility

	closed atomic.Bool
}

// NewKernel creates an empty kernel.
func NewKernel(opts ...Option) *Kernel {
	o := kernelOptions{
		logger:           zap.NewNop(),
		defaultLifestyle: Singleton,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}
	return newKernel(o)
}

func newKernel(o kernelOptions) *Kernel {
	k := &Kernel{
		id:               uuid.NewString(),
		logger:           o.logger,
		analyzer:         reflection.New(),
		config:           o.config,
		proxyFactory:     o.proxyFactory,
		loaders:          o.loaders,
		defaultLifestyle: o.defaultLifestyle,
		scopes:           make(map[*Scope]struct{}),
	}

	k.naming = newNamingSubsystem(func() *namingSubsystem {
		if p := k.parent.Load(); p != nil {
			return p.naming
		}
		return nil
	})
	k.resolver = newDependencyResolver(k, o.subResolvers)
	k.policy = newReleasePolicy(nil, k.disposalOrder, k.logger)

	k.logger.Debug("kernel created", zap.String("kernel", k.id))
	return k
}

// ID returns the unique identifier of the kernel.
func (k *Kernel) ID() string {
	return k.id
}

// Logger returns the logger of the kernel. Facilities log through it.
func (k *Kernel) Logger() *zap.Logger {
	return k.logger
}

// ConfigSource returns the source of configuration values, or nil.
func (k *Kernel) ConfigSource() ConfigSource {
	return k.config
}

// ReleasePolicy returns the policy tracking instances built by the kernel.
func (k *Kernel) ReleasePolicy() *ReleasePolicy {
	return k.policy
}

// Parent returns the parent kernel, or nil.
func (k *Kernel) Parent() *Kernel {
	return k.parent.Load()
}

// IsClosed reports whether Close has been called.
func (k *Kernel) IsClosed() bool {
	return k.closed.Load()
}

// Register registers components. Registrations are evaluated as one batch:
// handler states are computed once every registration is indexed, so the
// order of registrations does not matter. Failed registrations do not stop
// the others; their errors are joined.
func (k *Kernel) Register(regs ...Registration) error {
	if k.closed.Load() {
		return ErrKernelClosed
	}

	done := k.OptimizeDependencyResolution()
	defer done()

	var errs []error
	for _, r := range regs {
		if r == nil {
			errs = append(errs, RegistrationError{Cause: ErrNoImplementation})
			continue
		}
		if err := k.register(r); err != nil {
			k.logger.Debug("registration failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (k *Kernel) register(r Registration) error {
	model, err := r.buildModel(k)
	if err != nil {
		return err
	}
	k.events.fireModelCreated(model)

	var h Handler
	if model.Generic != nil {
		h = newGenericHandler(k, model)
	} else {
		h = newDefaultHandler(k, model)
	}

	if err := k.naming.Register(h); err != nil {
		return err
	}

	k.logger.Debug("component registered",
		zap.String("component", model.Name),
		zap.Stringer("lifestyle", model.Lifestyle))

	k.events.fireHandlerRegistered(h)
	k.events.fireComponentRegistered(model.Name, h)

	if dh, ok := h.(*defaultHandler); ok {
		k.stateMu.Lock()
		k.waiting = append(k.waiting, dh)
		k.stateMu.Unlock()
	}

	k.refreshStates()
	return nil
}

// OptimizeDependencyResolution starts a registration batch and returns the
// func ending it. Handler states are not re-evaluated while a batch is
// open; the pass runs once when the outermost batch ends. Batches nest and
// the returned func is safe to call more than once.
//
// Example:
//
//	done := kernel.OptimizeDependencyResolution()
//	defer done()
func (k *Kernel) OptimizeDependencyResolution() func() {
	k.stateMu.Lock()
	k.batch++
	k.stateMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			k.stateMu.Lock()
			k.batch--
			outermost := k.batch == 0
			k.stateMu.Unlock()

			if outermost {
				k.validatePending()
				k.events.fireRegistrationCompleted()
			}
		})
	}
}

// refreshStates re-evaluates waiting handlers unless a batch is open.
func (k *Kernel) refreshStates() {
	k.stateMu.Lock()
	batching := k.batch > 0
	k.stateMu.Unlock()

	if !batching {
		k.validatePending()
	}
}

// validatePending moves every waiting handler that can be satisfied to
// Valid. Handlers depending on each other are evaluated together: a group
// is valid when every member is satisfied assuming the whole group is
// valid. Cycles are therefore reported when resolving, not here.
//
// The pass works on a snapshot of the waiting list and does not hold
// stateMu while asking resolvers, so sub-resolvers and loaders may
// register components.
func (k *Kernel) validatePending() {
	k.stateMu.Lock()
	pending := append([]*defaultHandler(nil), k.waiting...)
	k.stateMu.Unlock()

	assumed := make(map[Handler]bool, len(pending))
	for _, h := range pending {
		assumed[h] = true
	}
	valid := func(h Handler) bool {
		return assumed[h] || h.CurrentState() == Valid
	}

	for changed := true; changed; {
		changed = false
		for _, h := range pending {
			if assumed[h] && !h.satisfiedWith(valid) {
				delete(assumed, h)
				changed = true
			}
		}
	}

	var validated []*defaultHandler
	for _, h := range pending {
		if assumed[h] && h.setValid() {
			validated = append(validated, h)
		}
	}

	if len(assumed) > 0 {
		k.stateMu.Lock()
		remaining := make([]*defaultHandler, 0, len(k.waiting))
		for _, h := range k.waiting {
			if h.CurrentState() != Valid {
				remaining = append(remaining, h)
			}
		}
		k.waiting = remaining
		k.stateMu.Unlock()
	}

	for _, h := range validated {
		k.logger.Debug("component is valid", zap.String("component", h.model.Name))
		k.events.fireHandlerStateChanged(h)
	}
	if len(validated) > 0 {
		k.events.fireHandlersChanged()
	}

	for _, child := range k.childKernels() {
		child.refreshStates()
	}
}

// addClosedHandler evaluates a handler built for a closed generic type.
func (k *Kernel) addClosedHandler(h *defaultHandler) {
	if h.satisfiedWith(isValid) {
		if h.setValid() {
			k.events.fireHandlerStateChanged(h)
			k.events.fireHandlersChanged()
		}
		return
	}

	k.stateMu.Lock()
	k.waiting = append(k.waiting, h)
	k.stateMu.Unlock()
}

func (k *Kernel) removeWaiting(h *defaultHandler) {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()

	for i, w := range k.waiting {
		if w == h {
			k.waiting = append(k.waiting[:i], k.waiting[i+1:]...)
			return
		}
	}
}

// Unregister removes the named component and closes its handler.
// Components depending on it keep their state.
func (k *Kernel) Unregister(name string) error {
	h, ok := k.naming.Unregister(name)
	if !ok {
		return ComponentNotFoundError{Name: name}
	}

	if dh, ok := h.(*defaultHandler); ok {
		k.removeWaiting(dh)
	}

	k.logger.Debug("component unregistered", zap.String("component", name))
	k.events.fireHandlersChanged()

	return h.Close(context.Background())
}

// HasComponent reports whether a component called name is registered in
// the kernel or one of its parents.
func (k *Kernel) HasComponent(name string) bool {
	return k.naming.Contains(name)
}

// HasService reports whether some component serves t. Component loaders
// are consulted when nothing is registered.
func (k *Kernel) HasService(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if len(k.naming.GetHandlers(t)) > 0 {
		return true
	}
	return k.loadHandler("", t) != nil
}

// Handler returns the handler of the component called name, or nil.
func (k *Kernel) Handler(name string) Handler {
	return k.naming.GetHandler(name)
}

// Handlers returns the local handlers in registration order.
func (k *Kernel) Handlers() []Handler {
	return k.naming.Handlers()
}

// HandlersFor returns every handler able to serve t, local first.
func (k *Kernel) HandlersFor(t reflect.Type) []Handler {
	return k.naming.GetAssignableHandlers(t)
}

// Resolve returns an instance serving t. With WithName the named component
// is used; otherwise the first valid handler registered for t.
func (k *Kernel) Resolve(t reflect.Type, opts ...ResolveOption) (any, error) {
	if t == nil {
		return nil, ErrServiceTypeNil
	}
	if k.closed.Load() {
		return nil, ErrKernelClosed
	}

	o := buildResolveOptions(opts)
	h, err := k.handlerFor(o.name, t)
	if err != nil {
		return nil, err
	}

	instance, _, err := k.resolveWith(h, nil, t, o, false)
	return instance, err
}

// ResolveAll returns an instance of every component able to serve t, in
// registration order. Components that cannot be satisfied are skipped.
// Observers of EmptyCollectionResolving are notified when nothing can be
// resolved.
func (k *Kernel) ResolveAll(t reflect.Type, opts ...ResolveOption) ([]any, error) {
	if t == nil {
		return nil, ErrServiceTypeNil
	}
	if k.closed.Load() {
		return nil, ErrKernelClosed
	}

	o := buildResolveOptions(opts)
	parent := k.inflight.current()

	out := make([]any, 0)
	for _, h := range k.naming.GetAssignableHandlers(t) {
		if parent.IsResolving(h) {
			continue
		}

		instance, ok, err := k.resolveWith(h, parent, t, o, true)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, instance)
		}
	}

	if len(out) == 0 {
		k.events.fireEmptyCollection(t)
	}
	return out, nil
}

// handlerFor finds the handler serving a top-level request.
func (k *Kernel) handlerFor(name string, t reflect.Type) (Handler, error) {
	if name != "" {
		h := k.naming.GetHandler(name)
		if h == nil {
			h = k.loadHandler(name, t)
		}
		if h == nil {
			return nil, ComponentNotFoundError{ServiceType: t, Name: name, Available: k.availableServices()}
		}
		if !serves(h, t) {
			return nil, TypeMismatchError{
				Expected: t,
				Actual:   h.ComponentModel().Implementation,
				Context:  "component " + name,
			}
		}
		return h, nil
	}

	if handlers := k.naming.GetHandlers(t); len(handlers) > 0 {
		return pickHandler(k.inflight.current(), handlers), nil
	}
	if h := k.loadHandler("", t); h != nil {
		return h, nil
	}
	return nil, ComponentNotFoundError{ServiceType: t, Available: k.availableServices()}
}

// resolveWith resolves service through h as a dependency of parent. A nil
// parent continues the resolution in flight on the calling goroutine, if
// any. The burden is owned by the instance parent is building, or tracked
// by the release policy when nothing owns it.
func (k *Kernel) resolveWith(h Handler, parent *CreationContext, service reflect.Type, o resolveOptions, try bool) (any, bool, error) {
	if parent == nil {
		parent = k.inflight.current()
	}

	args := o.args
	if args == nil && parent != nil && parent.handler != nil && parent.handler.ComponentModel().PropagateArguments {
		args = parent.args
	}

	frame := newCreationContext(k, parent, h, service, args, o.ctx)
	instance, b, err := h.resolve(frame, try)
	if err != nil {
		if try && isUnsatisfiable(err) {
			return nil, false, nil
		}
		k.logger.Debug("resolution failed",
			zap.String("component", h.ComponentModel().Name),
			zap.String("service", formatType(service)),
			zap.Error(err))
		return nil, false, err
	}

	if !parent.attach(b) && b != nil && b.RequiresPolicyRelease() {
		if err := k.policy.Track(instance, b); err != nil {
			return nil, false, err
		}
	}
	return instance, true, nil
}

// loadHandler asks the component loaders for a component serving name or
// t and registers it. Loaders are not consulted again from inside a loader
// on the same goroutine.
func (k *Kernel) loadHandler(name string, t reflect.Type) Handler {
	if len(k.loaders) == 0 || !k.loading.set() {
		return nil
	}
	defer k.loading.clear()

	k.loaderMu.Lock()
	defer k.loaderMu.Unlock()

	lookup := func() Handler {
		if name != "" {
			return k.naming.GetHandler(name)
		}
		if t == nil {
			return nil
		}
		return k.naming.GetHandlerForService(t)
	}

	if h := lookup(); h != nil {
		return h
	}

	for _, loader := range k.loaders {
		reg := loader.Load(name, t)
		if reg == nil {
			continue
		}
		if err := k.Register(reg); err != nil {
			k.logger.Warn("failed to register loaded component",
				zap.String("name", name),
				zap.String("service", formatType(t)),
				zap.Error(err))
			continue
		}
		if h := lookup(); h != nil {
			k.logger.Debug("component loaded",
				zap.String("component", h.ComponentModel().Name),
				zap.String("loader", fmt.Sprintf("%T", loader)))
			return h
		}
	}
	return nil
}

// Release releases an instance returned by Resolve. Transient and pooled
// instances are decommissioned or returned to their pool; releasing
// singletons, scoped or unknown instances does nothing.
func (k *Kernel) Release(instance any) error {
	return k.ReleaseContext(context.Background(), instance)
}

// ReleaseContext is Release with a context passed to DisposableWithContext
// components.
func (k *Kernel) ReleaseContext(ctx context.Context, instance any) error {
	if instance == nil {
		return nil
	}
	return k.policy.Release(ctx, instance)
}

// AddSubResolver adds a custom sub-resolver after the existing ones.
func (k *Kernel) AddSubResolver(s SubResolver) {
	if s != nil {
		k.resolver.AddSubResolver(s)
		k.refreshStates()
	}
}

// AddFacility initializes f and attaches it to the kernel. Facilities are
// closed in reverse order when the kernel closes.
func (k *Kernel) AddFacility(f Facility) error {
	if f == nil {
		return errors.New("facility cannot be nil")
	}
	if k.closed.Load() {
		return ErrKernelClosed
	}

	if err := f.Init(k); err != nil {
		return fmt.Errorf("init facility %T: %w", f, err)
	}

	k.familyMu.Lock()
	k.facilities = append(k.facilities, f)
	k.familyMu.Unlock()

	k.logger.Debug("facility added", zap.String("facility", fmt.Sprintf("%T", f)))
	return nil
}

// NewChildKernel creates a kernel whose lookups fall back to k. The child
// inherits the logger, configuration, proxy factory and default lifestyle
// unless opts override them.
func (k *Kernel) NewChildKernel(opts ...Option) (*Kernel, error) {
	o := kernelOptions{
		logger:           k.logger.Named("child"),
		config:           k.config,
		proxyFactory:     k.proxyFactory,
		defaultLifestyle: k.defaultLifestyle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}

	child := newKernel(o)
	if err := k.AddChildKernel(child); err != nil {
		return nil, err
	}
	return child, nil
}

// AddChildKernel attaches child. Waiting components of the child are
// re-evaluated against the components of k.
func (k *Kernel) AddChildKernel(child *Kernel) error {
	if child == nil {
		return ErrKernelNil
	}
	if child == k {
		return errors.New("a kernel cannot be its own child")
	}
	if k.closed.Load() || child.closed.Load() {
		return ErrKernelClosed
	}
	for p := k; p != nil; p = p.parent.Load() {
		if p == child {
			return errors.New("child kernel is an ancestor of the parent")
		}
	}
	if !child.parent.CompareAndSwap(nil, k) {
		return errors.New("kernel already has a parent")
	}

	child.policy.setParent(k.policy)

	k.familyMu.Lock()
	k.children = append(k.children, child)
	k.familyMu.Unlock()

	k.logger.Debug("child kernel added", zap.String("kernel", k.id), zap.String("child", child.id))
	child.refreshStates()
	return nil
}

// RemoveChildKernel detaches child. Its handlers keep their state.
func (k *Kernel) RemoveChildKernel(child *Kernel) {
	if child == nil || !child.parent.CompareAndSwap(k, nil) {
		return
	}
	child.policy.setParent(nil)

	k.familyMu.Lock()
	for i, c := range k.children {
		if c == child {
			k.children = append(k.children[:i], k.children[i+1:]...)
			break
		}
	}
	k.familyMu.Unlock()

	k.logger.Debug("child kernel removed", zap.String("kernel", k.id), zap.String("child", child.id))
}

func (k *Kernel) childKernels() []*Kernel {
	k.familyMu.Lock()
	defer k.familyMu.Unlock()
	return append([]*Kernel(nil), k.children...)
}

// PoolStats returns the statistics of the pooled component called name.
func (k *Kernel) PoolStats(name string) (PoolStats, bool) {
	dh, ok := k.naming.GetHandler(name).(*defaultHandler)
	if !ok {
		return PoolStats{}, false
	}
	pool, ok := dh.lifestyle.(*poolManager)
	if !ok {
		return PoolStats{}, false
	}
	return pool.stats(), true
}

// Close closes the kernel: child kernels first, then facilities in reverse
// order, open scopes, instances tracked by the release policy and finally
// the instances held by lifestyles, dependents before their dependencies.
// Close is idempotent.
func (k *Kernel) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx := context.Background()
	var errs []error

	children := k.childKernels()
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	k.familyMu.Lock()
	facilities := k.facilities
	k.facilities = nil
	k.familyMu.Unlock()
	for i := len(facilities) - 1; i >= 0; i-- {
		if err := facilities[i].Close(); err != nil {
			k.logger.Warn("failed to close facility",
				zap.String("facility", fmt.Sprintf("%T", facilities[i])),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	k.scopesMu.Lock()
	scopes := make([]*Scope, 0, len(k.scopes))
	for s := range k.scopes {
		scopes = append(scopes, s)
	}
	k.scopesMu.Unlock()
	for _, s := range scopes {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := k.policy.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, h := range k.handlersInDisposalOrder() {
		if err := h.Close(ctx); err != nil {
			k.logger.Warn("failed to close component",
				zap.String("component", h.ComponentModel().Name),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if p := k.parent.Load(); p != nil {
		p.RemoveChildKernel(k)
	}

	k.logger.Debug("kernel closed", zap.String("kernel", k.id), zap.Int("errors", len(errs)))

	if len(errs) > 0 {
		return DisposalError{Context: "kernel", Errors: errs}
	}
	return nil
}

// handlersInDisposalOrder returns the local handlers with dependents
// before their dependencies.
func (k *Kernel) handlersInDisposalOrder() []Handler {
	handlers := k.naming.Handlers()
	byName := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byName[h.ComponentModel().Name] = h
	}

	out := make([]Handler, 0, len(handlers))
	for _, name := range k.disposalOrder() {
		if h, ok := byName[name]; ok {
			out = append(out, h)
			delete(byName, name)
		}
	}
	return out
}

func (k *Kernel) disposalOrder() []string {
	return k.componentGraph().DisposalOrder()
}

// componentGraph builds the dependency graph of the local components.
// A closed generic component is a node of its own; the open component
// depends on every closed one.
func (k *Kernel) componentGraph() *graph.Graph {
	g := graph.New()

	attributes := func(h Handler) map[string]string {
		return map[string]string{
			"lifestyle": h.ComponentModel().Lifestyle.String(),
			"state":     h.CurrentState().String(),
		}
	}

	for _, h := range k.naming.Handlers() {
		name := h.ComponentModel().Name

		gh, ok := h.(*genericHandler)
		if !ok {
			g.AddNode(name, k.dependencyNames(h), attributes(h))
			continue
		}

		var closed []string
		for _, c := range gh.ClosedHandlers() {
			g.AddNode(c.ComponentModel().Name, k.dependencyNames(c), attributes(c))
			closed = append(closed, c.ComponentModel().Name)
		}
		attrs := attributes(h)
		attrs["generic"] = gh.model.Generic.Service.String()
		g.AddNode(name, closed, attrs)
	}
	return g
}

// dependencyNames returns the components h depends on as far as they can
// be told without resolving.
func (k *Kernel) dependencyNames(h Handler) []string {
	model := h.ComponentModel()

	var names []string
	add := func(d Handler) {
		if d != nil && d != h {
			names = append(names, d.ComponentModel().Name)
		}
	}
	first := func(t reflect.Type) {
		for _, d := range k.naming.GetHandlers(t) {
			if d != h {
				add(d)
				return
			}
		}
	}

	for _, dep := range model.allDependencies() {
		name := dep.ComponentName
		if o, ok := model.findOverride(dep); ok {
			if o.ComponentName == "" {
				continue
			}
			name = o.ComponentName
		}

		if name != "" {
			add(k.naming.GetHandler(name))
			continue
		}
		if dep.Kind != ServiceDependency {
			continue
		}

		switch target, lazy := lazyTarget(dep.Type); {
		case len(k.naming.GetHandlers(dep.Type)) > 0:
			first(dep.Type)
		case isCollection(dep.Type):
			for _, d := range k.naming.GetAssignableHandlers(dep.Type.Elem()) {
				add(d)
			}
		case lazy:
			first(target)
		}
	}
	return names
}

// availableServices lists the service types registered in the kernel and
// its parents.
func (k *Kernel) availableServices() []reflect.Type {
	var out []reflect.Type
	seen := make(map[reflect.Type]bool)
	for n := k.naming; n != nil; n = n.parentNaming() {
		for _, h := range n.Handlers() {
			for _, s := range h.ComponentModel().Services {
				if !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// WriteGraph writes the component graph in Graphviz DOT format.
func (k *Kernel) WriteGraph(w io.Writer) error {
	return graph.NewVisualizer(k.componentGraph()).WriteDOT(w)
}

// WriteGraphText writes the component graph as text, grouped by depth.
func (k *Kernel) WriteGraphText(w io.Writer) error {
	return graph.NewVisualizer(k.componentGraph()).WriteText(w)
}
