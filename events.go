package godi

import (
	"reflect"
	"sync"
)

// Event callbacks. All callbacks run synchronously on the goroutine that
// triggered the event, in subscription order.
type (
	// ComponentModelCreatedFunc may extend a model before it is registered.
	ComponentModelCreatedFunc func(model *ComponentModel)

	// ComponentRegisteredFunc observes a newly registered component.
	ComponentRegisteredFunc func(name string, h Handler)

	// HandlerRegisteredFunc observes a handler added to the naming subsystem.
	HandlerRegisteredFunc func(h Handler)

	// HandlerStateChangedFunc observes a handler that became valid.
	HandlerStateChangedFunc func(h Handler)

	// HandlersChangedFunc observes the end of a state re-evaluation pass
	// in which at least one handler changed state.
	HandlersChangedFunc func()

	// DependencyResolvingFunc observes a value about to be bound to a
	// dependency. It returns the value to bind, which may differ from the
	// proposed one; an error vetoes the resolution.
	DependencyResolvingFunc func(model *ComponentModel, dep *DependencyModel, value any) (any, error)

	// ComponentCreatedFunc observes a newly created instance.
	ComponentCreatedFunc func(model *ComponentModel, instance any)

	// ComponentDestroyedFunc observes a decommissioned instance.
	ComponentDestroyedFunc func(model *ComponentModel, instance any)

	// EmptyCollectionResolvingFunc observes a ResolveAll that produced nothing.
	EmptyCollectionResolvingFunc func(service reflect.Type)

	// RegistrationCompletedFunc observes the end of a Register call.
	RegistrationCompletedFunc func()
)

// eventHub holds the observer lists of one kernel.
type eventHub struct {
	mu sync.RWMutex

	modelCreated          []ComponentModelCreatedFunc
	componentRegistered   []ComponentRegisteredFunc
	handlerRegistered     []HandlerRegisteredFunc
	handlerStateChanged   []HandlerStateChangedFunc
	handlersChanged       []HandlersChangedFunc
	dependencyResolving   []DependencyResolvingFunc
	componentCreated      []ComponentCreatedFunc
	componentDestroyed    []ComponentDestroyedFunc
	emptyCollection       []EmptyCollectionResolvingFunc
	registrationCompleted []RegistrationCompletedFunc
}

// snapshot copies an observer list under the read lock so callbacks can
// subscribe further observers.
func snapshot[F any](mu *sync.RWMutex, list *[]F) []F {
	mu.RLock()
	defer mu.RUnlock()
	if len(*list) == 0 {
		return nil
	}
	out := make([]F, len(*list))
	copy(out, *list)
	return out
}

// OnComponentModelCreated subscribes to model creation.
func (k *Kernel) OnComponentModelCreated(fn ComponentModelCreatedFunc) {
	k.events.mu.Lock()
	k.events.modelCreated = append(k.events.modelCreated, fn)
	k.events.mu.Unlock()
}

// OnComponentRegistered subscribes to component registration.
func (k *Kernel) OnComponentRegistered(fn ComponentRegisteredFunc) {
	k.events.mu.Lock()
	k.events.componentRegistered = append(k.events.componentRegistered, fn)
	k.events.mu.Unlock()
}

// OnHandlerRegistered subscribes to handler registration.
func (k *Kernel) OnHandlerRegistered(fn HandlerRegisteredFunc) {
	k.events.mu.Lock()
	k.events.handlerRegistered = append(k.events.handlerRegistered, fn)
	k.events.mu.Unlock()
}

// OnHandlerStateChanged subscribes to handler state transitions.
func (k *Kernel) OnHandlerStateChanged(fn HandlerStateChangedFunc) {
	k.events.mu.Lock()
	k.events.handlerStateChanged = append(k.events.handlerStateChanged, fn)
	k.events.mu.Unlock()
}

// OnHandlersChanged subscribes to the end of state re-evaluation passes.
func (k *Kernel) OnHandlersChanged(fn HandlersChangedFunc) {
	k.events.mu.Lock()
	k.events.handlersChanged = append(k.events.handlersChanged, fn)
	k.events.mu.Unlock()
}

// OnDependencyResolving subscribes to dependency value binding.
func (k *Kernel) OnDependencyResolving(fn DependencyResolvingFunc) {
	k.events.mu.Lock()
	k.events.dependencyResolving = append(k.events.dependencyResolving, fn)
	k.events.mu.Unlock()
}

// OnComponentCreated subscribes to instance creation.
func (k *Kernel) OnComponentCreated(fn ComponentCreatedFunc) {
	k.events.mu.Lock()
	k.events.componentCreated = append(k.events.componentCreated, fn)
	k.events.mu.Unlock()
}

// OnComponentDestroyed subscribes to instance decommission.
func (k *Kernel) OnComponentDestroyed(fn ComponentDestroyedFunc) {
	k.events.mu.Lock()
	k.events.componentDestroyed = append(k.events.componentDestroyed, fn)
	k.events.mu.Unlock()
}

// OnEmptyCollectionResolving subscribes to empty ResolveAll results.
func (k *Kernel) OnEmptyCollectionResolving(fn EmptyCollectionResolvingFunc) {
	k.events.mu.Lock()
	k.events.emptyCollection = append(k.events.emptyCollection, fn)
	k.events.mu.Unlock()
}

// OnRegistrationCompleted subscribes to the end of Register calls.
func (k *Kernel) OnRegistrationCompleted(fn RegistrationCompletedFunc) {
	k.events.mu.Lock()
	k.events.registrationCompleted = append(k.events.registrationCompleted, fn)
	k.events.mu.Unlock()
}

func (e *eventHub) fireModelCreated(model *ComponentModel) {
	for _, fn := range snapshot(&e.mu, &e.modelCreated) {
		fn(model)
	}
}

func (e *eventHub) fireComponentRegistered(name string, h Handler) {
	for _, fn := range snapshot(&e.mu, &e.componentRegistered) {
		fn(name, h)
	}
}

func (e *eventHub) fireHandlerRegistered(h Handler) {
	for _, fn := range snapshot(&e.mu, &e.handlerRegistered) {
		fn(h)
	}
}

func (e *eventHub) fireHandlerStateChanged(h Handler) {
	for _, fn := range snapshot(&e.mu, &e.handlerStateChanged) {
		fn(h)
	}
}

func (e *eventHub) fireHandlersChanged() {
	for _, fn := range snapshot(&e.mu, &e.handlersChanged) {
		fn()
	}
}

func (e *eventHub) fireDependencyResolving(model *ComponentModel, dep *DependencyModel, value any) (any, error) {
	for _, fn := range snapshot(&e.mu, &e.dependencyResolving) {
		v, err := fn(model, dep, value)
		if err != nil {
			return nil, err
		}
		value = v
	}
	return value, nil
}

func (e *eventHub) fireComponentCreated(model *ComponentModel, instance any) {
	for _, fn := range snapshot(&e.mu, &e.componentCreated) {
		fn(model, instance)
	}
}

func (e *eventHub) fireComponentDestroyed(model *ComponentModel, instance any) {
	for _, fn := range snapshot(&e.mu, &e.componentDestroyed) {
		fn(model, instance)
	}
}

func (e *eventHub) fireEmptyCollection(service reflect.Type) {
	for _, fn := range snapshot(&e.mu, &e.emptyCollection) {
		fn(service)
	}
}

func (e *eventHub) fireRegistrationCompleted() {
	for _, fn := range snapshot(&e.mu, &e.registrationCompleted) {
		fn()
	}
}
