package godi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

const (
	defaultPoolInitialSize = 5
	defaultPoolMaxSize     = 15
)

// lifestyleManager decides whether a request reuses an instance or creates
// a new one, and what releasing an instance means.
type lifestyleManager interface {
	resolve(ctx *CreationContext) (any, *Burden, error)

	// release reports whether the instance was destroyed.
	release(ctx context.Context, b *Burden) (bool, error)

	close(ctx context.Context) error
}

func newLifestyleManager(h *defaultHandler) lifestyleManager {
	switch h.model.Lifestyle {
	case Transient:
		return &transientManager{handler: h}
	case Pooled:
		return &poolManager{
			handler: h,
			initial: h.model.PoolInitialSize,
			max:     h.model.PoolMaxSize,
		}
	case Scoped:
		return &scopedManager{handler: h}
	default:
		return &singletonManager{handler: h}
	}
}

// singletonManager creates the instance once and keeps it until closed.
type singletonManager struct {
	handler *defaultHandler

	ready    atomic.Bool
	mu       sync.Mutex
	instance any
	burden   *Burden
}

func (m *singletonManager) resolve(ctx *CreationContext) (any, *Burden, error) {
	if m.ready.Load() {
		return m.instance, m.burden, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready.Load() {
		return m.instance, m.burden, nil
	}

	instance, b, err := m.handler.create(ctx, true)
	if err != nil {
		return nil, nil, err
	}

	m.instance, m.burden = instance, b
	m.ready.Store(true)
	return instance, b, nil
}

func (m *singletonManager) release(_ context.Context, b *Burden) (bool, error) {
	b.reset()
	return false, nil
}

func (m *singletonManager) close(ctx context.Context) error {
	m.mu.Lock()
	b := m.burden
	m.instance, m.burden = nil, nil
	m.ready.Store(false)
	m.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.destroy(ctx)
}

// transientManager creates an instance on every request.
type transientManager struct {
	handler *defaultHandler
}

func (m *transientManager) resolve(ctx *CreationContext) (any, *Burden, error) {
	return m.handler.create(ctx, false)
}

func (m *transientManager) release(ctx context.Context, b *Burden) (bool, error) {
	return true, m.handler.decommission(ctx, b)
}

func (m *transientManager) close(context.Context) error {
	return nil
}

// PoolStats describes the state of a pooled component.
type PoolStats struct {
	// Available is the number of idle instances in the pool.
	Available int

	// Active is the number of instances handed out and not yet released.
	Active int

	// Created is the number of instances created over the pool's life.
	Created int

	MaxSize int
}

// poolManager hands out instances from a bounded free list. Releasing an
// instance returns it to the list; instances released while the list is
// full are destroyed.
type poolManager struct {
	handler *defaultHandler
	initial int
	max     int

	mu      sync.Mutex
	warmed  bool
	free    []*Burden
	active  int
	created int
}

func (m *poolManager) resolve(ctx *CreationContext) (any, *Burden, error) {
	m.mu.Lock()
	warm := !m.warmed
	m.warmed = true
	m.mu.Unlock()

	if warm {
		if err := m.warm(ctx); err != nil {
			return nil, nil, err
		}
	}

	m.mu.Lock()
	if n := len(m.free); n > 0 {
		b := m.free[n-1]
		m.free = m.free[:n-1]
		m.active++
		m.mu.Unlock()

		b.reset()
		return b.instance, b, nil
	}
	m.mu.Unlock()

	instance, b, err := m.handler.create(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.created++
	m.active++
	m.mu.Unlock()
	return instance, b, nil
}

// warm fills the pool with its initial instances.
func (m *poolManager) warm(ctx *CreationContext) error {
	for i := 0; i < m.initial; i++ {
		_, b, err := m.handler.create(ctx, false)
		if err != nil {
			return err
		}

		m.mu.Lock()
		m.created++
		m.free = append(m.free, b)
		m.mu.Unlock()
	}
	return nil
}

func (m *poolManager) release(ctx context.Context, b *Burden) (bool, error) {
	m.mu.Lock()
	if m.active > 0 {
		m.active--
	}
	if len(m.free) < m.max {
		b.reset()
		m.free = append(m.free, b)
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	return true, m.handler.decommission(ctx, b)
}

func (m *poolManager) close(ctx context.Context) error {
	m.mu.Lock()
	free := m.free
	m.free = nil
	m.mu.Unlock()

	var errs []error
	for i := len(free) - 1; i >= 0; i-- {
		if err := free[i].destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *poolManager) stats() PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PoolStats{
		Available: len(m.free),
		Active:    m.active,
		Created:   m.created,
		MaxSize:   m.max,
	}
}

// scopedManager keeps one instance per Scope. The scope owns the instances
// and destroys them when it is closed.
type scopedManager struct {
	handler *defaultHandler
}

func (m *scopedManager) resolve(ctx *CreationContext) (any, *Burden, error) {
	scope, err := ScopeFromContext(ctx.ctx)
	if err != nil {
		if errors.Is(err, ErrScopeClosed) {
			return nil, nil, err
		}
		return nil, nil, NoScopeError{Component: m.handler.model.Name}
	}
	return scope.resolve(m.handler, ctx)
}

func (m *scopedManager) release(_ context.Context, b *Burden) (bool, error) {
	b.reset()
	return false, nil
}

func (m *scopedManager) close(context.Context) error {
	return nil
}
