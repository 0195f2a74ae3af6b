package godi

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scope holds the instances of scoped components for one unit of work,
// typically a request. A scope travels in a context.Context; resolutions
// made with that context share the scope's instances.
//
// Example:
//
//	scope, ctx := kernel.BeginScope(r.Context())
//	defer scope.Close()
//
//	svc, err := godi.Resolve[*RequestService](kernel, godi.WithContext(ctx))
type Scope struct {
	id     string
	kernel *Kernel
	ctx    context.Context

	mu      sync.Mutex
	entries map[Handler]*scopeEntry
	order   []*Burden
	closed  bool
}

// scopeEntry is the instance of one handler in a scope. Its mutex
// serializes creation so each handler is built once per scope.
type scopeEntry struct {
	mu       sync.Mutex
	done     bool
	instance any
	burden   *Burden
}

// scopeContextKey is the key for storing the current scope in context.
type scopeContextKey struct{}

// BeginScope starts a scope and returns it with a context carrying it.
// Close the scope to release its instances.
func (k *Kernel) BeginScope(ctx context.Context) (*Scope, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Scope{
		id:      uuid.NewString(),
		kernel:  k,
		entries: make(map[Handler]*scopeEntry),
	}
	s.ctx = context.WithValue(ctx, scopeContextKey{}, s)

	k.scopesMu.Lock()
	k.scopes[s] = struct{}{}
	k.scopesMu.Unlock()

	k.logger.Debug("scope started", zap.String("scope", s.id))
	return s, s.ctx
}

// ScopeFromContext returns the scope carried by ctx.
func ScopeFromContext(ctx context.Context) (*Scope, error) {
	if ctx == nil {
		return nil, ErrNoScope
	}

	s, ok := ctx.Value(scopeContextKey{}).(*Scope)
	if !ok || s == nil {
		return nil, ErrNoScope
	}

	if s.IsClosed() {
		return nil, ErrScopeClosed
	}
	return s, nil
}

// ID returns the unique identifier of the scope.
func (s *Scope) ID() string {
	return s.id
}

// Kernel returns the kernel that began the scope.
func (s *Scope) Kernel() *Kernel {
	return s.kernel
}

// Context returns the context carrying the scope.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// IsClosed reports whether the scope has been closed.
func (s *Scope) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len returns the number of instances the scope holds.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Resolve resolves t from the scope's kernel within the scope.
func (s *Scope) Resolve(t reflect.Type, opts ...ResolveOption) (any, error) {
	return s.kernel.Resolve(t, s.options(opts)...)
}

// ResolveAll resolves every component serving t within the scope.
func (s *Scope) ResolveAll(t reflect.Type, opts ...ResolveOption) ([]any, error) {
	return s.kernel.ResolveAll(t, s.options(opts)...)
}

func (s *Scope) options(opts []ResolveOption) []ResolveOption {
	out := make([]ResolveOption, 0, len(opts)+1)
	out = append(out, opts...)
	return append(out, WithContext(s.ctx))
}

// resolve returns the instance h holds in the scope, building it on first use.
func (s *Scope) resolve(h *defaultHandler, ctx *CreationContext) (any, *Burden, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrScopeClosed
	}
	e, ok := s.entries[h]
	if !ok {
		e = &scopeEntry{}
		s.entries[h] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done {
		return e.instance, e.burden, nil
	}

	instance, b, err := h.create(ctx, true)
	if err != nil {
		s.mu.Lock()
		if s.entries[h] == e {
			delete(s.entries, h)
		}
		s.mu.Unlock()
		return nil, nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, errors.Join(ErrScopeClosed, b.destroy(context.WithoutCancel(s.ctx)))
	}
	s.order = append(s.order, b)
	s.mu.Unlock()

	e.instance, e.burden, e.done = instance, b, true
	return instance, b, nil
}

// Close destroys the scope's instances, most recently created first.
// Closing twice is a no-op.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order := s.order
	s.order = nil
	s.entries = nil
	s.mu.Unlock()

	k := s.kernel
	k.scopesMu.Lock()
	delete(k.scopes, s)
	k.scopesMu.Unlock()

	ctx := context.WithoutCancel(s.ctx)

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := order[i].destroy(ctx); err != nil {
			k.logger.Warn("failed to destroy scoped component",
				zap.String("scope", s.id),
				zap.String("component", order[i].handler.ComponentModel().Name),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	k.logger.Debug("scope closed", zap.String("scope", s.id), zap.Int("instances", len(order)))

	if len(errs) > 0 {
		return DisposalError{Context: "scope", Errors: errs}
	}
	return nil
}
