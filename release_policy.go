package godi

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ReleasePolicy tracks instances that must be released explicitly and
// releases them in order when the kernel is closed.
//
// Only burdens that require policy release are tracked: transient and
// pooled instances needing decommission, or owning dependencies that do.
// Singleton and scoped instances belong to their lifestyle.
type ReleasePolicy struct {
	mu      sync.Mutex
	parent  *ReleasePolicy
	tracked map[any][]*Burden
	loose   []*Burden
	seq     map[*Burden]int
	next    int

	// order returns component names in disposal order.
	order  func() []string
	logger *zap.Logger
}

func newReleasePolicy(parent *ReleasePolicy, order func() []string, logger *zap.Logger) *ReleasePolicy {
	return &ReleasePolicy{
		parent:  parent,
		tracked: make(map[any][]*Burden),
		seq:     make(map[*Burden]int),
		order:   order,
		logger:  logger,
	}
}

type pointerKey struct {
	typ reflect.Type
	ptr uintptr
}

type sliceKey struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// instanceKey returns the identity of instance. Values that are neither
// references nor comparable have no key. Distinct instances may share a
// key, as zero-size values do, so a key maps to a stack of burdens.
func instanceKey(instance any) (any, bool) {
	rv := reflect.ValueOf(instance)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return pointerKey{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		return sliceKey{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}, true
	case reflect.Invalid:
		return nil, false
	}
	if rv.Comparable() {
		return instance, true
	}
	return nil, false
}

func (p *ReleasePolicy) setParent(parent *ReleasePolicy) {
	p.mu.Lock()
	p.parent = parent
	p.mu.Unlock()
}

// Track records the burden of instance. It fails if the burden does not
// require policy release.
func (p *ReleasePolicy) Track(instance any, b *Burden) error {
	if b == nil || !b.RequiresPolicyRelease() {
		component := ""
		if b != nil {
			component = b.handler.ComponentModel().Name
		}
		return TrackError{Component: component}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if key, ok := instanceKey(instance); ok {
		p.tracked[key] = append(p.tracked[key], b)
	} else {
		p.loose = append(p.loose, b)
	}
	p.seq[b] = p.next
	p.next++
	return nil
}

// HasTrack reports whether instance is tracked by this policy or a parent.
func (p *ReleasePolicy) HasTrack(instance any) bool {
	p.mu.Lock()
	_, ok := p.lookup(instance, false)
	parent := p.parent
	p.mu.Unlock()

	if !ok && parent != nil {
		return parent.HasTrack(instance)
	}
	return ok
}

// lookup finds the burden of instance, optionally untracking it.
// p.mu must be held.
func (p *ReleasePolicy) lookup(instance any, remove bool) (*Burden, bool) {
	if key, ok := instanceKey(instance); ok {
		stack := p.tracked[key]
		if len(stack) == 0 {
			return nil, false
		}
		b := stack[len(stack)-1]
		if remove {
			if len(stack) == 1 {
				delete(p.tracked, key)
			} else {
				p.tracked[key] = stack[:len(stack)-1]
			}
			delete(p.seq, b)
		}
		return b, true
	}

	for i, b := range p.loose {
		if reflect.DeepEqual(b.instance, instance) {
			if remove {
				p.loose = append(p.loose[:i], p.loose[i+1:]...)
				delete(p.seq, b)
			}
			return b, true
		}
	}
	return nil, false
}

// Release releases the instance if it is tracked, or delegates to the
// parent policy. Releasing an unknown or already released instance is a no-op.
func (p *ReleasePolicy) Release(ctx context.Context, instance any) error {
	if instance == nil {
		return nil
	}

	p.mu.Lock()
	b, ok := p.lookup(instance, true)
	parent := p.parent
	p.mu.Unlock()

	if !ok {
		if parent != nil {
			return parent.Release(ctx, instance)
		}
		return nil
	}

	_, err := b.Release(ctx)
	return err
}

// Count returns the number of tracked instances.
func (p *ReleasePolicy) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.loose)
	for _, stack := range p.tracked {
		n += len(stack)
	}
	return n
}

// Close releases every tracked instance. Instances of components that
// depend on other components are released first; within a component the
// most recently tracked instance goes first.
func (p *ReleasePolicy) Close(ctx context.Context) error {
	p.mu.Lock()
	burdens := make([]*Burden, 0, len(p.seq))
	for _, stack := range p.tracked {
		burdens = append(burdens, stack...)
	}
	burdens = append(burdens, p.loose...)
	seq := p.seq

	p.tracked = make(map[any][]*Burden)
	p.loose = nil
	p.seq = make(map[*Burden]int)
	p.mu.Unlock()

	rank := make(map[string]int)
	if p.order != nil {
		for i, name := range p.order() {
			rank[name] = i
		}
	}

	rankOf := func(b *Burden) int {
		if r, ok := rank[b.handler.ComponentModel().Name]; ok {
			return r
		}
		return len(rank)
	}

	sort.SliceStable(burdens, func(i, j int) bool {
		if ri, rj := rankOf(burdens[i]), rankOf(burdens[j]); ri != rj {
			return ri < rj
		}
		return seq[burdens[i]] > seq[burdens[j]]
	})

	var errs []error
	for _, b := range burdens {
		if _, err := b.Release(ctx); err != nil {
			p.logger.Warn("release failed",
				zap.String("component", b.handler.ComponentModel().Name),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return DisposalError{Context: "release policy", Errors: errs}
	}
	return nil
}
