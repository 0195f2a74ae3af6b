package godi

import (
	"context"
	"errors"
	"sync"
)

// Burden records the ownership of one created instance: the handler that
// built it and the burdens of the dependencies created along with it.
// Releasing a burden decommissions its instance and then its dependencies.
type Burden struct {
	handler  Handler
	instance any

	requiresDecommission bool

	// ownedByLifestyle is set for instances whose release is driven by
	// their lifestyle manager or scope rather than by the release policy.
	ownedByLifestyle bool

	mu       sync.Mutex
	children []*Burden
	released bool
}

func newBurden(h Handler, ownedByLifestyle bool) *Burden {
	return &Burden{handler: h, ownedByLifestyle: ownedByLifestyle}
}

// setInstance records the built instance.
func (b *Burden) setInstance(instance any) {
	b.instance = instance
	b.requiresDecommission = b.handler.ComponentModel().requiresDecommission(instance)
}

// Handler returns the handler that built the instance.
func (b *Burden) Handler() Handler {
	return b.handler
}

// Instance returns the tracked instance.
func (b *Burden) Instance() any {
	return b.instance
}

// RequiresDecommission reports whether releasing the instance runs
// destruction concerns or disposal.
func (b *Burden) RequiresDecommission() bool {
	return b.requiresDecommission
}

// RequiresPolicyRelease reports whether the release policy must track the
// instance so it can be released later.
func (b *Burden) RequiresPolicyRelease() bool {
	if b.ownedByLifestyle {
		return false
	}
	if b.requiresDecommission {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.children) > 0
}

// Children returns the burdens of dependencies owned by this instance.
func (b *Burden) Children() []*Burden {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Burden, len(b.children))
	copy(out, b.children)
	return out
}

// Released reports whether the burden was released.
func (b *Burden) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// reset makes a burden whose instance was kept alive releasable again.
// Lifestyle managers that keep an instance call it before reusing it.
func (b *Burden) reset() {
	b.mu.Lock()
	b.released = false
	b.mu.Unlock()
}

func (b *Burden) addChild(child *Burden) {
	b.mu.Lock()
	b.children = append(b.children, child)
	b.mu.Unlock()
}

// Release asks the handler to release the instance and, if the handler
// destroyed it, releases the dependencies. Releasing twice is a no-op.
// It reports whether the instance was destroyed; pooled instances returned
// to their pool are not.
func (b *Burden) Release(ctx context.Context) (bool, error) {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return false, nil
	}
	b.released = true
	b.mu.Unlock()

	destroyed, err := b.handler.Release(ctx, b)
	if !destroyed {
		return false, err
	}

	return true, errors.Join(err, b.releaseChildren(ctx))
}

// releaseChildren releases the dependency burdens, last created first.
func (b *Burden) releaseChildren(ctx context.Context) error {
	b.mu.Lock()
	children := b.children
	b.children = nil
	b.mu.Unlock()

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if _, err := children[i].Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// destroy decommissions the instance without consulting the lifestyle
// manager, then releases the dependencies. Lifestyle managers use it for
// the instances they own.
func (b *Burden) destroy(ctx context.Context) error {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil
	}
	b.released = true
	b.mu.Unlock()

	err := b.handler.decommission(ctx, b)
	return errors.Join(err, b.releaseChildren(ctx))
}
