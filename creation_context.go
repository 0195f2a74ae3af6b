package godi

import (
	"context"
	"fmt"
	"reflect"
)

// CreationContext is one frame of a resolution call tree. A frame is
// created for each top-level Resolve and for each dependency resolved
// through a handler; frames link to the frame that triggered them.
//
// Frames are confined to the goroutine resolving them.
type CreationContext struct {
	kernel    *Kernel
	parent    *CreationContext
	handler   Handler
	requested reflect.Type
	args      *Arguments
	ctx       context.Context

	// building is the burden of the instance this frame is creating.
	building *Burden

	dynamic     *Arguments
	dynamicDone bool
}

func newCreationContext(k *Kernel, parent *CreationContext, h Handler, requested reflect.Type, args *Arguments, ctx context.Context) *CreationContext {
	if ctx == nil {
		if parent != nil {
			ctx = parent.ctx
		} else {
			ctx = context.Background()
		}
	}
	return &CreationContext{
		kernel:    k,
		parent:    parent,
		handler:   h,
		requested: requested,
		args:      args,
		ctx:       ctx,
	}
}

// child opens a frame for a dependency resolved through h.
func (c *CreationContext) child(h Handler, requested reflect.Type, args *Arguments) *CreationContext {
	return newCreationContext(c.kernel, c, h, requested, args, c.ctx)
}

// Kernel returns the kernel resolving this frame.
func (c *CreationContext) Kernel() *Kernel {
	return c.kernel
}

// Parent returns the frame that triggered this one, or nil at the top.
func (c *CreationContext) Parent() *CreationContext {
	return c.parent
}

// Handler returns the handler this frame resolves.
func (c *CreationContext) Handler() Handler {
	return c.handler
}

// RequestedType returns the service type requested in this frame. For
// open generic components it is the closed type being served.
func (c *CreationContext) RequestedType() reflect.Type {
	return c.requested
}

// Arguments returns the inline arguments of this frame.
func (c *CreationContext) Arguments() *Arguments {
	return c.args
}

// HasArguments reports whether inline arguments were supplied.
func (c *CreationContext) HasArguments() bool {
	return c.args.Len() > 0
}

// Context returns the context.Context the resolution runs under.
func (c *CreationContext) Context() context.Context {
	return c.ctx
}

// Scope returns the ambient scope, or nil outside a scope.
func (c *CreationContext) Scope() *Scope {
	s, err := ScopeFromContext(c.ctx)
	if err != nil {
		return nil
	}
	return s
}

// IsResolving reports whether h is being built in this frame or one of
// its ancestors. Only the handler is compared: closed generic types have
// their own handlers, and a component requested through another of its
// services is still a cycle.
func (c *CreationContext) IsResolving(h Handler) bool {
	for f := c; f != nil; f = f.parent {
		if f.handler == h {
			return true
		}
	}
	return false
}

// Path returns the component chain from the outermost frame to this one.
func (c *CreationContext) Path() []string {
	var path []string
	for f := c; f != nil; f = f.parent {
		if f.handler == nil {
			continue
		}
		path = append(path, frameLabel(f))
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func frameLabel(f *CreationContext) string {
	name := f.handler.ComponentModel().Name
	if f.requested == nil {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, formatType(f.requested))
}

// cycleError builds the error for a frame whose handler is already on the
// chain above it.
func (c *CreationContext) cycleError() error {
	return CircularDependencyError{Path: c.Path()}
}

// attach adds b as a dependency of the instance being built in this frame.
// It reports whether b is now owned by that instance.
func (c *CreationContext) attach(b *Burden) bool {
	if c == nil || c.building == nil || b == nil || !b.RequiresPolicyRelease() {
		return false
	}
	c.building.addChild(b)
	return true
}

// dynamicArguments runs the model's dynamic parameter functions once per frame.
func (c *CreationContext) dynamicArguments(model *ComponentModel) (*Arguments, error) {
	if c.dynamicDone {
		return c.dynamic, nil
	}
	c.dynamicDone = true

	if len(model.DynamicParameters) == 0 {
		return nil, nil
	}

	args := NewArguments()
	for _, fn := range model.DynamicParameters {
		if err := fn(c.kernel, c, args); err != nil {
			return nil, fmt.Errorf("dynamic parameters of %s: %w", model.Name, err)
		}
	}
	c.dynamic = args
	return args, nil
}
