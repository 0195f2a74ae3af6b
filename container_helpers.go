package godi

import (
	"errors"
	"fmt"
	"reflect"
)

// ServiceResolver is implemented by Kernel and Scope.
type ServiceResolver interface {
	Resolve(t reflect.Type, opts ...ResolveOption) (any, error)
	ResolveAll(t reflect.Type, opts ...ResolveOption) ([]any, error)
}

var (
	_ ServiceResolver = (*Kernel)(nil)
	_ ServiceResolver = (*Scope)(nil)
)

// Resolve is a generic helper function that resolves a service as type T.
//
// Example:
//
//	logger, err := godi.Resolve[Logger](kernel)
//	svc, err := godi.Resolve[*Service](scope, godi.WithArgument("tenant", id))
func Resolve[T any](r ServiceResolver, opts ...ResolveOption) (T, error) {
	var zero T

	instance, err := r.Resolve(reflect.TypeFor[T](), opts...)
	if err != nil {
		return zero, err
	}

	result, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion failed: expected %T, got %T", zero, instance)
	}

	return result, nil
}

// ResolveNamed resolves the component registered under name as type T.
func ResolveNamed[T any](r ServiceResolver, name string, opts ...ResolveOption) (T, error) {
	return Resolve[T](r, append([]ResolveOption{WithName(name)}, opts...)...)
}

// ResolveAll resolves every component serving T, in registration order.
func ResolveAll[T any](r ServiceResolver, opts ...ResolveOption) ([]T, error) {
	instances, err := r.ResolveAll(reflect.TypeFor[T](), opts...)
	if err != nil {
		return nil, err
	}

	results := make([]T, 0, len(instances))
	for i, instance := range instances {
		result, ok := instance.(T)
		if !ok {
			return nil, fmt.Errorf("type assertion failed for item %d: expected %T, got %T",
				i, *new(T), instance)
		}
		results = append(results, result)
	}

	return results, nil
}

// MustResolve resolves a service and panics on error.
func MustResolve[T any](r ServiceResolver, opts ...ResolveOption) T {
	result, err := Resolve[T](r, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", formatType(reflect.TypeFor[T]()), err))
	}
	return result
}

// MustResolveNamed resolves a named component and panics on error.
func MustResolveNamed[T any](r ServiceResolver, name string, opts ...ResolveOption) T {
	result, err := ResolveNamed[T](r, name, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s[%s]: %v", formatType(reflect.TypeFor[T]()), name, err))
	}
	return result
}

// IsNotFound reports whether err means no component matched the request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrComponentNotFound)
}

// IsCircularDependency reports whether err is a circular dependency.
func IsCircularDependency(err error) bool {
	return errors.Is(err, ErrCircularDependency)
}

// IsWaitingForDependencies reports whether err means a component could not
// be built because required dependencies are missing.
func IsWaitingForDependencies(err error) bool {
	return errors.Is(err, ErrHandlerNotValid)
}
