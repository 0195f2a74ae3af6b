package testutil

import (
	"testing"

	"github.com/junioryono/godi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertResolvable checks that T can be resolved and returns it
func AssertResolvable[T any](t *testing.T, r godi.ServiceResolver, opts ...godi.ResolveOption) T {
	t.Helper()
	service, err := godi.Resolve[T](r, opts...)
	require.NoError(t, err, "failed to resolve service of type %T", *new(T))
	require.NotNil(t, service, "resolved service is nil")
	return service
}

// AssertNamedResolvable checks that the named component can be resolved as T
func AssertNamedResolvable[T any](t *testing.T, r godi.ServiceResolver, name string) T {
	t.Helper()
	service, err := godi.ResolveNamed[T](r, name)
	require.NoError(t, err, "failed to resolve component %q", name)
	require.NotNil(t, service, "resolved component is nil")
	return service
}

// AssertNotFound checks that resolving T fails because nothing serves it
func AssertNotFound[T any](t *testing.T, r godi.ServiceResolver) {
	t.Helper()
	_, err := godi.Resolve[T](r)
	assert.Error(t, err)
	assert.True(t, godi.IsNotFound(err), "expected component not found error, got: %v", err)
}

// AssertWaiting checks that resolving T fails because its dependencies are missing
func AssertWaiting[T any](t *testing.T, r godi.ServiceResolver) *godi.HandlerError {
	t.Helper()
	_, err := godi.Resolve[T](r)
	require.Error(t, err)
	assert.True(t, godi.IsWaitingForDependencies(err), "expected waiting dependencies error, got: %v", err)
	return AssertErrorType[*godi.HandlerError](t, err)
}

// AssertCircularDependency checks if an error is a circular dependency error
func AssertCircularDependency(t *testing.T, err error) godi.CircularDependencyError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, godi.IsCircularDependency(err), "expected circular dependency error, got: %v", err)
	return AssertErrorType[godi.CircularDependencyError](t, err)
}

// AssertErrorType checks if an error is of a specific type
func AssertErrorType[T error](t *testing.T, err error, msgAndArgs ...any) T {
	t.Helper()
	var target T
	assert.ErrorAs(t, err, &target, msgAndArgs...)
	return target
}

// AssertSameInstance verifies two services are the same instance
func AssertSameInstance(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	assert.Same(t, expected, actual, msgAndArgs...)
}

// AssertDifferentInstances verifies two services are different instances
func AssertDifferentInstances(t *testing.T, first, second any, msgAndArgs ...any) {
	t.Helper()
	assert.NotSame(t, first, second, msgAndArgs...)
}

// AssertKernelClosed checks that a closed kernel refuses further work
func AssertKernelClosed(t *testing.T, k *godi.Kernel) {
	t.Helper()
	assert.True(t, k.IsClosed(), "kernel should be closed")

	_, err := godi.Resolve[*TestService](k)
	assert.ErrorIs(t, err, godi.ErrKernelClosed)

	err = k.Register(godi.Component[*TestService]().ImplementedBy(NewTestService))
	assert.ErrorIs(t, err, godi.ErrKernelClosed)
}
