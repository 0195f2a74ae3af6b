package godi_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/junioryono/godi/v5"
	"github.com/junioryono/godi/v5/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrors_Unwrap(t *testing.T) {
	loggerType := reflect.TypeFor[testutil.TestLogger]()

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"not found", godi.ComponentNotFoundError{ServiceType: loggerType}, godi.ErrComponentNotFound},
		{"duplicate", godi.DuplicateRegistrationError{Name: "db"}, godi.ErrDuplicateRegistration},
		{"handler", &godi.HandlerError{Component: "svc"}, godi.ErrHandlerNotValid},
		{"cycle", godi.CircularDependencyError{Path: []string{"a", "b", "a"}}, godi.ErrCircularDependency},
		{"no constructor", godi.NoResolvableConstructorError{Component: "svc", Candidates: 2}, godi.ErrNoResolvableConstructor},
		{"generic arity", godi.GenericArityError{}, godi.ErrGenericClosing},
		{"generic strategy", godi.GenericStrategyError{}, godi.ErrGenericClosing},
		{"generic mismatch", godi.GenericTypeMismatchError{}, godi.ErrGenericClosing},
		{"generic instantiation", godi.GenericInstantiationError{}, godi.ErrGenericClosing},
		{"no scope", godi.NoScopeError{Component: "svc"}, godi.ErrNoScope},
		{"frozen", godi.ModelFrozenError{Component: "svc"}, godi.ErrModelFrozen},
		{"track", godi.TrackError{Component: "svc"}, godi.ErrBurdenNotReleasable},
		{"registration", godi.RegistrationError{Cause: godi.ErrConstructorNil}, godi.ErrConstructorNil},
		{"module", godi.ModuleError{Module: "m", Cause: testutil.ErrTest}, testutil.ErrTest},
		{"resolution", godi.ComponentResolutionError{Component: "svc", Cause: testutil.ErrConstructor}, testutil.ErrConstructor},
		{"disposal", godi.DisposalError{Context: "kernel", Errors: []error{testutil.ErrTest, testutil.ErrDisposal}}, testutil.ErrDisposal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.err, tt.target)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_Messages(t *testing.T) {
	loggerType := reflect.TypeFor[testutil.TestLogger]()

	t.Run("not found suggests similar services", func(t *testing.T) {
		t.Parallel()

		err := godi.ComponentNotFoundError{
			ServiceType: loggerType,
			Available:   []reflect.Type{reflect.TypeFor[*testutil.TestLoggerImpl](), reflect.TypeFor[testutil.TestCache]()},
		}
		assert.Contains(t, err.Error(), "no component for supporting the service TestLogger was found")
		assert.Contains(t, err.Error(), "Did you mean one of these?")
		assert.Contains(t, err.Error(), "*TestLoggerImpl")
		assert.NotContains(t, err.Error(), "TestCache")
	})

	t.Run("not found by name", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, `no component named "db" was found`, godi.ComponentNotFoundError{Name: "db"}.Error())
		assert.Equal(t, `no component for supporting the service TestLogger was found (name: "db")`,
			godi.ComponentNotFoundError{Name: "db", ServiceType: loggerType}.Error())
	})

	t.Run("cycle lists the path", func(t *testing.T) {
		t.Parallel()

		msg := godi.CircularDependencyError{Path: []string{"a", "b", "a"}}.Error()
		assert.Contains(t, msg, "    a\n      ↓\n    b\n      ↓\n    a (cycle)\n")
	})

	t.Run("handler error lists nested waiting components", func(t *testing.T) {
		t.Parallel()

		err := &godi.HandlerError{
			Component: "svc",
			Missing: []godi.MissingDependency{
				{
					Dependency: &godi.DependencyModel{Name: "repo", Type: reflect.TypeFor[*testutil.TestService]()},
					Reason:     godi.RegisteredButWaiting,
					Waiting: &godi.HandlerError{
						Component: "repo",
						Missing: []godi.MissingDependency{
							{Dependency: &godi.DependencyModel{Name: "dsn", Type: reflect.TypeFor[string]()}, Reason: godi.ValueNotProvided},
						},
					},
				},
				{Dependency: &godi.DependencyModel{Name: "logger", Type: loggerType}, Reason: godi.NotRegistered},
			},
		}

		msg := err.Error()
		assert.Contains(t, msg, `can't create component "svc" as it has dependencies to be satisfied.`)
		assert.Contains(t, msg, `- Service "*TestService" which was registered but is also waiting for dependencies.`)
		assert.Contains(t, msg, `- Service "TestLogger" which was not registered.`)
		assert.Contains(t, msg, `"repo" is waiting for the following dependencies:`)
		assert.Contains(t, msg, `- Parameter "dsn" which was not provided. Did you forget to set the dependency?`)
	})

	t.Run("disposal error with one cause", func(t *testing.T) {
		t.Parallel()

		err := godi.DisposalError{Context: "scope", Errors: []error{errors.New("boom")}}
		assert.Equal(t, "scope disposal failed: boom", err.Error())
	})

	t.Run("disposal error with several causes", func(t *testing.T) {
		t.Parallel()

		err := godi.DisposalError{Context: "kernel", Errors: []error{errors.New("a"), errors.New("b")}}
		assert.Equal(t, "kernel disposal failed with 2 errors:\n  1. a\n  2. b", err.Error())
	})

	t.Run("generic arity error explains the fix", func(t *testing.T) {
		t.Parallel()

		err := godi.GenericArityError{
			Requested:           reflect.TypeFor[Store[int]](),
			RequestedArity:      1,
			Implementation:      "*keyedStore[T1,T2]",
			ImplementationArity: 2,
		}
		assert.Contains(t, err.Error(), "has 1 generic parameter(s), whereas component implementation type *keyedStore[T1,T2] requires 2")
	})

	t.Run("type mismatch", func(t *testing.T) {
		t.Parallel()

		err := godi.TypeMismatchError{
			Expected: loggerType,
			Actual:   reflect.TypeFor[*testutil.TestService](),
			Context:  "component svc",
		}
		assert.Equal(t, "component svc: expected TestLogger, got *TestService", err.Error())
	})

	t.Run("lifestyle", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "invalid lifestyle: forever", godi.LifestyleError{Value: "forever"}.Error())
	})
}

func TestErrors_Helpers(t *testing.T) {
	assert.True(t, godi.IsNotFound(godi.ComponentNotFoundError{Name: "x"}))
	assert.False(t, godi.IsNotFound(testutil.ErrTest))
	assert.True(t, godi.IsCircularDependency(godi.ComponentResolutionError{Cause: godi.CircularDependencyError{}}))
	assert.True(t, godi.IsWaitingForDependencies(&godi.HandlerError{}))
	assert.False(t, godi.IsWaitingForDependencies(nil))
}
