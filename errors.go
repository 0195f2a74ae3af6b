package godi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors wrapped by the typed errors below.
// Match them with errors.Is.

var (
	// Lookup errors.
	ErrComponentNotFound = errors.New("component not found")
	ErrServiceTypeNil    = errors.New("service type cannot be nil")
	ErrNameEmpty         = errors.New("component name cannot be empty")

	// Handler errors.
	ErrHandlerNotValid         = errors.New("component has dependencies to be satisfied")
	ErrCircularDependency      = errors.New("circular dependency detected")
	ErrNoResolvableConstructor = errors.New("no resolvable constructor")

	// Registration errors.
	ErrDuplicateRegistration = errors.New("component already registered")
	ErrConstructorNil        = errors.New("constructor cannot be nil")
	ErrNoImplementation      = errors.New("registration has no implementation, factory or instance")
	ErrNoServices            = errors.New("registration has no services")
	ErrModelFrozen           = errors.New("component model is frozen")

	// Lifecycle errors.
	ErrKernelNil           = errors.New("kernel cannot be nil")
	ErrKernelClosed        = errors.New("kernel has been closed")
	ErrScopeClosed         = errors.New("scope has been closed")
	ErrNoScope             = errors.New("no scope available")
	ErrBurdenNotReleasable = errors.New("burden does not require policy release")

	// Generic closing errors.
	ErrGenericClosing = errors.New("open generic component cannot be closed")
)

var (
	_ error = LifestyleError{}
	_ error = ComponentNotFoundError{}
	_ error = DuplicateRegistrationError{}
	_ error = RegistrationError{}
	_ error = ModuleError{}
	_ error = (*HandlerError)(nil)
	_ error = CircularDependencyError{}
	_ error = ComponentResolutionError{}
	_ error = ConstructorPanicError{}
	_ error = NoResolvableConstructorError{}
	_ error = GenericArityError{}
	_ error = GenericStrategyError{}
	_ error = GenericTypeMismatchError{}
	_ error = GenericInstantiationError{}
	_ error = NoScopeError{}
	_ error = ModelFrozenError{}
	_ error = TrackError{}
	_ error = TypeMismatchError{}
	_ error = DisposalError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// LifestyleError indicates an invalid lifestyle value.
type LifestyleError struct {
	Value any
}

func (e LifestyleError) Error() string {
	return fmt.Sprintf("invalid lifestyle: %v", e.Value)
}

// ComponentNotFoundError indicates no handler matches the requested name or service.
type ComponentNotFoundError struct {
	ServiceType reflect.Type
	Name        string
	Available   []reflect.Type
}

func (e ComponentNotFoundError) Error() string {
	var b strings.Builder

	switch {
	case e.Name != "" && e.ServiceType != nil:
		b.WriteString(fmt.Sprintf("no component for supporting the service %s was found (name: %q)", formatType(e.ServiceType), e.Name))
	case e.Name != "":
		b.WriteString(fmt.Sprintf("no component named %q was found", e.Name))
	default:
		b.WriteString(fmt.Sprintf("no component for supporting the service %s was found", formatType(e.ServiceType)))
	}

	if similar := findSimilarTypes(e.ServiceType, e.Available); len(similar) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, t := range similar {
			b.WriteString(fmt.Sprintf("  • %s\n", formatType(t)))
		}
	}

	return b.String()
}

func (e ComponentNotFoundError) Unwrap() error {
	return ErrComponentNotFound
}

// findSimilarTypes finds types with similar names using a simple substring/prefix match
func findSimilarTypes(target reflect.Type, available []reflect.Type) []reflect.Type {
	if target == nil || len(available) == 0 {
		return nil
	}

	targetName := target.String()
	targetShortName := target.Name()
	if targetShortName == "" {
		targetShortName = targetName
	}

	var similar []reflect.Type
	for _, t := range available {
		if t == nil || t == target {
			continue
		}

		typeName := t.String()
		typeShortName := t.Name()
		if typeShortName == "" {
			typeShortName = typeName
		}

		if targetShortName == typeShortName ||
			strings.Contains(strings.ToLower(typeName), strings.ToLower(targetShortName)) ||
			strings.Contains(strings.ToLower(targetName), strings.ToLower(typeShortName)) {
			similar = append(similar, t)
		}

		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

// DuplicateRegistrationError indicates a component name is already in use.
type DuplicateRegistrationError struct {
	Name string
}

func (e DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("component %q could not be registered: there is already a component with that name", e.Name)
}

func (e DuplicateRegistrationError) Unwrap() error {
	return ErrDuplicateRegistration
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// RegistrationError wraps errors found while building a component model.
type RegistrationError struct {
	Component string
	Cause     error
}

func (e RegistrationError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("registration failed: %v", e.Cause)
	}
	return fmt.Sprintf("registration of %q failed: %v", e.Component, e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// MissingReason tells why a dependency could not be satisfied.
type MissingReason int

const (
	// NotRegistered means no component provides the service.
	NotRegistered MissingReason = iota

	// RegisteredButWaiting means a component provides the service but is
	// itself waiting for dependencies.
	RegisteredButWaiting

	// ValueNotProvided means a parameter value was not supplied.
	ValueNotProvided
)

// MissingDependency is one unmet dependency of a waiting handler.
type MissingDependency struct {
	Dependency *DependencyModel
	Reason     MissingReason

	// Waiting is the nested report of the registered component that is
	// itself waiting. Set only for RegisteredButWaiting.
	Waiting *HandlerError
}

func (m MissingDependency) describe() string {
	dep := m.Dependency
	target := formatType(dep.Type)
	if dep.ComponentName != "" {
		target = dep.ComponentName
	}

	switch m.Reason {
	case RegisteredButWaiting:
		return fmt.Sprintf("- Service %q which was registered but is also waiting for dependencies.", target)
	case ValueNotProvided:
		return fmt.Sprintf("- Parameter %q which was not provided. Did you forget to set the dependency?", dep.Name)
	default:
		return fmt.Sprintf("- Service %q which was not registered.", target)
	}
}

// HandlerError reports a component that cannot be created because some of
// its dependencies cannot be satisfied.
type HandlerError struct {
	Component string
	Missing   []MissingDependency
}

func (e *HandlerError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("can't create component %q as it has dependencies to be satisfied.\n", e.Component))
	e.writeWaiting(&b, make(map[string]bool))
	return b.String()
}

func (e *HandlerError) writeWaiting(b *strings.Builder, seen map[string]bool) {
	if seen[e.Component] {
		return
	}
	seen[e.Component] = true

	b.WriteString(fmt.Sprintf("\n%q is waiting for the following dependencies:\n", e.Component))
	for _, m := range e.Missing {
		b.WriteString(m.describe())
		b.WriteString("\n")
	}

	for _, m := range e.Missing {
		if m.Waiting != nil {
			m.Waiting.writeWaiting(b, seen)
		}
	}
}

func (e *HandlerError) Unwrap() error {
	return ErrHandlerNotValid
}

// CircularDependencyError represents a cycle found while resolving.
// Path lists the resolution chain from the outermost component to the
// component that was requested again.
type CircularDependencyError struct {
	Path []string
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	for i, node := range e.Path {
		b.WriteString(fmt.Sprintf("    %s", node))
		if i == len(e.Path)-1 {
			b.WriteString(" (cycle)")
		}
		b.WriteString("\n")
		if i < len(e.Path)-1 {
			b.WriteString("      ↓\n")
		}
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Use a lazy dependency (func() (T, error)) to break the cycle\n")
	b.WriteString("  • Use property injection for one side of the relationship\n")
	b.WriteString("  • Restructure to remove the circular relationship\n")

	return b.String()
}

func (e CircularDependencyError) Unwrap() error {
	return ErrCircularDependency
}

// ComponentResolutionError wraps failures raised while building an instance.
type ComponentResolutionError struct {
	Component   string
	ServiceType reflect.Type
	Cause       error
}

func (e ComponentResolutionError) Error() string {
	if e.ServiceType != nil {
		return fmt.Sprintf("failed to create component %q (%s): %v", e.Component, formatType(e.ServiceType), e.Cause)
	}
	return fmt.Sprintf("failed to create component %q: %v", e.Component, e.Cause)
}

func (e ComponentResolutionError) Unwrap() error {
	return e.Cause
}

// ConstructorPanicError indicates a constructor panicked during invocation.
// It captures the panic value and stack trace for debugging.
type ConstructorPanicError struct {
	Constructor reflect.Type
	Panic       any
	Stack       []byte
}

func (e ConstructorPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("constructor %s panicked: %v\n", formatType(e.Constructor), e.Panic))

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// NoResolvableConstructorError indicates none of the component's
// constructors can be satisfied.
type NoResolvableConstructorError struct {
	Component  string
	Candidates int
}

func (e NoResolvableConstructorError) Error() string {
	return fmt.Sprintf("component %q has %d constructor(s) and none of them can be satisfied", e.Component, e.Candidates)
}

func (e NoResolvableConstructorError) Unwrap() error {
	return ErrNoResolvableConstructor
}

// GenericArityError indicates the requested service does not carry enough
// type arguments to close the implementation and no strategy was supplied.
type GenericArityError struct {
	Requested           reflect.Type
	RequestedArity      int
	Implementation      string
	ImplementationArity int
}

func (e GenericArityError) Error() string {
	return fmt.Sprintf("requested type %s has %d generic parameter(s), whereas component implementation type %s requires %d. "+
		"There is not enough information to close that component; supply a GenericImplementationMatchingStrategy "+
		"that selects the remaining type arguments",
		formatType(e.Requested), e.RequestedArity, e.Implementation, e.ImplementationArity)
}

func (e GenericArityError) Unwrap() error {
	return ErrGenericClosing
}

// GenericStrategyError indicates a matching strategy returned no type
// arguments, or the wrong number of them.
type GenericStrategyError struct {
	Strategy       string
	Requested      reflect.Type
	Implementation string
	Expected       int
	Returned       []reflect.Type
}

func (e GenericStrategyError) Error() string {
	if len(e.Returned) == 0 {
		return fmt.Sprintf("strategy %s returned no type arguments for %s while closing implementation %s, which requires %d",
			e.Strategy, formatType(e.Requested), e.Implementation, e.Expected)
	}

	names := make([]string, len(e.Returned))
	for i, t := range e.Returned {
		names[i] = formatType(t)
	}
	return fmt.Sprintf("strategy %s returned %d type argument(s) [%s] for %s while closing implementation %s, which requires %d",
		e.Strategy, len(e.Returned), strings.Join(names, ", "), formatType(e.Requested), e.Implementation, e.Expected)
}

func (e GenericStrategyError) Unwrap() error {
	return ErrGenericClosing
}

// GenericTypeMismatchError indicates the closed implementation does not
// satisfy the requested service.
type GenericTypeMismatchError struct {
	Requested      reflect.Type
	Implementation reflect.Type
}

func (e GenericTypeMismatchError) Error() string {
	return fmt.Sprintf("closed implementation %s is not compatible with requested service %s",
		formatType(e.Implementation), formatType(e.Requested))
}

func (e GenericTypeMismatchError) Unwrap() error {
	return ErrGenericClosing
}

// GenericInstantiationError indicates no instantiation of the open
// implementation was registered for the computed type arguments.
type GenericInstantiationError struct {
	Requested      reflect.Type
	Implementation string
	Arguments      []string
}

func (e GenericInstantiationError) Error() string {
	return fmt.Sprintf("no instantiation of %s[%s] was registered to serve %s",
		e.Implementation, strings.Join(e.Arguments, ","), formatType(e.Requested))
}

func (e GenericInstantiationError) Unwrap() error {
	return ErrGenericClosing
}

// NoScopeError indicates a scoped component was resolved outside a scope.
type NoScopeError struct {
	Component string
}

func (e NoScopeError) Error() string {
	return fmt.Sprintf("scope was not available for component %q. Did you forget to call BeginScope?", e.Component)
}

func (e NoScopeError) Unwrap() error {
	return ErrNoScope
}

// ModelFrozenError indicates a facility tried to change a model that was
// already used for resolution.
type ModelFrozenError struct {
	Component string
}

func (e ModelFrozenError) Error() string {
	return fmt.Sprintf("component model %q cannot be changed after its first resolution", e.Component)
}

func (e ModelFrozenError) Unwrap() error {
	return ErrModelFrozen
}

// TrackError indicates an invalid call to ReleasePolicy.Track.
type TrackError struct {
	Component string
}

func (e TrackError) Error() string {
	return fmt.Sprintf("burden of %q cannot be tracked: %v", e.Component, ErrBurdenNotReleasable)
}

func (e TrackError) Unwrap() error {
	return ErrBurdenNotReleasable
}

// TypeMismatchError indicates a type assertion or conversion failed.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

// DisposalError aggregates disposal errors
type DisposalError struct {
	Context string // "kernel", "scope", "policy"
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s disposal failed with %d errors:", e.Context, len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
