package godi

import (
	"fmt"
	"reflect"
	"strings"
)

// OpenType identifies a generic type definition, independent of its type
// arguments. IRepo[int] and IRepo[string] share the same OpenType.
type OpenType struct {
	PkgPath string
	Name    string
	Arity   int
	Pointer bool
}

func (o OpenType) String() string {
	var b strings.Builder
	b.WriteString(o.base())
	b.WriteByte('[')
	for i := 0; i < o.Arity; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("T%d", i+1))
	}
	b.WriteByte(']')
	return b.String()
}

// base returns the qualified name without the type parameter list.
func (o OpenType) base() string {
	var b strings.Builder
	if o.Pointer {
		b.WriteByte('*')
	}
	if o.PkgPath != "" {
		b.WriteString(o.PkgPath)
		b.WriteByte('.')
	}
	b.WriteString(o.Name)
	return b.String()
}

// TypeDescriptor describes a service type as either a closed type or an
// open generic definition. Closed descriptors carry their type arguments.
type TypeDescriptor struct {
	// Type is the closed type. Nil for descriptors built from an open type
	// alone.
	Type reflect.Type

	// Open is set when Type is an instantiation of a generic type.
	Open *OpenType

	// Arguments are the canonical names of Type's type arguments.
	Arguments []string
}

// IsGeneric reports whether the descriptor is a generic instantiation.
func (d TypeDescriptor) IsGeneric() bool {
	return d.Open != nil
}

// Describe builds the descriptor of t.
func Describe(t reflect.Type) TypeDescriptor {
	d := TypeDescriptor{Type: t}
	if open, args, ok := openTypeOf(t); ok {
		d.Open = &open
		d.Arguments = args
	}
	return d
}

// OpenTypeOf returns the generic definition of a placeholder instantiation
// such as IRepo[any].
func OpenTypeOf[T any]() (OpenType, bool) {
	open, _, ok := openTypeOf(reflect.TypeFor[T]())
	return open, ok
}

// openTypeOf parses the generic definition and type arguments out of a
// runtime type name such as "Repo[int,github.com/acme/app.User]".
func openTypeOf(t reflect.Type) (OpenType, []string, bool) {
	if t == nil {
		return OpenType{}, nil, false
	}

	pointer := false
	if t.Kind() == reflect.Pointer && t.Name() == "" {
		pointer = true
		t = t.Elem()
	}

	name := t.Name()
	open := strings.IndexByte(name, '[')
	if open <= 0 || !strings.HasSuffix(name, "]") {
		return OpenType{}, nil, false
	}

	args := splitTypeArguments(name[open+1 : len(name)-1])
	return OpenType{
		PkgPath: t.PkgPath(),
		Name:    name[:open],
		Arity:   len(args),
		Pointer: pointer,
	}, args, true
}

// splitTypeArguments splits a type argument list on top level commas.
func splitTypeArguments(s string) []string {
	var (
		args  []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

// typeArgumentName renders t the way the runtime spells it inside the
// brackets of an instantiated type name.
func typeArgumentName(t reflect.Type) string {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return t.PkgPath() + "." + t.Name()
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeArgumentName(t.Elem())
	case reflect.Slice:
		return "[]" + typeArgumentName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), typeArgumentName(t.Elem()))
	case reflect.Map:
		return "map[" + typeArgumentName(t.Key()) + "]" + typeArgumentName(t.Elem())
	case reflect.Chan:
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + typeArgumentName(t.Elem())
		case reflect.SendDir:
			return "chan<- " + typeArgumentName(t.Elem())
		}
		return "chan " + typeArgumentName(t.Elem())
	}
	return t.String()
}

func argumentKey(args []string) string {
	return strings.Join(args, ",")
}

// GenericImplementationMatchingStrategy selects the type arguments used to
// close an open implementation for a requested closed service. It is needed
// when the implementation has more type parameters than the service.
type GenericImplementationMatchingStrategy interface {
	// GenericArguments returns every type argument of the implementation,
	// in declaration order. Returning nil means no match.
	GenericArguments(model *ComponentModel, ctx *CreationContext) []reflect.Type
}

// MatchingStrategyFunc adapts a function to GenericImplementationMatchingStrategy.
type MatchingStrategyFunc func(model *ComponentModel, ctx *CreationContext) []reflect.Type

func (f MatchingStrategyFunc) GenericArguments(model *ComponentModel, ctx *CreationContext) []reflect.Type {
	return f(model, ctx)
}

// GenericModel carries the open generic part of a component model.
type GenericModel struct {
	// Service is the open service definition, e.g. IRepo[T].
	Service OpenType

	// Implementation is the open implementation definition, e.g. Repo[T, K].
	Implementation OpenType

	// Strategy picks implementation type arguments. Optional when the
	// implementation has as many type parameters as the service.
	Strategy GenericImplementationMatchingStrategy

	// instantiations maps the argument list of each closed constructor to
	// the implementation built from it.
	instantiations map[string]*instantiation
	order          []string
}

// instantiation is one closed implementation of an open component.
type instantiation struct {
	constructor *ConstructorCandidate
	properties  []*DependencyModel
}

func (g *GenericModel) addInstantiation(args []string, inst *instantiation) {
	if g.instantiations == nil {
		g.instantiations = make(map[string]*instantiation)
	}
	key := argumentKey(args)
	if _, ok := g.instantiations[key]; !ok {
		g.order = append(g.order, key)
	}
	g.instantiations[key] = inst
}

// Instantiations returns the argument lists of the registered closed
// constructors, in registration order.
func (g *GenericModel) Instantiations() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// closingArguments computes the implementation type arguments for the
// requested closed service.
func (g *GenericModel) closingArguments(model *ComponentModel, ctx *CreationContext, requested TypeDescriptor) ([]string, error) {
	if g.Strategy == nil {
		if g.Implementation.Arity != len(requested.Arguments) {
			return nil, GenericArityError{
				Requested:           requested.Type,
				RequestedArity:      len(requested.Arguments),
				Implementation:      g.Implementation.String(),
				ImplementationArity: g.Implementation.Arity,
			}
		}
		return requested.Arguments, nil
	}

	types := g.Strategy.GenericArguments(model, ctx)
	if len(types) != g.Implementation.Arity {
		return nil, GenericStrategyError{
			Strategy:       fmt.Sprintf("%T", g.Strategy),
			Requested:      requested.Type,
			Implementation: g.Implementation.String(),
			Expected:       g.Implementation.Arity,
			Returned:       types,
		}
	}

	args := make([]string, len(types))
	for i, t := range types {
		if t == nil {
			return nil, GenericStrategyError{
				Strategy:       fmt.Sprintf("%T", g.Strategy),
				Requested:      requested.Type,
				Implementation: g.Implementation.String(),
				Expected:       g.Implementation.Arity,
				Returned:       types,
			}
		}
		args[i] = typeArgumentName(t)
	}
	return args, nil
}

// close returns the implementation registered for args and checks it
// serves the requested type.
func (g *GenericModel) close(requested TypeDescriptor, args []string) (*instantiation, error) {
	inst, ok := g.instantiations[argumentKey(args)]
	if !ok {
		return nil, GenericInstantiationError{
			Requested:      requested.Type,
			Implementation: g.Implementation.Name,
			Arguments:      args,
		}
	}

	result := inst.constructor.Fn.Type().Out(0)
	if !result.AssignableTo(requested.Type) {
		return nil, GenericTypeMismatchError{
			Requested:      requested.Type,
			Implementation: result,
		}
	}
	return inst, nil
}
