// Package godi provides an inversion of control kernel for Go applications.
//
// # Overview
//
// A Kernel holds a registry of components. Each component is a named
// implementation that serves one or more service types and is managed by a
// handler. The kernel provides:
//   - Four lifestyles: Singleton, Transient, Pooled and Scoped
//   - Constructor injection with greediest-satisfiable constructor selection
//   - Optional property injection through `inject` struct tags
//   - Handler states that track whether a component's dependencies are met
//   - Sub-resolvers, component loaders and parent kernels as fallbacks
//   - Open generic components closed per requested type
//   - Burden tracking and a release policy for deterministic teardown
//   - Events and facilities for extending the kernel
//
// # Basic Usage
//
// Create a kernel, register components, and resolve:
//
//	k := godi.NewKernel(godi.WithLogger(logger))
//	defer k.Close()
//
//	err := k.Register(
//	    godi.Component[Logger]().ImplementedBy(NewLogger),
//	    godi.Component[*UserService]().ImplementedBy(NewUserService).LifestyleScoped(),
//	)
//
//	scope, ctx := k.BeginScope(context.Background())
//	defer scope.Close()
//
//	userService, err := godi.Resolve[*UserService](scope)
//
// Modules offer a shorter form for the same registrations:
//
//	err := k.Install(godi.NewModule("app",
//	    godi.AddSingleton(NewLogger, godi.As(new(Logger))),
//	    godi.AddScoped(NewUserService),
//	))
//
// # Handler States
//
// A component whose dependencies cannot be satisfied yet is registered in
// the WaitingDependency state. Every registration revalidates the waiting
// handlers, so components may be registered in any order. Resolving a
// waiting component returns a HandlerError listing each missing dependency
// and why it is missing.
//
// Wrap bulk registrations in OptimizeDependencyResolution to revalidate once:
//
//	done := k.OptimizeDependencyResolution()
//	// register many components
//	done()
//
// # Lifestyles
//
//   - Singleton: one instance per kernel, created on first use
//   - Transient: a new instance per resolution, tracked only when it needs teardown
//   - Pooled: instances recycled through a bounded pool on Release
//   - Scoped: one instance per Scope, disposed when the scope closes
//
// # Dependencies
//
// Constructor parameters are resolved in order from per-call arguments,
// registration overrides, sub-resolvers, registered handlers, lazy funcs,
// collections and configuration:
//
//	godi.Component[*Client]().
//	    ImplementedBy(NewClient).
//	    DependsOn(godi.OnConfig("timeout", "CLIENT_TIMEOUT"))
//
//	client, err := godi.Resolve[*Client](k, godi.WithArgument("tenant", id))
//
// Parameter objects embed godi.In:
//
//	type ServiceParams struct {
//	    godi.In
//
//	    Store  Store
//	    Cache  Cache  `optional:"true"`
//	    Region string `config:"REGION" default:"eu-west-1"`
//	}
//
// # Open Generics
//
// An open component is registered with a sample instantiation and closed
// for each requested type argument:
//
//	k.Register(godi.Open[Repo[any]]().ImplementedBy(NewMemRepo[int]))
//	users, err := godi.Resolve[Repo[User]](k)
//
// # Releasing Components
//
// Instances that need teardown are tracked by the release policy. Release
// runs their destruction concerns and Close methods, returns pooled
// instances to their pool, and releases their tracked dependencies:
//
//	conn := godi.MustResolve[*Conn](k)
//	defer k.Release(conn)
//
// # Thread Safety
//
// Kernels and scopes are safe for concurrent use.
//
// # Error Handling
//
// Errors are typed and wrap sentinel values for errors.Is:
//   - ComponentNotFoundError: no component serves the request
//   - HandlerError: the component is waiting for dependencies
//   - CircularDependencyError: a component depends on itself
//   - NoResolvableConstructorError: no constructor can be satisfied
//   - GenericArityError, GenericStrategyError, GenericTypeMismatchError and
//     GenericInstantiationError: an open component could not be closed
package godi
