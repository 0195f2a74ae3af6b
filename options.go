package godi

import (
	"context"

	"go.uber.org/zap"
)

// Option configures a Kernel.
type Option interface {
	apply(*kernelOptions)
}

// kernelOptions holds kernel configuration.
type kernelOptions struct {
	logger           *zap.Logger
	config           ConfigSource
	proxyFactory     ProxyFactory
	loaders          []ComponentLoader
	subResolvers     []SubResolver
	defaultLifestyle Lifestyle
}

// optionFunc adapts a function to Option.
type optionFunc func(*kernelOptions)

func (f optionFunc) apply(opts *kernelOptions) {
	f(opts)
}

// WithLogger sets the logger of the kernel. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(opts *kernelOptions) {
		if logger != nil {
			opts.logger = logger
		}
	})
}

// WithConfigSource sets the source of configuration values for value
// dependencies.
func WithConfigSource(source ConfigSource) Option {
	return optionFunc(func(opts *kernelOptions) {
		opts.config = source
	})
}

// WithProxyFactory sets the factory wrapping intercepted components.
func WithProxyFactory(factory ProxyFactory) Option {
	return optionFunc(func(opts *kernelOptions) {
		opts.proxyFactory = factory
	})
}

// WithComponentLoader adds a lazy component loader.
func WithComponentLoader(loader ComponentLoader) Option {
	return optionFunc(func(opts *kernelOptions) {
		if loader != nil {
			opts.loaders = append(opts.loaders, loader)
		}
	})
}

// WithSubResolver adds a custom sub-resolver. Custom sub-resolvers are
// consulted after registration overrides and before service lookup.
func WithSubResolver(resolver SubResolver) Option {
	return optionFunc(func(opts *kernelOptions) {
		if resolver != nil {
			opts.subResolvers = append(opts.subResolvers, resolver)
		}
	})
}

// WithDefaultLifestyle sets the lifestyle of registrations that do not
// choose one. The default is Singleton.
func WithDefaultLifestyle(l Lifestyle) Option {
	return optionFunc(func(opts *kernelOptions) {
		if l.IsValid() {
			opts.defaultLifestyle = l
		}
	})
}

// ResolveOption configures a single resolution.
type ResolveOption interface {
	apply(*resolveOptions)
}

// resolveOptions holds resolution configuration.
type resolveOptions struct {
	name string
	args *Arguments
	ctx  context.Context
}

// resolveOptionFunc adapts a function to ResolveOption.
type resolveOptionFunc func(*resolveOptions)

func (f resolveOptionFunc) apply(opts *resolveOptions) {
	f(opts)
}

// WithName resolves the component registered under name.
func WithName(name string) ResolveOption {
	return resolveOptionFunc(func(opts *resolveOptions) {
		opts.name = name
	})
}

// WithArguments supplies inline dependency values.
func WithArguments(args *Arguments) ResolveOption {
	return resolveOptionFunc(func(opts *resolveOptions) {
		opts.args = opts.args.merge(args)
	})
}

// WithArgument supplies one inline dependency value by name.
func WithArgument(name string, value any) ResolveOption {
	return WithArguments(NewArguments().Set(name, value))
}

// WithContext resolves under ctx. Scoped components use the scope
// carried by ctx; see Kernel.BeginScope.
func WithContext(ctx context.Context) ResolveOption {
	return resolveOptionFunc(func(opts *resolveOptions) {
		opts.ctx = ctx
	})
}

func buildResolveOptions(opts []ResolveOption) resolveOptions {
	var o resolveOptions
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}
	return o
}
