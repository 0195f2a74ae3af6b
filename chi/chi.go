// Package chi provides godi integration for the Chi router.
//
// This package provides middleware opening a kernel scope per request and
// type-safe handler wrappers resolving controllers from that scope.
//
// Example usage:
//
//	kernel := godi.NewKernel()
//	// register components...
//
//	r := godichi.NewRouter(kernel)
//
//	r.Post("/login", godichi.Handle(AuthController.Login))
//	r.Get("/users/{id}", godichi.Handle(UserController.GetByID, godichi.WithURLParamArguments()))
package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/junioryono/godi/v5"
)

// Config holds the configuration for the scope middleware.
type Config struct {
	// Logger receives scope close failures. Defaults to the kernel logger.
	Logger *zap.Logger

	// ErrorHandler is called when the scope cannot be opened or a
	// middleware fails. If nil, a default handler returning 500 Internal
	// Server Error is used.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler is called when scope closing fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares are functions that run after the scope is opened.
	// They can be used to initialize request context, set user data, etc.
	Middlewares []func(*godi.Scope, *http.Request) error
}

// Option configures the scope middleware.
type Option func(*Config)

// WithLogger sets the logger of the middleware.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithErrorHandler sets the error handler for scope creation failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithCloseErrorHandler sets the error handler for scope close failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) {
		c.CloseErrorHandler = h
	}
}

// WithMiddleware adds a middleware function that runs after scope creation.
// Multiple middlewares are executed in the order they are added.
func WithMiddleware(mw func(*godi.Scope, *http.Request) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

func defaultConfig(logger *zap.Logger) *Config {
	cfg := &Config{Logger: logger}
	cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	cfg.CloseErrorHandler = func(err error) {
		cfg.Logger.Error("failed to close scope", zap.Error(err))
	}
	return cfg
}

// ScopeMiddleware creates a Chi middleware that opens a kernel scope for
// each request. The scope travels in the request context; scoped
// components resolved with that context share the scope's instances.
//
// The scope is closed when the request completes.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(godichi.ScopeMiddleware(kernel))
func ScopeMiddleware(kernel *godi.Kernel, opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig(kernel.Logger())
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if kernel.IsClosed() {
				cfg.ErrorHandler(w, r, godi.ErrKernelClosed)
				return
			}

			scope, ctx := kernel.BeginScope(r.Context())
			defer func() {
				if err := scope.Close(); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			r = r.WithContext(ctx)

			for _, mw := range cfg.Middlewares {
				if err := mw(scope, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter returns a chi router with ScopeMiddleware installed.
func NewRouter(kernel *godi.Kernel, opts ...Option) gochi.Router {
	r := gochi.NewRouter()
	r.Use(ScopeMiddleware(kernel, opts...))
	return r
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// Logger receives handler failures. Defaults to the kernel logger of
	// the request scope, or zap.L() without a scope.
	Logger *zap.Logger

	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// URLParamArguments passes the chi URL parameters of the request as
	// resolution arguments, keyed by parameter name.
	URLParamArguments bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(http.ResponseWriter, *http.Request, any)

	// ScopeErrorHandler is called when scope retrieval fails.
	ScopeErrorHandler func(http.ResponseWriter, *http.Request, error)

	// ResolutionErrorHandler is called when service resolution fails.
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)
}

// HandlerOption configures the Handle wrapper.
type HandlerOption func(*HandlerConfig)

// WithHandlerLogger sets the logger of the handler.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(c *HandlerConfig) {
		c.Logger = logger
	}
}

// WithPanicRecovery enables or disables panic recovery in the handler.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicRecovery = enabled
	}
}

// WithURLParamArguments resolves the controller with the chi URL
// parameters of the request as arguments.
func WithURLParamArguments() HandlerOption {
	return func(c *HandlerConfig) {
		c.URLParamArguments = true
	}
}

// WithPanicHandler sets the handler for panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithScopeErrorHandler sets the error handler for scope retrieval failures.
func WithScopeErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ScopeErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for service resolution failures.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ResolutionErrorHandler = h
	}
}

func defaultHandlerConfig() *HandlerConfig {
	cfg := &HandlerConfig{}
	logger := func(r *http.Request) *zap.Logger {
		if cfg.Logger != nil {
			return cfg.Logger
		}
		if scope, err := godi.ScopeFromContext(r.Context()); err == nil {
			return scope.Kernel().Logger()
		}
		return zap.L()
	}

	cfg.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logger(r).Error("panic in handler", zap.Any("panic", v), zap.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	cfg.ScopeErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger(r).Error("failed to get scope from context", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	cfg.ResolutionErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger(r).Error("failed to resolve controller", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return cfg
}

// Handle wraps a controller method for type-safe resolution from the request scope.
// The controller type T is resolved from the scope attached to the request context.
//
// The method signature should be: func(T, http.ResponseWriter, *http.Request)
//
// Example:
//
//	type UserController interface {
//	    GetByID(http.ResponseWriter, *http.Request)
//	}
//
//	r.Get("/users/{id}", godichi.Handle(UserController.GetByID))
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, r, v)
				}
			}()
		}

		scope, err := godi.ScopeFromContext(r.Context())
		if err != nil {
			cfg.ScopeErrorHandler(w, r, err)
			return
		}

		var resolveOpts []godi.ResolveOption
		if cfg.URLParamArguments {
			if args := urlParamArguments(r); args != nil {
				resolveOpts = append(resolveOpts, godi.WithArguments(args))
			}
		}

		controller, err := godi.Resolve[T](scope, resolveOpts...)
		if err != nil {
			cfg.ResolutionErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}

// urlParamArguments returns the URL parameters matched by chi for r.
func urlParamArguments(r *http.Request) *godi.Arguments {
	rctx := gochi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return nil
	}

	args := godi.NewArguments()
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		args.Set(key, rctx.URLParams.Values[i])
	}
	return args
}
