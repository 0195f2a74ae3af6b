package godi

import "reflect"

// ProxyFactory wraps instances of components that carry interceptors.
// The kernel calls Create after an instance has been built, injected and
// commissioned; the returned value is what callers receive and must still
// provide the component's services.
type ProxyFactory interface {
	ShouldCreateProxy(model *ComponentModel) bool
	Create(k *Kernel, instance any, model *ComponentModel, ctx *CreationContext) (any, error)
}

// proxy applies the kernel's proxy factory to instance when the model asks
// for interception.
func (k *Kernel) proxy(instance any, model *ComponentModel, ctx *CreationContext) (any, error) {
	if k.proxyFactory == nil || !model.HasInterceptors() || !k.proxyFactory.ShouldCreateProxy(model) {
		return instance, nil
	}

	proxied, err := k.proxyFactory.Create(k, instance, model, ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range model.Services {
		if !assignable(proxied, s) {
			return nil, TypeMismatchError{
				Expected: s,
				Actual:   reflect.TypeOf(proxied),
				Context:  "proxy of " + model.Name,
			}
		}
	}
	return proxied, nil
}
