package godi

import "sync/atomic"

// defaultKernel holds the default Kernel.
var defaultKernel atomic.Pointer[Kernel]

// SetDefaultKernel sets the kernel returned by DefaultKernel. This is
// similar to slog.SetDefault. Pass nil to remove the default kernel.
func SetDefaultKernel(k *Kernel) {
	defaultKernel.Store(k)
}

// DefaultKernel returns the current default Kernel, or nil if none was set.
func DefaultKernel() *Kernel {
	return defaultKernel.Load()
}
