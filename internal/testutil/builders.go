package testutil

import (
	"testing"

	"github.com/junioryono/godi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// KernelBuilder provides a fluent interface for building test kernels
type KernelBuilder struct {
	t       *testing.T
	options []godi.Option
	regs    []godi.Registration
	modules []godi.ModuleOption
}

// NewKernelBuilder creates a new KernelBuilder logging to the test output
func NewKernelBuilder(t *testing.T) *KernelBuilder {
	return &KernelBuilder{
		t:       t,
		options: []godi.Option{godi.WithLogger(zaptest.NewLogger(t))},
	}
}

// WithOptions adds kernel options
func (b *KernelBuilder) WithOptions(opts ...godi.Option) *KernelBuilder {
	b.options = append(b.options, opts...)
	return b
}

// With adds registrations
func (b *KernelBuilder) With(regs ...godi.Registration) *KernelBuilder {
	b.regs = append(b.regs, regs...)
	return b
}

// WithModule adds modules installed after the registrations
func (b *KernelBuilder) WithModule(modules ...godi.ModuleOption) *KernelBuilder {
	b.modules = append(b.modules, modules...)
	return b
}

// Build creates the kernel and closes it when the test ends
func (b *KernelBuilder) Build() *godi.Kernel {
	b.t.Helper()

	k := godi.NewKernel(b.options...)
	b.t.Cleanup(func() {
		if !k.IsClosed() {
			require.NoError(b.t, k.Close())
		}
	})

	if len(b.regs) > 0 {
		require.NoError(b.t, k.Register(b.regs...), "failed to register components")
	}
	if len(b.modules) > 0 {
		require.NoError(b.t, k.Install(b.modules...), "failed to install modules")
	}
	return k
}

// NewTestKernel builds a kernel holding regs
func NewTestKernel(t *testing.T, regs ...godi.Registration) *godi.Kernel {
	t.Helper()
	return NewKernelBuilder(t).With(regs...).Build()
}
