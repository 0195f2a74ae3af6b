package godi_test

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/junioryono/godi/v5"
	"github.com/junioryono/godi/v5/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chainA struct{}

type chainB struct {
	A *chainA
}

type chainC struct {
	B *chainB
}

func newChainA() *chainA          { return &chainA{} }
func newChainB(a *chainA) *chainB { return &chainB{A: a} }
func newChainC(b *chainB) *chainC { return &chainC{B: b} }

func chainRegistrations() []godi.Registration {
	return []godi.Registration{
		godi.Component[*chainA]().ImplementedBy(newChainA),
		godi.Component[*chainB]().ImplementedBy(newChainB),
		godi.Component[*chainC]().ImplementedBy(newChainC),
	}
}

type greeter interface {
	Greet() string
}

type staticGreeter struct {
	text string
}

func (g *staticGreeter) Greet() string { return g.text }

func newFirstGreeter() *staticGreeter  { return &staticGreeter{text: "first"} }
func newSecondGreeter() *staticGreeter { return &staticGreeter{text: "second"} }

func TestKernel_RegistrationOrder(t *testing.T) {
	orders := map[string][]int{
		"A,B,C": {0, 1, 2},
		"C,B,A": {2, 1, 0},
		"B,C,A": {1, 2, 0},
		"C,A,B": {2, 0, 1},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			regs := chainRegistrations()
			k := testutil.NewTestKernel(t)
			for _, i := range order {
				require.NoError(t, k.Register(regs[i]))
			}

			c := testutil.AssertResolvable[*chainC](t, k)
			require.NotNil(t, c.B)
			assert.NotNil(t, c.B.A)
		})
	}

	t.Run("dependent waits until its dependency is registered", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t)
		require.NoError(t, k.Register(godi.Component[*chainB]().ImplementedBy(newChainB)))

		h := k.Handler("*godi_test.chainB")
		require.NotNil(t, h)
		assert.Equal(t, godi.WaitingDependency, h.CurrentState())

		require.NoError(t, k.Register(godi.Component[*chainA]().ImplementedBy(newChainA)))
		assert.Equal(t, godi.Valid, h.CurrentState())
	})
}

func TestKernel_CircularDependency(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t,
		godi.Component[*testutil.CircularServiceA]().ImplementedBy(testutil.NewCircularServiceA),
		godi.Component[*testutil.CircularServiceB]().ImplementedBy(testutil.NewCircularServiceB),
	)

	_, err := godi.Resolve[*testutil.CircularServiceA](k)
	cycle := testutil.AssertCircularDependency(t, err)
	assert.Len(t, cycle.Path, 3)
	assert.Contains(t, err.Error(), "CircularServiceA")
	assert.Contains(t, err.Error(), "CircularServiceB")

	_, err = godi.Resolve[*testutil.CircularServiceB](k)
	testutil.AssertCircularDependency(t, err)
}

func TestKernel_Lifestyles(t *testing.T) {
	t.Run("singleton returns the same instance", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService).LifestyleSingleton(),
		)

		first := testutil.AssertResolvable[*testutil.TestService](t, k)
		second := testutil.AssertResolvable[*testutil.TestService](t, k)
		testutil.AssertSameInstance(t, first, second)
	})

	t.Run("transient returns new instances", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService).LifestyleTransient(),
		)

		first := testutil.AssertResolvable[*testutil.TestService](t, k)
		second := testutil.AssertResolvable[*testutil.TestService](t, k)
		testutil.AssertDifferentInstances(t, first, second)
	})

	t.Run("default lifestyle is singleton", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t, godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService))
		assert.Equal(t, godi.Singleton, k.Handler("*testutil.TestService").ComponentModel().Lifestyle)
	})

	t.Run("default lifestyle can be changed", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewKernelBuilder(t).
			WithOptions(godi.WithDefaultLifestyle(godi.Transient)).
			With(godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService)).
			Build()

		first := testutil.AssertResolvable[*testutil.TestService](t, k)
		second := testutil.AssertResolvable[*testutil.TestService](t, k)
		testutil.AssertDifferentInstances(t, first, second)
	})

	t.Run("singleton is built once under concurrency", func(t *testing.T) {
		t.Parallel()

		var built atomic.Int32
		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestService]().ImplementedBy(func() *testutil.TestService {
				built.Add(1)
				return testutil.NewTestService()
			}),
		)

		var wg sync.WaitGroup
		results := make([]*testutil.TestService, 50)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = godi.MustResolve[*testutil.TestService](k)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), built.Load())
		for _, r := range results {
			assert.Same(t, results[0], r)
		}
	})
}

func TestKernel_Release(t *testing.T) {
	t.Run("releasing a transient stops tracking it", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestDisposable]().ImplementedBy(testutil.NewTestDisposable).LifestyleTransient(),
		)

		d := testutil.AssertResolvable[*testutil.TestDisposable](t, k)
		assert.True(t, k.ReleasePolicy().HasTrack(d))

		require.NoError(t, k.Release(d))
		assert.False(t, k.ReleasePolicy().HasTrack(d))
		assert.Equal(t, 1, d.Closes())

		require.NoError(t, k.Release(d))
		assert.Equal(t, 1, d.Closes(), "second release must be a no-op")
	})

	t.Run("transients without disposal are not tracked", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService).LifestyleTransient(),
		)

		s := testutil.AssertResolvable[*testutil.TestService](t, k)
		assert.False(t, k.ReleasePolicy().HasTrack(s))
		assert.Equal(t, 0, k.ReleasePolicy().Count())
		assert.NoError(t, k.Release(s))
	})

	t.Run("releasing a singleton does not destroy it", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestDisposable]().ImplementedBy(testutil.NewTestDisposable),
		)

		d := testutil.AssertResolvable[*testutil.TestDisposable](t, k)
		assert.False(t, k.ReleasePolicy().HasTrack(d))

		require.NoError(t, k.Release(d))
		assert.Equal(t, 0, d.Closes())
		assert.Same(t, d, testutil.AssertResolvable[*testutil.TestDisposable](t, k))
	})

	t.Run("releasing a transient releases its transient dependencies", func(t *testing.T) {
		t.Parallel()

		type owner struct {
			Dep *testutil.TestDisposable
		}

		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestDisposable]().ImplementedBy(testutil.NewTestDisposable).LifestyleTransient(),
			godi.Component[*owner]().ImplementedBy(func(d *testutil.TestDisposable) *owner {
				return &owner{Dep: d}
			}).LifestyleTransient(),
		)

		o := testutil.AssertResolvable[*owner](t, k)
		assert.True(t, k.ReleasePolicy().HasTrack(o))
		assert.False(t, k.ReleasePolicy().HasTrack(o.Dep), "dependency is owned by its consumer")

		require.NoError(t, k.Release(o))
		assert.Equal(t, 1, o.Dep.Closes())
	})
}

func TestKernel_Close(t *testing.T) {
	t.Run("disposes singletons exactly once", func(t *testing.T) {
		t.Parallel()

		k := godi.NewKernel()
		require.NoError(t, k.Register(
			godi.Component[*testutil.TestDisposable]().ImplementedBy(testutil.NewTestDisposable),
		))

		d := testutil.AssertResolvable[*testutil.TestDisposable](t, k)

		require.NoError(t, k.Close())
		require.NoError(t, k.Close())
		assert.Equal(t, 1, d.Closes())
		testutil.AssertKernelClosed(t, k)
	})

	t.Run("releases tracked transients", func(t *testing.T) {
		t.Parallel()

		k := godi.NewKernel()
		require.NoError(t, k.Register(
			godi.Component[*testutil.TestDisposable]().ImplementedBy(testutil.NewTestDisposable).LifestyleTransient(),
		))

		first := testutil.AssertResolvable[*testutil.TestDisposable](t, k)
		second := testutil.AssertResolvable[*testutil.TestDisposable](t, k)

		require.NoError(t, k.Close())
		assert.Equal(t, 1, first.Closes())
		assert.Equal(t, 1, second.Closes())
		assert.Equal(t, 0, k.ReleasePolicy().Count())
	})

	t.Run("disposes dependents before dependencies", func(t *testing.T) {
		t.Parallel()

		log := &testutil.DisposalLog{}
		type service struct{ *testutil.TestDisposable }
		type repository struct{ *testutil.TestDisposable }

		k := godi.NewKernel()
		require.NoError(t, k.Register(
			godi.Component[*service]().ImplementedBy(func(*repository) *service {
				return &service{testutil.NewLoggedDisposable(log, "service")}
			}),
			godi.Component[*repository]().ImplementedBy(func() *repository {
				return &repository{testutil.NewLoggedDisposable(log, "repository")}
			}),
		))

		_ = testutil.AssertResolvable[*service](t, k)
		require.NoError(t, k.Close())
		assert.Equal(t, []string{"service", "repository"}, log.Entries())
	})

	t.Run("never disposes supplied instances", func(t *testing.T) {
		t.Parallel()

		d := testutil.NewTestDisposable()
		k := godi.NewKernel()
		require.NoError(t, k.Register(godi.For(reflect.TypeFor[*testutil.TestDisposable]()).Instance(d)))

		assert.Same(t, d, testutil.AssertResolvable[*testutil.TestDisposable](t, k))
		require.NoError(t, k.Close())
		assert.Equal(t, 0, d.Closes())
	})

	t.Run("reports disposal errors", func(t *testing.T) {
		t.Parallel()

		k := godi.NewKernel()
		require.NoError(t, k.Register(
			godi.Component[*testutil.TestDisposable]().ImplementedBy(func() *testutil.TestDisposable {
				return testutil.NewTestDisposableWithError(testutil.ErrDisposal)
			}),
		))
		_ = testutil.AssertResolvable[*testutil.TestDisposable](t, k)

		err := k.Close()
		require.Error(t, err)
		assert.ErrorIs(t, err, testutil.ErrDisposal)

		var disposal godi.DisposalError
		require.ErrorAs(t, err, &disposal)
		assert.Equal(t, "kernel", disposal.Context)
	})
}

func TestKernel_FailedConstructorReleasesDependencies(t *testing.T) {
	t.Parallel()

	type failing struct{}

	var created *testutil.TestDisposable
	k := testutil.NewTestKernel(t,
		godi.Component[*testutil.TestDisposable]().ImplementedBy(func() *testutil.TestDisposable {
			created = testutil.NewTestDisposable()
			return created
		}).LifestyleTransient(),
		godi.Component[*failing]().ImplementedBy(func(*testutil.TestDisposable) (*failing, error) {
			return nil, testutil.ErrConstructor
		}),
	)

	_, err := godi.Resolve[*failing](k)
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrConstructor)
	testutil.AssertErrorType[godi.ComponentResolutionError](t, err)

	require.NotNil(t, created)
	assert.Equal(t, 1, created.Closes())
	assert.False(t, k.ReleasePolicy().HasTrack(created))
}

func TestKernel_ConstructorPanic(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t,
		godi.Component[*testutil.TestService]().ImplementedBy(func() *testutil.TestService {
			panic("boom")
		}),
	)

	_, err := godi.Resolve[*testutil.TestService](k)
	panicErr := testutil.AssertErrorType[godi.ConstructorPanicError](t, err)
	assert.Equal(t, "boom", panicErr.Panic)
}

func TestKernel_DefaultAndCollection(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t,
		godi.Component[greeter]().ImplementedBy(newFirstGreeter).Named("first"),
		godi.Component[greeter]().ImplementedBy(newSecondGreeter).Named("second"),
	)

	g := testutil.AssertResolvable[greeter](t, k)
	assert.Equal(t, "first", g.Greet())

	all, err := godi.ResolveAll[greeter](k)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Greet())
	assert.Equal(t, "second", all[1].Greet())

	second := testutil.AssertNamedResolvable[greeter](t, k, "second")
	assert.Equal(t, "second", second.Greet())
}

func TestKernel_ResolveAll(t *testing.T) {
	t.Run("empty collection notifies once", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t)

		var notified []reflect.Type
		k.OnEmptyCollectionResolving(func(service reflect.Type) {
			notified = append(notified, service)
		})

		all, err := godi.ResolveAll[greeter](k)
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, []reflect.Type{reflect.TypeFor[greeter]()}, notified)
	})

	t.Run("skips unsatisfiable candidates", func(t *testing.T) {
		t.Parallel()

		type missing struct{}

		k := testutil.NewTestKernel(t,
			godi.Component[greeter]().ImplementedBy(func(*missing) *staticGreeter {
				return &staticGreeter{text: "never"}
			}).Named("waiting"),
			godi.Component[greeter]().ImplementedBy(newSecondGreeter).Named("ready"),
		)

		all, err := godi.ResolveAll[greeter](k)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "second", all[0].Greet())
	})

	t.Run("only unsatisfiable candidates yields empty", func(t *testing.T) {
		t.Parallel()

		type missing struct{}

		k := testutil.NewTestKernel(t,
			godi.Component[greeter]().ImplementedBy(func(*missing) *staticGreeter {
				return &staticGreeter{}
			}),
		)

		var notified int
		k.OnEmptyCollectionResolving(func(reflect.Type) { notified++ })

		all, err := godi.ResolveAll[greeter](k)
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, 1, notified)
	})

	t.Run("propagates construction failures", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[greeter]().ImplementedBy(func() (*staticGreeter, error) {
				return nil, testutil.ErrConstructor
			}),
		)

		_, err := godi.ResolveAll[greeter](k)
		assert.ErrorIs(t, err, testutil.ErrConstructor)
	})
}

func TestKernel_Registration(t *testing.T) {
	t.Run("duplicate names are rejected", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t, godi.Component[greeter]().ImplementedBy(newFirstGreeter).Named("g"))

		err := k.Register(godi.Component[greeter]().ImplementedBy(newSecondGreeter).Named("g"))
		assert.ErrorIs(t, err, godi.ErrDuplicateRegistration)
	})

	t.Run("failed registrations do not stop the others", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t)
		err := k.Register(
			godi.Component[*testutil.TestService](),
			nil,
			godi.Component[greeter]().ImplementedBy(newFirstGreeter),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, godi.ErrNoImplementation)
		assert.True(t, k.HasService(reflect.TypeFor[greeter]()))
	})

	t.Run("implementation must provide the service", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t)
		err := k.Register(godi.Component[greeter]().ImplementedBy(testutil.NewTestService))
		testutil.AssertErrorType[godi.TypeMismatchError](t, err)
	})

	t.Run("invalid builder input", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			reg  godi.Registration
			want error
		}{
			{"nil service type", godi.For(nil).ImplementedBy(testutil.NewTestService), godi.ErrServiceTypeNil},
			{"empty name", godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService).Named(""), godi.ErrNameEmpty},
			{"nil factory", godi.Component[*testutil.TestService]().UsingFactory(nil), godi.ErrConstructorNil},
			{"nil constructor", godi.Component[*testutil.TestService]().ImplementedBy(nil), godi.ErrConstructorNil},
		}

		k := testutil.NewTestKernel(t)
		for _, tt := range tests {
			err := k.Register(tt.reg)
			assert.ErrorIs(t, err, tt.want, tt.name)
			testutil.AssertErrorType[godi.RegistrationError](t, err, tt.name)
		}
	})

	t.Run("forwarded services share one component", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*staticGreeter]().
				Forward(reflect.TypeFor[greeter]()).
				ImplementedBy(newFirstGreeter),
		)

		concrete := testutil.AssertResolvable[*staticGreeter](t, k)
		iface := testutil.AssertResolvable[greeter](t, k)
		assert.Same(t, concrete, iface)
	})

	t.Run("unregister removes the component", func(t *testing.T) {
		t.Parallel()

		d := testutil.NewTestDisposable()
		k := testutil.NewTestKernel(t,
			godi.Component[*testutil.TestDisposable]().ImplementedBy(func() *testutil.TestDisposable { return d }).Named("d"),
		)
		_ = testutil.AssertResolvable[*testutil.TestDisposable](t, k)

		require.NoError(t, k.Unregister("d"))
		assert.False(t, k.HasComponent("d"))
		assert.Equal(t, 1, d.Closes())
		testutil.AssertNotFound[*testutil.TestDisposable](t, k)

		assert.True(t, godi.IsNotFound(k.Unregister("d")))
	})
}

func TestKernel_ResolveErrors(t *testing.T) {
	testutil.RunErrorTestCases(t, []testutil.ErrorTestCase{
		{
			Name:  "nil service type",
			Setup: func(t *testing.T) *godi.Kernel { return testutil.NewTestKernel(t) },
			Action: func(k *godi.Kernel) error {
				_, err := k.Resolve(nil)
				return err
			},
			WantError: godi.ErrServiceTypeNil,
		},
		{
			Name:  "unknown service",
			Setup: func(t *testing.T) *godi.Kernel { return testutil.NewTestKernel(t) },
			Action: func(k *godi.Kernel) error {
				_, err := godi.Resolve[greeter](k)
				return err
			},
			WantError: godi.ErrComponentNotFound,
			CheckErr: func(t *testing.T, err error) {
				notFound := testutil.AssertErrorType[godi.ComponentNotFoundError](t, err)
				assert.Equal(t, reflect.TypeFor[greeter](), notFound.ServiceType)
			},
		},
		{
			Name:  "unknown name",
			Setup: func(t *testing.T) *godi.Kernel { return testutil.NewTestKernel(t, testutil.BasicRegistrations()...) },
			Action: func(k *godi.Kernel) error {
				_, err := godi.ResolveNamed[testutil.TestLogger](k, "missing")
				return err
			},
			WantError: godi.ErrComponentNotFound,
		},
		{
			Name: "named component of another type",
			Setup: func(t *testing.T) *godi.Kernel {
				return testutil.NewTestKernel(t, godi.Component[greeter]().ImplementedBy(newFirstGreeter).Named("g"))
			},
			Action: func(k *godi.Kernel) error {
				_, err := godi.ResolveNamed[testutil.TestLogger](k, "g")
				return err
			},
			CheckErr: func(t *testing.T, err error) {
				testutil.AssertErrorType[godi.TypeMismatchError](t, err)
			},
		},
	})
}

func TestKernel_WaitingDependencies(t *testing.T) {
	type missing struct{}
	type needsMissing struct{}
	type needsWaiting struct{}
	type needsValue struct{ dsn string }

	newNeedsMissing := func(*missing) *needsMissing { return &needsMissing{} }
	newNeedsWaiting := func(*needsMissing) *needsWaiting { return &needsWaiting{} }
	newNeedsValue := func(dsn string) *needsValue { return &needsValue{dsn: dsn} }

	t.Run("service never registered", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t, godi.Component[*needsMissing]().ImplementedBy(newNeedsMissing))

		herr := testutil.AssertWaiting[*needsMissing](t, k)
		require.Len(t, herr.Missing, 1)
		assert.Equal(t, godi.NotRegistered, herr.Missing[0].Reason)
		assert.Contains(t, herr.Error(), `Service "*missing" which was not registered.`)
	})

	t.Run("service registered but waiting", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*needsMissing]().ImplementedBy(newNeedsMissing),
			godi.Component[*needsWaiting]().ImplementedBy(newNeedsWaiting),
		)

		herr := testutil.AssertWaiting[*needsWaiting](t, k)
		require.Len(t, herr.Missing, 1)
		assert.Equal(t, godi.RegisteredButWaiting, herr.Missing[0].Reason)
		require.NotNil(t, herr.Missing[0].Waiting)
		assert.Contains(t, herr.Error(), "which was registered but is also waiting for dependencies")
		assert.Contains(t, herr.Error(), "which was not registered")
	})

	t.Run("value not provided", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t, godi.Component[*needsValue]().Constructor(newNeedsValue, "dsn"))

		herr := testutil.AssertWaiting[*needsValue](t, k)
		require.Len(t, herr.Missing, 1)
		assert.Equal(t, godi.ValueNotProvided, herr.Missing[0].Reason)
		assert.Contains(t, herr.Error(), `Parameter "dsn" which was not provided.`)
	})

	t.Run("inline arguments satisfy a waiting component", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t,
			godi.Component[*needsValue]().Constructor(newNeedsValue, "dsn").LifestyleTransient(),
		)

		v, err := godi.Resolve[*needsValue](k, godi.WithArgument("dsn", "postgres://local"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://local", v.dsn)
	})
}

func TestKernel_Decorator(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t,
		godi.Component[testutil.TestLogger]().ImplementedBy(testutil.NewDecoratedLogger).Named("decorator"),
		godi.Component[testutil.TestLogger]().ImplementedBy(testutil.NewTestLogger).Named("inner"),
	)

	logger := testutil.AssertResolvable[testutil.TestLogger](t, k)
	logger.Log("hello")

	decorated, ok := logger.(*testutil.DecoratedLogger)
	require.True(t, ok)
	assert.Same(t, testutil.AssertNamedResolvable[testutil.TestLogger](t, k, "inner"), decorated.Inner)
	assert.Equal(t, []string{"[decorated] hello"}, logger.GetLogs())
}

func TestKernel_HasComponentAndService(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t, testutil.BasicRegistrations()...)

	assert.True(t, k.HasService(reflect.TypeFor[testutil.TestLogger]()))
	assert.False(t, k.HasService(reflect.TypeFor[greeter]()))
	assert.False(t, k.HasService(nil))
	assert.True(t, k.HasComponent("testutil.TestLogger"))
	assert.Len(t, k.Handlers(), 3)
	assert.Len(t, k.HandlersFor(reflect.TypeFor[testutil.TestCache]()), 1)
	assert.NotEmpty(t, k.ID())
	assert.NotNil(t, k.Logger())
}

// tokenCloser has no fields, so every instance may share one address.
type tokenCloser struct{}

var tokenCloses atomic.Int32

func newTokenCloser() *tokenCloser { return &tokenCloser{} }

func (*tokenCloser) Close() error {
	tokenCloses.Add(1)
	return nil
}

func TestKernel_ReleaseInstancesSharingIdentity(t *testing.T) {
	k := godi.NewKernel()
	require.NoError(t, k.Register(
		godi.Component[*tokenCloser]().ImplementedBy(newTokenCloser).LifestyleTransient(),
	))

	first := testutil.AssertResolvable[*tokenCloser](t, k)
	second := testutil.AssertResolvable[*tokenCloser](t, k)
	assert.Equal(t, 2, k.ReleasePolicy().Count(), "each resolution is tracked")

	require.NoError(t, k.Release(first))
	assert.Equal(t, int32(1), tokenCloses.Load())
	assert.Equal(t, 1, k.ReleasePolicy().Count())
	assert.True(t, k.ReleasePolicy().HasTrack(second))

	require.NoError(t, k.Register(
		godi.Component[*tokenCloser]().ImplementedBy(newTokenCloser).LifestyleTransient().Named("more"),
	))
	testutil.AssertNamedResolvable[*tokenCloser](t, k, "more")
	testutil.AssertNamedResolvable[*tokenCloser](t, k, "more")

	require.NoError(t, k.Close())
	assert.Equal(t, int32(4), tokenCloses.Load(), "closing the kernel releases every tracked instance")
	assert.Zero(t, k.ReleasePolicy().Count())
}

func TestKernel_ConcurrentRegistrationAndResolution(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t,
		godi.Component[greeter]().ImplementedBy(newFirstGreeter).Named("first"),
	)

	const workers = 8
	var wg sync.WaitGroup

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, k.Register(
				godi.Component[greeter]().ImplementedBy(newSecondGreeter).Named(fmt.Sprintf("greeter-%d", i)),
			))
		}()
	}

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				g, err := godi.Resolve[greeter](k)
				if assert.NoError(t, err) {
					assert.Equal(t, "first", g.Greet())
				}

				all, err := godi.ResolveAll[greeter](k)
				assert.NoError(t, err)
				assert.NotEmpty(t, all)
			}
		}()
	}

	wg.Wait()

	all, err := godi.ResolveAll[greeter](k)
	require.NoError(t, err)
	assert.Len(t, all, workers+1)
	assert.Equal(t, "first", all[0].Greet())
	for _, h := range k.Handlers() {
		assert.Equal(t, godi.Valid, h.CurrentState(), h.ComponentModel().Name)
	}
}
