package godi_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/junioryono/godi/v5"
	"github.com/junioryono/godi/v5/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder counts kernel events by name.
type eventRecorder struct {
	mu     sync.Mutex
	counts map[string]int
	order  []string
}

func newEventRecorder(k *godi.Kernel) *eventRecorder {
	r := &eventRecorder{counts: make(map[string]int)}
	k.OnComponentModelCreated(func(*godi.ComponentModel) { r.add("model") })
	k.OnComponentRegistered(func(string, godi.Handler) { r.add("registered") })
	k.OnHandlerRegistered(func(godi.Handler) { r.add("handler") })
	k.OnHandlerStateChanged(func(godi.Handler) { r.add("state") })
	k.OnHandlersChanged(func() { r.add("changed") })
	k.OnComponentCreated(func(*godi.ComponentModel, any) { r.add("created") })
	k.OnComponentDestroyed(func(*godi.ComponentModel, any) { r.add("destroyed") })
	k.OnEmptyCollectionResolving(func(reflect.Type) { r.add("empty") })
	k.OnRegistrationCompleted(func() { r.add("completed") })
	return r
}

func (r *eventRecorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name]++
	r.order = append(r.order, name)
}

func (r *eventRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

func (r *eventRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return ""
	}
	return r.order[len(r.order)-1]
}

func TestEvents_Registration(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t)
	rec := newEventRecorder(k)

	require.NoError(t, k.Register(chainRegistrations()...))

	assert.Equal(t, 3, rec.count("model"))
	assert.Equal(t, 3, rec.count("handler"))
	assert.Equal(t, 3, rec.count("registered"))
	assert.Equal(t, 3, rec.count("state"))
	assert.Equal(t, 1, rec.count("changed"))
	assert.Equal(t, 1, rec.count("completed"))
	assert.Equal(t, "completed", rec.last())
}

func TestEvents_Batching(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t)
	rec := newEventRecorder(k)

	done := k.OptimizeDependencyResolution()
	require.NoError(t, k.Register(godi.Component[*chainC]().ImplementedBy(newChainC)))
	require.NoError(t, k.Register(godi.Component[*chainB]().ImplementedBy(newChainB)))
	require.NoError(t, k.Register(godi.Component[*chainA]().ImplementedBy(newChainA)))

	assert.Zero(t, rec.count("state"), "states are not evaluated inside a batch")
	assert.Zero(t, rec.count("completed"))
	assert.Equal(t, godi.WaitingDependency, k.Handler("*godi_test.chainA").CurrentState())

	done()
	done()

	assert.Equal(t, 3, rec.count("state"))
	assert.Equal(t, 1, rec.count("changed"))
	assert.Equal(t, 1, rec.count("completed"))
	for _, h := range k.Handlers() {
		assert.Equal(t, godi.Valid, h.CurrentState(), h.ComponentModel().Name)
	}
}

func TestEvents_ClosedGenericHandlers(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t,
		godi.Open[Repo[any]]().ImplementedBy(newMemRepo[int], newMemRepo[string]),
	)
	rec := newEventRecorder(k)

	testutil.AssertResolvable[Repo[int]](t, k)
	assert.Equal(t, 1, rec.count("state"))
	assert.Equal(t, 1, rec.count("changed"))

	testutil.AssertResolvable[Repo[int]](t, k)
	assert.Equal(t, 1, rec.count("changed"), "an existing closed handler changes nothing")

	testutil.AssertResolvable[Repo[string]](t, k)
	assert.Equal(t, 2, rec.count("state"))
	assert.Equal(t, 2, rec.count("changed"))
}

func TestEvents_Lifecycle(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t,
		godi.Component[*testutil.TestDisposable]().ImplementedBy(testutil.NewTestDisposable).LifestyleTransient(),
	)
	rec := newEventRecorder(k)

	d := testutil.AssertResolvable[*testutil.TestDisposable](t, k)
	assert.Equal(t, 1, rec.count("created"))

	require.NoError(t, k.Release(d))
	assert.Equal(t, 1, rec.count("destroyed"))

	_, err := godi.ResolveAll[testutil.TestHandler](k)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("empty"))
}

func TestEvents_ModelCreatedExtendsModel(t *testing.T) {
	t.Parallel()

	k := testutil.NewTestKernel(t)
	k.OnComponentModelCreated(func(m *godi.ComponentModel) {
		assert.NoError(t, m.SetExtension("audited", true))
	})

	require.NoError(t, k.Register(
		godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService).ExtendedProperty("owner", "billing"),
	))

	model := k.Handler("*testutil.TestService").ComponentModel()
	audited, ok := model.Extension("audited")
	require.True(t, ok)
	assert.Equal(t, true, audited)

	owner, ok := model.Extension("owner")
	require.True(t, ok)
	assert.Equal(t, "billing", owner)

	assert.False(t, model.Frozen())
	testutil.AssertResolvable[*testutil.TestService](t, k)
	assert.True(t, model.Frozen())

	err := model.SetExtension("late", 1)
	assert.ErrorIs(t, err, godi.ErrModelFrozen)
	e := testutil.AssertErrorType[godi.ModelFrozenError](t, err)
	assert.Equal(t, "*testutil.TestService", e.Component)

	assert.ErrorIs(t, model.AddInterceptor("late"), godi.ErrModelFrozen)
}

// auditFacility tags every component and counts creations.
type auditFacility struct {
	name    string
	log     *testutil.DisposalLog
	initErr error
	created int
	mu      sync.Mutex
}

func (f *auditFacility) Init(k *godi.Kernel) error {
	if f.initErr != nil {
		return f.initErr
	}
	k.OnComponentModelCreated(func(m *godi.ComponentModel) {
		_ = m.SetExtension("facility", f.name)
	})
	k.OnComponentCreated(func(*godi.ComponentModel, any) {
		f.mu.Lock()
		f.created++
		f.mu.Unlock()
	})
	return nil
}

func (f *auditFacility) Close() error {
	if f.log != nil {
		f.log.Record(f.name)
	}
	return nil
}

func TestFacility(t *testing.T) {
	t.Run("init subscribes to events", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t)
		f := &auditFacility{name: "audit"}
		require.NoError(t, k.AddFacility(f))

		require.NoError(t, k.Register(godi.Component[*testutil.TestService]().ImplementedBy(testutil.NewTestService)))
		testutil.AssertResolvable[*testutil.TestService](t, k)

		v, ok := k.Handler("*testutil.TestService").ComponentModel().Extension("facility")
		require.True(t, ok)
		assert.Equal(t, "audit", v)
		assert.Equal(t, 1, f.created)
	})

	t.Run("init errors are returned", func(t *testing.T) {
		t.Parallel()

		log := &testutil.DisposalLog{}
		k := godi.NewKernel()

		err := k.AddFacility(&auditFacility{name: "broken", log: log, initErr: testutil.ErrIntentional})
		assert.ErrorIs(t, err, testutil.ErrIntentional)

		require.NoError(t, k.Close())
		assert.Empty(t, log.Entries(), "facilities failing init are not closed")
	})

	t.Run("closed in reverse order", func(t *testing.T) {
		t.Parallel()

		log := &testutil.DisposalLog{}
		k := godi.NewKernel()
		require.NoError(t, k.AddFacility(&auditFacility{name: "first", log: log}))
		require.NoError(t, k.AddFacility(&auditFacility{name: "second", log: log}))

		require.NoError(t, k.Close())
		assert.Equal(t, []string{"second", "first"}, log.Entries())

		assert.ErrorIs(t, k.AddFacility(&auditFacility{name: "late"}), godi.ErrKernelClosed)
	})

	t.Run("nil facility", func(t *testing.T) {
		t.Parallel()

		k := testutil.NewTestKernel(t)
		assert.Error(t, k.AddFacility(nil))
	})
}
