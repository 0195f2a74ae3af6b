package digloader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/junioryono/godi/v5"
	"github.com/junioryono/godi/v5/digloader"
)

type database struct {
	DSN    string
	closed bool
}

func (d *database) Close() error {
	d.closed = true
	return nil
}

type cache struct {
	Name string
}

type repository struct {
	DB *database
}

func newRepository(db *database) *repository {
	return &repository{DB: db}
}

func newContainer(t *testing.T) *dig.Container {
	t.Helper()
	c := dig.New()
	require.NoError(t, c.Provide(func() *database { return &database{DSN: "postgres://dig"} }))
	require.NoError(t, c.Provide(func() *cache { return &cache{Name: "primary"} }, dig.Name("primary")))
	return c
}

func TestLoader_ResolveByType(t *testing.T) {
	kernel := godi.NewKernel(godi.WithComponentLoader(digloader.New(newContainer(t))))

	db, err := godi.Resolve[*database](kernel)
	require.NoError(t, err)
	assert.Equal(t, "postgres://dig", db.DSN)

	again, err := godi.Resolve[*database](kernel)
	require.NoError(t, err)
	assert.Same(t, db, again)
	assert.True(t, kernel.HasComponent("dig:*digloader_test.database"))

	require.NoError(t, kernel.Close())
	assert.False(t, db.closed, "values owned by dig are not disposed by the kernel")
}

func TestLoader_SatisfiesDependencies(t *testing.T) {
	kernel := godi.NewKernel(godi.WithComponentLoader(digloader.New(newContainer(t))))
	defer kernel.Close()

	require.NoError(t, kernel.Register(
		godi.Component[*repository]().ImplementedBy(newRepository),
	))

	repo, err := godi.Resolve[*repository](kernel)
	require.NoError(t, err)
	require.NotNil(t, repo.DB)
	assert.Equal(t, "postgres://dig", repo.DB.DSN)
}

func TestLoader_ResolveByName(t *testing.T) {
	kernel := godi.NewKernel(godi.WithComponentLoader(digloader.New(newContainer(t))))
	defer kernel.Close()

	c, err := godi.ResolveNamed[*cache](kernel, "primary")
	require.NoError(t, err)
	assert.Equal(t, "primary", c.Name)
	assert.True(t, kernel.HasComponent("primary"))
}

func TestLoader_Missing(t *testing.T) {
	kernel := godi.NewKernel(godi.WithComponentLoader(digloader.New(dig.New())))
	defer kernel.Close()

	_, err := godi.Resolve[*database](kernel)
	require.Error(t, err)
	assert.True(t, godi.IsNotFound(err))

	_, err = godi.ResolveNamed[*cache](kernel, "secondary")
	require.Error(t, err)
	assert.True(t, godi.IsNotFound(err))
}

func TestLoader_NamePrefix(t *testing.T) {
	kernel := godi.NewKernel(godi.WithComponentLoader(
		digloader.New(newContainer(t), digloader.WithNamePrefix("legacy/")),
	))
	defer kernel.Close()

	_, err := godi.Resolve[*database](kernel)
	require.NoError(t, err)
	assert.True(t, kernel.HasComponent("legacy/*digloader_test.database"))
}
