package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/godi/v5"
	"github.com/junioryono/godi/v5/config"
)

func writeEnv(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("later files override earlier ones", func(t *testing.T) {
		dir := t.TempDir()
		base := writeEnv(t, dir, ".env", "GODI_TEST_NAME=base\nGODI_TEST_PORT=8000\n")
		local := writeEnv(t, dir, ".env.local", "GODI_TEST_PORT=9000\n")

		source, err := config.Load([]string{base, local})
		require.NoError(t, err)

		v, ok := source.Get("GODI_TEST_NAME")
		assert.True(t, ok)
		assert.Equal(t, "base", v)

		v, ok = source.Get("GODI_TEST_PORT")
		assert.True(t, ok)
		assert.Equal(t, "9000", v)
	})

	t.Run("missing files are skipped", func(t *testing.T) {
		source, err := config.Load([]string{filepath.Join(t.TempDir(), "missing.env")})
		require.NoError(t, err)

		_, ok := source.Get("GODI_TEST_ABSENT")
		assert.False(t, ok)
	})

	t.Run("environment wins over files", func(t *testing.T) {
		dir := t.TempDir()
		path := writeEnv(t, dir, ".env", "GODI_TEST_MODE=file\n")
		t.Setenv("GODI_TEST_MODE", "env")

		source, err := config.Load([]string{path})
		require.NoError(t, err)

		v, _ := source.Get("GODI_TEST_MODE")
		assert.Equal(t, "env", v)

		source, err = config.Load([]string{path}, config.WithoutEnvironment())
		require.NoError(t, err)

		v, _ = source.Get("GODI_TEST_MODE")
		assert.Equal(t, "file", v)
	})
}

func TestSource_Get(t *testing.T) {
	source := config.FromMap(map[string]string{
		"DB_HOST":     "localhost",
		"HTTP_SERVER": "api",
		"plain":       "as-is",
	}, config.WithoutEnvironment())

	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{key: "DB_HOST", want: "localhost", ok: true},
		{key: "dbHost", want: "localhost", ok: true},
		{key: "db.host", want: "localhost", ok: true},
		{key: "db-host", want: "localhost", ok: true},
		{key: "HTTPServer", want: "api", ok: true},
		{key: "plain", want: "as-is", ok: true},
		{key: "missing"},
		{key: ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := source.Get(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestSource_Prefix(t *testing.T) {
	source := config.FromMap(map[string]string{"APP_NAME": "godi"},
		config.WithPrefix("APP_"), config.WithoutEnvironment())

	v, ok := source.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "godi", v)

	source.Set("APP_DEBUG", "true")
	v, ok = source.Get("debug")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	assert.ElementsMatch(t, []string{"APP_NAME", "APP_DEBUG"}, source.Keys())
}

func TestParse(t *testing.T) {
	source, err := config.Parse(strings.NewReader("# comment\nKEY=value\nQUOTED=\"with spaces\"\n"),
		config.WithoutEnvironment())
	require.NoError(t, err)

	v, _ := source.Get("KEY")
	assert.Equal(t, "value", v)
	v, _ = source.Get("QUOTED")
	assert.Equal(t, "with spaces", v)
}

type server struct {
	Host string
	Port int
}

func newServer(host string, port int) *server {
	return &server{Host: host, Port: port}
}

func TestSource_WithKernel(t *testing.T) {
	source := config.FromMap(map[string]string{
		"SERVER_HOST": "0.0.0.0",
		"SERVER_PORT": "8080",
	}, config.WithoutEnvironment())

	kernel := godi.NewKernel(godi.WithConfigSource(source))
	defer kernel.Close()

	require.NoError(t, kernel.Register(
		godi.Component[*server]().Constructor(newServer, "serverHost", "serverPort"),
	))

	srv, err := godi.Resolve[*server](kernel)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", srv.Host)
	assert.Equal(t, 8080, srv.Port)

	t.Run("missing value keeps the component waiting", func(t *testing.T) {
		kernel := godi.NewKernel(godi.WithConfigSource(config.FromMap(nil, config.WithoutEnvironment())))
		defer kernel.Close()

		require.NoError(t, kernel.Register(
			godi.Component[*server]().Constructor(newServer, "serverHost", "serverPort"),
		))

		_, err := godi.Resolve[*server](kernel)
		require.Error(t, err)
		assert.True(t, godi.IsWaitingForDependencies(err))
	})
}
