// Package config supplies configuration values to a godi kernel from .env
// files and the process environment.
//
// Example:
//
//	source, err := config.Load([]string{".env", ".env.local"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	kernel := godi.NewKernel(godi.WithConfigSource(source))
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/joho/godotenv"

	"github.com/junioryono/godi/v5"
)

// Source is a godi.ConfigSource. Process environment variables take
// precedence over values read from files, as with godotenv.Load.
type Source struct {
	mu     sync.RWMutex
	values map[string]string
	prefix string

	lookupEnv func(string) (string, bool)
}

var _ godi.ConfigSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithPrefix prepends prefix to every key looked up, e.g. "APP_".
func WithPrefix(prefix string) Option {
	return func(s *Source) {
		s.prefix = prefix
	}
}

// WithoutEnvironment ignores the process environment.
func WithoutEnvironment() Option {
	return func(s *Source) {
		s.lookupEnv = nil
	}
}

func newSource(values map[string]string, opts []Option) *Source {
	if values == nil {
		values = make(map[string]string)
	}
	s := &Source{
		values:    values,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the given .env files, ".env" when none are given. Missing
// files are skipped so production can rely on the environment alone.
// Later files override earlier ones.
func Load(files []string, opts ...Option) (*Source, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	values := make(map[string]string)
	for _, file := range files {
		read, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for k, v := range read {
			values[k] = v
		}
	}
	return newSource(values, opts), nil
}

// Parse reads .env formatted values from r.
func Parse(r io.Reader, opts ...Option) (*Source, error) {
	values, err := godotenv.Parse(r)
	if err != nil {
		return nil, err
	}
	return newSource(values, opts), nil
}

// FromMap returns a Source serving values.
func FromMap(values map[string]string, opts ...Option) *Source {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return newSource(copied, opts)
}

// Set stores a value, overriding files but not the environment.
func (s *Source) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the value for key. The key is tried as given, then in
// upper snake case, so a parameter named dbHost finds DB_HOST.
func (s *Source) Get(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	for _, k := range candidates(key) {
		if v, ok := s.lookup(s.prefix + k); ok {
			return v, true
		}
	}
	return "", false
}

func (s *Source) lookup(key string) (string, bool) {
	if s.lookupEnv != nil {
		if v, ok := s.lookupEnv(key); ok {
			return v, true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys read from files or set explicitly.
func (s *Source) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

func candidates(key string) []string {
	snake := upperSnake(key)
	if snake == key {
		return []string{key}
	}
	return []string{key, snake}
}

// upperSnake converts camelCase, kebab-case and dotted keys to UPPER_SNAKE.
func upperSnake(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '-' || r == '.' || r == ' ':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
