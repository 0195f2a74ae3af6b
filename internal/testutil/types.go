package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common test errors
var (
	ErrTest        = errors.New("test error")
	ErrIntentional = errors.New("intentional error")
	ErrConstructor = errors.New("constructor error")
	ErrDisposal    = errors.New("disposal error")
)

// TestService is a basic test service
type TestService struct {
	ID        string
	CreatedAt time.Time
	Data      string
}

// NewTestService creates a new test service
func NewTestService() *TestService {
	return &TestService{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Data:      "test",
	}
}

// TestLogger is a test logger interface
type TestLogger interface {
	Log(msg string)
	GetLogs() []string
}

// TestLoggerImpl implements TestLogger
type TestLoggerImpl struct {
	logs []string
	mu   sync.Mutex
}

func NewTestLogger() TestLogger {
	return &TestLoggerImpl{}
}

func (l *TestLoggerImpl) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *TestLoggerImpl) GetLogs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.logs))
	copy(result, l.logs)
	return result
}

// TestDatabase is a test database interface
type TestDatabase interface {
	Query(sql string) string
	Close() error
}

// TestDatabaseImpl implements TestDatabase and counts how often it was closed.
type TestDatabaseImpl struct {
	name string

	mu     sync.Mutex
	closes int
}

func NewTestDatabase() TestDatabase {
	return &TestDatabaseImpl{name: "testdb"}
}

func NewTestDatabaseNamed(name string) TestDatabase {
	return &TestDatabaseImpl{name: name}
}

func (d *TestDatabaseImpl) Query(sql string) string {
	return fmt.Sprintf("%s: %s", d.name, sql)
}

func (d *TestDatabaseImpl) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// Closes returns the number of Close calls.
func (d *TestDatabaseImpl) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// TestCache is a test cache interface
type TestCache interface {
	Get(key string) (string, bool)
	Set(key string, value string)
}

// TestCacheImpl implements TestCache
type TestCacheImpl struct {
	data map[string]string
	mu   sync.RWMutex
}

func NewTestCache() TestCache {
	return &TestCacheImpl{data: make(map[string]string)}
}

func (c *TestCacheImpl) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.data[key]
	return val, ok
}

func (c *TestCacheImpl) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// DisposalLog records the order in which components were closed.
type DisposalLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *DisposalLog) Record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, name)
}

// Entries returns the recorded names in closing order.
func (l *DisposalLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns how often name was recorded.
func (l *DisposalLog) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e == name {
			n++
		}
	}
	return n
}

// TestDisposable is a test type that implements Disposable
type TestDisposable struct {
	ID string

	log          *DisposalLog
	name         string
	disposeError error

	mu     sync.Mutex
	closes int
}

func NewTestDisposable() *TestDisposable {
	return &TestDisposable{ID: uuid.NewString()}
}

// NewLoggedDisposable returns a disposable that records name in log when closed.
func NewLoggedDisposable(log *DisposalLog, name string) *TestDisposable {
	return &TestDisposable{ID: uuid.NewString(), log: log, name: name}
}

func NewTestDisposableWithError(err error) *TestDisposable {
	return &TestDisposable{ID: uuid.NewString(), disposeError: err}
}

func (s *TestDisposable) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()

	if s.log != nil {
		s.log.Record(s.name)
	}
	return s.disposeError
}

func (s *TestDisposable) IsDisposed() bool {
	return s.Closes() > 0
}

// Closes returns the number of Close calls.
func (s *TestDisposable) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// TestContextDisposable implements DisposableWithContext
type TestContextDisposable struct {
	ID string

	mu         sync.Mutex
	disposed   bool
	ctx        context.Context
	disposeErr error
}

func NewTestContextDisposable() *TestContextDisposable {
	return &TestContextDisposable{ID: uuid.NewString()}
}

func (s *TestContextDisposable) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	s.disposed = true
	return s.disposeErr
}

func (s *TestContextDisposable) SetDisposeError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposeErr = err
}

func (s *TestContextDisposable) WasDisposedWithContext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil
}

func (s *TestContextDisposable) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// TestHandler is a test handler interface
type TestHandler interface {
	Handle() string
}

// TestHandlerImpl implements TestHandler
type TestHandlerImpl struct {
	name string
}

func NewTestHandler(name string) TestHandler {
	return &TestHandlerImpl{name: name}
}

func (h *TestHandlerImpl) Handle() string {
	return h.name
}

// TestServiceWithDeps is a service with dependencies for testing
type TestServiceWithDeps struct {
	Logger   TestLogger
	Database TestDatabase
	Cache    TestCache
	ID       string
}

func NewTestServiceWithDeps(logger TestLogger, db TestDatabase, cache TestCache) *TestServiceWithDeps {
	return &TestServiceWithDeps{
		Logger:   logger,
		Database: db,
		Cache:    cache,
		ID:       uuid.NewString(),
	}
}

// CircularServiceA and CircularServiceB for testing circular dependencies
type CircularServiceA struct {
	B *CircularServiceB
}

type CircularServiceB struct {
	A *CircularServiceA
}

func NewCircularServiceA(b *CircularServiceB) *CircularServiceA {
	return &CircularServiceA{B: b}
}

func NewCircularServiceB(a *CircularServiceA) *CircularServiceB {
	return &CircularServiceB{A: a}
}

// DecoratedLogger wraps another logger with a prefix
type DecoratedLogger struct {
	Inner  TestLogger
	Prefix string
}

func (d *DecoratedLogger) Log(message string) {
	d.Inner.Log(d.Prefix + message)
}

func (d *DecoratedLogger) GetLogs() []string {
	return d.Inner.GetLogs()
}

// NewDecoratedLogger wraps the next registered TestLogger.
func NewDecoratedLogger(inner TestLogger) *DecoratedLogger {
	return &DecoratedLogger{Inner: inner, Prefix: "[decorated] "}
}
