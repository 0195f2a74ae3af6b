package godi

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// goid returns the current goroutine ID.
// It keys the goroutine-local state used by the kernel: the in-flight
// creation context and the lazy loader re-entrancy flag.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}

// goroutineContexts records the creation context currently being built on
// each goroutine, so a constructor that calls back into the kernel continues
// the same resolution chain.
type goroutineContexts struct {
	m sync.Map // map[int64]*CreationContext
}

// enter records ctx as the in-flight context of the calling goroutine and
// returns a func restoring the previous one.
func (g *goroutineContexts) enter(ctx *CreationContext) func() {
	id := goid()
	prev, hadPrev := g.m.Load(id)
	g.m.Store(id, ctx)

	return func() {
		if hadPrev {
			g.m.Store(id, prev)
		} else {
			g.m.Delete(id)
		}
	}
}

// current returns the in-flight context of the calling goroutine.
func (g *goroutineContexts) current() *CreationContext {
	v, ok := g.m.Load(goid())
	if !ok {
		return nil
	}
	return v.(*CreationContext)
}

// goroutineFlag is a per-goroutine boolean.
type goroutineFlag struct {
	m sync.Map // map[int64]struct{}
}

// set marks the calling goroutine. It returns false if it was already marked.
func (f *goroutineFlag) set() bool {
	_, loaded := f.m.LoadOrStore(goid(), struct{}{})
	return !loaded
}

func (f *goroutineFlag) clear() {
	f.m.Delete(goid())
}
