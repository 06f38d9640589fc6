package cache

import (
	"context"
	"sync"
)

// inFlightCall tracks one compute in progress that later callers wait on.
type inFlightCall[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// flightGroup deduplicates concurrent compute calls per key: the first
// caller for a key runs fn, later callers for the same key block until the
// result is ready and share it. Without this, two concurrent cache misses
// on the same key would each hit upstream.
type flightGroup[T any] struct {
	mu    sync.Mutex
	calls map[string]*inFlightCall[T]
}

// do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call's result. Waiters respect ctx cancellation;
// the executing caller runs fn to completion so the shared result is
// usable by everyone queued behind it.
func (g *flightGroup[T]) do(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*inFlightCall[T])
	}
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}

	c := &inFlightCall[T]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()

	return c.val, c.err
}
