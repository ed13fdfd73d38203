package resource

import (
	"context"
	"sync"
)

// call is one in-flight backend request shared by every concurrent caller
// with the same key.
type call struct {
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
	val    any
	err    error
}

// RequestCache deduplicates concurrent reads per (entity, filter) key and
// threads cancellation through: each waiter holds a reference, and when the
// last waiter's context ends the underlying store call is cancelled too, so
// an unmounted view abandons its in-flight request instead of leaking it.
type RequestCache struct {
	mu    sync.Mutex
	calls map[string]*call
}

// NewRequestCache creates an empty cache.
func NewRequestCache() *RequestCache {
	return &RequestCache{calls: make(map[string]*call)}
}

// Do joins or starts the in-flight call for key. fn runs at most once per
// flight; its context is detached from any single waiter and cancelled only
// when every waiter has gone away.
func (c *RequestCache) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	cl, ok := c.calls[key]
	if !ok {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cl = &call{cancel: cancel, done: make(chan struct{})}
		c.calls[key] = cl
		go func() {
			cl.val, cl.err = fn(callCtx)
			c.mu.Lock()
			delete(c.calls, key)
			c.mu.Unlock()
			close(cl.done)
		}()
	}
	cl.refs++
	c.mu.Unlock()

	select {
	case <-cl.done:
		c.release(key, cl)
		return cl.val, cl.err
	case <-ctx.Done():
		c.release(key, cl)
		return nil, ctx.Err()
	}
}

func (c *RequestCache) release(key string, cl *call) {
	c.mu.Lock()
	cl.refs--
	abandon := cl.refs == 0
	c.mu.Unlock()
	if abandon {
		// Last waiter gone; stop the backend call if it is still running.
		cl.cancel()
	}
}

// cachedList adapts Do to a typed slice read.
func cachedList[T any](c *RequestCache, ctx context.Context, key string, fn func(context.Context) ([]T, error)) ([]T, error) {
	if c == nil {
		return fn(ctx)
	}
	v, err := c.Do(ctx, key, func(callCtx context.Context) (any, error) {
		return fn(callCtx)
	})
	if err != nil {
		return nil, err
	}
	items, _ := v.([]T)
	return items, nil
}
