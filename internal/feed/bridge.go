package feed

import (
	"context"
	"sync/atomic"
	"time"
)

// Source is anything that can open a change-event subscription. Feed
// satisfies it in-process; a remote SSE client would satisfy it over the
// wire.
type Source interface {
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, error)
}

const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Bridge keeps one logical subscription alive. When the source drops, it
// resubscribes with exponential backoff and flags the interval as stale so
// the owning view can surface degraded freshness; OnResync fires after each
// successful resubscribe so the owner can run a fresh bulk read.
type Bridge struct {
	source  Source
	filter  Filter
	onEvent func(Event)

	// OnResync is optional; called after every reconnect (not the first
	// connect) before events resume.
	OnResync func()

	stale atomic.Bool

	// Backoff bounds are variables so tests can tighten them.
	backoffMin time.Duration
	backoffMax time.Duration
}

// NewBridge wires a subscription for the given filter; onEvent receives
// every matching event in arrival order.
func NewBridge(source Source, filter Filter, onEvent func(Event)) *Bridge {
	return &Bridge{
		source:     source,
		filter:     filter,
		onEvent:    onEvent,
		backoffMin: initialBackoff,
		backoffMax: maxBackoff,
	}
}

// Stale reports whether the bridge is currently disconnected from its
// source. Data shown while stale may be behind the backend.
func (b *Bridge) Stale() bool {
	return b.stale.Load()
}

// Run drives the subscription until the context ends. All subscriptions for
// a principal should share a context cancelled on sign-out so no channel
// outlives the identity it was filtered by.
func (b *Bridge) Run(ctx context.Context) {
	backoff := b.backoffMin
	connected := false

	for ctx.Err() == nil {
		ch, err := b.source.Subscribe(ctx, b.filter)
		if err != nil {
			b.stale.Store(true)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, b.backoffMax)
			continue
		}

		b.stale.Store(false)
		backoff = b.backoffMin
		if connected && b.OnResync != nil {
			b.OnResync()
		}
		connected = true

		for evt := range ch {
			b.onEvent(evt)
		}
		// Channel closed. If the context ended this is a normal teardown;
		// otherwise the source dropped and we go around again.
		if ctx.Err() != nil {
			return
		}
		b.stale.Store(true)
		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, b.backoffMax)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
