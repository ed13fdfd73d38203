package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakySource fails its first connection attempts, then hands out channels
// it can drop on demand.
type flakySource struct {
	mu       sync.Mutex
	failures int
	attempts int
	current  chan Event
}

func (s *flakySource) Subscribe(ctx context.Context, _ Filter) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return nil, errors.New("connection refused")
	}
	s.current = make(chan Event, 16)
	return s.current, nil
}

func (s *flakySource) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		close(s.current)
		s.current = nil
	}
}

func (s *flakySource) send(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current <- evt
	}
}

func (s *flakySource) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func newTestBridge(source Source, onEvent func(Event)) *Bridge {
	b := NewBridge(source, Filter{Table: "notifications"}, onEvent)
	b.backoffMin = time.Millisecond
	b.backoffMax = 4 * time.Millisecond
	return b
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestBridgeRetriesUntilConnected(t *testing.T) {
	source := &flakySource{failures: 3}

	var mu sync.Mutex
	var got []Event
	b := newTestBridge(source, func(evt Event) {
		mu.Lock()
		got = append(got, evt)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	waitFor(t, func() bool { return source.attemptCount() >= 4 && !b.Stale() })

	source.send(Event{Table: "notifications", Kind: KindInsert})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
}

func TestBridgeGoesStaleOnDropAndResyncs(t *testing.T) {
	source := &flakySource{}

	var resyncs int
	var mu sync.Mutex
	b := newTestBridge(source, func(Event) {})
	b.OnResync = func() {
		mu.Lock()
		resyncs++
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	waitFor(t, func() bool { return source.attemptCount() >= 1 && !b.Stale() })

	source.drop()
	waitFor(t, func() bool { return source.attemptCount() >= 2 && !b.Stale() })

	mu.Lock()
	n := resyncs
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected one resync after reconnect, got %d", n)
	}
}

func TestBridgeStopsWithContext(t *testing.T) {
	source := &flakySource{}
	b := newTestBridge(source, func(Event) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return source.attemptCount() >= 1 })
	cancel()
	source.drop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop with context")
	}
}
