package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRequestCacheDeduplicatesConcurrentCalls(t *testing.T) {
	cache := NewRequestCache()
	var calls atomic.Int32
	gate := make(chan struct{})

	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-gate
		return "result", nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]any, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Do(context.Background(), "projects|client|u1", fn)
		}(i)
	}

	// Give every waiter a chance to join before releasing the call.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("backend called %d times, want 1", got)
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil || results[i] != "result" {
			t.Fatalf("waiter %d got (%v, %v)", i, results[i], errs[i])
		}
	}
}

func TestRequestCacheDistinctKeysDoNotShare(t *testing.T) {
	cache := NewRequestCache()
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, nil
	}
	if _, err := cache.Do(context.Background(), "a", fn); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Do(context.Background(), "b", fn); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestRequestCacheSurvivesOneWaiterLeaving(t *testing.T) {
	cache := NewRequestCache()
	gate := make(chan struct{})
	var cancelled atomic.Bool

	fn := func(ctx context.Context) (any, error) {
		select {
		case <-gate:
			return 42, nil
		case <-ctx.Done():
			cancelled.Store(true)
			return nil, ctx.Err()
		}
	}

	first, firstCancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Do(first, "k", fn)
		firstErr <- err
	}()

	secondDone := make(chan struct{})
	var secondVal any
	var secondErr error
	go func() {
		defer close(secondDone)
		// Joins the same flight slightly after the first waiter.
		time.Sleep(10 * time.Millisecond)
		secondVal, secondErr = cache.Do(context.Background(), "k", fn)
	}()

	time.Sleep(30 * time.Millisecond)
	firstCancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first waiter err = %v, want context.Canceled", err)
	}

	close(gate)
	<-secondDone
	if secondErr != nil || secondVal != 42 {
		t.Fatalf("second waiter got (%v, %v), want (42, nil)", secondVal, secondErr)
	}
	if cancelled.Load() {
		t.Fatal("backend call was cancelled while a waiter remained")
	}
}

func TestRequestCacheCancelsWhenLastWaiterLeaves(t *testing.T) {
	cache := NewRequestCache()
	sawCancel := make(chan struct{})

	fn := func(ctx context.Context) (any, error) {
		<-ctx.Done()
		close(sawCancel)
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.Do(ctx, "k", fn)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Fatal("backend context never cancelled after last waiter left")
	}
}
