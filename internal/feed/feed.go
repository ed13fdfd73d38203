// Package feed carries backend change events to subscribed views. The Feed
// type is the server half (fan-out keyed by table and owner); View and
// Bridge are the client half that folds events into local page state.
package feed

import (
	"context"
	"sync"
	"time"

	"sitevisor.org/internal/obs"
)

// Kind tags a change event.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event describes one row change. Owners lists every principal allowed to
// observe the event; it is match metadata and never serialized to clients.
type Event struct {
	Table  string    `json:"table"`
	Kind   Kind      `json:"kind"`
	Record any       `json:"record"`
	At     time.Time `json:"at"`
	Owners []string  `json:"-"`
}

// Filter selects events for one subscriber. An empty Table matches every
// table; an empty OwnerID matches every owner (admin subscriptions).
type Filter struct {
	Table   string
	OwnerID string
}

func (f Filter) matches(evt Event) bool {
	if f.Table != "" && f.Table != evt.Table {
		return false
	}
	if f.OwnerID == "" {
		return true
	}
	for _, owner := range evt.Owners {
		if owner == f.OwnerID {
			return true
		}
	}
	return false
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Feed fan-outs change events to all active subscribers.
type Feed struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// New initialises an empty feed.
func New() *Feed {
	return &Feed{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// matching events. The channel is closed when the provided context ends.
func (f *Feed) Subscribe(ctx context.Context, filter Filter) (<-chan Event, error) {
	ch := make(chan Event, 16)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = subscriber{ch: ch, filter: filter}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch, nil
}

// Publish fan-outs the event to all matching subscribers.
func (f *Feed) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	obs.CountFeedEvent(evt.Table, string(evt.Kind))

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subs {
		if !sub.filter.matches(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
