// Package view holds the screen-facing adapters: each binds a feed.View to
// the resource layer and a realtime bridge, and exposes the exact shape a
// dashboard screen renders. Adapters never return errors to render paths;
// read failures degrade to a placeholder or empty state and are logged.
package view

import (
	"context"
	"sync"

	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/model"
	"sitevisor.org/internal/obs"
	"sitevisor.org/internal/resource"
)

// NotificationsState tells the screen which variant to render.
type NotificationsState int

const (
	// NotificationsLive renders real rows from the store.
	NotificationsLive NotificationsState = iota
	// NotificationsDegraded renders placeholder rows because the initial
	// load failed; the bell icon stays functional instead of crashing the
	// header.
	NotificationsDegraded
)

// placeholderNotifications are the fixed rows shown while degraded. Content
// is deliberately generic and carries a zero time so it can never be
// mistaken for a real event.
func placeholderNotifications(userID string) []model.Notification {
	return []model.Notification{
		{ID: "placeholder-1", UserID: userID, Title: "Welcome to Sitevisor", Message: "Your notifications will appear here.", Type: model.NotifyInfo, Read: true},
		{ID: "placeholder-2", UserID: userID, Title: "Notifications unavailable", Message: "We could not load your notifications. Pull to refresh.", Type: model.NotifyInfo, Read: true},
	}
}

// Notifications feeds the header bell: an ordered list plus an unread
// counter maintained incrementally from change events.
type Notifications struct {
	svc   *resource.Service
	feed  feed.Source
	scope resource.Scope

	mu     sync.Mutex
	state  NotificationsState
	view   *feed.View[model.Notification]
	unread int

	bridge *feed.Bridge
}

// NewNotifications binds the adapter to one principal's scope. Call Run to
// load and start the realtime bridge.
func NewNotifications(svc *resource.Service, source feed.Source, scope resource.Scope) *Notifications {
	n := &Notifications{
		svc:   svc,
		feed:  source,
		scope: scope,
		view:  feed.NewView(func(x model.Notification) string { return x.ID }),
	}
	n.bridge = feed.NewBridge(source, feed.Filter{
		Table:   resource.TableNotifications,
		OwnerID: scope.PrincipalID,
	}, n.onEvent)
	n.bridge.OnResync = func() { n.reload(context.Background()) }
	return n
}

// Run performs the initial load and drives the realtime bridge until the
// context ends. The context should be cancelled on sign-out.
func (n *Notifications) Run(ctx context.Context) {
	n.reload(ctx)
	n.bridge.Run(ctx)
}

func (n *Notifications) reload(ctx context.Context) {
	items, err := n.svc.Notifications(ctx, n.scope)
	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		obs.Error("view: notifications load failed", err)
		n.state = NotificationsDegraded
		n.view.Reset(placeholderNotifications(n.scope.PrincipalID))
		n.unread = 0
		return
	}
	n.state = NotificationsLive
	n.view.Reset(items)
	n.unread = countUnread(items)
}

func (n *Notifications) onEvent(ev feed.Event) {
	rec, ok := ev.Record.(model.Notification)
	if !ok {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == NotificationsDegraded {
		// First real event proves the backend is reachable again.
		n.state = NotificationsLive
		n.view.Reset(nil)
		n.unread = 0
	}
	prev, had := n.view.Get(rec.ID)
	if !n.view.Apply(ev.Kind, rec) {
		return
	}
	switch ev.Kind {
	case feed.KindInsert:
		if had {
			n.adjustUnread(prev, rec)
		} else if !rec.Read {
			n.unread++
		}
	case feed.KindUpdate:
		n.adjustUnread(prev, rec)
	case feed.KindDelete:
		if !prev.Read {
			n.decUnread()
		}
	}
}

func (n *Notifications) adjustUnread(prev, next model.Notification) {
	switch {
	case prev.Read && !next.Read:
		n.unread++
	case !prev.Read && next.Read:
		n.decUnread()
	}
}

func (n *Notifications) decUnread() {
	// Clamped so a double-processed read event can never show a negative
	// badge.
	if n.unread > 0 {
		n.unread--
	}
}

// Items returns the rows the bell dropdown renders.
func (n *Notifications) Items() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view.Items()
}

// Unread returns the badge count.
func (n *Notifications) Unread() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}

// State returns which variant the screen should render.
func (n *Notifications) State() NotificationsState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Stale reports whether the realtime bridge is currently disconnected.
func (n *Notifications) Stale() bool {
	return n.bridge.Stale()
}

// MarkAllRead flips every unread row, optimistically zeroing the badge
// before the store write lands; the confirming update events are no-ops.
func (n *Notifications) MarkAllRead(ctx context.Context) error {
	n.mu.Lock()
	n.unread = 0
	n.view.Mutate(func(x *model.Notification) { x.Read = true })
	n.mu.Unlock()

	_, err := n.svc.MarkAllNotificationsRead(ctx, n.scope)
	if err != nil {
		obs.Error("view: mark all read failed", err)
	}
	return err
}

func countUnread(items []model.Notification) int {
	c := 0
	for _, x := range items {
		if !x.Read {
			c++
		}
	}
	return c
}
