package view

import (
	"context"

	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/model"
	"sitevisor.org/internal/obs"
	"sitevisor.org/internal/resource"
)

// Projects feeds the project list screen: an ordered view folded from
// change events over an initial bulk read.
type Projects struct {
	svc   *resource.Service
	scope resource.Scope

	view   *feed.View[model.Project]
	bridge *feed.Bridge
}

// NewProjects binds the adapter to one principal's scope.
func NewProjects(svc *resource.Service, source feed.Source, scope resource.Scope) *Projects {
	p := &Projects{
		svc:   svc,
		scope: scope,
		view:  feed.NewView(func(x model.Project) string { return x.ID }),
	}
	p.bridge = feed.NewBridge(source, feed.Filter{
		Table:   resource.TableProjects,
		OwnerID: scope.PrincipalID,
	}, p.onEvent)
	p.bridge.OnResync = func() { p.reload(context.Background()) }
	return p
}

// Run performs the initial load and drives the realtime bridge until the
// context ends.
func (p *Projects) Run(ctx context.Context) {
	p.reload(ctx)
	p.bridge.Run(ctx)
}

func (p *Projects) reload(ctx context.Context) {
	// Render paths want a list no matter what, so the degraded variant is
	// an empty view rather than an error.
	p.view.Reset(p.svc.ProjectsOrEmpty(ctx, p.scope))
}

func (p *Projects) onEvent(ev feed.Event) {
	rec, ok := ev.Record.(model.Project)
	if !ok {
		obs.Error("view: unexpected project event payload", nil)
		return
	}
	p.view.Apply(ev.Kind, rec)
}

// Items returns the rows the list screen renders.
func (p *Projects) Items() []model.Project {
	return p.view.Items()
}

// Get returns one project from the local view.
func (p *Projects) Get(id string) (model.Project, bool) {
	return p.view.Get(id)
}

// Stale reports whether the realtime bridge is currently disconnected.
func (p *Projects) Stale() bool {
	return p.bridge.Stale()
}
