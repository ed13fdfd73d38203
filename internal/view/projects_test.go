package view

import (
	"context"
	"testing"

	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/model"
	"sitevisor.org/internal/resource"
)

func TestProjectsAdapterFoldsEvents(t *testing.T) {
	mem := resource.NewMemory()
	svc := resource.NewService(mem, nil)
	ctx := context.Background()
	scope := resource.Scope{PrincipalID: "c1", Role: model.RoleClient}

	seeded, err := svc.CreateProject(ctx, scope, model.Project{Name: "Initial site"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	adapter := NewProjects(svc, feed.New(), scope)
	adapter.reload(ctx)
	if got := adapter.Items(); len(got) != 1 || got[0].ID != seeded.ID {
		t.Fatalf("items = %+v", got)
	}

	fresh := model.Project{ID: "p2", Name: "New site", ClientID: "c1", Status: model.ProjectPlanning}
	adapter.onEvent(feed.Event{Table: resource.TableProjects, Kind: feed.KindInsert, Record: fresh})
	if got := adapter.Items(); len(got) != 2 || got[0].ID != "p2" {
		t.Fatalf("insert should prepend, items = %+v", got)
	}

	fresh.Status = model.ProjectActive
	adapter.onEvent(feed.Event{Table: resource.TableProjects, Kind: feed.KindUpdate, Record: fresh})
	if got, ok := adapter.Get("p2"); !ok || got.Status != model.ProjectActive {
		t.Fatalf("update not applied: %+v", got)
	}

	adapter.onEvent(feed.Event{Table: resource.TableProjects, Kind: feed.KindDelete, Record: fresh})
	if _, ok := adapter.Get("p2"); ok {
		t.Fatal("delete event left the row in the view")
	}
	if got := adapter.Items(); len(got) != 1 {
		t.Fatalf("items = %+v, want the seeded row only", got)
	}
}

func TestProjectsAdapterDegradesToEmpty(t *testing.T) {
	svc := resource.NewService(failingProjectStore{}, nil)
	adapter := NewProjects(svc, feed.New(), resource.Scope{PrincipalID: "c1", Role: model.RoleClient})
	adapter.reload(context.Background())
	if got := adapter.Items(); len(got) != 0 {
		t.Fatalf("degraded view = %+v, want empty", got)
	}
}

type failingProjectStore struct{ resource.Store }

func (failingProjectStore) Projects() resource.ProjectStore { return errProjectStore{} }

type errProjectStore struct{}

func (errProjectStore) Create(context.Context, *model.Project) error { return errStoreDown }
func (errProjectStore) Get(context.Context, string) (*model.Project, error) {
	return nil, errStoreDown
}
func (errProjectStore) List(context.Context, resource.Scope) ([]model.Project, error) {
	return nil, errStoreDown
}
func (errProjectStore) Update(context.Context, string, model.ProjectPatch) (*model.Project, error) {
	return nil, errStoreDown
}
func (errProjectStore) Delete(context.Context, string) error { return errStoreDown }
