package resource

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"sitevisor.org/internal/model"
)

// SearchResult groups per-entity matches for one query.
type SearchResult struct {
	Projects []model.Project    `json:"projects"`
	Reports  []model.SiteReport `json:"reports"`
	Payments []model.Payment    `json:"payments"`
}

// Search runs one case-insensitive substring query across the scope's
// projects, reports and payments, fetching the three lists concurrently.
// An empty query matches nothing.
func (s *Service) Search(ctx context.Context, scope Scope, query string) (*SearchResult, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	result := &SearchResult{}
	if needle == "" {
		return result, nil
	}

	var (
		projects []model.Project
		reports  []model.SiteReport
		payments []model.Payment
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = s.store.Projects().List(ctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		reports, err = s.store.Reports().List(ctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.store.Payments().List(ctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range projects {
		if containsFold(needle, p.Name, p.Description, p.Location) {
			result.Projects = append(result.Projects, p)
		}
	}
	for _, r := range reports {
		if containsFold(needle, append([]string{r.Title, r.Summary}, r.Issues...)...) {
			result.Reports = append(result.Reports, r)
		}
	}
	for _, p := range payments {
		if containsFold(needle, p.Reference, string(p.Type)) {
			result.Payments = append(result.Payments, p)
		}
	}
	return result, nil
}

func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
