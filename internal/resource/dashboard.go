package resource

import (
	"context"

	"golang.org/x/sync/errgroup"

	"sitevisor.org/internal/model"
)

// DashboardStats is the aggregate the landing screen renders in one shot.
type DashboardStats struct {
	TotalProjects    int   `json:"total_projects"`
	ActiveProjects   int   `json:"active_projects"`
	TotalReports     int   `json:"total_reports"`
	PendingApprovals int   `json:"pending_approvals"`
	WalletBalance    int64 `json:"wallet_balance"`
	Revenue          int64 `json:"revenue"`
}

// Dashboard gathers project, report and payment aggregates for the scope.
// The three source reads run concurrently; the first failure wins and the
// remaining reads are cancelled.
func (s *Service) Dashboard(ctx context.Context, scope Scope) (*DashboardStats, error) {
	var (
		projects []model.Project
		reports  []model.SiteReport
		payments []model.Payment
		wallet   *model.Wallet
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
		if err != nil {
			return err
		}
		wallet, err = s.store.Wallets().Ensure(ctx, scope.PrincipalID, DefaultCurrency)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &DashboardStats{TotalProjects: len(projects), TotalReports: len(reports)}
	for _, p := range projects {
		if p.Status == model.ProjectActive {
			stats.ActiveProjects++
		}
	}
	for _, r := range reports {
		if r.Approval == model.ApprovalPending {
			stats.PendingApprovals++
		}
	}
	for _, p := range payments {
		if p.Status == model.PaymentCompleted && p.Type != model.PaymentWithdrawal {
			stats.Revenue += p.Amount
		}
	}
	if wallet != nil {
		stats.WalletBalance = wallet.Balance
	}
	return stats, nil
}
