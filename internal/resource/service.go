package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/ids"
	"sitevisor.org/internal/model"
	"sitevisor.org/internal/obs"
)

// DefaultCurrency is the single wallet currency, minor units.
const DefaultCurrency = "NGN"

const (
	TableProjects      = "projects"
	TableReports       = "site_reports"
	TablePayments      = "payments"
	TableWallets       = "wallets"
	TableNotifications = "notifications"
	TableSubscriptions = "subscriptions"
)

// Service is the resource access layer. Every operation performs one store
// call scoped to the calling principal, and successful writes publish a
// change event so subscribed views converge without refetching.
type Service struct {
	store Store
	feed  *feed.Feed
	cache *RequestCache
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the access layer over a store. The feed may be nil
// (no realtime fan-out, e.g. in batch tooling).
func NewService(store Store, f *feed.Feed, opts ...ServiceOption) *Service {
	svc := &Service{
		store: store,
		feed:  f,
		cache: NewRequestCache(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) publish(table string, kind feed.Kind, record any, owners ...string) {
	if s.feed == nil {
		return
	}
	var filtered []string
	for _, o := range owners {
		if o != "" {
			filtered = append(filtered, o)
		}
	}
	s.feed.Publish(feed.Event{
		Table:  table,
		Kind:   kind,
		Record: record,
		At:     s.now().UTC(),
		Owners: filtered,
	})
}

func listKey(table string, scope Scope) string {
	return fmt.Sprintf("%s|%s|%s", table, scope.Role, scope.PrincipalID)
}

// Profile -------------------------------------------------------------

// Profile resolves the principal's account record.
func (s *Service) Profile(ctx context.Context, scope Scope) (*model.Principal, error) {
	u, err := s.store.Users().UserByID(ctx, scope.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	p := u.Principal()
	return &p, nil
}

// UpdateProfile applies a user patch to the principal's own record.
func (s *Service) UpdateProfile(ctx context.Context, scope Scope, patch model.UserPatch) (*model.Principal, error) {
	u, err := s.store.Users().UpdateUser(ctx, scope.PrincipalID, patch)
	if err != nil {
		return nil, err
	}
	p := u.Principal()
	return &p, nil
}

// Projects ------------------------------------------------------------

// CreateProject persists a project owned by the calling client. Admins may
// create on behalf of any client; supervisors cannot create projects.
func (s *Service) CreateProject(ctx context.Context, scope Scope, in model.Project) (*model.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrInvalidInput
	}
	switch scope.Role {
	case model.RoleClient:
		in.ClientID = scope.PrincipalID
	case model.RoleAdmin:
		if in.ClientID == "" {
			return nil, ErrInvalidInput
		}
	default:
		return nil, ErrForbidden
	}
	now := s.now().UTC()
	in.ID = ids.New()
	if in.Status == "" {
		in.Status = model.ProjectPlanning
	}
	in.CreatedAt = now
	in.UpdatedAt = now

	if err := s.store.Projects().Create(ctx, &in); err != nil {
		return nil, err
	}
	s.publish(TableProjects, feed.KindInsert, in, in.ClientID, in.SupervisorID)
	return &in, nil
}

// Projects lists projects visible to the scope. Concurrent calls with the
// same scope share one store read.
func (s *Service) Projects(ctx context.Context, scope Scope) ([]model.Project, error) {
	return cachedList(s.cache, ctx, listKey(TableProjects, scope), func(ctx context.Context) ([]model.Project, error) {
		return s.store.Projects().List(ctx, scope)
	})
}

// ProjectsOrEmpty is the bare-value variant render paths call: failures are
// logged and degrade to an empty list, never an exception up the stack.
func (s *Service) ProjectsOrEmpty(ctx context.Context, scope Scope) []model.Project {
	items, err := s.Projects(ctx, scope)
	if err != nil {
		obs.Error("resource: list projects failed", err)
		return nil
	}
	return items
}

// Project returns the project, or nil without error when it does not exist
// or is hidden from the scope; only transport failures surface as errors.
func (s *Service) Project(ctx context.Context, scope Scope, id string) (*model.Project, error) {
	p, err := s.store.Projects().Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !projectVisible(*p, scope) {
		return nil, nil
	}
	return p, nil
}

// UpdateProject applies a typed patch to a project the scope owns.
func (s *Service) UpdateProject(ctx context.Context, scope Scope, id string, patch model.ProjectPatch) (*model.Project, error) {
	existing, err := s.Project(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	updated, err := s.store.Projects().Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(TableProjects, feed.KindUpdate, *updated, updated.ClientID, updated.SupervisorID)
	return updated, nil
}

// DeleteProject is a pass-through delete; subscribed views receive the
// delete event rather than refetching.
func (s *Service) DeleteProject(ctx context.Context, scope Scope, id string) error {
	existing, err := s.Project(ctx, scope, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if scope.Role == model.RoleSupervisor {
		return ErrForbidden
	}
	if err := s.store.Projects().Delete(ctx, id); err != nil {
		return err
	}
	s.publish(TableProjects, feed.KindDelete, *existing, existing.ClientID, existing.SupervisorID)
	return nil
}

// Reports -------------------------------------------------------------

// CreateReport persists a site report authored by the calling supervisor
// and notifies the owning client.
func (s *Service) CreateReport(ctx context.Context, scope Scope, in model.SiteReport) (*model.SiteReport, error) {
	if scope.Role != model.RoleSupervisor && scope.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Title) == "" || in.ProjectID == "" {
		return nil, ErrInvalidInput
	}
	switch in.Kind {
	case model.ReportDaily, model.ReportWeekly, model.ReportMilestone:
	default:
		return nil, ErrInvalidInput
	}
	if in.Progress < 0 || in.Progress > 100 {
		return nil, ErrInvalidInput
	}
	project, err := s.store.Projects().Get(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidInput
		}
		return nil, err
	}
	if scope.Role == model.RoleSupervisor && project.SupervisorID != scope.PrincipalID {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	in.ID = ids.New()
	in.SupervisorID = scope.PrincipalID
	in.Approval = model.ApprovalPending
	in.CreatedAt = now
	in.UpdatedAt = now

	if err := s.store.Reports().Create(ctx, &in); err != nil {
		return nil, err
	}
	s.publish(TableReports, feed.KindInsert, in, in.SupervisorID, project.ClientID)

	// Backend-side trigger in the hosted system; here the write path owns it.
	s.Notify(ctx, project.ClientID, "New site report", in.Title, model.NotifyReport)
	return &in, nil
}

// Reports lists site reports visible to the scope.
func (s *Service) Reports(ctx context.Context, scope Scope) ([]model.SiteReport, error) {
	return cachedList(s.cache, ctx, listKey(TableReports, scope), func(ctx context.Context) ([]model.SiteReport, error) {
		return s.store.Reports().List(ctx, scope)
	})
}

// Report returns one report, or nil when missing or hidden.
func (s *Service) Report(ctx context.Context, scope Scope, id string) (*model.SiteReport, error) {
	r, err := s.store.Reports().Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	visible, err := s.reportVisible(ctx, *r, scope)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, nil
	}
	return r, nil
}

func (s *Service) reportVisible(ctx context.Context, r model.SiteReport, scope Scope) (bool, error) {
	switch scope.Role {
	case model.RoleAdmin:
		return true, nil
	case model.RoleSupervisor:
		return r.SupervisorID == scope.PrincipalID, nil
	case model.RoleClient:
		p, err := s.store.Projects().Get(ctx, r.ProjectID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return p.ClientID == scope.PrincipalID, nil
	}
	return false, nil
}

// ProjectReports lists reports for one project the scope can see.
func (s *Service) ProjectReports(ctx context.Context, scope Scope, projectID string) ([]model.SiteReport, error) {
	project, err := s.Project(ctx, scope, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return s.store.Reports().ListByProject(ctx, projectID)
}

// UpdateReport applies a typed patch. Supervisors may only touch their own
// reports; approval changes are reserved for admins.
func (s *Service) UpdateReport(ctx context.Context, scope Scope, id string, patch model.ReportPatch) (*model.SiteReport, error) {
	existing, err := s.Report(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if patch.Approval != nil && scope.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if scope.Role == model.RoleClient {
		return nil, ErrForbidden
	}
	updated, err := s.store.Reports().Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	owners := []string{updated.SupervisorID}
	if project, perr := s.store.Projects().Get(ctx, updated.ProjectID); perr == nil {
		owners = append(owners, project.ClientID)
	}
	s.publish(TableReports, feed.KindUpdate, *updated, owners...)
	return updated, nil
}

// Payments ------------------------------------------------------------

// InitiatePayment creates a pending payment record. The hosted provider UI
// completes it later through ConfirmPayment with its reference string.
func (s *Service) InitiatePayment(ctx context.Context, scope Scope, amount int64, typ model.PaymentType) (*model.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}
	switch typ {
	case model.PaymentDeposit, model.PaymentSubscription:
	default:
		return nil, ErrInvalidInput
	}
	now := s.now().UTC()
	p := model.Payment{
		ID:        ids.New(),
		UserID:    scope.PrincipalID,
		Amount:    amount,
		Currency:  DefaultCurrency,
		Status:    model.PaymentPending,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Payments().Create(ctx, &p); err != nil {
		return nil, err
	}
	s.publish(TablePayments, feed.KindInsert, p, p.UserID)
	return &p, nil
}

// ConfirmPayment records the provider callback: stores the external
// reference, moves the payment to its terminal state, and credits the
// wallet for completed deposits.
func (s *Service) ConfirmPayment(ctx context.Context, id, reference string, succeeded bool) (*model.Payment, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, ErrInvalidInput
	}
	status := model.PaymentCompleted
	if !succeeded {
		status = model.PaymentFailed
	}
	updated, settled, err := s.store.Payments().Settle(ctx, id, model.PaymentPatch{
		Status:    &status,
		Reference: &reference,
	})
	if err != nil {
		return nil, err
	}
	if !settled {
		// Terminal states are final; replaying a callback is a no-op.
		return updated, nil
	}
	s.publish(TablePayments, feed.KindUpdate, *updated, updated.UserID)

	if succeeded && updated.Type == model.PaymentDeposit {
		wallet, err := s.store.Wallets().Credit(ctx, updated.UserID, updated.Amount, "deposit", updated.ID)
		if err != nil {
			return nil, err
		}
		s.publish(TableWallets, feed.KindUpdate, *wallet, wallet.UserID)
	}
	s.Notify(ctx, updated.UserID, "Payment "+string(status), "Reference "+reference, model.NotifyPayment)
	return updated, nil
}

// Payment returns one payment visible to the scope, nil when missing or
// owned by someone else.
func (s *Service) Payment(ctx context.Context, scope Scope, id string) (*model.Payment, error) {
	p, err := s.store.Payments().Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !scope.Admin() && p.UserID != scope.PrincipalID {
		return nil, nil
	}
	return p, nil
}

// Payments lists payment history for the scope.
func (s *Service) Payments(ctx context.Context, scope Scope) ([]model.Payment, error) {
	return cachedList(s.cache, ctx, listKey(TablePayments, scope), func(ctx context.Context) ([]model.Payment, error) {
		return s.store.Payments().List(ctx, scope)
	})
}

// Wallet --------------------------------------------------------------

// Wallet returns the principal's wallet, creating it on first touch.
func (s *Service) Wallet(ctx context.Context, scope Scope) (*model.Wallet, error) {
	return s.store.Wallets().Ensure(ctx, scope.PrincipalID, DefaultCurrency)
}

// WalletTransactions lists the principal's balance movements, newest first.
func (s *Service) WalletTransactions(ctx context.Context, scope Scope) ([]model.WalletTransaction, error) {
	return s.store.Wallets().Transactions(ctx, scope.PrincipalID)
}

// RequestWithdrawal checks the balance business rule before any write, then
// debits the wallet and records a pending withdrawal payment for the
// provider to pay out.
func (s *Service) RequestWithdrawal(ctx context.Context, scope Scope, amount int64) (*model.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}
	wallet, err := s.store.Wallets().Ensure(ctx, scope.PrincipalID, DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	now := s.now().UTC()
	p := model.Payment{
		ID:        ids.New(),
		UserID:    scope.PrincipalID,
		Amount:    amount,
		Currency:  DefaultCurrency,
		Status:    model.PaymentPending,
		Type:      model.PaymentWithdrawal,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The store re-checks under its own lock, so a racing withdrawal still
	// fails with the same sentinel instead of overdrawing.
	updatedWallet, err := s.store.Wallets().Debit(ctx, scope.PrincipalID, amount, "withdrawal", p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Payments().Create(ctx, &p); err != nil {
		// Roll the debit back so the wallet is unchanged on failure.
		if _, crerr := s.store.Wallets().Credit(ctx, scope.PrincipalID, amount, "withdrawal reversal", p.ID); crerr != nil {
			obs.Error("resource: withdrawal reversal failed", crerr)
		}
		return nil, err
	}

	s.publish(TableWallets, feed.KindUpdate, *updatedWallet, scope.PrincipalID)
	s.publish(TablePayments, feed.KindInsert, p, scope.PrincipalID)
	return &p, nil
}

// Notifications -------------------------------------------------------

// Notify inserts a notification and pushes it to the owner's subscribed
// views. Failures are logged only; notifying is never worth failing the
// operation that triggered it.
func (s *Service) Notify(ctx context.Context, userID, title, message string, typ model.NotificationType) {
	if userID == "" {
		return
	}
	n := model.Notification{
		ID:        ids.New(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Notifications().Create(ctx, &n); err != nil {
		obs.Error("resource: create notification failed", err)
		return
	}
	s.publish(TableNotifications, feed.KindInsert, n, userID)
}

// Notifications lists the principal's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, scope Scope) ([]model.Notification, error) {
	return cachedList(s.cache, ctx, listKey(TableNotifications, scope), func(ctx context.Context) ([]model.Notification, error) {
		return s.store.Notifications().List(ctx, scope.PrincipalID)
	})
}

// MarkNotificationRead flips one read flag. The ownership filter rides
// inside the store update, so a foreign principal's call never writes;
// the hidden row surfaces as ErrNotFound.
func (s *Service) MarkNotificationRead(ctx context.Context, scope Scope, id string) (*model.Notification, error) {
	owner := scope.PrincipalID
	if scope.Admin() {
		owner = ""
	}
	n, err := s.store.Notifications().MarkRead(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	s.publish(TableNotifications, feed.KindUpdate, *n, n.UserID)
	return n, nil
}

// MarkAllNotificationsRead flips every unread flag for the principal and
// returns how many changed.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, scope Scope) (int, error) {
	count, err := s.store.Notifications().MarkAllRead(ctx, scope.PrincipalID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		items, lerr := s.store.Notifications().List(ctx, scope.PrincipalID)
		if lerr == nil {
			for _, n := range items {
				s.publish(TableNotifications, feed.KindUpdate, n, n.UserID)
			}
		}
	}
	return count, nil
}

// Preferences ---------------------------------------------------------

// Preferences returns the principal's delivery toggles, with email alerts
// on by default before the first save.
func (s *Service) Preferences(ctx context.Context, scope Scope) (*model.UserPreferences, error) {
	p, err := s.store.Preferences().Get(ctx, scope.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &model.UserPreferences{UserID: scope.PrincipalID, EmailAlerts: true}, nil
		}
		return nil, err
	}
	return p, nil
}

// UpdatePreferences upserts the principal's delivery toggles.
func (s *Service) UpdatePreferences(ctx context.Context, scope Scope, patch model.PreferencesPatch) (*model.UserPreferences, error) {
	return s.store.Preferences().Upsert(ctx, scope.PrincipalID, patch)
}

// Subscriptions -------------------------------------------------------

// CreateSubscription records a purchased plan for the principal.
func (s *Service) CreateSubscription(ctx context.Context, scope Scope, plan string) (*model.Subscription, error) {
	if strings.TrimSpace(plan) == "" {
		return nil, ErrInvalidInput
	}
	now := s.now().UTC()
	sub := model.Subscription{
		ID:        ids.New(),
		UserID:    scope.PrincipalID,
		Plan:      plan,
		Status:    model.SubscriptionActive,
		StartedAt: now,
		ExpiresAt: now.AddDate(0, 1, 0),
	}
	if err := s.store.Subscriptions().Create(ctx, &sub); err != nil {
		return nil, err
	}
	s.publish(TableSubscriptions, feed.KindInsert, sub, sub.UserID)
	return &sub, nil
}

// Subscriptions lists the principal's plan history.
func (s *Service) Subscriptions(ctx context.Context, scope Scope) ([]model.Subscription, error) {
	return s.store.Subscriptions().ListByUser(ctx, scope.PrincipalID)
}
