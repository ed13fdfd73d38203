// Package resource is the typed access layer between dashboard views and
// the backing store. One method per (entity, operation) pair; each issues a
// single store call, applies the role-appropriate ownership filter, and
// normalizes the result.
package resource

import (
	"context"
	"errors"

	"sitevisor.org/internal/model"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// Scope identifies the principal a read or write is performed for. The role
// selects which ownership filter the store applies: clients filter by
// client reference, supervisors by supervisor reference, admins see all
// rows. Filters are enforced inside the store queries, never left to
// callers.
type Scope struct {
	PrincipalID string
	Role        model.Role
}

// Admin reports whether the scope bypasses ownership filters.
func (s Scope) Admin() bool { return s.Role == model.RoleAdmin }

// Store aggregates per-entity persistence. Both the in-memory store and the
// Postgres store implement it.
type Store interface {
	Users() UserStore
	Projects() ProjectStore
	Reports() ReportStore
	Payments() PaymentStore
	Wallets() WalletStore
	Notifications() NotificationStore
	Preferences() PreferenceStore
	Subscriptions() SubscriptionStore
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
}

type ProjectStore interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context, scope Scope) ([]model.Project, error)
	Update(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	Delete(ctx context.Context, id string) error
}

type ReportStore interface {
	Create(ctx context.Context, r *model.SiteReport) error
	Get(ctx context.Context, id string) (*model.SiteReport, error)
	// List scopes by role: supervisors get their own reports, clients get
	// reports for projects they own, admins get everything.
	List(ctx context.Context, scope Scope) ([]model.SiteReport, error)
	ListByProject(ctx context.Context, projectID string) ([]model.SiteReport, error)
	Update(ctx context.Context, id string, patch model.ReportPatch) (*model.SiteReport, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	Get(ctx context.Context, id string) (*model.Payment, error)
	List(ctx context.Context, scope Scope) ([]model.Payment, error)
	// Settle applies the provider outcome to a pending payment. The
	// pending check and the write share one lock, so concurrent callback
	// replays cannot both observe pending; an already-terminal payment
	// comes back unchanged with settled=false.
	Settle(ctx context.Context, id string, patch model.PaymentPatch) (p *model.Payment, settled bool, err error)
}

type WalletStore interface {
	// Ensure returns the wallet for the user, creating an empty one on
	// first touch.
	Ensure(ctx context.Context, userID, currency string) (*model.Wallet, error)
	Get(ctx context.Context, userID string) (*model.Wallet, error)
	Credit(ctx context.Context, userID string, amount int64, memo, paymentID string) (*model.Wallet, error)
	// Debit fails with ErrInsufficientBalance without changing the wallet.
	Debit(ctx context.Context, userID string, amount int64, memo, paymentID string) (*model.Wallet, error)
	Transactions(ctx context.Context, userID string) ([]model.WalletTransaction, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, userID string) ([]model.Notification, error)
	// MarkRead flips one read flag. A non-empty ownerID restricts the
	// write to rows owned by that principal; rows outside the filter are
	// ErrNotFound and stay untouched.
	MarkRead(ctx context.Context, id, ownerID string) (*model.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*model.UserPreferences, error)
	Upsert(ctx context.Context, userID string, patch model.PreferencesPatch) (*model.UserPreferences, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, s *model.Subscription) error
	ListByUser(ctx context.Context, userID string) ([]model.Subscription, error)
}
