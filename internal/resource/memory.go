package resource

import (
	"context"
	"sync"
	"time"

	"sitevisor.org/internal/ids"
	"sitevisor.org/internal/model"
)

// Memory implements Store with in-process concurrency safety. It backs the
// dev server and the test suite; production deployments use the Postgres
// store.
type Memory struct {
	mu sync.RWMutex

	users        map[string]*model.User
	usersByEmail map[string]string

	projects     map[string]*model.Project
	projectOrder []string

	reports     map[string]*model.SiteReport
	reportOrder []string

	payments     map[string]*model.Payment
	paymentOrder []string

	wallets   map[string]*model.Wallet
	walletTxs map[string][]model.WalletTransaction

	notifications map[string]*model.Notification
	notifOrder    []string

	prefs map[string]*model.UserPreferences
	subs  map[string][]model.Subscription

	now func() time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]*model.User),
		usersByEmail:  make(map[string]string),
		projects:      make(map[string]*model.Project),
		reports:       make(map[string]*model.SiteReport),
		payments:      make(map[string]*model.Payment),
		wallets:       make(map[string]*model.Wallet),
		walletTxs:     make(map[string][]model.WalletTransaction),
		notifications: make(map[string]*model.Notification),
		prefs:         make(map[string]*model.UserPreferences),
		subs:          make(map[string][]model.Subscription),
		now:           time.Now,
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Users() UserStore                 { return memUsers{m} }
func (m *Memory) Projects() ProjectStore           { return memProjects{m} }
func (m *Memory) Reports() ReportStore             { return memReports{m} }
func (m *Memory) Payments() PaymentStore           { return memPayments{m} }
func (m *Memory) Wallets() WalletStore             { return memWallets{m} }
func (m *Memory) Notifications() NotificationStore { return memNotifications{m} }
func (m *Memory) Preferences() PreferenceStore     { return memPrefs{m} }
func (m *Memory) Subscriptions() SubscriptionStore { return memSubs{m} }

// Users ---------------------------------------------------------------

type memUsers struct{ m *Memory }

func (s memUsers) CreateUser(_ context.Context, u *model.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, taken := s.m.usersByEmail[u.Email]; taken {
		return ErrInvalidInput
	}
	cp := *u
	s.m.users[u.ID] = &cp
	s.m.usersByEmail[u.Email] = u.ID
	return nil
}

func (s memUsers) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.usersByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.m.users[id]
	return &cp, nil
}

func (s memUsers) UserByID(_ context.Context, id string) (*model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) UpdateUser(_ context.Context, id string, patch model.UserPatch) (*model.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := patch.Apply(*u)
	next.UpdatedAt = s.m.now().UTC()
	s.m.users[id] = &next
	cp := next
	return &cp, nil
}

// Projects ------------------------------------------------------------

type memProjects struct{ m *Memory }

func (s memProjects) Create(_ context.Context, p *model.Project) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *p
	s.m.projects[p.ID] = &cp
	s.m.projectOrder = append(s.m.projectOrder, p.ID)
	return nil
}

func (s memProjects) Get(_ context.Context, id string) (*model.Project, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s memProjects) List(_ context.Context, scope Scope) ([]model.Project, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.Project
	for i := len(s.m.projectOrder) - 1; i >= 0; i-- {
		p, ok := s.m.projects[s.m.projectOrder[i]]
		if !ok {
			continue
		}
		if !projectVisible(*p, scope) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func projectVisible(p model.Project, scope Scope) bool {
	switch scope.Role {
	case model.RoleClient:
		return p.ClientID == scope.PrincipalID
	case model.RoleSupervisor:
		return p.SupervisorID == scope.PrincipalID
	case model.RoleAdmin:
		return true
	}
	return false
}

func (s memProjects) Update(_ context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := patch.Apply(*p)
	next.UpdatedAt = s.m.now().UTC()
	s.m.projects[id] = &next
	cp := next
	return &cp, nil
}

func (s memProjects) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.projects, id)
	for i, pid := range s.m.projectOrder {
		if pid == id {
			s.m.projectOrder = append(s.m.projectOrder[:i], s.m.projectOrder[i+1:]...)
			break
		}
	}
	// Reports cascade with their project, matching the SQL schema.
	kept := s.m.reportOrder[:0]
	for _, rid := range s.m.reportOrder {
		r, ok := s.m.reports[rid]
		if ok && r.ProjectID == id {
			delete(s.m.reports, rid)
			continue
		}
		kept = append(kept, rid)
	}
	s.m.reportOrder = kept
	return nil
}

// Reports -------------------------------------------------------------

type memReports struct{ m *Memory }

func (s memReports) Create(_ context.Context, r *model.SiteReport) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := cloneReport(*r)
	s.m.reports[r.ID] = &cp
	s.m.reportOrder = append(s.m.reportOrder, r.ID)
	return nil
}

func (s memReports) Get(_ context.Context, id string) (*model.SiteReport, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	r, ok := s.m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneReport(*r)
	return &cp, nil
}

func (s memReports) List(_ context.Context, scope Scope) ([]model.SiteReport, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.SiteReport
	for i := len(s.m.reportOrder) - 1; i >= 0; i-- {
		r, ok := s.m.reports[s.m.reportOrder[i]]
		if !ok {
			continue
		}
		if !s.visible(*r, scope) {
			continue
		}
		out = append(out, cloneReport(*r))
	}
	return out, nil
}

func (s memReports) visible(r model.SiteReport, scope Scope) bool {
	switch scope.Role {
	case model.RoleSupervisor:
		return r.SupervisorID == scope.PrincipalID
	case model.RoleClient:
		p, ok := s.m.projects[r.ProjectID]
		return ok && p.ClientID == scope.PrincipalID
	case model.RoleAdmin:
		return true
	}
	return false
}

func (s memReports) ListByProject(_ context.Context, projectID string) ([]model.SiteReport, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.SiteReport
	for i := len(s.m.reportOrder) - 1; i >= 0; i-- {
		r, ok := s.m.reports[s.m.reportOrder[i]]
		if !ok || r.ProjectID != projectID {
			continue
		}
		out = append(out, cloneReport(*r))
	}
	return out, nil
}

func (s memReports) Update(_ context.Context, id string, patch model.ReportPatch) (*model.SiteReport, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := patch.Apply(cloneReport(*r))
	next.UpdatedAt = s.m.now().UTC()
	s.m.reports[id] = &next
	cp := cloneReport(next)
	return &cp, nil
}

func cloneReport(r model.SiteReport) model.SiteReport {
	r.MediaPaths = append([]string(nil), r.MediaPaths...)
	r.Issues = append([]string(nil), r.Issues...)
	return r
}

// Payments ------------------------------------------------------------

type memPayments struct{ m *Memory }

func (s memPayments) Create(_ context.Context, p *model.Payment) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *p
	s.m.payments[p.ID] = &cp
	s.m.paymentOrder = append(s.m.paymentOrder, p.ID)
	return nil
}

func (s memPayments) Get(_ context.Context, id string) (*model.Payment, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s memPayments) List(_ context.Context, scope Scope) ([]model.Payment, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.Payment
	for i := len(s.m.paymentOrder) - 1; i >= 0; i-- {
		p, ok := s.m.payments[s.m.paymentOrder[i]]
		if !ok {
			continue
		}
		if !scope.Admin() && p.UserID != scope.PrincipalID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s memPayments) Settle(_ context.Context, id string, patch model.PaymentPatch) (*model.Payment, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payments[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if p.Status != model.PaymentPending {
		cp := *p
		return &cp, false, nil
	}
	next := patch.Apply(*p)
	next.UpdatedAt = s.m.now().UTC()
	s.m.payments[id] = &next
	cp := next
	return &cp, true, nil
}

// Wallets -------------------------------------------------------------

type memWallets struct{ m *Memory }

func (s memWallets) Ensure(_ context.Context, userID, currency string) (*model.Wallet, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.ensureLocked(userID, currency), nil
}

func (s memWallets) ensureLocked(userID, currency string) *model.Wallet {
	if w, ok := s.m.wallets[userID]; ok {
		cp := *w
		return &cp
	}
	w := &model.Wallet{
		ID:        ids.New(),
		UserID:    userID,
		Currency:  currency,
		UpdatedAt: s.m.now().UTC(),
	}
	s.m.wallets[userID] = w
	cp := *w
	return &cp
}

func (s memWallets) Get(_ context.Context, userID string) (*model.Wallet, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	w, ok := s.m.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s memWallets) Credit(_ context.Context, userID string, amount int64, memo, paymentID string) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.ensureLocked(userID, DefaultCurrency)
	w := s.m.wallets[userID]
	w.Balance += amount
	w.UpdatedAt = s.m.now().UTC()
	s.appendTxLocked(userID, amount, memo, paymentID)
	cp := *w
	return &cp, nil
}

func (s memWallets) Debit(_ context.Context, userID string, amount int64, memo, paymentID string) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	w, ok := s.m.wallets[userID]
	if !ok || w.Balance < amount {
		return nil, ErrInsufficientBalance
	}
	w.Balance -= amount
	w.UpdatedAt = s.m.now().UTC()
	s.appendTxLocked(userID, -amount, memo, paymentID)
	cp := *w
	return &cp, nil
}

func (s memWallets) appendTxLocked(userID string, amount int64, memo, paymentID string) {
	tx := model.WalletTransaction{
		ID:        ids.New(),
		UserID:    userID,
		Amount:    amount,
		Memo:      memo,
		PaymentID: paymentID,
		CreatedAt: s.m.now().UTC(),
	}
	s.m.walletTxs[userID] = append([]model.WalletTransaction{tx}, s.m.walletTxs[userID]...)
}

func (s memWallets) Transactions(_ context.Context, userID string) ([]model.WalletTransaction, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return append([]model.WalletTransaction(nil), s.m.walletTxs[userID]...), nil
}

// Notifications -------------------------------------------------------

type memNotifications struct{ m *Memory }

func (s memNotifications) Create(_ context.Context, n *model.Notification) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *n
	s.m.notifications[n.ID] = &cp
	s.m.notifOrder = append(s.m.notifOrder, n.ID)
	return nil
}

func (s memNotifications) List(_ context.Context, userID string) ([]model.Notification, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.Notification
	for i := len(s.m.notifOrder) - 1; i >= 0; i-- {
		n, ok := s.m.notifications[s.m.notifOrder[i]]
		if !ok || n.UserID != userID {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (s memNotifications) MarkRead(_ context.Context, id, ownerID string) (*model.Notification, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n, ok := s.m.notifications[id]
	if !ok || (ownerID != "" && n.UserID != ownerID) {
		return nil, ErrNotFound
	}
	n.Read = true
	cp := *n
	return &cp, nil
}

func (s memNotifications) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	count := 0
	for _, n := range s.m.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

// Preferences ---------------------------------------------------------

type memPrefs struct{ m *Memory }

func (s memPrefs) Get(_ context.Context, userID string) (*model.UserPreferences, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s memPrefs) Upsert(_ context.Context, userID string, patch model.PreferencesPatch) (*model.UserPreferences, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	base := model.UserPreferences{UserID: userID, EmailAlerts: true}
	if p, ok := s.m.prefs[userID]; ok {
		base = *p
	}
	next := patch.Apply(base)
	next.UpdatedAt = s.m.now().UTC()
	s.m.prefs[userID] = &next
	cp := next
	return &cp, nil
}

// Subscriptions -------------------------------------------------------

type memSubs struct{ m *Memory }

func (s memSubs) Create(_ context.Context, sub *model.Subscription) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.subs[sub.UserID] = append([]model.Subscription{*sub}, s.m.subs[sub.UserID]...)
	return nil
}

func (s memSubs) ListByUser(_ context.Context, userID string) ([]model.Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return append([]model.Subscription(nil), s.m.subs[userID]...), nil
}
