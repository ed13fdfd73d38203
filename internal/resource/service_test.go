package resource

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/model"
)

func testService(t *testing.T) (*Service, *Memory, *feed.Feed) {
	t.Helper()
	mem := NewMemory()
	f := feed.New()
	svc := NewService(mem, f, WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	return svc, mem, f
}

func seedUser(t *testing.T, mem *Memory, role model.Role) model.User {
	t.Helper()
	u := model.User{
		ID:    string(role) + "-" + t.Name(),
		Email: string(role) + "@example.test",
		Name:  "Test " + string(role),
		Role:  role,
	}
	if err := mem.Users().CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestCreateProjectScopesOwnership(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	other := model.User{ID: "other-client", Email: "other@example.test", Role: model.RoleClient}
	if err := mem.Users().CreateUser(ctx, &other); err != nil {
		t.Fatalf("seed: %v", err)
	}

	created, err := svc.CreateProject(ctx, Scope{PrincipalID: client.ID, Role: model.RoleClient}, model.Project{
		Name:     "Lekki duplex",
		ClientID: other.ID, // must be overridden by the scope
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ClientID != client.ID {
		t.Fatalf("ClientID = %q, want scope principal %q", created.ClientID, client.ID)
	}
	if created.Status != model.ProjectPlanning {
		t.Fatalf("Status = %q, want planning default", created.Status)
	}

	// The other client must not see the row, in lists or by id.
	otherScope := Scope{PrincipalID: other.ID, Role: model.RoleClient}
	list, err := svc.Projects(ctx, otherScope)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("foreign scope sees %d projects, want 0", len(list))
	}
	got, err := svc.Project(ctx, otherScope, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("foreign scope resolved a hidden project")
	}
}

func TestRepeatedReadsReturnEqualSets(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	scope := Scope{PrincipalID: client.ID, Role: model.RoleClient}

	for _, name := range []string{"Phase one", "Phase two", "Phase three"} {
		if _, err := svc.CreateProject(ctx, scope, model.Project{Name: name}); err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
	}

	first, err := svc.Projects(ctx, scope)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := svc.Projects(ctx, scope)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reads diverged without writes:\nfirst  %+v\nsecond %+v", first, second)
	}

	// Mutating a returned slice must not leak into the store.
	first[0].Name = "tampered"
	third, err := svc.Projects(ctx, scope)
	if err != nil {
		t.Fatalf("third read: %v", err)
	}
	if third[0].Name == "tampered" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestSupervisorCannotCreateProject(t *testing.T) {
	svc, mem, _ := testService(t)
	sup := seedUser(t, mem, model.RoleSupervisor)
	_, err := svc.CreateProject(context.Background(), Scope{PrincipalID: sup.ID, Role: model.RoleSupervisor}, model.Project{Name: "x"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestProjectMissingIsNilNotError(t *testing.T) {
	svc, mem, _ := testService(t)
	admin := seedUser(t, mem, model.RoleAdmin)
	got, err := svc.Project(context.Background(), Scope{PrincipalID: admin.ID, Role: model.RoleAdmin}, "no-such-id")
	if err != nil {
		t.Fatalf("missing row must not be an error, got %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestCreateReportNotifiesClientAndPublishes(t *testing.T) {
	svc, mem, f := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	sup := seedUser(t, mem, model.RoleSupervisor)
	admin := seedUser(t, mem, model.RoleAdmin)

	project, err := svc.CreateProject(ctx, Scope{PrincipalID: admin.ID, Role: model.RoleAdmin}, model.Project{
		Name:         "Ikoyi tower",
		ClientID:     client.ID,
		SupervisorID: sup.ID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := f.Subscribe(subCtx, feed.Filter{Table: TableReports, OwnerID: client.ID})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	report, err := svc.CreateReport(ctx, Scope{PrincipalID: sup.ID, Role: model.RoleSupervisor}, model.SiteReport{
		ProjectID: project.ID,
		Kind:      model.ReportDaily,
		Title:     "Foundation poured",
		Progress:  10,
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != feed.KindInsert || ev.Table != TableReports {
			t.Fatalf("event = %+v, want insert on %s", ev, TableReports)
		}
	case <-time.After(time.Second):
		t.Fatal("client subscriber never received the report insert")
	}

	notes, err := svc.Notifications(ctx, Scope{PrincipalID: client.ID, Role: model.RoleClient})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != model.NotifyReport {
		t.Fatalf("notifications = %+v, want one report notification", notes)
	}
	if notes[0].Message != report.Title {
		t.Fatalf("notification message = %q, want report title", notes[0].Message)
	}
}

func TestDeleteProjectCascadesReports(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	sup := seedUser(t, mem, model.RoleSupervisor)
	admin := seedUser(t, mem, model.RoleAdmin)
	adminScope := Scope{PrincipalID: admin.ID, Role: model.RoleAdmin}

	doomed, err := svc.CreateProject(ctx, adminScope, model.Project{
		Name: "Yaba annex", ClientID: client.ID, SupervisorID: sup.ID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	kept, err := svc.CreateProject(ctx, adminScope, model.Project{
		Name: "Surulere mall", ClientID: client.ID, SupervisorID: sup.ID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	supScope := Scope{PrincipalID: sup.ID, Role: model.RoleSupervisor}
	for _, pid := range []string{doomed.ID, kept.ID} {
		if _, err := svc.CreateReport(ctx, supScope, model.SiteReport{
			ProjectID: pid, Kind: model.ReportDaily, Title: "Setting out", Progress: 5,
		}); err != nil {
			t.Fatalf("create report: %v", err)
		}
	}

	if err := svc.DeleteProject(ctx, adminScope, doomed.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	projects, err := svc.Projects(ctx, adminScope)
	if err != nil || len(projects) != 1 || projects[0].ID != kept.ID {
		t.Fatalf("projects after delete = (%+v, %v), want only the kept project", projects, err)
	}
	reports, err := mem.Reports().List(ctx, adminScope)
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if len(reports) != 1 || reports[0].ProjectID != kept.ID {
		t.Fatalf("reports after delete = %+v, want only the kept project's report", reports)
	}
}

func TestCreateReportForeignProjectForbidden(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	sup := seedUser(t, mem, model.RoleSupervisor)
	admin := seedUser(t, mem, model.RoleAdmin)

	project, err := svc.CreateProject(ctx, Scope{PrincipalID: admin.ID, Role: model.RoleAdmin}, model.Project{
		Name:         "Yaba site",
		ClientID:     client.ID,
		SupervisorID: "someone-else",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	_, err = svc.CreateReport(ctx, Scope{PrincipalID: sup.ID, Role: model.RoleSupervisor}, model.SiteReport{
		ProjectID: project.ID,
		Kind:      model.ReportDaily,
		Title:     "x",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestWithdrawalBalanceRule(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	scope := Scope{PrincipalID: client.ID, Role: model.RoleClient}

	if _, err := mem.Wallets().Ensure(ctx, client.ID, DefaultCurrency); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := mem.Wallets().Credit(ctx, client.ID, 10_000, "seed", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := svc.RequestWithdrawal(ctx, scope, 20_000)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	wallet, err := svc.Wallet(ctx, scope)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.Balance != 10_000 {
		t.Fatalf("failed withdrawal changed the balance: %d", wallet.Balance)
	}

	p, err := svc.RequestWithdrawal(ctx, scope, 4_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if p.Status != model.PaymentPending || p.Type != model.PaymentWithdrawal {
		t.Fatalf("payment = %+v, want pending withdrawal", p)
	}
	wallet, _ = svc.Wallet(ctx, scope)
	if wallet.Balance != 6_000 {
		t.Fatalf("balance = %d, want 6000", wallet.Balance)
	}
	txs, err := svc.WalletTransactions(ctx, scope)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) == 0 || txs[0].Amount != -4_000 {
		t.Fatalf("transactions = %+v, want leading -4000 debit", txs)
	}
}

func TestConfirmDepositCreditsWallet(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	scope := Scope{PrincipalID: client.ID, Role: model.RoleClient}

	p, err := svc.InitiatePayment(ctx, scope, 50_000, model.PaymentDeposit)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	confirmed, err := svc.ConfirmPayment(ctx, p.ID, "PSK-REF-123", true)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != model.PaymentCompleted || confirmed.Reference != "PSK-REF-123" {
		t.Fatalf("payment = %+v", confirmed)
	}
	wallet, err := svc.Wallet(ctx, scope)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.Balance != 50_000 {
		t.Fatalf("balance = %d, want 50000", wallet.Balance)
	}

	// Replaying the provider callback must not credit twice.
	if _, err := svc.ConfirmPayment(ctx, p.ID, "PSK-REF-123", true); err != nil {
		t.Fatalf("replay: %v", err)
	}
	wallet, _ = svc.Wallet(ctx, scope)
	if wallet.Balance != 50_000 {
		t.Fatalf("replayed callback changed balance: %d", wallet.Balance)
	}
}

func TestConcurrentConfirmsCreditOnce(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	scope := Scope{PrincipalID: client.ID, Role: model.RoleClient}

	p, err := svc.InitiatePayment(ctx, scope, 25_000, model.PaymentDeposit)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Pending check and status write share the store lock, so exactly one
	// of these callbacks settles the row and credits the wallet.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ConfirmPayment(ctx, p.ID, "PSK-REF-777", true); err != nil {
				t.Errorf("confirm: %v", err)
			}
		}()
	}
	wg.Wait()

	wallet, err := svc.Wallet(ctx, scope)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.Balance != 25_000 {
		t.Fatalf("balance = %d, want a single 25000 credit", wallet.Balance)
	}
}

func TestConfirmFailedPaymentDoesNotCredit(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	scope := Scope{PrincipalID: client.ID, Role: model.RoleClient}

	p, err := svc.InitiatePayment(ctx, scope, 5_000, model.PaymentDeposit)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	confirmed, err := svc.ConfirmPayment(ctx, p.ID, "PSK-REF-999", false)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != model.PaymentFailed {
		t.Fatalf("status = %q, want failed", confirmed.Status)
	}
	wallet, err := svc.Wallet(ctx, scope)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.Balance != 0 {
		t.Fatalf("failed payment credited wallet: %d", wallet.Balance)
	}
}

func TestReportApprovalReservedForAdmins(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	sup := seedUser(t, mem, model.RoleSupervisor)
	admin := seedUser(t, mem, model.RoleAdmin)

	project, _ := svc.CreateProject(ctx, Scope{PrincipalID: admin.ID, Role: model.RoleAdmin}, model.Project{
		Name: "Ajah estate", ClientID: client.ID, SupervisorID: sup.ID,
	})
	report, err := svc.CreateReport(ctx, Scope{PrincipalID: sup.ID, Role: model.RoleSupervisor}, model.SiteReport{
		ProjectID: project.ID, Kind: model.ReportWeekly, Title: "Week 1",
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	approved := model.ApprovalApproved
	_, err = svc.UpdateReport(ctx, Scope{PrincipalID: sup.ID, Role: model.RoleSupervisor}, report.ID, model.ReportPatch{Approval: &approved})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("supervisor approval err = %v, want ErrForbidden", err)
	}

	updated, err := svc.UpdateReport(ctx, Scope{PrincipalID: admin.ID, Role: model.RoleAdmin}, report.ID, model.ReportPatch{Approval: &approved})
	if err != nil {
		t.Fatalf("admin approval: %v", err)
	}
	if updated.Approval != model.ApprovalApproved {
		t.Fatalf("approval = %q", updated.Approval)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	client := seedUser(t, mem, model.RoleClient)
	scope := Scope{PrincipalID: client.ID, Role: model.RoleClient}

	svc.Notify(ctx, client.ID, "a", "", model.NotifyInfo)
	svc.Notify(ctx, client.ID, "b", "", model.NotifyInfo)

	count, err := svc.MarkAllNotificationsRead(ctx, scope)
	if err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	count, err = svc.MarkAllNotificationsRead(ctx, scope)
	if err != nil || count != 0 {
		t.Fatalf("second pass = (%d, %v), want (0, nil)", count, err)
	}
}

func TestMarkNotificationReadScopedToOwner(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()
	owner := seedUser(t, mem, model.RoleClient)
	stranger := model.User{ID: "stranger", Email: "stranger@example.test", Role: model.RoleClient}
	if err := mem.Users().CreateUser(ctx, &stranger); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc.Notify(ctx, owner.ID, "inspection due", "", model.NotifyInfo)
	items, err := svc.Notifications(ctx, Scope{PrincipalID: owner.ID, Role: model.RoleClient})
	if err != nil || len(items) != 1 {
		t.Fatalf("owner list = (%v, %v)", items, err)
	}
	id := items[0].ID

	// A foreign principal's attempt must not persist the flag.
	_, err = svc.MarkNotificationRead(ctx, Scope{PrincipalID: stranger.ID, Role: model.RoleClient}, id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign mark err = %v, want ErrNotFound", err)
	}
	got, err := mem.Notifications().List(ctx, owner.ID)
	if err != nil || len(got) != 1 {
		t.Fatalf("list after foreign mark: (%v, %v)", got, err)
	}
	if got[0].Read {
		t.Fatal("foreign principal's rejected mark persisted the read flag")
	}

	// The owner flips it; an admin could flip anyone's.
	n, err := svc.MarkNotificationRead(ctx, Scope{PrincipalID: owner.ID, Role: model.RoleClient}, id)
	if err != nil || !n.Read {
		t.Fatalf("owner mark = (%+v, %v)", n, err)
	}
}

func TestPreferencesDefaultBeforeFirstSave(t *testing.T) {
	svc, mem, _ := testService(t)
	client := seedUser(t, mem, model.RoleClient)
	scope := Scope{PrincipalID: client.ID, Role: model.RoleClient}

	prefs, err := svc.Preferences(context.Background(), scope)
	if err != nil {
		t.Fatalf("preferences: %v", err)
	}
	if !prefs.EmailAlerts || prefs.SMSAlerts {
		t.Fatalf("defaults = %+v, want email on, sms off", prefs)
	}

	on := true
	saved, err := svc.UpdatePreferences(context.Background(), scope, model.PreferencesPatch{SMSAlerts: &on})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !saved.SMSAlerts || !saved.EmailAlerts {
		t.Fatalf("saved = %+v", saved)
	}
}
