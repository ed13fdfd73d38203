package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sitevisor.org/internal/model"
	"sitevisor.org/internal/resource"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestProjectListFiltersByClient(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "client_id", "supervisor_id", "status",
		"budget", "spent", "start_date", "end_date", "location", "created_at", "updated_at",
	}).AddRow("p1", "Lekki duplex", "", "c1", "s1", "active", 1000, 0, now, now, "Lagos", now, now)

	mock.ExpectQuery("select .* from projects where client_id=\\$1 order by created_at desc").
		WithArgs("c1").
		WillReturnRows(rows)

	got, err := store.Projects().List(context.Background(), resource.Scope{PrincipalID: "c1", Role: model.RoleClient})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" || got[0].ClientID != "c1" {
		t.Fatalf("got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProjectListAdminUnfiltered(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .* from projects order by created_at desc").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "client_id", "supervisor_id", "status",
			"budget", "spent", "start_date", "end_date", "location", "created_at", "updated_at",
		}))

	if _, err := store.Projects().List(context.Background(), resource.Scope{PrincipalID: "a1", Role: model.RoleAdmin}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .* from users where id=\\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "password_hash", "name", "role", "avatar_path", "created_at", "updated_at",
		}))

	_, err := store.Users().UserByID(context.Background(), "ghost")
	if !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if merr := mock.ExpectationsWereMet(); merr != nil {
		t.Fatalf("unmet expectations: %v", merr)
	}
}

func TestWalletDebitInsufficientRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from wallets where user_id=\\$1 for update").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "currency", "updated_at"}).
			AddRow("w1", "u1", int64(100), "NGN", now))
	mock.ExpectRollback()

	_, err := store.Wallets().Debit(context.Background(), "u1", 500, "withdrawal", "p1")
	if !errors.Is(err, resource.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if merr := mock.ExpectationsWereMet(); merr != nil {
		t.Fatalf("unmet expectations: %v", merr)
	}
}

func TestWalletCreditRecordsTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from wallets where user_id=\\$1 for update").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "currency", "updated_at"}).
			AddRow("w1", "u1", int64(100), "NGN", now))
	mock.ExpectExec("update wallets set balance=\\$2").
		WithArgs("u1", int64(600), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into wallet_transactions").
		WithArgs(sqlmock.AnyArg(), "u1", int64(500), "deposit", "p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w, err := store.Wallets().Credit(context.Background(), "u1", 500, "deposit", "p1")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if w.Balance != 600 {
		t.Fatalf("balance = %d, want 600", w.Balance)
	}
	if merr := mock.ExpectationsWereMet(); merr != nil {
		t.Fatalf("unmet expectations: %v", merr)
	}
}

func TestMarkAllReadCountsRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update notifications set read=true where user_id=\\$1 and read=false").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Notifications().MarkAllRead(context.Background(), "u1")
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	if merr := mock.ExpectationsWereMet(); merr != nil {
		t.Fatalf("unmet expectations: %v", merr)
	}
}

func TestPaymentSettleAppliesPatchWhilePending(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from payments where id=\\$1 for update").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "amount", "currency", "status", "type", "reference", "created_at", "updated_at",
		}).AddRow("p1", "u1", int64(5000), "NGN", "pending", "deposit", "", now, now))
	mock.ExpectExec("update payments set status=\\$2, reference=\\$3").
		WithArgs("p1", "completed", "REF-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status := model.PaymentCompleted
	ref := "REF-9"
	p, settled, err := store.Payments().Settle(context.Background(), "p1", model.PaymentPatch{Status: &status, Reference: &ref})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !settled {
		t.Fatal("pending payment must settle")
	}
	if p.Status != model.PaymentCompleted || p.Reference != "REF-9" {
		t.Fatalf("payment = %+v", p)
	}
	if merr := mock.ExpectationsWereMet(); merr != nil {
		t.Fatalf("unmet expectations: %v", merr)
	}
}

func TestPaymentSettleSkipsTerminalRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	// The row is already terminal when the lock is acquired; no update
	// statement may run.
	mock.ExpectBegin()
	mock.ExpectQuery("select .* from payments where id=\\$1 for update").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "amount", "currency", "status", "type", "reference", "created_at", "updated_at",
		}).AddRow("p1", "u1", int64(5000), "NGN", "completed", "deposit", "REF-1", now, now))
	mock.ExpectCommit()

	status := model.PaymentCompleted
	ref := "REF-2"
	p, settled, err := store.Payments().Settle(context.Background(), "p1", model.PaymentPatch{Status: &status, Reference: &ref})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled {
		t.Fatal("terminal payment must not settle again")
	}
	if p.Reference != "REF-1" {
		t.Fatalf("reference = %q, want the original REF-1", p.Reference)
	}
	if merr := mock.ExpectationsWereMet(); merr != nil {
		t.Fatalf("unmet expectations: %v", merr)
	}
}
