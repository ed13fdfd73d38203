// Package pg implements the resource store on Postgres. Ownership filters
// live inside the queries; a caller cannot widen its scope by choosing a
// different filter.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sitevisor.org/internal/ids"
	"sitevisor.org/internal/model"
	"sitevisor.org/internal/resource"
)

type Store struct {
	db *sql.DB
}

var _ resource.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; tests pass sqlmock through here.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() resource.UserStore                 { return pgUsers{s.db} }
func (s *Store) Projects() resource.ProjectStore           { return pgProjects{s.db} }
func (s *Store) Reports() resource.ReportStore             { return pgReports{s.db} }
func (s *Store) Payments() resource.PaymentStore           { return pgPayments{s.db} }
func (s *Store) Wallets() resource.WalletStore             { return pgWallets{s.db} }
func (s *Store) Notifications() resource.NotificationStore { return pgNotifications{s.db} }
func (s *Store) Preferences() resource.PreferenceStore     { return pgPrefs{s.db} }
func (s *Store) Subscriptions() resource.SubscriptionStore { return pgSubs{s.db} }

// Users ---------------------------------------------------------------

type pgUsers struct{ db *sql.DB }

func (s pgUsers) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, email, password_hash, name, role, avatar_path, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.AvatarPath, u.CreatedAt, u.UpdatedAt)
	return err
}

const userColumns = `id, email, password_hash, name, role, avatar_path, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.AvatarPath, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s pgUsers) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email))
}

func (s pgUsers) UserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id))
}

func (s pgUsers) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var u model.User
	err = tx.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1 for update`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.AvatarPath, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u = patch.Apply(u)
	u.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update users set name=$2, avatar_path=$3, updated_at=$4 where id=$1
	`, u.ID, u.Name, u.AvatarPath, u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &u, nil
}

// Projects ------------------------------------------------------------

type pgProjects struct{ db *sql.DB }

const projectColumns = `id, name, description, client_id, supervisor_id, status, budget, spent, start_date, end_date, location, created_at, updated_at`

func (s pgProjects) Create(ctx context.Context, p *model.Project) error {
	_, err := s.db.ExecContext(ctx, `
		insert into projects(`+projectColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, p.ID, p.Name, p.Description, p.ClientID, p.SupervisorID, p.Status,
		p.Budget, p.Spent, p.StartDate, p.EndDate, p.Location, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanProject(sc interface{ Scan(...any) error }) (*model.Project, error) {
	var p model.Project
	err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.ClientID, &p.SupervisorID, &p.Status,
		&p.Budget, &p.Spent, &p.StartDate, &p.EndDate, &p.Location, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s pgProjects) Get(ctx context.Context, id string) (*model.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `select `+projectColumns+` from projects where id=$1`, id))
}

func (s pgProjects) List(ctx context.Context, scope resource.Scope) ([]model.Project, error) {
	q := `select ` + projectColumns + ` from projects`
	var args []any
	switch scope.Role {
	case model.RoleClient:
		q += ` where client_id=$1`
		args = append(args, scope.PrincipalID)
	case model.RoleSupervisor:
		q += ` where supervisor_id=$1`
		args = append(args, scope.PrincipalID)
	case model.RoleAdmin:
	default:
		return nil, resource.ErrForbidden
	}
	q += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s pgProjects) Update(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProject(tx.QueryRowContext(ctx, `select `+projectColumns+` from projects where id=$1 for update`, id))
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(*p)
	updated.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update projects
		set name=$2, description=$3, supervisor_id=$4, status=$5, budget=$6, spent=$7,
		    start_date=$8, end_date=$9, location=$10, updated_at=$11
		where id=$1
	`, updated.ID, updated.Name, updated.Description, updated.SupervisorID, updated.Status,
		updated.Budget, updated.Spent, updated.StartDate, updated.EndDate, updated.Location, updated.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s pgProjects) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return resource.ErrNotFound
	}
	return nil
}

// Reports -------------------------------------------------------------

type pgReports struct{ db *sql.DB }

const reportColumns = `id, project_id, supervisor_id, kind, title, summary, media_paths, progress, issues, approval, created_at, updated_at`

func (s pgReports) Create(ctx context.Context, r *model.SiteReport) error {
	media, err := json.Marshal(r.MediaPaths)
	if err != nil {
		return err
	}
	issues, err := json.Marshal(r.Issues)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into site_reports(`+reportColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, r.ID, r.ProjectID, r.SupervisorID, r.Kind, r.Title, r.Summary,
		media, r.Progress, issues, r.Approval, r.CreatedAt, r.UpdatedAt)
	return err
}

func scanReport(sc interface{ Scan(...any) error }) (*model.SiteReport, error) {
	var r model.SiteReport
	var media, issues []byte
	err := sc.Scan(&r.ID, &r.ProjectID, &r.SupervisorID, &r.Kind, &r.Title, &r.Summary,
		&media, &r.Progress, &issues, &r.Approval, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &r.MediaPaths); err != nil {
			return nil, err
		}
	}
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &r.Issues); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (s pgReports) Get(ctx context.Context, id string) (*model.SiteReport, error) {
	return scanReport(s.db.QueryRowContext(ctx, `select `+reportColumns+` from site_reports where id=$1`, id))
}

func (s pgReports) List(ctx context.Context, scope resource.Scope) ([]model.SiteReport, error) {
	q := `select ` + reportColumns + ` from site_reports`
	var args []any
	switch scope.Role {
	case model.RoleSupervisor:
		q += ` where supervisor_id=$1`
		args = append(args, scope.PrincipalID)
	case model.RoleClient:
		// Clients see reports through the projects they own.
		q = `select ` + reportJoinColumns + `
			from site_reports r
			join projects p on p.id = r.project_id
			where p.client_id=$1 order by r.created_at desc`
		args = append(args, scope.PrincipalID)
	case model.RoleAdmin:
		q += ` order by created_at desc`
	default:
		return nil, resource.ErrForbidden
	}
	if scope.Role == model.RoleSupervisor {
		q += ` order by created_at desc`
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

const reportJoinColumns = `r.id, r.project_id, r.supervisor_id, r.kind, r.title, r.summary, r.media_paths, r.progress, r.issues, r.approval, r.created_at, r.updated_at`

func (s pgReports) ListByProject(ctx context.Context, projectID string) ([]model.SiteReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+reportColumns+` from site_reports where project_id=$1 order by created_at desc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]model.SiteReport, error) {
	var out []model.SiteReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s pgReports) Update(ctx context.Context, id string, patch model.ReportPatch) (*model.SiteReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanReport(tx.QueryRowContext(ctx, `select `+reportColumns+` from site_reports where id=$1 for update`, id))
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(*r)
	updated.UpdatedAt = time.Now().UTC()
	media, err := json.Marshal(updated.MediaPaths)
	if err != nil {
		return nil, err
	}
	issues, err := json.Marshal(updated.Issues)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		update site_reports
		set title=$2, summary=$3, media_paths=$4, progress=$5, issues=$6, approval=$7, updated_at=$8
		where id=$1
	`, updated.ID, updated.Title, updated.Summary, media, updated.Progress, issues, updated.Approval, updated.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Payments ------------------------------------------------------------

type pgPayments struct{ db *sql.DB }

const paymentColumns = `id, user_id, amount, currency, status, type, reference, created_at, updated_at`

func (s pgPayments) Create(ctx context.Context, p *model.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into payments(`+paymentColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.UserID, p.Amount, p.Currency, p.Status, p.Type, p.Reference, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanPayment(sc interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	err := sc.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Status, &p.Type, &p.Reference, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s pgPayments) Get(ctx context.Context, id string) (*model.Payment, error) {
	return scanPayment(s.db.QueryRowContext(ctx, `select `+paymentColumns+` from payments where id=$1`, id))
}

func (s pgPayments) List(ctx context.Context, scope resource.Scope) ([]model.Payment, error) {
	q := `select ` + paymentColumns + ` from payments`
	var args []any
	if !scope.Admin() {
		q += ` where user_id=$1`
		args = append(args, scope.PrincipalID)
	}
	q += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s pgPayments) Settle(ctx context.Context, id string, patch model.PaymentPatch) (*model.Payment, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPayment(tx.QueryRowContext(ctx, `select `+paymentColumns+` from payments where id=$1 for update`, id))
	if err != nil {
		return nil, false, err
	}
	if p.Status != model.PaymentPending {
		// A racing callback already settled this row while we waited on
		// the lock; hand back what it wrote.
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		return p, false, nil
	}
	updated := patch.Apply(*p)
	updated.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update payments set status=$2, reference=$3, updated_at=$4 where id=$1
	`, updated.ID, updated.Status, updated.Reference, updated.UpdatedAt); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &updated, true, nil
}

// Wallets -------------------------------------------------------------

type pgWallets struct{ db *sql.DB }

const walletColumns = `id, user_id, balance, currency, updated_at`

func (s pgWallets) Ensure(ctx context.Context, userID, currency string) (*model.Wallet, error) {
	_, err := s.db.ExecContext(ctx, `
		insert into wallets(id, user_id, balance, currency, updated_at)
		values ($1,$2,0,$3,now())
		on conflict (user_id) do nothing
	`, ids.New(), userID, currency)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s pgWallets) Get(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	err := s.db.QueryRowContext(ctx, `select `+walletColumns+` from wallets where user_id=$1`, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s pgWallets) Credit(ctx context.Context, userID string, amount int64, memo, paymentID string) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, resource.ErrInvalidInput
	}
	return s.move(ctx, userID, amount, memo, paymentID)
}

func (s pgWallets) Debit(ctx context.Context, userID string, amount int64, memo, paymentID string) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, resource.ErrInvalidInput
	}
	return s.move(ctx, userID, -amount, memo, paymentID)
}

// move applies one signed balance change under a row lock and records the
// transaction in the same database transaction.
func (s pgWallets) move(ctx context.Context, userID string, delta int64, memo, paymentID string) (*model.Wallet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var w model.Wallet
	err = tx.QueryRowContext(ctx, `select `+walletColumns+` from wallets where user_id=$1 for update`, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if delta < 0 {
			return nil, resource.ErrInsufficientBalance
		}
		w = model.Wallet{ID: ids.New(), UserID: userID, Currency: resource.DefaultCurrency}
		if _, err := tx.ExecContext(ctx, `
			insert into wallets(id, user_id, balance, currency, updated_at) values ($1,$2,0,$3,now())
		`, w.ID, w.UserID, w.Currency); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if w.Balance+delta < 0 {
		return nil, resource.ErrInsufficientBalance
	}
	w.Balance += delta
	w.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update wallets set balance=$2, updated_at=$3 where user_id=$1
	`, userID, w.Balance, w.UpdatedAt); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into wallet_transactions(id, user_id, amount, memo, payment_id, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, ids.New(), userID, delta, memo, paymentID, w.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s pgWallets) Transactions(ctx context.Context, userID string) ([]model.WalletTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, amount, memo, payment_id, created_at
		from wallet_transactions where user_id=$1 order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WalletTransaction
	for rows.Next() {
		var t model.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Memo, &t.PaymentID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Notifications -------------------------------------------------------

type pgNotifications struct{ db *sql.DB }

const notificationColumns = `id, user_id, title, message, type, read, created_at`

func (s pgNotifications) Create(ctx context.Context, n *model.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		insert into notifications(`+notificationColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, n.ID, n.UserID, n.Title, n.Message, n.Type, n.Read, n.CreatedAt)
	return err
}

func (s pgNotifications) List(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+notificationColumns+` from notifications where user_id=$1 order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s pgNotifications) MarkRead(ctx context.Context, id, ownerID string) (*model.Notification, error) {
	var n model.Notification
	err := s.db.QueryRowContext(ctx, `
		update notifications set read=true where id=$1 and ($2 = '' or user_id=$2)
		returning `+notificationColumns+`
	`, id, ownerID).Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s pgNotifications) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		update notifications set read=true where user_id=$1 and read=false
	`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Preferences ---------------------------------------------------------

type pgPrefs struct{ db *sql.DB }

func (s pgPrefs) Get(ctx context.Context, userID string) (*model.UserPreferences, error) {
	var p model.UserPreferences
	err := s.db.QueryRowContext(ctx, `
		select user_id, email_alerts, sms_alerts, report_digest, updated_at
		from user_preferences where user_id=$1
	`, userID).Scan(&p.UserID, &p.EmailAlerts, &p.SMSAlerts, &p.ReportDigest, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s pgPrefs) Upsert(ctx context.Context, userID string, patch model.PreferencesPatch) (*model.UserPreferences, error) {
	base := model.UserPreferences{UserID: userID, EmailAlerts: true}
	if existing, err := s.Get(ctx, userID); err == nil {
		base = *existing
	} else if !errors.Is(err, resource.ErrNotFound) {
		return nil, err
	}
	p := patch.Apply(base)
	p.UpdatedAt = time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		insert into user_preferences(user_id, email_alerts, sms_alerts, report_digest, updated_at)
		values ($1,$2,$3,$4,$5)
		on conflict (user_id) do update
		set email_alerts=excluded.email_alerts, sms_alerts=excluded.sms_alerts,
		    report_digest=excluded.report_digest, updated_at=excluded.updated_at
	`, p.UserID, p.EmailAlerts, p.SMSAlerts, p.ReportDigest, p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Subscriptions -------------------------------------------------------

type pgSubs struct{ db *sql.DB }

func (s pgSubs) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		insert into subscriptions(id, user_id, plan, status, started_at, expires_at)
		values ($1,$2,$3,$4,$5,$6)
	`, sub.ID, sub.UserID, sub.Plan, sub.Status, sub.StartedAt, sub.ExpiresAt)
	return err
}

func (s pgSubs) ListByUser(ctx context.Context, userID string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, plan, status, started_at, expires_at
		from subscriptions where user_id=$1 order by started_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.Status, &sub.StartedAt, &sub.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
