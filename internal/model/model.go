package model

import "time"

// Role tags form a closed set; ownership filters in the resource layer key
// off them.
type Role string

const (
	RoleClient     Role = "client"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated identity driving all scoped reads and
// writes. It is derived from a User row and never carries credentials.
type Principal struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	AvatarPath string    `json:"avatar_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User is the persisted account record behind a Principal.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	AvatarPath   string    `json:"avatar_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal strips credentials from the account record.
func (u User) Principal() Principal {
	return Principal{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		AvatarPath: u.AvatarPath,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Project is a supervised construction site. Budget and Spent are minor
// currency units; no floats.
type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	ClientID     string        `json:"client_id"`
	SupervisorID string        `json:"supervisor_id,omitempty"`
	Status       ProjectStatus `json:"status"`
	Budget       int64         `json:"budget"`
	Spent        int64         `json:"spent"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	Location     string        `json:"location,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type ReportKind string

const (
	ReportDaily     ReportKind = "daily"
	ReportWeekly    ReportKind = "weekly"
	ReportMilestone ReportKind = "milestone"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// SiteReport is authored by a supervisor against a project. MediaPaths are
// object-store paths under reports/<id>/..., see the media package.
type SiteReport struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	SupervisorID string         `json:"supervisor_id"`
	Kind         ReportKind     `json:"kind"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary,omitempty"`
	MediaPaths   []string       `json:"media_paths,omitempty"`
	Progress     int            `json:"progress"`
	Issues       []string       `json:"issues,omitempty"`
	Approval     ApprovalStatus `json:"approval"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentType string

const (
	PaymentDeposit      PaymentType = "deposit"
	PaymentSubscription PaymentType = "subscription"
	PaymentWithdrawal   PaymentType = "withdrawal"
)

// Payment records money movement against a principal. Reference is the
// external provider's string; this system never talks to the provider
// itself, it only stores what the callback reports.
type Payment struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Status    PaymentStatus `json:"status"`
	Type      PaymentType   `json:"type"`
	Reference string        `json:"reference,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Wallet holds a single-currency balance in minor units.
type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletTransaction is one signed balance movement. Amount is positive for
// credits and negative for debits.
type WalletTransaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Memo      string    `json:"memo,omitempty"`
	PaymentID string    `json:"payment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifyReport  NotificationType = "report"
	NotifyPayment NotificationType = "payment"
	NotifyProject NotificationType = "project"
)

// Notification is mutated only through its read flag.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// UserPreferences stores per-user delivery toggles.
type UserPreferences struct {
	UserID       string    `json:"user_id"`
	EmailAlerts  bool      `json:"email_alerts"`
	SMSAlerts    bool      `json:"sms_alerts"`
	ReportDigest bool      `json:"report_digest"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription records a purchased pricing plan. Plan semantics live with
// the business side; this layer only persists the record.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Plan      string             `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	StartedAt time.Time          `json:"started_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}
