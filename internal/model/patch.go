package model

import "time"

// Patches are closed per-entity update shapes. A nil field means "leave
// unchanged"; there is no way to express an update outside these fields,
// so an invalid field combination fails at compile time rather than at the
// store boundary.

type UserPatch struct {
	Name       *string
	AvatarPath *string
}

type ProjectPatch struct {
	Name         *string
	Description  *string
	SupervisorID *string
	Status       *ProjectStatus
	Budget       *int64
	Spent        *int64
	StartDate    *time.Time
	EndDate      *time.Time
	Location     *string
}

type ReportPatch struct {
	Title      *string
	Summary    *string
	Progress   *int
	Issues     *[]string
	MediaPaths *[]string
	Approval   *ApprovalStatus
}

type PaymentPatch struct {
	Status    *PaymentStatus
	Reference *string
}

type PreferencesPatch struct {
	EmailAlerts  *bool
	SMSAlerts    *bool
	ReportDigest *bool
}

// Apply folds the patch into a copy of the project.
func (p ProjectPatch) Apply(in Project) Project {
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.SupervisorID != nil {
		in.SupervisorID = *p.SupervisorID
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Budget != nil {
		in.Budget = *p.Budget
	}
	if p.Spent != nil {
		in.Spent = *p.Spent
	}
	if p.StartDate != nil {
		in.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		in.EndDate = *p.EndDate
	}
	if p.Location != nil {
		in.Location = *p.Location
	}
	return in
}

// Apply folds the patch into a copy of the report.
func (p ReportPatch) Apply(in SiteReport) SiteReport {
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Summary != nil {
		in.Summary = *p.Summary
	}
	if p.Progress != nil {
		in.Progress = *p.Progress
	}
	if p.Issues != nil {
		in.Issues = append([]string(nil), (*p.Issues)...)
	}
	if p.MediaPaths != nil {
		in.MediaPaths = append([]string(nil), (*p.MediaPaths)...)
	}
	if p.Approval != nil {
		in.Approval = *p.Approval
	}
	return in
}

// Apply folds the patch into a copy of the payment.
func (p PaymentPatch) Apply(in Payment) Payment {
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Reference != nil {
		in.Reference = *p.Reference
	}
	return in
}

// Apply folds the patch into a copy of the user.
func (p UserPatch) Apply(in User) User {
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.AvatarPath != nil {
		in.AvatarPath = *p.AvatarPath
	}
	return in
}

// Apply folds the patch into a copy of the preferences.
func (p PreferencesPatch) Apply(in UserPreferences) UserPreferences {
	if p.EmailAlerts != nil {
		in.EmailAlerts = *p.EmailAlerts
	}
	if p.SMSAlerts != nil {
		in.SMSAlerts = *p.SMSAlerts
	}
	if p.ReportDigest != nil {
		in.ReportDigest = *p.ReportDigest
	}
	return in
}
