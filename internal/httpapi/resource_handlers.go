package httpapi

import (
	"net/http"
	"strings"
	"time"

	"sitevisor.org/internal/audit"
	"sitevisor.org/internal/media"
	"sitevisor.org/internal/model"
)

// Projects --------------------------------------------------------------

type createProjectRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ClientID     string `json:"client_id"`
	SupervisorID string `json:"supervisor_id"`
	Budget       int64  `json:"budget"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Location     string `json:"location"`
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Budget < 0 {
		writeError(w, r, http.StatusBadRequest, "budget must be >= 0")
		return
	}
	in := model.Project{
		Name:         req.Name,
		Description:  req.Description,
		ClientID:     req.ClientID,
		SupervisorID: req.SupervisorID,
		Budget:       req.Budget,
		Location:     req.Location,
	}
	var err error
	if in.StartDate, err = parseDate(req.StartDate); err != nil {
		writeError(w, r, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	if in.EndDate, err = parseDate(req.EndDate); err != nil {
		writeError(w, r, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	created, err := a.res.CreateProject(r.Context(), scope, in)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "project.created", map[string]any{"project_id": created.ID})
	w.Header().Set("Location", "/v1/projects/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	items, err := a.res.Projects(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	p, err := a.res.Project(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateProjectRequest struct {
	Name         *string              `json:"name"`
	Description  *string              `json:"description"`
	SupervisorID *string              `json:"supervisor_id"`
	Status       *model.ProjectStatus `json:"status"`
	Budget       *int64               `json:"budget"`
	Spent        *int64               `json:"spent"`
	Location     *string              `json:"location"`
}

func (a *API) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case model.ProjectPlanning, model.ProjectActive, model.ProjectOnHold, model.ProjectCompleted, model.ProjectCancelled:
		default:
			writeError(w, r, http.StatusBadRequest, "invalid status")
			return
		}
	}
	updated, err := a.res.UpdateProject(r.Context(), scope, r.PathValue("id"), model.ProjectPatch{
		Name:         req.Name,
		Description:  req.Description,
		SupervisorID: req.SupervisorID,
		Status:       req.Status,
		Budget:       req.Budget,
		Spent:        req.Spent,
		Location:     req.Location,
	})
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	id := r.PathValue("id")
	if err := a.res.DeleteProject(r.Context(), scope, id); err != nil {
		handleResourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "project.deleted", map[string]any{"project_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProjectReports(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	items, err := a.res.ProjectReports(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Reports ---------------------------------------------------------------

type createReportRequest struct {
	ProjectID string           `json:"project_id"`
	Kind      model.ReportKind `json:"kind"`
	Title     string           `json:"title"`
	Summary   string           `json:"summary"`
	Progress  int              `json:"progress"`
	Issues    []string         `json:"issues"`
}

func (a *API) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req createReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.res.CreateReport(r.Context(), scope, model.SiteReport{
		ProjectID: req.ProjectID,
		Kind:      req.Kind,
		Title:     req.Title,
		Summary:   req.Summary,
		Progress:  req.Progress,
		Issues:    req.Issues,
	})
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "report.created", map[string]any{
		"report_id":  created.ID,
		"project_id": created.ProjectID,
	})
	w.Header().Set("Location", "/v1/reports/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleListReports(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	items, err := a.res.Reports(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleGetReport(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	report, err := a.res.Report(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	if report == nil {
		writeError(w, r, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type updateReportRequest struct {
	Title    *string               `json:"title"`
	Summary  *string               `json:"summary"`
	Progress *int                  `json:"progress"`
	Issues   *[]string             `json:"issues"`
	Approval *model.ApprovalStatus `json:"approval"`
}

func (a *API) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req updateReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		writeError(w, r, http.StatusBadRequest, "progress must be 0..100")
		return
	}
	if req.Approval != nil {
		switch *req.Approval {
		case model.ApprovalPending, model.ApprovalApproved, model.ApprovalRejected:
		default:
			writeError(w, r, http.StatusBadRequest, "invalid approval status")
			return
		}
	}
	updated, err := a.res.UpdateReport(r.Context(), scope, r.PathValue("id"), model.ReportPatch{
		Title:    req.Title,
		Summary:  req.Summary,
		Progress: req.Progress,
		Issues:   req.Issues,
		Approval: req.Approval,
	})
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	if req.Approval != nil {
		_ = audit.LogEvent(r.Context(), "report.approval", map[string]any{
			"report_id": updated.ID,
			"approval":  string(updated.Approval),
		})
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleUploadReportMedia(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	if a.media == nil {
		writeError(w, r, http.StatusServiceUnavailable, "uploads disabled")
		return
	}
	id := r.PathValue("id")
	report, err := a.res.Report(r.Context(), scope, id)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	if report == nil {
		writeError(w, r, http.StatusNotFound, "report not found")
		return
	}
	// Clients read reports but never write them; reject before anything
	// lands on disk.
	if scope.Role == model.RoleClient {
		writeError(w, r, http.StatusForbidden, "read-only access to reports")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	kind := r.FormValue("kind")
	if kind == "" {
		kind = "photos"
	}
	objectPath, err := media.ReportMediaPath(id, kind, header.Filename)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.media.Save(objectPath, file); err != nil {
		writeError(w, r, http.StatusInternalServerError, "upload failed")
		return
	}

	paths := append(append([]string(nil), report.MediaPaths...), objectPath)
	updated, err := a.res.UpdateReport(r.Context(), scope, id, model.ReportPatch{MediaPaths: &paths})
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"path":   objectPath,
		"report": updated,
	})
}

// Payments and wallet ---------------------------------------------------

type initiatePaymentRequest struct {
	Amount int64             `json:"amount"`
	Type   model.PaymentType `json:"type"`
}

func (a *API) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req initiatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.res.InitiatePayment(r.Context(), scope, req.Amount, req.Type)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "payment.initiated", map[string]any{
		"payment_id": p.ID,
		"type":       string(p.Type),
	})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleListPayments(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	items, err := a.res.Payments(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type confirmPaymentRequest struct {
	Reference string `json:"reference"`
	Success   bool   `json:"success"`
}

// handleConfirmPayment records the payment provider callback. The caller
// must own the payment or be an admin.
func (a *API) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req confirmPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeError(w, r, http.StatusBadRequest, "reference is required")
		return
	}
	id := r.PathValue("id")
	existing, err := a.res.Payment(r.Context(), scope, id)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	if existing == nil {
		writeError(w, r, http.StatusNotFound, "payment not found")
		return
	}

	p, err := a.res.ConfirmPayment(r.Context(), id, req.Reference, req.Success)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "payment.confirmed", map[string]any{
		"payment_id": p.ID,
		"status":     string(p.Status),
		"reference":  p.Reference,
	})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleWallet(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	wallet, err := a.res.Wallet(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (a *API) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	items, err := a.res.WalletTransactions(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type withdrawalRequest struct {
	Amount int64 `json:"amount"`
}

func (a *API) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req withdrawalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.res.RequestWithdrawal(r.Context(), scope, req.Amount)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "wallet.withdrawal.requested", map[string]any{
		"payment_id": p.ID,
		"amount":     p.Amount,
	})
	writeJSON(w, http.StatusCreated, p)
}

// Notifications and preferences -----------------------------------------

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	items, err := a.res.Notifications(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	n, err := a.res.MarkNotificationRead(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	count, err := a.res.MarkAllNotificationsRead(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": count})
}

func (a *API) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	prefs, err := a.res.Preferences(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type updatePreferencesRequest struct {
	EmailAlerts  *bool `json:"email_alerts"`
	SMSAlerts    *bool `json:"sms_alerts"`
	ReportDigest *bool `json:"report_digest"`
}

func (a *API) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req updatePreferencesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	prefs, err := a.res.UpdatePreferences(r.Context(), scope, model.PreferencesPatch{
		EmailAlerts:  req.EmailAlerts,
		SMSAlerts:    req.SMSAlerts,
		ReportDigest: req.ReportDigest,
	})
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// Subscriptions ---------------------------------------------------------

type createSubscriptionRequest struct {
	Plan string `json:"plan"`
}

func (a *API) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req createSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := a.res.CreateSubscription(r.Context(), scope, req.Plan)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (a *API) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	items, err := a.res.Subscriptions(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Aggregates ------------------------------------------------------------

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	stats, err := a.res.Dashboard(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	result, err := a.res.Search(r.Context(), scope, r.URL.Query().Get("q"))
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
