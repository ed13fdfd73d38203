package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"sitevisor.org/internal/audit"
	"sitevisor.org/internal/auth"
	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/media"
	"sitevisor.org/internal/obs"
	"sitevisor.org/internal/resource"
)

// ReadyProbe checks backing dependencies for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Info is the public client-bootstrap payload: the bits a dashboard needs
// before anyone signs in.
type Info struct {
	SupportPhone     string `json:"support_phone,omitempty"`
	PaymentPublicKey string `json:"payment_public_key,omitempty"`
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	info       Info

	auth  *auth.Service
	res   *resource.Service
	feed  *feed.Feed
	media media.Store

	rateBurst  int
	ratePerSec int
}

// Option configures the API.
type Option func(*API)

// WithRateLimit enables the per-IP limiter on the wrapped handler.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

// New wires all routes. media may be nil (uploads disabled).
func New(rp ReadyProbe, version string, info Info, authSvc *auth.Service, res *resource.Service, f *feed.Feed, mediaStore media.Store, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		info:       info,
		auth:       authSvc,
		res:        res,
		feed:       f,
		media:      mediaStore,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.InfoHandler)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("POST /v1/auth/signup", a.handleSignUp)
	a.mux.HandleFunc("POST /v1/auth/signin", a.handleSignIn)
	a.mux.HandleFunc("POST /v1/auth/signout", a.handleSignOut)
	a.mux.HandleFunc("GET /v1/auth/me", a.handleMe)
	a.mux.HandleFunc("PATCH /v1/auth/me", a.handleUpdateProfile)

	// projects
	a.mux.HandleFunc("POST /v1/projects", a.handleCreateProject)
	a.mux.HandleFunc("GET /v1/projects", a.handleListProjects)
	a.mux.HandleFunc("GET /v1/projects/{id}", a.handleGetProject)
	a.mux.HandleFunc("PATCH /v1/projects/{id}", a.handleUpdateProject)
	a.mux.HandleFunc("DELETE /v1/projects/{id}", a.handleDeleteProject)
	a.mux.HandleFunc("GET /v1/projects/{id}/reports", a.handleProjectReports)

	// reports
	a.mux.HandleFunc("POST /v1/reports", a.handleCreateReport)
	a.mux.HandleFunc("GET /v1/reports", a.handleListReports)
	a.mux.HandleFunc("GET /v1/reports/{id}", a.handleGetReport)
	a.mux.HandleFunc("PATCH /v1/reports/{id}", a.handleUpdateReport)
	a.mux.HandleFunc("POST /v1/reports/{id}/media", a.handleUploadReportMedia)

	// payments and wallet
	a.mux.HandleFunc("POST /v1/payments", a.handleInitiatePayment)
	a.mux.HandleFunc("GET /v1/payments", a.handleListPayments)
	a.mux.HandleFunc("POST /v1/payments/{id}/confirm", a.handleConfirmPayment)
	a.mux.HandleFunc("GET /v1/wallet", a.handleWallet)
	a.mux.HandleFunc("GET /v1/wallet/transactions", a.handleWalletTransactions)
	a.mux.HandleFunc("POST /v1/wallet/withdrawals", a.handleRequestWithdrawal)

	// notifications and preferences
	a.mux.HandleFunc("GET /v1/notifications", a.handleListNotifications)
	a.mux.HandleFunc("POST /v1/notifications/{id}/read", a.handleMarkNotificationRead)
	a.mux.HandleFunc("POST /v1/notifications/read-all", a.handleMarkAllNotificationsRead)
	a.mux.HandleFunc("GET /v1/preferences", a.handleGetPreferences)
	a.mux.HandleFunc("PATCH /v1/preferences", a.handleUpdatePreferences)

	// subscriptions
	a.mux.HandleFunc("POST /v1/subscriptions", a.handleCreateSubscription)
	a.mux.HandleFunc("GET /v1/subscriptions", a.handleListSubscriptions)

	// aggregates
	a.mux.HandleFunc("GET /v1/dashboard/stats", a.handleDashboard)
	a.mux.HandleFunc("GET /v1/search", a.handleSearch)

	// realtime change feed
	a.mux.HandleFunc("GET /v1/events", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 10<<20)
	if a.rateBurst > 0 && a.ratePerSec > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- base handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sitevisor-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) InfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":               "sitevisor-api",
		"time":               time.Now().UTC().Format(time.RFC3339),
		"version":            a.version,
		"support_phone":      a.info.SupportPhone,
		"payment_public_key": a.info.PaymentPublicKey,
	})
}

// --- helpers ---

func (a *API) scope(r *http.Request) (resource.Scope, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return resource.Scope{}, false
	}
	return resource.Scope{PrincipalID: p.ID, Role: p.Role}, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleResourceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, resource.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, resource.ErrInsufficientBalance):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, resource.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, resource.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
