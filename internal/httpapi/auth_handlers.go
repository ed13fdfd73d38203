package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sitevisor.org/internal/audit"
	"sitevisor.org/internal/auth"
	"sitevisor.org/internal/model"
)

type signUpRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.auth.SignUp(r.Context(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": sess.Principal.ID,
		"role":    string(sess.Principal.Role),
	})
	writeJSON(w, http.StatusCreated, sess)
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signin", map[string]any{
		"user_id": sess.Principal.ID,
	})
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	if err := a.auth.SignOut(r.Context(), p); err != nil {
		writeError(w, r, http.StatusInternalServerError, "sign out failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signout", map[string]any{"user_id": p.ID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	p, err := a.res.Profile(r.Context(), scope)
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateProfileRequest struct {
	Name       *string `json:"name"`
	AvatarPath *string `json:"avatar_path"`
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name cannot be blank")
		return
	}
	p, err := a.res.UpdateProfile(r.Context(), scope, model.UserPatch{
		Name:       req.Name,
		AvatarPath: req.AvatarPath,
	})
	if err != nil {
		handleResourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
