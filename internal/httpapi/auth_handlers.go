package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"atrium.org/internal/audit"
	"atrium.org/internal/identity"
	"atrium.org/internal/obs"
)

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.TenantID == "" || req.Username == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "tenant_id, username and password are required")
		return
	}

	result, err := a.gateway.Login(r.Context(), req.TenantID, req.Username, req.Password,
		clientIP(r), r.UserAgent())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     result.Token,
		"username":  result.Username,
		"tenant_id": result.TenantID,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, ok := extractBearerToken(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := a.gateway.Logout(r.Context(), token); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleMe returns the caller's profile together with its computed menu
// tree and permission set.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ident, ok := a.caller(w, r)
	if !ok {
		return
	}

	subject, authz, err := a.authz.Authorization(r.Context(), ident.Username)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":           subject.UserID,
			"tenant_id":    subject.TenantID,
			"username":     subject.Username,
			"nickname":     subject.Nickname,
			"tenant_admin": subject.TenantAdmin,
		},
		"menus":       authz.Menus,
		"permissions": authz.Permissions,
	})
}

// handleOnline lists live sessions (GET) or revokes every session of
// one principal (DELETE). Non-super callers only see, and only touch,
// their own tenant regardless of what they ask for.
func (a *API) handleOnline(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.handleOnlineList(w, r)
	case http.MethodDelete:
		a.handleOnlineRevoke(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) handleOnlineList(w http.ResponseWriter, r *http.Request) {
	ident, ok := a.caller(w, r)
	if !ok {
		return
	}

	users, err := a.sessions.Online(r.Context(), ident.TenantID, ident.IsSuperAdmin())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"online": users})
}

type revokeSessionsRequest struct {
	TenantID string `json:"tenant_id"`
	Username string `json:"username"`
}

// handleOnlineRevoke terminates all sessions of one user, e.g. after
// the account is disabled. The super admin may target any tenant by
// passing tenant_id; everyone else is pinned to their own.
func (a *API) handleOnlineRevoke(w http.ResponseWriter, r *http.Request) {
	ident, ok := a.caller(w, r)
	if !ok {
		return
	}
	if !a.requirePermission(w, r, permSessionKick) {
		return
	}

	var req revokeSessionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}
	tenantID := ident.TenantID
	if req.TenantID != "" && req.TenantID != tenantID {
		if !ident.IsSuperAdmin() {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		tenantID = req.TenantID
	}

	removed, err := a.sessions.RemoveAll(r.Context(), tenantID, req.Username)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	obs.ObserveKick(removed)
	a.recordKick(r, "all sessions of "+req.Username+"@"+tenantID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "removed": removed})
}

// handleOnlineResource terminates a session by id (the token hash
// returned by the online listing).
func (a *API) handleOnlineResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/v1/auth/online/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, r, http.StatusNotFound, "unknown session")
		return
	}
	ident, ok := a.caller(w, r)
	if !ok {
		return
	}
	if !a.requirePermission(w, r, permSessionKick) {
		return
	}

	if err := a.sessions.Kick(r.Context(), sessionID, ident.TenantID, ident.IsSuperAdmin()); err != nil {
		a.fail(w, r, err)
		return
	}
	obs.ObserveKick(1)
	a.recordKick(r, "session "+sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) recordKick(r *http.Request, what string) {
	ident, _ := identity.FromContext(r.Context())
	ev := audit.Event{
		Kind:     audit.KindKick,
		Outcome:  audit.OutcomeSuccess,
		TenantID: ident.TenantID,
		Username: ident.Username,
		ClientIP: clientIP(r),
		Message:  what + " terminated",
		At:       time.Now().UTC(),
	}
	if err := a.audit.Record(r.Context(), ev); err != nil {
		a.log.Warn("audit record failed", zap.Error(err))
	}
}
