package httpapi

import (
	"net/http"
	"strings"

	"atrium.org/internal/auth"
)

type menuGrantRequest struct {
	MenuIDs []string `json:"menu_ids"`
}

type permissionGrantRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

type roleAssignRequest struct {
	RoleID string `json:"role_id"`
}

type createUserRequest struct {
	TenantID    string `json:"tenant_id"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	Password    string `json:"password"`
	TenantAdmin bool   `json:"tenant_admin"`
}

// handleUsers serves POST /v1/users. The password is hashed here so
// nothing below the HTTP layer ever sees plaintext. Non-super callers
// provision into their own tenant only; tenant_id lets the super admin
// target any tenant.
func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	ident, ok := a.caller(w, r)
	if !ok {
		return
	}
	if !a.requirePermission(w, r, permUserCreate) {
		return
	}

	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
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

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.users.CreateUser(r.Context(), tenantID, req.Username, req.Nickname, hash, req.TenantAdmin)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           user.ID,
		"tenant_id":    user.TenantID,
		"username":     user.Username,
		"nickname":     user.Nickname,
		"tenant_admin": user.TenantAdmin,
	})
}

// splitResource parses "{id}/{sub...}" out of a path below prefix.
func splitResource(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// handleRoleResource serves PUT /v1/roles/{id}/menus and
// PUT /v1/roles/{id}/permissions.
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResource(r.URL.Path, "/v1/roles/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.requirePermission(w, r, permRoleGrant) {
		return
	}
	roleID := parts[0]

	switch parts[1] {
	case "menus":
		var req menuGrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.SetRoleMenus(r.Context(), roleID, req.MenuIDs); err != nil {
			a.fail(w, r, err)
			return
		}
	case "permissions":
		var req permissionGrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.SetRolePermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
			a.fail(w, r, err)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handlePackageResource serves PUT /v1/packages/{id}/menus and
// PUT /v1/packages/{id}/permissions. Packages define tenant ceilings,
// so mutation is platform-level only.
func (a *API) handlePackageResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResource(r.URL.Path, "/v1/packages/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.requireSuperAdmin(w, r) {
		return
	}
	packageID := parts[0]

	switch parts[1] {
	case "menus":
		var req menuGrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.SetPackageMenus(r.Context(), packageID, req.MenuIDs); err != nil {
			a.fail(w, r, err)
			return
		}
	case "permissions":
		var req permissionGrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.SetPackagePermissions(r.Context(), packageID, req.PermissionIDs); err != nil {
			a.fail(w, r, err)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleUserResource serves POST /v1/users/{id}/roles and
// DELETE /v1/users/{id}/roles/{roleID}.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResource(r.URL.Path, "/v1/users/")
	if len(parts) < 2 || parts[1] != "roles" {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 2 && r.Method == http.MethodPost:
		if !a.requirePermission(w, r, permRoleAssign) {
			return
		}
		var req roleAssignRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.RoleID == "" {
			writeError(w, r, http.StatusBadRequest, "role_id is required")
			return
		}
		if err := a.admin.AssignRole(r.Context(), userID, req.RoleID); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "ok"})
	case len(parts) == 3 && r.Method == http.MethodDelete:
		if !a.requirePermission(w, r, permRoleAssign) {
			return
		}
		if err := a.admin.RemoveRole(r.Context(), userID, parts[2]); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case len(parts) == 2:
		methodNotAllowed(w, r, http.MethodPost)
	case len(parts) == 3:
		methodNotAllowed(w, r, http.MethodDelete)
	default:
		http.NotFound(w, r)
	}
}
