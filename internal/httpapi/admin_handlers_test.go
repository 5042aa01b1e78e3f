package httpapi

import (
	"net/http"
	"testing"

	"atrium.org/internal/auth"
	"atrium.org/internal/identity"
	"atrium.org/internal/rbac"
)

func TestSetRoleMenus(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"role:grant"}

	rec := env.do(t, http.MethodPut, "/v1/roles/r-1/menus", token, `{"menu_ids":["m1","m2"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.admin.calls) != 1 || env.admin.calls[0] != "SetRoleMenus(r-1,m1+m2)" {
		t.Fatalf("admin calls = %v", env.admin.calls)
	}
}

func TestSetRolePermissionsUnknownRoleIs404(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"role:grant"}
	env.admin.err = rbac.ErrNotFound

	rec := env.do(t, http.MethodPut, "/v1/roles/r-gone/permissions", token, `{"permission_ids":["p1"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRoleGrantWithoutPermissionIs403(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "bob", false)

	rec := env.do(t, http.MethodPut, "/v1/roles/r-1/menus", token, `{"menu_ids":["m1"]}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.admin.calls) != 0 {
		t.Fatalf("admin called without permission: %v", env.admin.calls)
	}
}

func TestPackageGrantIsSuperAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"role:grant", "package:grant"}

	rec := env.do(t, http.MethodPut, "/v1/packages/pkg-1/menus", token, `{"menu_ids":["m1"]}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.admin.calls) != 0 {
		t.Fatalf("admin called: %v", env.admin.calls)
	}
}

func TestPackageGrantAsSuperAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession(identity.PlatformTenantID, identity.RootUsername, false)

	rec := env.do(t, http.MethodPut, "/v1/packages/pkg-1/permissions", token, `{"permission_ids":["p1","p2"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.admin.calls) != 1 || env.admin.calls[0] != "SetPackagePermissions(pkg-1,p1+p2)" {
		t.Fatalf("admin calls = %v", env.admin.calls)
	}
}

func TestAssignRole(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"role:assign"}

	rec := env.do(t, http.MethodPost, "/v1/users/u-1/roles", token, `{"role_id":"r-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.admin.calls) != 1 || env.admin.calls[0] != "AssignRole(u-1,r-1)" {
		t.Fatalf("admin calls = %v", env.admin.calls)
	}
}

func TestAssignRoleConflictIs409(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"role:assign"}
	env.admin.err = rbac.ErrConflict

	rec := env.do(t, http.MethodPost, "/v1/users/u-1/roles", token, `{"role_id":"r-1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRemoveRole(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"role:assign"}

	rec := env.do(t, http.MethodDelete, "/v1/users/u-1/roles/r-1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.admin.calls) != 1 || env.admin.calls[0] != "RemoveRole(u-1,r-1)" {
		t.Fatalf("admin calls = %v", env.admin.calls)
	}
}

func TestRoleResourceBadPaths(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"role:grant"}

	for _, path := range []string{"/v1/roles/", "/v1/roles/r-1", "/v1/roles/r-1/other", "/v1/roles/r-1/menus/extra"} {
		rec := env.do(t, http.MethodPut, path, token, `{"menu_ids":[]}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"user:create"}

	rec := env.do(t, http.MethodPost, "/v1/users", token,
		`{"username":"carol","nickname":"Carol","password":"s3cret-pw","tenant_admin":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.users.created) != 1 {
		t.Fatalf("created = %v", env.users.created)
	}
	user := env.users.created[0]
	if user.TenantID != "t-1" || user.Username != "carol" || !user.TenantAdmin {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := auth.VerifyPassword(env.users.hash, "s3cret-pw"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	body := decodeBody(t, rec)
	if body["id"] != "u-new" || body["password"] != nil || body["password_hash"] != nil {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCreateUserRejectsForeignTenant(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"user:create"}

	rec := env.do(t, http.MethodPost, "/v1/users", token,
		`{"tenant_id":"t-2","username":"carol","password":"s3cret-pw"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.users.created) != 0 {
		t.Fatalf("created across tenants: %v", env.users.created)
	}
}

func TestCreateUserSuperAdminTargetsTenant(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession(identity.PlatformTenantID, identity.RootUsername, false)

	rec := env.do(t, http.MethodPost, "/v1/users", token,
		`{"tenant_id":"t-2","username":"carol","password":"s3cret-pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.users.created) != 1 || env.users.created[0].TenantID != "t-2" {
		t.Fatalf("created = %v", env.users.created)
	}
}

func TestCreateUserWithoutPermissionIs403(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "bob", false)

	rec := env.do(t, http.MethodPost, "/v1/users", token,
		`{"username":"carol","password":"s3cret-pw"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.users.created) != 0 {
		t.Fatalf("created without permission: %v", env.users.created)
	}
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"user:create"}

	cases := map[string]string{
		"empty body":       "",
		"missing password": `{"username":"carol"}`,
		"missing username": `{"password":"s3cret-pw"}`,
	}
	for name, body := range cases {
		rec := env.do(t, http.MethodPost, "/v1/users", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestCreateUserDuplicateIs409(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"user:create"}
	env.users.err = auth.ErrConflict

	rec := env.do(t, http.MethodPost, "/v1/users", token,
		`{"username":"carol","password":"s3cret-pw"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUserRolesMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)

	rec := env.do(t, http.MethodGet, "/v1/users/u-1/roles", token, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q", allow)
	}
}
