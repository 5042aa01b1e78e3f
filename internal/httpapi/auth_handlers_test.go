package httpapi

import (
	"net/http"
	"testing"

	"atrium.org/internal/auth"
	"atrium.org/internal/identity"
	"atrium.org/internal/session"
)

func TestLoginReturnsToken(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.result = auth.LoginResult{Token: "tok-1", Username: "alice", TenantID: "t-1"}

	rec := env.do(t, http.MethodPost, "/v1/auth/login", "",
		`{"tenant_id":"t-1","username":"alice","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["token"] != "tok-1" || body["tenant_id"] != "t-1" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestLoginBadCredentialsIs401(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.err = auth.ErrAuthenticationFailed

	rec := env.do(t, http.MethodPost, "/v1/auth/login", "",
		`{"tenant_id":"t-1","username":"alice","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"empty body":    "",
		"missing field": `{"tenant_id":"t-1","username":"alice"}`,
		"unknown field": `{"tenant_id":"t-1","username":"alice","password":"x","extra":1}`,
	}
	for name, body := range cases {
		rec := env.do(t, http.MethodPost, "/v1/auth/login", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestLoginMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/auth/login", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestLogoutForwardsToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", false)

	rec := env.do(t, http.MethodPost, "/v1/auth/logout", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.gateway.loggedOut) != 1 || env.gateway.loggedOut[0] != token {
		t.Fatalf("logged out tokens: %v", env.gateway.loggedOut)
	}
}

func TestOnlineScopedToCallerTenant(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", false)
	env.sessions.online = []session.OnlineUser{{SessionID: "s-1", Username: "alice", TenantID: "t-1"}}

	rec := env.do(t, http.MethodGet, "/v1/auth/online", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.sessions.onlineTenant != "t-1" || env.sessions.onlineSuper {
		t.Fatalf("online queried as tenant=%q super=%v", env.sessions.onlineTenant, env.sessions.onlineSuper)
	}
}

func TestOnlineSuperAdminSeesAll(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession(identity.PlatformTenantID, identity.RootUsername, false)

	rec := env.do(t, http.MethodGet, "/v1/auth/online", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !env.sessions.onlineSuper {
		t.Fatal("expected unscoped online query")
	}
}

func TestKickRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", false)

	rec := env.do(t, http.MethodDelete, "/v1/auth/online/s-1", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.sessions.kicked) != 0 {
		t.Fatalf("kicked without permission: %v", env.sessions.kicked)
	}
}

func TestKickWithPermission(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"session:kick"}

	rec := env.do(t, http.MethodDelete, "/v1/auth/online/s-1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.sessions.kicked) != 1 || env.sessions.kicked[0] != "s-1" {
		t.Fatalf("kicked = %v", env.sessions.kicked)
	}
	if env.sessions.kickTenant != "t-1" || env.sessions.kickSuper {
		t.Fatalf("kick scoped as tenant=%q super=%v", env.sessions.kickTenant, env.sessions.kickSuper)
	}
}

func TestKickForeignSessionIs403(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"session:kick"}
	env.sessions.err = session.ErrDenied

	rec := env.do(t, http.MethodDelete, "/v1/auth/online/s-2", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestKickSuperAdminBypassesPermissionCheck(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession(identity.PlatformTenantID, identity.RootUsername, false)

	rec := env.do(t, http.MethodDelete, "/v1/auth/online/s-9", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.sessions.kicked) != 1 || env.sessions.kicked[0] != "s-9" {
		t.Fatalf("kicked = %v", env.sessions.kicked)
	}
	if !env.sessions.kickSuper {
		t.Fatal("expected an unscoped kick")
	}
}

func TestRevokeSessionsScopedToCallerTenant(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"session:kick"}
	env.sessions.removed = 2

	rec := env.do(t, http.MethodDelete, "/v1/auth/online", token, `{"username":"bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env.sessions.revokedTenant != "t-1" || env.sessions.revokedUser != "bob" {
		t.Fatalf("revoked %s@%s", env.sessions.revokedUser, env.sessions.revokedTenant)
	}
	body := decodeBody(t, rec)
	if body["removed"] != float64(2) {
		t.Fatalf("removed = %v", body["removed"])
	}
}

func TestRevokeSessionsRejectsForeignTenant(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", true)
	env.authz.authz.Permissions = []string{"session:kick"}

	rec := env.do(t, http.MethodDelete, "/v1/auth/online", token, `{"tenant_id":"t-2","username":"bob"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.sessions.revokedUser != "" {
		t.Fatalf("revoked across tenants: %s@%s", env.sessions.revokedUser, env.sessions.revokedTenant)
	}
}

func TestRevokeSessionsSuperAdminTargetsTenant(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession(identity.PlatformTenantID, identity.RootUsername, false)

	rec := env.do(t, http.MethodDelete, "/v1/auth/online", token, `{"tenant_id":"t-2","username":"bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env.sessions.revokedTenant != "t-2" || env.sessions.revokedUser != "bob" {
		t.Fatalf("revoked %s@%s", env.sessions.revokedUser, env.sessions.revokedTenant)
	}
}

func TestRevokeSessionsRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", false)

	rec := env.do(t, http.MethodDelete, "/v1/auth/online", token, `{"username":"bob"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.sessions.revokedUser != "" {
		t.Fatalf("revoked without permission: %s", env.sessions.revokedUser)
	}
}

func TestMeReturnsProfileAndAuthorization(t *testing.T) {
	env := newTestEnv(t)
	token := env.addSession("t-1", "alice", false)
	env.authz.subject.UserID = "uid-alice"
	env.authz.subject.Username = "alice"
	env.authz.subject.TenantID = "t-1"
	env.authz.authz.Permissions = []string{"report:view"}

	rec := env.do(t, http.MethodGet, "/v1/auth/me", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	if !ok || user["username"] != "alice" || user["tenant_id"] != "t-1" {
		t.Fatalf("unexpected user: %v", body["user"])
	}
	perms, ok := body["permissions"].([]any)
	if !ok || len(perms) != 1 || perms[0] != "report:view" {
		t.Fatalf("unexpected permissions: %v", body["permissions"])
	}
}
