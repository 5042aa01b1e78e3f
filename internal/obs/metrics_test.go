package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/auth/login":            "/v1/auth/login",
		"/v1/auth/online":           "/v1/auth/online",
		"/v1/auth/online/abc123":    "/v1/auth/online/:id",
		"/v1/roles/r-1/menus":       "/v1/roles/:id/menus",
		"/v1/roles/r-1/permissions": "/v1/roles/:id/permissions",
		"/v1/packages/p-1/menus":    "/v1/packages/:id/menus",
		"/v1/users/u-1/roles":       "/v1/users/:id/roles",
		"/v1/users/u-1/roles/r-9":   "/v1/users/:id/roles/:id",
		"/v1/auth/online?tenant=t1": "/v1/auth/online",
		"/v1/unknown/abc/extra":     "/v1/unknown/abc/extra",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
