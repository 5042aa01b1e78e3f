package httpapi

import (
	"net/http"
	"strings"

	"atrium.org/internal/identity"
)

// Paths reachable without a session.
var publicPaths = map[string]struct{}{
	"/healthz":       {},
	"/readyz":        {},
	"/metrics":       {},
	"/v1/info":       {},
	"/v1/auth/login": {},
}

func isPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// withAuth resolves the bearer token into a session and binds the
// resulting identity into the request context. Everything downstream
// reads the caller from the context, never from headers.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sess, ok, err := a.sessions.Get(r.Context(), token)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := identity.WithIdentity(r.Context(), identity.Identity{
			TenantID:    sess.TenantID,
			Username:    sess.Username,
			UserID:      sess.User.UserID,
			TenantAdmin: sess.User.TenantAdmin,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// caller returns the identity bound by withAuth; a miss means the
// route was wired outside the authn chain, which is a 401.
func (a *API) caller(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return identity.Identity{}, false
	}
	return ident, true
}

// requirePermission authorizes an administrative operation: the super
// admin passes outright, everyone else must hold the code in their
// computed permission set.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, code string) bool {
	ident, ok := a.caller(w, r)
	if !ok {
		return false
	}
	if ident.IsSuperAdmin() {
		return true
	}

	_, authz, err := a.authz.Authorization(r.Context(), ident.Username)
	if err != nil {
		a.fail(w, r, err)
		return false
	}
	for _, c := range authz.Permissions {
		if c == code {
			return true
		}
	}
	writeError(w, r, http.StatusForbidden, "forbidden")
	return false
}

// requireSuperAdmin gates the platform-level package endpoints.
func (a *API) requireSuperAdmin(w http.ResponseWriter, r *http.Request) bool {
	ident, ok := a.caller(w, r)
	if !ok {
		return false
	}
	if !ident.IsSuperAdmin() {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}
