// Package httpapi is the HTTP surface. Handlers translate between the
// wire and the domain services; all authorization decisions are made by
// the domain layer, handlers only resolve the caller and map errors to
// status codes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"atrium.org/internal/audit"
	"atrium.org/internal/auth"
	"atrium.org/internal/obs"
	"atrium.org/internal/rbac"
	"atrium.org/internal/session"
)

// Permission codes guarding the administrative endpoints.
const (
	permRoleGrant   = "role:grant"
	permRoleAssign  = "role:assign"
	permSessionKick = "session:kick"
	permUserCreate  = "user:create"
)

// ReadyProbe is a simple readiness check (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Gateway handles credential exchange.
type Gateway interface {
	Login(ctx context.Context, tenantID, username, password, clientIP, userAgent string) (auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// SessionDirectory resolves and administers live sessions. Kick and
// RemoveAll are tenant-scoped: the store refuses to touch sessions
// outside tenantID unless the caller is the super admin.
type SessionDirectory interface {
	Get(ctx context.Context, token string) (session.Session, bool, error)
	Online(ctx context.Context, tenantID string, isSuper bool) ([]session.OnlineUser, error)
	Kick(ctx context.Context, sessionID, tenantID string, isSuper bool) error
	RemoveAll(ctx context.Context, tenantID, username string) (int, error)
}

// Authorizer computes the caller's effective authorization.
type Authorizer interface {
	Authorization(ctx context.Context, username string) (rbac.Subject, rbac.Authorization, error)
}

// Users provisions accounts.
type Users interface {
	CreateUser(ctx context.Context, tenantID, username, nickname, passwordHash string, tenantAdmin bool) (auth.User, error)
}

// Admin performs grant and assignment mutations.
type Admin interface {
	SetRoleMenus(ctx context.Context, roleID string, menuIDs []string) error
	SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	SetPackageMenus(ctx context.Context, packageID string, menuIDs []string) error
	SetPackagePermissions(ctx context.Context, packageID string, permissionIDs []string) error
	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// Config wires the API's dependencies.
type Config struct {
	Version    string
	Ready      ReadyProbe
	Gateway    Gateway
	Sessions   SessionDirectory
	Authorizer Authorizer
	Admin      Admin
	Users      Users
	Audit      audit.Sink
	Logger     *zap.Logger
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	gateway  Gateway
	sessions SessionDirectory
	authz    Authorizer
	admin    Admin
	users    Users
	audit    audit.Sink
	log      *zap.Logger
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.Ready,
		version:    cfg.Version,
		gateway:    cfg.Gateway,
		sessions:   cfg.Sessions,
		authz:      cfg.Authorizer,
		admin:      cfg.Admin,
		users:      cfg.Users,
		audit:      cfg.Audit,
		log:        cfg.Logger,
	}
	if a.audit == nil {
		a.audit = audit.Nop{}
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/v1/auth/online", a.handleOnline)
	a.mux.HandleFunc("/v1/auth/online/", a.handleOnlineResource)

	// administration
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/packages/", a.handlePackageResource)
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the routed handler with authentication and metrics
// applied. Transport middleware (CORS, rate limit, logging) is chained
// by the caller.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "atrium-api",
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
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "atrium-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
