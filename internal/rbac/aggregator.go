package rbac

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"atrium.org/internal/identity"
)

// Tier labels for logging and metrics.
const (
	TierSuperAdmin  = "super_admin"
	TierTenantAdmin = "tenant_admin"
	TierRegular     = "regular"
)

// Aggregator computes effective authorizations. It only reads and
// reshapes the catalog; administrative mutations live in Service.
type Aggregator struct {
	dir     Directory
	catalog Catalog
	cache   *Cache
	log     *zap.Logger
	observe func(tier string, d time.Duration)
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithCache enables the package-tier cache.
func WithCache(cache *Cache) AggregatorOption {
	return func(a *Aggregator) { a.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithObserver registers a hook receiving the tier and duration of each
// computation (wired to metrics in cmd/api).
func WithObserver(observe func(tier string, d time.Duration)) AggregatorOption {
	return func(a *Aggregator) { a.observe = observe }
}

// NewAggregator builds an Aggregator over a directory and catalog.
func NewAggregator(dir Directory, catalog Catalog, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{dir: dir, catalog: catalog, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorization resolves the principal within the tenant bound to ctx
// and computes its effective menu tree and permission set.
//
// The three tiers are mutually exclusive and evaluated in priority
// order: platform super admin, tenant admin, regular user. An empty
// result (tenant admin without a package, regular user without roles)
// is a valid fail-closed authorization, not an error.
func (a *Aggregator) Authorization(ctx context.Context, username string) (Subject, Authorization, error) {
	start := time.Now()

	tenantID, _ := identity.TenantID(ctx)
	subject, err := a.dir.Subject(ctx, tenantID, username)
	if err != nil {
		return Subject{}, Authorization{}, err
	}

	var (
		tier  string
		menus []Menu
		codes []string
	)
	switch {
	case identity.IsSuperAdmin(ctx):
		tier = TierSuperAdmin
		menus, codes, err = a.superAdminSources(ctx)
	case subject.TenantAdmin:
		tier = TierTenantAdmin
		menus, codes, err = a.tenantAdminSources(ctx, subject.TenantID)
	default:
		tier = TierRegular
		menus, codes, err = a.regularSources(ctx, subject.UserID)
	}
	if err != nil {
		return Subject{}, Authorization{}, err
	}

	SortMenus(menus)
	authz := Authorization{
		Menus:       BuildTree(menus),
		Permissions: normalizeCodes(codes),
	}
	if authz.Menus == nil {
		authz.Menus = []*MenuNode{}
	}

	if a.observe != nil {
		a.observe(tier, time.Since(start))
	}
	a.log.Debug("authorization computed",
		zap.String("username", subject.Username),
		zap.String("tenant_id", subject.TenantID),
		zap.String("tier", tier),
		zap.Int("permissions", len(authz.Permissions)))
	return subject, authz, nil
}

// superAdminSources: the whole catalog, every code, plus the sentinel.
func (a *Aggregator) superAdminSources(ctx context.Context) ([]Menu, []string, error) {
	menus, err := a.catalog.Menus(ctx)
	if err != nil {
		return nil, nil, err
	}
	codes, err := a.catalog.PermissionCodes(ctx)
	if err != nil {
		return nil, nil, err
	}
	return menus, append(codes, identity.SuperAdminCode), nil
}

// tenantAdminSources: the package ceiling. A tenant without a package,
// or a dangling package reference, yields an empty authorization.
func (a *Aggregator) tenantAdminSources(ctx context.Context, tenantID string) ([]Menu, []string, error) {
	packageID, assigned, err := a.catalog.PackageForTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if !assigned {
		return nil, nil, nil
	}

	if entry, ok := a.cache.getPackage(ctx, packageID); ok {
		return entry.Menus, entry.Permissions, nil
	}

	menus, err := a.catalog.PackageMenus(ctx, packageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	codes, err := a.catalog.PackagePermissionCodes(ctx, packageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	a.cache.setPackage(ctx, packageID, packageEntry{Menus: menus, Permissions: codes})
	return menus, codes, nil
}

// regularSources: union over assigned roles; no roles means empty.
func (a *Aggregator) regularSources(ctx context.Context, userID string) ([]Menu, []string, error) {
	menus, err := a.catalog.MenusForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	codes, err := a.catalog.PermissionCodesForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return dedupeMenus(menus), codes, nil
}

// dedupeMenus removes duplicates by id, preserving first occurrence.
func dedupeMenus(menus []Menu) []Menu {
	seen := make(map[string]struct{}, len(menus))
	out := menus[:0]
	for _, m := range menus {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// normalizeCodes dedupes and sorts, so repeated computations with no
// intervening grant/revoke return identical sets.
func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
