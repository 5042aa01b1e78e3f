package rbac

import "context"

// Directory resolves principals for the aggregator.
type Directory interface {
	// Subject looks up a user by username within the given tenant.
	// Returns auth.ErrNotFound when absent.
	Subject(ctx context.Context, tenantID, username string) (Subject, error)
}

// Catalog is the read side of the menu/permission data consumed by the
// aggregator. The three tiers draw from three disjoint sources: the
// global catalog, the tenant's package, and the union over assigned
// roles.
type Catalog interface {
	// Menus returns the entire global menu catalog.
	Menus(ctx context.Context) ([]Menu, error)
	// PermissionCodes returns every permission code in the system.
	PermissionCodes(ctx context.Context) ([]string, error)

	// PackageForTenant resolves the tenant's assigned package id.
	// assigned=false when the tenant has no package.
	PackageForTenant(ctx context.Context, tenantID string) (packageID string, assigned bool, err error)
	PackageMenus(ctx context.Context, packageID string) ([]Menu, error)
	PackagePermissionCodes(ctx context.Context, packageID string) ([]string, error)

	// MenusForUser returns the distinct union of menus over every role
	// assigned to the user.
	MenusForUser(ctx context.Context, userID string) ([]Menu, error)
	PermissionCodesForUser(ctx context.Context, userID string) ([]string, error)
}

// AdminStore is the write side used by the grant/revoke service.
type AdminStore interface {
	SetRoleMenus(ctx context.Context, roleID string, menuIDs []string) error
	SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	SetPackageMenus(ctx context.Context, packageID string, menuIDs []string) error
	SetPackagePermissions(ctx context.Context, packageID string, permissionIDs []string) error
	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	// PackageForRole resolves which package cache (if any) a role
	// mutation invalidates: the package of the role's tenant.
	PackageForRole(ctx context.Context, roleID string) (packageID string, assigned bool, err error)
}
