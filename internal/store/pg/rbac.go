package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atrium.org/internal/rbac"
)

const (
	menuColumns = `id, coalesce(parent_id, ''), name, coalesce(path, ''), sort, hidden, created_at`

	// Same projection under the "m" alias for joined queries.
	menuColumnsM = `m.id, coalesce(m.parent_id, ''), m.name, coalesce(m.path, ''), m.sort, m.hidden, m.created_at`
)

func scanMenu(scan func(...any) error) (rbac.Menu, error) {
	var (
		m    rbac.Menu
		sort sql.NullInt64
	)
	if err := scan(&m.ID, &m.ParentID, &m.Name, &m.Path, &sort, &m.Hidden, &m.CreatedAt); err != nil {
		return rbac.Menu{}, err
	}
	if sort.Valid {
		v := int(sort.Int64)
		m.Sort = &v
	}
	return m, nil
}

func (s *Store) queryMenus(ctx context.Context, query string, args ...any) ([]rbac.Menu, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []rbac.Menu
	for rows.Next() {
		m, err := scanMenu(rows.Scan)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

func (s *Store) queryCodes(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Menus returns the entire global catalog (super admin tier).
func (s *Store) Menus(ctx context.Context) ([]rbac.Menu, error) {
	cond, err := s.guard.Scope(ctx, "catalog", "menus")
	if err != nil {
		return nil, err
	}
	where, args := cond.And("", nil)
	return s.queryMenus(ctx, `select `+menuColumns+` from menus `+where+` order by id`, args...)
}

// PermissionCodes returns every permission code in the system.
func (s *Store) PermissionCodes(ctx context.Context) ([]string, error) {
	cond, err := s.guard.Scope(ctx, "catalog", "permission_codes")
	if err != nil {
		return nil, err
	}
	where, args := cond.And("", nil)
	return s.queryCodes(ctx, `select code from permissions `+where+` order by code`, args...)
}

// PackageForTenant resolves the package assigned to a tenant. The scope
// is re-bound from the argument: the aggregator resolves packages for
// the subject's tenant, not necessarily the caller's.
func (s *Store) PackageForTenant(ctx context.Context, tenantID string) (string, bool, error) {
	cond := s.guard.ExplicitScope(tenantID)
	where, args := cond.And("", nil)

	var packageID string
	err := s.db.QueryRowContext(ctx, `select package_id from tenant_packages `+where, args...).Scan(&packageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return packageID, true, nil
}

// PackageMenus returns the menu ceiling of a package. A dangling
// package id yields an empty set, which the aggregator fails closed on.
func (s *Store) PackageMenus(ctx context.Context, packageID string) ([]rbac.Menu, error) {
	if _, err := s.guard.Scope(ctx, "packages", "menus"); err != nil {
		return nil, err
	}
	return s.queryMenus(ctx, `
		select `+menuColumnsM+`
		from menus m
		join package_menus pm on pm.menu_id = m.id
		where pm.package_id = $1
		order by m.id
	`, packageID)
}

// PackagePermissionCodes returns the permission ceiling of a package.
func (s *Store) PackagePermissionCodes(ctx context.Context, packageID string) ([]string, error) {
	if _, err := s.guard.Scope(ctx, "packages", "permission_codes"); err != nil {
		return nil, err
	}
	return s.queryCodes(ctx, `
		select p.code
		from permissions p
		join package_permissions pp on pp.permission_id = p.id
		where pp.package_id = $1
		order by p.code
	`, packageID)
}

// MenusForUser returns the distinct union of menus over the user's
// roles, constrained to the caller's tenant.
func (s *Store) MenusForUser(ctx context.Context, userID string) ([]rbac.Menu, error) {
	cond, err := s.guard.Scope(ctx, "roles", "menus_for_user")
	if err != nil {
		return nil, err
	}
	cond.Column = "ur.tenant_id"
	where, args := cond.And("where ur.user_id = $1", []any{userID})
	return s.queryMenus(ctx, `
		select distinct `+menuColumnsM+`
		from menus m
		join role_menus rm on rm.menu_id = m.id
		join user_roles ur on ur.role_id = rm.role_id
		`+where+`
		order by m.id
	`, args...)
}

// PermissionCodesForUser returns the distinct union of codes over the
// user's roles.
func (s *Store) PermissionCodesForUser(ctx context.Context, userID string) ([]string, error) {
	cond, err := s.guard.Scope(ctx, "roles", "permission_codes_for_user")
	if err != nil {
		return nil, err
	}
	cond.Column = "ur.tenant_id"
	where, args := cond.And("where ur.user_id = $1", []any{userID})
	return s.queryCodes(ctx, `
		select distinct p.code
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		join user_roles ur on ur.role_id = rp.role_id
		`+where+`
		order by p.code
	`, args...)
}

// SetRoleMenus replaces a role's menu grants. The role must be visible
// in the caller's tenant scope, so a cross-tenant id resolves NotFound.
func (s *Store) SetRoleMenus(ctx context.Context, roleID string, menuIDs []string) error {
	return s.replaceRoleGrants(ctx, "set_role_menus", roleID, "role_menus", "menu_id", menuIDs)
}

// SetRolePermissions replaces a role's permission grants.
func (s *Store) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return s.replaceRoleGrants(ctx, "set_role_permissions", roleID, "role_permissions", "permission_id", permissionIDs)
}

func (s *Store) replaceRoleGrants(ctx context.Context, operation, roleID, table, column string, ids []string) error {
	cond, err := s.guard.Scope(ctx, "roles", operation)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	where, args := cond.And("where id = $1", []any{roleID})
	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles `+where, args...).Scan(&exists); err != nil {
		return mapRBACErr(err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`delete from %s where role_id = $1`, table), roleID); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`insert into %s (role_id, %s) values ($1, $2)`, table, column),
			roleID, id); err != nil {
			return mapRBACErr(err)
		}
	}
	return tx.Commit()
}

// SetPackageMenus replaces a package's menu ceiling.
func (s *Store) SetPackageMenus(ctx context.Context, packageID string, menuIDs []string) error {
	return s.replacePackageGrants(ctx, "set_package_menus", packageID, "package_menus", "menu_id", menuIDs)
}

// SetPackagePermissions replaces a package's permission ceiling.
func (s *Store) SetPackagePermissions(ctx context.Context, packageID string, permissionIDs []string) error {
	return s.replacePackageGrants(ctx, "set_package_permissions", packageID, "package_permissions", "permission_id", permissionIDs)
}

func (s *Store) replacePackageGrants(ctx context.Context, operation, packageID, table, column string, ids []string) error {
	if _, err := s.guard.Scope(ctx, "packages", operation); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from packages where id = $1`, packageID).Scan(&exists); err != nil {
		return mapRBACErr(err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`delete from %s where package_id = $1`, table), packageID); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`insert into %s (package_id, %s) values ($1, $2)`, table, column),
			packageID, id); err != nil {
			return mapRBACErr(err)
		}
	}
	return tx.Commit()
}

// AssignRole grants roleID to userID. User and role must belong to the
// same tenant, and both must be visible in the caller's scope.
func (s *Store) AssignRole(ctx context.Context, userID, roleID string) error {
	cond, err := s.guard.Scope(ctx, "roles", "assign_role")
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	userWhere, userArgs := cond.And("where id = $1", []any{userID})
	var userTenant string
	if err := tx.QueryRowContext(ctx, `select tenant_id from users `+userWhere, userArgs...).Scan(&userTenant); err != nil {
		return mapRBACErr(err)
	}

	roleWhere, roleArgs := cond.And("where id = $1", []any{roleID})
	var roleTenant string
	if err := tx.QueryRowContext(ctx, `select tenant_id from roles `+roleWhere, roleArgs...).Scan(&roleTenant); err != nil {
		return mapRBACErr(err)
	}
	if userTenant != roleTenant {
		return fmt.Errorf("%w: user and role belong to different tenants", rbac.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `
		insert into user_roles (user_id, role_id, tenant_id)
		values ($1, $2, $3)
	`, userID, roleID, userTenant); err != nil {
		return mapRBACErr(err)
	}
	return tx.Commit()
}

// RemoveRole revokes roleID from userID. Missing assignment is NotFound.
func (s *Store) RemoveRole(ctx context.Context, userID, roleID string) error {
	cond, err := s.guard.Scope(ctx, "roles", "remove_role")
	if err != nil {
		return err
	}
	where, args := cond.And("where user_id = $1 and role_id = $2", []any{userID, roleID})

	res, err := s.db.ExecContext(ctx, `delete from user_roles `+where, args...)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

// PackageForRole resolves which package cache a role mutation touches:
// the package assigned to the role's tenant.
func (s *Store) PackageForRole(ctx context.Context, roleID string) (string, bool, error) {
	var packageID string
	err := s.db.QueryRowContext(ctx, `
		select tp.package_id
		from tenant_packages tp
		join roles r on r.tenant_id = tp.tenant_id
		where r.id = $1
	`, roleID).Scan(&packageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return packageID, true, nil
}
