package pg

import (
	"context"
	"database/sql"

	"atrium.org/internal/auth"
	"atrium.org/internal/ids"
	"atrium.org/internal/rbac"
)

// FindByUsername resolves a user within one tenant. The tenant scope is
// re-bound explicitly from the caller's argument: at login time no
// identity is authenticated yet, so the ambient context carries nothing
// trustworthy.
func (s *Store) FindByUsername(ctx context.Context, tenantID, username string) (auth.User, error) {
	cond := s.guard.ExplicitScope(tenantID)
	where, args := cond.And("where username = $1", []any{username})

	var (
		user     auth.User
		nickname sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, tenant_id, username, nickname, password_hash, tenant_admin, status, created_at, updated_at
		from users `+where,
		args...,
	).Scan(&user.ID, &user.TenantID, &user.Username, &nickname, &user.PasswordHash,
		&user.TenantAdmin, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return auth.User{}, mapAuthErr(err)
	}
	if nickname.Valid {
		user.Nickname = nickname.String
	}
	return user, nil
}

// CreateUser inserts a user into tenantID. Non-super callers may only
// write into their own tenant; a duplicate username within the tenant
// maps to ErrConflict, an unknown tenant to ErrNotFound.
func (s *Store) CreateUser(ctx context.Context, tenantID, username, nickname, passwordHash string, tenantAdmin bool) (auth.User, error) {
	cond, err := s.guard.Scope(ctx, "users", "create")
	if err != nil {
		return auth.User{}, err
	}
	if cond.Active && cond.TenantID != tenantID {
		return auth.User{}, auth.ErrForbidden
	}

	var (
		user auth.User
		nick sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
		insert into users (id, tenant_id, username, nickname, password_hash, tenant_admin, status)
		values ($1, $2, $3, nullif($4, ''), $5, $6, $7)
		returning id, tenant_id, username, nickname, password_hash, tenant_admin, status, created_at, updated_at
	`, ids.New(), tenantID, username, nickname, passwordHash, tenantAdmin, auth.StatusActive,
	).Scan(&user.ID, &user.TenantID, &user.Username, &nick, &user.PasswordHash,
		&user.TenantAdmin, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return auth.User{}, mapAuthErr(err)
	}
	if nick.Valid {
		user.Nickname = nick.String
	}
	return user, nil
}

// Subject implements rbac.Directory over the same users table.
func (s *Store) Subject(ctx context.Context, tenantID, username string) (rbac.Subject, error) {
	cond := s.guard.ExplicitScope(tenantID)
	where, args := cond.And("where username = $1", []any{username})

	var (
		subject  rbac.Subject
		nickname sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, tenant_id, username, nickname, tenant_admin
		from users `+where,
		args...,
	).Scan(&subject.UserID, &subject.TenantID, &subject.Username, &nickname, &subject.TenantAdmin)
	if err != nil {
		return rbac.Subject{}, mapRBACErr(err)
	}
	if nickname.Valid {
		subject.Nickname = nickname.String
	}
	return subject, nil
}
