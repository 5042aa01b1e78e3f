// Package pg provides the Postgres repositories. Every query that can
// touch tenant-scoped rows is funneled through the tenant guard, so the
// isolation predicate is applied centrally instead of per call site.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"atrium.org/internal/auth"
	"atrium.org/internal/rbac"
	"atrium.org/internal/tenant"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store carries the shared connection pool and the tenant guard.
type Store struct {
	db    *sql.DB
	guard *tenant.Guard
}

var (
	_ auth.UserStore  = (*Store)(nil)
	_ rbac.Directory  = (*Store)(nil)
	_ rbac.Catalog    = (*Store)(nil)
	_ rbac.AdminStore = (*Store)(nil)
)

// Open connects to Postgres and applies pool defaults; callers may
// retune via DB(). guard must not be nil.
func Open(dsn string, guard *tenant.Guard) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, guard), nil
}

// New wraps an existing pool. Test entry point (sqlmock).
func New(db *sql.DB, guard *tenant.Guard) *Store {
	return &Store{db: db, guard: guard}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// PolicyRegistry declares the tenant policies for the pg repositories.
// Catalog and package tables hold platform-global rows and are never
// filtered; everything else resolves to the default policy.
func PolicyRegistry() *tenant.Registry {
	return tenant.NewRegistry().
		Component("catalog", tenant.PolicySkip).
		Component("packages", tenant.PolicySkip)
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapRBACErr translates driver errors into the rbac taxonomy.
func mapRBACErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.ErrNotFound
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return rbac.ErrConflict
		case pgErrForeignKeyViolation:
			return rbac.ErrNotFound
		}
	}
	return err
}

// mapAuthErr translates driver errors into the auth taxonomy.
func mapAuthErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}
