package tenant

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"atrium.org/internal/identity"
)

// ErrUnresolved is returned when the filter must apply but no tenant is
// bound to the calling context. The data layer fails closed rather than
// running an unscoped query.
var ErrUnresolved = errors.New("tenant: filter required but no tenant bound")

// Guard computes the tenant predicate for each data-access call.
type Guard struct {
	column   string
	registry *Registry
	lenient  bool
	log      *zap.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithColumn overrides the tenant column name (default "tenant_id").
func WithColumn(column string) GuardOption {
	return func(g *Guard) {
		if column != "" {
			g.column = column
		}
	}
}

// WithLenient restores the legacy behavior for the unresolved-tenant
// boundary condition: instead of failing closed the query proceeds
// unfiltered with a warning. Only bootstrap paths should use this.
func WithLenient() GuardOption {
	return func(g *Guard) { g.lenient = true }
}

// WithLogger sets the warning logger.
func WithLogger(log *zap.Logger) GuardOption {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGuard builds a Guard over a policy registry.
func NewGuard(registry *Registry, opts ...GuardOption) *Guard {
	if registry == nil {
		registry = NewRegistry()
	}
	g := &Guard{
		column:   "tenant_id",
		registry: registry,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Condition is the resolved predicate for one call. Inactive conditions
// leave queries untouched.
type Condition struct {
	Active   bool
	Column   string
	TenantID string
}

// Scope resolves the policy for component.operation against the identity
// bound to ctx and returns the predicate to apply for this one call.
//
// PolicyForce always activates; PolicySkip never does; PolicyDefault
// activates unless the caller is the platform super admin. When the
// filter should activate but no tenant is bound, Scope fails closed with
// ErrUnresolved (lenient mode logs and proceeds unfiltered instead).
func (g *Guard) Scope(ctx context.Context, component, operation string) (Condition, error) {
	policy := g.registry.Resolve(component, operation)

	var enable bool
	switch policy {
	case PolicyForce:
		enable = true
	case PolicySkip:
		enable = false
	default:
		enable = !identity.IsSuperAdmin(ctx)
	}
	if !enable {
		return Condition{}, nil
	}

	tenantID, ok := identity.TenantID(ctx)
	if !ok {
		if g.lenient {
			g.log.Warn("tenant filter active but no tenant bound; proceeding unfiltered",
				zap.String("component", component),
				zap.String("operation", operation),
				zap.String("policy", policy.String()))
			return Condition{}, nil
		}
		return Condition{}, fmt.Errorf("%w: %s.%s", ErrUnresolved, component, operation)
	}
	return Condition{Active: true, Column: g.column, TenantID: tenantID}, nil
}

// ExplicitScope builds an active condition for a known tenant id. Used
// by work running outside a request flow (scheduled tasks, event
// handlers firing after the original context unwound), which re-binds
// the filter from the persisted tenant id of the record it touches.
func (g *Guard) ExplicitScope(tenantID string) Condition {
	return Condition{Active: true, Column: g.column, TenantID: tenantID}
}

// And appends the tenant predicate to a where clause. The tenant value
// is appended to args, so the generated placeholder number is always
// len(args)+1 regardless of where the clause sits in the final query.
// An empty where yields "where <column> = $n".
func (c Condition) And(where string, args []any) (string, []any) {
	if !c.Active {
		return where, args
	}
	args = append(args, c.TenantID)
	if where == "" {
		return fmt.Sprintf("where %s = $%d", c.Column, len(args)), args
	}
	return fmt.Sprintf("%s and %s = $%d", where, c.Column, len(args)), args
}
