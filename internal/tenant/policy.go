// Package tenant enforces row-level tenant isolation on the data-access
// layer. Repositories route every query through a Guard, which appends a
// tenant-equality predicate according to the policy resolved for the
// operation. The predicate is computed per call and carried in the query
// itself, so nothing sticks to a pooled connection between calls.
package tenant

import "strings"

// Policy governs whether the tenant filter applies to an operation.
type Policy int

const (
	// PolicyDefault activates the filter unless the caller is the
	// platform super admin.
	PolicyDefault Policy = iota

	// PolicyForce always activates the filter, super admin included.
	PolicyForce

	// PolicySkip never activates the filter. Reserved for catalog data
	// that is not tenant-scoped (global menus, permission definitions).
	PolicySkip
)

func (p Policy) String() string {
	switch p {
	case PolicyForce:
		return "force"
	case PolicySkip:
		return "skip"
	default:
		return "default"
	}
}

// Registry resolves the policy for a repository operation. The most
// specific declaration wins: operation override, then component
// override, then PolicyDefault. Operations are keyed "component.op".
type Registry struct {
	components map[string]Policy
	operations map[string]Policy
}

// NewRegistry builds an empty registry; every operation resolves to
// PolicyDefault until overrides are declared.
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]Policy),
		operations: make(map[string]Policy),
	}
}

// Component declares a policy for every operation of a component.
func (r *Registry) Component(component string, p Policy) *Registry {
	r.components[component] = p
	return r
}

// Operation declares a policy for a single operation, overriding the
// component declaration.
func (r *Registry) Operation(component, operation string, p Policy) *Registry {
	r.operations[opKey(component, operation)] = p
	return r
}

// Resolve returns the effective policy for component.operation.
func (r *Registry) Resolve(component, operation string) Policy {
	if p, ok := r.operations[opKey(component, operation)]; ok {
		return p
	}
	if p, ok := r.components[component]; ok {
		return p
	}
	return PolicyDefault
}

func opKey(component, operation string) string {
	return strings.TrimSpace(component) + "." + strings.TrimSpace(operation)
}
