package identity

import "context"

type identityContextKey struct{}

// WithIdentity binds the identity to the context for the lifetime of the
// request call tree. The binding unwinds with the context; it never leaks
// into an unrelated request on a reused goroutine.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// FromContext extracts the bound identity. Callers must treat absence as
// "no tenant scope can be derived" and fail closed.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}

// TenantID returns the bound tenant id, if any.
func TenantID(ctx context.Context) (string, bool) {
	id, ok := FromContext(ctx)
	if !ok || id.TenantID == "" {
		return "", false
	}
	return id.TenantID, true
}

// Username returns the bound username, if any.
func Username(ctx context.Context) (string, bool) {
	id, ok := FromContext(ctx)
	if !ok || id.Username == "" {
		return "", false
	}
	return id.Username, true
}

// IsSuperAdmin reports whether the bound identity is the platform root.
// An unbound context is never super admin.
func IsSuperAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.IsSuperAdmin()
}
