// Package identity carries the authenticated caller through a request.
//
// An Identity is bound into the request context right after token
// resolution and is immutable for the rest of the call tree. Nothing in
// this package is shared between requests; concurrent handlers each see
// their own binding.
package identity

// Reserved platform constants. The super admin is the single identity
// exempt from tenant filtering; both values are bootstrap constants, not
// deployment configuration (see DESIGN.md).
const (
	// PlatformTenantID is the tenant reserved for platform operation.
	PlatformTenantID = "000000"

	// RootUsername is the reserved platform root account name.
	RootUsername = "admin"

	// SuperAdminCode is the permission code granted only to the super
	// admin, appended unconditionally to its permission set.
	SuperAdminCode = "admin"
)

// Identity describes the authenticated principal for one request.
type Identity struct {
	TenantID    string
	Username    string
	UserID      string
	TenantAdmin bool
}

// IsSuperAdmin reports whether this identity is the platform root.
func (id Identity) IsSuperAdmin() bool {
	return id.TenantID == PlatformTenantID && id.Username == RootUsername
}
