// Package rbac computes the effective authorization of a principal: the
// menu tree it may navigate and the permission codes it may exercise.
package rbac

import "time"

// Menu is a flat catalog record. ParentID empty or "0" marks a root.
// Sort nil means "order last".
type Menu struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Sort      *int      `json:"sort,omitempty"`
	Hidden    bool      `json:"hidden,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Permission is a leaf capability; Code is the atom unioned into a
// principal's effective permission set.
type Permission struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	MenuID string `json:"menu_id,omitempty"`
}

// Role groups menus and permissions inside one tenant.
type Role struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Package defines the ceiling of what any user of a subscribed tenant
// may ever see, independent of role.
type Package struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tenant is an isolated customer organization.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PackageID string    `json:"package_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MenuNode is a node of the computed menu tree returned to clients.
type MenuNode struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Path         string      `json:"path,omitempty"`
	Sort         *int        `json:"sort,omitempty"`
	IsPermission bool        `json:"is_permission,omitempty"`
	Children     []*MenuNode `json:"children,omitempty"`
}

// Authorization is the effective payload for one principal. It is
// recomputed per request and never partially applied.
type Authorization struct {
	Menus       []*MenuNode `json:"menus"`
	Permissions []string    `json:"permissions"`
}

// Subject is the aggregator's view of a principal.
type Subject struct {
	UserID      string
	TenantID    string
	Username    string
	Nickname    string
	TenantAdmin bool
}
