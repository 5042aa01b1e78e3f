package auth

import (
	"context"
	"time"
)

// User account states.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User is a principal scoped to one tenant. (TenantID, Username) is
// unique; the same username may exist independently in other tenants.
type User struct {
	ID           string
	TenantID     string
	Username     string
	Nickname     string
	PasswordHash string
	TenantAdmin  bool
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore resolves principals for authentication.
type UserStore interface {
	FindByUsername(ctx context.Context, tenantID, username string) (User, error)
}
