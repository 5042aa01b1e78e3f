package auth

import (
	"context"
	"errors"
	"fmt"

	"atrium.org/internal/identity"
)

// CredentialVerifier authenticates (username, password) within the
// tenant already bound to ctx. Every rejection maps to
// ErrAuthenticationFailed so callers cannot distinguish an unknown
// user from a wrong password.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (User, error)
}

// StoreVerifier checks credentials against the user store.
type StoreVerifier struct {
	users UserStore
}

// NewStoreVerifier builds a store-backed verifier.
func NewStoreVerifier(users UserStore) *StoreVerifier {
	return &StoreVerifier{users: users}
}

// Verify resolves the user in the bound tenant and compares passwords.
func (v *StoreVerifier) Verify(ctx context.Context, username, password string) (User, error) {
	tenantID, ok := identity.TenantID(ctx)
	if !ok {
		return User{}, fmt.Errorf("%w: no tenant scope", ErrAuthenticationFailed)
	}
	if username == "" || password == "" {
		return User{}, ErrAuthenticationFailed
	}
	user, err := v.users.FindByUsername(ctx, tenantID, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, err
	}
	if user.Status != StatusActive {
		return User{}, ErrAuthenticationFailed
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	return user, nil
}
