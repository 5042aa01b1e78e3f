package auth

import (
	"context"
	"errors"
	"testing"

	"atrium.org/internal/identity"
)

type fakeUserStore struct {
	users map[string]User // keyed tenant/username
	err   error
}

func (s *fakeUserStore) FindByUsername(_ context.Context, tenantID, username string) (User, error) {
	if s.err != nil {
		return User{}, s.err
	}
	if u, ok := s.users[tenantID+"/"+username]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func scopedCtx(tenantID, username string) context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{
		TenantID: tenantID,
		Username: username,
	})
}

func storeWithUser(t *testing.T, user User, password string) *fakeUserStore {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user.PasswordHash = hash
	return &fakeUserStore{users: map[string]User{user.TenantID + "/" + user.Username: user}}
}

func TestVerifySuccess(t *testing.T) {
	store := storeWithUser(t, User{
		ID:       "u-1",
		TenantID: "t-1",
		Username: "alice",
		Status:   StatusActive,
	}, "s3cret")
	v := NewStoreVerifier(store)

	user, err := v.Verify(scopedCtx("t-1", "alice"), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != "u-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestVerifyRejections(t *testing.T) {
	store := storeWithUser(t, User{
		ID:       "u-1",
		TenantID: "t-1",
		Username: "alice",
		Status:   StatusActive,
	}, "s3cret")
	v := NewStoreVerifier(store)

	cases := []struct {
		name     string
		ctx      context.Context
		username string
		password string
	}{
		{"wrong password", scopedCtx("t-1", "alice"), "alice", "nope"},
		{"unknown user", scopedCtx("t-1", "alice"), "mallory", "s3cret"},
		{"wrong tenant scope", scopedCtx("t-2", "alice"), "alice", "s3cret"},
		{"no tenant bound", context.Background(), "alice", "s3cret"},
		{"empty password", scopedCtx("t-1", "alice"), "alice", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.ctx, tc.username, tc.password); !errors.Is(err, ErrAuthenticationFailed) {
				t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
			}
		})
	}
}

func TestVerifyDisabledUser(t *testing.T) {
	store := storeWithUser(t, User{
		ID:       "u-1",
		TenantID: "t-1",
		Username: "alice",
		Status:   StatusDisabled,
	}, "s3cret")
	v := NewStoreVerifier(store)

	if _, err := v.Verify(scopedCtx("t-1", "alice"), "alice", "s3cret"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("disabled user must not authenticate, got %v", err)
	}
}

func TestVerifySurfacesTransientErrors(t *testing.T) {
	transient := errors.New("connection refused")
	v := NewStoreVerifier(&fakeUserStore{err: transient})

	_, err := v.Verify(scopedCtx("t-1", "alice"), "alice", "s3cret")
	if !errors.Is(err, transient) {
		t.Fatalf("transient store error must surface, got %v", err)
	}
	if errors.Is(err, ErrAuthenticationFailed) {
		t.Fatal("transient error must not masquerade as bad credentials")
	}
}
