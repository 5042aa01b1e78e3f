// Package kv abstracts the key-value store used for sessions and the
// authorization cache.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached. It is
// a transient condition; callers surface it instead of retrying here.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store is the key-value collaborator contract. String keys with TTL plus
// set primitives; set add/remove must be atomic at the store level so
// concurrent logins and kickouts never race through read-modify-write.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// TTL returns the remaining lifetime of key. Missing keys report ok=false.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Scan returns all keys matching the glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)
}
