package rbac

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"atrium.org/internal/kv"
)

const packageCachePrefix = "rbac:package:"

// packageEntry is the cached projection of one package's catalog.
type packageEntry struct {
	Menus       []Menu   `json:"menus"`
	Permissions []string `json:"permissions"`
}

// Cache holds package-scoped catalog lookups. Correctness does not rest
// on the TTL: every grant/revoke deletes the affected key synchronously
// before returning, the TTL only bounds the cost of a missed delete.
type Cache struct {
	store kv.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewCache builds a package cache over the key-value store.
func NewCache(store kv.Store, ttl time.Duration, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{store: store, ttl: ttl, log: log}
}

func (c *Cache) getPackage(ctx context.Context, packageID string) (packageEntry, bool) {
	if c == nil || c.store == nil {
		return packageEntry{}, false
	}
	raw, ok, err := c.store.Get(ctx, packageCachePrefix+packageID)
	if err != nil {
		c.log.Warn("package cache read failed", zap.String("package_id", packageID), zap.Error(err))
		return packageEntry{}, false
	}
	if !ok {
		return packageEntry{}, false
	}
	var entry packageEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Corrupt entry; treat as a miss and let the next write heal it.
		return packageEntry{}, false
	}
	return entry, true
}

func (c *Cache) setPackage(ctx context.Context, packageID string, entry packageEntry) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, packageCachePrefix+packageID, string(raw), c.ttl); err != nil {
		c.log.Warn("package cache write failed", zap.String("package_id", packageID), zap.Error(err))
	}
}

// InvalidatePackage drops the cached entry for a package. Mutating
// operations call it synchronously before reporting success.
func (c *Cache) InvalidatePackage(ctx context.Context, packageID string) error {
	if c == nil || c.store == nil || packageID == "" {
		return nil
	}
	return c.store.Del(ctx, packageCachePrefix+packageID)
}
