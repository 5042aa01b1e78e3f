// Package session issues, resolves, and revokes the bearer tokens that
// authenticate requests. Records live in the key-value store under the
// sha256 of the token; a per-(tenant, username) index set enables the
// online-user listing and forced logout.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"atrium.org/internal/kv"
)

// ErrDenied reports an attempt to administer a session outside the
// caller's tenant.
var ErrDenied = errors.New("session belongs to another tenant")

const (
	tokenKeyPrefix = "session:token:"
	indexKeyPrefix = "session:index:"

	// Records are refreshed to the full lifetime once the remaining TTL
	// falls below this fraction of it.
	refreshDivisor = 10
)

// Snapshot is the principal state captured at login. It is what the
// authn middleware binds to the request context, so a mid-session role
// change takes effect on the next login, not retroactively.
type Snapshot struct {
	UserID      string `json:"user_id"`
	Nickname    string `json:"nickname,omitempty"`
	TenantAdmin bool   `json:"tenant_admin"`
}

// Session is the stored record for one issued token.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	TenantID  string    `json:"tenant_id"`
	User      Snapshot  `json:"user"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// OnlineUser is the projection returned by Online. SessionID is the
// token hash, usable with Kick; the raw token is never exposed.
type OnlineUser struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	TenantID  string    `json:"tenant_id"`
	Nickname  string    `json:"nickname,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Store manages session records over a kv.Store.
type Store struct {
	kv       kv.Store
	minter   *Minter
	lifetime time.Duration
	log      *zap.Logger
}

// NewStore builds a session store. lifetime governs both the record TTL
// and the sliding-refresh low-water mark.
func NewStore(store kv.Store, minter *Minter, lifetime time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: store, minter: minter, lifetime: lifetime, log: log}
}

// Create mints a token and persists the session record plus its index
// membership, both with the configured TTL. Store errors surface to the
// caller; a login must not succeed without a resolvable session.
func (s *Store) Create(ctx context.Context, username, tenantID string, snapshot Snapshot, clientIP, userAgent string) (string, error) {
	token, err := s.minter.Mint(username, tenantID)
	if err != nil {
		return "", err
	}
	sess := Session{
		Token:     token,
		Username:  username,
		TenantID:  tenantID,
		User:      snapshot,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		IssuedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}

	hash := hashToken(token)
	if err := s.kv.Set(ctx, tokenKeyPrefix+hash, string(payload), s.lifetime); err != nil {
		return "", err
	}
	index := indexKey(tenantID, username)
	if err := s.kv.SAdd(ctx, index, hash); err != nil {
		return "", err
	}
	if err := s.kv.Expire(ctx, index, s.lifetime); err != nil {
		return "", err
	}
	return token, nil
}

// Get resolves a token to its session. Absent is a normal outcome used
// to drive unauthenticated responses; only store unavailability is an
// error. Resolving a live session near expiry refreshes both the record
// and its index entry to the full lifetime.
func (s *Store) Get(ctx context.Context, token string) (Session, bool, error) {
	if _, err := s.minter.Parse(token); err != nil {
		return Session{}, false, nil
	}
	hash := hashToken(token)
	key := tokenKeyPrefix + hash
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return Session{}, false, err
	}
	if !ok {
		return Session{}, false, nil
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.log.Warn("discarding malformed session record", zap.String("key", key), zap.Error(err))
		return Session{}, false, nil
	}

	if err := s.maybeRefresh(ctx, key, indexKey(sess.TenantID, sess.Username)); err != nil {
		s.log.Warn("session refresh failed", zap.String("key", key), zap.Error(err))
	}
	return sess, true, nil
}

// Remove deletes the session record and its index membership. Removing
// an unknown token is a no-op.
func (s *Store) Remove(ctx context.Context, token string) error {
	hash := hashToken(token)
	return s.removeByHash(ctx, hash)
}

// Kick removes a session by its hash id, forcing the holder to log in
// again. Unknown ids are a no-op, so racing kicks are safe. Non-super
// callers may only kick sessions of their own tenant; a mismatch is
// ErrDenied and the session survives.
func (s *Store) Kick(ctx context.Context, sessionID, tenantID string, isSuper bool) error {
	raw, ok, err := s.kv.Get(ctx, tokenKeyPrefix+sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !isSuper {
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err == nil && sess.TenantID != tenantID {
			return ErrDenied
		}
	}
	return s.removeByHash(ctx, sessionID)
}

// RemoveAll terminates every session of one principal via the
// per-(tenant, username) index set and returns the number removed.
// Stale index members whose records already expired are pruned as a
// side effect.
func (s *Store) RemoveAll(ctx context.Context, tenantID, username string) (int, error) {
	index := indexKey(tenantID, username)
	hashes, err := s.kv.SMembers(ctx, index)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, hash := range hashes {
		key := tokenKeyPrefix + hash
		_, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return removed, err
		}
		if ok {
			if err := s.kv.Del(ctx, key); err != nil {
				return removed, err
			}
			removed++
		}
		if err := s.kv.SRem(ctx, index, hash); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Online lists active sessions. Non-super callers only see sessions of
// their own tenant.
func (s *Store) Online(ctx context.Context, tenantID string, isSuper bool) ([]OnlineUser, error) {
	keys, err := s.kv.Scan(ctx, tokenKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	out := make([]OnlineUser, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			s.log.Warn("skipping malformed session record", zap.String("key", key), zap.Error(err))
			continue
		}
		if !isSuper && sess.TenantID != tenantID {
			continue
		}
		out = append(out, OnlineUser{
			SessionID: strings.TrimPrefix(key, tokenKeyPrefix),
			Username:  sess.Username,
			TenantID:  sess.TenantID,
			Nickname:  sess.User.Nickname,
			ClientIP:  sess.ClientIP,
			UserAgent: sess.UserAgent,
			IssuedAt:  sess.IssuedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.Before(out[j].IssuedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

func (s *Store) removeByHash(ctx context.Context, hash string) error {
	key := tokenKeyPrefix + hash
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.kv.Del(ctx, key); err != nil {
		return err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// Record gone; nothing left to unindex.
		return nil
	}
	return s.kv.SRem(ctx, indexKey(sess.TenantID, sess.Username), hash)
}

// maybeRefresh extends both keys to the full lifetime once the record
// has consumed most of its TTL. Checking the low-water mark keeps hot
// sessions from rewriting expiry on every request.
func (s *Store) maybeRefresh(ctx context.Context, key, index string) error {
	remaining, ok, err := s.kv.TTL(ctx, key)
	if err != nil || !ok {
		return err
	}
	if remaining <= 0 || remaining >= s.lifetime/refreshDivisor {
		return nil
	}
	if err := s.kv.Expire(ctx, key, s.lifetime); err != nil {
		return err
	}
	return s.kv.Expire(ctx, index, s.lifetime)
}

func indexKey(tenantID, username string) string {
	return indexKeyPrefix + tenantID + ":" + username
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
