package kv

import (
	"context"
	"path"
	"sync"
	"time"
)

// Memory is an in-process Store with TTL support. It backs tests and the
// single-node dev configuration; production deployments use Redis.
type Memory struct {
	mu   sync.Mutex
	now  func() time.Time
	vals map[string]memoryEntry
	sets map[string]*memorySet
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:  time.Now,
		vals: make(map[string]memoryEntry),
		sets: make(map[string]*memorySet),
	}
}

// SetClock overrides the time source. Test use only.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.vals[key]
	if !ok || m.expired(entry.expiresAt) {
		delete(m.vals, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.vals[key] = entry
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.vals, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.vals[key]
	if !ok || m.expired(entry.expiresAt) {
		delete(m.vals, key)
		return 0, false, nil
	}
	if entry.expiresAt.IsZero() {
		return 0, true, nil
	}
	return entry.expiresAt.Sub(m.now()), true, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.vals[key]; ok && !m.expired(entry.expiresAt) {
		entry.expiresAt = m.now().Add(ttl)
		m.vals[key] = entry
	}
	if set, ok := m.sets[key]; ok && !m.expired(set.expiresAt) {
		set.expiresAt = m.now().Add(ttl)
	}
	return nil
}

func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok || m.expired(set.expiresAt) {
		set = &memorySet{members: make(map[string]struct{})}
		m.sets[key] = set
	}
	for _, member := range members {
		set.members[member] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok || m.expired(set.expiresAt) {
		delete(m.sets, key)
		return nil
	}
	for _, member := range members {
		delete(set.members, member)
	}
	if len(set.members) == 0 {
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok || m.expired(set.expiresAt) {
		delete(m.sets, key)
		return nil, nil
	}
	out := make([]string, 0, len(set.members))
	for member := range set.members {
		out = append(out, member)
	}
	return out, nil
}

func (m *Memory) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key, entry := range m.vals {
		if m.expired(entry.expiresAt) {
			delete(m.vals, key)
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *Memory) expired(at time.Time) bool {
	return !at.IsZero() && !m.now().Before(at)
}
