package kvstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process fake satisfying Store, used by coordinator and
// service unit tests in place of a real Redis instance.
type MemoryStore struct {
	mu       sync.Mutex
	strings  map[string]string
	expireAt map[string]time.Time
	sets     map[string]map[string]bool
	lists    map[string][]string
	zsets    map[string]map[string]float64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		strings:  make(map[string]string),
		expireAt: make(map[string]time.Time),
		sets:     make(map[string]map[string]bool),
		lists:    make(map[string][]string),
		zsets:    make(map[string]map[string]float64),
	}
}

func (m *MemoryStore) expired(key string) bool {
	exp, ok := m.expireAt[key]
	return ok && time.Now().After(exp)
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.strings, key)
		return "", ErrNotFound
	}
	v, ok := m.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	delete(m.expireAt, key)
	return nil
}

func (m *MemoryStore) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	m.expireAt[key] = time.Now().Add(ttl)
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.strings, key)
	}
	if _, exists := m.strings[key]; exists {
		return false, nil
	}
	m.strings[key] = value
	if ttl > 0 {
		m.expireAt[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.strings, key)
	delete(m.expireAt, key)
	delete(m.sets, key)
	delete(m.lists, key)
	delete(m.zsets, key)
	return nil
}

func (m *MemoryStore) Incr(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if v, ok := m.strings[key]; ok {
		cur, _ = strconv.ParseInt(v, 10, 64)
	}
	cur += delta
	m.strings[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireAt[key] = time.Now().Add(ttl)
	return nil
}

func (m *MemoryStore) ScanPrefix(_ context.Context, prefix string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.strings {
		if strings.HasPrefix(k, prefix) && !m.expired(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (m *MemoryStore) SAdd(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[key] == nil {
		m.sets[key] = make(map[string]bool)
	}
	m.sets[key][member] = true
	return nil
}

func (m *MemoryStore) SRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[key], member)
	return nil
}

func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.sets[key] {
		out = append(out, k)
	}
	return out, nil
}

func (m *MemoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[key][member], nil
}

func (m *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

func (m *MemoryStore) LPush(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	s, e := clampRange(start, stop, int64(len(list)))
	if s > e {
		return nil, nil
	}
	out := make([]string, e-s+1)
	copy(out, list[s:e+1])
	return out, nil
}

func (m *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	s, e := clampRange(start, stop, int64(len(list)))
	if s > e {
		m.lists[key] = nil
		return nil
	}
	m.lists[key] = append([]string{}, list[s:e+1]...)
	return nil
}

func clampRange(start, stop, length int64) (int64, int64) {
	if length == 0 {
		return 0, -1
	}
	if start < 0 {
		start = length + start
	}
	if stop < 0 {
		stop = length + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	return start, stop
}

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

func (m *MemoryStore) ZRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zsets[key], member)
	return nil
}

func (m *MemoryStore) ZRevRangeByScore(_ context.Context, key string, maxScore *float64, limit int) ([]ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ScoredMember
	for member, score := range m.zsets[key] {
		if maxScore != nil && score >= *maxScore {
			continue
		}
		out = append(out, ScoredMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ZRemRangeByRank(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.zsets[key]
	if len(members) == 0 {
		return nil
	}
	type kv struct {
		k string
		v float64
	}
	sorted := make([]kv, 0, len(members))
	for k, v := range members {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].v < sorted[j].v })
	s, e := clampRange(start, stop, int64(len(sorted)))
	if s > e {
		return nil
	}
	for i := s; i <= e; i++ {
		delete(members, sorted[i].k)
	}
	return nil
}

func (m *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.zsets[key])), nil
}

func (m *MemoryStore) Close() error { return nil }
