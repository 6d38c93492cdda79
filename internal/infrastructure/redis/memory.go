package redis

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store with the same TTL and list semantics as the
// live store. It backs local development and tests.
type Memory struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	lists  map[string]*memoryList
}

type memoryEntry struct {
	value    string
	deadline time.Time
}

type memoryList struct {
	items    []string
	deadline time.Time
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]memoryEntry),
		lists:  make(map[string]*memoryList),
	}
}

func (m *Memory) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = memoryEntry{value: value, deadline: deadline(expiration)}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.values[key]
	if !ok || expired(entry.deadline) {
		delete(m.values, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.lists, key)
	return nil
}

func (m *Memory) Append(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[key]
	if !ok || expired(list.deadline) {
		list = &memoryList{}
		m.lists[key] = list
	}
	list.items = append(list.items, value)
	return nil
}

func (m *Memory) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[key]
	if !ok || expired(list.deadline) {
		delete(m.lists, key)
		return nil, nil
	}

	n := int64(len(list.items))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}

	out := make([]string, stop-start+1)
	copy(out, list.items[start:stop+1])
	return out, nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.values[key]; ok {
		entry.deadline = deadline(ttl)
		m.values[key] = entry
	}
	if list, ok := m.lists[key]; ok {
		list.deadline = deadline(ttl)
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// ExpireNow force-expires a key. Test helper.
func (m *Memory) ExpireNow(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.lists, key)
}

func deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func expired(d time.Time) bool {
	return !d.IsZero() && time.Now().After(d)
}
