// Package storage provides the shared durable key/value store that pages
// (API clients) use to hand state to each other.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get for a missing key
var ErrNotFound = errors.New("key not found")

// KV is a string key/value store. SetMany and TakeMany are atomic: no
// reader observes a partially applied batch.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// SetMany writes every entry in set and removes every key in del.
	SetMany(ctx context.Context, set map[string]string, del []string) error
	// TakeMany reads and deletes keys, returning only those that existed.
	TakeMany(ctx context.Context, keys []string) (map[string]string, error)
}

// MemoryKV is an in-process KV
type MemoryKV struct {
	values map[string]string
	mu     sync.RWMutex
}

func NewMemory() *MemoryKV {
	return &MemoryKV{
		values: make(map[string]string),
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryKV) SetMany(_ context.Context, set map[string]string, del []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range del {
		delete(m.values, k)
	}
	for k, v := range set {
		m.values[k] = v
	}
	return nil
}

func (m *MemoryKV) TakeMany(_ context.Context, keys []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			result[k] = v
			delete(m.values, k)
		}
	}
	return result, nil
}
