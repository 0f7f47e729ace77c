package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryKV 基于 sync.Map 的内存 KV 实现，惰性清理过期键.
type MemoryKV struct {
	data sync.Map
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(_ context.Context, _ any) (KVStore, error) {
	return &MemoryKV{}, nil
}

func (m *MemoryKV) load(key string) ([]byte, bool) {
	raw, ok := m.data.Load(key)
	if !ok {
		return nil, false
	}

	val, expired, err := decodeWithTTL(raw.([]byte), time.Now())
	if err != nil || expired {
		m.data.Delete(key)

		return nil, false
	}

	return val, true
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := m.load(key)
	if !ok {
		return nil, ErrNotFound
	}

	result := make([]byte, len(val))
	copy(result, val)

	return result, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	encoded, err := encodeWithTTL(data, ttl)
	if err != nil {
		return err
	}

	m.data.Store(key, encoded)

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)

	return nil
}

func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.load(key)

	return ok, nil
}

func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	m.data.Range(func(key, _ any) bool {
		k, ok := key.(string)
		if !ok || !matchPattern(pattern, k) {
			return true
		}

		if _, live := m.load(k); live {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
