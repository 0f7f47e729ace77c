package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/vistoria/pkg/configs"
)

// GroupcacheKV 本节点数据保存在本地 map；配置对等节点时，本地未命中的键经 groupcache 从所属节点读取.
type GroupcacheKV struct {
	group *groupcache.Group
	peers *groupcache.HTTPPool
	data  map[string][]byte
	mu    sync.RWMutex
}

type groupcacheGetter struct {
	kv *GroupcacheKV
}

func (g *groupcacheGetter) Get(_ context.Context, key string, dest groupcache.Sink) error {
	val, ok := g.kv.local(key)
	if !ok {
		return ErrNotFound
	}

	return dest.SetBytes(val)
}

// NewGroupcacheKV 创建 Groupcache KV 实例.
func NewGroupcacheKV(_ context.Context, config any) (KVStore, error) {
	gcConfig, ok := config.(*configs.GroupcacheKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid Groupcache config")
	}

	kv := &GroupcacheKV{data: make(map[string][]byte)}

	kv.group = groupcache.GetGroup(gcConfig.Name)
	if kv.group == nil {
		kv.group = groupcache.NewGroup(gcConfig.Name, gcConfig.CacheBytes, &groupcacheGetter{kv: kv})
	}

	if len(gcConfig.Peers) > 0 {
		kv.peers = groupcache.NewHTTPPoolOpts(gcConfig.Self, &groupcache.HTTPPoolOptions{})
		kv.peers.Set(gcConfig.Peers...)
	}

	return kv, nil
}

func (g *GroupcacheKV) local(key string) ([]byte, bool) {
	g.mu.RLock()
	raw, ok := g.data[key]
	g.mu.RUnlock()

	if !ok {
		return nil, false
	}

	val, expired, err := decodeWithTTL(raw, time.Now())
	if err != nil || expired {
		g.mu.Lock()
		delete(g.data, key)
		g.mu.Unlock()

		return nil, false
	}

	return val, true
}

func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	if val, ok := g.local(key); ok {
		out := make([]byte, len(val))
		copy(out, val)

		return out, nil
	}

	if g.peers == nil {
		return nil, ErrNotFound
	}

	var data []byte
	if err := g.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, ErrNotFound
	}

	return data, nil
}

func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	encoded, err := encodeWithTTL(data, ttl)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.data[key] = encoded
	g.mu.Unlock()

	return nil
}

func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

func (g *GroupcacheKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := g.local(key)

	return ok, nil
}

func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	g.mu.RLock()

	candidates := make([]string, 0, len(g.data))
	for key := range g.data {
		if matchPattern(pattern, key) {
			candidates = append(candidates, key)
		}
	}

	g.mu.RUnlock()

	keys := candidates[:0]
	for _, k := range candidates {
		if _, ok := g.local(k); ok {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

// Close groupcache 没有显式的关闭方法.
func (g *GroupcacheKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}
