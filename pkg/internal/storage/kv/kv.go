// Package kv 提供键值存储的接口和实现：内存、Redis、NATS KV 与 groupcache.
//
// 用途：暂存上传的元数据（带 TTL）、PDF 与响应缓存.
package kv

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/yeisme/vistoria/pkg/configs"
)

// ErrNotFound 键不存在或已过期.
var ErrNotFound = errors.New("kv: key not found")

// KVStore 定义键值存储接口.
type KVStore interface {
	// Get 获取键的值，不存在返回 ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 设置键的值，ttl<=0 表示不过期.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Keys 按 glob 模式列出键（"" 表示全部）.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// KVType 键值存储类型.
type KVType string

const (
	KVTypeMemory     KVType = "memory"
	KVTypeRedis      KVType = "redis"
	KVTypeNATS       KVType = "nats"
	KVTypeGroupcache KVType = "groupcache"
)

// KVFactory 定义创建 KVStore 的工厂函数类型.
type KVFactory func(ctx context.Context, config any) (KVStore, error)

var kvFactories = make(map[KVType]KVFactory)

// RegisterKVFactory 注册 KV 工厂函数.
func RegisterKVFactory(kvType KVType, factory KVFactory) {
	kvFactories[kvType] = factory
}

// GetRegisteredKVTypes 返回已注册的 KV 类型列表（已排序）.
func GetRegisteredKVTypes() []KVType {
	types := make([]KVType, 0, len(kvFactories))
	for kvType := range kvFactories {
		types = append(types, kvType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// NewKVStore 根据类型创建 KVStore 实例.
func NewKVStore(ctx context.Context, kvType KVType, config any) (KVStore, error) {
	factory, exists := kvFactories[kvType]
	if !exists {
		return nil, fmt.Errorf("unsupported KV type: %s", kvType)
	}

	return factory(ctx, config)
}

// Client 带键前缀的 KV 客户端.
type Client struct {
	KVStore
	prefix string
	kind   KVType
}

// NewKVClient 按配置创建客户端.
func NewKVClient(ctx context.Context, cfg *configs.KVConfig) (*Client, error) {
	kvType := KVType(cfg.Type)

	var sub any

	switch kvType {
	case KVTypeRedis:
		sub = &cfg.Redis
	case KVTypeNATS:
		sub = &cfg.NATS
	case KVTypeGroupcache:
		sub = &cfg.Groupcache
	}

	store, err := NewKVStore(ctx, kvType, sub)
	if err != nil {
		return nil, err
	}

	return &Client{KVStore: store, prefix: cfg.KeyPrefix, kind: kvType}, nil
}

// Wrap 包装已有 store，测试与一次性命令使用.
func Wrap(store KVStore, prefix string) *Client {
	return &Client{KVStore: store, prefix: prefix, kind: KVTypeMemory}
}

// Kind 返回后端类型.
func (c *Client) Kind() KVType {
	return c.kind
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.KVStore.Get(ctx, c.key(key))
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.KVStore.Set(ctx, c.key(key), value, ttl)
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.KVStore.Delete(ctx, c.key(key))
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	return c.KVStore.Exists(ctx, c.key(key))
}

// Keys 返回去掉前缀后的键.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	keys, err := c.KVStore.Keys(ctx, c.key(pattern))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, c.prefix))
	}

	sort.Strings(out)

	return out, nil
}

// Ping 通过读取哨兵键检查后端可用.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Exists(ctx, "health:ping")

	return err
}

// matchPattern glob 匹配；空模式匹配全部.
func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	ok, err := path.Match(pattern, key)
	if err != nil {
		return pattern == key
	}

	return ok
}
