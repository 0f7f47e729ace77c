// Package cache 基于 KV 的缓存：泛型 JSON 值、按 xxhash 指纹寻址的字节块，以及 singleflight 合并并发回源.
//
//	c := cache.New(kvClient, "pdf:")
//	data, hit, err := c.Bytes(ctx, cache.Key("relatorio", "7", fingerprint), 10*time.Minute, func(ctx context.Context) ([]byte, error) {
//		return renderer.Render(doc)
//	})
//
// KV 读写失败只会降级为回源，不向调用方返回.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Store 缓存依赖的 KV 操作，*kv.Client 满足它.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Cache 缓存实例.
type Cache struct {
	store  Store
	prefix string
	group  singleflight.Group
}

// 各用途的键前缀.
const (
	PrefixPDF      = "pdf:" // 渲染后的报告 PDF
	PrefixResponse = "rc:"  // HTTP 响应缓存（照片）
)

// New 创建缓存；prefix 附加在所有键之前.
func New(store Store, prefix string) *Cache {
	return &Cache{store: store, prefix: prefix}
}

// PhotoKey 照片响应缓存的键；删除照片时按同一键失效.
func PhotoKey(id string) string {
	return "foto:" + id
}

// Key 由若干部分计算稳定的短键（xxhash64 十六进制）.
func Key(parts ...string) string {
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "\x00")), 16)
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get 读取并解码 JSON 值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 编码并写入 JSON 值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.store.Set(ctx, c.key(key), data, ttl)
}

// GetOrSet 命中直接返回，否则调用 getter 并尽力写回.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	value, err := getter()
	if err != nil {
		return value, err
	}

	_ = Set(ctx, c, key, value, ttl)

	return value, nil
}

// Bytes 读取原始字节；未命中时同一个键的并发调用只执行一次 fn.
// hit 表示结果来自 KV.
func (c *Cache) Bytes(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if data, err := c.store.Get(ctx, c.key(key)); err == nil {
		return data, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if ttl > 0 {
			_ = c.store.Set(context.WithoutCancel(ctx), c.key(key), data, ttl)
		}

		return data, nil
	})
	if err != nil {
		return nil, false, err
	}

	return v.([]byte), false, nil
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.key(key))
}

// Clear 删除本缓存前缀下的所有键.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, c.prefix+"*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return err
		}
	}

	return nil
}
