package kv_test

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/storage/kv"
)

func TestMemoryKVTTL(t *testing.T) {
	ctx := context.Background()

	store, err := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	if err := store.Set(ctx, "upload:temp:a", []byte("meta"), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	if err := store.Set(ctx, "upload:temp:b", []byte("keep"), 0); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "upload:temp:a")
	if err != nil || string(got) != "meta" {
		t.Fatalf("expected meta before expiry, got %q %v", got, err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := store.Get(ctx, "upload:temp:a"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}

	keys, err := store.Keys(ctx, "upload:temp:*")
	if err != nil {
		t.Fatal(err)
	}

	if len(keys) != 1 || keys[0] != "upload:temp:b" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestClientPrefix(t *testing.T) {
	ctx := context.Background()

	raw, _ := kv.NewMemoryKV(ctx, nil)
	cli := kv.Wrap(raw, "vistoria:")

	if err := cli.Set(ctx, "pdf:1", []byte("%PDF"), 0); err != nil {
		t.Fatal(err)
	}

	if ok, _ := raw.Exists(ctx, "vistoria:pdf:1"); !ok {
		t.Fatal("expected prefixed key in the underlying store")
	}

	keys, err := cli.Keys(ctx, "pdf:*")
	if err != nil || len(keys) != 1 || keys[0] != "pdf:1" {
		t.Fatalf("unexpected keys %v %v", keys, err)
	}

	if err := cli.Delete(ctx, "pdf:1"); err != nil {
		t.Fatal(err)
	}

	if _, err := cli.Get(ctx, "pdf:1"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// benchBackend 描述一个参与基准测试的 KV 后端；外部服务通过环境变量开启.
type benchBackend struct {
	name   string
	kind   kv.KVType
	cfg    any
	enable string // 非空时需要设置该环境变量
}

func benchBackends() []benchBackend {
	return []benchBackend{
		{name: "memory", kind: kv.KVTypeMemory},
		{name: "groupcache", kind: kv.KVTypeGroupcache, cfg: &configs.GroupcacheKVConfig{
			Name: "bench-groupcache", CacheBytes: 32 << 20, Self: "http://127.0.0.1:0",
		}},
		{name: "redis", kind: kv.KVTypeRedis, enable: "ENABLE_REDIS_BENCH", cfg: &configs.RedisKVConfig{
			Addr: envOr("REDIS_ADDR", "127.0.0.1:6379"),
		}},
		{name: "nats", kind: kv.KVTypeNATS, enable: "ENABLE_NATS_BENCH", cfg: &configs.NATSKVConfig{
			URL: envOr("NATS_URL", "nats://127.0.0.1:4222"), Bucket: envOr("NATS_BUCKET", "bench-kv"),
		}},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

// 负载大小对应实际用途：暂存上传元数据、照片响应、一份带照片的 PDF.
var benchPayloads = []struct {
	name string
	size int
	ttl  time.Duration
}{
	{"temp-meta", 256, 24 * time.Hour},
	{"photo", 256 << 10, time.Minute},
	{"pdf", 2 << 20, 0},
}

// BenchmarkKV 对每个后端执行 Set/Get/Delete；redis 与 nats 需要 ENABLE_*_BENCH=1.
func BenchmarkKV(b *testing.B) {
	ctx := context.Background()

	for _, be := range benchBackends() {
		b.Run(be.name, func(b *testing.B) {
			if be.enable != "" && os.Getenv(be.enable) == "" {
				b.Skipf("set %s=1 to enable", be.enable)
			}

			store, err := kv.NewKVStore(ctx, be.kind, be.cfg)
			if err != nil {
				b.Skipf("%s not available: %v", be.name, err)
			}

			defer func() { _ = store.Close() }()

			for _, p := range benchPayloads {
				payload := make([]byte, p.size)
				_, _ = crand.Read(payload)

				b.Run(p.name, func(b *testing.B) {
					b.ReportAllocs()
					b.SetBytes(int64(p.size))

					var seq atomic.Uint64

					b.RunParallel(func(pb *testing.PB) {
						for pb.Next() {
							// 连字符分隔，NATS KV 不接受冒号
							key := fmt.Sprintf("bench-%s-%d", p.name, seq.Add(1))
							roundTrip(ctx, b, store, key, payload, p.ttl)
						}
					})
				})
			}
		})
	}
}

func roundTrip(ctx context.Context, b *testing.B, store kv.KVStore, key string, payload []byte, ttl time.Duration) {
	if err := store.Set(ctx, key, payload, ttl); err != nil {
		b.Errorf("set %s: %v", key, err)

		return
	}

	if _, err := store.Get(ctx, key); err != nil {
		b.Errorf("get %s: %v", key, err)
	}

	if err := store.Delete(ctx, key); err != nil {
		b.Errorf("delete %s: %v", key, err)
	}
}
