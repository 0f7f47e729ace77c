package middleware_test

import (
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/cache"
	"github.com/yeisme/vistoria/pkg/internal/testutil"
	"github.com/yeisme/vistoria/pkg/middleware"
)

func cachedEngine(calls *atomic.Int32) *gin.Engine {
	cfg := middleware.DefaultCacheConfig(cache.New(testutil.NewKV(), cache.PrefixResponse))

	r := gin.New()
	r.GET("/img/:id", middleware.CacheMiddleware(cfg), func(c *gin.Context) {
		calls.Add(1)

		if c.Param("id") == "missing" {
			c.Header("Cache-Control", "no-store")
		} else {
			c.Header("Cache-Control", "max-age=300")
		}

		c.Data(http.StatusOK, "image/png", []byte("png-"+c.Param("id")))
	})

	return r
}

func TestCacheReplaysHit(t *testing.T) {
	var calls atomic.Int32

	r := cachedEngine(&calls)

	first := do(r, "/img/1", nil)
	if first.Code != http.StatusOK || first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first: %d %q", first.Code, first.Header().Get("X-Cache"))
	}

	second := do(r, "/img/1", nil)
	if second.Header().Get("X-Cache") != "HIT" || second.Body.String() != "png-1" {
		t.Fatalf("second: %q %q", second.Header().Get("X-Cache"), second.Body.String())
	}

	if ct := second.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type not replayed: %q", ct)
	}

	etag := second.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing etag on hit")
	}

	if w := do(r, "/img/1", map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("conditional: %d", w.Code)
	}

	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}

	if w := do(r, "/img/1", map[string]string{"X-Cache-Bypass": "1"}); w.Header().Get("X-Cache") != "" {
		t.Fatalf("bypass still cached: %q", w.Header().Get("X-Cache"))
	}

	if calls.Load() != 2 {
		t.Fatalf("bypass did not reach handler, calls=%d", calls.Load())
	}
}

func TestCacheSkipsNoStore(t *testing.T) {
	var calls atomic.Int32

	r := cachedEngine(&calls)

	for range 2 {
		if w := do(r, "/img/missing", nil); w.Header().Get("X-Cache") != "MISS" {
			t.Fatalf("no-store response replayed: %q", w.Header().Get("X-Cache"))
		}
	}

	if calls.Load() != 2 {
		t.Fatalf("handler ran %d times", calls.Load())
	}
}
