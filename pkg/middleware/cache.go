package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/vistoria/pkg/cache"
)

const (
	DefaultMaxBodyBytes = 8 << 20 // 8MB，覆盖常见照片
	defaultTTL          = 5 * time.Minute
	headerCache         = "X-Cache"
)

// CacheConfig 响应缓存配置.
type CacheConfig struct {
	Cache *appcache.Cache // 必须
	TTL   time.Duration

	Methods     []string // 默认 GET,HEAD
	StatusCodes []int    // 默认 200

	KeyFunc     func(*gin.Context) string
	Skipper     func(*gin.Context) bool // 返回 true 跳过缓存
	VaryHeaders []string                // 参与 key 的请求头

	// BypassHeader 请求带有该头时跳过缓存，默认 X-Cache-Bypass
	BypassHeader string
	// MaxBodyBytes 超过该大小的响应不缓存，0 表示不限制
	MaxBodyBytes int
}

// DefaultCacheConfig 默认配置.
func DefaultCacheConfig(c *appcache.Cache) CacheConfig {
	return CacheConfig{
		Cache:        c,
		TTL:          defaultTTL,
		Methods:      []string{http.MethodGet, http.MethodHead},
		StatusCodes:  []int{http.StatusOK},
		BypassHeader: "X-Cache-Bypass",
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// CacheMiddleware 把可缓存的 GET 响应写入 KV；命中时直接回放，支持 ETag / If-None-Match.
// 响应带 Cache-Control: no-store 或 private 时不缓存；缓存读写失败只会退回正常处理.
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Cache == nil {
		panic("CacheMiddleware: Cache cannot be nil")
	}

	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{http.MethodGet, http.MethodHead}
	}

	if len(cfg.StatusCodes) == 0 {
		cfg.StatusCodes = []int{http.StatusOK}
	}

	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return buildDefaultKey(c, cfg.VaryHeaders) }
	}

	methods := make(map[string]struct{}, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods[strings.ToUpper(m)] = struct{}{}
	}

	statuses := make(map[int]struct{}, len(cfg.StatusCodes))
	for _, s := range cfg.StatusCodes {
		statuses[s] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := methods[c.Request.Method]; !ok || bypass(c, cfg) {
			c.Next()

			return
		}

		key := cfg.KeyFunc(c)
		if replay(c, cfg.Cache, key) {
			return
		}

		bw := &bodyCaptureWriter{ResponseWriter: c.Writer, max: cfg.MaxBodyBytes}
		c.Writer = bw
		c.Header(headerCache, "MISS")
		c.Next()

		store(c, cfg, key, bw, statuses)
	}
}

// responseCacheEntry 缓存的响应.
type responseCacheEntry struct {
	Status   int               `json:"s"`
	Header   map[string]string `json:"h,omitempty"`
	Body     []byte            `json:"b,omitempty"`
	ETag     string            `json:"e,omitempty"`
	StoredAt int64             `json:"t"`
}

// buildDefaultKey 方法 + 路由 + 实际路径 + 排序后的 query 与 vary 头，取 xxhash.
func buildDefaultKey(c *gin.Context, vary []string) string {
	var b strings.Builder

	b.WriteString(c.Request.Method)
	b.WriteByte(':')
	b.WriteString(c.FullPath())
	b.WriteByte(':')
	b.WriteString(c.Request.URL.Path)

	if q := c.Request.URL.Query(); len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}

		sort.Strings(keys)
		b.WriteByte('?')

		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}

			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(strings.Join(q[k], ","))
		}
	}

	if len(vary) > 0 {
		hs := append([]string(nil), vary...)
		sort.Strings(hs)
		b.WriteString("|hv=")

		for i, h := range hs {
			if i > 0 {
				b.WriteByte('&')
			}

			b.WriteString(h)
			b.WriteByte('=')
			b.WriteString(c.GetHeader(h))
		}
	}

	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

// bodyCaptureWriter 复制响应体；超过上限后停止复制并标记截断.
type bodyCaptureWriter struct {
	gin.ResponseWriter

	buf       bytes.Buffer
	max       int
	truncated bool
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.max > 0 && w.buf.Len()+len(b) > w.max {
			w.truncated = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}

	return w.ResponseWriter.Write(b)
}

func bypass(c *gin.Context, cfg CacheConfig) bool {
	if cfg.Skipper != nil && cfg.Skipper(c) {
		return true
	}

	return cfg.BypassHeader != "" && c.GetHeader(cfg.BypassHeader) != ""
}

// replay 命中时回放缓存响应并中止后续处理.
func replay(c *gin.Context, cache *appcache.Cache, key string) bool {
	entry, err := appcache.Get[responseCacheEntry](c.Request.Context(), cache, key)
	if err != nil {
		return false
	}

	h := c.Writer.Header()
	for k, v := range entry.Header {
		h.Set(k, v)
	}

	h.Set("ETag", entry.ETag)
	h.Set("Age", fmt.Sprintf("%.0f", time.Since(time.Unix(0, entry.StoredAt)).Seconds()))
	h.Set(headerCache, "HIT")

	if entry.ETag != "" && c.GetHeader("If-None-Match") == entry.ETag {
		c.AbortWithStatus(http.StatusNotModified)

		return true
	}

	c.Status(entry.Status)

	if c.Request.Method != http.MethodHead {
		_, _ = c.Writer.Write(entry.Body)
	}

	c.Abort()

	return true
}

func cacheable(h http.Header) bool {
	cc := strings.ToLower(h.Get("Cache-Control"))

	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "private")
}

// store 写入缓存；写入与请求取消无关.
func store(c *gin.Context, cfg CacheConfig, key string, bw *bodyCaptureWriter, statuses map[int]struct{}) {
	status := bw.Status()
	if _, ok := statuses[status]; !ok || bw.truncated || !cacheable(bw.Header()) {
		return
	}

	body := append([]byte(nil), bw.buf.Bytes()...)
	hdr := make(map[string]string, len(bw.Header()))

	for k, v := range bw.Header() {
		if len(v) > 0 && k != headerCache {
			hdr[k] = v[0]
		}
	}

	etag := hdr["Etag"]
	if etag == "" {
		etag = fmt.Sprintf("%q", fmt.Sprintf("%x", xxhash.Sum64(body)))
	}

	entry := responseCacheEntry{Status: status, Header: hdr, Body: body, ETag: etag, StoredAt: time.Now().UnixNano()}
	ctx := context.WithoutCancel(c.Request.Context())

	_ = appcache.Set(ctx, cfg.Cache, key, entry, cfg.TTL)
}
