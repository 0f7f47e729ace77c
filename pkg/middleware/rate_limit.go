package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/vistoria/pkg/configs"
)

const (
	limiterSweepInterval = 10 * time.Minute
	maxLimiterEntries    = 10000
)

// RateLimitMiddleware 令牌桶限流.
//   - global: 全部请求共用一个桶
//   - ip: 按客户端 IP
//   - user: 按 X-User-Id，缺失时退回 IP
//   - header:<Name>: 按任意请求头，缺失时退回 IP
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	buckets := newLimiterSet(rate.Limit(cfg.RPS), cfg.Burst)
	keyOf := rateKeyFunc(strings.ToLower(strings.TrimSpace(cfg.Key)))
	retryAfter := strconv.Itoa(max(1, int(1/cfg.RPS)))

	return func(c *gin.Context) {
		if !buckets.get(keyOf(c)).Allow() {
			c.Header("Retry-After", retryAfter)
			abort(c, http.StatusTooManyRequests, "muitas requisições, tente novamente em instantes")

			return
		}

		c.Next()
	}
}

func rateKeyFunc(mode string) func(*gin.Context) string {
	fromHeader := func(h string) func(*gin.Context) string {
		return func(c *gin.Context) string {
			if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
				return h + ":" + v
			}

			return clientIP(c)
		}
	}

	switch {
	case mode == "" || mode == "global":
		return func(*gin.Context) string { return "global" }
	case mode == "user":
		return fromHeader(HeaderUserID)
	case strings.HasPrefix(mode, "header:"):
		return fromHeader(strings.TrimPrefix(mode, "header:"))
	default:
		return clientIP
	}
}

// limiterSet 按键分配的令牌桶；条目过多时在下次清扫时整体重置.
type limiterSet struct {
	mu    sync.Mutex
	items map[string]*rate.Limiter
	limit rate.Limit
	burst int
	swept time.Time
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{items: map[string]*rate.Limiter{}, limit: limit, burst: burst, swept: time.Now()}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := time.Now(); now.Sub(s.swept) > limiterSweepInterval {
		if len(s.items) > maxLimiterEntries {
			s.items = map[string]*rate.Limiter{}
		}

		s.swept = now
	}

	l, ok := s.items[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.items[key] = l
	}

	return l
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}

	return "unknown"
}
