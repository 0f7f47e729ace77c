package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/log"
)

var errServerFailure = errors.New("server failure")

// breakerSet 按名称懒创建熔断器.
type breakerSet struct {
	cfg      configs.CircuitBreakerConfig
	breakers sync.Map // name -> *gobreaker.CircuitBreaker
}

func (s *breakerSet) get(name string) *gobreaker.CircuitBreaker {
	if cb, ok := s.breakers.Load(name); ok {
		return cb.(*gobreaker.CircuitBreaker)
	}

	cb, _ := s.breakers.LoadOrStore(name, gobreaker.NewCircuitBreaker(s.settings(name)))

	return cb.(*gobreaker.CircuitBreaker)
}

func (s *breakerSet) settings(name string) gobreaker.Settings {
	cfg := s.cfg
	logger := log.Component("breaker")

	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
		},
	}
}

// CircuitBreakerMiddleware 基于 gobreaker 的熔断；5xx 计为失败，打开后直接返回 503.
// PerRoute 时以路由模板（如 /relatorio/:id/pdf）区分熔断器，未匹配路由共用 "unmatched".
func CircuitBreakerMiddleware(cfg configs.CircuitBreakerConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	set := &breakerSet{cfg: cfg}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range cfg.SkipPrefixes {
			if strings.HasPrefix(path, p) {
				c.Next()

				return
			}
		}

		name := "http"
		if cfg.PerRoute {
			name = c.Request.Method + " " + c.FullPath()
			if c.FullPath() == "" {
				name = "unmatched"
			}
		}

		_, err := set.get(name).Execute(func() (any, error) {
			c.Next()

			if c.Writer.Status() >= http.StatusInternalServerError {
				return nil, errServerFailure
			}

			return nil, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.Header("Retry-After", strconv.Itoa(cfg.TimeoutSeconds))
			abort(c, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		}
	}
}
