package middleware_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/middleware"
)

func breakerEngine() *gin.Engine {
	cfg := configs.Defaults().CircuitBreaker
	cfg.Enabled = true
	cfg.MinRequests = 2
	cfg.FailureRate = 0.5

	r := gin.New()
	r.Use(middleware.CircuitBreakerMiddleware(cfg))
	r.GET("/relatorio/:id/pdf", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/api/relatorios/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/health/db", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	return r
}

func TestBreakerOpensPerRoute(t *testing.T) {
	r := breakerEngine()

	for i := range 2 {
		if w := do(r, "/relatorio/1/pdf", nil); w.Code != http.StatusInternalServerError {
			t.Fatalf("call %d: got %d", i, w.Code)
		}
	}

	w := do(r, "/relatorio/2/pdf", nil)
	if w.Code != http.StatusServiceUnavailable || w.Header().Get("Retry-After") == "" {
		t.Fatalf("breaker not open: %d %v", w.Code, w.Header())
	}

	if w := do(r, "/api/relatorios/1", nil); w.Code != http.StatusOK {
		t.Fatalf("other route affected: %d", w.Code)
	}
}

func TestBreakerSkipsHealth(t *testing.T) {
	r := breakerEngine()

	for range 5 {
		if w := do(r, "/api/health/db", nil); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("got %d", w.Code)
		}
	}

	// 健康检查的 503 来自处理器本身，不能带 Retry-After
	if w := do(r, "/api/health/db", nil); w.Header().Get("Retry-After") != "" {
		t.Fatal("health probe was short-circuited")
	}
}
