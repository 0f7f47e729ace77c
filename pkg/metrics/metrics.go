// Package metrics 提供 Prometheus 指标：HTTP 请求、报告状态流转、邮件投递与 PDF 渲染.
//
// Example:
//
//	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
//		log.Fatal(err)
//	}
//
//	metrics.Transitions.WithLabelValues("approve", "aprovado").Inc()
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 注册 pprof 端点
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/vistoria/pkg/configs"
)

const namespace = "vistoria"

var (
	// RequestCounter HTTP 请求计数.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP 请求耗时.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Transitions 工作流状态流转次数.
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_transitions_total",
			Help:      "Workflow transitions committed, by event and target status",
		},
		[]string{"event", "status"},
	)

	// MailSent 每个收件人的投递结果.
	MailSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_deliveries_total",
			Help:      "Per-recipient mail deliveries by result",
		},
		[]string{"result"},
	)

	// PDFRender 渲染耗时，mode 为 render 或 cached.
	PDFRender = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdf_render_seconds",
			Help:      "PDF render duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	// UploadsStaged 暂存上传次数与被 GC 清理的临时文件.
	UploadsStaged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_staged_total",
		Help:      "Temporary uploads accepted",
	})
	TempCollected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_temp_collected_total",
		Help:      "Expired temporary uploads removed",
	})

	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

// InitMetrics 注册收集器；重复调用无副作用.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	registerOnce.Do(func() {
		if config.RuntimeMetrics {
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}

		registry.MustRegister(
			RequestCounter, RequestDuration,
			Transitions, MailSent, PDFRender,
			UploadsStaged, TempCollected,
		)
	})

	return nil
}

// StartMetricsServer 在 engine 上挂载 /metrics 与可选的 pprof.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	path := config.Path
	if path == "" {
		path = "/metrics"
	}

	engine.GET(path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}

// GetRegistry 获取 Prometheus 注册表，gorm prometheus 插件等外部收集器复用它.
func GetRegistry() *prometheus.Registry {
	return registry
}
