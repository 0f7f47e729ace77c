// Package app 提供应用程序的初始化、装配与运行.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/vistoria/pkg/api"
	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/jobs"
	"github.com/yeisme/vistoria/pkg/internal/service"
	"github.com/yeisme/vistoria/pkg/internal/storage"
	"github.com/yeisme/vistoria/pkg/log"
	"github.com/yeisme/vistoria/pkg/metrics"
	"github.com/yeisme/vistoria/pkg/middleware"
	"github.com/yeisme/vistoria/pkg/scheduler"
	"github.com/yeisme/vistoria/pkg/tracing"
	"github.com/yeisme/vistoria/pkg/tz"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Engine    *gin.Engine
	Manager   *storage.Manager
	Services  *service.Services
	Scheduler *scheduler.Scheduler

	config *configs.AppConfig
	logger zerolog.Logger
}

// Bootstrap 加载配置并初始化日志与时区；命令行子命令共用.
func Bootstrap(configPath string) (*configs.AppConfig, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	log.Init()

	cfg := configs.GetConfig()
	if err := tz.SetZone(cfg.Workflow.Timezone); err != nil {
		return nil, fmt.Errorf("init timezone: %w", err)
	}

	return cfg, nil
}

// NewApp 组装服务：存储、业务服务、定时任务、中间件与路由；config 由 Bootstrap 加载.
func NewApp(ctx context.Context, config *configs.AppConfig) (*App, error) {
	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	svc := service.FromManager(manager, config)

	sched, err := scheduler.New(tz.Location())
	if err != nil {
		_ = manager.Close()

		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(sched, config.Uploads, svc.Uploads); err != nil {
		_ = manager.Close()

		return nil, err
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	if config.Server.Gzip {
		// PDF 与图片本身已压缩
		engine.Use(gzip.Gzip(gzip.DefaultCompression,
			gzip.WithExcludedExtensions([]string{".pdf", ".png", ".jpg", ".jpeg", ".gif", ".webp"}),
			gzip.WithExcludedPathsRegexs([]string{`^/relatorio/\d+/pdf$`, `^/api/imagens/`, `^/api/uploads/temp/`}),
		))
	}

	engine.Use(
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(config.RateLimit),
		middleware.CircuitBreakerMiddleware(config.CircuitBreaker),
		middleware.StorageMiddleware(manager),
		middleware.ServicesMiddleware(svc),
		middleware.SchedulerMiddleware(sched),
		middleware.IdentityMiddleware(config.Auth, svc),
	)

	api.RegisterGroup(engine, config, svc)

	if config.Metrics.Enabled {
		if err := metrics.StartMetricsServer(config.Metrics, engine); err != nil {
			l.Warn().Err(err).Msg("metrics server not started")
		}
	}

	return &App{
		Engine:    engine,
		Manager:   manager,
		Services:  svc,
		Scheduler: sched,
		config:    config,
		logger:    log.Component("app"),
	}, nil
}

// Run 启动 HTTP 服务与调度器，收到 SIGINT/SIGTERM 后优雅退出.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	a.Scheduler.Start()

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown")
	}

	if err := a.Scheduler.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("scheduler shutdown")
	}

	if err := tracing.ShutdownTracer(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("tracer shutdown")
	}

	if err := a.Manager.Close(); err != nil {
		a.logger.Error().Err(err).Msg("storage shutdown")
	}

	return runErr
}
