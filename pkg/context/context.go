// Package context 把存储管理器、业务服务与会话 Actor 放进 context，在请求链与后台任务之间传递.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/vistoria/pkg/internal/service"
	"github.com/yeisme/vistoria/pkg/internal/storage"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
)

type ContextKey string

const (
	StorageManagerKey ContextKey = "storageManager"
	ServicesKey       ContextKey = "services"
	ActorKey          ContextKey = "actor"
)

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, StorageManagerKey, mgr)
}

// GetManager 从 context 中获取 Manager.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(StorageManagerKey).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

// WithServices 注入业务服务.
func WithServices(ctx context.Context, svc *service.Services) context.Context {
	return context.WithValue(ctx, ServicesKey, svc)
}

// GetServices 取业务服务，未注入时为 nil.
func GetServices(ctx context.Context) *service.Services {
	if svc, ok := ctx.Value(ServicesKey).(*service.Services); ok {
		return svc
	}

	return nil
}

// WithActor 注入会话 Actor.
func WithActor(ctx context.Context, a workflow.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// GetActor 取会话 Actor；没有身份时返回匿名 Actor.
func GetActor(ctx context.Context) workflow.Actor {
	if a, ok := ctx.Value(ActorKey).(workflow.Actor); ok {
		return a
	}

	return workflow.Actor{}
}

// WithTraceContext 创建带有追踪上下文的 logger.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		return logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
