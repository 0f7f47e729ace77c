package handle

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/vistoria/pkg/context"
	"github.com/yeisme/vistoria/pkg/internal/storage"
	"github.com/yeisme/vistoria/pkg/internal/types"
)

const probeTimeout = 2 * time.Second

// probe 检查一个组件，返回实现类型.
type probe func(ctx context.Context, mgr *storage.Manager) (kind string, err error)

var (
	errNotInitialized = errors.New("not initialized")

	probes = map[string]probe{
		"db":      probeDB,
		"storage": probeStorage,
		"kv":      probeKV,
		"mq":      probeMQ,
	}
	// probeOrder 汇总结果的输出顺序
	probeOrder = []string{"db", "storage", "kv", "mq"}
)

func probeDB(ctx context.Context, mgr *storage.Manager) (string, error) {
	dbc := mgr.GetDBClient()
	if dbc == nil {
		return "", errNotInitialized
	}

	return string(dbc.Dialect()), dbc.Ping(ctx)
}

// probeStorage S3 时检查 bucket，本地目录时列出暂存区.
func probeStorage(ctx context.Context, mgr *storage.Manager) (string, error) {
	store := mgr.GetBlobStore()
	if store == nil {
		return "", errNotInitialized
	}

	if s3c := mgr.GetS3Client(); s3c != nil {
		return store.Kind(), s3c.HealthCheck(ctx)
	}

	_, err := store.List(ctx, "uploads/temp/")

	return store.Kind(), err
}

func probeKV(ctx context.Context, mgr *storage.Manager) (string, error) {
	kvc := mgr.GetKVClient()
	if kvc == nil {
		return "", errNotInitialized
	}

	return string(kvc.Kind()), kvc.Ping(ctx)
}

// probeMQ 只确认客户端已建立；事件发布本身是尽力而为.
func probeMQ(_ context.Context, mgr *storage.Manager) (string, error) {
	mqc := mgr.GetMQClient()
	if mqc == nil {
		return "", errNotInitialized
	}

	return string(mqc.Kind()), nil
}

func runProbe(ctx context.Context, mgr *storage.Manager, component string) types.HealthResponse {
	res := types.HealthResponse{Component: component, Status: "ok"}

	if mgr == nil {
		res.Status, res.Error = "unhealthy", "storage manager not initialized"

		return res
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	kind, err := probes[component](ctx, mgr)
	res.Kind = kind

	if err != nil {
		res.Status, res.Error = "unhealthy", component+": "+err.Error()
	}

	return res
}

func writeProbe(c *gin.Context, res types.HealthResponse) {
	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, res)
}

// Health 并发检查全部组件，任一失败时返回 503.
//
//	@Summary	就绪检查
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthSummary
//	@Failure	503	{object}	types.HealthSummary
//	@Router		/api/health [get]
func Health(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	out := types.HealthSummary{Status: "ok", Components: make([]types.HealthResponse, len(probeOrder))}

	var wg sync.WaitGroup

	for i, name := range probeOrder {
		wg.Add(1)

		go func() {
			defer wg.Done()

			out.Components[i] = runProbe(c.Request.Context(), mgr, name)
		}()
	}

	wg.Wait()

	status := http.StatusOK

	for _, r := range out.Components {
		if r.Status != "ok" {
			out.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, out)
}

// HealthDB 数据库健康检查.
//
//	@Summary	数据库健康检查
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/health/db [get]
func HealthDB(c *gin.Context) {
	writeProbe(c, runProbe(c.Request.Context(), ctxPkg.GetManager(c.Request.Context()), "db"))
}

// HealthStorage 产物存储健康检查（本地目录或 S3 bucket）.
//
//	@Summary	产物存储健康检查
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/health/storage [get]
func HealthStorage(c *gin.Context) {
	writeProbe(c, runProbe(c.Request.Context(), ctxPkg.GetManager(c.Request.Context()), "storage"))
}

// HealthMQ 消息队列健康检查.
//
//	@Summary	消息队列健康检查
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/health/mq [get]
func HealthMQ(c *gin.Context) {
	writeProbe(c, runProbe(c.Request.Context(), ctxPkg.GetManager(c.Request.Context()), "mq"))
}

// HealthKV KV 健康检查.
//
//	@Summary	KV 健康检查
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/health/kv [get]
func HealthKV(c *gin.Context) {
	writeProbe(c, runProbe(c.Request.Context(), ctxPkg.GetManager(c.Request.Context()), "kv"))
}
