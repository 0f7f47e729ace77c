// Package storage 聚合所有存储资源：数据库、产物存储（本地或 S3）、KV 与消息队列.
//
// Example:
//
//	mgr, err := storage.Init(ctx, configs.GetConfig())
//	if err != nil {
//		// 处理错误
//	}
//	defer mgr.Close()
//
//	db := mgr.GetDBClient()
//	blobs := mgr.GetBlobStore()
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
	dbc "github.com/yeisme/vistoria/pkg/internal/storage/db"
	kvc "github.com/yeisme/vistoria/pkg/internal/storage/kv"
	mqc "github.com/yeisme/vistoria/pkg/internal/storage/mq"
	s3c "github.com/yeisme/vistoria/pkg/internal/storage/s3"
	nlog "github.com/yeisme/vistoria/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB   *dbc.Client
	S3   *s3c.Client // 仅 uploads.backend=s3 时存在
	Blob blob.Store
	KV   *kvc.Client
	MQ   *mqc.Client
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init 初始化默认存储，重复调用只返回已初始化实例.
func Init(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	mgrOnce.Do(func() {
		mgr, mgrErr = New(ctx, cfg)
	})

	return mgr, mgrErr
}

// New 创建新的 Manager。数据库与产物存储失败是致命的；KV 与 MQ 失败时退回内存实现.
func New(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	l := nlog.Logger()
	m := &Manager{}

	dbi, err := dbc.New(ctx, &cfg.DB)
	if err != nil {
		return nil, err
	}

	m.DB = dbi

	if cfg.DB.AutoMigrate {
		if err := dbi.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	switch cfg.Uploads.Backend {
	case configs.BlobBackendS3:
		s3i, err := s3c.New(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}

		m.S3 = s3i
		m.Blob = blob.NewS3(s3i)
	default:
		m.Blob = blob.NewLocal(cfg.Uploads.Root)
	}

	if kvi, err := kvc.NewKVClient(ctx, &cfg.KV); err != nil {
		l.Warn().Err(err).Str("type", cfg.KV.Type).Msg("kv unavailable, falling back to memory")

		mem, _ := kvc.NewMemoryKV(ctx, nil)
		m.KV = kvc.Wrap(mem, cfg.KV.KeyPrefix)
	} else {
		m.KV = kvi
	}

	if mqi, err := mqc.New(ctx, &cfg.MQ); err != nil {
		l.Warn().Err(err).Str("type", string(cfg.MQ.Type)).Msg("mq unavailable, falling back to memory")

		m.MQ = mqc.NewMemory(cfg.MQ.Memory.OutputChannelBuffer)
	} else {
		m.MQ = mqi
	}

	l.Info().Str("blob", m.Blob.Kind()).Str("kv", string(m.KV.Kind())).Msg("storage manager initialized")

	return m, nil
}

// GetS3Client 获取 S3 客户端，本地后端时为 nil.
func (m *Manager) GetS3Client() *s3c.Client {
	return m.S3
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetBlobStore 获取产物存储.
func (m *Manager) GetBlobStore() blob.Store {
	return m.Blob
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// Close 释放所有资源.
func (m *Manager) Close() error {
	var firstErr error

	record := func(name string, err error) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}

	if m.MQ != nil {
		record("mq", m.MQ.Close())
	}

	if m.KV != nil {
		record("kv", m.KV.Close())
	}

	if m.DB != nil {
		record("db", m.DB.Close())
	}

	return firstErr
}
