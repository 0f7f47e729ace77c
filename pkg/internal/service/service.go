// Package service 组装报告生命周期的业务服务，不处理 HTTP 细节.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/cache"
	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/autosave"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/mail"
	"github.com/yeisme/vistoria/pkg/internal/pdf"
	"github.com/yeisme/vistoria/pkg/internal/recipients"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/storage"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
	"github.com/yeisme/vistoria/pkg/internal/storage/kv"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
	"github.com/yeisme/vistoria/pkg/log"
	"github.com/yeisme/vistoria/pkg/queue"
)

// Deps 构造服务所需的外部资源.
type Deps struct {
	DB     *gorm.DB
	Blobs  blob.Store
	KV     *kv.Client
	Events queue.Publisher
	Config *configs.AppConfig
	// Mailer 为空时使用配置的 HTTPS API
	Mailer mail.Sender
	// Now 为空时使用 time.Now
	Now func() time.Time
}

// Services 业务服务集合，进程内共享.
type Services struct {
	Repo       *repository.Repository
	Images     *imagestore.Store
	Policy     *workflow.Policy
	AutoSave   *autosave.Coordinator
	Renderer   *pdf.Renderer
	Recipients *recipients.Resolver
	Mailer     *mail.Dispatcher
	Events     *queue.Events
	PDFCache   *cache.Cache
	PhotoCache *cache.Cache // GET /api/imagens/:id 的响应缓存

	Reports  *ReportService
	Approval *ApprovalOrchestrator
	Uploads  *UploadService

	cfg    *configs.AppConfig
	now    func() time.Time
	logger zerolog.Logger
}

// New 组装服务.
func New(d Deps) *Services {
	cfg := d.Config
	if cfg == nil {
		def := configs.Defaults()
		cfg = &def
	}

	now := d.Now
	if now == nil {
		now = time.Now
	}

	repo := repository.New(d.DB)
	images := imagestore.New(d.Blobs, d.KV, cfg.Uploads, imagestore.WithClock(now))
	policy := workflow.NewPolicy(cfg.Workflow)

	mailOpts := []mail.Option{mail.WithCompany(cfg.PDF.CompanyName)}
	if d.Mailer != nil {
		mailOpts = append(mailOpts, mail.WithSender(d.Mailer))
	}

	s := &Services{
		Repo:       repo,
		Images:     images,
		Policy:     policy,
		AutoSave:   autosave.New(repo, images, policy),
		Renderer:   pdf.New(cfg.PDF),
		Recipients: recipients.New(repo, cfg.Mail.FixedCC),
		Mailer:     mail.New(cfg.Mail, mailOpts...),
		Events:     queue.NewEvents(d.Events, cfg.Events.Enabled, cfg.Events.Producer),
		cfg:        cfg,
		now:        now,
		logger:     log.Component("service"),
	}

	if d.KV != nil {
		s.PDFCache = cache.New(d.KV, cache.PrefixPDF)
		s.PhotoCache = cache.New(d.KV, cache.PrefixResponse)
	}

	s.Approval = &ApprovalOrchestrator{svc: s, logger: log.Component("approval")}
	s.Reports = &ReportService{svc: s}
	s.Uploads = &UploadService{svc: s}

	return s
}

// FromManager 由存储管理器组装服务.
func FromManager(mgr *storage.Manager, cfg *configs.AppConfig) *Services {
	d := Deps{
		Blobs:  mgr.GetBlobStore(),
		KV:     mgr.GetKVClient(),
		Config: cfg,
	}

	if dbc := mgr.GetDBClient(); dbc != nil {
		d.DB = dbc.DB
	}

	if mqc := mgr.GetMQClient(); mqc != nil {
		d.Events = mqc
	}

	return New(d)
}

// evictPhotos 删除照片后让其缓存的响应失效.
func (s *Services) evictPhotos(ctx context.Context, ids ...uint) {
	if s.PhotoCache == nil {
		return
	}

	for _, id := range ids {
		if err := s.PhotoCache.Delete(ctx, cache.PhotoKey(strconv.FormatUint(uint64(id), 10))); err != nil {
			s.logger.Warn().Err(err).Uint("foto_id", id).Msg("evict photo response failed")
		}
	}
}

// Config 当前配置.
func (s *Services) Config() *configs.AppConfig {
	return s.cfg
}

// background 审批副作用使用的上下文：保留追踪信息但不随请求取消.
func background(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
