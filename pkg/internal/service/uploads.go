package service

import (
	"context"

	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
)

// UploadService 照片暂存与读取.
type UploadService struct {
	svc *Services
}

// Stage 暂存一张照片.
func (u *UploadService) Stage(ctx context.Context, data []byte, in imagestore.StageInput, actor workflow.Actor) (*imagestore.TempUpload, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	return u.svc.Images.Stage(ctx, data, in)
}

// MaxBytes 单个上传允许的最大字节数.
func (u *UploadService) MaxBytes() int64 {
	return u.svc.Images.MaxBytes()
}

// Temp 读取暂存照片用于预览.
func (u *UploadService) Temp(ctx context.Context, tempID string, actor workflow.Actor) (*imagestore.Served, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	return u.svc.Images.ServeTemp(ctx, tempID)
}

// Photo 读取已提升照片，字节缺失时返回占位图.
func (u *UploadService) Photo(ctx context.Context, photoID uint, actor workflow.Actor) (*imagestore.Served, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	return u.svc.Images.Serve(ctx, u.svc.Repo, photoID)
}

// GC 清理过期暂存.
func (u *UploadService) GC(ctx context.Context) (int, error) {
	return u.svc.Images.GC(ctx)
}
