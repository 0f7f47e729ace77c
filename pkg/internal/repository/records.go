package repository

import (
	"context"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
)

// CreateNotification 写入站内通知.
func (r *Repository) CreateNotification(ctx context.Context, n *model.Notificacao) error {
	if err := r.conn(ctx).Create(n).Error; err != nil {
		return errs.Wrap(err, errs.KindInternal, "create notification")
	}

	return nil
}

// ListNotifications 用户最近的通知，最新在前.
func (r *Repository) ListNotifications(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]model.Notificacao, error) {
	var rows []model.Notificacao

	q := r.conn(ctx).Where("usuario_id = ?", userID)
	if unreadOnly {
		q = q.Where("lida = ?", false)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list notifications")
	}

	return rows, nil
}

// CreateDispatches 批量写入投递记录.
func (r *Repository) CreateDispatches(ctx context.Context, rows []model.EnvioRelatorio) error {
	if len(rows) == 0 {
		return nil
	}

	if err := r.conn(ctx).Create(&rows).Error; err != nil {
		return errs.Wrap(err, errs.KindInternal, "create dispatch log")
	}

	return nil
}

// ListDispatches 报告的投递记录（按时间顺序）.
func (r *Repository) ListDispatches(ctx context.Context, reportID uint) ([]model.EnvioRelatorio, error) {
	var rows []model.EnvioRelatorio
	if err := r.conn(ctx).Where("relatorio_id = ?", reportID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list dispatches")
	}

	return rows, nil
}
