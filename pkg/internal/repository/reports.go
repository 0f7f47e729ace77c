package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
)

// GetReport 加载报告及其项目、作者、审批人与按 ordem 排序的照片（不含二进制内容）.
func (r *Repository) GetReport(ctx context.Context, id uint) (*model.Relatorio, error) {
	var rel model.Relatorio

	err := r.conn(ctx).
		Preload("Projeto").
		Preload("Autor").
		Preload("Aprovador").
		Preload("Fotos", func(db *gorm.DB) *gorm.DB {
			return db.Omit("imagem_data").Order("ordem ASC, id ASC")
		}).
		First(&rel, id).Error
	if err != nil {
		return nil, notFound(err, "relatório", id)
	}

	return &rel, nil
}

// GetReportPlain 只加载报告行.
func (r *Repository) GetReportPlain(ctx context.Context, id uint) (*model.Relatorio, error) {
	var rel model.Relatorio
	if err := r.conn(ctx).First(&rel, id).Error; err != nil {
		return nil, notFound(err, "relatório", id)
	}

	return &rel, nil
}

// CreateReport 插入新报告；编号必须已经通过 AllocateNumber 分配.
func (r *Repository) CreateReport(ctx context.Context, rel *model.Relatorio) error {
	if err := r.conn(ctx).Omit("Projeto", "Autor", "Aprovador", "Fotos").Create(rel).Error; err != nil {
		if isUniqueViolation(err) {
			return errs.Wrap(err, errs.KindConflict, "número %s já existe no projeto", rel.Numero)
		}

		return errs.Wrap(err, errs.KindInternal, "create report")
	}

	return nil
}

// SaveReport 持久化报告的全部标量字段（不级联关联）.
func (r *Repository) SaveReport(ctx context.Context, rel *model.Relatorio) error {
	err := r.conn(ctx).
		Omit("Projeto", "Autor", "Aprovador", "Fotos").
		Save(rel).Error
	if err != nil {
		return errs.Wrap(err, errs.KindInternal, "save report %d", rel.ID)
	}

	return nil
}

// DeleteReport 删除报告及其照片行，返回被删除照片的文件名以便清理产物.
func (r *Repository) DeleteReport(ctx context.Context, id uint) ([]string, error) {
	var files []string

	err := r.conn(ctx).Model(&model.FotoRelatorio{}).
		Where("relatorio_id = ? AND filename <> ''", id).
		Pluck("filename", &files).Error
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list photo files")
	}

	if err := r.conn(ctx).Where("relatorio_id = ?", id).Delete(&model.FotoRelatorio{}).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "delete photos")
	}

	if err := r.conn(ctx).Where("relatorio_id = ?", id).Delete(&model.EnvioRelatorio{}).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "delete dispatch log")
	}

	res := r.conn(ctx).Delete(&model.Relatorio{}, id)
	if res.Error != nil {
		return nil, errs.Wrap(res.Error, errs.KindInternal, "delete report")
	}

	if res.RowsAffected == 0 {
		return nil, errs.New(errs.KindNotFound, "relatório %d não encontrado", id)
	}

	return files, nil
}

// ListReportIDs 按 id 升序返回项目下的报告 id 与编号，用于管理命令.
func (r *Repository) ListReportIDs(ctx context.Context, projectID uint) ([]model.Relatorio, error) {
	var rows []model.Relatorio

	err := r.conn(ctx).
		Select("id", "numero", "numero_projeto", "projeto_id", "status").
		Where("projeto_id = ?", projectID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list reports")
	}

	return rows, nil
}

// UpdateStatus 条件更新工作流字段：只有当前状态仍为 from 时才写入，否则返回 Conflict.
// 并发的同一迁移只有一个能成功.
func (r *Repository) UpdateStatus(ctx context.Context, rel *model.Relatorio, from model.Status) error {
	res := r.conn(ctx).Model(&model.Relatorio{}).
		Where("id = ? AND status = ?", rel.ID, from).
		Updates(map[string]any{
			"status":               rel.Status,
			"aprovador_id":         rel.AprovadorID,
			"data_aprovacao":       rel.DataAprovacao,
			"comentario_aprovacao": rel.ComentarioAprovacao,
			"atualizado_por":       rel.AtualizadoPor,
			"updated_at":           rel.UpdatedAt,
		})
	if res.Error != nil {
		return errs.Wrap(res.Error, errs.KindInternal, "update status of report %d", rel.ID)
	}

	if res.RowsAffected == 0 {
		return errs.New(errs.KindConflict, "relatório %d não está mais em %q", rel.ID, from)
	}

	return nil
}
