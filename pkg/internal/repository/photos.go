package repository

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
)

// ListPhotos 按 ordem 排序列出照片；withData 为 false 时不读取二进制内容.
func (r *Repository) ListPhotos(ctx context.Context, reportID uint, withData bool) ([]model.FotoRelatorio, error) {
	var fotos []model.FotoRelatorio

	q := r.conn(ctx).Where("relatorio_id = ?", reportID).Order("ordem ASC, id ASC")
	if !withData {
		q = q.Omit("imagem_data")
	}

	if err := q.Find(&fotos).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list photos of %d", reportID)
	}

	return fotos, nil
}

// MaxOrdem 返回报告的最大 ordem；没有照片时返回 -1.
func (r *Repository) MaxOrdem(ctx context.Context, reportID uint) (int, error) {
	maxOrdem := -1

	err := r.conn(ctx).Model(&model.FotoRelatorio{}).
		Where("relatorio_id = ?", reportID).
		Select("COALESCE(MAX(ordem), -1)").
		Scan(&maxOrdem).Error
	if err != nil {
		return 0, errs.Wrap(err, errs.KindInternal, "max ordem of %d", reportID)
	}

	return maxOrdem, nil
}

// GetPhoto 获取报告内的照片.
func (r *Repository) GetPhoto(ctx context.Context, reportID, photoID uint) (*model.FotoRelatorio, error) {
	var f model.FotoRelatorio

	err := r.conn(ctx).Omit("imagem_data").
		Where("relatorio_id = ? AND id = ?", reportID, photoID).
		First(&f).Error
	if err != nil {
		return nil, notFound(err, "foto", photoID)
	}

	return &f, nil
}

// GetPhotoWithData 按 id 获取照片（含二进制），用于对外服务.
func (r *Repository) GetPhotoWithData(ctx context.Context, photoID uint) (*model.FotoRelatorio, error) {
	var f model.FotoRelatorio
	if err := r.conn(ctx).First(&f, photoID).Error; err != nil {
		return nil, notFound(err, "foto", photoID)
	}

	return &f, nil
}

// FindPhotoByHash 报告内按 SHA-256 查找照片，不存在返回 nil.
func (r *Repository) FindPhotoByHash(ctx context.Context, reportID uint, hash string) (*model.FotoRelatorio, error) {
	return r.findPhoto(ctx, "relatorio_id = ? AND imagem_hash = ?", reportID, hash)
}

// FindPhotoByFilename 报告内按存储文件名查找照片，不存在返回 nil.
func (r *Repository) FindPhotoByFilename(ctx context.Context, reportID uint, filename string) (*model.FotoRelatorio, error) {
	return r.findPhoto(ctx, "relatorio_id = ? AND filename = ?", reportID, filename)
}

// FindPhotoByTempID 报告内查找由该暂存 id 提升而来的照片（文件名以 _<temp_id>.<ext> 结尾）.
func (r *Repository) FindPhotoByTempID(ctx context.Context, reportID uint, tempID string) (*model.FotoRelatorio, error) {
	return r.findPhoto(ctx, "relatorio_id = ? AND filename LIKE ?", reportID, "%_"+tempID+".%")
}

func (r *Repository) findPhoto(ctx context.Context, where string, args ...any) (*model.FotoRelatorio, error) {
	var f model.FotoRelatorio

	err := r.conn(ctx).Omit("imagem_data").Where(where, args...).Order("id ASC").First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "find photo")
	}

	return &f, nil
}

// CreatePhoto 插入照片.
func (r *Repository) CreatePhoto(ctx context.Context, f *model.FotoRelatorio) error {
	if err := r.conn(ctx).Create(f).Error; err != nil {
		return errs.Wrap(err, errs.KindInternal, "create photo")
	}

	return nil
}

// UpdatePhotoFields 更新照片的部分字段.
func (r *Repository) UpdatePhotoFields(ctx context.Context, f *model.FotoRelatorio, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	if err := r.conn(ctx).Model(f).Updates(fields).Error; err != nil {
		return errs.Wrap(err, errs.KindInternal, "update photo %d", f.ID)
	}

	return nil
}

// DeletePhoto 删除报告内的照片，返回其存储文件名.
func (r *Repository) DeletePhoto(ctx context.Context, reportID, photoID uint) (string, error) {
	f, err := r.GetPhoto(ctx, reportID, photoID)
	if err != nil {
		return "", err
	}

	if err := r.conn(ctx).Delete(&model.FotoRelatorio{}, f.ID).Error; err != nil {
		return "", errs.Wrap(err, errs.KindInternal, "delete photo %d", photoID)
	}

	return f.Filename, nil
}

// Densify 把报告的 ordem 重排为 0..N-1（按 ordem、id 排序），保证无重复.
func (r *Repository) Densify(ctx context.Context, reportID uint) error {
	return r.DensifyPinned(ctx, reportID, nil)
}

// DensifyPinned 同 Densify，但 pinned 中的照片（id -> 请求的 ordem）优先占据请求的位置，
// 其余照片保持相对顺序依次填充空位；请求值超出范围时落在末尾.
func (r *Repository) DensifyPinned(ctx context.Context, reportID uint, pinned map[uint]int) error {
	var rows []model.FotoRelatorio

	err := r.conn(ctx).Select("id", "ordem").
		Where("relatorio_id = ?", reportID).
		Order("ordem ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return errs.Wrap(err, errs.KindInternal, "load ordem")
	}

	for i, row := range placeOrdem(rows, pinned) {
		if row.Ordem == i {
			continue
		}

		err := r.conn(ctx).Model(&model.FotoRelatorio{}).
			Where("id = ?", row.ID).
			UpdateColumn("ordem", i).Error
		if err != nil {
			return errs.Wrap(err, errs.KindInternal, "densify ordem")
		}
	}

	return nil
}

// placeOrdem 计算最终顺序；rows 已按 (ordem, id) 排序.
func placeOrdem(rows []model.FotoRelatorio, pinned map[uint]int) []model.FotoRelatorio {
	if len(pinned) == 0 {
		return rows
	}

	var fixed, rest []model.FotoRelatorio

	for _, row := range rows {
		if _, ok := pinned[row.ID]; ok {
			fixed = append(fixed, row)
		} else {
			rest = append(rest, row)
		}
	}

	sort.SliceStable(fixed, func(i, j int) bool { return pinned[fixed[i].ID] < pinned[fixed[j].ID] })

	out := make([]model.FotoRelatorio, 0, len(rows))

	for pos := range rows {
		if len(fixed) > 0 && (pinned[fixed[0].ID] <= pos || len(rest) == 0) {
			out = append(out, fixed[0])
			fixed = fixed[1:]

			continue
		}

		out = append(out, rest[0])
		rest = rest[1:]
	}

	return out
}

// ListPhotoFilenames 所有照片的存储文件名（用于孤儿产物清理）.
func (r *Repository) ListPhotoFilenames(ctx context.Context) (map[string]struct{}, error) {
	var names []string

	err := r.conn(ctx).Model(&model.FotoRelatorio{}).
		Where("filename <> ''").
		Pluck("filename", &names).Error
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list filenames")
	}

	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}

	return out, nil
}
