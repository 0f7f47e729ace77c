package imagestore

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/repository"
)

// PhotoMeta 照片元数据的部分更新；nil 字段表示未提供.
type PhotoMeta struct {
	Legenda   *string
	Titulo    *string
	Categoria *string
	Local     *string
	Ordem     *int
}

// Fields 提供的字段对应的列.
func (m PhotoMeta) Fields() map[string]any {
	fields := map[string]any{}

	if m.Legenda != nil {
		fields["legenda"] = *m.Legenda
	}

	if m.Titulo != nil {
		fields["titulo"] = *m.Titulo
	}

	if m.Categoria != nil {
		fields["categoria"] = *m.Categoria
	}

	if m.Local != nil {
		fields["local"] = *m.Local
	}

	if m.Ordem != nil {
		fields["ordem"] = *m.Ordem
	}

	return fields
}

// Apply 把提供的字段写入 f.
func (m PhotoMeta) Apply(f *model.FotoRelatorio) {
	if m.Legenda != nil {
		f.Legenda = *m.Legenda
	}

	if m.Titulo != nil {
		f.Titulo = *m.Titulo
	}

	if m.Categoria != nil {
		f.Categoria = *m.Categoria
	}

	if m.Local != nil {
		f.Local = *m.Local
	}

	if m.Ordem != nil {
		f.Ordem = *m.Ordem
	}
}

// Promoted 提升结果。Temp 非空时调用方应在提交后调用 DiscardTemp.
type Promoted struct {
	Photo  *model.FotoRelatorio
	Temp   *TempFile
	Reused bool
}

// UpdateMeta 更新已有照片的元数据，从不触碰字节.
func UpdateMeta(ctx context.Context, repo *repository.Repository, f *model.FotoRelatorio, meta PhotoMeta) error {
	if err := repo.UpdatePhotoFields(ctx, f, meta.Fields()); err != nil {
		return err
	}

	meta.Apply(f)

	return nil
}

// Promote 把暂存上传提升为报告照片.
//
// 同一报告内 SHA-256 相同的照片会被复用（只更新元数据）；同一 temp id 再次提升时
// 返回已提升的照片而不删除任何字节。repo 应绑定调用方的事务.
func (s *Store) Promote(ctx context.Context, repo *repository.Repository, tempID string, reportID uint, meta PhotoMeta) (*Promoted, error) {
	tf, err := s.FindTemp(ctx, tempID)
	if err != nil {
		if errs.KindOf(err) != errs.KindTempMissing {
			return nil, err
		}

		prev, ferr := repo.FindPhotoByTempID(ctx, reportID, strings.ToLower(strings.TrimSpace(tempID)))
		if ferr != nil || prev == nil {
			return nil, err
		}

		if err := UpdateMeta(ctx, repo, prev, meta); err != nil {
			return nil, err
		}

		return &Promoted{Photo: prev, Reused: true}, nil
	}

	if int64(len(tf.Data)) > s.cfg.MaxBytes {
		return nil, errs.New(errs.KindOversize, "upload %s excede %d bytes", tf.ID, s.cfg.MaxBytes)
	}

	hash := Hash(tf.Data)

	existing, err := repo.FindPhotoByHash(ctx, reportID, hash)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if err := UpdateMeta(ctx, repo, existing, meta); err != nil {
			return nil, err
		}

		s.logger.Debug().Uint("relatorio_id", reportID).Uint("foto_id", existing.ID).Msg("duplicate photo reused")

		return &Promoted{Photo: existing, Temp: tf, Reused: true}, nil
	}

	up, _ := s.TempMeta(ctx, tf.ID)

	photo := &model.FotoRelatorio{
		RelatorioID:      reportID,
		Filename:         finalName(reportID, s.now(), tf.ID, tf.Ext),
		FilenameOriginal: tf.ID + "." + tf.Ext,
		ImagemData:       tf.Data,
		ImagemHash:       hash,
		ContentType:      MimeFor(tf.Ext),
		ImagemSize:       int64(len(tf.Data)),
	}

	if up != nil {
		if up.Filename != "" {
			photo.FilenameOriginal = up.Filename
		}

		photo.Legenda, photo.Categoria, photo.Local = up.Caption, up.Category, up.Local
	}

	if err := s.placeNew(ctx, repo, photo, meta); err != nil {
		return nil, err
	}

	return &Promoted{Photo: photo, Temp: tf}, nil
}

// placeNew 写入正式产物并插入照片行；未指定 ordem 时追加到末尾.
func (s *Store) placeNew(ctx context.Context, repo *repository.Repository, photo *model.FotoRelatorio, meta PhotoMeta) error {
	meta.Apply(photo)

	if meta.Ordem == nil {
		maxOrdem, err := repo.MaxOrdem(ctx, photo.RelatorioID)
		if err != nil {
			return err
		}

		photo.Ordem = maxOrdem + 1
	}

	key := PhotoKey(photo.Filename)
	if err := s.blobs.Put(ctx, key, photo.ImagemData, photo.ContentType); err != nil {
		return errs.Wrap(err, errs.KindInternal, "write %s", key)
	}

	return repo.CreatePhoto(ctx, photo)
}

// FilenameFromRef 从 url 或文件名中取出存储文件名.
func FilenameFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}

	name := path.Base(strings.ReplaceAll(ref, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}

	return name
}

// Backfill 从已存在的文件产物读取字节写入照片行（补齐二进制内容）.
func (s *Store) Backfill(ctx context.Context, repo *repository.Repository, reportID uint, ref string, meta PhotoMeta) (*Promoted, error) {
	filename := FilenameFromRef(ref)
	if filename == "" || !s.Allowed(ExtOf(filename)) {
		return nil, errs.New(errs.KindValidation, "referência de arquivo inválida: %q", ref)
	}

	data, err := s.blobs.Get(ctx, PhotoKey(filename))
	if err != nil {
		return nil, errs.Wrap(err, errs.KindMediaMissing, "arquivo %s não encontrado", filename)
	}

	hash := Hash(data)

	existing, err := repo.FindPhotoByHash(ctx, reportID, hash)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if existing, err = repo.FindPhotoByFilename(ctx, reportID, filename); err != nil {
			return nil, err
		}
	}

	if existing != nil {
		fields := meta.Fields()
		if existing.ImagemHash != hash {
			fields["imagem_data"] = data
			fields["imagem_hash"] = hash
			fields["imagem_size"] = int64(len(data))
			fields["content_type"] = MimeFor(ExtOf(filename))
		}

		if err := repo.UpdatePhotoFields(ctx, existing, fields); err != nil {
			return nil, err
		}

		meta.Apply(existing)
		existing.ImagemHash = hash
		existing.ImagemSize = int64(len(data))

		return &Promoted{Photo: existing, Reused: true}, nil
	}

	photo := &model.FotoRelatorio{
		RelatorioID:      reportID,
		Filename:         filename,
		FilenameOriginal: filename,
		ImagemData:       data,
		ImagemHash:       hash,
		ContentType:      MimeFor(ExtOf(filename)),
		ImagemSize:       int64(len(data)),
	}

	meta.Apply(photo)

	if meta.Ordem == nil {
		maxOrdem, err := repo.MaxOrdem(ctx, reportID)
		if err != nil {
			return nil, err
		}

		photo.Ordem = maxOrdem + 1
	}

	if err := repo.CreatePhoto(ctx, photo); err != nil {
		return nil, err
	}

	return &Promoted{Photo: photo}, nil
}
