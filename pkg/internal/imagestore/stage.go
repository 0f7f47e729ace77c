package imagestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
	"github.com/yeisme/vistoria/pkg/internal/storage/kv"
	"github.com/yeisme/vistoria/pkg/metrics"
)

// StageInput 暂存请求附带的信息.
type StageInput struct {
	Filename string
	Category string
	Local    string
	Caption  string
}

// TempUpload 暂存上传的元数据.
type TempUpload struct {
	ID        string    `json:"temp_id"`
	Ext       string    `json:"ext"`
	Key       string    `json:"path"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	Category  string    `json:"category"`
	Local     string    `json:"local"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}

// TempFile 找到的暂存产物.
type TempFile struct {
	ID   string
	Key  string
	Ext  string
	Data []byte
}

// Stage 写入暂存区并返回 temp id。扩展名不允许返回 Validation，超过上限返回 Oversize.
func (s *Store) Stage(ctx context.Context, data []byte, in StageInput) (*TempUpload, error) {
	ext := ExtOf(in.Filename)
	if !s.Allowed(ext) {
		return nil, errs.New(errs.KindValidation, "extensão não permitida: %q", ext).
			WithDetails("permitidas: " + strings.Join(s.cfg.AllowedExtensions, ", "))
	}

	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, errs.New(errs.KindOversize, "arquivo excede %d bytes", s.cfg.MaxBytes)
	}

	if len(data) == 0 {
		return nil, errs.New(errs.KindValidation, "arquivo vazio")
	}

	now := s.now().UTC()
	id := newTempID(now)
	up := &TempUpload{
		ID:        id,
		Ext:       ext,
		Key:       tempKey(id, ext),
		Filename:  in.Filename,
		Size:      int64(len(data)),
		MimeType:  MimeFor(ext),
		Category:  in.Category,
		Local:     in.Local,
		Caption:   in.Caption,
		CreatedAt: now,
	}

	if err := s.blobs.Put(ctx, up.Key, data, up.MimeType); err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "stage %s", up.Key)
	}

	s.saveMeta(ctx, up)
	metrics.UploadsStaged.Inc()

	s.logger.Debug().Str("temp_id", id).Int64("size", up.Size).Msg("upload staged")

	return up, nil
}

func (s *Store) saveMeta(ctx context.Context, up *TempUpload) {
	if s.meta == nil {
		return
	}

	b, err := sonic.Marshal(up)
	if err == nil {
		err = s.meta.Set(ctx, configs.DefaultTempMetaPrefix+up.ID, b, s.cfg.TempTTL)
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("temp_id", up.ID).Msg("save temp metadata failed")
	}
}

// TempMeta 读取暂存元数据；不存在或已过期返回 false.
func (s *Store) TempMeta(ctx context.Context, tempID string) (*TempUpload, bool) {
	if s.meta == nil || !validTempID(tempID) {
		return nil, false
	}

	b, err := s.meta.Get(ctx, configs.DefaultTempMetaPrefix+tempID)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn().Err(err).Str("temp_id", tempID).Msg("load temp metadata failed")
		}

		return nil, false
	}

	var up TempUpload
	if err := sonic.Unmarshal(b, &up); err != nil {
		return nil, false
	}

	return &up, true
}

// FindTemp 按 temp id 前缀匹配暂存产物，扩展名取自找到的文件.
func (s *Store) FindTemp(ctx context.Context, tempID string) (*TempFile, error) {
	tempID = strings.ToLower(strings.TrimSpace(tempID))
	if !validTempID(tempID) {
		return nil, errs.New(errs.KindTempMissing, "temp_id inválido: %q", tempID)
	}

	objs, err := s.blobs.List(ctx, TempDir+"/"+tempID)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list temp %s", tempID)
	}

	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })

	for _, o := range objs {
		name := o.Name()
		if !strings.HasPrefix(name, tempID) {
			continue
		}

		data, err := s.blobs.Get(ctx, o.Key)
		if errors.Is(err, blob.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, errs.Wrap(err, errs.KindInternal, "read temp %s", o.Key)
		}

		return &TempFile{ID: tempID, Key: o.Key, Ext: ExtOf(name), Data: data}, nil
	}

	return nil, errs.New(errs.KindTempMissing, "upload temporário %s não encontrado", tempID)
}

// DiscardTemp 删除暂存产物及其元数据.
func (s *Store) DiscardTemp(ctx context.Context, tf *TempFile) {
	if tf == nil {
		return
	}

	if err := s.blobs.Delete(ctx, tf.Key); err != nil {
		s.logger.Warn().Err(err).Str("key", tf.Key).Msg("delete temp failed")
	}

	if s.meta != nil {
		_ = s.meta.Delete(ctx, configs.DefaultTempMetaPrefix+tf.ID)
	}
}

// GC 删除超过 TTL 的暂存产物，返回删除数量.
func (s *Store) GC(ctx context.Context) (int, error) {
	objs, err := s.blobs.List(ctx, TempDir+"/")
	if err != nil {
		return 0, errs.Wrap(err, errs.KindInternal, "list temp uploads")
	}

	cutoff := s.now().Add(-s.cfg.TempTTL)
	removed := 0

	for _, o := range objs {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		if o.ModTime.IsZero() || !o.ModTime.Before(cutoff) {
			continue
		}

		id, _, _ := strings.Cut(o.Name(), ".")
		s.DiscardTemp(ctx, &TempFile{ID: id, Key: o.Key})
		removed++
	}

	if removed > 0 {
		metrics.TempCollected.Add(float64(removed))
		s.logger.Info().Int("removed", removed).Msg("temp uploads collected")
	}

	return removed, nil
}
