// Package imagestore 照片字节的持久化：暂存上传、提升为报告照片（按 SHA-256 去重）以及对外服务.
//
// 布局：
//
//	uploads/temp/<temp_id>.<ext>                                    暂存
//	uploads/relatorio_<id>_<YYYYMMDD_HHMMSSffffff>_<temp_id>.<ext>  正式
package imagestore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"
	"github.com/rs/zerolog"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
	"github.com/yeisme/vistoria/pkg/internal/storage/kv"
	"github.com/yeisme/vistoria/pkg/log"
	"github.com/yeisme/vistoria/pkg/rule"
)

const (
	UploadsDir = "uploads"
	TempDir    = "uploads/temp"
)

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// MimeFor 由扩展名推断 MIME.
func MimeFor(ext string) string {
	if m, ok := mimeTypes[normalizeExt(ext)]; ok {
		return m
	}

	return "application/octet-stream"
}

// ExtOf 返回文件名的小写扩展名（不含点）.
func ExtOf(name string) string {
	return normalizeExt(path.Ext(strings.ReplaceAll(name, "\\", "/")))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Hash 计算内容的 SHA-256（十六进制）.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// Store 照片存储.
type Store struct {
	blobs  blob.Store
	meta   *kv.Client
	cfg    configs.UploadsConfig
	now    func() time.Time
	logger zerolog.Logger
}

// Option 配置 Store.
type Option func(*Store)

// WithClock 替换时钟，测试使用.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New 创建照片存储；meta 为空时暂存元数据只保留在文件名中.
func New(blobs blob.Store, meta *kv.Client, cfg configs.UploadsConfig, opts ...Option) *Store {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = configs.DefaultMaxUploadBytes
	}

	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = configs.DefaultAllowedExtensions
	}

	if cfg.TempTTL <= 0 {
		cfg.TempTTL = configs.DefaultTempTTL
	}

	s := &Store{
		blobs:  blobs,
		meta:   meta,
		cfg:    cfg,
		now:    time.Now,
		logger: log.Component("imagestore"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Blobs 底层产物存储.
func (s *Store) Blobs() blob.Store {
	return s.blobs
}

// MaxBytes 单个上传的字节上限.
func (s *Store) MaxBytes() int64 {
	return s.cfg.MaxBytes
}

// Allowed 扩展名是否允许上传.
func (s *Store) Allowed(ext string) bool {
	ext = normalizeExt(ext)

	return rule.IsImageExt(ext) && slices.Contains(s.cfg.AllowedExtensions, ext)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newTempID 小写 ULID，按时间有序且抗碰撞.
func newTempID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return strings.ToLower(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// validTempID 只接受 ULID 字符集，防止路径穿越.
func validTempID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}

	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') && r != '-' && r != '_' {
			return false
		}
	}

	return true
}

func tempKey(id, ext string) string {
	return TempDir + "/" + id + "." + ext
}

// PhotoKey 正式照片文件名对应的存储键.
func PhotoKey(filename string) string {
	return UploadsDir + "/" + path.Base(filename)
}

// finalName relatorio_<id>_<YYYYMMDD_HHMMSSffffff>_<temp_id>.<ext>.
func finalName(reportID uint, t time.Time, tempID, ext string) string {
	stamp := strings.Replace(t.UTC().Format("20060102_150405.000000"), ".", "", 1)

	return "relatorio_" + strconv.FormatUint(uint64(reportID), 10) + "_" + stamp + "_" + tempID + "." + ext
}
