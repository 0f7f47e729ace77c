// Package blob 抽象照片与 PDF 产物的字节存储：本地文件系统（afero）或 S3（minio）.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrNotExist 产物不存在.
var ErrNotExist = errors.New("blob: not exist")

// Object 列举结果.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Name 返回对象的基础文件名.
func (o Object) Name() string {
	return path.Base(o.Key)
}

// Store 产物存储接口。键使用 "/" 分隔的相对路径，如 uploads/temp/<id>.png.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// List 返回 key 以 prefix 开头的对象（仅 prefix 所在目录一层）.
	List(ctx context.Context, prefix string) ([]Object, error)
	Kind() string
}

// CleanKey 归一化 key，去掉前导 "/" 与 ".." 片段.
func CleanKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = path.Clean("/" + key)

	return strings.TrimPrefix(key, "/")
}
