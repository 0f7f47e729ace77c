package blob

import (
	"context"
	"errors"

	s3c "github.com/yeisme/vistoria/pkg/internal/storage/s3"
)

// S3 基于 minio 客户端的实现.
type S3 struct {
	cli *s3c.Client
}

// NewS3 包装已初始化的 S3 客户端.
func NewS3(cli *s3c.Client) *S3 {
	return &S3{cli: cli}
}

func (s *S3) Kind() string { return "s3" }

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.cli.PutBytes(ctx, CleanKey(key), data, contentType)
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	key = CleanKey(key)
	if _, err := s.cli.Stat(ctx, key); err != nil {
		if errors.Is(err, s3c.ErrObjectNotFound) {
			return nil, ErrNotExist
		}

		return nil, err
	}

	data, err := s.cli.GetBytes(ctx, key)
	if errors.Is(err, s3c.ErrObjectNotFound) {
		return nil, ErrNotExist
	}

	return data, err
}

func (s *S3) Delete(ctx context.Context, key string) error {
	return s.cli.Remove(ctx, CleanKey(key))
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.cli.Stat(ctx, CleanKey(key))
	if errors.Is(err, s3c.ErrObjectNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (s *S3) List(ctx context.Context, prefix string) ([]Object, error) {
	objs, err := s.cli.ListPrefix(ctx, CleanKey(prefix))
	if err != nil {
		return nil, err
	}

	out := make([]Object, 0, len(objs))
	for _, o := range objs {
		out = append(out, Object{Key: o.Key, Size: o.Size, ModTime: o.ModTime})
	}

	return out, nil
}
