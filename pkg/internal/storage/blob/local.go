package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Local 基于 afero 文件系统的实现，生产使用 OsFs，测试使用 MemMapFs.
type Local struct {
	fs afero.Fs
}

// NewLocal 以 root 为根目录创建本地存储.
func NewLocal(root string) *Local {
	return NewFS(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewFS 使用给定的 afero.Fs.
func NewFS(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

// Fs 暴露底层文件系统.
func (l *Local) Fs() afero.Fs {
	return l.fs
}

func (l *Local) Kind() string { return "local" }

func (l *Local) Put(_ context.Context, key string, data []byte, _ string) error {
	key = CleanKey(key)
	if dir := path.Dir(key); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// 先写临时文件再改名，避免读到半截内容
	tmp := key + ".part"
	if err := afero.WriteFile(l.fs, tmp, data, 0o644); err != nil {
		return err
	}

	return l.fs.Rename(tmp, key)
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(l.fs, CleanKey(key))
	if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
		return nil, ErrNotExist
	}

	return data, err
}

func (l *Local) Delete(_ context.Context, key string) error {
	err := l.fs.Remove(CleanKey(key))
	if err != nil && (errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)) {
		return nil
	}

	return err
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	return afero.Exists(l.fs, CleanKey(key))
}

func (l *Local) List(_ context.Context, prefix string) ([]Object, error) {
	isDir := prefix == "" || strings.HasSuffix(prefix, "/")
	prefix = CleanKey(prefix)

	dir, base := path.Dir(prefix), path.Base(prefix)
	if isDir {
		dir, base = prefix, ""
	}

	if dir == "" {
		dir = "."
	}

	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var out []Object

	for _, fi := range infos {
		if fi.IsDir() || strings.HasSuffix(fi.Name(), ".part") || !strings.HasPrefix(fi.Name(), base) {
			continue
		}

		out = append(out, Object{Key: path.Join(dir, fi.Name()), Size: fi.Size(), ModTime: fi.ModTime()})
	}

	return out, nil
}
