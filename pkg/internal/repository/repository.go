// Package repository 报告与照片的持久化：加载、项目内编号分配、照片排序查询以及目录/记录表.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/errs"
)

// Repository 基于 GORM 的仓储；在事务中通过 WithTx 得到绑定事务的副本.
type Repository struct {
	db *gorm.DB
}

// New 创建仓储.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 返回底层句柄.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithTx 返回使用给定事务的仓储.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Transaction 在单个事务中执行 fn.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// notFound 把 gorm.ErrRecordNotFound 转换为 NotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.New(errs.KindNotFound, "%s %v não encontrado", what, id)
	}

	return errs.Wrap(err, errs.KindInternal, "load %s %v", what, id)
}
