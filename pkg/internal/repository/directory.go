package repository

import (
	"context"
	"strings"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
)

// GetProject 获取项目.
func (r *Repository) GetProject(ctx context.Context, id uint) (*model.Obra, error) {
	var o model.Obra
	if err := r.conn(ctx).First(&o, id).Error; err != nil {
		return nil, notFound(err, "obra", id)
	}

	return &o, nil
}

// ListProjectContacts 项目联系人（按 id 排序）.
func (r *Repository) ListProjectContacts(ctx context.Context, projectID uint) ([]model.ContatoObra, error) {
	var rows []model.ContatoObra
	if err := r.conn(ctx).Where("obra_id = ?", projectID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list contacts")
	}

	return rows, nil
}

// ListContacts 全部联系人（按 id 排序），用于姓名匹配.
func (r *Repository) ListContacts(ctx context.Context) ([]model.ContatoObra, error) {
	var rows []model.ContatoObra
	if err := r.conn(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list contacts")
	}

	return rows, nil
}

// GetContact 获取联系人.
func (r *Repository) GetContact(ctx context.Context, id uint) (*model.ContatoObra, error) {
	var c model.ContatoObra
	if err := r.conn(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "contato", id)
	}

	return &c, nil
}

// GetUser 获取用户.
func (r *Repository) GetUser(ctx context.Context, id uint) (*model.Usuario, error) {
	var u model.Usuario
	if err := r.conn(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "usuário", id)
	}

	return &u, nil
}

// FindUserByEmail 按邮箱（不区分大小写）查找用户.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*model.Usuario, error) {
	var u model.Usuario

	err := r.conn(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, notFound(err, "usuário", email)
	}

	return &u, nil
}

// ListUsers 在职用户（按 id 排序）.
func (r *Repository) ListUsers(ctx context.Context) ([]model.Usuario, error) {
	var rows []model.Usuario
	if err := r.conn(ctx).Where("ativo = ?", true).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "list users")
	}

	return rows, nil
}
