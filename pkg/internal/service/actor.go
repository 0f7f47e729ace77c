package service

import (
	"context"
	"strings"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
)

// Identity 外层认证注入的会话身份（X-User-Id / X-Auth-Request-Email / X-Role）.
type Identity struct {
	UserID uint
	Email  string
	Role   string
}

// Empty reports whether no identity was supplied.
func (i Identity) Empty() bool {
	return i.UserID == 0 && strings.TrimSpace(i.Email) == ""
}

// ResolveActor 按用户 id 或邮箱加载用户，得到工作流使用的 Actor.
// 没有身份时返回匿名 Actor；身份无法对应到在职用户时返回 Forbidden.
func (s *Services) ResolveActor(ctx context.Context, id Identity) (workflow.Actor, error) {
	if id.Empty() {
		return workflow.Actor{}, nil
	}

	var (
		u   *model.Usuario
		err error
	)

	if id.UserID != 0 {
		u, err = s.Repo.GetUser(ctx, id.UserID)
	} else {
		u, err = s.Repo.FindUserByEmail(ctx, id.Email)
	}

	if errs.KindOf(err) == errs.KindNotFound || (err == nil && !u.Ativo) {
		return workflow.Actor{}, errs.New(errs.KindForbidden, "usuário não autorizado")
	}

	if err != nil {
		return workflow.Actor{}, err
	}

	role := strings.TrimSpace(id.Role)
	if role == "" {
		role = u.Role
	}

	return workflow.Actor{
		UserID:         u.ID,
		Email:          u.Email,
		Nome:           u.Nome,
		Role:           role,
		GlobalApprover: u.AprovadorGlobal,
	}, nil
}

// globalApprovers 所有全局审批人（用户标记或配置列表）.
func (s *Services) globalApprovers(ctx context.Context) ([]model.Usuario, error) {
	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := users[:0]

	for _, u := range users {
		if s.Policy.IsGlobalApprover(workflow.Actor{UserID: u.ID, Email: u.Email, GlobalApprover: u.AprovadorGlobal}) {
			out = append(out, u)
		}
	}

	return out, nil
}
