package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm/clause"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
)

// projectLocks 进程内按项目串行化编号分配；跨进程依靠数据库锁.
var projectLocks sync.Map

// LockProject 获取项目级进程内锁，返回释放函数。必须在开启事务之前获取并在提交之后释放.
func LockProject(projectID uint) func() {
	v, _ := projectLocks.LoadOrStore(projectID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

const advisoryNamespace = "vistoria:numero_projeto"

// advisoryKey 项目锁键：高 32 位为命名空间的 xxhash，低 32 位为项目 id.
func advisoryKey(projectID uint) int64 {
	ns := xxhash.Sum64String(advisoryNamespace) >> 32

	return int64(ns<<32 | uint64(uint32(projectID)))
}

// lockProjectRow 在当前事务中获取项目级数据库锁.
//   - postgres: pg_advisory_xact_lock，事务结束自动释放
//   - mysql: 对项目行 SELECT ... FOR UPDATE
//   - sqlite: 写事务本身串行
func (r *Repository) lockProjectRow(ctx context.Context, projectID uint) error {
	switch r.db.Dialector.Name() {
	case "postgres":
		return r.conn(ctx).Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(projectID)).Error
	case "mysql":
		var id uint

		return r.conn(ctx).Model(&model.Obra{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", projectID).
			Pluck("id", &id).Error
	default:
		return nil
	}
}

// AllocateNumber 在事务中为项目分配下一个编号：max(numero_projeto)+1，首个编号为 numeracao_inicial 或 1.
func (r *Repository) AllocateNumber(ctx context.Context, project *model.Obra) (int, string, error) {
	if err := r.lockProjectRow(ctx, project.ID); err != nil {
		return 0, "", errs.Wrap(err, errs.KindInternal, "lock project %d", project.ID)
	}

	var maxN int

	err := r.conn(ctx).Model(&model.Relatorio{}).
		Where("projeto_id = ?", project.ID).
		Select("COALESCE(MAX(numero_projeto), 0)").
		Scan(&maxN).Error
	if err != nil {
		return 0, "", errs.Wrap(err, errs.KindInternal, "max numero_projeto")
	}

	next := maxN + 1
	if maxN == 0 {
		next = max(project.NumeracaoInicial, 1)
	}

	return next, model.FormatNumero(projectCode(project), next), nil
}

func projectCode(p *model.Obra) string {
	if code := strings.TrimSpace(p.Numero); code != "" {
		return code
	}

	return fmt.Sprintf("OBRA%d", p.ID)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
