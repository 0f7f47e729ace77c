// Package autosave 自动保存协调器：把部分报告文档与照片增量在单个事务中合并到持久状态，
// 并返回合并后的完整状态供客户端对账.
package autosave

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
	"github.com/yeisme/vistoria/pkg/log"
)

// ReportState 报告的规范标量状态.
type ReportState struct {
	ID            uint         `json:"id"`
	Numero        string       `json:"numero"`
	NumeroProjeto int          `json:"numero_projeto"`
	ProjetoID     uint         `json:"projeto_id"`
	Titulo        string       `json:"titulo"`
	Status        model.Status `json:"status"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PhotoView 返回给客户端的照片行.
type PhotoView struct {
	ID       uint   `json:"id"`
	URL      string `json:"url"`
	Caption  string `json:"caption"`
	Titulo   string `json:"titulo"`
	Category string `json:"category"`
	Local    string `json:"local"`
	Ordem    int    `json:"ordem"`
	TempID   string `json:"temp_id,omitempty"`
}

// SkippedOp 被跳过的照片操作（暂存缺失、文件缺失等），不影响其他操作.
type SkippedOp struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	ID     uint   `json:"id,omitempty"`
	TempID string `json:"temp_id,omitempty"`
	Reason string `json:"reason"`
}

// Result 自动保存结果.
type Result struct {
	RelatorioID uint               `json:"relatorio_id"`
	Relatorio   ReportState        `json:"relatorio"`
	Imagens     []PhotoView        `json:"imagens"`
	Created     bool               `json:"created"`
	Skipped     []SkippedOp        `json:"skipped,omitempty"`
	Transitions []workflow.Outcome `json:"-"`
	Removed     []uint             `json:"-"` // 本次删除的照片 id
}

// StateOf 取报告的规范状态.
func StateOf(rel *model.Relatorio) ReportState {
	return ReportState{
		ID:            rel.ID,
		Numero:        rel.DisplayNumero(),
		NumeroProjeto: rel.NumeroProjeto,
		ProjetoID:     rel.ProjetoID,
		Titulo:        rel.Titulo,
		Status:        rel.Status,
		UpdatedAt:     rel.UpdatedAt,
	}
}

// Views 把照片行转换为返回结构；tempIDs 记录本次由暂存提升的照片.
func Views(fotos []model.FotoRelatorio, tempIDs map[uint]string) []PhotoView {
	out := make([]PhotoView, 0, len(fotos))
	for i := range fotos {
		f := &fotos[i]
		out = append(out, PhotoView{
			ID:       f.ID,
			URL:      f.URL(),
			Caption:  f.Legenda,
			Titulo:   f.Titulo,
			Category: f.Categoria,
			Local:    f.Local,
			Ordem:    f.Ordem,
			TempID:   tempIDs[f.ID],
		})
	}

	return out
}

// Coordinator 自动保存协调器.
type Coordinator struct {
	repo   *repository.Repository
	images *imagestore.Store
	policy *workflow.Policy
	now    func() time.Time
	logger zerolog.Logger
}

// New 创建协调器.
func New(repo *repository.Repository, images *imagestore.Store, policy *workflow.Policy) *Coordinator {
	return &Coordinator{
		repo:   repo,
		images: images,
		policy: policy,
		now:    time.Now,
		logger: log.Component("autosave"),
	}
}

// effects 提交之后才执行的存储清理.
type effects struct {
	temps   []*imagestore.TempFile
	removed []string
	tempIDs map[uint]string
}

// Save 创建或合并报告.
//
// 没有 id 时按 projeto_id 创建草稿并分配项目内编号；有 id 时只合并出现的键，
// 按顺序应用照片操作并在同一事务中提交。暂存缺失的照片操作会被跳过.
func (c *Coordinator) Save(ctx context.Context, in *Input, actor workflow.Actor) (*Result, error) {
	if actor.Anonymous() {
		return nil, errs.New(errs.KindForbidden, "sessão sem identidade")
	}

	if in.ID == 0 && in.ProjetoID == 0 {
		return nil, errs.New(errs.KindValidation, "id ou projeto_id é obrigatório")
	}

	res := &Result{}
	fx := &effects{tempIDs: map[uint]string{}}

	var (
		rel *model.Relatorio
		err error
	)

	if in.ID == 0 {
		rel, err = c.create(ctx, in, actor, res, fx)
		res.Created = err == nil
	} else {
		rel, err = c.update(ctx, in, actor, res, fx)
	}

	if err != nil {
		return nil, err
	}

	c.finish(ctx, fx)

	fotos, err := c.repo.ListPhotos(ctx, rel.ID, false)
	if err != nil {
		return nil, err
	}

	res.RelatorioID = rel.ID
	res.Relatorio = StateOf(rel)
	res.Imagens = Views(fotos, fx.tempIDs)

	c.logger.Debug().
		Uint("relatorio_id", rel.ID).
		Bool("created", res.Created).
		Int("fotos", len(fotos)).
		Int("skipped", len(res.Skipped)).
		Msg("autosave committed")

	return res, nil
}

func (c *Coordinator) create(ctx context.Context, in *Input, actor workflow.Actor, res *Result, fx *effects) (*model.Relatorio, error) {
	project, err := c.repo.GetProject(ctx, in.ProjetoID)
	if err != nil {
		return nil, err
	}

	unlock := repository.LockProject(project.ID)
	defer unlock()

	var rel *model.Relatorio

	err = c.repo.Transaction(ctx, func(tx *repository.Repository) error {
		n, numero, err := tx.AllocateNumber(ctx, project)
		if err != nil {
			return err
		}

		now := c.now().UTC()
		rel = &model.Relatorio{
			ProjetoID:     project.ID,
			NumeroProjeto: n,
			Numero:        numero,
			AutorID:       actor.UserID,
			CriadoPor:     actor.UserID,
			AtualizadoPor: actor.UserID,
			DataRelatorio: &now,
		}

		mergeScalars(rel, in)
		rel.Status = model.StatusDraft

		if err := tx.CreateReport(ctx, rel); err != nil {
			return err
		}

		if err := c.applyPhotos(ctx, tx, rel, in.Fotos, res, fx); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rel, nil
}

func (c *Coordinator) update(ctx context.Context, in *Input, actor workflow.Actor, res *Result, fx *effects) (*model.Relatorio, error) {
	var rel *model.Relatorio

	err := c.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error

		rel, err = tx.GetReportPlain(ctx, in.ID)
		if err != nil {
			return err
		}

		now := c.now()

		out, err := c.policy.Apply(rel, workflow.EventEdit, actor, now, "")
		if err != nil {
			return err
		}

		res.Transitions = append(res.Transitions, out)

		mergeScalars(rel, in)

		if in.Status.Set && model.Status(in.Status.V) == model.StatusAwaitingApproval && rel.Status == model.StatusDraft {
			sub, err := c.policy.Apply(rel, workflow.EventSubmit, actor, now, "")
			if err != nil {
				return err
			}

			res.Transitions = append(res.Transitions, sub)
		}

		rel.AtualizadoPor = actor.UserID

		if err := c.applyPhotos(ctx, tx, rel, in.Fotos, res, fx); err != nil {
			return err
		}

		return tx.SaveReport(ctx, rel)
	})
	if err != nil {
		return nil, err
	}

	return rel, nil
}

// applyPhotos 按顺序应用照片操作，最后把 ordem 重排为稠密序列.
func (c *Coordinator) applyPhotos(ctx context.Context, tx *repository.Repository, rel *model.Relatorio, ops []PhotoOp, res *Result, fx *effects) error {
	if len(ops) == 0 {
		return nil
	}

	// 本次请求显式给出 ordem 的照片，重排时优先占据该位置
	pinned := map[uint]int{}

	for i, op := range ops {
		kind := op.Kind()
		skip := func(reason string) {
			res.Skipped = append(res.Skipped, SkippedOp{Index: i, Op: kind.String(), ID: op.ID, TempID: op.TempID, Reason: reason})
			c.logger.Warn().Uint("relatorio_id", rel.ID).Int("index", i).Str("op", kind.String()).Str("reason", reason).Msg("photo op skipped")
		}

		switch kind {
		case OpDelete:
			filename, err := tx.DeletePhoto(ctx, rel.ID, op.ID)
			if errs.KindOf(err) == errs.KindNotFound {
				skip("foto não encontrada")

				continue
			}

			if err != nil {
				return err
			}

			res.Removed = append(res.Removed, op.ID)

			if filename != "" {
				fx.removed = append(fx.removed, filename)
			}
		case OpInsertTemp:
			p, err := c.images.Promote(ctx, tx, op.TempID, rel.ID, op.Meta)
			if errs.KindOf(err) == errs.KindTempMissing {
				skip(errs.Message(err))

				continue
			}

			if err != nil {
				return err
			}

			fx.tempIDs[p.Photo.ID] = op.TempID
			pin(pinned, p.Photo.ID, op.Meta)

			if p.Temp != nil {
				fx.temps = append(fx.temps, p.Temp)
			}
		case OpInsertFile:
			p, err := c.images.Backfill(ctx, tx, rel.ID, op.Ref, op.Meta)
			if k := errs.KindOf(err); k == errs.KindMediaMissing || k == errs.KindValidation {
				skip(errs.Message(err))

				continue
			}

			if err != nil {
				return err
			}

			pin(pinned, p.Photo.ID, op.Meta)
		case OpUpdate:
			f, err := tx.GetPhoto(ctx, rel.ID, op.ID)
			if errs.KindOf(err) == errs.KindNotFound {
				skip("foto não encontrada")

				continue
			}

			if err != nil {
				return err
			}

			if err := imagestore.UpdateMeta(ctx, tx, f, op.Meta); err != nil {
				return err
			}

			pin(pinned, f.ID, op.Meta)
		default:
			skip("operação inválida")
		}
	}

	return tx.DensifyPinned(ctx, rel.ID, pinned)
}

func pin(pinned map[uint]int, id uint, meta imagestore.PhotoMeta) {
	if meta.Ordem != nil {
		pinned[id] = *meta.Ordem
	}
}

// finish 提交后删除已提升的暂存与被删除照片的产物.
func (c *Coordinator) finish(ctx context.Context, fx *effects) {
	for _, tf := range fx.temps {
		c.images.DiscardTemp(ctx, tf)
	}

	for _, name := range fx.removed {
		if err := c.images.Blobs().Delete(ctx, imagestore.PhotoKey(name)); err != nil {
			c.logger.Warn().Err(err).Str("filename", name).Msg("remove photo artifact failed")
		}
	}
}

// mergeScalars 只合并出现的键；显式 null 清空字段.
func mergeScalars(rel *model.Relatorio, in *Input) {
	setString(&rel.Titulo, in.Titulo)
	setString(&rel.Descricao, in.Descricao)
	setString(&rel.Conteudo, in.Conteudo)
	setString(&rel.Categoria, in.Categoria)
	setString(&rel.Local, in.Local)
	setString(&rel.ObservacoesFinais, in.ObservacoesFinais)
	setString(&rel.EmailObra, in.EmailObra)
	setPtr(&rel.Lembrete, in.Lembrete)
	setPtr(&rel.DataRelatorio, in.DataRelatorio)
	setPtr(&rel.Latitude, in.Latitude)
	setPtr(&rel.Longitude, in.Longitude)

	if in.Checklist.Set {
		if in.Checklist.Null {
			rel.ChecklistData = nil
		} else {
			rel.ChecklistData = datatypes.JSON(in.Checklist.V)
		}
	}

	if in.Acompanhantes.Set {
		list := in.Acompanhantes.V
		if list == nil {
			list = []model.Acompanhante{}
		}

		rel.Acompanhantes = datatypes.NewJSONType(list)
	}
}

func setString(dst *string, f Field[string]) {
	if f.Set {
		*dst = f.V
	}
}

func setPtr[T any](dst **T, f Field[T]) {
	switch {
	case !f.Set:
	case f.Null:
		*dst = nil
	default:
		v := f.V
		*dst = &v
	}
}
