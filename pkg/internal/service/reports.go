package service

import (
	"context"
	"encoding/json"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/autosave"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/recipients"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
	"github.com/yeisme/vistoria/pkg/queue"
)

// ReportService 报告读取与状态迁移.
type ReportService struct {
	svc *Services
}

// Permissions 当前会话对报告可执行的操作.
type Permissions struct {
	CanEdit    bool `json:"can_edit"`
	CanSubmit  bool `json:"can_submit"`
	CanApprove bool `json:"can_approve"`
	CanDelete  bool `json:"can_delete"`
}

// ReportDetail 编辑页需要的完整报告.
type ReportDetail struct {
	Relatorio     *model.Relatorio     `json:"relatorio"`
	Numero        string               `json:"numero"`
	StatusLabel   string               `json:"status_label"`
	Imagens       []autosave.PhotoView `json:"imagens"`
	Checklist     json.RawMessage      `json:"checklist"`
	Acompanhantes []model.Acompanhante `json:"acompanhantes"`
	Permissions   Permissions          `json:"permissions"`
}

func requireActor(actor workflow.Actor) error {
	if actor.Anonymous() {
		return errs.New(errs.KindForbidden, "sessão sem identidade")
	}

	return nil
}

// Get 加载报告、照片、检查表与同行人员.
func (r *ReportService) Get(ctx context.Context, id uint, actor workflow.Actor) (*ReportDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	rel, err := r.svc.Repo.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	checklist := json.RawMessage(rel.ChecklistData)
	if len(checklist) == 0 {
		checklist = json.RawMessage("null")
	}

	views := autosave.Views(rel.Fotos, nil)
	rel.Fotos = nil

	return &ReportDetail{
		Relatorio:     rel,
		Numero:        rel.DisplayNumero(),
		StatusLabel:   rel.Status.Label(),
		Imagens:       views,
		Checklist:     checklist,
		Acompanhantes: rel.Companions(),
		Permissions:   r.permissions(rel, actor),
	}, nil
}

func (r *ReportService) permissions(rel *model.Relatorio, actor workflow.Actor) Permissions {
	can := func(ev workflow.Event) bool {
		_, err := r.svc.Policy.Check(rel, ev, actor)

		return err == nil
	}

	return Permissions{
		CanEdit:    can(workflow.EventEdit),
		CanSubmit:  can(workflow.EventSubmit),
		CanApprove: can(workflow.EventApprove),
		CanDelete:  can(workflow.EventDelete),
	}
}

// AutoSave 合并报告状态，提交后发送创建、提交与待审批编辑的通知和事件.
func (r *ReportService) AutoSave(ctx context.Context, in *autosave.Input, actor workflow.Actor) (*autosave.Result, error) {
	res, err := r.svc.AutoSave.Save(ctx, in, actor)
	if err != nil {
		return nil, err
	}

	r.svc.evictPhotos(ctx, res.Removed...)

	rel := &model.Relatorio{
		ID:            res.Relatorio.ID,
		Numero:        res.Relatorio.Numero,
		NumeroProjeto: res.Relatorio.NumeroProjeto,
		ProjetoID:     res.Relatorio.ProjetoID,
		Status:        res.Relatorio.Status,
	}

	if res.Created {
		rel.AutorID = actor.UserID
		r.svc.Events.PublishReport(ctx, queue.TopicReportCreated, queue.ReportEventPayload{
			Report:  refOf(rel),
			To:      string(rel.Status),
			ActorID: actor.UserID,
		})
	}

	for _, out := range res.Transitions {
		r.svc.afterTransition(ctx, rel, out, actor, "")
	}

	return res, nil
}

// transition 在事务中执行迁移并条件写入状态.
func (r *ReportService) transition(ctx context.Context, id uint, ev workflow.Event, actor workflow.Actor, comment string) (*model.Relatorio, workflow.Outcome, error) {
	var (
		rel *model.Relatorio
		out workflow.Outcome
	)

	err := r.svc.Repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error

		rel, err = tx.GetReportPlain(ctx, id)
		if err != nil {
			return err
		}

		now := r.svc.now()

		out, err = r.svc.Policy.Apply(rel, ev, actor, now, comment)
		if err != nil {
			return err
		}

		rel.AtualizadoPor = actor.UserID
		rel.UpdatedAt = now.UTC()

		return tx.UpdateStatus(ctx, rel, out.From)
	})
	if err != nil {
		return nil, out, err
	}

	r.svc.afterTransition(ctx, rel, out, actor, rel.ComentarioAprovacao)

	return rel, out, nil
}

// Submit 草稿提交审批.
func (r *ReportService) Submit(ctx context.Context, id uint, actor workflow.Actor) (model.Status, error) {
	rel, _, err := r.transition(ctx, id, workflow.EventSubmit, actor, "")
	if err != nil {
		return "", err
	}

	return rel.Status, nil
}

// Reject 驳回，意见写入 comentario_aprovacao 并通知作者.
func (r *ReportService) Reject(ctx context.Context, id uint, actor workflow.Actor, comment string) (model.Status, error) {
	rel, _, err := r.transition(ctx, id, workflow.EventReject, actor, comment)
	if err != nil {
		return "", err
	}

	return rel.Status, nil
}

// ApproveResult 审批结果；Dispatch 仅在同步执行副作用时存在.
type ApproveResult struct {
	Status   model.Status    `json:"status"`
	Async    bool            `json:"async"`
	Dispatch *DispatchReport `json:"dispatch,omitempty"`
}

// Approve 提交审批迁移后执行副作用链；副作用失败不会回滚状态，也不会作为错误返回.
func (r *ReportService) Approve(ctx context.Context, id uint, actor workflow.Actor) (*ApproveResult, error) {
	rel, _, err := r.transition(ctx, id, workflow.EventApprove, actor, "")
	if err != nil {
		return nil, err
	}

	res := &ApproveResult{Status: rel.Status}

	if r.svc.cfg.Mail.Async {
		res.Async = true

		go r.svc.Approval.Run(background(ctx), rel.ID)

		return res, nil
	}

	res.Dispatch = r.svc.Approval.Run(ctx, rel.ID)

	return res, nil
}

// Delete 删除报告、照片行与投递记录，提交后删除照片产物.
func (r *ReportService) Delete(ctx context.Context, id uint, actor workflow.Actor) error {
	var (
		rel      *model.Relatorio
		files    []string
		photoIDs []uint
	)

	err := r.svc.Repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error

		rel, err = tx.GetReportPlain(ctx, id)
		if err != nil {
			return err
		}

		if _, err := r.svc.Policy.Check(rel, workflow.EventDelete, actor); err != nil {
			return err
		}

		fotos, err := tx.ListPhotos(ctx, id, false)
		if err != nil {
			return err
		}

		for i := range fotos {
			photoIDs = append(photoIDs, fotos[i].ID)
		}

		files, err = tx.DeleteReport(ctx, id)

		return err
	})
	if err != nil {
		return err
	}

	for _, name := range files {
		if err := r.svc.Images.Blobs().Delete(ctx, imagestore.PhotoKey(name)); err != nil {
			r.svc.logger.Warn().Err(err).Str("filename", name).Msg("remove photo artifact failed")
		}
	}

	r.svc.evictPhotos(ctx, photoIDs...)

	r.svc.Events.PublishReport(ctx, queue.TopicReportDeleted, queue.ReportEventPayload{
		Report:  refOf(rel),
		From:    string(rel.Status),
		ActorID: actor.UserID,
	})

	return nil
}

// DeletePhoto 删除单张照片；等同一次编辑，受编辑门禁约束.
func (r *ReportService) DeletePhoto(ctx context.Context, reportID, photoID uint, actor workflow.Actor) error {
	var (
		rel      *model.Relatorio
		out      workflow.Outcome
		filename string
	)

	err := r.svc.Repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error

		rel, err = tx.GetReportPlain(ctx, reportID)
		if err != nil {
			return err
		}

		out, err = r.svc.Policy.Apply(rel, workflow.EventEdit, actor, r.svc.now(), "")
		if err != nil {
			return err
		}

		filename, err = tx.DeletePhoto(ctx, reportID, photoID)
		if err != nil {
			return err
		}

		if err := tx.Densify(ctx, reportID); err != nil {
			return err
		}

		rel.AtualizadoPor = actor.UserID

		return tx.SaveReport(ctx, rel)
	})
	if err != nil {
		return err
	}

	if filename != "" {
		if err := r.svc.Images.Blobs().Delete(ctx, imagestore.PhotoKey(filename)); err != nil {
			r.svc.logger.Warn().Err(err).Str("filename", filename).Msg("remove photo artifact failed")
		}
	}

	r.svc.evictPhotos(ctx, photoID)

	r.svc.afterTransition(ctx, rel, out, actor, "")

	return nil
}

// Notifications 会话用户的站内通知.
func (r *ReportService) Notifications(ctx context.Context, actor workflow.Actor, unreadOnly bool, limit int) ([]model.Notificacao, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	return r.svc.Repo.ListNotifications(ctx, actor.UserID, unreadOnly, limit)
}

// Dispatches 报告的邮件投递记录.
func (r *ReportService) Dispatches(ctx context.Context, id uint, actor workflow.Actor) ([]model.EnvioRelatorio, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	if _, err := r.svc.Repo.GetReportPlain(ctx, id); err != nil {
		return nil, err
	}

	return r.svc.Repo.ListDispatches(ctx, id)
}

// ResolveRecipients 计算报告的收件人集合（不发送）.
func (s *Services) ResolveRecipients(ctx context.Context, id uint) (*recipients.Result, error) {
	rel, err := s.Repo.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.Recipients.Resolve(ctx, rel)
}
