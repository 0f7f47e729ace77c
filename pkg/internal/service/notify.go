package service

import (
	"context"
	"fmt"

	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
	"github.com/yeisme/vistoria/pkg/metrics"
	"github.com/yeisme/vistoria/pkg/queue"
)

// notify 写入站内通知；失败只记录日志.
func (s *Services) notify(ctx context.Context, userID uint, rel *model.Relatorio, tipo, titulo, msg string) {
	if userID == 0 {
		return
	}

	rid := rel.ID
	n := &model.Notificacao{
		UsuarioID:   userID,
		RelatorioID: &rid,
		Tipo:        tipo,
		Titulo:      titulo,
		Mensagem:    msg,
	}

	if err := s.Repo.CreateNotification(ctx, n); err != nil {
		s.logger.Error().Err(err).Uint("relatorio_id", rel.ID).Uint("usuario_id", userID).Str("tipo", tipo).Msg("create notification failed")
	}
}

// notifyApprovers 通知全部全局审批人，跳过操作者本人.
func (s *Services) notifyApprovers(ctx context.Context, rel *model.Relatorio, actor workflow.Actor, tipo, titulo, msg string) {
	approvers, err := s.globalApprovers(ctx)
	if err != nil {
		s.logger.Error().Err(err).Uint("relatorio_id", rel.ID).Msg("list global approvers failed")

		return
	}

	for _, u := range approvers {
		if u.ID == actor.UserID {
			continue
		}

		s.notify(ctx, u.ID, rel, tipo, titulo, msg)
	}
}

func refOf(rel *model.Relatorio) queue.ReportRef {
	return queue.ReportRef{RelatorioID: rel.ID, Numero: rel.DisplayNumero(), ProjetoID: rel.ProjetoID}
}

// afterTransition 状态迁移提交后的通知与事件.
func (s *Services) afterTransition(ctx context.Context, rel *model.Relatorio, out workflow.Outcome, actor workflow.Actor, comment string) {
	metrics.Transitions.WithLabelValues(string(out.Event), string(out.To)).Inc()

	payload := queue.ReportEventPayload{
		Report:  refOf(rel),
		From:    string(out.From),
		To:      string(out.To),
		ActorID: actor.UserID,
		Comment: comment,
	}
	numero := rel.DisplayNumero()

	switch {
	case out.Event == workflow.EventSubmit:
		s.notifyApprovers(ctx, rel, actor, model.NotificacaoPendente,
			"Relatório aguardando aprovação",
			fmt.Sprintf("O relatório %s foi enviado para aprovação por %s.", numero, actorName(actor)))
		s.Events.PublishReport(ctx, queue.TopicReportSubmitted, payload)
	case out.Event == workflow.EventReject:
		s.notify(ctx, rel.AutorID, rel, model.NotificacaoRejeitado,
			"Relatório rejeitado",
			rejectMessage(numero, comment))
		s.Events.PublishReport(ctx, queue.TopicReportRejected, payload)
	case out.Event == workflow.EventApprove:
		s.Events.PublishReport(ctx, queue.TopicReportApproved, payload)
	case out.NotifyApprovers:
		s.notifyApprovers(ctx, rel, actor, model.NotificacaoEditadoPendente,
			"Relatório editado durante a aprovação",
			fmt.Sprintf("O relatório %s foi alterado por %s enquanto aguardava aprovação.", numero, actorName(actor)))
		s.Events.PublishReport(ctx, queue.TopicReportEditedPending, payload)
	}
}

func actorName(a workflow.Actor) string {
	switch {
	case a.Nome != "":
		return a.Nome
	case a.Email != "":
		return a.Email
	default:
		return fmt.Sprintf("usuário %d", a.UserID)
	}
}

func rejectMessage(numero, comment string) string {
	if comment == "" {
		return fmt.Sprintf("O relatório %s foi rejeitado.", numero)
	}

	return fmt.Sprintf("O relatório %s foi rejeitado: %s", numero, comment)
}
