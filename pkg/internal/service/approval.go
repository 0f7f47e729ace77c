package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/mail"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/pdf"
	"github.com/yeisme/vistoria/pkg/internal/recipients"
	"github.com/yeisme/vistoria/pkg/queue"
	"github.com/yeisme/vistoria/pkg/tracing"
)

// 副作用链提前结束的原因.
const (
	SkipLoadFailed   = "load_failed"
	SkipRenderFailed = "render_failed"
	SkipNoRecipients = "no_recipients"
	SkipMailDisabled = "mail_disabled"
)

// DispatchReport 审批副作用链的执行结果.
type DispatchReport struct {
	RelatorioID uint         `json:"relatorio_id"`
	PDFKey      string       `json:"pdf_key,omitempty"`
	Recipients  []string     `json:"recipients"`
	Mail        *mail.Result `json:"mail,omitempty"`
	Skipped     string       `json:"skipped,omitempty"`
	Errors      []string     `json:"errors,omitempty"`
}

// ApprovalOrchestrator 审批通过后的副作用：渲染并保存 PDF、解析收件人、发送邮件、
// 写投递记录、通知作者。每一步都是尽力而为，不回滚已提交的状态.
type ApprovalOrchestrator struct {
	svc    *Services
	logger zerolog.Logger
}

// Run 执行副作用链；返回值只用于日志与同步调用方，错误不会向上传播.
func (o *ApprovalOrchestrator) Run(ctx context.Context, reportID uint) *DispatchReport {
	ctx, end := tracing.Step(ctx, "approval.run", attribute.Int64("relatorio_id", int64(reportID)))
	defer end(nil)

	rep := &DispatchReport{RelatorioID: reportID, Recipients: []string{}}
	logger := o.logger.With().Uint("relatorio_id", reportID).Logger()

	doc, err := o.load(ctx, reportID)
	if err != nil {
		logger.Error().Err(err).Msg("load approved report failed")
		rep.Skipped = SkipLoadFailed
		rep.Errors = append(rep.Errors, errs.Message(err))

		return rep
	}

	rel := doc.Report
	defer o.finish(ctx, rel, rep)

	data, err := o.render(ctx, doc, rep)
	if err != nil {
		logger.Error().Err(err).Msg("approval pdf render failed, mail skipped")
		rep.Skipped = SkipRenderFailed
		rep.Errors = append(rep.Errors, errs.Message(err))

		return rep
	}

	rcpt, err := o.resolve(ctx, rel)
	if err != nil {
		logger.Error().Err(err).Msg("resolve recipients failed")
		rep.Errors = append(rep.Errors, errs.Message(err))
	}

	if rcpt == nil || rcpt.Total == 0 {
		logger.Warn().Msg("approved report has no recipients")
		rep.Skipped = SkipNoRecipients

		return rep
	}

	rep.Recipients = rcpt.Emails

	if !o.svc.cfg.Mail.Enabled {
		logger.Warn().Int("recipients", rcpt.Total).Msg("mail disabled, dispatch skipped")
		rep.Skipped = SkipMailDisabled

		return rep
	}

	sendCtx, sendEnd := tracing.Step(ctx, "approval.mail", attribute.Int("recipients", rcpt.Total))
	res := o.svc.Mailer.Send(sendCtx, rel, data, rcpt)
	sendEnd(nil)

	rep.Mail = res
	rep.Errors = append(rep.Errors, res.Errors...)

	o.record(ctx, rel, res)

	logger.Info().Int("sent", res.Sent).Int("total", res.Total).Msg("approval dispatch finished")

	return rep
}

func (o *ApprovalOrchestrator) load(ctx context.Context, reportID uint) (*pdf.Document, error) {
	ctx, end := tracing.Step(ctx, "approval.load")

	doc, err := pdf.LoadDocument(ctx, o.svc.Repo, o.svc.Images.Blobs(), reportID)
	end(err)

	return doc, err
}

// render 渲染并把 PDF 写入产物存储；写入失败不影响发送.
func (o *ApprovalOrchestrator) render(ctx context.Context, doc *pdf.Document, rep *DispatchReport) ([]byte, error) {
	ctx, end := tracing.Step(ctx, "approval.render")

	data, _, err := o.svc.renderDocument(ctx, doc)
	end(err)

	if err != nil {
		return nil, err
	}

	key := o.svc.pdfKey(doc)
	if err := o.svc.Images.Blobs().Put(ctx, key, data, "application/pdf"); err != nil {
		o.logger.Error().Err(err).Uint("relatorio_id", doc.Report.ID).Str("key", key).Msg("persist approval pdf failed")
		rep.Errors = append(rep.Errors, "pdf não salvo: "+err.Error())
	} else {
		rep.PDFKey = key
	}

	return data, nil
}

func (o *ApprovalOrchestrator) resolve(ctx context.Context, rel *model.Relatorio) (*recipients.Result, error) {
	ctx, end := tracing.Step(ctx, "approval.recipients")

	res, err := o.svc.Recipients.Resolve(ctx, rel)
	end(err)

	return res, err
}

// record 写入每个收件人的投递记录.
func (o *ApprovalOrchestrator) record(ctx context.Context, rel *model.Relatorio, res *mail.Result) {
	rows := make([]model.EnvioRelatorio, 0, len(res.Outcomes))
	for _, out := range res.Outcomes {
		rows = append(rows, model.EnvioRelatorio{
			RelatorioID: rel.ID,
			Email:       out.Email,
			Sucesso:     out.Success,
			MessageID:   out.MessageID,
			StatusCode:  out.StatusCode,
			Erro:        out.Error,
			EnviadoEm:   out.SentAt,
		})
	}

	if err := o.svc.Repo.CreateDispatches(ctx, rows); err != nil {
		o.logger.Error().Err(err).Uint("relatorio_id", rel.ID).Msg("write dispatch log failed")
	}
}

// finish 通知作者并发布 vs.report.dispatched.
func (o *ApprovalOrchestrator) finish(ctx context.Context, rel *model.Relatorio, rep *DispatchReport) {
	o.svc.notify(ctx, rel.AutorID, rel, model.NotificacaoAprovado, "Relatório aprovado", approvalMessage(rel, rep))

	payload := queue.DispatchPayload{
		Report:     refOf(rel),
		PDFKey:     rep.PDFKey,
		Recipients: len(rep.Recipients),
		Errors:     rep.Errors,
		Skipped:    rep.Skipped,
	}
	if rep.Mail != nil {
		payload.Sent = rep.Mail.Sent
	}

	o.svc.Events.PublishDispatched(ctx, payload)
}

func approvalMessage(rel *model.Relatorio, rep *DispatchReport) string {
	numero := rel.DisplayNumero()

	switch rep.Skipped {
	case SkipRenderFailed:
		return fmt.Sprintf("O relatório %s foi aprovado, mas o PDF não pôde ser gerado e nenhum e-mail foi enviado.", numero)
	case SkipNoRecipients:
		return fmt.Sprintf("O relatório %s foi aprovado. Nenhum destinatário foi encontrado para o envio.", numero)
	case SkipMailDisabled:
		return fmt.Sprintf("O relatório %s foi aprovado. O envio de e-mails está desativado.", numero)
	}

	if rep.Mail == nil {
		return fmt.Sprintf("O relatório %s foi aprovado.", numero)
	}

	msg := fmt.Sprintf("O relatório %s foi aprovado e enviado para %d de %d destinatários.", numero, rep.Mail.Sent, rep.Mail.Total)
	if len(rep.Mail.Errors) > 0 {
		msg += " Falhas: " + strings.Join(rep.Mail.Errors, "; ")
	}

	return msg
}
