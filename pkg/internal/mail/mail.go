// Package mail 把已审批报告的 PDF 逐个发送给收件人.
//
// 每个收件人一次 API 调用，调用之间固定间隔（默认 500ms），单次超时 30s，失败不重试.
package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/pdf"
	"github.com/yeisme/vistoria/pkg/internal/recipients"
	"github.com/yeisme/vistoria/pkg/log"
	"github.com/yeisme/vistoria/pkg/metrics"
	"github.com/yeisme/vistoria/pkg/tz"
)

// Outcome 单个收件人的投递结果.
type Outcome struct {
	Email      string    `json:"email"`
	Success    bool      `json:"success"`
	MessageID  string    `json:"message_id,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Result 一次派发的汇总.
type Result struct {
	Success  bool      `json:"success"`
	Sent     int       `json:"sent"`
	Total    int       `json:"total"`
	Errors   []string  `json:"errors"`
	Outcomes []Outcome `json:"outcomes"`
}

// Dispatcher 邮件派发器.
type Dispatcher struct {
	sender  Sender
	from    string
	pacing  time.Duration
	company string
	now     func() time.Time
	logger  zerolog.Logger
}

// Option 配置 Dispatcher.
type Option func(*Dispatcher)

// WithSender 替换传输层.
func WithSender(s Sender) Option {
	return func(d *Dispatcher) { d.sender = s }
}

// WithCompany 设置正文落款.
func WithCompany(name string) Option {
	return func(d *Dispatcher) { d.company = name }
}

// New 由配置创建派发器，默认使用 HTTPS API 客户端.
func New(cfg configs.MailConfig, opts ...Option) *Dispatcher {
	pacing := cfg.Pacing
	if pacing < 0 {
		pacing = 0
	}

	from := cfg.From
	if from == "" {
		from = configs.DefaultMailFrom
	}

	d := &Dispatcher{
		from:    from,
		pacing:  pacing,
		company: configs.DefaultPDFCompany,
		now:     time.Now,
		logger:  log.Component("mail"),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.sender == nil {
		d.sender = NewAPIClient(cfg)
	}

	return d
}

// Subject 邮件主题.
func Subject(rel *model.Relatorio) string {
	return "Relatório de visita do dia " + tz.FormatShortDate(rel.VisitDate()) + " – Obra " + projectName(rel)
}

// AttachmentName 附件文件名.
func AttachmentName(rel *model.Relatorio) string {
	name := rel.DisplayNumero()
	if p := projectName(rel); p != "" {
		name += "_" + p
	}

	return pdf.SafeFilename(name) + ".pdf"
}

func projectName(rel *model.Relatorio) string {
	if rel.Projeto == nil {
		return ""
	}

	if rel.Projeto.Nome != "" {
		return rel.Projeto.Nome
	}

	return rel.Projeto.Numero
}

// Send 依次向 rcpt.Emails 发送带 PDF 附件的邮件.
// 单个收件人失败不会中断后续发送；ctx 取消时剩余收件人记为失败.
func (d *Dispatcher) Send(ctx context.Context, rel *model.Relatorio, pdfBytes []byte, rcpt *recipients.Result) *Result {
	res := &Result{Errors: []string{}, Outcomes: []Outcome{}}
	if rcpt == nil || len(rcpt.Emails) == 0 {
		return res
	}

	res.Total = len(rcpt.Emails)

	attachment := Attachment{
		Filename: AttachmentName(rel),
		Content:  base64.StdEncoding.EncodeToString(pdfBytes),
	}
	subject := Subject(rel)

	data := bodyData{
		Project: projectName(rel),
		Date:    tz.FormatDate(rel.VisitDate()),
		Numero:  rel.DisplayNumero(),
		Company: d.company,
	}
	if rel.Autor != nil {
		data.AuthorName = rel.Autor.Nome
		data.AuthorEmail = rel.Autor.Email
	}

	for i, to := range rcpt.Emails {
		if i > 0 && d.pacing > 0 {
			if err := pause(ctx, d.pacing); err != nil {
				d.abort(res, rcpt.Emails[i:], err)

				break
			}
		}

		data.Recipient = rcpt.Names[to]

		out := d.sendOne(ctx, to, subject, data, attachment)
		res.Outcomes = append(res.Outcomes, out)

		if out.Success {
			res.Sent++
			metrics.MailSent.WithLabelValues("success").Inc()
		} else {
			res.Errors = append(res.Errors, to+": "+out.Error)
			metrics.MailSent.WithLabelValues("failure").Inc()
		}
	}

	res.Success = res.Sent > 0

	d.logger.Info().
		Uint("relatorio_id", rel.ID).
		Int("sent", res.Sent).
		Int("total", res.Total).
		Msg("report mail dispatched")

	return res
}

func (d *Dispatcher) sendOne(ctx context.Context, to, subject string, data bodyData, att Attachment) Outcome {
	out := Outcome{Email: to, SentAt: d.now().UTC()}

	html, err := renderBody(data)
	if err != nil {
		out.Error = err.Error()

		return out
	}

	id, err := d.sender.Send(ctx, &Message{
		From:        d.from,
		To:          []string{to},
		Subject:     subject,
		HTML:        html,
		Attachments: []Attachment{att},
	})
	if err != nil {
		var se *SendError
		if errors.As(err, &se) {
			out.StatusCode = se.StatusCode
		}

		out.Error = strings.TrimSpace(err.Error())

		d.logger.Warn().Err(err).Str("to", to).Msg("mail delivery failed")

		return out
	}

	out.Success = true
	out.MessageID = id

	return out
}

func (d *Dispatcher) abort(res *Result, rest []string, cause error) {
	for _, to := range rest {
		res.Outcomes = append(res.Outcomes, Outcome{Email: to, Error: cause.Error(), SentAt: d.now().UTC()})
		res.Errors = append(res.Errors, to+": "+cause.Error())
		metrics.MailSent.WithLabelValues("failure").Inc()
	}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
