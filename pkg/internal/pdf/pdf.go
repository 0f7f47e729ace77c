// Package pdf 把报告与其有序照片渲染为 A4 PDF.
//
// 版式：页眉（项目、报告编号、日期）、正文、照片网格（第一页最多 2 张，之后每页 2×2）
// 以及页脚（作者、审批人、审批日期、页码）。主渲染失败时以安全模式（全部图片转码为 JPEG）重试.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/log"
	"github.com/yeisme/vistoria/pkg/tz"
)

// 版式常量，单位 mm.
const (
	pageW        = 210.0
	pageH        = 297.0
	marginX      = 15.0
	marginTop    = 38.0
	marginBottom = 28.0
	contentW     = pageW - 2*marginX
	gridGap      = 6.0
	slotH        = (pageH - marginTop - marginBottom) / 2
	captionH     = 12.0
	imageBoxH    = slotH - captionH - 3

	firstPagePhotos = 2
	gridPagePhotos  = 4
)

// PhotoPages 照片网格占用的页数.
func PhotoPages(n int) int {
	switch {
	case n <= 0:
		return 0
	case n <= firstPagePhotos:
		return 1
	default:
		return 1 + (n-firstPagePhotos+gridPagePhotos-1)/gridPagePhotos
	}
}

// Renderer PDF 渲染器，可并发使用.
type Renderer struct {
	company string
	logger  zerolog.Logger
}

// New 创建渲染器.
func New(cfg configs.PDFConfig) *Renderer {
	company := cfg.CompanyName
	if company == "" {
		company = configs.DefaultPDFCompany
	}

	return &Renderer{company: company, logger: log.Component("pdf")}
}

// Render 渲染文档；主渲染失败时尝试安全模式，两者都失败返回 RenderFailure.
func (r *Renderer) Render(doc *Document) ([]byte, error) {
	if doc == nil || doc.Report == nil {
		return nil, errs.New(errs.KindValidation, "documento vazio")
	}

	out, err := r.render(doc, false)
	if err == nil {
		return out, nil
	}

	r.logger.Warn().Err(err).Uint("relatorio_id", doc.Report.ID).Msg("primary render failed, retrying in safe mode")

	out, err = r.render(doc, true)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindRenderFailure, "falha ao gerar PDF do relatório %s", doc.Report.DisplayNumero())
	}

	return out, nil
}

type page struct {
	pdf  *fpdf.Fpdf
	tr   func(string) string
	doc  *Document
	safe bool
}

func (r *Renderer) render(doc *Document, safe bool) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pdf engine panic: %v", p)
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)

	stamp := doc.Report.UpdatedAt
	if stamp.IsZero() {
		stamp = doc.Report.CreatedAt
	}

	if !stamp.IsZero() {
		pdf.SetCreationDate(stamp.UTC())
		pdf.SetModificationDate(stamp.UTC())
	}

	pg := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), doc: doc, safe: safe}

	pdf.SetTitle(reportTitle(doc.Report), true)
	pdf.SetCreator(r.company, true)

	if doc.Report.Autor != nil {
		pdf.SetAuthor(doc.Report.Autor.Nome, true)
	}

	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.AliasNbPages("")
	pdf.SetHeaderFuncMode(func() { r.header(pg) }, true)
	pdf.SetFooterFunc(func() { r.footer(pg) })

	pdf.AddPage()
	r.body(pg)
	r.photos(pg)

	if pdf.Err() {
		return nil, pdf.Error()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func reportTitle(rel *model.Relatorio) string {
	if t := strings.TrimSpace(rel.Titulo); t != "" {
		return t
	}

	return "Relatório de visita " + rel.DisplayNumero()
}

func (r *Renderer) header(pg *page) {
	pdf, tr, rel := pg.pdf, pg.tr, pg.doc.Report

	pdf.SetY(12)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(contentW/2, 7, tr(r.company), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW/2, 7, tr("Relatório Nº "+rel.DisplayNumero()), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW*2/3, 6, tr(rel.Projeto.Label()), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW/3, 6, tr("Data: "+tz.FormatDate(rel.VisitDate())), "", 1, "R", false, 0, "")

	pdf.SetDrawColor(120, 120, 120)
	pdf.SetLineWidth(0.4)
	pdf.Line(marginX, 32, pageW-marginX, 32)
}

func (r *Renderer) footer(pg *page) {
	pdf, tr, rel := pg.pdf, pg.tr, pg.doc.Report

	pdf.SetY(-22)
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetLineWidth(0.2)
	pdf.Line(marginX, pdf.GetY(), pageW-marginX, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(70, 70, 70)

	author := "-"
	if rel.Autor != nil {
		author = rel.Autor.Nome
	}

	approval := "Aprovação: pendente"
	if rel.Aprovador != nil && rel.DataAprovacao != nil && rel.Status == model.StatusApproved {
		approval = "Aprovado por " + rel.Aprovador.Nome + " em " + tz.FormatDateTime(*rel.DataAprovacao)
	}

	pdf.CellFormat(contentW/2, 5, tr("Autor: "+author), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW/2, 5, tr(approval), "", 1, "R", false, 0, "")
	pdf.CellFormat(contentW, 5, tr(fmt.Sprintf("Página %d/{nb}", pdf.PageNo())), "", 0, "R", false, 0, "")
}

func (r *Renderer) body(pg *page) {
	pdf, tr, rel := pg.pdf, pg.tr, pg.doc.Report

	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 7, tr(reportTitle(rel)), "", "L", false)
	pdf.Ln(2)

	rows := [][2]string{
		{"Obra", rel.Projeto.Label()},
		{"Relatório", rel.DisplayNumero()},
		{"Data da visita", tz.FormatDate(rel.VisitDate())},
		{"Status", rel.Status.Label()},
	}

	if rel.Projeto != nil && rel.Projeto.Endereco != "" {
		rows = append(rows, [2]string{"Endereço", rel.Projeto.Endereco})
	}

	if rel.Categoria != "" {
		rows = append(rows, [2]string{"Categoria", rel.Categoria})
	}

	if rel.Local != "" {
		rows = append(rows, [2]string{"Local", rel.Local})
	}

	if rel.Lembrete != nil {
		rows = append(rows, [2]string{"Próxima visita", tz.FormatDateTime(*rel.Lembrete)})
	}

	if rel.Latitude != nil && rel.Longitude != nil {
		rows = append(rows, [2]string{"Coordenadas", fmt.Sprintf("%.6f, %.6f", *rel.Latitude, *rel.Longitude)})
	}

	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(38, 5.5, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5.5, tr(row[1]), "", "L", false)
	}

	pdf.Ln(3)

	section(pg, "Descrição", rel.Descricao)
	section(pg, "Relato da visita", rel.Conteudo)
	section(pg, "Acompanhantes", companionsText(rel.Companions()))
	section(pg, "Checklist", strings.Join(checklistLines(rel.ChecklistData), "\n"))
	section(pg, "Observações finais", rel.ObservacoesFinais)
}

func section(pg *page, title, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	pdf, tr := pg.pdf, pg.tr

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(0, 7, tr(title), "", 1, "L", true, 0, "")
	pdf.Ln(1)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(text), "", "L", false)
	pdf.Ln(3)
}

func companionsText(list []model.Acompanhante) string {
	lines := make([]string, 0, len(list))

	for _, a := range list {
		line := "- " + a.Nome
		if a.Funcao != "" {
			line += " (" + a.Funcao + ")"
		}

		if a.Email != "" {
			line += " <" + a.Email + ">"
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// photos 按 ordem 排版照片网格；每张照片（含占位）固定占一个格子，页数只取决于照片数量.
func (r *Renderer) photos(pg *page) {
	pdf := pg.pdf
	if len(pg.doc.Photos) == 0 || pdf.Err() {
		return
	}

	pdf.SetAutoPageBreak(false, 0)
	defer pdf.SetAutoPageBreak(true, marginBottom)

	for i, p := range pg.doc.Photos {
		x, y, w, slot := slotRect(i)
		if slot == 0 {
			pdf.AddPage()
		}

		img := prepareImage(p.Data)
		if pg.safe && !img.placeholder {
			img = safeImage(p.Data)
		}

		r.drawPhoto(pg, i, img, x, y, w)
		r.drawCaption(pg, i, &p, x, y+imageBoxH+1, w)

		if pdf.Err() {
			return
		}
	}
}

// slotRect 返回第 i 张照片的格子位置以及它在本页的序号.
func slotRect(i int) (x, y, w float64, slot int) {
	if i < firstPagePhotos {
		return marginX, marginTop + float64(i)*slotH, contentW, i
	}

	slot = (i - firstPagePhotos) % gridPagePhotos
	col, row := slot%2, slot/2
	w = (contentW - gridGap) / 2

	return marginX + float64(col)*(w+gridGap), marginTop + float64(row)*slotH, w, slot
}

func (r *Renderer) drawPhoto(pg *page, i int, img prepared, x, y, w float64) {
	pdf := pg.pdf

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.2)
	pdf.Rect(x, y, w, imageBoxH, "D")

	if len(img.data) == 0 || img.width == 0 || img.height == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(110, 110, 110)
		pdf.SetXY(x, y+imageBoxH/2-3)
		pdf.CellFormat(w, 6, pg.tr("Foto não disponível"), "", 0, "C", false, 0, "")

		return
	}

	name := fmt.Sprintf("foto-%d", i)
	opts := fpdf.ImageOptions{ImageType: img.kind}

	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))

	if pdf.Err() {
		return
	}

	ratio := min((w-2)/float64(img.width), (imageBoxH-2)/float64(img.height))
	dw, dh := float64(img.width)*ratio, float64(img.height)*ratio

	pdf.ImageOptions(name, x+(w-dw)/2, y+(imageBoxH-dh)/2, dw, dh, false, opts, 0, "")
}

func (r *Renderer) drawCaption(pg *page, i int, p *Photo, x, y, w float64) {
	pdf, tr := pg.pdf, pg.tr

	caption := fmt.Sprintf("Foto %d", i+1)
	if s := strings.TrimSpace(p.Legenda); s != "" {
		caption += " - " + s
	}

	var meta []string

	for _, s := range []string{p.Categoria, p.Local} {
		if s = strings.TrimSpace(s); s != "" {
			meta = append(meta, s)
		}
	}

	pdf.SetTextColor(40, 40, 40)
	pdf.SetFont("Helvetica", "B", 8)

	lines := pdf.SplitText(tr(caption), w)
	if len(lines) > 2 {
		lines = lines[:2]
	}

	for n, line := range lines {
		pdf.SetXY(x, y+float64(n)*4)
		pdf.CellFormat(w, 4, line, "", 0, "C", false, 0, "")
	}

	if len(meta) > 0 {
		pdf.SetFont("Helvetica", "", 7)
		pdf.SetXY(x, y+float64(len(lines))*4)
		pdf.CellFormat(w, 3.5, tr(strings.Join(meta, " | ")), "", 0, "C", false, 0, "")
	}
}

// Stamp 渲染时间戳，用于产物文件名.
func Stamp(t time.Time) string {
	return tz.Local(t).Format("20060102_150405")
}
