package pdf

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
)

// Photo 渲染用照片；Data 为空时渲染占位.
type Photo struct {
	ID        uint
	Data      []byte
	MimeType  string
	Hash      string
	Legenda   string
	Categoria string
	Local     string
	Ordem     int
}

// Document 渲染输入：报告（含项目、作者、审批人）与按 ordem 排序的照片.
type Document struct {
	Report *model.Relatorio
	Photos []Photo
}

// LoadDocument 加载报告与照片字节；数据库中没有字节时回退到文件产物.
func LoadDocument(ctx context.Context, repo *repository.Repository, blobs blob.Store, reportID uint) (*Document, error) {
	rel, err := repo.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	fotos, err := repo.ListPhotos(ctx, reportID, true)
	if err != nil {
		return nil, err
	}

	doc := &Document{Report: rel, Photos: make([]Photo, 0, len(fotos))}

	for i := range fotos {
		f := &fotos[i]
		p := Photo{
			ID:        f.ID,
			Data:      f.ImagemData,
			MimeType:  f.ContentType,
			Hash:      f.ImagemHash,
			Legenda:   f.Legenda,
			Categoria: f.Categoria,
			Local:     f.Local,
			Ordem:     f.Ordem,
		}

		if len(p.Data) == 0 && f.Filename != "" && blobs != nil {
			if data, err := blobs.Get(ctx, imagestore.PhotoKey(f.Filename)); err == nil {
				p.Data = data
				p.Hash = imagestore.Hash(data)
			}
		}

		doc.Photos = append(doc.Photos, p)
	}

	sort.SliceStable(doc.Photos, func(i, j int) bool { return doc.Photos[i].Ordem < doc.Photos[j].Ordem })

	return doc, nil
}

// Fingerprint 文档内容指纹，用作缓存键的一部分.
func (d *Document) Fingerprint() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d|%d|%s|%s", d.Report.ID, d.Report.UpdatedAt.UnixNano(), d.Report.Status, d.Report.Numero)

	for _, p := range d.Photos {
		fmt.Fprintf(&b, "|%d:%d:%s:%s", p.ID, p.Ordem, p.Hash, p.Legenda)
	}

	return b.String()
}

// Filename 附件文件名：<numero>_<projeto>.pdf.
func (d *Document) Filename() string {
	name := d.Report.DisplayNumero()
	if d.Report.Projeto != nil && d.Report.Projeto.Nome != "" {
		name += "_" + d.Report.Projeto.Nome
	}

	return SafeFilename(name) + ".pdf"
}

const maxChecklistLines = 40

// checklistLines 把 checklist JSON 摘要为 "项: 值" 行；键按字典序.
func checklistLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}

	var v any
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return nil
	}

	var lines []string

	walkChecklist("", v, &lines)

	if len(lines) > maxChecklistLines {
		rest := len(lines) - maxChecklistLines
		lines = append(lines[:maxChecklistLines], fmt.Sprintf("... (+%d itens)", rest))
	}

	return lines
}

func walkChecklist(prefix string, v any, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		if label, value, ok := checklistItem(t); ok {
			*out = append(*out, joinLabel(prefix, label)+": "+value)

			return
		}

		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			walkChecklist(joinLabel(prefix, k), t[k], out)
		}
	case []any:
		for _, item := range t {
			walkChecklist(prefix, item, out)
		}
	default:
		if prefix == "" {
			return
		}

		*out = append(*out, prefix+": "+scalarLabel(t))
	}
}

// checklistItem 识别 {item|nome|label|descricao, status|valor|resposta|checked} 形式的条目.
func checklistItem(m map[string]any) (string, string, bool) {
	var label string

	for _, k := range []string{"item", "nome", "label", "descricao", "pergunta"} {
		if s, ok := m[k].(string); ok && s != "" {
			label = s

			break
		}
	}

	if label == "" {
		return "", "", false
	}

	for _, k := range []string{"status", "valor", "resposta", "checked", "ok"} {
		if v, ok := m[k]; ok {
			value := scalarLabel(v)
			if obs, ok := m["observacao"].(string); ok && obs != "" {
				value += " (" + obs + ")"
			}

			return label, value, true
		}
	}

	return label, "-", true
}

func joinLabel(prefix, k string) string {
	if prefix == "" {
		return k
	}

	return prefix + " / " + k
}

func scalarLabel(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case bool:
		if t {
			return "Sim"
		}

		return "Não"
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", t), "0"), ".")
	case string:
		if t == "" {
			return "-"
		}

		return t
	default:
		return fmt.Sprint(t)
	}
}
