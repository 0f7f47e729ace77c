package service

import (
	"context"
	"path"
	"strconv"
	"time"

	"github.com/yeisme/vistoria/pkg/cache"
	"github.com/yeisme/vistoria/pkg/internal/pdf"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
	"github.com/yeisme/vistoria/pkg/metrics"
)

// RenderedPDF 渲染好的报告 PDF.
type RenderedPDF struct {
	Data     []byte
	Filename string
	Cached   bool
}

// PDF 渲染报告；同一内容指纹的并发请求只渲染一次，结果缓存在 KV.
func (r *ReportService) PDF(ctx context.Context, id uint, actor workflow.Actor) (*RenderedPDF, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	return r.svc.RenderReport(ctx, id)
}

// RenderReport 渲染报告，不做会话检查；管理命令使用.
func (s *Services) RenderReport(ctx context.Context, id uint) (*RenderedPDF, error) {
	doc, err := pdf.LoadDocument(ctx, s.Repo, s.Images.Blobs(), id)
	if err != nil {
		return nil, err
	}

	data, cached, err := s.renderDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	return &RenderedPDF{Data: data, Filename: doc.Filename(), Cached: cached}, nil
}

func (s *Services) renderDocument(ctx context.Context, doc *pdf.Document) ([]byte, bool, error) {
	render := func(context.Context) ([]byte, error) {
		start := time.Now()
		data, err := s.Renderer.Render(doc)

		if err == nil {
			metrics.PDFRender.WithLabelValues("render").Observe(time.Since(start).Seconds())
		}

		return data, err
	}

	if s.PDFCache == nil {
		data, err := render(ctx)

		return data, false, err
	}

	key := cache.Key("relatorio", strconv.FormatUint(uint64(doc.Report.ID), 10), doc.Fingerprint())

	data, hit, err := s.PDFCache.Bytes(ctx, key, s.cfg.PDF.CacheTTL, render)
	if hit {
		metrics.PDFRender.WithLabelValues("cached").Observe(0)
	}

	return data, hit, err
}

// pdfKey 报告 PDF 在产物存储中的位置.
func (s *Services) pdfKey(doc *pdf.Document) string {
	return path.Join(s.cfg.PDF.OutputDir, doc.Filename())
}
