package handle

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/autosave"
	"github.com/yeisme/vistoria/pkg/internal/types"
	"github.com/yeisme/vistoria/pkg/rule"
)

// autosaveMaxBody 自动保存 JSON 的上限；照片字节走暂存上传.
const autosaveMaxBody = 4 << 20

// AutoSave 创建或合并报告状态.
//
//	@Summary		自动保存报告
//	@Description	没有 id 时按 projeto_id 创建报告；有 id 时合并字段与照片增量，返回完整的保存后状态
//	@Tags			relatorios
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object	true	"报告片段与照片增量"
//	@Success		200		{object}	types.AutoSaveResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		403		{object}	types.ErrorResponse
//	@Failure		404		{object}	types.ErrorResponse
//	@Router			/api/relatorios/autosave [post]
func AutoSave(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, autosaveMaxBody+1))
	if err != nil {
		fail(c, errs.Wrap(err, errs.KindValidation, "corpo da requisição ilegível"))

		return
	}

	if len(body) > autosaveMaxBody {
		fail(c, errs.New(errs.KindOversize, "corpo da requisição muito grande"))

		return
	}

	in, err := autosave.ParseInput(body)
	if err != nil {
		fail(c, err)

		return
	}

	res, err := svc.Reports.AutoSave(c.Request.Context(), in, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.AutoSaveResponse{Success: true, Result: res})
}

// GetReport 加载报告用于编辑.
//
//	@Summary	报告详情
//	@Tags		relatorios
//	@Produce	json
//	@Param		id	path		int	true	"报告 id"
//	@Success	200	{object}	types.ReportResponse
//	@Failure	403	{object}	types.ErrorResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/relatorios/{id} [get]
func GetReport(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := svc.Reports.Get(c.Request.Context(), id, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.ReportResponse{Success: true, ReportDetail: detail})
}

// SubmitApproval 草稿提交审批.
//
//	@Summary	提交审批
//	@Tags		relatorios
//	@Produce	json
//	@Param		id	path		int	true	"报告 id"
//	@Success	200	{object}	types.StatusResponse
//	@Failure	403	{object}	types.ErrorResponse
//	@Failure	409	{object}	types.ErrorResponse
//	@Router		/api/relatorios/{id}/submit-approval [post]
func SubmitApproval(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	status, err := svc.Reports.Submit(c.Request.Context(), id, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.StatusResponse{Success: true, Status: string(status), Label: status.Label()})
}

// Approve 审批通过；邮件投递的部分失败不影响响应.
//
//	@Summary		审批通过
//	@Description	状态提交后渲染 PDF 并发送邮件；mail.async 时副作用在后台执行
//	@Tags			relatorios
//	@Produce		json
//	@Param			id	path		int	true	"报告 id"
//	@Success		200	{object}	types.ApproveResponse
//	@Failure		403	{object}	types.ErrorResponse
//	@Failure		409	{object}	types.ErrorResponse
//	@Router			/api/relatorios/{id}/approve [post]
func Approve(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := svc.Reports.Approve(c.Request.Context(), id, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.ApproveResponse{Success: true, ApproveResult: res})
}

// Reject 驳回报告，接受 JSON 或表单中的 comentario_rejeicao.
//
//	@Summary	驳回
//	@Tags		relatorios
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int					true	"报告 id"
//	@Param		body	body		types.RejectRequest	false	"驳回意见"
//	@Success	200		{object}	types.StatusResponse
//	@Failure	403		{object}	types.ErrorResponse
//	@Failure	409		{object}	types.ErrorResponse
//	@Router		/api/relatorios/{id}/reject [post]
func Reject(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req types.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			fail(c, errs.Wrap(err, errs.KindValidation, "requisição inválida"))

			return
		}
	}

	if err := rule.ValidateStruct(&req); err != nil {
		fail(c, errs.New(errs.KindValidation, "comentário muito longo").WithDetails(rule.Errors(err)))

		return
	}

	status, err := svc.Reports.Reject(c.Request.Context(), id, actorOf(c), req.ComentarioRejeicao)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.StatusResponse{Success: true, Status: string(status), Label: status.Label()})
}

// DeleteReport 删除报告及其照片.
//
//	@Summary	删除报告
//	@Tags		relatorios
//	@Produce	json
//	@Param		id	path		int	true	"报告 id"
//	@Success	200	{object}	types.SuccessResponse
//	@Failure	403	{object}	types.ErrorResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/relatorios/{id} [delete]
func DeleteReport(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := svc.Reports.Delete(c.Request.Context(), id, actorOf(c)); err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse{Success: true})
}

// DeletePhoto 删除报告中的一张照片.
//
//	@Summary	删除照片
//	@Tags		relatorios
//	@Produce	json
//	@Param		id			path		int	true	"报告 id"
//	@Param		imagem_id	path		int	true	"照片 id"
//	@Success	200			{object}	types.SuccessResponse
//	@Failure	403			{object}	types.ErrorResponse
//	@Failure	404			{object}	types.ErrorResponse
//	@Router		/api/relatorios/{id}/imagens/{imagem_id} [delete]
func DeletePhoto(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	photoID, ok := paramID(c, "imagem_id")
	if !ok {
		return
	}

	if err := svc.Reports.DeletePhoto(c.Request.Context(), id, photoID, actorOf(c)); err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse{Success: true})
}

// ReportPDF 内联返回报告 PDF.
//
//	@Summary	报告 PDF
//	@Tags		relatorios
//	@Produce	application/pdf
//	@Param		id	path	int	true	"报告 id"
//	@Success	200
//	@Failure	404	{object}	types.ErrorResponse
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/relatorio/{id}/pdf [get]
func ReportPDF(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	out, err := svc.Reports.PDF(c.Request.Context(), id, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	cache := "MISS"
	if out.Cached {
		cache = "HIT"
	}

	c.Header("Content-Disposition", `inline; filename="`+out.Filename+`"`)
	c.Header("X-PDF-Cache", cache)
	c.Data(http.StatusOK, "application/pdf", out.Data)
}

// ListDispatches 报告的邮件投递记录.
//
//	@Summary	投递记录
//	@Tags		relatorios
//	@Produce	json
//	@Param		id	path		int	true	"报告 id"
//	@Success	200	{object}	types.DispatchesResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/relatorios/{id}/envios [get]
func ListDispatches(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	rows, err := svc.Reports.Dispatches(c.Request.Context(), id, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.DispatchesResponse{Success: true, Envios: rows})
}

// ListNotifications 会话用户的站内通知.
//
//	@Summary	站内通知
//	@Tags		notificacoes
//	@Produce	json
//	@Param		unread	query		bool	false	"只返回未读"
//	@Param		limit	query		int		false	"条数（默认 50，最大 200）"
//	@Success	200		{object}	types.NotificationsResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Router		/api/notificacoes [get]
func ListNotifications(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	var q types.NotificationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, errs.Wrap(err, errs.KindValidation, "parâmetros inválidos"))

		return
	}

	if err := rule.ValidateStruct(&q); err != nil {
		fail(c, errs.New(errs.KindValidation, "parâmetros inválidos").WithDetails(rule.Errors(err)))

		return
	}

	list, err := svc.Reports.Notifications(c.Request.Context(), actorOf(c), q.Unread, q.Limit)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.NotificationsResponse{Success: true, Notificacoes: list})
}
