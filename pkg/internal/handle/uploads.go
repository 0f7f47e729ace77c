package handle

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/types"
	"github.com/yeisme/vistoria/pkg/rule"
)

// multipartOverhead 表单边界与其他字段允许的额外字节.
const multipartOverhead = 1 << 20

// StageUpload 暂存一张照片，返回 temp_id 供自动保存引用.
//
//	@Summary	暂存照片
//	@Tags		uploads
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file		formData	file	true	"照片（jpg/jpeg/png/gif/webp）"
//	@Param		category	formData	string	false	"分类"
//	@Param		local		formData	string	false	"位置"
//	@Param		caption		formData	string	false	"说明"
//	@Success	200			{object}	types.StageUploadResponse
//	@Failure	400			{object}	types.ErrorResponse
//	@Failure	413			{object}	types.ErrorResponse
//	@Router		/api/uploads/temp [post]
func StageUpload(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	limit := svc.Uploads.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, errs.New(errs.KindOversize, "arquivo excede o limite de %d MiB", limit>>20))

			return
		}

		fail(c, errs.Wrap(err, errs.KindValidation, "campo file ausente"))

		return
	}

	if fh.Size > limit {
		fail(c, errs.New(errs.KindOversize, "arquivo excede o limite de %d MiB", limit>>20))

		return
	}

	var form types.StageUploadForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, errs.Wrap(err, errs.KindValidation, "formulário inválido"))

		return
	}

	if err := rule.ValidateStruct(&form); err != nil {
		fail(c, errs.New(errs.KindValidation, "formulário inválido").WithDetails(rule.Errors(err)))

		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, errs.Wrap(err, errs.KindValidation, "arquivo ilegível"))

		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		fail(c, errs.Wrap(err, errs.KindValidation, "arquivo ilegível"))

		return
	}

	up, err := svc.Uploads.Stage(c.Request.Context(), data, imagestore.StageInput{
		Filename: fh.Filename,
		Category: form.Category,
		Local:    form.Local,
		Caption:  form.Caption,
	}, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.StageUploadResponse{
		Success:  true,
		TempID:   up.ID,
		Path:     up.Key,
		Filename: up.Filename,
		Size:     up.Size,
		MimeType: up.MimeType,
		Category: up.Category,
		Local:    up.Local,
		Caption:  up.Caption,
	})
}

// TempPreview 预览暂存照片.
//
//	@Summary	暂存照片预览
//	@Tags		uploads
//	@Produce	image/jpeg,image/png,image/gif,image/webp
//	@Param		temp_id	path	string	true	"暂存 id"
//	@Success	200
//	@Failure	400	{object}	types.ErrorResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/uploads/temp/{temp_id} [get]
func TempPreview(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	served, err := svc.Uploads.Temp(c.Request.Context(), c.Param("temp_id"), actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, served.MimeType, served.Data)
}

// ServePhoto 返回已保存的照片；字节缺失时返回占位图且不缓存.
//
//	@Summary	照片
//	@Tags		uploads
//	@Produce	image/jpeg,image/png,image/gif,image/webp
//	@Param		id	path	int	true	"照片 id"
//	@Success	200
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/imagens/{id} [get]
func ServePhoto(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	served, err := svc.Uploads.Photo(c.Request.Context(), id, actorOf(c))
	if err != nil {
		fail(c, err)

		return
	}

	if served.Placeholder {
		c.Header("Cache-Control", "no-store")
		c.Header("X-Placeholder", "1")
	} else {
		c.Header("Cache-Control", "max-age=300")
	}

	c.Data(http.StatusOK, served.MimeType, served.Data)
}

// CollectTemp 立即清理过期暂存，与定时任务相同.
//
//	@Summary	清理过期暂存
//	@Tags		uploads
//	@Produce	json
//	@Success	200	{object}	types.GCResponse
//	@Failure	403	{object}	types.ErrorResponse
//	@Router		/api/uploads/gc [post]
func CollectTemp(c *gin.Context) {
	svc, ok := services(c)
	if !ok {
		return
	}

	n, err := svc.Uploads.GC(c.Request.Context())
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.GCResponse{Success: true, Removed: n})
}
