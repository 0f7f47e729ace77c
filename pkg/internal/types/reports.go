package types

import (
	"github.com/yeisme/vistoria/pkg/internal/autosave"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/service"
)

// AutoSaveResponse 自动保存结果.
type AutoSaveResponse struct {
	Success bool `json:"success"`
	*autosave.Result
}

// RejectRequest 驳回意见，可为空.
type RejectRequest struct {
	ComentarioRejeicao string `form:"comentario_rejeicao" json:"comentario_rejeicao" rule:"max=4000"`
}

// ApproveResponse 审批结果；同步模式下附带投递摘要.
type ApproveResponse struct {
	Success bool `json:"success"`
	*service.ApproveResult
}

// ReportResponse 编辑页报告.
type ReportResponse struct {
	Success bool `json:"success"`
	*service.ReportDetail
}

// NotificationsQuery 通知列表参数.
type NotificationsQuery struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit"  rule:"omitempty,min=1,max=200"`
}

// NotificationsResponse 通知列表.
type NotificationsResponse struct {
	Success      bool                `json:"success"`
	Notificacoes []model.Notificacao `json:"notificacoes"`
}

// DispatchesResponse 投递记录.
type DispatchesResponse struct {
	Success bool                   `json:"success"`
	Envios  []model.EnvioRelatorio `json:"envios"`
}
