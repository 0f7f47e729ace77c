// Package types HTTP 请求与响应结构.
package types

// ErrorResponse 错误信封.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Fail 构造错误信封.
func Fail(msg string, details any) ErrorResponse {
	return ErrorResponse{Error: msg, Details: details}
}

// SuccessResponse 只有 success 的响应.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// StatusResponse 状态迁移结果.
type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Label   string `json:"status_label"`
}
