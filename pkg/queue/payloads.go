package queue

import "time"

// EventHeader 所有事件的通用头部.
type EventHeader struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Key        string    `json:"key,omitempty"` // 分区键，同一报告的事件共享
	TraceID    string    `json:"trace_id,omitempty"`
	Producer   string    `json:"producer,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version,omitempty"`
}

// Message 统一封装 Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// ReportRef 标识事件涉及的报告.
type ReportRef struct {
	RelatorioID uint   `json:"relatorio_id"`
	Numero      string `json:"numero"`
	ProjetoID   uint   `json:"projeto_id"`
}

// ReportEventPayload 状态类事件负载；From 与 To 相同表示没有状态变化.
type ReportEventPayload struct {
	Report  ReportRef `json:"report"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	ActorID uint      `json:"actor_id,omitempty"`
	Comment string    `json:"comment,omitempty"`
}

// DispatchPayload 审批副作用链的结果.
type DispatchPayload struct {
	Report     ReportRef `json:"report"`
	PDFKey     string    `json:"pdf_key,omitempty"`
	Recipients int       `json:"recipients"`
	Sent       int       `json:"sent"`
	Errors     []string  `json:"errors,omitempty"`
	// Skipped 非空表示链路提前结束，例如 "render_failed"、"no_recipients"
	Skipped string `json:"skipped,omitempty"`
}
