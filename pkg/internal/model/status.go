package model

// Status 报告状态（持久化值为葡语编码）.
type Status string

const (
	StatusDraft            Status = "preenchimento"
	StatusAwaitingApproval Status = "aguardando_aprovacao"
	StatusApproved         Status = "aprovado"
	StatusRejected         Status = "rejeitado"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusAwaitingApproval, StatusApproved, StatusRejected:
		return true
	}

	return false
}

// Label 展示用名称.
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Em preenchimento"
	case StatusAwaitingApproval:
		return "Aguardando aprovação"
	case StatusApproved:
		return "Aprovado"
	case StatusRejected:
		return "Rejeitado"
	default:
		return string(s)
	}
}
