package model

import "time"

// Notificacao 站内通知.
type Notificacao struct {
	ID          uint      `gorm:"primaryKey"        json:"id"`
	UsuarioID   uint      `gorm:"not null;index"    json:"usuario_id"`
	RelatorioID *uint     `gorm:"index"             json:"relatorio_id,omitempty"`
	Tipo        string    `gorm:"size:64;index"     json:"tipo"`
	Titulo      string    `gorm:"size:255"          json:"titulo"`
	Mensagem    string    `gorm:"type:text"         json:"mensagem"`
	Lida        bool      `gorm:"default:false"     json:"lida"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Notificacao) TableName() string { return "notificacoes" }

// 通知类型.
const (
	NotificacaoAprovado        = "relatorio_aprovado"
	NotificacaoRejeitado       = "relatorio_rejeitado"
	NotificacaoPendente        = "relatorio_pendente"
	NotificacaoEditadoPendente = "relatorio_editado_pendente"
	NotificacaoEnvioConcluido  = "relatorio_envio"
)

// EnvioRelatorio 每个收件人的邮件投递结果.
type EnvioRelatorio struct {
	ID          uint      `gorm:"primaryKey"       json:"id"`
	RelatorioID uint      `gorm:"not null;index"   json:"relatorio_id"`
	Email       string    `gorm:"size:255;index"   json:"email"`
	Sucesso     bool      `json:"sucesso"`
	MessageID   string    `gorm:"size:255"         json:"message_id,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	Erro        string    `gorm:"type:text"        json:"erro,omitempty"`
	EnviadoEm   time.Time `gorm:"index"            json:"enviado_em"`
}

func (EnvioRelatorio) TableName() string { return "envios_relatorio" }

// All 返回需要迁移的模型.
func All() []any {
	return []any{
		&Usuario{},
		&Obra{},
		&ContatoObra{},
		&Relatorio{},
		&FotoRelatorio{},
		&Notificacao{},
		&EnvioRelatorio{},
	}
}
