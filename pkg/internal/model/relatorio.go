package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Acompanhante 访视同行人员，至少包含姓名.
type Acompanhante struct {
	Nome  string `json:"nome"`
	Email string `json:"email,omitempty"`
	// ID 可能是数字用户 id 或 "ec_<n>"（项目联系人）
	ID     string `json:"id,omitempty"`
	Funcao string `json:"funcao,omitempty"`
}

// Relatorio 访视报告.
type Relatorio struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Numero 形如 <project_code>-R<NNN>，项目内唯一
	Numero        string `gorm:"size:64;uniqueIndex:idx_relatorio_projeto_numero" json:"numero"`
	NumeroProjeto int    `gorm:"index;default:0"                                  json:"numero_projeto"`
	ProjetoID     uint   `gorm:"not null;uniqueIndex:idx_relatorio_projeto_numero;index" json:"projeto_id"`
	Projeto       *Obra  `gorm:"foreignKey:ProjetoID"                             json:"projeto,omitempty"`

	Titulo            string     `gorm:"size:255"   json:"titulo"`
	Descricao         string     `gorm:"type:text"  json:"descricao"`
	Conteudo          string     `gorm:"type:text"  json:"conteudo"`
	Categoria         string     `gorm:"size:128"   json:"categoria"`
	Local             string     `gorm:"size:255"   json:"local"`
	ObservacoesFinais string     `gorm:"type:text"  json:"observacoes_finais"`
	Lembrete          *time.Time `json:"lembrete_proxima_visita,omitempty"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	// EmailObra 报告上直接填写的工地邮箱，优先于项目联系人
	EmailObra string `gorm:"size:255" json:"email_obra,omitempty"`

	ChecklistData datatypes.JSON                     `json:"checklist_data,omitempty"`
	Acompanhantes datatypes.JSONType[[]Acompanhante] `json:"acompanhantes"`

	Status              Status `gorm:"size:32;index;not null;default:preenchimento" json:"status"`
	ComentarioAprovacao string `gorm:"type:text"                                    json:"comentario_aprovacao,omitempty"`

	AutorID       uint       `gorm:"not null;index"       json:"autor_id"`
	Autor         *Usuario   `gorm:"foreignKey:AutorID"   json:"autor,omitempty"`
	AprovadorID   *uint      `gorm:"index"                json:"aprovador_id,omitempty"`
	Aprovador     *Usuario   `gorm:"foreignKey:AprovadorID" json:"aprovador,omitempty"`
	CriadoPor     uint       `json:"criado_por"`
	AtualizadoPor uint       `json:"atualizado_por"`
	DataRelatorio *time.Time `json:"data_relatorio,omitempty"`
	DataAprovacao *time.Time `json:"data_aprovacao,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Fotos []FotoRelatorio `gorm:"foreignKey:RelatorioID;constraint:OnDelete:CASCADE" json:"fotos,omitempty"`
}

func (Relatorio) TableName() string { return "relatorios" }

// DisplayNumero 展示编号；历史报告保留原编号，缺失时使用 REL-<id>.
func (r *Relatorio) DisplayNumero() string {
	if r.Numero != "" {
		return r.Numero
	}

	return fmt.Sprintf("REL-%04d", r.ID)
}

// VisitDate 访视日期，缺省回退到创建时间.
func (r *Relatorio) VisitDate() time.Time {
	if r.DataRelatorio != nil && !r.DataRelatorio.IsZero() {
		return *r.DataRelatorio
	}

	return r.CreatedAt
}

// Companions returns the decoded companion list, never nil.
func (r *Relatorio) Companions() []Acompanhante {
	list := r.Acompanhantes.Data()
	if list == nil {
		return []Acompanhante{}
	}

	return list
}

// FormatNumero 生成项目内编号.
func FormatNumero(projectCode string, n int) string {
	return fmt.Sprintf("%s-R%03d", projectCode, n)
}
