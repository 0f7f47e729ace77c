package model

import "time"

// Obra 项目（工地）。核心只消费 id、numero（项目编码）与 numeracao_inicial.
type Obra struct {
	ID               uint          `gorm:"primaryKey"                json:"id"`
	Numero           string        `gorm:"size:32;uniqueIndex"       json:"numero"`
	Nome             string        `gorm:"size:255"                  json:"nome"`
	Endereco         string        `gorm:"size:512"                  json:"endereco"`
	NumeracaoInicial int           `gorm:"default:1"                 json:"numeracao_inicial"`
	Contatos         []ContatoObra `gorm:"foreignKey:ObraID;constraint:OnDelete:CASCADE" json:"contatos,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (Obra) TableName() string { return "obras" }

// Label returns "<numero> - <nome>" or whichever part is present.
func (o *Obra) Label() string {
	switch {
	case o == nil:
		return ""
	case o.Numero != "" && o.Nome != "":
		return o.Numero + " - " + o.Nome
	case o.Nome != "":
		return o.Nome
	default:
		return o.Numero
	}
}

// ContatoObra 项目联系人.
type ContatoObra struct {
	ID        uint      `gorm:"primaryKey"         json:"id"`
	ObraID    uint      `gorm:"index;not null"     json:"obra_id"`
	Nome      string    `gorm:"size:255;not null"  json:"nome"`
	Email     string    `gorm:"size:255;index"     json:"email"`
	Cargo     string    `gorm:"size:128"           json:"cargo"`
	Telefone  string    `gorm:"size:64"            json:"telefone"`
	CreatedAt time.Time `json:"created_at"`
}

func (ContatoObra) TableName() string { return "contatos_obra" }

// Usuario 用户目录条目.
type Usuario struct {
	ID              uint      `gorm:"primaryKey"          json:"id"`
	Nome            string    `gorm:"size:255;not null"   json:"nome"`
	Email           string    `gorm:"size:255;uniqueIndex" json:"email"`
	Role            string    `gorm:"size:32"             json:"role"`
	AprovadorGlobal bool      `gorm:"default:false"       json:"aprovador_global"`
	Ativo           bool      `gorm:"default:true"        json:"ativo"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Usuario) TableName() string { return "usuarios" }
