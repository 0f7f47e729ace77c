package model

import (
	"strconv"
	"time"
)

// FotoRelatorio 报告照片。ImagemData 存在时其长度等于 ImagemSize，SHA-256 等于 ImagemHash.
type FotoRelatorio struct {
	ID               uint   `gorm:"primaryKey"                 json:"id"`
	RelatorioID      uint   `gorm:"not null;index:idx_foto_relatorio_ordem,priority:1;index:idx_foto_relatorio_hash,priority:1" json:"relatorio_id"`
	Filename         string `gorm:"size:512"                   json:"filename"`
	FilenameOriginal string `gorm:"size:512"                   json:"filename_original"`
	ImagemData       []byte `json:"-"`
	ImagemHash       string `gorm:"size:64;index:idx_foto_relatorio_hash,priority:2" json:"imagem_hash"`
	ContentType      string `gorm:"size:64"                    json:"content_type"`
	ImagemSize       int64  `json:"imagem_size"`
	Legenda          string `gorm:"type:text"                  json:"legenda"`
	Titulo           string `gorm:"size:255"                   json:"titulo"`
	Categoria        string `gorm:"size:128"                   json:"categoria"`
	Local            string `gorm:"size:255"                   json:"local"`
	Ordem            int    `gorm:"not null;default:0;index:idx_foto_relatorio_ordem,priority:2" json:"ordem"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FotoRelatorio) TableName() string { return "fotos_relatorio" }

// URL 照片对外地址.
func (f *FotoRelatorio) URL() string {
	return "/api/imagens/" + strconv.FormatUint(uint64(f.ID), 10)
}

// HasData reports whether the binary content is stored in the row.
func (f *FotoRelatorio) HasData() bool {
	return len(f.ImagemData) > 0
}
