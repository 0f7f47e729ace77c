package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPDFOutputDir = "static/reports"
	DefaultPDFCacheTTL  = 10 * time.Minute
	DefaultPDFCompany   = "Vistoria Engenharia"
)

// PDFConfig 报告 PDF 渲染配置.
type PDFConfig struct {
	OutputDir   string        `mapstructure:"output_dir"   rule:"required"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CompanyName string        `mapstructure:"company_name"`
}

func (c *PDFConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("pdf.output_dir", DefaultPDFOutputDir)
	v.SetDefault("pdf.cache_ttl", DefaultPDFCacheTTL)
	v.SetDefault("pdf.company_name", DefaultPDFCompany)
}
