//go:build !no_postgres

package db

import (
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/configs"
)

// postgresDialector 会话时区固定为 UTC；URL 形式的 DSN 原样使用.
func postgresDialector(dsn string) gorm.Dialector {
	if !strings.Contains(dsn, "://") && !strings.Contains(dsn, "TimeZone=") {
		dsn += " TimeZone=UTC"
	}

	return postgres.New(postgres.Config{DSN: dsn})
}

func init() {
	RegisterDialectorFactory(configs.Postgres, postgresDialector)
}
