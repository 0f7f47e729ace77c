//go:build !no_sqlite && !cgo

package db

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/configs"
)

// sqliteDialector 纯 Go 驱动；外部 DSN 没有声明外键时补上 foreign_keys(1).
func sqliteDialector(dsn string) gorm.Dialector {
	if !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}

		dsn += sep + "_pragma=foreign_keys(1)"
	}

	return sqlite.Open(dsn)
}

func init() {
	RegisterDialectorFactory(configs.SQLite, sqliteDialector)
}
