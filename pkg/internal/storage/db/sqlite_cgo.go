//go:build !no_sqlite && cgo

package db

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/configs"
)

// mattn 驱动不认识 _pragma=，改写为 _foreign_keys / _busy_timeout，照片的级联删除依赖外键.
var mattnPragmas = strings.NewReplacer(
	"_pragma=foreign_keys(1)", "_foreign_keys=1",
	"_pragma=busy_timeout(5000)", "_busy_timeout=5000",
)

func sqliteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(mattnPragmas.Replace(dsn))
}

func init() {
	RegisterDialectorFactory(configs.SQLite, sqliteDialector)
}
