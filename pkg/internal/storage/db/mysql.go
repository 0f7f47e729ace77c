//go:build !no_mysql

package db

import (
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/vistoria/pkg/configs"
)

// mysqlDialector 报告时间按 UTC 存储，外部 URL 缺少 parseTime/loc 时补上.
func mysqlDialector(dsn string) gorm.Dialector {
	return mysql.New(mysql.Config{
		DSN:               withMySQLParams(dsn),
		DefaultStringSize: 255,
	})
}

func withMySQLParams(dsn string) string {
	params := map[string]string{"parseTime": "True", "loc": "UTC", "charset": "utf8mb4"}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	lower := strings.ToLower(dsn)
	for _, k := range []string{"parseTime", "loc", "charset"} {
		if strings.Contains(lower, strings.ToLower(k)+"=") {
			continue
		}

		dsn += sep + k + "=" + params[k]
		sep = "&"
	}

	return dsn
}

func init() {
	RegisterDialectorFactory(configs.MySQL, mysqlDialector)
}
